// Package clipboardbridge polls the local clipboard, broadcasts changes to
// connected peers, and applies remote updates with a self-update guard
// (spec.md section 4.7's "ClipboardBridge" paragraph). It is grounded on the
// teacher pack's victorvcruz-clipboard-sync repo, the only example with a
// clipboard concern at all: same ticker-driven poll loop and lastContent
// diffing, generalized from its single-peer X11-only native backend to a
// per-platform Backend behind a shared interface.
package clipboardbridge

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/mouseshare/mouseshare/internal/errkind"
)

// MaxContentBytes is the size above which a clipboard change is dropped
// locally rather than broadcast (spec.md section 4.7: "Contents over 10 MiB
// are dropped locally").
const MaxContentBytes = 10 * 1024 * 1024

// PollInterval is how often the OS clipboard is polled (spec.md section
// 4.7: "every 500 ms").
const PollInterval = 500 * time.Millisecond

// Backend is the platform-specific clipboard accessor. NewBackend is
// provided per platform build.
type Backend interface {
	Read() (content []byte, mimeTag string, err error)
	Write(content []byte, mimeTag string) error
}

// Bridge owns the poll loop, the self-update guard, and the last-seen
// content used to detect local changes.
type Bridge struct {
	backend Backend
	onLocalChange func(content []byte, mimeTag string)

	mu          sync.Mutex
	lastContent []byte
	applyingRemote bool
}

func New(backend Backend, onLocalChange func(content []byte, mimeTag string)) *Bridge {
	return &Bridge{backend: backend, onLocalChange: onLocalChange}
}

// Run polls the clipboard every PollInterval until stop is closed, invoking
// onLocalChange for every locally-originated change it observes (while not
// itself in the middle of applying a remote update).
func (b *Bridge) Run(stop <-chan struct{}) {
	if b.backend == nil {
		return
	}

	if initial, mime, err := b.backend.Read(); err == nil {
		b.mu.Lock()
		b.lastContent = initial
		b.mu.Unlock()
		_ = mime
	}

	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			b.poll()
		}
	}
}

func (b *Bridge) poll() {
	b.mu.Lock()
	guarded := b.applyingRemote
	b.mu.Unlock()
	if guarded {
		return
	}

	content, mimeTag, err := b.backend.Read()
	if err != nil {
		return
	}

	b.mu.Lock()
	changed := !bytesEqual(content, b.lastContent)
	if changed {
		b.lastContent = content
	}
	b.mu.Unlock()

	if !changed {
		return
	}

	if len(content) > MaxContentBytes {
		log.Printf("ClipboardBridge: %v", fmt.Errorf("%w: %d bytes exceeds %d byte limit", errkind.ErrClipboardTooLarge, len(content), MaxContentBytes))
		return
	}

	if b.onLocalChange != nil {
		b.onLocalChange(content, mimeTag)
	}
}

// ApplyRemote writes a remotely-received clipboard update under the
// self-update guard, so the subsequent poll tick does not loop it back out
// as a local change (spec.md section 4.7: "On receipt, set a guard flag,
// apply to the local clipboard, clear the flag").
func (b *Bridge) ApplyRemote(content []byte, mimeTag string) error {
	if len(content) > MaxContentBytes {
		log.Printf("ClipboardBridge: %v", fmt.Errorf("%w: %d bytes exceeds %d byte limit", errkind.ErrClipboardTooLarge, len(content), MaxContentBytes))
		return nil
	}

	b.mu.Lock()
	b.applyingRemote = true
	b.lastContent = content
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		b.applyingRemote = false
		b.mu.Unlock()
	}()

	return b.backend.Write(content, mimeTag)
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
