package controller

import (
	"sync"

	"github.com/mouseshare/mouseshare/internal/codec"
	"github.com/mouseshare/mouseshare/internal/peer"
)

// batchQueue accumulates captured events for the current Controlling peer
// between 8ms flush ticks (spec.md section 4.7's batching policy): mouse
// moves, drags, and scrolls coalesce into a single summed delta, while
// button and key events queue individually and trigger an immediate flush
// rather than waiting for the next tick.
//
// batchQueue carries its own mutex, deliberately separate from Controller's
// transition mutex, so OnEvent (called from the OS callback thread on every
// captured input) never contends with an in-progress state transition.
type batchQueue struct {
	mu sync.Mutex

	peerID peer.ID
	valid  bool

	pending []codec.Event

	haveMove bool
	moveDX, moveDY float64
	moveMods       codec.Modifiers

	haveDrag              bool
	dragButton            codec.Button
	dragDX, dragDY        float64
	dragMods              codec.Modifiers

	haveScroll         bool
	scrollDX, scrollDY float64
}

// append adds e to the queue for peer id, coalescing it with any pending
// move/drag/scroll of the same kind. It returns true when the caller should
// flush immediately (spec.md section 4.7: MouseDown/Up/KeyDown/Up bypass
// the 8ms window).
func (b *batchQueue) append(id peer.ID, e codec.Event) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.valid || b.peerID != id {
		b.resetLocked()
		b.peerID = id
		b.valid = true
	}

	switch e.Kind {
	case codec.EventMouseMove:
		if b.haveMove {
			b.moveDX += e.MouseMove.DX
			b.moveDY += e.MouseMove.DY
		} else {
			b.haveMove = true
			b.moveDX, b.moveDY = e.MouseMove.DX, e.MouseMove.DY
		}
		b.moveMods = e.MouseMove.Modifiers
		return false

	case codec.EventMouseDrag:
		if b.haveDrag {
			b.dragDX += e.MouseButton.DragDX
			b.dragDY += e.MouseButton.DragDY
		} else {
			b.haveDrag = true
			b.dragDX, b.dragDY = e.MouseButton.DragDX, e.MouseButton.DragDY
		}
		b.dragButton = e.MouseButton.Button
		b.dragMods = e.MouseButton.Modifiers
		return false

	case codec.EventScroll:
		if b.haveScroll {
			b.scrollDX += e.Scroll.DX
			b.scrollDY += e.Scroll.DY
		} else {
			b.haveScroll = true
			b.scrollDX, b.scrollDY = e.Scroll.DX, e.Scroll.DY
		}
		return false

	default:
		b.flushCoalescedLocked()
		b.pending = append(b.pending, e)
		return true
	}
}

// drain returns and clears every queued event, coalesced ones included, in
// the order they should go out on the wire (moves/drags/scrolls ahead of
// whatever pending discrete events followed them, which matches how they
// were folded in since flushCoalescedLocked runs before each discrete
// append).
func (b *batchQueue) drain() []codec.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.flushCoalescedLocked()
	if len(b.pending) == 0 {
		return nil
	}
	out := b.pending
	b.pending = nil
	return out
}

func (b *batchQueue) flushCoalescedLocked() {
	if b.haveMove {
		b.pending = append(b.pending, codec.NewMouseMove(b.moveDX, b.moveDY, b.moveMods))
		b.haveMove = false
	}
	if b.haveDrag {
		b.pending = append(b.pending, codec.NewMouseDrag(b.dragButton, b.dragDX, b.dragDY, b.dragMods))
		b.haveDrag = false
	}
	if b.haveScroll {
		b.pending = append(b.pending, codec.NewScroll(b.scrollDX, b.scrollDY))
		b.haveScroll = false
	}
}

// reset drops every queued event without flushing, used when a transition
// out of Controlling makes the queued input meaningless for the peer it was
// bound for.
func (b *batchQueue) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetLocked()
}

func (b *batchQueue) resetLocked() {
	b.peerID = peer.ID{}
	b.valid = false
	b.pending = nil
	b.haveMove = false
	b.haveDrag = false
	b.haveScroll = false
}
