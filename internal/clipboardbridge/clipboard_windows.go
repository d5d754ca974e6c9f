//go:build windows

package clipboardbridge

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

// Windows clipboard access goes through the classic OpenClipboard/
// GetClipboardData/SetClipboardData triplet via golang.org/x/sys/windows,
// the same NewLazySystemDLL/NewProc syscall idiom the teacher's
// trap_windows.go uses for its hook and raw-input calls.
const (
	cfUnicodeText = 13

	gmemMoveable = 0x0002
)

var (
	user32             = windows.NewLazySystemDLL("user32.dll")
	procOpenClipboard  = user32.NewProc("OpenClipboard")
	procCloseClipboard = user32.NewProc("CloseClipboard")
	procGetClipData    = user32.NewProc("GetClipboardData")
	procSetClipData    = user32.NewProc("SetClipboardData")
	procEmptyClipboard = user32.NewProc("EmptyClipboard")

	kernel32       = windows.NewLazySystemDLL("kernel32.dll")
	procGlobalAlloc = kernel32.NewProc("GlobalAlloc")
	procGlobalLock  = kernel32.NewProc("GlobalLock")
	procGlobalUnlock = kernel32.NewProc("GlobalUnlock")
)

type windowsBackend struct {
	lastRead []byte
}

func NewBackend() (Backend, error) {
	return &windowsBackend{}, nil
}

func (w *windowsBackend) Read() ([]byte, string, error) {
	if ok, _, _ := procOpenClipboard.Call(0); ok == 0 {
		return w.lastRead, "text/plain", nil
	}
	defer procCloseClipboard.Call()

	h, _, _ := procGetClipData.Call(cfUnicodeText)
	if h == 0 {
		return w.lastRead, "text/plain", nil
	}
	ptr, _, _ := procGlobalLock.Call(h)
	if ptr == 0 {
		return w.lastRead, "text/plain", nil
	}
	defer procGlobalUnlock.Call(h)

	text := windows.UTF16PtrToString((*uint16)(unsafe.Pointer(ptr)))
	w.lastRead = []byte(text)
	return w.lastRead, "text/plain", nil
}

func (w *windowsBackend) Write(content []byte, mimeTag string) error {
	utf16, err := windows.UTF16FromString(string(content))
	if err != nil {
		return fmt.Errorf("clipboardbridge: encode clipboard text: %w", err)
	}
	size := uintptr(len(utf16)) * 2

	h, _, _ := procGlobalAlloc.Call(gmemMoveable, size)
	if h == 0 {
		return fmt.Errorf("clipboardbridge: GlobalAlloc failed")
	}
	ptr, _, _ := procGlobalLock.Call(h)
	if ptr == 0 {
		return fmt.Errorf("clipboardbridge: GlobalLock failed")
	}
	dst := unsafe.Slice((*uint16)(unsafe.Pointer(ptr)), len(utf16))
	copy(dst, utf16)
	procGlobalUnlock.Call(h)

	if ok, _, _ := procOpenClipboard.Call(0); ok == 0 {
		return fmt.Errorf("clipboardbridge: OpenClipboard failed")
	}
	defer procCloseClipboard.Call()
	procEmptyClipboard.Call()
	procSetClipData.Call(cfUnicodeText, h)

	w.lastRead = content
	return nil
}
