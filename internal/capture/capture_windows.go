//go:build windows

package capture

import (
	"fmt"
	"log"
	"runtime"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/mouseshare/mouseshare/internal/codec"
	"github.com/mouseshare/mouseshare/internal/errkind"
)

// Windows low-level hook constants and structures, grounded on the same
// WH_MOUSE_LL/WH_KEYBOARD_LL hook mechanism and MSLLHOOKSTRUCT/
// KBDLLHOOKSTRUCT layouts the teacher's raw-input trap uses, adapted here to
// a suppressing hook (return 1 to swallow the event) rather than a
// listen-only raw input stream, since Capture needs to withhold local input
// entirely while forwarding to a remote peer.
const (
	whMouseLL    = 14
	whKeyboardLL = 13

	wmMouseMove   = 0x0200
	wmLButtonDown = 0x0201
	wmLButtonUp   = 0x0202
	wmRButtonDown = 0x0204
	wmRButtonUp   = 0x0205
	wmMButtonDown = 0x0207
	wmMButtonUp   = 0x0208
	wmMouseWheel  = 0x020A
	wmKeyDown     = 0x0100
	wmKeyUp       = 0x0101
	wmSysKeyDown  = 0x0104
	wmSysKeyUp    = 0x0105

	vkEscape = EscapeKeycodeWindows
	vkShift  = 0x10
	vkControl = 0x11
	vkMenu   = 0x12 // Alt
	vkLWin   = 0x5B
	vkRWin   = 0x5C
)

type point struct{ X, Y int32 }

type msllhookstruct struct {
	Pt          point
	MouseData   uint32
	Flags       uint32
	Time        uint32
	DwExtraInfo uintptr
}

type kbdllhookstruct struct {
	VkCode      uint32
	ScanCode    uint32
	Flags       uint32
	Time        uint32
	DwExtraInfo uintptr
}

var (
	user32             = windows.NewLazySystemDLL("user32.dll")
	procSetWindowsHook = user32.NewProc("SetWindowsHookExW")
	procUnhookWindows  = user32.NewProc("UnhookWindowsHookEx")
	procCallNextHook   = user32.NewProc("CallNextHookEx")
	procGetMessage     = user32.NewProc("GetMessageW")
	procGetAsyncKey    = user32.NewProc("GetAsyncKeyState")
	procGetModuleHandle = windows.NewLazySystemDLL("kernel32.dll").NewProc("GetModuleHandleW")
)

// windowsSource installs global low-level mouse and keyboard hooks. Because
// SetWindowsHookEx(WH_*_LL) requires its owning thread to run a message
// pump, Start locks a dedicated OS thread and runs GetMessage in a loop for
// the lifetime of the tap.
type windowsSource struct {
	*base
	mouseHook  uintptr
	keyHook    uintptr
	stopCh     chan struct{}
	lastX      int32
	lastY      int32
	haveLastXY bool
}

func NewSource() Source {
	return &windowsSource{base: newBase(), stopCh: make(chan struct{})}
}

var activeWindowsSource *windowsSource

func (s *windowsSource) Start(sink Sink) error {
	s.setSink(sink)
	activeWindowsSource = s

	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		hMod, _, _ := procGetModuleHandle.Call(0)

		mouseProc := windows.NewCallback(lowLevelMouseProc)
		keyProc := windows.NewCallback(lowLevelKeyboardProc)

		mouseHook, _, _ := procSetWindowsHook.Call(uintptr(whMouseLL), mouseProc, hMod, 0)
		s.mouseHook = mouseHook
		keyHook, _, _ := procSetWindowsHook.Call(uintptr(whKeyboardLL), keyProc, hMod, 0)
		s.keyHook = keyHook
		if mouseHook == 0 || keyHook == 0 {
			log.Printf("Capture: %v", fmt.Errorf("%w: SetWindowsHookEx failed", errkind.ErrPermissionDenied))
			return
		}

		var msg struct {
			Hwnd    uintptr
			Message uint32
			WParam  uintptr
			LParam  uintptr
			Time    uint32
			Pt      point
		}
		for {
			select {
			case <-s.stopCh:
				return
			default:
			}
			ret, _, _ := procGetMessage.Call(uintptr(unsafe.Pointer(&msg)), 0, 0, 0)
			if int32(ret) <= 0 {
				return
			}
		}
	}()
	return nil
}

func (s *windowsSource) Stop() error {
	close(s.stopCh)
	if s.mouseHook != 0 {
		procUnhookWindows.Call(s.mouseHook)
	}
	if s.keyHook != 0 {
		procUnhookWindows.Call(s.keyHook)
	}
	activeWindowsSource = nil
	return nil
}

func lowLevelMouseProc(nCode int, wParam, lParam uintptr) uintptr {
	s := activeWindowsSource
	if s == nil || nCode != 0 {
		return callNext(whMouseLL, nCode, wParam, lParam)
	}

	data := (*msllhookstruct)(unsafe.Pointer(lParam))
	now := time.Now()

	if s.isControlling() {
		if wParam == wmMouseMove {
			s.handlePoint(now, float64(data.Pt.X), float64(data.Pt.Y))
		}
		return callNext(whMouseLL, nCode, wParam, lParam)
	}

	s.forwardMouse(wParam, data)
	return 1 // suppress: input belongs to the controlled peer
}

func lowLevelKeyboardProc(nCode int, wParam, lParam uintptr) uintptr {
	s := activeWindowsSource
	if s == nil || nCode != 0 {
		return callNext(whKeyboardLL, nCode, wParam, lParam)
	}

	if s.isControlling() {
		return callNext(whKeyboardLL, nCode, wParam, lParam)
	}

	data := (*kbdllhookstruct)(unsafe.Pointer(lParam))
	s.forwardKey(wParam, data)
	return 1
}

func callNext(hookID int, nCode int, wParam, lParam uintptr) uintptr {
	ret, _, _ := procCallNextHook.Call(0, uintptr(nCode), wParam, lParam)
	return ret
}

func (s *windowsSource) forwardMouse(wParam uintptr, data *msllhookstruct) {
	sink := s.sink
	if sink == nil {
		return
	}
	mods := currentModifiers()

	if !s.haveLastXY {
		s.lastX, s.lastY = data.Pt.X, data.Pt.Y
		s.haveLastXY = true
	}
	dx := float64(data.Pt.X - s.lastX)
	dy := float64(data.Pt.Y - s.lastY)
	s.lastX, s.lastY = data.Pt.X, data.Pt.Y

	switch wParam {
	case wmMouseMove:
		sink.OnEvent(codec.NewMouseMove(dx, dy, mods))
	case wmLButtonDown:
		sink.OnEvent(codec.NewMouseDown(codec.ButtonLeft, 1, mods))
	case wmLButtonUp:
		sink.OnEvent(codec.NewMouseUp(codec.ButtonLeft, 1, mods))
	case wmRButtonDown:
		sink.OnEvent(codec.NewMouseDown(codec.ButtonRight, 1, mods))
	case wmRButtonUp:
		sink.OnEvent(codec.NewMouseUp(codec.ButtonRight, 1, mods))
	case wmMButtonDown:
		sink.OnEvent(codec.NewMouseDown(codec.ButtonMiddle, 1, mods))
	case wmMButtonUp:
		sink.OnEvent(codec.NewMouseUp(codec.ButtonMiddle, 1, mods))
	case wmMouseWheel:
		delta := int16(data.MouseData >> 16)
		sink.OnEvent(codec.NewScroll(0, float64(delta)/120.0*40))
	}
}

func (s *windowsSource) forwardKey(wParam uintptr, data *kbdllhookstruct) {
	sink := s.sink
	if sink == nil {
		return
	}
	code := uint16(data.VkCode)
	if code == vkEscape {
		sink.OnEscape()
		return
	}

	mods := currentModifiers()
	switch wParam {
	case wmKeyDown, wmSysKeyDown:
		sink.OnEvent(codec.NewKeyDown(code, "", mods))
	case wmKeyUp, wmSysKeyUp:
		sink.OnEvent(codec.NewKeyUp(code, mods))
	}
}

func currentModifiers() codec.Modifiers {
	var m codec.Modifiers
	if keyDown(vkShift) {
		m |= codec.ModShift
	}
	if keyDown(vkControl) {
		m |= codec.ModControl
	}
	if keyDown(vkMenu) {
		m |= codec.ModAlt
	}
	if keyDown(vkLWin) || keyDown(vkRWin) {
		m |= codec.ModMeta
	}
	return m
}

func keyDown(vk uintptr) bool {
	ret, _, _ := procGetAsyncKey.Call(vk)
	return ret&0x8000 != 0
}
