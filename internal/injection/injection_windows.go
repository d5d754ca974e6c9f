//go:build windows

package injection

import (
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/mouseshare/mouseshare/internal/arrangement"
	"github.com/mouseshare/mouseshare/internal/codec"
)

// Windows injection uses SendInput, the standard synthetic-input API, which
// the teacher never wires up (its Windows side is capture-only) but which
// follows the same syscall.NewLazyDLL/golang.org/x/sys/windows idiom the
// teacher's trap_windows.go uses for its hook and raw-input calls.
const (
	inputMouse    = 0
	inputKeyboard = 1

	mouseEventMove       = 0x0001
	mouseEventAbsolute   = 0x8000
	mouseEventLeftDown   = 0x0002
	mouseEventLeftUp     = 0x0004
	mouseEventRightDown  = 0x0008
	mouseEventRightUp    = 0x0010
	mouseEventMiddleDown = 0x0020
	mouseEventMiddleUp   = 0x0040
	mouseEventWheel      = 0x0800

	keyEventKeyUp = 0x0002
)

type mouseInput struct {
	Dx, Dy      int32
	MouseData   uint32
	Flags       uint32
	Time        uint32
	ExtraInfo   uintptr
}

type keyboardInput struct {
	Vk        uint16
	Scan      uint16
	Flags     uint32
	Time      uint32
	ExtraInfo uintptr
}

// input mirrors Win32's tagged INPUT union; we only ever populate one kind
// at a time and pad to the union's size (the larger of the two members plus
// the leading type field).
type input struct {
	Type uint32
	_    uint32 // alignment padding to match the native union's 8-byte field start
	Data [32]byte
}

var (
	user32         = windows.NewLazySystemDLL("user32.dll")
	procSendInput  = user32.NewProc("SendInput")
	procSetCursor  = user32.NewProc("SetCursorPos")
	procShowCursor = user32.NewProc("ShowCursor")
	procClipCursor = user32.NewProc("ClipCursor")
	procGetCursor  = user32.NewProc("GetCursorPos")
)

type windowsInjector struct {
	mu     sync.Mutex
	bounds Bounds
}

func NewInjector() Injector {
	return &windowsInjector{}
}

func (w *windowsInjector) SetBounds(b Bounds) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.bounds = b
}

func (w *windowsInjector) currentBounds() Bounds {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.bounds
}

func currentCursorPos() Point {
	var pt struct{ X, Y int32 }
	procGetCursor.Call(uintptr(unsafe.Pointer(&pt)))
	return Point{X: float64(pt.X), Y: float64(pt.Y)}
}

func sendMouseInput(flags uint32, dx, dy int32, mouseData uint32) {
	var in input
	in.Type = inputMouse
	mi := (*mouseInput)(unsafe.Pointer(&in.Data[0]))
	mi.Dx, mi.Dy, mi.Flags, mi.MouseData = dx, dy, flags, mouseData
	procSendInput.Call(1, uintptr(unsafe.Pointer(&in)), unsafe.Sizeof(in))
}

func sendKeyInput(vk uint16, up bool) {
	var in input
	in.Type = inputKeyboard
	ki := (*keyboardInput)(unsafe.Pointer(&in.Data[0]))
	ki.Vk = vk
	if up {
		ki.Flags = keyEventKeyUp
	}
	procSendInput.Call(1, uintptr(unsafe.Pointer(&in)), unsafe.Sizeof(in))
}

func (w *windowsInjector) Inject(e codec.Event) {
	switch e.Kind {
	case codec.EventMouseMove:
		w.moveDelta(e.MouseMove.DX, e.MouseMove.DY)
	case codec.EventMouseDrag:
		w.moveDelta(e.MouseButton.DragDX, e.MouseButton.DragDY)
	case codec.EventMouseDown:
		sendMouseInput(buttonDownFlag(e.MouseButton.Button), 0, 0, 0)
	case codec.EventMouseUp:
		sendMouseInput(buttonUpFlag(e.MouseButton.Button), 0, 0, 0)
	case codec.EventScroll:
		sendMouseInput(mouseEventWheel, 0, 0, uint32(int32(e.Scroll.DY)))
	case codec.EventKeyDown:
		sendKeyInput(e.Key.Code, false)
	case codec.EventKeyUp:
		sendKeyInput(e.Key.Code, true)
	}
}

func buttonDownFlag(b codec.Button) uint32 {
	switch b {
	case codec.ButtonRight:
		return mouseEventRightDown
	case codec.ButtonMiddle:
		return mouseEventMiddleDown
	default:
		return mouseEventLeftDown
	}
}

func buttonUpFlag(b codec.Button) uint32 {
	switch b {
	case codec.ButtonRight:
		return mouseEventRightUp
	case codec.ButtonMiddle:
		return mouseEventMiddleUp
	default:
		return mouseEventLeftUp
	}
}

func (w *windowsInjector) moveDelta(dx, dy float64) {
	pos := currentCursorPos()
	target := w.currentBounds().clamp(Point{X: pos.X + dx, Y: pos.Y + dy})
	w.MoveTo(target)
}

func (w *windowsInjector) MoveTo(p Point) {
	procSetCursor.Call(uintptr(int32(p.X)), uintptr(int32(p.Y)))
}

func (w *windowsInjector) ParkCursor() {
	c := center(w.currentBounds())
	w.MoveTo(c)
	// ClipCursor(NULL) releases any prior clip; confining the cursor to a
	// 0-area rect at the park point is the closest Win32 analogue to
	// CGAssociateMouseAndMouseCursorPosition(false) — the physical device
	// keeps generating WM_INPUT deltas while the visible cursor stays put.
	r := struct{ Left, Top, Right, Bottom int32 }{int32(c.X), int32(c.Y), int32(c.X), int32(c.Y)}
	procClipCursor.Call(uintptr(unsafe.Pointer(&r)))
}

func (w *windowsInjector) WarpToEdge(edge arrangement.Edge, relativePos float64) {
	procClipCursor.Call(0)
	p := PointForEdge(w.currentBounds(), edge, relativePos)
	w.MoveTo(p)
}

func (w *windowsInjector) SetCursorVisible(visible bool) {
	if visible {
		procShowCursor.Call(1)
	} else {
		procShowCursor.Call(0)
	}
}
