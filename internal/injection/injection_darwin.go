//go:build darwin

package injection

/*
#cgo CFLAGS: -x objective-c
#cgo LDFLAGS: -framework CoreGraphics -framework CoreFoundation -framework ApplicationServices

#include <CoreGraphics/CoreGraphics.h>
#include <ApplicationServices/ApplicationServices.h>

static CGPoint mouseshareCurrentPos() {
    CGEventRef event = CGEventCreate(NULL);
    CGPoint p = CGEventGetLocation(event);
    CFRelease(event);
    return p;
}

static void mouseshareWarpAndMove(CGFloat x, CGFloat y) {
    CGPoint p = CGPointMake(x, y);
    CGWarpMouseCursorPosition(p);
    CGEventRef event = CGEventCreateMouseEvent(NULL, kCGEventMouseMoved, p, kCGMouseButtonLeft);
    CGEventPost(kCGHIDEventTap, event);
    CFRelease(event);
}

static void mouseshareMouseButton(CGFloat x, CGFloat y, int button, int pressed) {
    CGMouseButton cgButton;
    CGEventType eventType;
    switch (button) {
        case 1: cgButton = kCGMouseButtonLeft; break;
        case 2: cgButton = kCGMouseButtonRight; break;
        default: cgButton = kCGMouseButtonCenter; break;
    }
    if (pressed) {
        switch (button) {
            case 1: eventType = kCGEventLeftMouseDown; break;
            case 2: eventType = kCGEventRightMouseDown; break;
            default: eventType = kCGEventOtherMouseDown; break;
        }
    } else {
        switch (button) {
            case 1: eventType = kCGEventLeftMouseUp; break;
            case 2: eventType = kCGEventRightMouseUp; break;
            default: eventType = kCGEventOtherMouseUp; break;
        }
    }
    CGPoint p = CGPointMake(x, y);
    CGEventRef event = CGEventCreateMouseEvent(NULL, eventType, p, cgButton);
    CGEventPost(kCGHIDEventTap, event);
    CFRelease(event);
}

static void mouseshareScroll(CGFloat dx, CGFloat dy) {
    CGEventRef event = CGEventCreateScrollWheelEvent(NULL, kCGScrollEventUnitPixel, 2, (int32_t)dy, (int32_t)dx);
    CGEventPost(kCGHIDEventTap, event);
    CFRelease(event);
}

static void mouseshareKey(CGKeyCode code, int pressed, CGEventFlags flags) {
    CGEventRef event = CGEventCreateKeyboardEvent(NULL, code, pressed != 0);
    CGEventSetFlags(event, flags);
    CGEventPost(kCGHIDEventTap, event);
    CFRelease(event);
}

static void mouseshareSetCursorVisible(int visible) {
    if (visible) {
        CGDisplayShowCursor(kCGDirectMainDisplay);
    } else {
        CGDisplayHideCursor(kCGDirectMainDisplay);
    }
}

static void mouseshareAssociateMouse(int associate) {
    CGAssociateMouseAndMouseCursorPosition(associate != 0);
}
*/
import "C"

import (
	"sync"

	"github.com/mouseshare/mouseshare/internal/arrangement"
	"github.com/mouseshare/mouseshare/internal/codec"
)

// windowsToMacKeyMap translates the Windows virtual-key codes carried on the
// wire into macOS CGKeyCodes, the same table (minus the corrupted bytes
// found in the retrieved copy) the teacher's darwin injector uses for its
// cross-platform keyboard remap.
var windowsToMacKeyMap = map[uint16]C.CGKeyCode{
	0x41: 0x00, 0x42: 0x0B, 0x43: 0x08, 0x44: 0x02, 0x45: 0x0E,
	0x46: 0x03, 0x47: 0x05, 0x48: 0x04, 0x49: 0x22, 0x4A: 0x26,
	0x4B: 0x28, 0x4C: 0x25, 0x4D: 0x2E, 0x4E: 0x2D, 0x4F: 0x1F,
	0x50: 0x23, 0x51: 0x0C, 0x52: 0x0F, 0x53: 0x01, 0x54: 0x11,
	0x55: 0x20, 0x56: 0x09, 0x57: 0x0D, 0x58: 0x07, 0x59: 0x10,
	0x5A: 0x06,
	0x30: 0x1D, 0x31: 0x12, 0x32: 0x13, 0x33: 0x14, 0x34: 0x15,
	0x35: 0x17, 0x36: 0x16, 0x37: 0x1A, 0x38: 0x1C, 0x39: 0x19,
	0x70: 0x7A, 0x71: 0x78, 0x72: 0x63, 0x73: 0x76, 0x74: 0x60,
	0x75: 0x61, 0x76: 0x62, 0x77: 0x64, 0x78: 0x65, 0x79: 0x6D,
	0x7A: 0x67, 0x7B: 0x6F,
	0x08: 0x33, 0x09: 0x30, 0x0D: 0x24, 0x10: 0x38, 0x11: 0x3B,
	0x12: 0x3A, 0x14: 0x39, 0x1B: 0x35, 0x20: 0x31,
	0x25: 0x7B, 0x26: 0x7E, 0x27: 0x7C, 0x28: 0x7D,
	0x21: 0x74, 0x22: 0x79, 0x23: 0x77, 0x24: 0x73, 0x2D: 0x72, 0x2E: 0x75,
	0x5B: 0x37, 0x5C: 0x36, 0xA0: 0x38, 0xA1: 0x3C, 0xA2: 0x3B,
	0xA3: 0x3E, 0xA4: 0x3A, 0xA5: 0x3D,
}

func macKeyCode(code uint16) C.CGKeyCode {
	if mapped, ok := windowsToMacKeyMap[code]; ok {
		return mapped
	}
	return C.CGKeyCode(code)
}

func macFlags(mods codec.Modifiers) C.CGEventFlags {
	var f C.CGEventFlags
	if mods&codec.ModShift != 0 {
		f |= C.kCGEventFlagMaskShift
	}
	if mods&codec.ModControl != 0 {
		f |= C.kCGEventFlagMaskControl
	}
	if mods&codec.ModAlt != 0 {
		f |= C.kCGEventFlagMaskAlternate
	}
	if mods&codec.ModMeta != 0 {
		f |= C.kCGEventFlagMaskCommand
	}
	return f
}

type darwinInjector struct {
	mu     sync.Mutex
	bounds Bounds
}

func NewInjector() Injector {
	return &darwinInjector{}
}

func (d *darwinInjector) SetBounds(b Bounds) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.bounds = b
}

func (d *darwinInjector) currentBounds() Bounds {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.bounds
}

func (d *darwinInjector) Inject(e codec.Event) {
	switch e.Kind {
	case codec.EventMouseMove:
		d.moveDelta(e.MouseMove.DX, e.MouseMove.DY)
	case codec.EventMouseDrag:
		d.moveDelta(e.MouseButton.DragDX, e.MouseButton.DragDY)
	case codec.EventMouseDown:
		pos := currentPos()
		C.mouseshareMouseButton(C.CGFloat(pos.X), C.CGFloat(pos.Y), C.int(e.MouseButton.Button), 1)
	case codec.EventMouseUp:
		pos := currentPos()
		C.mouseshareMouseButton(C.CGFloat(pos.X), C.CGFloat(pos.Y), C.int(e.MouseButton.Button), 0)
	case codec.EventScroll:
		C.mouseshareScroll(C.CGFloat(e.Scroll.DX), C.CGFloat(e.Scroll.DY))
	case codec.EventKeyDown:
		C.mouseshareKey(macKeyCode(e.Key.Code), 1, macFlags(e.Key.Modifiers))
	case codec.EventKeyUp:
		C.mouseshareKey(macKeyCode(e.Key.Code), 0, macFlags(e.Key.Modifiers))
	}
}

func (d *darwinInjector) moveDelta(dx, dy float64) {
	pos := currentPos()
	target := d.currentBounds().clamp(Point{X: pos.X + dx, Y: pos.Y + dy})
	C.mouseshareWarpAndMove(C.CGFloat(target.X), C.CGFloat(target.Y))
}

func currentPos() Point {
	p := C.mouseshareCurrentPos()
	return Point{X: float64(p.x), Y: float64(p.y)}
}

func (d *darwinInjector) MoveTo(p Point) {
	C.mouseshareWarpAndMove(C.CGFloat(p.X), C.CGFloat(p.Y))
}

func (d *darwinInjector) ParkCursor() {
	c := center(d.currentBounds())
	C.mouseshareWarpAndMove(C.CGFloat(c.X), C.CGFloat(c.Y))
	C.mouseshareAssociateMouse(0)
}

func (d *darwinInjector) WarpToEdge(edge arrangement.Edge, relativePos float64) {
	C.mouseshareAssociateMouse(1)
	p := PointForEdge(d.currentBounds(), edge, relativePos)
	C.mouseshareWarpAndMove(C.CGFloat(p.X), C.CGFloat(p.Y))
}

func (d *darwinInjector) SetCursorVisible(visible bool) {
	if visible {
		C.mouseshareSetCursorVisible(1)
	} else {
		C.mouseshareSetCursorVisible(0)
	}
}
