//go:build darwin

package capture

/*
#cgo LDFLAGS: -framework CoreGraphics -framework CoreFoundation -framework ApplicationServices
#include <CoreGraphics/CoreGraphics.h>
#include <CoreFoundation/CoreFoundation.h>
#include <stdint.h>

CGEventRef mouseshareEventCallback(CGEventTapProxy proxy, CGEventType type, CGEventRef event, void *refcon);

static inline uintptr_t mouseshareStartTap(uintptr_t refcon, uintptr_t *tapOut) {
    CGEventMask mask = CGEventMaskBit(kCGEventMouseMoved) |
        CGEventMaskBit(kCGEventLeftMouseDown) | CGEventMaskBit(kCGEventLeftMouseUp) |
        CGEventMaskBit(kCGEventLeftMouseDragged) |
        CGEventMaskBit(kCGEventRightMouseDown) | CGEventMaskBit(kCGEventRightMouseUp) |
        CGEventMaskBit(kCGEventRightMouseDragged) |
        CGEventMaskBit(kCGEventOtherMouseDown) | CGEventMaskBit(kCGEventOtherMouseUp) |
        CGEventMaskBit(kCGEventOtherMouseDragged) |
        CGEventMaskBit(kCGEventScrollWheel) |
        CGEventMaskBit(kCGEventKeyDown) | CGEventMaskBit(kCGEventKeyUp) |
        CGEventMaskBit(kCGEventFlagsChanged);

    CFMachPortRef tap = CGEventTapCreate(
        kCGSessionEventTap,
        kCGHeadInsertEventTap,
        kCGEventTapOptionDefault,
        mask,
        mouseshareEventCallback,
        (void*)refcon
    );
    if (!tap) {
        return 0;
    }
    *tapOut = (uintptr_t)tap;

    CFRunLoopSourceRef source = CFMachPortCreateRunLoopSource(kCFAllocatorDefault, tap, 0);
    CFRunLoopAddSource(CFRunLoopGetCurrent(), source, kCFRunLoopCommonModes);
    CGEventTapEnable(tap, true);
    CFRunLoopRun();
    return 1;
}

static inline void mouseshareStopTap(uintptr_t tap) {
    if (tap != 0) {
        CGEventTapEnable((CFMachPortRef)tap, false);
    }
}
*/
import "C"

import (
	"fmt"
	"log"
	"runtime/cgo"
	"time"
	"unsafe"

	"github.com/mouseshare/mouseshare/internal/codec"
	"github.com/mouseshare/mouseshare/internal/errkind"
)

// darwinSource taps the global input stream via CGEventTap, the same
// mechanism (and cgo.Handle refcon idiom) the teacher's hotkey manager uses
// for its listen-only tap, generalized here to a suppressing tap so it can
// withhold local input entirely while forwarding to a remote peer.
type darwinSource struct {
	*base
	handle cgo.Handle
	tap    C.uintptr_t
}

func NewSource() Source {
	return &darwinSource{base: newBase()}
}

func (s *darwinSource) Start(sink Sink) error {
	s.setSink(sink)
	s.handle = cgo.NewHandle(s)
	go func() {
		var tap C.uintptr_t
		ok := C.mouseshareStartTap(C.uintptr_t(uintptr(s.handle)), &tap)
		s.tap = tap
		if ok == 0 {
			// Accessibility permission missing or tap creation failed;
			// CFRunLoopRun never starts so this goroutine just exits.
			log.Printf("Capture: %v", fmt.Errorf("%w: CGEventTapCreate failed, check Accessibility permission", errkind.ErrPermissionDenied))
			return
		}
	}()
	return nil
}

func (s *darwinSource) Stop() error {
	if s.tap != 0 {
		C.mouseshareStopTap(s.tap)
	}
	if s.handle != 0 {
		s.handle.Delete()
	}
	return nil
}

//export mouseshareEventCallback
func mouseshareEventCallback(proxy C.CGEventTapProxy, eventType C.CGEventType, event C.CGEventRef, refcon unsafe.Pointer) C.CGEventRef {
	h := cgo.Handle(uintptr(refcon))
	s, ok := h.Value().(*darwinSource)
	if !ok {
		return event
	}

	now := time.Now()
	loc := C.CGEventGetLocation(event)

	if s.isControlling() {
		if eventType == C.kCGEventMouseMoved || eventType == C.kCGEventLeftMouseDragged ||
			eventType == C.kCGEventRightMouseDragged || eventType == C.kCGEventOtherMouseDragged {
			s.handlePoint(now, float64(loc.x), float64(loc.y))
		}
		return event // pass through unchanged: not controlling-away, so OS sees it
	}

	s.forward(eventType, event)
	return nil // suppress: input is owned by the controlled peer
}

// forward translates one tapped CGEvent into a semantic codec.Event and
// delivers it to the sink, or raises OnEscape for the distinguished
// escape-to-local key (spec.md section 4.4).
func (s *darwinSource) forward(eventType C.CGEventType, event C.CGEventRef) {
	sink := s.sink
	if sink == nil {
		return
	}

	mods := darwinModifiers(C.CGEventGetFlags(event))

	switch eventType {
	case C.kCGEventMouseMoved:
		dx := float64(C.CGEventGetDoubleValueField(event, C.kCGMouseEventDeltaX))
		dy := float64(C.CGEventGetDoubleValueField(event, C.kCGMouseEventDeltaY))
		sink.OnEvent(codec.NewMouseMove(dx, dy, mods))

	case C.kCGEventLeftMouseDragged, C.kCGEventRightMouseDragged, C.kCGEventOtherMouseDragged:
		dx := float64(C.CGEventGetDoubleValueField(event, C.kCGMouseEventDeltaX))
		dy := float64(C.CGEventGetDoubleValueField(event, C.kCGMouseEventDeltaY))
		sink.OnEvent(codec.NewMouseDrag(darwinButtonFor(eventType), dx, dy, mods))

	case C.kCGEventLeftMouseDown, C.kCGEventRightMouseDown, C.kCGEventOtherMouseDown:
		clicks := int(C.CGEventGetIntegerValueField(event, C.kCGMouseEventClickState))
		sink.OnEvent(codec.NewMouseDown(darwinButtonFor(eventType), clicks, mods))

	case C.kCGEventLeftMouseUp, C.kCGEventRightMouseUp, C.kCGEventOtherMouseUp:
		clicks := int(C.CGEventGetIntegerValueField(event, C.kCGMouseEventClickState))
		sink.OnEvent(codec.NewMouseUp(darwinButtonFor(eventType), clicks, mods))

	case C.kCGEventScrollWheel:
		dx := float64(C.CGEventGetDoubleValueField(event, C.kCGScrollWheelEventPointDeltaAxis2))
		dy := float64(C.CGEventGetDoubleValueField(event, C.kCGScrollWheelEventPointDeltaAxis1))
		sink.OnEvent(codec.NewScroll(dx, dy))

	case C.kCGEventKeyDown, C.kCGEventKeyUp:
		code := uint16(C.CGEventGetIntegerValueField(event, C.kCGKeyboardEventKeycode))
		if code == EscapeKeycodeDarwin {
			sink.OnEscape()
			return
		}
		if eventType == C.kCGEventKeyDown {
			sink.OnEvent(codec.NewKeyDown(code, "", mods))
		} else {
			sink.OnEvent(codec.NewKeyUp(code, mods))
		}

	case C.kCGEventFlagsChanged:
		sink.OnEvent(codec.NewFlagsChanged(mods))
	}
}

func darwinButtonFor(eventType C.CGEventType) codec.Button {
	switch eventType {
	case C.kCGEventRightMouseDown, C.kCGEventRightMouseUp, C.kCGEventRightMouseDragged:
		return codec.ButtonRight
	case C.kCGEventOtherMouseDown, C.kCGEventOtherMouseUp, C.kCGEventOtherMouseDragged:
		return codec.ButtonMiddle
	default:
		return codec.ButtonLeft
	}
}

func darwinModifiers(flags C.CGEventFlags) codec.Modifiers {
	var m codec.Modifiers
	if flags&C.kCGEventFlagMaskShift != 0 {
		m |= codec.ModShift
	}
	if flags&C.kCGEventFlagMaskControl != 0 {
		m |= codec.ModControl
	}
	if flags&C.kCGEventFlagMaskAlternate != 0 {
		m |= codec.ModAlt
	}
	if flags&C.kCGEventFlagMaskCommand != 0 {
		m |= codec.ModMeta
	}
	return m
}
