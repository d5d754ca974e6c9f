package capture

import (
	"sync"
	"time"
)

// EscapeKeycodeDarwin is virtual keycode 53 on macOS, the "escape-to-local"
// key named explicitly in spec.md section 4.4.
const EscapeKeycodeDarwin = 53

// EscapeKeycodeWindows is VK_ESCAPE, the Windows equivalent of the same
// distinguished escape-to-local signal.
const EscapeKeycodeWindows = 0x1B

// base holds the bounds/threshold/debounce state shared by every platform
// Source, so each platform file only has to wire its OS callback into
// handlePoint/handleEscape and otherwise just embed base.
type base struct {
	mu             sync.Mutex
	sink           Sink
	controlling    bool
	bounds         Bounds
	edgeThreshold  float64
	cornerDeadZone float64
	debouncer      *Debouncer
}

func newBase() *base {
	return &base{
		edgeThreshold: 1,
		debouncer:     NewDebouncer(0),
	}
}

func (b *base) setSink(sink Sink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sink = sink
}

func (b *base) SetControlling(controlling bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.controlling = controlling
	b.debouncer.Reset()
}

func (b *base) isControlling() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.controlling
}

func (b *base) SetBounds(bounds Bounds, edgeThreshold, cornerDeadZone float64, transitionDelay time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bounds = bounds
	b.edgeThreshold = edgeThreshold
	b.cornerDeadZone = cornerDeadZone
	b.debouncer = NewDebouncer(transitionDelay)
}

// handlePoint runs edge-detection/debounce against the current cursor point
// and, on a debounced hit while controlling, delivers OnEdgeArrival. It is a
// no-op (aside from state bookkeeping) when not controlling, since
// edge-arrival is only meaningful while this host owns the local input.
func (b *base) handlePoint(now time.Time, x, y float64) {
	b.mu.Lock()
	sink := b.sink
	controlling := b.controlling
	bounds := b.bounds
	threshold := b.edgeThreshold
	deadZone := b.cornerDeadZone
	debouncer := b.debouncer
	b.mu.Unlock()

	if !controlling || sink == nil {
		return
	}

	edge, pos, ok := DetectEdge(x, y, bounds, threshold, deadZone)
	fireEdge, fire := debouncer.Observe(now, edge, ok)
	if !fire {
		return
	}
	sink.OnEdgeArrival(EdgeHit{Edge: fireEdge, NormalizedPos: pos, CursorPoint: Point{X: x, Y: y}})
}
