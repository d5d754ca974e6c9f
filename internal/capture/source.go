package capture

import (
	"time"

	"github.com/mouseshare/mouseshare/internal/arrangement"
	"github.com/mouseshare/mouseshare/internal/codec"
)

// Point is a cursor position in OS screen coordinates.
type Point struct {
	X, Y float64
}

// Sink receives everything a platform Source produces. It is invoked from
// the OS callback thread (on darwin, literally inside the CGEventTap
// callback) so every method MUST return promptly without blocking — per
// spec.md section 5, delivery must go to an unbounded or very large queue.
// The Controller satisfies this: OnEdgeArrival and OnEscape hand off to a new
// goroutine, and OnEvent only appends to its batch queue.
type Sink interface {
	// OnEdgeArrival fires when, while controlling, the cursor has dwelt at
	// an edge past transitionDelay (spec.md section 4.4).
	OnEdgeArrival(edge EdgeHit)
	// OnEvent delivers a semantic InputEvent captured while not controlling
	// (isControlling=false), for forwarding to the remote peer.
	OnEvent(e codec.Event)
	// OnEscape fires when the escape key is seen while not controlling.
	OnEscape()
}

// EdgeHit is one debounced edge-arrival, carrying the OS cursor point at the
// moment of arrival (needed by the Controller to compute the entry point on
// the target screen) alongside the normalized position already computed by
// DetectEdge.
type EdgeHit struct {
	Edge          arrangement.Edge
	NormalizedPos float64
	CursorPoint   Point
}

// Source is one platform's global input tap. NewSource (provided per
// platform build) constructs one bound to no sink; Start begins delivering.
type Source interface {
	// Start begins tapping the global input stream and delivering to sink.
	Start(sink Sink) error
	Stop() error
	// SetControlling flips the capture-mode flag (spec.md section 4.4): true
	// means edge-arrival detection is active and events pass through to the
	// OS; false means this host suppresses local input and forwards
	// semantic events to sink instead.
	SetControlling(controlling bool)
	// SetBounds updates the combined local display bounds and thresholds
	// used for edge detection, called whenever Arrangement's local screens
	// or Settings change.
	SetBounds(bounds Bounds, edgeThreshold, cornerDeadZone float64, transitionDelay time.Duration)
}
