// Package capture subscribes to the OS global event stream, emits semantic
// InputEvents, and detects edge-arrival (spec.md section 4.4). The
// edge-detection and debounce logic in this file is pure and carries no OS
// dependency, so it is unit-tested directly; platform files wire OS taps into
// it.
package capture

import (
	"time"

	"github.com/mouseshare/mouseshare/internal/arrangement"
)

// DetectEdge reports whether point (x,y) is "at edge E" of bounds: within
// threshold pixels of a side, and not inside a corner dead zone (within
// cornerDeadZone pixels of two orthogonal edges simultaneously). If the point
// is within threshold of two sides (possible only with no dead zone), the
// first of left, right, top, bottom wins. On a hit it also returns the
// normalized [0,1] position along that edge (spec.md section 4.4).
func DetectEdge(x, y float64, bounds Bounds, threshold, cornerDeadZone float64) (edge arrangement.Edge, pos float64, ok bool) {
	distLeft := x - bounds.MinX
	distRight := bounds.MaxX - x
	distTop := y - bounds.MinY
	distBottom := bounds.MaxY - y

	atLeft := distLeft <= threshold
	atRight := distRight <= threshold
	atTop := distTop <= threshold
	atBottom := distBottom <= threshold

	if isCorner(distLeft, distRight, distTop, distBottom, cornerDeadZone) {
		return 0, 0, false
	}

	switch {
	case atLeft:
		return arrangement.EdgeLeft, normalize(y, bounds.MinY, bounds.Height()), true
	case atRight:
		return arrangement.EdgeRight, normalize(y, bounds.MinY, bounds.Height()), true
	case atTop:
		return arrangement.EdgeTop, normalize(x, bounds.MinX, bounds.Width()), true
	case atBottom:
		return arrangement.EdgeBottom, normalize(x, bounds.MinX, bounds.Width()), true
	default:
		return 0, 0, false
	}
}

// isCorner reports whether the point is within deadZone pixels of two
// orthogonal edges at once, in which case edge-arrival never fires (spec.md
// section 4.4: "A point in a corner dead zone ... does not trigger").
func isCorner(distLeft, distRight, distTop, distBottom, deadZone float64) bool {
	if deadZone <= 0 {
		return false
	}
	horizontal := distLeft <= deadZone || distRight <= deadZone
	vertical := distTop <= deadZone || distBottom <= deadZone
	return horizontal && vertical
}

func normalize(v, origin, extent float64) float64 {
	if extent <= 0 {
		return 0.5
	}
	n := (v - origin) / extent
	if n < 0 {
		return 0
	}
	if n > 1 {
		return 1
	}
	return n
}

// Debouncer implements the transitionDelay rule (spec.md section 4.4): the
// cursor must remain at the same edge continuously for transitionDelay before
// edge-arrival is reported. A zero delay reports immediately. The Debouncer
// takes an explicit `now` on every call so it is deterministically testable.
type Debouncer struct {
	delay time.Duration

	pending     bool
	pendingEdge arrangement.Edge
	since       time.Time
}

func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{delay: delay}
}

// Observe feeds one edge-detection sample (ok=false means "not currently at
// any edge") and reports whether edge-arrival should now fire, and on which
// edge.
func (d *Debouncer) Observe(now time.Time, edge arrangement.Edge, ok bool) (fireEdge arrangement.Edge, fire bool) {
	if !ok {
		d.pending = false
		return 0, false
	}

	if d.delay <= 0 {
		return edge, true
	}

	if !d.pending || d.pendingEdge != edge {
		d.pending = true
		d.pendingEdge = edge
		d.since = now
		return 0, false
	}

	if now.Sub(d.since) >= d.delay {
		d.pending = false
		return edge, true
	}
	return 0, false
}

// Reset clears any in-progress debounce, used when control state changes out
// from under the debouncer (e.g. the edge-arrival already fired and control
// passed to a peer).
func (d *Debouncer) Reset() {
	d.pending = false
}
