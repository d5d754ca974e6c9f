// Package injection writes synthetic input events and moves the cursor at
// the OS boundary (spec.md section 4.5). Each platform file owns the actual
// syscalls/cgo; this file holds the shared interface and the inset-from-edge
// geometry (the latter is pure and unit-tested directly). The key-code
// remapping table lives in injection_darwin.go.
package injection

import (
	"github.com/mouseshare/mouseshare/internal/arrangement"
	"github.com/mouseshare/mouseshare/internal/codec"
)

// Point is an absolute OS screen coordinate.
type Point struct {
	X, Y float64
}

// Bounds is the main display's rectangle in OS screen coordinates, used to
// clamp injected mouse moves and to compute warp-to-edge targets.
type Bounds struct {
	MinX, MinY, MaxX, MaxY float64
}

func (b Bounds) clamp(p Point) Point {
	if p.X < b.MinX {
		p.X = b.MinX
	}
	if p.X > b.MaxX {
		p.X = b.MaxX
	}
	if p.Y < b.MinY {
		p.Y = b.MinY
	}
	if p.Y > b.MaxY {
		p.Y = b.MaxY
	}
	return p
}

// edgeInset is how far inside the target edge warp_to_edge places the
// cursor, so the very next OS-level move sample doesn't immediately
// re-trigger edge-arrival on the peer we just arrived from.
const edgeInset = 4

// PointForEdge computes the absolute warp target for warp_to_edge(edge,
// relativePos) against bounds (spec.md section 4.5).
func PointForEdge(bounds Bounds, edge arrangement.Edge, relativePos float64) Point {
	switch edge {
	case arrangement.EdgeLeft:
		return Point{X: bounds.MinX + edgeInset, Y: bounds.MinY + relativePos*(bounds.MaxY-bounds.MinY)}
	case arrangement.EdgeRight:
		return Point{X: bounds.MaxX - edgeInset, Y: bounds.MinY + relativePos*(bounds.MaxY-bounds.MinY)}
	case arrangement.EdgeTop:
		return Point{X: bounds.MinX + relativePos*(bounds.MaxX-bounds.MinX), Y: bounds.MinY + edgeInset}
	case arrangement.EdgeBottom:
		return Point{X: bounds.MinX + relativePos*(bounds.MaxX-bounds.MinX), Y: bounds.MaxY - edgeInset}
	default:
		return Point{X: (bounds.MinX + bounds.MaxX) / 2, Y: (bounds.MinY + bounds.MaxY) / 2}
	}
}

func center(bounds Bounds) Point {
	return Point{X: (bounds.MinX + bounds.MaxX) / 2, Y: (bounds.MinY + bounds.MaxY) / 2}
}

// Injector is the platform boundary: one implementation per OS, selected at
// compile time by NewInjector.
//
// Invariant (spec.md section 4.5): the physical and logical cursor positions
// are consistent at every state transition. Controller, not Injector, is
// responsible for sequencing ParkCursor/SetCursorVisible/WarpToEdge around
// ControlState transitions; Injector only executes each primitive.
type Injector interface {
	// Inject translates one InputEvent into an OS synthetic event. For
	// MouseMove/MouseDrag the delta is applied to the current cursor
	// position and clamped to the main display bounds; for MouseDown/Up the
	// current cursor position is used, never a sender-supplied absolute
	// coordinate.
	Inject(e codec.Event)
	MoveTo(p Point)
	ParkCursor()
	WarpToEdge(edge arrangement.Edge, relativePos float64)
	SetCursorVisible(visible bool)
	// SetBounds updates the main display bounds used for clamping and
	// warp-to-edge/park-cursor geometry.
	SetBounds(b Bounds)
}
