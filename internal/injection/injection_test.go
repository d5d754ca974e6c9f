package injection

import (
	"testing"

	"github.com/mouseshare/mouseshare/internal/arrangement"
)

var testBounds = Bounds{MinX: 0, MinY: 0, MaxX: 1000, MaxY: 800}

func TestPointForEdgeLeftUsesPerpendicularAxis(t *testing.T) {
	p := PointForEdge(testBounds, arrangement.EdgeLeft, 0.5)
	if p.X != edgeInset {
		t.Errorf("expected inset from left edge, got x=%v", p.X)
	}
	if p.Y != 400 {
		t.Errorf("expected midpoint y, got %v", p.Y)
	}
}

func TestPointForEdgeTopUsesParallelAxis(t *testing.T) {
	p := PointForEdge(testBounds, arrangement.EdgeTop, 0.25)
	if p.Y != edgeInset {
		t.Errorf("expected inset from top edge, got y=%v", p.Y)
	}
	if p.X != 250 {
		t.Errorf("expected quarter-width x, got %v", p.X)
	}
}

func TestClampKeepsPointsInBounds(t *testing.T) {
	p := testBounds.clamp(Point{X: -50, Y: 9000})
	if p.X != 0 || p.Y != 800 {
		t.Errorf("got %+v", p)
	}
}

func TestCenterIsMidpoint(t *testing.T) {
	c := center(testBounds)
	if c.X != 500 || c.Y != 400 {
		t.Errorf("got %+v", c)
	}
}
