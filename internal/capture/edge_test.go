package capture

import (
	"testing"
	"time"

	"github.com/mouseshare/mouseshare/internal/arrangement"
)

var testBounds = Bounds{MinX: 0, MinY: 0, MaxX: 1000, MaxY: 800}

func TestDetectEdgeLeft(t *testing.T) {
	edge, pos, ok := DetectEdge(0, 400, testBounds, 1, 10)
	if !ok || edge != arrangement.EdgeLeft {
		t.Fatalf("got edge=%v pos=%v ok=%v", edge, pos, ok)
	}
	if pos != 0.5 {
		t.Errorf("expected normalized 0.5, got %v", pos)
	}
}

func TestDetectEdgeNoneInInterior(t *testing.T) {
	_, _, ok := DetectEdge(500, 400, testBounds, 1, 10)
	if ok {
		t.Error("interior point should not trigger an edge")
	}
}

func TestDetectEdgeCornerDeadZoneSuppressesHit(t *testing.T) {
	_, _, ok := DetectEdge(2, 2, testBounds, 5, 10)
	if ok {
		t.Error("corner point within dead zone of two edges should not trigger")
	}
}

func TestDetectEdgeJustOutsideCornerDeadZoneStillTriggers(t *testing.T) {
	edge, _, ok := DetectEdge(0, 50, testBounds, 1, 10)
	if !ok || edge != arrangement.EdgeLeft {
		t.Fatalf("expected left edge hit clear of the corner, got edge=%v ok=%v", edge, ok)
	}
}

func TestDebouncerZeroDelayFiresImmediately(t *testing.T) {
	d := NewDebouncer(0)
	edge, fire := d.Observe(time.Now(), arrangement.EdgeLeft, true)
	if !fire || edge != arrangement.EdgeLeft {
		t.Fatalf("expected immediate fire, got fire=%v edge=%v", fire, edge)
	}
}

func TestDebouncerWaitsFullDelay(t *testing.T) {
	d := NewDebouncer(100 * time.Millisecond)
	t0 := time.Now()

	_, fire := d.Observe(t0, arrangement.EdgeLeft, true)
	if fire {
		t.Fatal("should not fire before delay elapses")
	}

	_, fire = d.Observe(t0.Add(50*time.Millisecond), arrangement.EdgeLeft, true)
	if fire {
		t.Fatal("should not fire before delay elapses")
	}

	edge, fire := d.Observe(t0.Add(150*time.Millisecond), arrangement.EdgeLeft, true)
	if !fire || edge != arrangement.EdgeLeft {
		t.Fatalf("expected fire after delay elapsed, got fire=%v edge=%v", fire, edge)
	}
}

func TestDebouncerResetsOnEdgeChange(t *testing.T) {
	d := NewDebouncer(100 * time.Millisecond)
	t0 := time.Now()

	d.Observe(t0, arrangement.EdgeLeft, true)
	_, fire := d.Observe(t0.Add(150*time.Millisecond), arrangement.EdgeTop, true)
	if fire {
		t.Fatal("switching edges mid-debounce should restart the timer, not fire")
	}
}

func TestDebouncerResetsOnLosingTheEdge(t *testing.T) {
	d := NewDebouncer(100 * time.Millisecond)
	t0 := time.Now()

	d.Observe(t0, arrangement.EdgeLeft, true)
	d.Observe(t0.Add(20*time.Millisecond), 0, false)
	edge, fire := d.Observe(t0.Add(150*time.Millisecond), arrangement.EdgeLeft, true)
	if fire {
		t.Fatalf("losing the edge mid-debounce should restart, got edge=%v", edge)
	}
}
