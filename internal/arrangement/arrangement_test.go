package arrangement

import (
	"testing"

	"github.com/mouseshare/mouseshare/internal/peer"
)

func TestComputeEntryPositionInRange(t *testing.T) {
	source := Screen{X: 0, Y: 0, W: 1920, H: 1080}
	target := Screen{X: -1920, Y: 0, W: 1920, H: 1080}

	cases := []struct {
		exit float64
		edge Edge
	}{
		{0, EdgeLeft}, {0.5, EdgeLeft}, {1, EdgeLeft},
		{0, EdgeTop}, {0.5, EdgeTop}, {1, EdgeTop},
	}
	for _, c := range cases {
		got := ComputeEntryPosition(c.exit, source, target, c.edge)
		if got < 0 || got > 1 {
			t.Errorf("exit=%v edge=%v: got %v, want in [0,1]", c.exit, c.edge, got)
		}
	}
}

func TestComputeEntryPositionNoOverlapIsHalf(t *testing.T) {
	source := Screen{X: 0, Y: 0, W: 1920, H: 1080}
	target := Screen{X: -1920, Y: 5000, W: 1920, H: 1080} // far below, no vertical overlap
	got := ComputeEntryPosition(0.5, source, target, EdgeLeft)
	if got != 0.5 {
		t.Errorf("expected 0.5 for empty overlap, got %v", got)
	}
}

func TestComputeEntryPositionTopBottomUsesParallelAxis(t *testing.T) {
	// target sits above source, shifted right by half its width: only the
	// right half of source's X range overlaps target.
	source := Screen{X: 0, Y: 1080, W: 1920, H: 1080}
	target := Screen{X: 960, Y: 0, W: 1920, H: 1080}

	// Exiting at the left end of source's top edge (x=0) lands left of the
	// overlap region, so it should clamp rather than degenerate to 0.5.
	got := ComputeEntryPosition(0, source, target, EdgeTop)
	if got == 0.5 {
		t.Errorf("top edge should not degenerate to 0.5 when overlap exists, got %v", got)
	}

	// Exiting in the middle of the overlap should map to a mid-range value,
	// not always 0.5 regardless of position.
	mid := ComputeEntryPosition(0.75, source, target, EdgeTop)
	if mid <= 0 || mid >= 1 {
		t.Errorf("expected an interior mapped value, got %v", mid)
	}
}

func TestComputeEntryPositionClampsOutsideOverlap(t *testing.T) {
	source := Screen{X: 0, Y: 0, W: 1920, H: 1080}
	target := Screen{X: -1920, Y: 200, W: 1920, H: 400} // only middle band overlaps

	got := ComputeEntryPosition(0, source, target, EdgeLeft) // exit at y=0, above target
	if got != 0 {
		t.Errorf("expected clamp to 0 (target's top), got %v", got)
	}

	got = ComputeEntryPosition(1, source, target, EdgeLeft) // exit at y=1080, below target
	if got != 1 {
		t.Errorf("expected clamp to 1 (target's bottom), got %v", got)
	}
}

func TestPeerForEdgeAdjacency(t *testing.T) {
	a := New()
	a.InitializeLocalDisplays([]LocalDisplay{
		{ID: "local-1", Name: "main", X: 0, Y: 0, W: 1920, H: 1080, IsPrimary: true},
	})

	id := peer.NewID()
	a.UpdateRemoteScreen(id, "right-peer", 1920, 1080)
	// UpdateRemoteScreen places new remotes to the right by default.

	got, ok := a.PeerForEdge(EdgeRight)
	if !ok || got != id {
		t.Fatalf("expected peer %v on right edge, got %v ok=%v", id, got, ok)
	}

	_, ok = a.PeerForEdge(EdgeLeft)
	if ok {
		t.Errorf("expected no peer on left edge")
	}
}

func TestPeerForEdgeFallsBackToLegacyLink(t *testing.T) {
	a := New()
	a.InitializeLocalDisplays([]LocalDisplay{
		{ID: "local-1", Name: "main", X: 0, Y: 0, W: 1920, H: 1080, IsPrimary: true},
	})
	id := peer.NewID()
	a.SetEdgeLink(EdgeTop, id)

	got, ok := a.PeerForEdge(EdgeTop)
	if !ok || got != id {
		t.Fatalf("expected legacy link fallback to yield %v, got %v ok=%v", id, got, ok)
	}
}

func TestRemoveStaleRemoteScreens(t *testing.T) {
	a := New()
	a.InitializeLocalDisplays([]LocalDisplay{
		{ID: "local-1", Name: "main", X: 0, Y: 0, W: 1920, H: 1080, IsPrimary: true},
	})
	id := peer.NewID()
	a.UpdateRemoteScreen(id, "peer", 1920, 1080)

	a.RemoveStaleRemoteScreens(map[peer.ID]bool{}) // nobody connected anymore

	for _, s := range a.Screens() {
		if !s.IsLocal {
			t.Errorf("expected stale remote screen to be removed, found %+v", s)
		}
	}
}

func TestUniqueScreenIDs(t *testing.T) {
	a := New()
	a.InitializeLocalDisplays([]LocalDisplay{
		{ID: "local-1", Name: "main", X: 0, Y: 0, W: 1920, H: 1080, IsPrimary: true},
		{ID: "local-2", Name: "second", X: 1920, Y: 0, W: 1920, H: 1080},
	})
	seen := map[string]bool{}
	for _, s := range a.Screens() {
		if seen[s.ID] {
			t.Fatalf("duplicate screen id %q", s.ID)
		}
		seen[s.ID] = true
	}
}
