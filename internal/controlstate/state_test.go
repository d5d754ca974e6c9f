package controlstate

import (
	"testing"

	"github.com/mouseshare/mouseshare/internal/arrangement"
	"github.com/mouseshare/mouseshare/internal/peer"
)

func TestZeroValueIsLocal(t *testing.T) {
	var s State
	if !s.IsLocal() {
		t.Fatalf("zero value should be Local")
	}
}

func TestVariantsAreExclusive(t *testing.T) {
	id := peer.NewID()
	states := []State{
		NewLocal(),
		NewControlling(id, arrangement.EdgeLeft, 0.5),
		NewControlled(id, arrangement.EdgeRight),
	}
	for _, s := range states {
		flags := 0
		if s.IsLocal() {
			flags++
		}
		if s.IsControlling() {
			flags++
		}
		if s.IsControlled() {
			flags++
		}
		if flags != 1 {
			t.Fatalf("state %v satisfied %d of {Local,Controlling,Controlled}, want exactly 1", s.Kind(), flags)
		}
	}
}

func TestControlledStartsNotMovedAway(t *testing.T) {
	id := peer.NewID()
	s := NewControlled(id, arrangement.EdgeLeft)
	if s.HasMovedAway() {
		t.Fatalf("freshly entered Controlled state must start with hasMovedAway=false")
	}
	s2 := s.WithMovedAway(true)
	if !s2.HasMovedAway() {
		t.Fatalf("WithMovedAway(true) should set the flag")
	}
	if s.HasMovedAway() {
		t.Fatalf("WithMovedAway must not mutate the receiver")
	}
}

func TestPeerIDPanicsOnLocal(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic calling PeerID on Local state")
		}
	}()
	NewLocal().PeerID()
}
