// Package controlstate defines the ControlState sum type from spec.md
// section 3: exactly one of Local, Controlling(peer), Controlled(peer) at
// any instant on a host, with the invariants that follow from that. The
// type makes illegal states unrepresentable (spec.md section 9's "Design
// Notes": prefer a tagged sum at the core boundary) — there is no field you
// can read that means something different depending on which variant is
// active.
package controlstate

import (
	"github.com/mouseshare/mouseshare/internal/arrangement"
	"github.com/mouseshare/mouseshare/internal/peer"
)

// Kind discriminates the three ControlState variants.
type Kind int

const (
	Local Kind = iota
	Controlling
	Controlled
)

func (k Kind) String() string {
	switch k {
	case Local:
		return "local"
	case Controlling:
		return "controlling"
	case Controlled:
		return "controlled"
	default:
		return "unknown"
	}
}

// State is the immutable value describing the current ControlState. Zero
// value is Local. Construct non-Local states with the constructors below;
// there is deliberately no exported way to build a Controlling or
// Controlled value without the fields the invariant in spec.md section 3
// requires (peer id and edge/position).
type State struct {
	kind Kind

	// Controlling fields
	peerID       peer.ID
	exitEdge     arrangement.Edge
	exitPosition float64 // normalized [0,1] along exitEdge

	// Controlled fields
	entryEdge   arrangement.Edge
	hasMovedAway bool
}

// NewLocal returns the Local state.
func NewLocal() State {
	return State{kind: Local}
}

// NewControlling returns a Controlling(peerId, exitEdge, exitPosition) state.
func NewControlling(id peer.ID, exitEdge arrangement.Edge, exitPosition float64) State {
	return State{kind: Controlling, peerID: id, exitEdge: exitEdge, exitPosition: exitPosition}
}

// NewControlled returns a Controlled(peerId, entryEdge, hasMovedAway=false) state.
func NewControlled(id peer.ID, entryEdge arrangement.Edge) State {
	return State{kind: Controlled, peerID: id, entryEdge: entryEdge, hasMovedAway: false}
}

func (s State) Kind() Kind { return s.kind }

func (s State) IsLocal() bool      { return s.kind == Local }
func (s State) IsControlling() bool { return s.kind == Controlling }
func (s State) IsControlled() bool  { return s.kind == Controlled }

// PeerID returns the active counterparty for a non-Local state. Calling it
// on Local returns the zero ID; callers must check Kind first, same as they
// must for ExitEdge/EntryEdge below — this mirrors a Rust-style enum's
// "only valid for this variant" fields, enforced here by convention plus
// panics in the accessors that would otherwise silently return garbage.
func (s State) PeerID() peer.ID {
	if s.kind == Local {
		panic("controlstate: PeerID called on Local state")
	}
	return s.peerID
}

func (s State) ExitEdge() arrangement.Edge {
	if s.kind != Controlling {
		panic("controlstate: ExitEdge called on non-Controlling state")
	}
	return s.exitEdge
}

func (s State) ExitPosition() float64 {
	if s.kind != Controlling {
		panic("controlstate: ExitPosition called on non-Controlling state")
	}
	return s.exitPosition
}

func (s State) EntryEdge() arrangement.Edge {
	if s.kind != Controlled {
		panic("controlstate: EntryEdge called on non-Controlled state")
	}
	return s.entryEdge
}

func (s State) HasMovedAway() bool {
	if s.kind != Controlled {
		panic("controlstate: HasMovedAway called on non-Controlled state")
	}
	return s.hasMovedAway
}

// WithMovedAway returns a copy of a Controlled state with hasMovedAway set,
// implementing the two-phase return-edge rule (spec.md section 4.7): the
// synthetic cursor must move >=300px away from entryEdge before a return to
// within 3px of entryEdge is allowed to fire.
func (s State) WithMovedAway(moved bool) State {
	if s.kind != Controlled {
		panic("controlstate: WithMovedAway called on non-Controlled state")
	}
	s.hasMovedAway = moved
	return s
}
