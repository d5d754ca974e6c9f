package controller

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/mouseshare/mouseshare/internal/arrangement"
	"github.com/mouseshare/mouseshare/internal/capture"
	"github.com/mouseshare/mouseshare/internal/codec"
	"github.com/mouseshare/mouseshare/internal/config"
	"github.com/mouseshare/mouseshare/internal/controlstate"
	"github.com/mouseshare/mouseshare/internal/injection"
	"github.com/mouseshare/mouseshare/internal/peer"
	"github.com/mouseshare/mouseshare/internal/transport"
)

// fakeSource is a no-op capture.Source that just records calls, used
// wherever a test constructs a Controller but drives transitions directly
// rather than through a real OS tap.
type fakeSource struct {
	sink        capture.Sink
	controlling bool
	startErr    error
}

func (f *fakeSource) Start(sink capture.Sink) error {
	f.sink = sink
	return f.startErr
}
func (f *fakeSource) Stop() error { return nil }
func (f *fakeSource) SetControlling(controlling bool) {
	f.controlling = controlling
}
func (f *fakeSource) SetBounds(capture.Bounds, float64, float64, time.Duration) {}

// fakeInjector records every call so tests can assert on sequencing without
// touching a real display.
type fakeInjector struct {
	injected       []codec.Event
	warpedEdge     arrangement.Edge
	warpedPos      float64
	warpCalls      int
	cursorVisible  bool
	parkCalls      int
}

func (f *fakeInjector) Inject(e codec.Event)    { f.injected = append(f.injected, e) }
func (f *fakeInjector) MoveTo(injection.Point)  {}
func (f *fakeInjector) ParkCursor()             { f.parkCalls++ }
func (f *fakeInjector) WarpToEdge(edge arrangement.Edge, relativePos float64) {
	f.warpCalls++
	f.warpedEdge, f.warpedPos = edge, relativePos
}
func (f *fakeInjector) SetCursorVisible(v bool)  { f.cursorVisible = v }
func (f *fakeInjector) SetBounds(injection.Bounds) {}

func newTestController(t *testing.T) (*Controller, *fakeInjector, *fakeSource) {
	t.Helper()
	inj := &fakeInjector{}
	src := &fakeSource{}
	tr := transport.New(transport.LocalInfo{PeerID: peer.NewID(), PeerName: "local"}, transport.Callbacks{})
	settings := config.NewManagerAt(filepath.Join(t.TempDir(), "settings.json"))

	c := New(Deps{
		Registry:    peer.NewRegistry(),
		Arrangement: arrangement.New(),
		Transport:   tr,
		Injector:    inj,
		Capture:     src,
		Settings:    settings,
	})
	return c, inj, src
}

func connectedPeer(c *Controller, state peer.State) *peer.Peer {
	p := peer.New(peer.NewID(), "Remote", peer.Endpoint{}, peer.ScreenDims{Width: 1920, Height: 1080})
	p.SetState(state)
	c.deps.Registry.Put(p)
	return p
}

func TestHandleEdgeArrivalBlockedDuringCooldown(t *testing.T) {
	c, _, _ := newTestController(t)
	c.mu.Lock()
	c.cooldownUntil = time.Now().Add(time.Hour)
	c.mu.Unlock()

	c.handleEdgeArrival(capture.EdgeHit{Edge: arrangement.EdgeRight, NormalizedPos: 0.5})

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.state.IsLocal() {
		t.Fatalf("expected cooldown to block the transition, got state kind %v", c.state.Kind())
	}
}

func TestHandleEdgeArrivalRequiresConnectedPeer(t *testing.T) {
	c, _, _ := newTestController(t)
	connectedPeer(c, peer.Discovered) // not yet Connected
	c.deps.Arrangement.SetEdgeLink(arrangement.EdgeRight, c.deps.Registry.All()[0].ID())

	c.handleEdgeArrival(capture.EdgeHit{Edge: arrangement.EdgeRight, NormalizedPos: 0.5})

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.state.IsLocal() {
		t.Fatalf("expected no transition against a non-Connected peer")
	}
}

func TestAutoLinkBindsSoleConnectedPeerAndPersists(t *testing.T) {
	c, _, _ := newTestController(t)
	p := connectedPeer(c, peer.Connected)

	c.mu.Lock()
	id, ok := c.resolveEdgeTargetLocked(arrangement.EdgeLeft)
	c.mu.Unlock()
	if !ok || id != p.ID() {
		t.Fatalf("expected auto-link to resolve to the sole connected peer")
	}

	links := c.deps.Arrangement.EdgeLinks()
	if len(links) != 1 || links[0].Edge != arrangement.EdgeLeft || links[0].PeerID != p.ID() {
		t.Fatalf("expected the auto-link to be recorded in the arrangement, got %+v", links)
	}
	if got := c.deps.Settings.Get().EdgeLinks; len(got) != 1 || got[0].PeerID != p.ID().String() {
		t.Fatalf("expected the auto-link to be persisted to settings, got %+v", got)
	}
}

func TestFailsafeReArmsOnceWhenPeerRecentlyHeardFromThenForcesLocal(t *testing.T) {
	c, inj, _ := newTestController(t)
	p := connectedPeer(c, peer.Controlling)

	c.mu.Lock()
	c.state = controlstate.NewControlling(p.ID(), arrangement.EdgeRight, 0.4)
	c.armFailsafeLocked(p.ID())
	gen := c.gen
	c.mu.Unlock()

	// A heartbeat (or any other frame) arrived since the timer was armed,
	// so the peer is not stale even though its ScreenEnterAck never came.
	p.Touch()

	c.onFailsafeFired(gen, p.ID())
	c.mu.Lock()
	if !c.state.IsControlling() {
		t.Fatalf("expected the first firing to re-arm rather than force local, since the peer was recently heard from")
	}
	if c.failsafeRetries != 1 {
		t.Fatalf("expected exactly one retry recorded, got %d", c.failsafeRetries)
	}
	c.mu.Unlock()

	// Still responsive, but the single re-arm budget is already spent.
	p.Touch()

	c.onFailsafeFired(gen, p.ID())
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.state.IsLocal() {
		t.Fatalf("expected the second firing to force a return to local once the retry budget is spent")
	}
	if inj.warpCalls == 0 {
		t.Fatalf("expected the forced return to warp the cursor back to the exit edge")
	}
}

func TestFailsafeForcesLocalImmediatelyWhenPeerIsStale(t *testing.T) {
	c, _, _ := newTestController(t)
	p := connectedPeer(c, peer.Controlling)

	c.mu.Lock()
	c.state = controlstate.NewControlling(p.ID(), arrangement.EdgeRight, 0.4)
	c.armFailsafeLocked(p.ID())
	gen := c.gen
	c.mu.Unlock()

	// Nothing at all has been heard from the peer since it was last touched
	// at connection time; let that cross the failsafe window so SilentFor
	// reports it stale, mirroring spec.md's "failsafe timer expiry with
	// stale peer lastSeen" trigger and Testable Property 7.
	time.Sleep(failsafeTimeout + 50*time.Millisecond)

	c.onFailsafeFired(gen, p.ID())
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.state.IsLocal() {
		t.Fatalf("expected a stale peer to force a return to local on the first firing, with no retry")
	}
	if c.failsafeRetries != 0 {
		t.Fatalf("expected no retry to be spent on a stale peer, got %d", c.failsafeRetries)
	}
}

func TestScreenEnterAckCancelsFailsafe(t *testing.T) {
	c, _, _ := newTestController(t)
	p := connectedPeer(c, peer.Controlling)

	c.mu.Lock()
	c.state = controlstate.NewControlling(p.ID(), arrangement.EdgeRight, 0.4)
	c.armFailsafeLocked(p.ID())
	c.mu.Unlock()

	c.onScreenEnterAck(p.ID())

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.awaitingAck {
		t.Fatalf("expected onScreenEnterAck to clear awaitingAck")
	}
	if c.failsafeTimer != nil {
		t.Fatalf("expected onScreenEnterAck to cancel the pending failsafe timer")
	}
}

func TestReturnEdgeRequiresMovingAwayFirst(t *testing.T) {
	c, _, _ := newTestController(t)
	p := connectedPeer(c, peer.Controlled)

	c.mu.Lock()
	c.state = controlstate.NewControlled(p.ID(), arrangement.EdgeLeft)
	c.deps.Arrangement.InitializeLocalDisplays([]arrangement.LocalDisplay{
		{ID: "local", W: 1920, H: 1080, IsPrimary: true},
	})
	c.controlledPos = capture.Point{X: 1, Y: 500} // right at the entry edge already
	c.mu.Unlock()

	c.applyInjectedEvent(p.ID(), codec.NewMouseMove(0, 0, 0))

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.state.IsControlled() {
		t.Fatalf("a return at the edge without first moving away must not fire")
	}
}

func TestReturnEdgeFiresAfterMovingAwayThenBack(t *testing.T) {
	c, _, src := newTestController(t)
	p := connectedPeer(c, peer.Controlled)

	c.deps.Arrangement.InitializeLocalDisplays([]arrangement.LocalDisplay{
		{ID: "local", W: 1920, H: 1080, IsPrimary: true},
	})
	c.mu.Lock()
	c.state = controlstate.NewControlled(p.ID(), arrangement.EdgeLeft)
	c.controlledPos = capture.Point{X: 1, Y: 500}
	c.mu.Unlock()

	// Move far enough away from the left edge to arm the return detector.
	c.applyInjectedEvent(p.ID(), codec.NewMouseMove(350, 0, 0))
	c.mu.Lock()
	if !c.state.HasMovedAway() {
		c.mu.Unlock()
		t.Fatalf("expected hasMovedAway after crossing the threshold")
	}
	c.mu.Unlock()

	// Come back within the near threshold of the left edge.
	c.applyInjectedEvent(p.ID(), codec.NewMouseMove(-349, 0, 0))

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.state.IsLocal() {
		t.Fatalf("expected the return-edge rule to fire and return control to local")
	}
	if !src.controlling {
		t.Fatalf("expected capture to resume local edge detection after the return")
	}
}

func TestEdgeRelativeCoordsRoundTrip(t *testing.T) {
	for _, edge := range []arrangement.Edge{arrangement.EdgeLeft, arrangement.EdgeRight, arrangement.EdgeTop, arrangement.EdgeBottom} {
		const parallel = 0.37
		relX, relY := edgeRelativeCoords(edge, parallel)
		if got := edgeParallelValue(edge, relX, relY); got != parallel {
			t.Fatalf("edge %v: round trip got %v, want %v", edge, got, parallel)
		}
	}
}

func TestBatchQueueCoalescesMovesAndFlushesImmediatelyOnButton(t *testing.T) {
	var b batchQueue
	id := peer.NewID()

	if b.append(id, codec.NewMouseMove(1, 2, 0)) {
		t.Fatalf("a move must not trigger an immediate flush")
	}
	if b.append(id, codec.NewMouseMove(3, 4, 0)) {
		t.Fatalf("a second move must still not trigger an immediate flush")
	}
	if !b.append(id, codec.NewMouseDown(codec.ButtonLeft, 1, 0)) {
		t.Fatalf("a button event must trigger an immediate flush")
	}

	events := b.drain()
	if len(events) != 2 {
		t.Fatalf("expected the coalesced move plus the button event, got %d events", len(events))
	}
	if events[0].Kind != codec.EventMouseMove || events[0].MouseMove.DX != 4 || events[0].MouseMove.DY != 6 {
		t.Fatalf("expected summed move deltas (4,6), got %+v", events[0].MouseMove)
	}
	if events[1].Kind != codec.EventMouseDown {
		t.Fatalf("expected the button event to follow the coalesced move")
	}
}

func TestForceLocalReturnsFromControlling(t *testing.T) {
	c, inj, _ := newTestController(t)
	p := connectedPeer(c, peer.Controlling)

	c.mu.Lock()
	c.state = controlstate.NewControlling(p.ID(), arrangement.EdgeRight, 0.4)
	c.mu.Unlock()

	c.ForceLocal()

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.state.IsLocal() {
		t.Fatalf("expected ForceLocal to return to Local from Controlling")
	}
	if inj.warpCalls == 0 {
		t.Fatalf("expected ForceLocal to warp the cursor back to the exit edge")
	}
}

func TestForceLocalReturnsFromControlled(t *testing.T) {
	c, _, src := newTestController(t)
	p := connectedPeer(c, peer.Controlled)

	c.mu.Lock()
	c.state = controlstate.NewControlled(p.ID(), arrangement.EdgeLeft)
	c.mu.Unlock()

	c.ForceLocal()

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.state.IsLocal() {
		t.Fatalf("expected ForceLocal to return to Local from Controlled")
	}
	if !src.controlling {
		t.Fatalf("expected capture to resume local edge detection after ForceLocal")
	}
}

func TestForceLocalIsNoopWhileAlreadyLocal(t *testing.T) {
	c, _, _ := newTestController(t)

	c.ForceLocal()

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.state.IsLocal() {
		t.Fatalf("expected ForceLocal to leave an already-Local state untouched")
	}
}

func TestBroadcastClipboardUpdateSkippedWhenSyncDisabled(t *testing.T) {
	c, _, _ := newTestController(t)
	connectedPeer(c, peer.Connected)

	s := c.deps.Settings.Get()
	s.ClipboardSyncEnabled = false
	c.deps.Settings.Set(s)

	// With sync disabled this must return before touching Transport/Registry
	// at all; no live connection exists, so reaching Transport.Send would be
	// harmless but the point under test is that the gate fires first.
	c.BroadcastClipboardUpdate([]byte("hello"), "text/plain")
}

func TestBatchQueueResetDropsPendingOnPeerSwitch(t *testing.T) {
	var b batchQueue
	first, second := peer.NewID(), peer.NewID()

	b.append(first, codec.NewMouseMove(10, 10, 0))
	b.append(second, codec.NewMouseMove(1, 1, 0))

	events := b.drain()
	if len(events) != 1 || events[0].MouseMove.DX != 1 {
		t.Fatalf("switching peers mid-batch should drop the first peer's pending deltas, got %+v", events)
	}
}
