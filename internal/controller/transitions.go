package controller

import (
	"fmt"
	"log"
	"time"

	"github.com/mouseshare/mouseshare/internal/arrangement"
	"github.com/mouseshare/mouseshare/internal/capture"
	"github.com/mouseshare/mouseshare/internal/codec"
	"github.com/mouseshare/mouseshare/internal/config"
	"github.com/mouseshare/mouseshare/internal/controlstate"
	"github.com/mouseshare/mouseshare/internal/injection"
	"github.com/mouseshare/mouseshare/internal/peer"
)

// OnEdgeArrival implements capture.Sink. It is called from the OS callback
// thread, so it only hands off to a goroutine before doing anything that
// might block (a transport write, a mutex already held by a slower path).
func (c *Controller) OnEdgeArrival(hit capture.EdgeHit) {
	go c.handleEdgeArrival(hit)
}

// OnEscape implements capture.Sink.
func (c *Controller) OnEscape() {
	go c.forceControllingToLocal("Escaped to local control")
}

// OnEvent implements capture.Sink: while Controlling, every captured event
// is appended to the batch queue for the active peer. The append itself is
// cheap (a mutex and a slice operation, no I/O) so this stays safe to call
// directly from the OS callback thread.
func (c *Controller) OnEvent(e codec.Event) {
	c.mu.Lock()
	st := c.state
	c.mu.Unlock()
	if !st.IsControlling() {
		return
	}
	if c.batch.append(st.PeerID(), e) {
		c.flushBatch()
	}
}

func (c *Controller) handleEdgeArrival(hit capture.EdgeHit) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.state.IsLocal() {
		return
	}
	if time.Now().Before(c.cooldownUntil) {
		return
	}

	targetID, ok := c.resolveEdgeTargetLocked(hit.Edge)
	if !ok {
		return
	}
	p, ok := c.deps.Registry.Get(targetID)
	if !ok || p.State() != peer.Connected {
		return
	}

	c.localToControllingLocked(p, hit)
}

// resolveEdgeTargetLocked looks up the arrangement for a peer on this edge,
// falling back to spec.md section 4.7's auto-link policy: if exactly one
// peer is connected and the geometric/legacy lookup both miss, the edge
// auto-binds to that peer and the binding is persisted.
func (c *Controller) resolveEdgeTargetLocked(edge arrangement.Edge) (peer.ID, bool) {
	if id, ok := c.deps.Arrangement.PeerForEdge(edge); ok {
		return id, true
	}

	connected := c.deps.Registry.Connected()
	if len(connected) != 1 {
		return peer.ID{}, false
	}
	var only peer.ID
	for id := range connected {
		only = id
	}

	c.deps.Arrangement.SetEdgeLink(edge, only)
	c.persistEdgeLinks()
	return only, true
}

func (c *Controller) persistEdgeLinks() {
	links := c.deps.Arrangement.EdgeLinks()
	out := make([]config.EdgeLinkPosition, len(links))
	for i, l := range links {
		out[i] = config.EdgeLinkPosition{Edge: int(l.Edge), PeerID: l.PeerID.String()}
	}
	if err := c.deps.Settings.SetEdgeLinks(out); err != nil {
		log.Printf("Controller: failed to persist edge links: %v", err)
	}
}

// localToControllingLocked implements spec.md section 4.7's Local ->
// Controlling transition. Caller holds c.mu.
func (c *Controller) localToControllingLocked(p *peer.Peer, hit capture.EdgeHit) {
	oppositeEdge := hit.Edge.Opposite()
	entryParallel, _ := c.deps.Arrangement.EntryPositionForEdge(hit.NormalizedPos, p.ID(), hit.Edge)
	relX, relY := edgeRelativeCoords(oppositeEdge, entryParallel)

	c.deps.Injector.SetCursorVisible(false)
	c.deps.Injector.ParkCursor()
	c.deps.Capture.SetControlling(false)

	c.state = controlstate.NewControlling(p.ID(), hit.Edge, hit.NormalizedPos)
	p.SetState(peer.Controlling)
	c.gen++
	c.batch.reset()

	if err := c.deps.Transport.Send(p.ID(), []codec.Event{codec.NewScreenEnter(uint8(oppositeEdge), relX, relY)}); err != nil {
		c.reportStatus(fmt.Sprintf("Failed to enter %s: %v", p.Name(), err))
		c.localFromControllingLocked()
		return
	}

	c.armFailsafeLocked(p.ID())
	c.reportStatus(fmt.Sprintf("Controlling %s", p.Name()))
}

// ForceLocal returns to Local from either Controlling or Controlled,
// wired as the global emergency-escape hotkey's callback (spec.md section
// 7's supplemented "panic" shortcut, independent of Capture's own
// per-session escape key handled by OnEscape).
func (c *Controller) ForceLocal() {
	c.mu.Lock()
	st := c.state
	c.mu.Unlock()

	switch st.Kind() {
	case controlstate.Controlling:
		c.forceControllingToLocal("Forced to local via emergency hotkey")
	case controlstate.Controlled:
		c.forceControlledToLocal()
	}
}

// forceControllingToLocal implements the Controlling -> Local triggers that
// do not already hold c.mu: escape, lost connection, heartbeat silence, a
// ScreenLeave from the peer, and ForceLocal. A failed send happens with c.mu
// held and calls localFromControllingLocked directly.
func (c *Controller) forceControllingToLocal(status string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.state.IsControlling() {
		return
	}
	c.localFromControllingLocked()
	c.reportStatus(status)
}

// localFromControllingLocked performs the side effects common to every
// Controlling -> Local path. Caller holds c.mu and has already verified
// c.state.IsControlling().
func (c *Controller) localFromControllingLocked() {
	st := c.state
	peerID := st.PeerID()
	exitEdge := st.ExitEdge()
	exitPos := st.ExitPosition()

	c.cancelFailsafeLocked()
	c.batch.reset()

	c.deps.Capture.SetControlling(true)
	c.deps.Injector.WarpToEdge(exitEdge, exitPos)
	c.deps.Injector.SetCursorVisible(true)

	c.state = controlstate.NewLocal()
	c.cooldownUntil = time.Now().Add(cooldownWindow)
	c.gen++

	if p, ok := c.deps.Registry.Get(peerID); ok && p.State() == peer.Controlling {
		p.SetState(peer.Connected)
	}

	c.deps.Transport.Send(peerID, []codec.Event{codec.NewScreenLeave(uint8(exitEdge.Opposite()))})
}

// onScreenEnter implements spec.md section 4.7's Local -> Controlled
// transition, triggered by receiving a ScreenEnter event from a connected
// peer.
func (c *Controller) onScreenEnter(from peer.ID, ev codec.ScreenEnterData) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.state.IsLocal() {
		return
	}
	p, ok := c.deps.Registry.Get(from)
	if !ok || p.State() != peer.Connected {
		return
	}

	entryEdge := arrangement.Edge(ev.Edge)
	parallel := edgeParallelValue(entryEdge, ev.RelEntryX, ev.RelEntryY)
	bounds := c.localInjectionBoundsLocked()

	c.deps.Capture.SetControlling(false)
	c.deps.Injector.WarpToEdge(entryEdge, parallel)
	c.deps.Injector.SetCursorVisible(true)

	warpPoint := injection.PointForEdge(bounds, entryEdge, parallel)
	c.controlledPos = capture.Point{X: warpPoint.X, Y: warpPoint.Y}

	c.state = controlstate.NewControlled(from, entryEdge)
	p.SetState(peer.Controlled)
	c.gen++

	c.deps.Transport.Send(from, []codec.Event{codec.NewScreenEnterAck(ev.Edge)})
	c.reportStatus(fmt.Sprintf("Controlled by %s", p.Name()))
}

// forceControlledToLocal implements the Controlled -> Local triggers that
// are not the return-edge detector itself: connection error or peer
// disconnect (spec.md section 4.7).
func (c *Controller) forceControlledToLocal() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.state.IsControlled() {
		return
	}
	c.localFromControlledLocked(true)
}

// localFromControlledLocked performs the side effects common to every
// Controlled -> Local path. Caller holds c.mu.
func (c *Controller) localFromControlledLocked(notifyPeer bool) {
	st := c.state
	peerID := st.PeerID()
	entryEdge := st.EntryEdge()

	c.deps.Capture.SetControlling(true)

	c.state = controlstate.NewLocal()
	c.gen++

	if p, ok := c.deps.Registry.Get(peerID); ok && p.State() == peer.Controlled {
		p.SetState(peer.Connected)
	}

	if notifyPeer {
		c.deps.Transport.Send(peerID, []codec.Event{codec.NewScreenLeave(uint8(entryEdge))})
	}
}

// onEvents is wired as Transport's OnEvents callback: the receive pipeline
// delivers every event from one peer's packet, in order, to the Controller.
func (c *Controller) onEvents(from peer.ID, events []codec.Event) {
	if p, ok := c.deps.Registry.Get(from); ok {
		p.Touch()
		p.RecordReceived()
	}

	for _, e := range events {
		switch e.Kind {
		case codec.EventScreenEnter:
			c.onScreenEnter(from, e.ScreenEnter)
		case codec.EventScreenEnterAck:
			c.onScreenEnterAck(from)
		case codec.EventScreenLeave:
			c.onScreenLeave(from)
		case codec.EventHeartbeat:
			// lastSeen already touched above; nothing else to do.
		case codec.EventClipboardUpdate:
			if c.deps.Settings.Get().ClipboardSyncEnabled && c.deps.Clipboard != nil {
				c.deps.Clipboard.ApplyRemote(e.ClipboardUpdate.Blob, e.ClipboardUpdate.MimeTag)
			}
		default:
			c.applyInjectedEvent(from, e)
		}
	}
}

// onScreenEnterAck cancels the failsafe for this entry: once the peer has
// acknowledged, silenceTimeout (checked on the heartbeat loop) takes over as
// the only watchdog for the rest of the session.
func (c *Controller) onScreenEnterAck(from peer.ID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.state.IsControlling() || c.state.PeerID() != from {
		return
	}
	c.cancelFailsafeLocked()
	if p, ok := c.deps.Registry.Get(from); ok {
		p.Touch()
	}
}

func (c *Controller) onScreenLeave(from peer.ID) {
	c.mu.Lock()
	st := c.state
	c.mu.Unlock()
	if st.IsControlling() && st.PeerID() == from {
		c.forceControllingToLocal(fmt.Sprintf("%s returned control", peerLabel(c.deps.Registry, from)))
	}
}

// applyInjectedEvent implements the Controlled -> Controlled event
// application transition (spec.md section 4.7): forward every non-meta
// event to Injection, and for MouseMove/MouseDrag additionally track the
// synthetic cursor position and run return-edge detection.
func (c *Controller) applyInjectedEvent(from peer.ID, e codec.Event) {
	c.mu.Lock()
	st := c.state
	valid := st.IsControlled() && st.PeerID() == from && !e.IsMeta()
	c.mu.Unlock()
	if !valid {
		return
	}

	c.deps.Injector.Inject(e)

	dx, dy, moved := moveDelta(e)
	if !moved {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.state.IsControlled() || c.state.PeerID() != from {
		return
	}
	c.controlledPos.X += dx
	c.controlledPos.Y += dy
	c.clampControlledPosLocked()
	c.checkReturnEdgeLocked()
}

// moveDelta extracts the movement delta carried by a MouseMove or
// MouseDrag event; other kinds report ok=false.
func moveDelta(e codec.Event) (dx, dy float64, ok bool) {
	switch e.Kind {
	case codec.EventMouseMove:
		return e.MouseMove.DX, e.MouseMove.DY, true
	case codec.EventMouseDrag:
		return e.MouseButton.DragDX, e.MouseButton.DragDY, true
	default:
		return 0, 0, false
	}
}

func (c *Controller) clampControlledPosLocked() {
	b := c.localInjectionBoundsLocked()
	if c.controlledPos.X < b.MinX {
		c.controlledPos.X = b.MinX
	}
	if c.controlledPos.X > b.MaxX {
		c.controlledPos.X = b.MaxX
	}
	if c.controlledPos.Y < b.MinY {
		c.controlledPos.Y = b.MinY
	}
	if c.controlledPos.Y > b.MaxY {
		c.controlledPos.Y = b.MaxY
	}
}

func (c *Controller) localInjectionBoundsLocked() injection.Bounds {
	minX, maxX, minY, maxY := c.deps.Arrangement.CombinedLocalBounds()
	return injection.Bounds{MinX: minX, MinY: minY, MaxX: maxX, MaxY: maxY}
}

// checkReturnEdgeLocked implements spec.md section 4.7's two-phase
// return-edge rule: the synthetic cursor must first move >=300 virtual px
// away from entryEdge, then coming back within 3px of entryEdge fires the
// return. Caller holds c.mu and has already verified state is Controlled.
func (c *Controller) checkReturnEdgeLocked() {
	dist := c.distanceFromEntryEdgeLocked()

	if !c.state.HasMovedAway() {
		if dist >= returnMoveAwayThreshold {
			c.state = c.state.WithMovedAway(true)
		}
		return
	}

	if dist <= returnNearThreshold {
		c.localFromControlledLocked(true)
		c.reportStatus("Returned control")
	}
}

// distanceFromEntryEdgeLocked measures the tracked synthetic cursor's
// distance from the entry edge in local display bounds. Caller holds c.mu.
func (c *Controller) distanceFromEntryEdgeLocked() float64 {
	b := c.localInjectionBoundsLocked()
	switch c.state.EntryEdge() {
	case arrangement.EdgeLeft:
		return c.controlledPos.X - b.MinX
	case arrangement.EdgeRight:
		return b.MaxX - c.controlledPos.X
	case arrangement.EdgeTop:
		return c.controlledPos.Y - b.MinY
	case arrangement.EdgeBottom:
		return b.MaxY - c.controlledPos.Y
	default:
		return 0
	}
}

// edgeRelativeCoords maps a single parallel-axis normalized coordinate into
// the (relX, relY) pair ScreenEnterData carries, fixing the perpendicular
// axis to the edge being entered (spec.md section 9's Open Questions: always
// use the parallel-axis normalized coordinate, never degenerate to 0.5).
func edgeRelativeCoords(edge arrangement.Edge, parallel float64) (relX, relY float64) {
	switch edge {
	case arrangement.EdgeLeft:
		return 0, parallel
	case arrangement.EdgeRight:
		return 1, parallel
	case arrangement.EdgeTop:
		return parallel, 0
	case arrangement.EdgeBottom:
		return parallel, 1
	default:
		return 0.5, 0.5
	}
}

// edgeParallelValue is edgeRelativeCoords's inverse: given the edge being
// entered and the (relX, relY) carried on the wire, recover the single
// parallel-axis coordinate.
func edgeParallelValue(edge arrangement.Edge, relX, relY float64) float64 {
	switch edge {
	case arrangement.EdgeLeft, arrangement.EdgeRight:
		return relY
	case arrangement.EdgeTop, arrangement.EdgeBottom:
		return relX
	default:
		return 0.5
	}
}
