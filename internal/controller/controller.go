// Package controller implements the orchestrator from spec.md section 4.7:
// it holds the control-state machine, routes captured events to Transport
// while Controlling, routes received events to Injection while Controlled,
// arms failsafe timers, and drives heartbeats and clipboard broadcast.
//
// The concurrency model follows spec.md section 5's "parallel with a single
// serialization point": rather than a command channel, this package holds
// one mutex for the duration of every state transition, the same shape the
// teacher's own Switcher uses (a single sync.Mutex held across a whole
// switch operation, with OS/network side effects run while holding it).
// Capture delivers from an OS callback thread and must never block, so the
// two Sink methods that can trigger a transition (OnEdgeArrival, OnEscape)
// hand off to a goroutine before touching the mutex; OnEvent itself only
// ever appends to the lock-free-at-the-call-site batch queue.
package controller

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/mouseshare/mouseshare/internal/arrangement"
	"github.com/mouseshare/mouseshare/internal/capture"
	"github.com/mouseshare/mouseshare/internal/clipboardbridge"
	"github.com/mouseshare/mouseshare/internal/config"
	"github.com/mouseshare/mouseshare/internal/controlstate"
	"github.com/mouseshare/mouseshare/internal/injection"
	"github.com/mouseshare/mouseshare/internal/peer"
	"github.com/mouseshare/mouseshare/internal/transport"
)

// Timer defaults from spec.md section 6.
const (
	batchFlushInterval = 8 * time.Millisecond
	heartbeatInterval  = 1 * time.Second
	failsafeTimeout    = 2 * time.Second
	silenceTimeout     = 5 * time.Second
	cooldownWindow     = 500 * time.Millisecond

	// returnMoveAwayThreshold and returnNearThreshold are the two-phase
	// return-edge rule's distances (spec.md section 4.7).
	returnMoveAwayThreshold = 300.0
	returnNearThreshold     = 3.0
)

// Deps are the components the Controller orchestrates, each already
// constructed and, where relevant, already running its own I/O loop.
type Deps struct {
	LocalID     peer.ID
	LocalName   string
	Registry    *peer.Registry
	Arrangement *arrangement.Arrangement
	Transport   *transport.Transport
	Injector    injection.Injector
	Capture     capture.Source
	Clipboard   *clipboardbridge.Bridge
	Settings    *config.Manager

	// OnStatus reports the user-visible status strings from spec.md section
	// 7 ("Running", "Connecting to X", "Controlling X", ...). Optional.
	OnStatus func(status string)
}

// Controller is the single-writer owner of ControlState and Settings
// described in spec.md section 3.
type Controller struct {
	deps Deps

	mu              sync.Mutex
	state           controlstate.State
	cooldownUntil   time.Time
	gen             uint64 // incremented on every transition; timers check it before acting
	failsafeTimer   *time.Timer
	awaitingAck     bool
	failsafeRetries int

	// controlledPos tracks the synthetic cursor position while Controlled,
	// since Injector exposes only write primitives (Inject/WarpToEdge), not
	// a position getter. Updated from received MouseMove/MouseDrag deltas,
	// seeded from the warp target on entry. Used only by the return-edge
	// detector.
	controlledPos capture.Point

	batch batchQueue

	stopOnce sync.Once
	stopCh   chan struct{}
}

// New constructs a Controller in the Local state. Call Run to start its
// timer loops and wire itself as the Capture sink and Transport callback
// target.
func New(deps Deps) *Controller {
	return &Controller{
		deps:   deps,
		state:  controlstate.NewLocal(),
		stopCh: make(chan struct{}),
	}
}

// Run wires the Controller into Capture and Transport and starts the
// heartbeat/silence/batch-flush loops. It returns once setup is complete;
// the loops run on background goroutines until Stop is called.
func (c *Controller) Run() error {
	if err := c.deps.Capture.Start(c); err != nil {
		return fmt.Errorf("controller: capture start: %w", err)
	}
	c.applyBoundsToCapture()

	go c.heartbeatLoop()
	go c.batchFlushLoop()

	c.reportStatus("Running")
	return nil
}

// Stop tears down the capture tap and timer loops. Idempotent.
func (c *Controller) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
		c.deps.Capture.Stop()
	})
}

// SetClipboard wires the ClipboardBridge after construction, needed because
// the bridge's own onLocalChange callback is BroadcastClipboardUpdate, a
// Controller method, so the bridge cannot be built until the Controller
// already exists.
func (c *Controller) SetClipboard(b *clipboardbridge.Bridge) {
	c.deps.Clipboard = b
}

// State returns a snapshot of the current ControlState.
func (c *Controller) State() controlstate.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) reportStatus(status string) {
	log.Printf("Controller: %s", status)
	if c.deps.OnStatus != nil {
		c.deps.OnStatus(status)
	}
}

// applyBoundsToCapture pushes Arrangement's combined local bounds and the
// current Settings thresholds down to Capture, called at startup and
// whenever either changes.
func (c *Controller) applyBoundsToCapture() {
	minX, maxX, minY, maxY := c.deps.Arrangement.CombinedLocalBounds()
	s := c.deps.Settings.Get()
	bounds := capture.Bounds{MinX: minX, MinY: minY, MaxX: maxX, MaxY: maxY}
	delay := time.Duration(s.TransitionDelayMS) * time.Millisecond
	c.deps.Capture.SetBounds(bounds, s.EdgeThreshold, s.CornerDeadZone, delay)
	c.deps.Injector.SetBounds(injection.Bounds{MinX: minX, MinY: minY, MaxX: maxX, MaxY: maxY})
}

// TransportCallbacks returns the callback set this Controller wants wired
// into its Transport instance.
func (c *Controller) TransportCallbacks() transport.Callbacks {
	return transport.Callbacks{
		OnHandshakeAccepted: c.onHandshakeAccepted,
		OnEvents:            c.onEvents,
		OnDisconnected:      c.onDisconnected,
	}
}

func (c *Controller) onHandshakeAccepted(id peer.ID, name string, screen peer.ScreenDims) {
	p, ok := c.deps.Registry.Get(id)
	if !ok {
		p = peer.New(id, name, peer.Endpoint{}, screen)
		c.deps.Registry.Put(p)
	}
	p.SetName(name)
	p.SetScreen(screen)
	p.SetState(peer.Connected)
	p.Touch()
	c.deps.Arrangement.UpdateRemoteScreen(id, name, float64(screen.Width), float64(screen.Height))
	c.reportStatus(fmt.Sprintf("Connected to %s", name))
}

// onDisconnected implements spec.md section 4.3/4.7's disconnect recovery:
// clear the peer in Local, force a return to Local otherwise.
func (c *Controller) onDisconnected(id peer.ID) {
	if p, ok := c.deps.Registry.Get(id); ok {
		p.SetState(peer.Disconnected)
	}
	c.deps.Arrangement.RemoveStaleRemoteScreens(c.deps.Registry.Connected())

	c.mu.Lock()
	st := c.state
	c.mu.Unlock()

	switch {
	case st.IsControlling() && st.PeerID() == id:
		c.forceControllingToLocal(fmt.Sprintf("Lost connection to %s", peerLabel(c.deps.Registry, id)))
	case st.IsControlled() && st.PeerID() == id:
		c.forceControlledToLocal()
	default:
		c.deps.Registry.Delete(id)
	}
}

func peerLabel(reg *peer.Registry, id peer.ID) string {
	if p, ok := reg.Get(id); ok {
		return p.Name()
	}
	return id.String()
}

// Connect initiates an outbound connection to a discovered peer (spec.md
// section 4.7's auto-connect policy, and any explicit user-driven connect).
func (c *Controller) Connect(ctx context.Context, id peer.ID) error {
	p, ok := c.deps.Registry.Get(id)
	if !ok {
		return fmt.Errorf("controller: unknown peer %s", id)
	}
	p.SetState(peer.Connecting)
	c.reportStatus(fmt.Sprintf("Connecting to %s", p.Name()))

	_, err := c.deps.Transport.Connect(ctx, id, p.Endpoint())
	if err != nil {
		p.SetState(peer.Error)
		return err
	}
	return nil
}

// Disconnect closes the connection to a peer, wired as the tray's per-peer
// "Disconnect" action. Transport.Close tears down the connection; its
// receive loop exit fires OnDisconnected, which already forces a return to
// Local if that peer was the active counterparty (spec.md section 4.7).
func (c *Controller) Disconnect(id peer.ID) {
	c.deps.Transport.Close(id)
}

// MaybeAutoConnect implements spec.md section 4.7: "Auto-connect: on
// discovery, if Settings.autoConnect is true, the Controller initiates a
// connection." Intended to be wired as Discovery's OnPeerAdded callback.
func (c *Controller) MaybeAutoConnect(p *peer.Peer) {
	if !c.deps.Settings.Get().AutoConnect {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.Connect(ctx, p.ID()); err != nil {
			log.Printf("Controller: auto-connect to %s failed: %v", p.Name(), err)
		}
	}()
}

// OnPeerLost is wired as Discovery's OnPeerLost callback: an mDNS
// withdrawal is not itself a transport error, but if it is our active
// counterparty we treat it the same as a connection error.
func (c *Controller) OnPeerLost(id peer.ID) {
	c.onDisconnected(id)
}
