package controller

import (
	"fmt"
	"log"
	"time"

	"github.com/mouseshare/mouseshare/internal/codec"
	"github.com/mouseshare/mouseshare/internal/errkind"
	"github.com/mouseshare/mouseshare/internal/peer"
)

// batchFlushLoop drains the batch queue every 8ms while Controlling and
// sends whatever accumulated (spec.md section 4.7/6). Discrete events that
// triggered an immediate flush via OnEvent are already gone by the time
// this tick fires; this loop only ever has coalesced leftovers to send.
func (c *Controller) batchFlushLoop() {
	ticker := time.NewTicker(batchFlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.flushBatch()
		}
	}
}

func (c *Controller) flushBatch() {
	c.mu.Lock()
	st := c.state
	c.mu.Unlock()
	if !st.IsControlling() {
		return
	}

	events := c.batch.drain()
	if len(events) == 0 {
		return
	}
	if err := c.deps.Transport.Send(st.PeerID(), events); err != nil {
		log.Printf("Controller: send to %s failed: %v", peerLabel(c.deps.Registry, st.PeerID()), err)
	} else if p, ok := c.deps.Registry.Get(st.PeerID()); ok {
		p.RecordSent()
	}
}

// heartbeatLoop sends a Heartbeat to every connected peer once a second and
// checks the silence threshold on the peer currently Controlling (spec.md
// section 5/6).
func (c *Controller) heartbeatLoop() {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.sendHeartbeats()
			c.checkSilence()
		}
	}
}

func (c *Controller) sendHeartbeats() {
	for _, p := range c.deps.Registry.All() {
		switch p.State() {
		case peer.Connected, peer.Controlling, peer.Controlled:
		default:
			continue
		}
		if err := c.deps.Transport.Send(p.ID(), []codec.Event{codec.NewHeartbeat()}); err != nil {
			continue
		}
		p.RecordSent()
	}
}

// BroadcastClipboardUpdate sends a ClipboardUpdate to every connected peer,
// wired as ClipboardBridge's onLocalChange callback.
func (c *Controller) BroadcastClipboardUpdate(content []byte, mimeTag string) {
	if !c.deps.Settings.Get().ClipboardSyncEnabled {
		return
	}
	ev := codec.NewClipboardUpdate(content, mimeTag)
	for _, p := range c.deps.Registry.All() {
		switch p.State() {
		case peer.Connected, peer.Controlling, peer.Controlled:
		default:
			continue
		}
		if err := c.deps.Transport.Send(p.ID(), []codec.Event{ev}); err != nil {
			continue
		}
		p.RecordSent()
	}
}

// checkSilence implements spec.md section 5's silence threshold: while
// Controlling, if the remote has gone silenceTimeout without a heartbeat or
// any other frame, force a return to Local.
func (c *Controller) checkSilence() {
	c.mu.Lock()
	st := c.state
	c.mu.Unlock()
	if !st.IsControlling() {
		return
	}

	p, ok := c.deps.Registry.Get(st.PeerID())
	if !ok {
		return
	}
	if p.SilentFor() > silenceTimeout {
		p.RecordHeartbeatMissed()
		log.Printf("Controller: %v", fmt.Errorf("%w: %s silent for %s", errkind.ErrPeerSilent, p.Name(), p.SilentFor()))
		c.forceControllingToLocal(fmt.Sprintf("Lost heartbeat from %s", p.Name()))
	}
}

// armFailsafeLocked starts the 2s failsafe timer described in spec.md
// section 4.7/6. If no ScreenEnterAck arrives, onFailsafeFired re-arms it at
// most once, and only for a peer still being heard from; otherwise it forces
// a return to Local. Caller holds c.mu.
func (c *Controller) armFailsafeLocked(id peer.ID) {
	c.cancelFailsafeLocked()
	c.awaitingAck = true
	c.failsafeRetries = 0
	c.scheduleFailsafeLocked(id)
}

func (c *Controller) scheduleFailsafeLocked(id peer.ID) {
	gen := c.gen
	c.failsafeTimer = time.AfterFunc(failsafeTimeout, func() {
		c.onFailsafeFired(gen, id)
	})
}

// cancelFailsafeLocked stops any pending failsafe timer. Caller holds c.mu.
func (c *Controller) cancelFailsafeLocked() {
	if c.failsafeTimer != nil {
		c.failsafeTimer.Stop()
		c.failsafeTimer = nil
	}
	c.awaitingAck = false
	c.failsafeRetries = 0
}

// onFailsafeFired implements spec.md section 4.7's "failsafe timer expiry
// with stale peer lastSeen" trigger and Testable Property 7: a peer that has
// sent nothing at all within the failsafe window is stale and forces an
// immediate return to Local, with no retry. A peer that has been heard from
// since the timer was armed (any frame, including a heartbeat, bumps
// lastSeen via Touch) is still alive even though its ScreenEnterAck
// specifically never arrived, so it gets one re-arm before being forced
// local on a subsequent silent expiry.
func (c *Controller) onFailsafeFired(gen uint64, id peer.ID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gen != gen || !c.state.IsControlling() || c.state.PeerID() != id {
		return
	}
	if !c.awaitingAck {
		// The ack arrived after this timer was scheduled but before Stop
		// in cancelFailsafeLocked took effect; nothing to do.
		return
	}

	p, ok := c.deps.Registry.Get(id)
	stale := !ok || p.SilentFor() >= failsafeTimeout

	if !stale && c.failsafeRetries < 1 {
		c.failsafeRetries++
		c.scheduleFailsafeLocked(id)
		return
	}

	if ok {
		log.Printf("Controller: %v", fmt.Errorf("%w: %s gave no ScreenEnterAck", errkind.ErrPeerSilent, p.Name()))
	}
	c.localFromControllingLocked()
	c.reportStatus("Failsafe triggered: no response, returning to local")
}
