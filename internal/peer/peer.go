// Package peer holds the shared data model for remote hosts: stable
// identifiers, endpoints, and the per-peer lifecycle record that Discovery,
// Transport, and Controller all read and update.
package peer

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ID is a peer's stable 128-bit identifier, persisted locally by the owning
// host and advertised in mDNS TXT records and handshakes.
type ID uuid.UUID

// NewID generates a fresh random peer identifier.
func NewID() ID {
	return ID(uuid.New())
}

// ParseID parses a canonical UUID string, as carried in TXT records and
// handshake payloads.
func ParseID(s string) (ID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return ID{}, fmt.Errorf("peer: invalid id %q: %w", s, err)
	}
	return ID(u), nil
}

func (id ID) String() string {
	return uuid.UUID(id).String()
}

// Endpoint is a resolved network address for a peer's Transport listener.
type Endpoint struct {
	Host string
	Port int
}

func (e Endpoint) String() string {
	return fmt.Sprintf("%s:%d", e.Host, e.Port)
}

func (e Endpoint) IsZero() bool {
	return e.Host == "" && e.Port == 0
}

// State is a peer's observable lifecycle state, independent of this host's
// own ControlState (a peer can be Connected while this host is Local, or
// Controlling/Controlled with respect to that specific peer).
type State int

const (
	Discovered State = iota
	Connecting
	Connected
	Controlling
	Controlled
	Disconnected
	Error
)

func (s State) String() string {
	switch s {
	case Discovered:
		return "discovered"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Controlling:
		return "controlling"
	case Controlled:
		return "controlled"
	case Disconnected:
		return "disconnected"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// ScreenDims is a peer's advertised remote display size in OS pixels.
type ScreenDims struct {
	Width  int
	Height int
}

// LinkQuality tracks lightweight per-peer wire health counters. Nothing here
// is load-bearing for correctness; it is surfaced to the tray/status line.
type LinkQuality struct {
	PacketsSent     uint64
	PacketsReceived uint64
	SequenceGaps    uint64
	HeartbeatsMissed uint64
}

// Peer is the mapping PeerId -> {name, endpoint, remote screen, state,
// lastSeen, link-quality} described in spec.md section 3. Peer entries are
// shared between Discovery, Transport, and Controller; the zero value is not
// meaningful, always construct via New.
type Peer struct {
	mu sync.RWMutex

	id       ID
	name     string
	endpoint Endpoint
	screen   ScreenDims
	state    State
	lastSeen time.Time
	quality  LinkQuality
}

// New creates a peer entry in Discovered state.
func New(id ID, name string, endpoint Endpoint, screen ScreenDims) *Peer {
	return &Peer{
		id:       id,
		name:     name,
		endpoint: endpoint,
		screen:   screen,
		state:    Discovered,
		lastSeen: time.Now(),
	}
}

func (p *Peer) ID() ID { return p.id }

func (p *Peer) Name() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.name
}

func (p *Peer) SetName(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.name = name
}

func (p *Peer) Endpoint() Endpoint {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.endpoint
}

func (p *Peer) SetEndpoint(e Endpoint) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.endpoint = e
}

func (p *Peer) Screen() ScreenDims {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.screen
}

func (p *Peer) SetScreen(s ScreenDims) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.screen = s
}

func (p *Peer) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

func (p *Peer) SetState(s State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = s
}

func (p *Peer) LastSeen() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastSeen
}

func (p *Peer) Touch() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastSeen = time.Now()
}

// SilentFor reports how long it has been since the peer was last heard from.
func (p *Peer) SilentFor() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return time.Since(p.lastSeen)
}

func (p *Peer) Quality() LinkQuality {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.quality
}

func (p *Peer) RecordSent() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.quality.PacketsSent++
}

func (p *Peer) RecordReceived() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.quality.PacketsReceived++
}

func (p *Peer) RecordSequenceGap() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.quality.SequenceGaps++
}

func (p *Peer) RecordHeartbeatMissed() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.quality.HeartbeatsMissed++
}

// Registry is the shared PeerId -> *Peer table. Discovery creates entries on
// mDNS add/update and deletes them once their records go stale; Controller
// creates one when a handshake is accepted from a peer not yet listed, and
// deletes one on transport close unless that peer was the active counterparty.
// Lifetime of any given *Peer is "longest holder": the Registry never hands
// out a pointer that outlives the entry being Delete'd, since callers that
// already hold a *Peer keep reading/writing its own mutex-guarded fields.
type Registry struct {
	mu    sync.RWMutex
	peers map[ID]*Peer
}

func NewRegistry() *Registry {
	return &Registry{peers: make(map[ID]*Peer)}
}

func (r *Registry) Get(id ID) (*Peer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.peers[id]
	return p, ok
}

// GetByName finds a peer by human-readable name, used to collapse duplicate
// mDNS records seen on multiple interfaces into one Peer (spec.md section
// 4.2: "the latest endpoint wins").
func (r *Registry) GetByName(name string) (*Peer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.peers {
		if p.Name() == name {
			return p, true
		}
	}
	return nil, false
}

func (r *Registry) Put(p *Peer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.peers[p.ID()] = p
}

func (r *Registry) Delete(id ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.peers, id)
}

func (r *Registry) All() []*Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Peer, 0, len(r.peers))
	for _, p := range r.peers {
		out = append(out, p)
	}
	return out
}

// Connected returns the set of peer ids currently in Connected, Controlling,
// or Controlled state — used by Arrangement.RemoveStaleRemoteScreens.
func (r *Registry) Connected() map[ID]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[ID]bool)
	for id, p := range r.peers {
		switch p.State() {
		case Connected, Controlling, Controlled:
			out[id] = true
		}
	}
	return out
}
