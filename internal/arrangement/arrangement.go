// Package arrangement maintains the virtual 2-D layout of local and remote
// screens and answers the two questions the Controller needs on every edge
// crossing: which peer sits on a given edge, and where on the target screen
// a crossing point lands. It is a pure model — no I/O, no OS calls — so it
// is exercised entirely by unit tests.
package arrangement

import (
	"sync"

	"github.com/mouseshare/mouseshare/internal/peer"
)

// Edge identifies one side of the combined local display.
type Edge int

const (
	EdgeLeft Edge = iota
	EdgeRight
	EdgeTop
	EdgeBottom
)

func (e Edge) String() string {
	switch e {
	case EdgeLeft:
		return "left"
	case EdgeRight:
		return "right"
	case EdgeTop:
		return "top"
	case EdgeBottom:
		return "bottom"
	default:
		return "unknown"
	}
}

// Opposite returns the edge a peer sees on its side of the same crossing:
// leaving through my right edge means arriving through the peer's left edge.
func (e Edge) Opposite() Edge {
	switch e {
	case EdgeLeft:
		return EdgeRight
	case EdgeRight:
		return EdgeLeft
	case EdgeTop:
		return EdgeBottom
	case EdgeBottom:
		return EdgeTop
	default:
		return e
	}
}

// adjacencyTolerance (tau in spec.md section 4.6) is the slack, in virtual
// pixels, allowed both in the perpendicular gap between two screens and in
// their parallel-axis overlap when deciding adjacency.
const adjacencyTolerance = 50.0

// Screen is one entry in the arrangement: a local display or a remote peer's
// advertised display, positioned in the shared virtual coordinate space
// (primary local display normalized to (0,0), Y downward).
type Screen struct {
	ID       string
	Name     string
	X, Y     float64
	W, H     float64
	IsLocal  bool
	PeerID   peer.ID
	hasPeer  bool
}

func (s Screen) HasPeer() bool { return s.hasPeer }

func (s Screen) right() float64  { return s.X + s.W }
func (s Screen) bottom() float64 { return s.Y + s.H }

// EdgeLink is a legacy explicit edge-to-peer binding, consulted only as a
// compatibility fallback when no geometric adjacency is found (spec.md
// section 9, Open Questions: "arrangement is authoritative; the explicit
// table is a compatibility fallback only").
type EdgeLink struct {
	Edge   Edge
	PeerID peer.ID
}

// Arrangement is the ordered sequence of Screens plus the legacy edge-link
// table. It has no I/O of its own: Local screens are populated by a caller
// that has queried the OS display list (internal/displays, not this
// package), and remote screens are populated from handshake/TXT data.
type Arrangement struct {
	mu        sync.RWMutex
	screens   []Screen
	edgeLinks []EdgeLink
}

func New() *Arrangement {
	return &Arrangement{}
}

// LocalDisplay is what the OS-boundary caller reports per physical display;
// InitializeLocalDisplays normalizes these into virtual coordinates with the
// primary display at (0,0).
type LocalDisplay struct {
	ID        string
	Name      string
	X, Y      float64 // OS-reported position, arbitrary origin
	W, H      float64
	IsPrimary bool
}

// InitializeLocalDisplays replaces all local screens with a fresh read of
// the OS display list, normalizing the primary display to (0,0). Remote
// screens are left untouched.
func (a *Arrangement) InitializeLocalDisplays(displays []LocalDisplay) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var originX, originY float64
	for _, d := range displays {
		if d.IsPrimary {
			originX, originY = d.X, d.Y
			break
		}
	}

	kept := make([]Screen, 0, len(a.screens))
	for _, s := range a.screens {
		if !s.IsLocal {
			kept = append(kept, s)
		}
	}
	for _, d := range displays {
		kept = append(kept, Screen{
			ID:      d.ID,
			Name:    d.Name,
			X:       d.X - originX,
			Y:       d.Y - originY,
			W:       d.W,
			H:       d.H,
			IsLocal: true,
		})
	}
	a.screens = kept
}

// UpdateRemoteScreen inserts or updates a remote screen, keyed first by
// PeerID, then by Name, to tolerate transient id churn across reconnects
// (spec.md section 4.6).
func (a *Arrangement) UpdateRemoteScreen(id peer.ID, name string, w, h float64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	idx := -1
	for i := range a.screens {
		s := a.screens[i]
		if !s.IsLocal && s.hasPeer && s.PeerID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		for i := range a.screens {
			if !a.screens[i].IsLocal && a.screens[i].Name == name {
				idx = i
				break
			}
		}
	}
	if idx >= 0 {
		s := &a.screens[idx]
		s.PeerID = id
		s.hasPeer = true
		s.Name = name
		s.W, s.H = w, h
		return
	}

	// New remote screen: place it adjacent to the right of the combined
	// local bounds by default, so it starts out reachable. update_position
	// (the settings UI) is expected to reposition it to the user's taste.
	minX, maxX, _, maxY := a.combinedLocalBoundsLocked()
	_ = minX
	a.screens = append(a.screens, Screen{
		ID:      "remote-" + id.String(),
		Name:    name,
		X:       maxX,
		Y:       0,
		W:       w,
		H:       h,
		IsLocal: false,
		PeerID:  id,
		hasPeer: true,
	})
	_ = maxY
}

// RemoveStaleRemoteScreens deletes remote screens that are unresolved (never
// got a PeerID) or whose PeerID has left the connected set.
func (a *Arrangement) RemoveStaleRemoteScreens(connected map[peer.ID]bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	kept := make([]Screen, 0, len(a.screens))
	for _, s := range a.screens {
		if s.IsLocal {
			kept = append(kept, s)
			continue
		}
		if s.hasPeer && connected[s.PeerID] {
			kept = append(kept, s)
		}
	}
	a.screens = kept
}

// UpdatePosition repositions a screen by id, e.g. in response to a user drag
// in the settings UI (external collaborator; this is the mutation it calls).
func (a *Arrangement) UpdatePosition(id string, x, y float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := range a.screens {
		if a.screens[i].ID == id {
			a.screens[i].X, a.screens[i].Y = x, y
			return
		}
	}
}

// SetEdgeLink installs or replaces the legacy explicit edge-link fallback
// binding for an edge.
func (a *Arrangement) SetEdgeLink(edge Edge, id peer.ID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := range a.edgeLinks {
		if a.edgeLinks[i].Edge == edge {
			a.edgeLinks[i].PeerID = id
			return
		}
	}
	a.edgeLinks = append(a.edgeLinks, EdgeLink{Edge: edge, PeerID: id})
}

// EdgeLinks returns a copy of the legacy explicit edge-link table, used by
// the Controller to persist auto-linking decisions back to Settings.
func (a *Arrangement) EdgeLinks() []EdgeLink {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]EdgeLink, len(a.edgeLinks))
	copy(out, a.edgeLinks)
	return out
}

func (a *Arrangement) Screens() []Screen {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]Screen, len(a.screens))
	copy(out, a.screens)
	return out
}

func (a *Arrangement) combinedLocalBoundsLocked() (minX, maxX, minY, maxY float64) {
	first := true
	for _, s := range a.screens {
		if !s.IsLocal {
			continue
		}
		if first {
			minX, maxX, minY, maxY = s.X, s.right(), s.Y, s.bottom()
			first = false
			continue
		}
		if s.X < minX {
			minX = s.X
		}
		if s.right() > maxX {
			maxX = s.right()
		}
		if s.Y < minY {
			minY = s.Y
		}
		if s.bottom() > maxY {
			maxY = s.bottom()
		}
	}
	return
}

// CombinedLocalBounds returns the bounding rectangle of all local screens,
// used by Capture for edge-threshold distance checks.
func (a *Arrangement) CombinedLocalBounds() (minX, maxX, minY, maxY float64) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.combinedLocalBoundsLocked()
}

// PeerForEdge iterates local screens; for each, looks for a remote screen
// whose rectangle is adjacent on the given edge (spec.md section 4.6). The
// first match in iteration order wins when several remotes are adjacent on
// the same edge. Falls back to the legacy edge-link table only if no
// geometric adjacency is found.
func (a *Arrangement) PeerForEdge(edge Edge) (peer.ID, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	for _, local := range a.screens {
		if !local.IsLocal {
			continue
		}
		for _, remote := range a.screens {
			if remote.IsLocal || !remote.hasPeer {
				continue
			}
			if adjacentOnEdge(local, remote, edge) {
				return remote.PeerID, true
			}
		}
	}

	for _, link := range a.edgeLinks {
		if link.Edge == edge {
			return link.PeerID, true
		}
	}
	return peer.ID{}, false
}

// adjacentOnEdge implements spec.md section 4.6: two screens are adjacent on
// edge E of the first iff the gap along E's perpendicular axis is within
// tolerance and the overlap along the parallel axis exceeds tolerance.
func adjacentOnEdge(local, remote Screen, edge Edge) bool {
	const tau = adjacencyTolerance
	switch edge {
	case EdgeLeft:
		gap := local.X - remote.right()
		return gap >= -tau && gap <= tau && overlap(local.Y, local.bottom(), remote.Y, remote.bottom()) > tau
	case EdgeRight:
		gap := remote.X - local.right()
		return gap >= -tau && gap <= tau && overlap(local.Y, local.bottom(), remote.Y, remote.bottom()) > tau
	case EdgeTop:
		gap := local.Y - remote.bottom()
		return gap >= -tau && gap <= tau && overlap(local.X, local.right(), remote.X, remote.right()) > tau
	case EdgeBottom:
		gap := remote.Y - local.bottom()
		return gap >= -tau && gap <= tau && overlap(local.X, local.right(), remote.X, remote.right()) > tau
	default:
		return false
	}
}

func overlap(aMin, aMax, bMin, bMax float64) float64 {
	lo := aMin
	if bMin > lo {
		lo = bMin
	}
	hi := aMax
	if bMax < hi {
		hi = bMax
	}
	if hi < lo {
		return 0
	}
	return hi - lo
}

// screenByPeer finds the remote screen for a peer id.
func (a *Arrangement) screenByPeer(id peer.ID) (Screen, bool) {
	for _, s := range a.screens {
		if !s.IsLocal && s.hasPeer && s.PeerID == id {
			return s, true
		}
	}
	return Screen{}, false
}

// localScreenForEdge picks the first local screen, in iteration order, that
// is adjacent to the given remote on the given edge. If no local screen is
// adjacent (e.g. the peer was reached through the legacy edge-link table),
// it falls back to the first local screen.
func (a *Arrangement) localScreenForEdge(remote Screen, edge Edge) (Screen, bool) {
	for _, local := range a.screens {
		if local.IsLocal && adjacentOnEdge(local, remote, edge) {
			return local, true
		}
	}
	for _, local := range a.screens {
		if local.IsLocal {
			return local, true
		}
	}
	return Screen{}, false
}

// ComputeEntryPosition implements spec.md section 4.6. exitPoint is the
// normalized [0,1] position along the crossed edge on the source screen;
// the result is the normalized [0,1] position along the corresponding edge
// of the target screen. Resolves the Open Question in spec.md section 9:
// every edge (including top/bottom) always uses the parallel-axis normalized
// coordinate, never degenerating to 0.5 except when the overlap is empty.
func ComputeEntryPosition(exitPoint float64, source, target Screen, edge Edge) float64 {
	var sourceOrigin, sourceExtent, targetOrigin, targetExtent float64
	var overlapMin, overlapMax float64

	switch edge {
	case EdgeLeft, EdgeRight:
		sourceOrigin, sourceExtent = source.Y, source.H
		targetOrigin, targetExtent = target.Y, target.H
		overlapMin = max2(source.Y, target.Y)
		overlapMax = min2(source.bottom(), target.bottom())
	case EdgeTop, EdgeBottom:
		sourceOrigin, sourceExtent = source.X, source.W
		targetOrigin, targetExtent = target.X, target.W
		overlapMin = max2(source.X, target.X)
		overlapMax = min2(source.right(), target.right())
	default:
		return 0.5
	}

	if overlapMax <= overlapMin || targetExtent == 0 {
		return 0.5
	}

	a := sourceOrigin + exitPoint*sourceExtent

	var rel float64
	switch {
	case a < overlapMin:
		rel = (overlapMin - targetOrigin) / targetExtent
	case a > overlapMax:
		rel = (overlapMax - targetOrigin) / targetExtent
	default:
		rel = (a - targetOrigin) / targetExtent
	}

	if rel < 0 {
		rel = 0
	}
	if rel > 1 {
		rel = 1
	}
	return rel
}

// EntryFor is the Controller-facing convenience that looks up both screens
// by id and delegates to ComputeEntryPosition.
func (a *Arrangement) EntryFor(exitPoint float64, localID string, remoteID peer.ID, edge Edge) (float64, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var source Screen
	found := false
	for _, s := range a.screens {
		if s.IsLocal && s.ID == localID {
			source = s
			found = true
			break
		}
	}
	if !found {
		return 0.5, false
	}
	target, ok := a.screenByPeer(remoteID)
	if !ok {
		return 0.5, false
	}
	return ComputeEntryPosition(exitPoint, source, target, edge), true
}

// EntryPositionForEdge is the Controller-facing convenience used when
// leaving through an edge to peer remoteID: it locates the local screen
// adjacent to that remote on edge itself, rather than requiring the caller
// to already know which local screen id is in play (most hosts have one
// local screen, so tracking that separately would be redundant bookkeeping
// in the Controller).
func (a *Arrangement) EntryPositionForEdge(exitPoint float64, remoteID peer.ID, edge Edge) (float64, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	target, ok := a.screenByPeer(remoteID)
	if !ok {
		return 0.5, false
	}
	source, ok := a.localScreenForEdge(target, edge)
	if !ok {
		return 0.5, false
	}
	return ComputeEntryPosition(exitPoint, source, target, edge), true
}

func max2(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func min2(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
