// Package discovery publishes and observes mDNS service records advertising
// this host's peer identity and screen dimensions, and resolves them into
// Peer-added/updated/lost callbacks (spec.md section 4.2). The wire format is
// a genuine (if reduced) subset of multicast DNS rather than a third-party
// mDNS library, since none of the retrieved dependencies expose a service
// browser capable of carrying arbitrary TXT records: golang.org/x/net is
// already an indirect dependency across the retrieval pack, and its
// dns/dnsmessage package gives a correct DNS message codec to build on.
package discovery

import (
	"fmt"
	"log"
	"net"
	"strconv"
	"sync"
	"time"

	"golang.org/x/net/dns/dnsmessage"

	"github.com/mouseshare/mouseshare/internal/errkind"
	"github.com/mouseshare/mouseshare/internal/peer"
)

// ServiceType and Domain make up the mDNS service name this package
// advertises and browses (spec.md section 6): "_mouseshare._tcp" in
// "local.".
const (
	ServiceType = "_mouseshare._tcp"
	Domain      = "local."

	multicastAddr = "224.0.0.251:5353"
	mdnsPort      = 5353

	republishInterval = 60 * time.Second
	listenBackoff     = 2 * time.Second
)

// serviceFQDN is the fully-qualified PTR target clients browse for.
func serviceFQDN() string { return ServiceType + "." + Domain }

// Record is this host's advertised identity, carried in TXT keys id/name/
// version/width/height.
type Record struct {
	ID     peer.ID
	Name   string
	Version string
	Width  int
	Height int
	Port   int
}

// instanceFQDN is the SRV/TXT owner name for one advertised instance:
// "<name>._mouseshare._tcp.local.".
func (r Record) instanceFQDN() string {
	return r.Name + "." + serviceFQDN()
}

// Callbacks are invoked from the Service's own goroutine; callers that touch
// shared state from inside them are responsible for their own synchronization.
type Callbacks struct {
	OnPeerAdded   func(p *peer.Peer)
	OnPeerUpdated func(p *peer.Peer)
	OnPeerLost    func(id peer.ID)
}

// Service both publishes this host's record and observes others'. It owns a
// multicast UDP socket and a background goroutine driving periodic
// re-publication, query responses, and passive observation of peers.
type Service struct {
	record    Record
	callbacks Callbacks
	registry  *peer.Registry

	mu       sync.Mutex
	conn     *net.UDPConn
	stopCh   chan struct{}
	doneCh   chan struct{}
	lastSeen map[string]time.Time // keyed by instance name, for staleness sweeps
}

// New constructs a Service. It does not start listening until Run is called.
func New(record Record, registry *peer.Registry, callbacks Callbacks) *Service {
	return &Service{
		record:    record,
		callbacks: callbacks,
		registry:  registry,
		lastSeen:  make(map[string]time.Time),
	}
}

// Run opens the multicast socket and blocks, observing and periodically
// re-publishing, until stop is closed. On listener failure it backs off
// 2s and retries indefinitely (spec.md section 4.2: "On listener failure,
// reschedule with a 2s backoff").
func (s *Service) Run(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		default:
		}

		if err := s.runOnce(stop); err != nil {
			log.Printf("Discovery: listener error, retrying in %s: %v", listenBackoff, err)
			select {
			case <-time.After(listenBackoff):
			case <-stop:
				return
			}
			continue
		}
		return
	}
}

func (s *Service) runOnce(stop <-chan struct{}) error {
	group := net.IPv4(224, 0, 0, 251)
	conn, err := net.ListenMulticastUDP("udp4", nil, &net.UDPAddr{IP: group, Port: mdnsPort})
	if err != nil {
		return fmt.Errorf("%w: listen: %v", errkind.ErrDiscoveryFailed, err)
	}
	defer conn.Close()

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	go s.republishLoop(stop)
	s.publish()

	buf := make([]byte, 9000)
	for {
		conn.SetReadDeadline(time.Now().Add(1 * time.Second))
		n, _, err := conn.ReadFromUDP(buf)
		select {
		case <-stop:
			return nil
		default:
		}
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return fmt.Errorf("%w: read: %v", errkind.ErrDiscoveryFailed, err)
		}
		s.handlePacket(buf[:n])
	}
}

func (s *Service) republishLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(republishInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.publish()
		}
	}
}

// publish sends one unsolicited multicast response carrying our PTR/SRV/TXT/A
// records, the standard mDNS way of announcing presence without waiting for
// a query (RFC 6762 section 8.3).
func (s *Service) publish() {
	msg, err := s.buildAnnouncement()
	if err != nil {
		log.Printf("Discovery: failed to build announcement: %v", err)
		return
	}
	s.send(msg)
}

func (s *Service) send(msg []byte) {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return
	}
	addr, err := net.ResolveUDPAddr("udp4", multicastAddr)
	if err != nil {
		return
	}
	if _, err := conn.WriteToUDP(msg, addr); err != nil {
		log.Printf("Discovery: send failed: %v", err)
	}
}

func (s *Service) handlePacket(data []byte) {
	var parser dnsmessage.Parser
	if _, err := parser.Start(data); err != nil {
		return // malformed mDNS packet: drop silently, not our peer
	}
	if err := parser.SkipAllQuestions(); err != nil {
		return
	}

	rec, err := parseAnswers(&parser)
	if err != nil || rec == nil {
		return
	}

	s.observe(*rec)
}

// observe updates the peer registry from a parsed remote record, filtering
// self-records by id and by name and collapsing duplicate records (e.g. seen
// on multiple interfaces) by name, with the latest endpoint winning (spec.md
// section 4.2).
func (s *Service) observe(rec parsedRecord) {
	if rec.id == s.record.ID || rec.name == s.record.Name {
		return
	}

	s.mu.Lock()
	s.lastSeen[rec.name] = time.Now()
	s.mu.Unlock()

	existing, found := s.registry.GetByName(rec.name)
	endpoint := peer.Endpoint{Host: rec.host, Port: rec.port}
	screen := peer.ScreenDims{Width: rec.width, Height: rec.height}

	if !found {
		p := peer.New(rec.id, rec.name, endpoint, screen)
		s.registry.Put(p)
		if s.callbacks.OnPeerAdded != nil {
			s.callbacks.OnPeerAdded(p)
		}
		return
	}

	existing.SetEndpoint(endpoint)
	existing.SetScreen(screen)
	existing.Touch()
	if s.callbacks.OnPeerUpdated != nil {
		s.callbacks.OnPeerUpdated(existing)
	}
}

// SweepStale walks the registry and reports peers whose mDNS record has not
// been refreshed within maxAge as lost. Callers typically run this off a
// periodic ticker alongside republishLoop.
func (s *Service) SweepStale(maxAge time.Duration) {
	s.mu.Lock()
	cutoff := time.Now().Add(-maxAge)
	var lost []string
	for name, seen := range s.lastSeen {
		if seen.Before(cutoff) {
			lost = append(lost, name)
		}
	}
	for _, name := range lost {
		delete(s.lastSeen, name)
	}
	s.mu.Unlock()

	for _, name := range lost {
		p, found := s.registry.GetByName(name)
		if !found {
			continue
		}
		s.registry.Delete(p.ID())
		if s.callbacks.OnPeerLost != nil {
			s.callbacks.OnPeerLost(p.ID())
		}
	}
}

// buildAnnouncement constructs the PTR/SRV/TXT/A record set for our own
// Record, as an mDNS response message (RFC 6762 section 6).
func (s *Service) buildAnnouncement() ([]byte, error) {
	b := dnsmessage.NewBuilder(nil, dnsmessage.Header{Response: true, Authoritative: true})
	b.EnableCompression()

	if err := b.StartAnswers(); err != nil {
		return nil, err
	}

	svcName, err := dnsmessage.NewName(serviceFQDN())
	if err != nil {
		return nil, err
	}
	instName, err := dnsmessage.NewName(s.record.instanceFQDN())
	if err != nil {
		return nil, err
	}
	hostName, err := dnsmessage.NewName(hostnameFor(s.record.Name))
	if err != nil {
		return nil, err
	}

	ptrHeader := dnsmessage.ResourceHeader{Name: svcName, Type: dnsmessage.TypePTR, Class: dnsmessage.ClassINET, TTL: 120}
	if err := b.PTRResource(ptrHeader, dnsmessage.PTRResource{PTR: instName}); err != nil {
		return nil, err
	}

	srvHeader := dnsmessage.ResourceHeader{Name: instName, Type: dnsmessage.TypeSRV, Class: dnsmessage.ClassINET, TTL: 120}
	if err := b.SRVResource(srvHeader, dnsmessage.SRVResource{Priority: 0, Weight: 0, Port: uint16(s.record.Port), Target: hostName}); err != nil {
		return nil, err
	}

	txtHeader := dnsmessage.ResourceHeader{Name: instName, Type: dnsmessage.TypeTXT, Class: dnsmessage.ClassINET, TTL: 120}
	txt := encodeTXT(s.record)
	if err := b.TXTResource(txtHeader, dnsmessage.TXTResource{TXT: txt}); err != nil {
		return nil, err
	}

	ip, err := localIPv4()
	if err == nil {
		var addr [4]byte
		copy(addr[:], ip.To4())
		aHeader := dnsmessage.ResourceHeader{Name: hostName, Type: dnsmessage.TypeA, Class: dnsmessage.ClassINET, TTL: 120}
		if err := b.AResource(aHeader, dnsmessage.AResource{A: addr}); err != nil {
			return nil, err
		}
	}

	return b.Finish()
}

func hostnameFor(name string) string {
	return name + "." + Domain
}

func encodeTXT(r Record) []string {
	return []string{
		"id=" + r.ID.String(),
		"name=" + r.Name,
		"version=" + r.Version,
		"width=" + strconv.Itoa(r.Width),
		"height=" + strconv.Itoa(r.Height),
	}
}

// localIPv4 returns this host's primary outbound IPv4 address, the same
// dial-a-public-address trick the teacher's network package uses to find a
// non-loopback local address without enumerating interfaces.
func localIPv4() (net.IP, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP, nil
}
