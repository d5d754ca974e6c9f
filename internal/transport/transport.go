// Package transport accepts and initiates TCP connections, drives the
// handshake, and owns per-peer send/receive streams (spec.md section 4.3).
// It is grounded on the teacher's internal/network UDP sender/receiver pair —
// same accept-loop/cleanup-loop shape, same log.Printf("<Component>: ...")
// idiom — generalized from a fire-and-forget UDP broadcast model to a
// per-peer framed TCP connection with an explicit handshake.
package transport

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mouseshare/mouseshare/internal/codec"
	"github.com/mouseshare/mouseshare/internal/errkind"
	"github.com/mouseshare/mouseshare/internal/peer"
)

// DefaultPort is the shared TCP port the spec fixes for both Discovery's SRV
// advertisement and the Transport listener (spec.md section 6).
const DefaultPort = 24801

// idleGrace is how long a Connected-but-not-Controlling connection may go
// without a heartbeat before it is torn down (spec.md section 5: "a bounded
// idle without heartbeats (5s while Controlling; implementation may choose a
// larger grace while idle Connected)").
const idleGrace = 30 * time.Second

// Callbacks are invoked from Transport's own goroutines; the receiver (the
// Controller) is responsible for handing off to its single-writer domain
// rather than mutating shared state directly inside a callback.
type Callbacks struct {
	OnHandshakeAccepted func(id peer.ID, name string, screen peer.ScreenDims)
	OnEvents            func(id peer.ID, events []codec.Event)
	OnDisconnected      func(id peer.ID)
}

// LocalInfo is what this host advertises in every handshake it sends or
// accepts.
type LocalInfo struct {
	PeerID            peer.ID
	PeerName          string
	ScreenW, ScreenH  int
	EncryptionEnabled bool
	Key               []byte // only meaningful when EncryptionEnabled
}

// Transport owns the shared listener and the live per-peer Connections.
type Transport struct {
	local     LocalInfo
	callbacks Callbacks

	mu       sync.Mutex
	listener net.Listener
	conns    map[peer.ID]*Connection
}

func New(local LocalInfo, callbacks Callbacks) *Transport {
	return &Transport{
		local:     local,
		callbacks: callbacks,
		conns:     make(map[peer.ID]*Connection),
	}
}

// Bind opens the shared TCP listener without yet accepting connections, so
// callers (notably tests using an ephemeral port) can read back the bound
// address before Serve starts blocking.
func (t *Transport) Bind(port int) (net.Addr, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("%w: listen on %d: %v", errkind.ErrBindFailed, port, err)
	}
	t.mu.Lock()
	t.listener = ln
	t.mu.Unlock()
	return ln.Addr(), nil
}

// Serve accepts inbound connections on a previously Bind'd listener until
// stop is closed. It blocks.
func (t *Transport) Serve(stop <-chan struct{}) {
	t.mu.Lock()
	ln := t.listener
	t.mu.Unlock()
	if ln == nil {
		return
	}

	log.Printf("Transport: listening on %s", ln.Addr())

	go func() {
		<-stop
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-stop:
				return
			default:
				log.Printf("Transport: accept error: %v", err)
				return
			}
		}
		go t.acceptHandshake(conn)
	}
}

// Listen binds and serves in one call, for production use where the caller
// does not need the resolved address ahead of time.
func (t *Transport) Listen(port int, stop <-chan struct{}) error {
	if _, err := t.Bind(port); err != nil {
		return err
	}
	t.Serve(stop)
	return nil
}

// Connect opens an outbound connection to a peer and drives the initiator
// side of the handshake (spec.md section 4.3 step 1). On success the
// Connection is registered and its receive loop is already running.
func (t *Transport) Connect(ctx context.Context, id peer.ID, endpoint peer.Endpoint) (*Connection, error) {
	dialer := net.Dialer{}
	netConn, err := dialer.DialContext(ctx, "tcp", endpoint.String())
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", endpoint, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		netConn.SetDeadline(deadline)
	}

	plain, err := codec.New(false, nil)
	if err != nil {
		netConn.Close()
		return nil, err
	}

	req := codec.HandshakeRequest{
		Version:           codec.ProtocolVersion,
		PeerID:            t.local.PeerID.String(),
		PeerName:          t.local.PeerName,
		ScreenW:           t.local.ScreenW,
		ScreenH:           t.local.ScreenH,
		EncryptionEnabled: t.local.EncryptionEnabled,
	}
	body, err := plain.EncodeHandshakeRequest(req)
	if err != nil {
		netConn.Close()
		return nil, err
	}
	if err := codec.WriteFrame(netConn, body); err != nil {
		netConn.Close()
		return nil, fmt.Errorf("transport: send handshake: %w", err)
	}

	respBody, err := codec.ReadFrame(netConn, 0)
	if err != nil {
		netConn.Close()
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil, fmt.Errorf("%w: %v", errkind.ErrHandshakeTimeout, err)
		}
		return nil, fmt.Errorf("transport: read handshake response: %w", err)
	}
	decoded, err := plain.Decode(respBody)
	if err != nil || decoded.HandshakeResponse == nil {
		netConn.Close()
		return nil, fmt.Errorf("%w: malformed handshake response", errkind.ErrFrameMalformed)
	}
	resp := decoded.HandshakeResponse
	if !resp.Accepted {
		netConn.Close()
		return nil, fmt.Errorf("%w: %s", errkind.ErrHandshakeRejected, resp.ErrorMessage)
	}

	remoteID, err := peer.ParseID(resp.PeerID)
	if err != nil {
		netConn.Close()
		return nil, fmt.Errorf("transport: handshake response carried invalid peer id: %w", err)
	}

	dataCodec, err := t.dataCodec()
	if err != nil {
		netConn.Close()
		return nil, err
	}

	c := newConnection(remoteID, netConn, dataCodec)
	t.register(c)
	go t.receiveLoop(c)

	if t.callbacks.OnHandshakeAccepted != nil {
		t.callbacks.OnHandshakeAccepted(remoteID, resp.PeerName, peer.ScreenDims{Width: resp.ScreenW, Height: resp.ScreenH})
	}
	return c, nil
}

// acceptHandshake drives the acceptor side for one freshly-accepted inbound
// connection (spec.md section 4.3 step 2).
func (t *Transport) acceptHandshake(netConn net.Conn) {
	plain, err := codec.New(false, nil)
	if err != nil {
		netConn.Close()
		return
	}

	reqBody, err := codec.ReadFrame(netConn, 0)
	if err != nil {
		netConn.Close()
		return
	}
	decoded, err := plain.Decode(reqBody)
	if err != nil || decoded.HandshakeRequest == nil {
		log.Printf("Transport: malformed handshake request: %v", err)
		netConn.Close()
		return
	}
	req := decoded.HandshakeRequest

	if req.EncryptionEnabled != t.local.EncryptionEnabled {
		resp := codec.HandshakeResponse{Accepted: false, ErrorMessage: "encryption-mismatch"}
		body, _ := plain.EncodeHandshakeResponse(resp)
		codec.WriteFrame(netConn, body)
		netConn.Close()
		log.Printf("Transport: %v", fmt.Errorf("%w: from %s: encryption mismatch", errkind.ErrHandshakeRejected, req.PeerName))
		return
	}

	remoteID, err := peer.ParseID(req.PeerID)
	if err != nil {
		resp := codec.HandshakeResponse{Accepted: false, ErrorMessage: "invalid-peer-id"}
		body, _ := plain.EncodeHandshakeResponse(resp)
		codec.WriteFrame(netConn, body)
		netConn.Close()
		return
	}

	resp := codec.HandshakeResponse{
		Accepted: true,
		PeerID:   t.local.PeerID.String(),
		PeerName: t.local.PeerName,
		ScreenW:  t.local.ScreenW,
		ScreenH:  t.local.ScreenH,
	}
	body, err := plain.EncodeHandshakeResponse(resp)
	if err != nil {
		netConn.Close()
		return
	}
	if err := codec.WriteFrame(netConn, body); err != nil {
		netConn.Close()
		return
	}

	dataCodec, err := t.dataCodec()
	if err != nil {
		netConn.Close()
		return
	}

	c := newConnection(remoteID, netConn, dataCodec)
	t.register(c)
	go t.receiveLoop(c)

	if t.callbacks.OnHandshakeAccepted != nil {
		t.callbacks.OnHandshakeAccepted(remoteID, req.PeerName, peer.ScreenDims{Width: req.ScreenW, Height: req.ScreenH})
	}
}

func (t *Transport) dataCodec() (*codec.Codec, error) {
	if !t.local.EncryptionEnabled {
		return codec.New(false, nil)
	}
	return codec.New(true, t.local.Key)
}

func (t *Transport) register(c *Connection) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if old, ok := t.conns[c.peerID]; ok {
		old.Close()
	}
	t.conns[c.peerID] = c
}

func (t *Transport) unregister(c *Connection) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if cur, ok := t.conns[c.peerID]; ok && cur == c {
		delete(t.conns, c.peerID)
	}
}

// Send enqueues events as one InputPacket on the named peer's connection.
// Returns an error if there is no live connection to that peer.
func (t *Transport) Send(id peer.ID, events []codec.Event) error {
	t.mu.Lock()
	c, ok := t.conns[id]
	t.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: no connection to peer %s", errkind.ErrSendFailed, id)
	}
	return c.send(events)
}

// Close tears down the connection to one peer, if any. Controller.Disconnect
// (the tray's per-peer disconnect action) calls it; the receive loop's exit
// then fires OnDisconnected.
func (t *Transport) Close(id peer.ID) {
	t.mu.Lock()
	c, ok := t.conns[id]
	t.mu.Unlock()
	if ok {
		c.Close()
	}
}

// receiveLoop implements the receive pipeline of spec.md section 4.3: for
// each frame, decrypt if enabled, parse, compare sequence number to expected
// (log a gap but still deliver), then deliver events in order. A decrypt or
// parse failure drops the frame and keeps the connection; a frame-too-large
// or transport-level read error tears the connection down.
func (t *Transport) receiveLoop(c *Connection) {
	defer func() {
		c.Close()
		t.unregister(c)
		if t.callbacks.OnDisconnected != nil {
			t.callbacks.OnDisconnected(c.peerID)
		}
	}()

	for {
		c.conn.SetReadDeadline(time.Now().Add(idleGrace))
		body, err := codec.ReadFrame(c.conn, 0)
		if err != nil {
			if errors.Is(err, codec.ErrFrameTooLarge) {
				log.Printf("Transport: peer %s exceeded frame size limit, closing", c.peerID)
			} else {
				log.Printf("Transport: %v", fmt.Errorf("%w: %s: %v", errkind.ErrReceiveClosed, c.peerID, err))
			}
			return
		}

		decoded, err := c.codec.Decode(body)
		if err != nil {
			log.Printf("Transport: dropped malformed/undecryptable frame from %s: %v", c.peerID, err)
			continue
		}
		if decoded.Packet == nil {
			continue // handshake-shaped frame post-handshake: ignore, don't advance sequence
		}

		c.checkSequence(decoded.Packet.SequenceNumber)

		if t.callbacks.OnEvents != nil && len(decoded.Packet.Events) > 0 {
			t.callbacks.OnEvents(c.peerID, decoded.Packet.Events)
		}
	}
}

// Connection is one peer's live send/receive stream.
type Connection struct {
	peerID peer.ID
	conn   net.Conn
	codec  *codec.Codec

	sendSeq atomic.Uint32

	mu              sync.Mutex
	expectedRecvSeq uint32
	haveRecvSeq     bool
	closed          bool
}

func newConnection(id peer.ID, netConn net.Conn, c *codec.Codec) *Connection {
	return &Connection{peerID: id, conn: netConn, codec: c}
}

func (c *Connection) PeerID() peer.ID { return c.peerID }

// send serializes one InputPacket under the next monotonic sequence number
// and writes it as a single framed write; concurrent callers are serialized
// by write lock so a batch is never interleaved with another.
func (c *Connection) send(events []codec.Event) error {
	seq := c.sendSeq.Add(1)
	p := codec.NewInputPacket(seq, events)
	body, err := c.codec.EncodeInputPacket(p)
	if err != nil {
		return fmt.Errorf("transport: encode: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("%w: connection to %s is closed", errkind.ErrSendFailed, c.peerID)
	}
	return codec.WriteFrame(c.conn, body)
}

func (c *Connection) checkSequence(got uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.haveRecvSeq && got != c.expectedRecvSeq {
		log.Printf("Transport: %v", fmt.Errorf("%w: from %s: expected %d, got %d", errkind.ErrSequenceGap, c.peerID, c.expectedRecvSeq, got))
	}
	c.expectedRecvSeq = got + 1
	c.haveRecvSeq = true
}

func (c *Connection) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.conn.Close()
}
