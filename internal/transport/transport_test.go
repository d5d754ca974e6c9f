package transport

import (
	"context"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/mouseshare/mouseshare/internal/codec"
	"github.com/mouseshare/mouseshare/internal/peer"
)

func splitHostPort(t *testing.T, addr net.Addr) peer.Endpoint {
	t.Helper()
	host, portStr, err := net.SplitHostPort(addr.String())
	if err != nil {
		t.Fatal(err)
	}
	if host == "" || host == "::" {
		host = "127.0.0.1"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatal(err)
	}
	return peer.Endpoint{Host: host, Port: port}
}

func TestHandshakeAndPacketRoundTrip(t *testing.T) {
	acceptorID := peer.NewID()
	initiatorID := peer.NewID()

	var mu sync.Mutex
	var acceptorGotEvents []codec.Event
	gotEvents := make(chan struct{}, 1)

	acceptor := New(LocalInfo{
		PeerID: acceptorID, PeerName: "acceptor", ScreenW: 1920, ScreenH: 1080,
	}, Callbacks{
		OnEvents: func(id peer.ID, events []codec.Event) {
			mu.Lock()
			acceptorGotEvents = append(acceptorGotEvents, events...)
			mu.Unlock()
			gotEvents <- struct{}{}
		},
	})

	addr, err := acceptor.Bind(0)
	if err != nil {
		t.Fatal(err)
	}
	stop := make(chan struct{})
	defer close(stop)
	go acceptor.Serve(stop)

	initiator := New(LocalInfo{
		PeerID: initiatorID, PeerName: "initiator", ScreenW: 1280, ScreenH: 720,
	}, Callbacks{})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, err := initiator.Connect(ctx, acceptorID, splitHostPort(t, addr))
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	if conn.PeerID() != acceptorID {
		t.Errorf("expected resolved peer id %s, got %s", acceptorID, conn.PeerID())
	}

	if err := initiator.Send(acceptorID, []codec.Event{codec.NewMouseMove(1, 2, 0)}); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	select {
	case <-gotEvents:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for acceptor to receive events")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(acceptorGotEvents) != 1 || acceptorGotEvents[0].Kind != codec.EventMouseMove {
		t.Fatalf("got %+v", acceptorGotEvents)
	}
}

func TestHandshakeRejectsEncryptionMismatch(t *testing.T) {
	acceptorID := peer.NewID()
	initiatorID := peer.NewID()

	acceptor := New(LocalInfo{PeerID: acceptorID, PeerName: "acceptor", EncryptionEnabled: true, Key: make([]byte, 32)}, Callbacks{})
	addr, err := acceptor.Bind(0)
	if err != nil {
		t.Fatal(err)
	}
	stop := make(chan struct{})
	defer close(stop)
	go acceptor.Serve(stop)

	initiator := New(LocalInfo{PeerID: initiatorID, PeerName: "initiator", EncryptionEnabled: false}, Callbacks{})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = initiator.Connect(ctx, acceptorID, splitHostPort(t, addr))
	if err == nil {
		t.Fatal("expected handshake rejection due to encryption mismatch")
	}
}

func TestSendToUnknownPeerFails(t *testing.T) {
	tr := New(LocalInfo{PeerID: peer.NewID(), PeerName: "solo"}, Callbacks{})
	if err := tr.Send(peer.NewID(), nil); err == nil {
		t.Error("expected error sending to a peer with no live connection")
	}
}
