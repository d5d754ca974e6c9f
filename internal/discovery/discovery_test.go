package discovery

import (
	"testing"

	"github.com/mouseshare/mouseshare/internal/peer"
)

func TestEncodeParseTXT(t *testing.T) {
	rec := Record{ID: peer.NewID(), Name: "desk-a", Version: "1.0", Width: 1920, Height: 1080, Port: 24801}
	entries := encodeTXT(rec)
	parsed := parseTXT(entries)

	if parsed["id"] != rec.ID.String() {
		t.Errorf("id mismatch: got %q want %q", parsed["id"], rec.ID.String())
	}
	if parsed["name"] != "desk-a" {
		t.Errorf("name mismatch: got %q", parsed["name"])
	}
	if parsed["width"] != "1920" || parsed["height"] != "1080" {
		t.Errorf("dims mismatch: %+v", parsed)
	}
}

func TestParseTXTIgnoresMalformedEntries(t *testing.T) {
	out := parseTXT([]string{"novalue", "id=abc", ""})
	if len(out) != 1 || out["id"] != "abc" {
		t.Errorf("got %+v", out)
	}
}

func TestServiceFiltersSelfByID(t *testing.T) {
	id := peer.NewID()
	registry := peer.NewRegistry()
	added := false
	svc := New(Record{ID: id, Name: "self"}, registry, Callbacks{
		OnPeerAdded: func(p *peer.Peer) { added = true },
	})

	svc.observe(parsedRecord{id: id, name: "self", host: "127.0.0.1", port: 24801})
	if added {
		t.Error("self-record by id should have been filtered")
	}
}

func TestServiceFiltersSelfByName(t *testing.T) {
	registry := peer.NewRegistry()
	added := false
	svc := New(Record{ID: peer.NewID(), Name: "desk-a"}, registry, Callbacks{
		OnPeerAdded: func(p *peer.Peer) { added = true },
	})

	svc.observe(parsedRecord{id: peer.NewID(), name: "desk-a", host: "127.0.0.1", port: 24801})
	if added {
		t.Error("self-record by name should have been filtered")
	}
}

func TestServiceAddsThenUpdatesPeer(t *testing.T) {
	registry := peer.NewRegistry()
	var addedCount, updatedCount int
	remoteID := peer.NewID()
	svc := New(Record{ID: peer.NewID(), Name: "self"}, registry, Callbacks{
		OnPeerAdded:   func(p *peer.Peer) { addedCount++ },
		OnPeerUpdated: func(p *peer.Peer) { updatedCount++ },
	})

	rec := parsedRecord{id: remoteID, name: "desk-b", host: "192.168.1.5", port: 24801, width: 2560, height: 1440}
	svc.observe(rec)
	if addedCount != 1 {
		t.Fatalf("expected 1 add, got %d", addedCount)
	}

	rec.host = "192.168.1.9"
	svc.observe(rec)
	if updatedCount != 1 {
		t.Fatalf("expected 1 update, got %d", updatedCount)
	}

	p, found := registry.GetByName("desk-b")
	if !found {
		t.Fatal("expected peer to be present")
	}
	if p.Endpoint().Host != "192.168.1.9" {
		t.Errorf("latest endpoint should win, got %q", p.Endpoint().Host)
	}
}
