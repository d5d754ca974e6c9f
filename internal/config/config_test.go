package config

import (
	"os"
	"path/filepath"
	"testing"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	dir := t.TempDir()
	return &Manager{configPath: filepath.Join(dir, "settings.json"), settings: DefaultSettings()}
}

func TestLoadWithNoFileWritesDefaults(t *testing.T) {
	m := newTestManager(t)
	if err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := os.Stat(m.configPath); err != nil {
		t.Fatalf("expected defaults to be written to disk: %v", err)
	}
	if m.Get().PeerID == "" {
		t.Fatalf("expected a generated peer id")
	}
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	m := newTestManager(t)
	s := m.Get()
	s.EncryptionEnabled = true
	s.Password = "correct-horse-battery-staple"
	s.EdgeThreshold = 5
	if err := m.Set(s); err != nil {
		t.Fatalf("Set: %v", err)
	}

	m2 := &Manager{configPath: m.configPath, settings: DefaultSettings()}
	if err := m2.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	got := m2.Get()
	if !got.EncryptionEnabled || got.Password != "correct-horse-battery-staple" || got.EdgeThreshold != 5 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestLoadPreservesPeerIDAcrossRestarts(t *testing.T) {
	m := newTestManager(t)
	if err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	firstID := m.Get().PeerID

	m2 := &Manager{configPath: m.configPath, settings: DefaultSettings()}
	if err := m2.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m2.Get().PeerID != firstID {
		t.Fatalf("expected stable peer id across restarts, got %s then %s", firstID, m2.Get().PeerID)
	}
}

func TestRegisterChangeCallbackFiresOnSet(t *testing.T) {
	m := newTestManager(t)
	calls := 0
	m.RegisterChangeCallback(func() { calls++ })

	if err := m.Set(DefaultSettings()); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 callback invocation, got %d", calls)
	}
}

func TestClampEdgeThreshold(t *testing.T) {
	cases := map[float64]float64{-5: 1, 0: 1, 1: 1, 5.5: 5.5, 10: 10, 50: 10}
	for in, want := range cases {
		if got := ClampEdgeThreshold(in); got != want {
			t.Errorf("ClampEdgeThreshold(%v) = %v, want %v", in, got, want)
		}
	}
}

func TestClampCornerDeadZone(t *testing.T) {
	cases := map[float64]float64{-5: 0, 0: 0, 25: 25, 50: 50, 100: 50}
	for in, want := range cases {
		if got := ClampCornerDeadZone(in); got != want {
			t.Errorf("ClampCornerDeadZone(%v) = %v, want %v", in, got, want)
		}
	}
}

func TestNearestAllowedTransitionDelayMS(t *testing.T) {
	cases := map[int]int{-10: 0, 0: 0, 40: 0, 60: 100, 100: 100, 200: 250, 380: 500, 1000: 500}
	for in, want := range cases {
		if got := NearestAllowedTransitionDelayMS(in); got != want {
			t.Errorf("NearestAllowedTransitionDelayMS(%v) = %v, want %v", in, got, want)
		}
	}
}
