// Package config loads and persists the Settings record from spec.md
// section 3, plus the locally-generated peer identity, following the
// teacher's own config.Manager: a JSON blob under a per-OS application
// support directory, loaded once at startup, saved on every Set, with an
// optional change callback.
package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/mouseshare/mouseshare/internal/peer"
)

// EdgeThresholdMin/Max and CornerDeadZoneMin/Max are the clamps from
// spec.md section 3: edgeThreshold in [1,10]px, cornerDeadZone in [0,50]px.
const (
	EdgeThresholdMin = 1.0
	EdgeThresholdMax = 10.0

	CornerDeadZoneMin = 0.0
	CornerDeadZoneMax = 50.0
)

// AllowedTransitionDelaysMS enumerates the only valid transitionDelay
// values (spec.md section 3: "transitionDelay in {0,100,250,500}ms").
var AllowedTransitionDelaysMS = []int{0, 100, 250, 500}

// ScreenPosition is one persisted entry of Settings.Arrangement: enough to
// reconstruct an arrangement.Arrangement's screen list across restarts,
// without this package depending on the arrangement package's mutable types.
// The legacy edge-link table is persisted separately, as EdgeLinkPosition.
type ScreenPosition struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	W       float64 `json:"w"`
	H       float64 `json:"h"`
	IsLocal bool    `json:"is_local"`
	PeerID  string  `json:"peer_id,omitempty"`
}

// EdgeLinkPosition is one persisted legacy explicit edge-to-peer binding
// (spec.md section 4.7: "Auto-linking ... persisted").
type EdgeLinkPosition struct {
	Edge   int    `json:"edge"`
	PeerID string `json:"peer_id"`
}

// Settings is the record from spec.md section 3.
type Settings struct {
	EncryptionEnabled    bool   `json:"encryption_enabled"`
	Password             string `json:"password"`
	ClipboardSyncEnabled bool   `json:"clipboard_sync_enabled"`
	AutoConnect          bool   `json:"auto_connect"`

	// AutostartEnabled is toggled from Settings (spec.md section 7's
	// "Settings UI ... auto-start toggle") and reconciled against the OS
	// login-item registration by internal/autostart.SetEnabled whenever
	// Settings changes.
	AutostartEnabled bool `json:"autostart_enabled"`

	EdgeThreshold     float64 `json:"edge_threshold"`
	CornerDeadZone    float64 `json:"corner_dead_zone"`
	TransitionDelayMS int     `json:"transition_delay_ms"`

	Arrangement []ScreenPosition   `json:"arrangement"`
	EdgeLinks   []EdgeLinkPosition `json:"edge_links,omitempty"`

	// PeerID is the persisted local peer UUID (spec.md section 6:
	// "Persisted state: ... a persisted local peer UUID"), generated once
	// on first run and held stable across restarts.
	PeerID string `json:"peer_id"`

	PeerName string `json:"peer_name"`
}

// DefaultSettings returns the spec.md section 6 timer/threshold defaults
// with a freshly generated peer id and host name.
func DefaultSettings() *Settings {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "mouseshare-host"
	}
	return &Settings{
		EncryptionEnabled:    false,
		ClipboardSyncEnabled: true,
		AutoConnect:          true,
		AutostartEnabled:     false,
		EdgeThreshold:        1,
		CornerDeadZone:       10,
		TransitionDelayMS:    0,
		PeerID:               peer.NewID().String(),
		PeerName:             hostname,
	}
}

// Manager owns the on-disk Settings blob.
type Manager struct {
	mu         sync.Mutex
	configPath string
	settings   *Settings
	onChanged  func()
}

// NewManager creates a Manager backed by the per-OS config path, seeded
// with defaults until Load is called.
func NewManager() (*Manager, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}
	return &Manager{
		configPath: configPath,
		settings:   DefaultSettings(),
	}, nil
}

// NewManagerAt creates a Manager backed by an explicit path, bypassing the
// per-OS lookup in getConfigPath. Used by callers (tests, embedders) that
// need control over where settings live.
func NewManagerAt(configPath string) *Manager {
	return &Manager{configPath: configPath, settings: DefaultSettings()}
}

func getConfigPath() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "mouseshare")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		configDir = filepath.Join(appData, "mouseshare")
	default:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, ".config", "mouseshare")
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", err
	}
	return filepath.Join(configDir, "settings.json"), nil
}

// Load reads Settings from disk, generating and persisting a fresh peer id
// if none is on disk yet (first run). Missing file is not an error.
func (m *Manager) Load() error {
	m.mu.Lock()
	data, err := os.ReadFile(m.configPath)
	if os.IsNotExist(err) {
		m.mu.Unlock()
		return m.Save()
	}
	if err != nil {
		m.mu.Unlock()
		return err
	}

	if err := json.Unmarshal(data, m.settings); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("config: parse %s: %w", m.configPath, err)
	}
	if m.settings.PeerID == "" {
		m.settings.PeerID = peer.NewID().String()
	}
	onChanged := m.onChanged
	m.mu.Unlock()

	if onChanged != nil {
		onChanged()
	}
	return nil
}

// Save writes the current Settings to disk.
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := json.MarshalIndent(m.settings, "", "  ")
	if err != nil {
		return err
	}
	log.Printf("Config: saving settings to %s (%d bytes)", m.configPath, len(data))
	return os.WriteFile(m.configPath, data, 0644)
}

// Get returns the current Settings.
func (m *Manager) Get() *Settings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settings
}

// Set replaces the current Settings and persists them.
func (m *Manager) Set(s *Settings) error {
	m.mu.Lock()
	m.settings = s
	onChanged := m.onChanged
	m.mu.Unlock()

	if onChanged != nil {
		onChanged()
	}
	return m.Save()
}

// RegisterChangeCallback registers a function invoked after every Set and
// after a Load that read an existing file. A first-run Load, which only
// writes the defaults, does not invoke it.
func (m *Manager) RegisterChangeCallback(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChanged = fn
}

// SetArrangement replaces the persisted screen layout, used when the
// Controller's Arrangement changes (a user drag in the settings UI, or a
// fresh auto-link).
func (m *Manager) SetArrangement(screens []ScreenPosition) error {
	m.mu.Lock()
	m.settings.Arrangement = screens
	m.mu.Unlock()
	return m.Save()
}

// SetEdgeLinks replaces the persisted legacy edge-link table.
func (m *Manager) SetEdgeLinks(links []EdgeLinkPosition) error {
	m.mu.Lock()
	m.settings.EdgeLinks = links
	m.mu.Unlock()
	return m.Save()
}

// ClampEdgeThreshold enforces spec.md section 3's edgeThreshold in [1,10]px.
func ClampEdgeThreshold(v float64) float64 {
	if v < EdgeThresholdMin {
		return EdgeThresholdMin
	}
	if v > EdgeThresholdMax {
		return EdgeThresholdMax
	}
	return v
}

// ClampCornerDeadZone enforces spec.md section 3's cornerDeadZone in
// [0,50]px.
func ClampCornerDeadZone(v float64) float64 {
	if v < CornerDeadZoneMin {
		return CornerDeadZoneMin
	}
	if v > CornerDeadZoneMax {
		return CornerDeadZoneMax
	}
	return v
}

// NearestAllowedTransitionDelayMS snaps an arbitrary millisecond value to
// the nearest member of AllowedTransitionDelaysMS.
func NearestAllowedTransitionDelayMS(v int) int {
	best := AllowedTransitionDelaysMS[0]
	bestDist := abs(v - best)
	for _, d := range AllowedTransitionDelaysMS[1:] {
		if dist := abs(v - d); dist < bestDist {
			best, bestDist = d, dist
		}
	}
	return best
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
