// mouseshare relays mouse and keyboard input across machines on the same
// local network: move the cursor to a screen edge and control seamlessly
// crosses onto whichever peer is arranged there, the way a single desktop
// spans multiple monitors.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/mouseshare/mouseshare/internal/arrangement"
	"github.com/mouseshare/mouseshare/internal/autostart"
	"github.com/mouseshare/mouseshare/internal/capture"
	"github.com/mouseshare/mouseshare/internal/clipboardbridge"
	"github.com/mouseshare/mouseshare/internal/codec"
	"github.com/mouseshare/mouseshare/internal/config"
	"github.com/mouseshare/mouseshare/internal/controller"
	"github.com/mouseshare/mouseshare/internal/discovery"
	"github.com/mouseshare/mouseshare/internal/displays"
	"github.com/mouseshare/mouseshare/internal/hotkey"
	"github.com/mouseshare/mouseshare/internal/injection"
	"github.com/mouseshare/mouseshare/internal/osutils"
	"github.com/mouseshare/mouseshare/internal/peer"
	"github.com/mouseshare/mouseshare/internal/tray"
	"github.com/mouseshare/mouseshare/internal/transport"
)

var (
	version   = "0.1.0"
	showVer   = flag.Bool("version", false, "Show version")
	listPeers = flag.Bool("list", false, "Browse for peers on the local network for a few seconds and print them")
	connectTo = flag.String("connect", "", "Wait for a peer with this name to appear, connect, then exit")
	noTray    = flag.Bool("no-tray", false, "Run without the system tray icon")
)

func main() {
	flag.Parse()

	if *showVer {
		fmt.Printf("mouseshare version %s\n", version)
		return
	}

	cfgMgr, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to initialize config: %v", err)
	}
	if err := cfgMgr.Load(); err != nil {
		log.Printf("Warning: failed to load config: %v", err)
	}

	if *listPeers {
		runListPeers(cfgMgr)
		return
	}
	if *connectTo != "" {
		runConnect(cfgMgr, *connectTo)
		return
	}

	runService(cfgMgr)
}

// newRecord builds this host's advertised discovery record from Settings
// and an already-known local screen size (spec.md section 4.2/6).
func newRecord(s *config.Settings, w, h, port int) discovery.Record {
	id, err := peer.ParseID(s.PeerID)
	if err != nil {
		id = peer.NewID()
	}
	return discovery.Record{ID: id, Name: s.PeerName, Version: version, Width: w, Height: h, Port: port}
}

// primaryLocalSize reports the width/height of the primary local display in
// an Arrangement that has already had InitializeLocalDisplays run (the local
// screen normalized to the (0,0) origin), falling back to the first local
// screen if none sits at the origin, and to a common default if, for whatever
// reason, none is marked local.
func primaryLocalSize(arr *arrangement.Arrangement) (int, int) {
	w, h, found := 1920, 1080, false
	for _, sc := range arr.Screens() {
		if !sc.IsLocal {
			continue
		}
		if sc.X == 0 && sc.Y == 0 {
			return int(sc.W), int(sc.H)
		}
		if !found {
			w, h, found = int(sc.W), int(sc.H), true
		}
	}
	return w, h
}

// maxTraySlots bounds the peer submenu: tray.Tray's underlying systray
// wrapper only builds items that existed before Run (see tray.go's
// setupMenu), so the submenu is a fixed pool of slots relabeled in place
// as the discovered-peer set changes, rather than rebuilt per peer.
const maxTraySlots = 8

// peerMenuLabel renders one tray submenu entry (spec.md section 7's tray
// peer list), the title doubling as the available action's description.
func peerMenuLabel(p *peer.Peer) string {
	switch p.State() {
	case peer.Controlling:
		return fmt.Sprintf("%s - Controlling (click to stop)", p.Name())
	case peer.Controlled:
		return fmt.Sprintf("%s - Controlled by (click to stop)", p.Name())
	case peer.Connected:
		return fmt.Sprintf("%s - Connected (click to disconnect)", p.Name())
	case peer.Connecting:
		return fmt.Sprintf("%s - Connecting...", p.Name())
	default:
		return fmt.Sprintf("%s - click to connect", p.Name())
	}
}

// setupPeerSubmenu wires the tray's discovered-peer list with connect/
// disconnect actions (SPEC_FULL.md's SUPPLEMENTED FEATURES tray entry).
// Must be called before trayUI.Run(), since AddMenuItem only takes effect
// at tray setup time; the background refresh loop started here relabels
// the fixed slot pool via SetTitle once the tray is actually running.
func setupPeerSubmenu(trayUI *tray.Tray, registry *peer.Registry, ctrl *controller.Controller, stop chan struct{}) {
	var mu sync.Mutex
	slotPeers := make([]peer.ID, maxTraySlots)
	slotItemIDs := make([]int, maxTraySlots)

	for i := 0; i < maxTraySlots; i++ {
		idx := i
		slotItemIDs[idx] = trayUI.AddMenuItem("", func() {
			mu.Lock()
			id := slotPeers[idx]
			mu.Unlock()
			var zero peer.ID
			if id == zero {
				return
			}
			p, ok := registry.Get(id)
			if !ok {
				return
			}
			switch p.State() {
			case peer.Controlling, peer.Controlled:
				ctrl.ForceLocal()
			case peer.Connected, peer.Connecting:
				ctrl.Disconnect(id)
			default:
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := ctrl.Connect(ctx, id); err != nil {
					log.Printf("Tray: connect to %s failed: %v", p.Name(), err)
				}
			}
		})
	}

	go func() {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				peers := registry.All()
				mu.Lock()
				for i := 0; i < maxTraySlots; i++ {
					if i < len(peers) {
						p := peers[i]
						slotPeers[i] = p.ID()
						trayUI.SetTitle(slotItemIDs[i], peerMenuLabel(p))
						active := p.State() == peer.Controlling || p.State() == peer.Controlled
						trayUI.SetItemChecked(slotItemIDs[i], active)
					} else {
						var zero peer.ID
						slotPeers[i] = zero
						trayUI.SetTitle(slotItemIDs[i], "")
					}
				}
				mu.Unlock()
			}
		}
	}()
}

func runListPeers(cfgMgr *config.Manager) {
	s := cfgMgr.Get()
	arr := arrangement.New()
	arr.InitializeLocalDisplays(displays.Local())
	w, h := primaryLocalSize(arr)

	reg := peer.NewRegistry()
	svc := discovery.New(newRecord(s, w, h, transport.DefaultPort), reg, discovery.Callbacks{})

	stop := make(chan struct{})
	go svc.Run(stop)
	time.Sleep(3 * time.Second)
	close(stop)

	peers := reg.All()
	if len(peers) == 0 {
		fmt.Println("No peers found.")
		return
	}
	fmt.Println("Discovered peers:")
	for _, p := range peers {
		fmt.Printf("  %s  %s  screen=%dx%d\n", p.Name(), p.Endpoint(), p.Screen().Width, p.Screen().Height)
	}
}

func runConnect(cfgMgr *config.Manager, name string) {
	s := cfgMgr.Get()
	arr := arrangement.New()
	arr.InitializeLocalDisplays(displays.Local())
	w, h := primaryLocalSize(arr)

	reg := peer.NewRegistry()
	found := make(chan *peer.Peer, 1)
	svc := discovery.New(newRecord(s, w, h, transport.DefaultPort), reg, discovery.Callbacks{
		OnPeerAdded: func(p *peer.Peer) {
			if p.Name() == name {
				found <- p
			}
		},
	})

	stop := make(chan struct{})
	go svc.Run(stop)
	defer close(stop)

	select {
	case p := <-found:
		localID, _ := peer.ParseID(s.PeerID)
		tr := transport.New(transport.LocalInfo{PeerID: localID, PeerName: s.PeerName}, transport.Callbacks{})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := tr.Connect(ctx, p.ID(), p.Endpoint()); err != nil {
			log.Fatalf("Connect to %s failed: %v", name, err)
		}
		fmt.Printf("Connected to %s at %s\n", name, p.Endpoint())
	case <-time.After(10 * time.Second):
		log.Fatalf("No peer named %q seen within 10s", name)
	}
}

func runService(cfgMgr *config.Manager) {
	log.Println("mouseshare starting...")
	settings := cfgMgr.Get()

	localID, err := peer.ParseID(settings.PeerID)
	if err != nil {
		localID = peer.NewID()
	}

	registry := peer.NewRegistry()
	arr := arrangement.New()
	arr.InitializeLocalDisplays(displays.Local())
	for _, l := range settings.EdgeLinks {
		if id, err := peer.ParseID(l.PeerID); err == nil {
			arr.SetEdgeLink(arrangement.Edge(l.Edge), id)
		}
	}

	localW, localH := primaryLocalSize(arr)

	src := capture.NewSource()
	injector := injection.NewInjector()

	var clipBackend clipboardbridge.Backend
	if b, err := clipboardbridge.NewBackend(); err != nil {
		log.Printf("Clipboard: no backend on this platform: %v", err)
	} else {
		clipBackend = b
	}

	// Transport needs its Callbacks at construction time, but those
	// callbacks are Controller methods and Controller needs the already
	// constructed Transport as a dependency. Breaking the cycle: the
	// closures below capture ctrl by reference and are only ever invoked
	// once ctrl has been assigned, below.
	var ctrl *controller.Controller
	var bridge *clipboardbridge.Bridge

	var sessionKey []byte
	if settings.EncryptionEnabled {
		sessionKey, err = codec.DeriveSessionKey(settings.Password)
		if err != nil {
			log.Fatalf("Failed to derive session key: %v", err)
		}
	}

	tr := transport.New(transport.LocalInfo{
		PeerID:            localID,
		PeerName:          settings.PeerName,
		ScreenW:           localW,
		ScreenH:           localH,
		EncryptionEnabled: settings.EncryptionEnabled,
		Key:               sessionKey,
	}, transport.Callbacks{
		OnHandshakeAccepted: func(id peer.ID, name string, screen peer.ScreenDims) {
			ctrl.TransportCallbacks().OnHandshakeAccepted(id, name, screen)
		},
		OnEvents: func(id peer.ID, events []codec.Event) {
			ctrl.TransportCallbacks().OnEvents(id, events)
		},
		OnDisconnected: func(id peer.ID) {
			ctrl.TransportCallbacks().OnDisconnected(id)
		},
	})

	var trayUI *tray.Tray
	ctrl = controller.New(controller.Deps{
		LocalID:     localID,
		LocalName:   settings.PeerName,
		Registry:    registry,
		Arrangement: arr,
		Transport:   tr,
		Injector:    injector,
		Capture:     src,
		Clipboard:   nil, // filled in below, once ctrl can supply the broadcast callback
		Settings:    cfgMgr,
		OnStatus: func(status string) {
			if trayUI != nil {
				trayUI.SetStatus(status)
			}
		},
	})

	if clipBackend != nil {
		bridge = clipboardbridge.New(clipBackend, ctrl.BroadcastClipboardUpdate)
		ctrl.SetClipboard(bridge)
	}

	stop := make(chan struct{})

	if runtime.GOOS == "windows" {
		go func() {
			if err := osutils.EnsureFirewallRule(transport.DefaultPort); err != nil {
				log.Printf("Firewall warning: %v", err)
			}
		}()
	}

	if _, err := tr.Bind(transport.DefaultPort); err != nil {
		log.Fatalf("Failed to bind transport listener: %v", err)
	}
	go tr.Serve(stop)

	disco := discovery.New(newRecord(settings, localW, localH, transport.DefaultPort), registry, discovery.Callbacks{
		OnPeerAdded: ctrl.MaybeAutoConnect,
		OnPeerLost:  ctrl.OnPeerLost,
	})
	go disco.Run(stop)

	if err := autostart.SetEnabled(settings.AutostartEnabled); err != nil {
		log.Printf("Autostart: failed to apply initial state: %v", err)
	}
	cfgMgr.RegisterChangeCallback(func() {
		if err := autostart.SetEnabled(cfgMgr.Get().AutostartEnabled); err != nil {
			log.Printf("Autostart: failed to apply: %v", err)
		}
	})

	hkMgr := hotkey.NewManager()
	hkMgr.Register("Ctrl+Alt+Escape", ctrl.ForceLocal)
	if err := hkMgr.Start(); err != nil {
		log.Printf("Warning: hotkey engine failed to start: %v", err)
	}

	if err := ctrl.Run(); err != nil {
		log.Fatalf("Controller failed to start: %v", err)
	}
	if bridge != nil {
		go bridge.Run(stop)
	}

	if !*noTray {
		trayUI = tray.New("mouseshare")
		setupPeerSubmenu(trayUI, registry, ctrl, stop)
		trayUI.AddSeparator()
		trayUI.AddMenuItem("Quit", func() {
			close(stop)
			ctrl.Stop()
			os.Exit(0)
		})
		go trayUI.Run()
	}

	log.Printf("Autostart enabled: %v", autostart.IsEnabled())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("mouseshare shutting down")
	close(stop)
	ctrl.Stop()
	if trayUI != nil {
		trayUI.Stop()
	}
}
