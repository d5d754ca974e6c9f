//go:build !darwin && !windows

package displays

import "github.com/mouseshare/mouseshare/internal/arrangement"

// localDisplays has no real enumeration wired up on this platform (mirroring
// capture's stub source), so it reports a single synthetic display sized
// for a common desktop. A real arrangement still forms around it; only edge
// detection and injection are unavailable until capture/injection gain a
// real backend here too.
func localDisplays() []arrangement.LocalDisplay {
	return []arrangement.LocalDisplay{
		{ID: "0", Name: "Display 0", X: 0, Y: 0, W: 1920, H: 1080, IsPrimary: true},
	}
}
