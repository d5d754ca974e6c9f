// Package displays enumerates the local machine's physical monitors in OS
// screen coordinates, for handing to arrangement.InitializeLocalDisplays at
// startup and whenever the display configuration changes. Each platform
// file owns the actual enumeration syscalls/cgo, following the same split
// as the injection and capture packages.
package displays

import "github.com/mouseshare/mouseshare/internal/arrangement"

// Local returns every currently attached physical display. Exactly one
// entry has IsPrimary set, unless the platform reports none, in which case
// arrangement.InitializeLocalDisplays applies no origin shift and keeps the
// OS coordinates as reported.
func Local() []arrangement.LocalDisplay {
	return localDisplays()
}
