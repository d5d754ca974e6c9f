//go:build windows

package displays

import (
	"fmt"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/mouseshare/mouseshare/internal/arrangement"
)

const monitorInfofPrimary = 0x00000001

var (
	user32                  = windows.NewLazySystemDLL("user32.dll")
	procEnumDisplayMonitors = user32.NewProc("EnumDisplayMonitors")
	procGetMonitorInfoW     = user32.NewProc("GetMonitorInfoW")
)

type rect struct {
	Left, Top, Right, Bottom int32
}

type monitorInfoEx struct {
	Size      uint32
	Monitor   rect
	WorkArea  rect
	Flags     uint32
	Device    [32]uint16
}

func localDisplays() []arrangement.LocalDisplay {
	var out []arrangement.LocalDisplay
	cb := syscall.NewCallback(func(hMonitor uintptr, _ uintptr, _ uintptr, _ uintptr) uintptr {
		var info monitorInfoEx
		info.Size = uint32(unsafe.Sizeof(info))
		procGetMonitorInfoW.Call(hMonitor, uintptr(unsafe.Pointer(&info)))

		out = append(out, arrangement.LocalDisplay{
			ID:        fmt.Sprintf("%d", hMonitor),
			Name:      windows.UTF16ToString(info.Device[:]),
			X:         float64(info.Monitor.Left),
			Y:         float64(info.Monitor.Top),
			W:         float64(info.Monitor.Right - info.Monitor.Left),
			H:         float64(info.Monitor.Bottom - info.Monitor.Top),
			IsPrimary: info.Flags&monitorInfofPrimary != 0,
		})
		return 1 // continue enumeration
	})

	procEnumDisplayMonitors.Call(0, 0, cb, 0)
	return out
}
