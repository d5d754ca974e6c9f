//go:build !windows

package autostart

import "fmt"

func enableWindows() error {
	return fmt.Errorf("autostart: windows registry path built on a non-windows target")
}

func disableWindows() error {
	return fmt.Errorf("autostart: windows registry path built on a non-windows target")
}

func isEnabledWindows() bool {
	return false
}
