//go:build !darwin && !windows

package capture

import "fmt"

// stubSource is the fallback on platforms with no global input tap wired up
// (mirroring the teacher's trap_stub.go).
type stubSource struct {
	*base
}

func NewSource() Source {
	return &stubSource{base: newBase()}
}

func (s *stubSource) Start(sink Sink) error {
	s.setSink(sink)
	return fmt.Errorf("capture: global input tap not supported on this platform")
}

func (s *stubSource) Stop() error { return nil }
