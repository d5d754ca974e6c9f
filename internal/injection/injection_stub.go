//go:build !darwin && !windows

package injection

import (
	"sync"

	"github.com/mouseshare/mouseshare/internal/arrangement"
	"github.com/mouseshare/mouseshare/internal/codec"
)

type stubInjector struct {
	mu     sync.Mutex
	bounds Bounds
	pos    Point
}

func NewInjector() Injector {
	return &stubInjector{}
}

func (s *stubInjector) SetBounds(b Bounds) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bounds = b
}

func (s *stubInjector) Inject(e codec.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch e.Kind {
	case codec.EventMouseMove:
		s.pos = s.bounds.clamp(Point{X: s.pos.X + e.MouseMove.DX, Y: s.pos.Y + e.MouseMove.DY})
	case codec.EventMouseDrag:
		s.pos = s.bounds.clamp(Point{X: s.pos.X + e.MouseButton.DragDX, Y: s.pos.Y + e.MouseButton.DragDY})
	}
}

func (s *stubInjector) MoveTo(p Point) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pos = p
}

func (s *stubInjector) ParkCursor() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pos = center(s.bounds)
}

func (s *stubInjector) WarpToEdge(edge arrangement.Edge, relativePos float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pos = PointForEdge(s.bounds, edge, relativePos)
}

func (s *stubInjector) SetCursorVisible(visible bool) {}
