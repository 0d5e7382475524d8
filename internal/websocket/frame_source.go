package websocket

import (
	"context"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"sync"
)

// ScreenFrameSource buffers the most recent screen-share frame pushed by the
// client. NextFrame hands the sampler the latest frame, blocking only until
// the first one arrives.
type ScreenFrameSource struct {
	mu    sync.Mutex
	frame image.Image
	ready chan struct{}
}

// NewScreenFrameSource creates an empty frame buffer.
func NewScreenFrameSource() *ScreenFrameSource {
	return &ScreenFrameSource{ready: make(chan struct{})}
}

// Push replaces the buffered frame.
func (s *ScreenFrameSource) Push(frame image.Image) {
	s.mu.Lock()
	defer s.mu.Unlock()
	first := s.frame == nil
	s.frame = frame
	if first {
		close(s.ready)
	}
}

// NextFrame returns the latest frame, waiting for the first push.
func (s *ScreenFrameSource) NextFrame(ctx context.Context) (image.Image, error) {
	select {
	case <-s.ready:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame, nil
}
