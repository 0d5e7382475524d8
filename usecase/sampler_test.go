package usecase

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

type fakeFrameSource struct {
	mu     sync.Mutex
	frames int
	err    error
}

func (f *fakeFrameSource) NextFrame(ctx context.Context) (image.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.frames++
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), A: 255})
		}
	}
	return img, nil
}

func (f *fakeFrameSource) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

type fakeFrameSink struct {
	mu        sync.Mutex
	connected bool
	sent      []string
}

func (f *fakeFrameSink) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeFrameSink) SendImageFrame(mimeType, data string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, data)
	return nil
}

func (f *fakeFrameSink) setConnected(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = v
}

func (f *fakeFrameSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func TestSamplerSendsFramesOncePerTick(t *testing.T) {
	mock := clock.NewMock()
	source := &fakeFrameSource{}
	sink := &fakeFrameSink{connected: true}
	s := NewFrameSampler(source, sink, mock, zap.NewNop())
	s.Start()
	defer s.Stop()

	for i := 1; i <= 3; i++ {
		mock.Add(frameInterval)
		want := i
		waitFor(t, func() bool { return sink.count() == want })
	}
}

func TestSamplerGatedOnConnection(t *testing.T) {
	mock := clock.NewMock()
	source := &fakeFrameSource{}
	sink := &fakeFrameSink{connected: false}
	s := NewFrameSampler(source, sink, mock, zap.NewNop())
	s.Start()
	defer s.Stop()

	mock.Add(3 * frameInterval)
	time.Sleep(10 * time.Millisecond)
	if sink.count() != 0 {
		t.Fatalf("no frames expected while disconnected, got %d", sink.count())
	}

	sink.setConnected(true)
	mock.Add(frameInterval)
	waitFor(t, func() bool { return sink.count() == 1 })
}

func TestSamplerStopsItselfOnFailure(t *testing.T) {
	mock := clock.NewMock()
	source := &fakeFrameSource{}
	sink := &fakeFrameSink{connected: true}
	s := NewFrameSampler(source, sink, mock, zap.NewNop())
	s.Start()

	mock.Add(frameInterval)
	waitFor(t, func() bool { return sink.count() == 1 })

	source.setErr(errors.New("capture lost"))
	mock.Add(frameInterval)
	waitFor(t, func() bool { return !s.Running() })

	mock.Add(5 * frameInterval)
	time.Sleep(10 * time.Millisecond)
	if sink.count() != 1 {
		t.Errorf("failed sampler must not keep sending, got %d frames", sink.count())
	}
}

func TestEncodeFrameJPEGScalesWideFrames(t *testing.T) {
	wide := image.NewRGBA(image.Rect(0, 0, 2048, 1024))
	encoded, err := EncodeFrameJPEG(wide)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		t.Fatalf("output is not base64: %v", err)
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("output is not JPEG: %v", err)
	}
	if cfg.Width != 1024 || cfg.Height != 512 {
		t.Errorf("expected 1024x512, got %dx%d", cfg.Width, cfg.Height)
	}
}

func TestEncodeFrameJPEGKeepsNarrowFrames(t *testing.T) {
	narrow := image.NewRGBA(image.Rect(0, 0, 640, 480))
	encoded, err := EncodeFrameJPEG(narrow)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	raw, _ := base64.StdEncoding.DecodeString(encoded)
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("output is not JPEG: %v", err)
	}
	if cfg.Width != 640 || cfg.Height != 480 {
		t.Errorf("expected 640x480, got %dx%d", cfg.Width, cfg.Height)
	}
}
