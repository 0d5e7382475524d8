package usecase

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/jpeg"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

const (
	frameInterval  = time.Second
	frameMaxWidth  = 1024
	frameJPEGLevel = 80
)

// FrameSink receives sampled screen-share frames.
type FrameSink interface {
	Connected() bool
	SendImageFrame(mimeType, data string) error
}

// frameGrabber matches repositories.FrameSource without importing it here.
type frameGrabber interface {
	NextFrame(ctx context.Context) (image.Image, error)
}

// FrameSampler periodically captures a screen-share frame, downscales it,
// and streams it into the live session as JPEG. Sampling failures stop the
// sampler without touching the session.
type FrameSampler struct {
	source frameGrabber
	sink   FrameSink
	clk    clock.Clock
	logger *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewFrameSampler builds a stopped sampler.
func NewFrameSampler(source frameGrabber, sink FrameSink, clk clock.Clock, logger *zap.Logger) *FrameSampler {
	return &FrameSampler{source: source, sink: sink, clk: clk, logger: logger}
}

// Start begins sampling once per second. A running sampler is restarted.
func (s *FrameSampler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	ticker := s.clk.Ticker(frameInterval)
	go s.run(ctx, ticker)
}

// Stop halts sampling. Safe to call when already stopped.
func (s *FrameSampler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// Running reports whether the sampler is active.
func (s *FrameSampler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

func (s *FrameSampler) run(ctx context.Context, ticker *clock.Ticker) {
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.sink.Connected() {
				continue
			}
			if err := s.sampleOnce(ctx); err != nil {
				s.logger.Error("Frame sampling failed, stopping", zap.Error(err))
				s.Stop()
				return
			}
		}
	}
}

func (s *FrameSampler) sampleOnce(ctx context.Context) error {
	frame, err := s.source.NextFrame(ctx)
	if err != nil {
		return err
	}

	encoded, err := EncodeFrameJPEG(frame)
	if err != nil {
		return err
	}
	return s.sink.SendImageFrame("image/jpeg", encoded)
}

// EncodeFrameJPEG downscales a frame to at most 1024px wide and returns it
// base64-encoded as JPEG.
func EncodeFrameJPEG(frame image.Image) (string, error) {
	frame = scaleFrame(frame, frameMaxWidth)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame, &jpeg.Options{Quality: frameJPEGLevel}); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// scaleFrame shrinks an image to maxWidth preserving aspect ratio. Frames
// already narrow enough pass through untouched.
func scaleFrame(src image.Image, maxWidth int) image.Image {
	bounds := src.Bounds()
	width := bounds.Dx()
	if width <= maxWidth || width == 0 {
		return src
	}

	height := bounds.Dy()
	outW := maxWidth
	outH := height * maxWidth / width
	if outH < 1 {
		outH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, outW, outH))
	for y := 0; y < outH; y++ {
		srcY := bounds.Min.Y + y*height/outH
		for x := 0; x < outW; x++ {
			srcX := bounds.Min.X + x*width/outW
			dst.Set(x, y, src.At(srcX, srcY))
		}
	}
	return dst
}
