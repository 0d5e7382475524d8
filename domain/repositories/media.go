package repositories

import (
	"context"
	"image"
)

// FrameSource supplies screen-share frames for periodic sampling. NextFrame
// blocks until a frame is available or the context ends.
type FrameSource interface {
	NextFrame(ctx context.Context) (image.Image, error)
}
