// Package capture turns a platform screen capture into frames for the
// compositor. A backend queues raw images into a Reader; a Producer acquires
// the newest one and publishes it to the frame slot.
package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go2tv.app/gamevision/frame"
	"go2tv.app/gamevision/internal/logging"
	"go2tv.app/gamevision/internal/pipewire"
)

var (
	ErrNotImplemented = errors.New("screen capture backend is not implemented on this platform")
	ErrCancelled      = errors.New("screen capture request was cancelled")
	ErrNoStreams      = errors.New("screen capture returned no streams")
	ErrInvalidOptions = errors.New("invalid screen capture options")
)

// Backend names a capture implementation.
type Backend string

const (
	BackendAuto       Backend = "auto"
	BackendPortal     Backend = "portal"
	BackendScreenshot Backend = "screenshot"
)

const defaultPollInterval = time.Second / 30

// Options configures a capture session.
type Options struct {
	// Backend selects the capture implementation. Default is BackendAuto,
	// which prefers the portal where PipeWire is present.
	Backend Backend
	// StreamIndex selects the stream from the portal chooser result. Default is 0.
	StreamIndex int
	// Display selects the monitor for the screenshot backend. Default is 0.
	Display int
	// MaxImages bounds how many images the app may hold. Default is 2.
	MaxImages int
	// PollInterval paces the screenshot backend.
	PollInterval time.Duration
	// Format, when set, overrides the channel order reported by the backend.
	Format frame.PixelFormat
}

// Stream is a running capture feeding Reader.
type Stream struct {
	Width   int
	Height  int
	Format  frame.PixelFormat
	Backend Backend
	Reader  *Reader

	closeFn func() error
	once    sync.Once
	err     error
}

// Close stops the backend and drops any pending image. It is safe to call
// more than once.
func (s *Stream) Close() error {
	s.once.Do(func() {
		if s.closeFn != nil {
			s.err = s.closeFn()
		}
		s.Reader.Close()
	})
	return s.err
}

// settleFormat fills Format from the first image when the backend only learns
// it during negotiation.
func (s *Stream) settleFormat() {
	if s.Format == 0 {
		s.Format = s.Reader.Format()
	}
}

// Open starts capturing and returns once the first image arrived. listener
// is notified for every queued image.
func Open(ctx context.Context, options *Options, listener Listener) (*Stream, error) {
	options, err := validateOpenOptions(options)
	if err != nil {
		return nil, err
	}

	reader := NewReader(options.MaxImages, options.Format, listener)
	log := logging.For("capture")

	var stream *Stream
	switch options.Backend {
	case BackendPortal:
		stream, err = openPortal(ctx, options, reader)
	case BackendScreenshot:
		stream, err = openScreenshot(ctx, options, reader, nil)
	default:
		stream, err = openPortal(ctx, options, reader)
		if errors.Is(err, ErrNotImplemented) {
			log.Debug("portal unavailable, falling back to screenshots", "error", err)
			stream, err = openScreenshot(ctx, options, reader, nil)
		}
	}
	if err != nil {
		return nil, err
	}

	if err := waitForFirstFrame(ctx, string(stream.Backend), reader.Ready(), defaultFirstFrameTimeout, stream.Close); err != nil {
		return nil, err
	}
	stream.settleFormat()
	log.Info("capture started",
		"backend", stream.Backend,
		"width", stream.Width,
		"height", stream.Height,
		"format", stream.Format,
		"max_images", reader.MaxImages())
	return stream, nil
}

func pixelFormat(f pipewire.Format) frame.PixelFormat {
	switch f {
	case pipewire.FormatRGBA:
		return frame.RGBA8888
	case pipewire.FormatBGRA:
		return frame.BGRA8888
	case pipewire.FormatRGBx:
		return frame.RGBX8888
	case pipewire.FormatBGRx:
		return frame.BGRX8888
	}
	return 0
}

func streamRange(index, count int) error {
	if count == 0 {
		return ErrNoStreams
	}
	if index >= count {
		return fmt.Errorf("%w: StreamIndex %d out of range (streams=%d)", ErrInvalidOptions, index, count)
	}
	return nil
}
