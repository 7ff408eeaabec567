package capture

import (
	"context"
	"fmt"
	"hash/maphash"
	"image"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/kbinani/screenshot"

	"go2tv.app/gamevision/frame"
	"go2tv.app/gamevision/internal/logging"
)

type grabFunc func(bounds image.Rectangle) (*image.RGBA, error)

// poller grabs the display on a ticker and queues only images that changed,
// so redraws still follow what happens on screen.
type poller struct {
	bounds   image.Rectangle
	interval time.Duration
	grab     grabFunc
	reader   *Reader
	log      *slog.Logger

	seed        maphash.Seed
	last        uint64
	haveLast    bool
	failures    atomic.Uint64
	unchanged   atomic.Uint64
	lastFailLog atomic.Int64
}

func openScreenshot(ctx context.Context, options *Options, reader *Reader, grab grabFunc) (*Stream, error) {
	n := screenshot.NumActiveDisplays()
	if n <= 0 {
		return nil, ErrNoStreams
	}
	if options.Display >= n {
		return nil, fmt.Errorf("%w: Display %d out of range (displays=%d)", ErrInvalidOptions, options.Display, n)
	}
	bounds := screenshot.GetDisplayBounds(options.Display)
	if bounds.Empty() {
		return nil, ErrNoStreams
	}
	if grab == nil {
		grab = screenshot.CaptureRect
	}

	p := newPoller(bounds, options.PollInterval, grab, reader)
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.run(ctx)
	}()

	format := frame.RGBA8888
	if options.Format != 0 {
		format = options.Format
	}
	return &Stream{
		Width:   bounds.Dx(),
		Height:  bounds.Dy(),
		Format:  format,
		Backend: BackendScreenshot,
		Reader:  reader,
		closeFn: func() error {
			cancel()
			<-done
			return nil
		},
	}, nil
}

func newPoller(bounds image.Rectangle, interval time.Duration, grab grabFunc, reader *Reader) *poller {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &poller{
		bounds:   bounds,
		interval: interval,
		grab:     grab,
		reader:   reader,
		log:      logging.For("capture"),
		seed:     maphash.MakeSeed(),
	}
}

func (p *poller) run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.poll()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll()
		}
	}
}

// poll grabs once and reports whether an image was queued.
func (p *poller) poll() bool {
	img, err := p.grab(p.bounds)
	if err != nil {
		total := p.failures.Add(1)
		if logging.Every(&p.lastFailLog, 5*time.Second) {
			p.log.Warn("screenshot failed", "error", err, "total", total)
		}
		return false
	}

	sum := maphash.Bytes(p.seed, img.Pix)
	if p.haveLast && sum == p.last {
		p.unchanged.Add(1)
		return false
	}
	p.last, p.haveLast = sum, true

	b := img.Bounds()
	return p.reader.Queue(img.Pix, b.Dx(), b.Dy(), img.Stride, frame.RGBA8888)
}
