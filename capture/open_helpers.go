package capture

import (
	"context"
	"fmt"
	"time"
)

const defaultFirstFrameTimeout = 8 * time.Second

func validateOpenOptions(options *Options) (*Options, error) {
	if options == nil {
		options = &Options{}
	}
	o := *options
	if o.StreamIndex < 0 {
		return nil, fmt.Errorf("%w: StreamIndex must be >= 0", ErrInvalidOptions)
	}
	if o.Display < 0 {
		return nil, fmt.Errorf("%w: Display must be >= 0", ErrInvalidOptions)
	}
	if o.MaxImages < 0 {
		return nil, fmt.Errorf("%w: MaxImages must be >= 0", ErrInvalidOptions)
	}
	switch o.Backend {
	case "":
		o.Backend = BackendAuto
	case BackendAuto, BackendPortal, BackendScreenshot:
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", ErrInvalidOptions, o.Backend)
	}
	if o.PollInterval <= 0 {
		o.PollInterval = defaultPollInterval
	}
	return &o, nil
}

func waitForFirstFrame(ctx context.Context, platform string, ready <-chan struct{}, timeout time.Duration, onTimeout func() error) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		if onTimeout != nil {
			_ = onTimeout()
		}
		return ctx.Err()
	case <-timer.C:
		if onTimeout != nil {
			_ = onTimeout()
		}
		return fmt.Errorf("%s capture timed out waiting for first frame", platform)
	}
}
