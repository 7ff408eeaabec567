//go:build !linux

package capture

import "context"

func openPortal(ctx context.Context, options *Options, reader *Reader) (*Stream, error) {
	return nil, ErrNotImplemented
}
