//go:build linux

package capture

import (
	"context"
	"errors"
	"fmt"
	"syscall"

	"go2tv.app/gamevision/internal/logging"
	"go2tv.app/gamevision/internal/pipewire"
	"go2tv.app/gamevision/internal/portal"
)

func openPortal(ctx context.Context, options *Options, reader *Reader) (*Stream, error) {
	if !pipewire.IsAvailable() {
		return nil, fmt.Errorf("%w: %w", ErrNotImplemented, pipewire.ErrLibraryNotLoaded)
	}

	bus, err := portal.Connect()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotImplemented, err)
	}

	sess, err := bus.CreateSession(ctx)
	if errors.Is(err, portal.ErrCancelled) {
		return nil, ErrCancelled
	}
	if err != nil {
		return nil, err
	}

	// Close session on setup failure.
	cleanupSession := true
	defer func() {
		if cleanupSession {
			_ = sess.Close()
		}
	}()

	err = sess.SelectSources(ctx, selectOptions(ctx, bus))
	if errors.Is(err, portal.ErrCancelled) {
		return nil, ErrCancelled
	}
	if err != nil {
		return nil, err
	}

	streams, err := sess.Start(ctx, "")
	if errors.Is(err, portal.ErrCancelled) {
		return nil, ErrCancelled
	}
	if err != nil {
		return nil, err
	}
	if err := streamRange(options.StreamIndex, len(streams)); err != nil {
		return nil, err
	}

	selected := streams[options.StreamIndex]
	if selected.Size[0] <= 0 || selected.Size[1] <= 0 {
		return nil, fmt.Errorf("invalid stream size %dx%d", selected.Size[0], selected.Size[1])
	}

	fd, err := sess.OpenPipeWireRemote(ctx)
	if err != nil {
		return nil, err
	}
	defer syscall.Close(fd)

	handler := func(data []byte, width, height, stride int, format pipewire.Format) {
		reader.Queue(data, width, height, stride, pixelFormat(format))
	}
	pwStream, err := pipewire.NewStream(fd, selected.NodeID, uint32(selected.Size[0]), uint32(selected.Size[1]), handler)
	if err != nil {
		return nil, err
	}
	pwStream.Start()

	cleanupSession = false
	return &Stream{
		Width:   int(selected.Size[0]),
		Height:  int(selected.Size[1]),
		Format:  options.Format,
		Backend: BackendPortal,
		Reader:  reader,
		closeFn: func() error {
			return errors.Join(pwStream.Close(), pwStream.Err(), sess.Close())
		},
	}, nil
}

// selectOptions asks for monitors and windows with the cursor drawn in, limited
// to what the portal reports. Portals too old to report leave the defaults.
func selectOptions(ctx context.Context, bus *portal.Bus) portal.SelectOptions {
	log := logging.For("capture")
	want := portal.SourceTypeMonitor | portal.SourceTypeWindow
	opts := portal.SelectOptions{Types: want, CursorMode: portal.CursorModeEmbedded, Multiple: true}

	if types, err := bus.AvailableSourceTypes(ctx); err == nil {
		opts.Types = portal.SourceTypesFor(types, want)
	} else {
		log.Debug("source types unavailable", "error", err)
	}
	if modes, err := bus.AvailableCursorModes(ctx); err == nil {
		opts.CursorMode = portal.CursorModeFor(modes)
	} else {
		log.Debug("cursor modes unavailable", "error", err)
	}
	return opts
}
