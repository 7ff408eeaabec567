// Command gamevision captures the screen and draws it back through the
// highlight effect into a transparent overlay window.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"

	"github.com/go-gl/glfw/v3.3/glfw"

	"go2tv.app/gamevision/capture"
	"go2tv.app/gamevision/frame"
	"go2tv.app/gamevision/internal/config"
	"go2tv.app/gamevision/internal/gldevice"
	"go2tv.app/gamevision/internal/logging"
	"go2tv.app/gamevision/render"
)

func init() {
	// GLFW must be driven from the main thread.
	runtime.LockOSThread()
}

type openResult struct {
	stream *capture.Stream
	err    error
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "gamevision: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.Debug {
		logging.EnableDebug()
	}
	log := logging.For("main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := glfw.Init(); err != nil {
		return fmt.Errorf("init glfw: %w", err)
	}
	defer glfw.Terminate()

	window, err := newOverlay()
	if err != nil {
		return fmt.Errorf("create overlay window: %w", err)
	}
	defer window.Destroy()

	slot := &frame.Slot{}
	comp := render.NewCompositor(gldevice.New(), slot, &render.Options{
		Filter: render.ParseFilter(cfg.Filter),
	})
	loop := render.NewLoop(comp, windowSurface{window: window}, glfw.PostEmptyEvent)

	window.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		loop.Resize(width, height)
	})
	loop.Resize(window.GetFramebufferSize())

	renderCtx, cancelRender := context.WithCancel(ctx)
	defer cancelRender()
	loopDone := make(chan error, 1)
	go func() {
		err := loop.Run(renderCtx)
		glfw.PostEmptyEvent()
		loopDone <- err
	}()

	producer := capture.NewProducer(slot, loop)
	captureCtx, cancelCapture := context.WithCancel(ctx)
	defer cancelCapture()
	opened := make(chan openResult, 1)
	go func() {
		stream, err := capture.Open(captureCtx, &capture.Options{
			Backend:      capture.Backend(cfg.Backend),
			StreamIndex:  cfg.StreamIndex,
			Display:      cfg.Display,
			MaxImages:    cfg.MaxImages,
			PollInterval: cfg.PollInterval(),
			Format:       cfg.Format(),
		}, producer)
		glfw.PostEmptyEvent()
		opened <- openResult{stream: stream, err: err}
	}()

	var watcher sync.WaitGroup
	watchDone := make(chan struct{})
	watcher.Add(1)
	go func() {
		defer watcher.Done()
		select {
		case <-ctx.Done():
			glfw.PostEmptyEvent()
		case <-watchDone:
		}
	}()

	var (
		stream  *capture.Stream
		runErr  error
		loopErr error
		pending = true
		running = true
	)
	for running && !window.ShouldClose() {
		glfw.WaitEvents()

		select {
		case <-ctx.Done():
			log.Info("interrupted")
			running = false
		case loopErr = <-loopDone:
			loopDone = nil
			running = false
		case res := <-opened:
			pending = false
			if res.err != nil {
				runErr = fmt.Errorf("open capture: %w", res.err)
				running = false
				break
			}
			stream = res.stream
		default:
		}
	}

	// Teardown: capture first so no frame arrives after the loop is gone,
	// then the render loop, then the window through the deferred calls.
	close(watchDone)
	watcher.Wait()
	cancelCapture()
	if pending {
		res := <-opened
		stream = res.stream
		if res.err != nil && !errors.Is(res.err, context.Canceled) && runErr == nil {
			runErr = fmt.Errorf("open capture: %w", res.err)
		}
	}
	if stream != nil {
		if err := stream.Close(); err != nil {
			log.Warn("capture close failed", "error", err)
		}
		rs := stream.Reader.Stats()
		log.Info("capture stopped",
			"queued", rs.Queued,
			"superseded", rs.Superseded,
			"acquired", rs.Acquired)
	}

	cancelRender()
	if loopDone != nil {
		loopErr = <-loopDone
	}

	ps, cs := producer.Stats(), comp.Stats()
	log.Info("overlay stopped",
		"delivered", ps.Delivered,
		"missed", ps.Missed,
		"dropped", ps.Dropped,
		"draws", cs.Draws,
		"uploads", cs.Uploads,
		"upload_errors", cs.UploadErrors,
		"draw_errors", cs.DrawErrors)

	if loopErr != nil && !errors.Is(loopErr, context.Canceled) {
		return errors.Join(runErr, fmt.Errorf("render loop: %w", loopErr))
	}
	return runErr
}
