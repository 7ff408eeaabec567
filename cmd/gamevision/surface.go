package main

import (
	"github.com/go-gl/glfw/v3.3/glfw"
)

// windowSurface lets the render thread own the window's GL context while
// the main thread keeps pumping events.
type windowSurface struct {
	window *glfw.Window
}

func (s windowSurface) MakeCurrent() error {
	s.window.MakeContextCurrent()
	glfw.SwapInterval(1)
	return nil
}

func (s windowSurface) SwapBuffers() error {
	s.window.SwapBuffers()
	return nil
}

func (s windowSurface) Release() {
	glfw.DetachCurrentContext()
}

// newOverlay creates a transparent, undecorated, always-on-top window that
// covers the primary monitor. Must run on the main thread.
func newOverlay() (*glfw.Window, error) {
	glfw.WindowHint(glfw.ContextVersionMajor, 3)
	glfw.WindowHint(glfw.ContextVersionMinor, 3)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
	glfw.WindowHint(glfw.TransparentFramebuffer, glfw.True)
	glfw.WindowHint(glfw.Decorated, glfw.False)
	glfw.WindowHint(glfw.Floating, glfw.True)
	glfw.WindowHint(glfw.FocusOnShow, glfw.False)
	glfw.WindowHint(glfw.Resizable, glfw.True)

	width, height := 1280, 720
	if monitor := glfw.GetPrimaryMonitor(); monitor != nil {
		if mode := monitor.GetVideoMode(); mode != nil {
			width, height = mode.Width, mode.Height
		}
	}

	window, err := glfw.CreateWindow(width, height, "GameVision", nil, nil)
	if err != nil {
		return nil, err
	}
	window.SetPos(0, 0)
	return window, nil
}
