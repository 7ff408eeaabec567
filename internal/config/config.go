// Package config loads runtime settings from an optional TOML file and the
// environment. The highlight effect itself is fixed and not configurable.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"go2tv.app/gamevision/frame"
)

const (
	EnvConfigFile   = "GAMEVISION_CONFIG"
	EnvDebug        = "GAMEVISION_DEBUG"
	EnvBackend      = "GAMEVISION_BACKEND"
	EnvDisplay      = "GAMEVISION_DISPLAY"
	EnvStreamIndex  = "GAMEVISION_STREAM_INDEX"
	EnvMaxImages    = "GAMEVISION_MAX_IMAGES"
	EnvPollFPS      = "GAMEVISION_POLL_FPS"
	EnvChannelOrder = "GAMEVISION_CHANNEL_ORDER"
	EnvFilter       = "GAMEVISION_FILTER"
)

const (
	BackendAuto       = "auto"
	BackendPortal     = "portal"
	BackendScreenshot = "screenshot"

	FilterLinear  = "linear"
	FilterNearest = "nearest"
)

const (
	maxImagesLimit = 8
	pollFPSLimit   = 240
)

var ErrInvalid = errors.New("invalid configuration")

// Config holds the capture and compositing settings.
type Config struct {
	Debug       bool   `toml:"debug"`
	Backend     string `toml:"backend"`
	Display     int    `toml:"display"`
	StreamIndex int    `toml:"stream_index"`
	MaxImages   int    `toml:"max_images"`
	PollFPS     int    `toml:"poll_fps"`
	// ChannelOrder is the byte order the capture source delivers. Empty means
	// the backend's own report is trusted.
	ChannelOrder string `toml:"channel_order"`
	Filter       string `toml:"filter"`
}

func Default() Config {
	return Config{
		Backend:   BackendAuto,
		MaxImages: frame.DefaultPoolDepth,
		PollFPS:   30,
		Filter:    FilterLinear,
	}
}

// Load starts from Default, applies the file named by GAMEVISION_CONFIG if
// set, then environment overrides, and validates the result.
func Load() (Config, error) {
	cfg := Default()

	if path := strings.TrimSpace(os.Getenv(EnvConfigFile)); path != "" {
		if err := cfg.readFile(path); err != nil {
			return cfg, err
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Debug = BoolEnv(EnvDebug, c.Debug)
	c.Backend = strings.ToLower(StringEnv(EnvBackend, c.Backend))
	c.Display = IntEnvClamped(EnvDisplay, c.Display, 0, 64)
	c.StreamIndex = IntEnvClamped(EnvStreamIndex, c.StreamIndex, 0, 64)
	c.MaxImages = IntEnvClamped(EnvMaxImages, c.MaxImages, 1, maxImagesLimit)
	c.PollFPS = IntEnvClamped(EnvPollFPS, c.PollFPS, 1, pollFPSLimit)
	c.ChannelOrder = strings.ToLower(StringEnv(EnvChannelOrder, c.ChannelOrder))
	c.Filter = strings.ToLower(StringEnv(EnvFilter, c.Filter))
}

func (c Config) Validate() error {
	switch c.Backend {
	case BackendAuto, BackendPortal, BackendScreenshot:
	default:
		return fmt.Errorf("%w: backend %q", ErrInvalid, c.Backend)
	}
	switch c.Filter {
	case FilterLinear, FilterNearest:
	default:
		return fmt.Errorf("%w: filter %q", ErrInvalid, c.Filter)
	}
	if c.ChannelOrder != "" {
		f, err := frame.ParsePixelFormat(c.ChannelOrder)
		if err != nil {
			return fmt.Errorf("%w: channel order: %w", ErrInvalid, err)
		}
		if f != frame.RGBA8888 && f != frame.BGRA8888 {
			return fmt.Errorf("%w: channel order %q must be rgba or bgra", ErrInvalid, c.ChannelOrder)
		}
	}
	if c.MaxImages < 1 || c.MaxImages > maxImagesLimit {
		return fmt.Errorf("%w: max_images %d out of range 1..%d", ErrInvalid, c.MaxImages, maxImagesLimit)
	}
	if c.PollFPS < 1 || c.PollFPS > pollFPSLimit {
		return fmt.Errorf("%w: poll_fps %d out of range 1..%d", ErrInvalid, c.PollFPS, pollFPSLimit)
	}
	if c.Display < 0 || c.StreamIndex < 0 {
		return fmt.Errorf("%w: display and stream_index must be >= 0", ErrInvalid)
	}
	return nil
}

// Format returns the configured channel order, or 0 when the backend decides.
func (c Config) Format() frame.PixelFormat {
	if c.ChannelOrder == "" {
		return 0
	}
	f, _ := frame.ParsePixelFormat(c.ChannelOrder)
	return f
}

func (c Config) PollInterval() time.Duration {
	if c.PollFPS <= 0 {
		return time.Second / 30
	}
	return time.Second / time.Duration(c.PollFPS)
}
