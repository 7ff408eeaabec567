package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go2tv.app/gamevision/frame"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv(EnvConfigFile, "")
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, BackendAuto, cfg.Backend)
	assert.Equal(t, 2, cfg.MaxImages)
	assert.Equal(t, FilterLinear, cfg.Filter)
	assert.Equal(t, frame.PixelFormat(0), cfg.Format())
	assert.Equal(t, time.Second/30, cfg.PollInterval())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv(EnvConfigFile, "")
	t.Setenv(EnvBackend, "Screenshot")
	t.Setenv(EnvMaxImages, "99")
	t.Setenv(EnvPollFPS, "60")
	t.Setenv(EnvChannelOrder, "BGRA")
	t.Setenv(EnvDebug, "yes")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, BackendScreenshot, cfg.Backend)
	assert.Equal(t, maxImagesLimit, cfg.MaxImages)
	assert.Equal(t, 60, cfg.PollFPS)
	assert.Equal(t, frame.BGRA8888, cfg.Format())
	assert.True(t, cfg.Debug)
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gamevision.toml")
	require.NoError(t, os.WriteFile(path, []byte("backend = \"portal\"\nfilter = \"nearest\"\nmax_images = 3\n"), 0o600))

	t.Setenv(EnvConfigFile, path)
	t.Setenv(EnvFilter, "linear")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, BackendPortal, cfg.Backend)
	assert.Equal(t, 3, cfg.MaxImages)
	assert.Equal(t, FilterLinear, cfg.Filter)
}

func TestLoadBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.toml")
	require.NoError(t, os.WriteFile(path, []byte("backend = ["), 0o600))
	t.Setenv(EnvConfigFile, path)

	_, err := Load()
	assert.Error(t, err)
}

func TestValidateRejects(t *testing.T) {
	cases := []func(*Config){
		func(c *Config) { c.Backend = "x11" },
		func(c *Config) { c.Filter = "cubic" },
		func(c *Config) { c.ChannelOrder = "argb" },
		func(c *Config) { c.ChannelOrder = "rgbx" },
		func(c *Config) { c.MaxImages = 0 },
		func(c *Config) { c.PollFPS = 1000 },
		func(c *Config) { c.Display = -1 },
	}
	for i, mutate := range cases {
		cfg := Default()
		mutate(&cfg)
		assert.ErrorIs(t, cfg.Validate(), ErrInvalid, "case %d", i)
	}
}

func TestIntEnvClamped(t *testing.T) {
	t.Setenv("GV_TEST_INT", "nope")
	assert.Equal(t, 5, IntEnvClamped("GV_TEST_INT", 5, 1, 10))
	t.Setenv("GV_TEST_INT", "-3")
	assert.Equal(t, 1, IntEnvClamped("GV_TEST_INT", 5, 1, 10))
}
