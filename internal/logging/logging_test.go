package logging

import (
	"bytes"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEveryLimitsRate(t *testing.T) {
	var last atomic.Int64

	assert.True(t, Every(&last, time.Hour))
	assert.False(t, Every(&last, time.Hour))
	assert.False(t, Every(&last, time.Hour))
}

func TestEveryWithoutPeriod(t *testing.T) {
	var last atomic.Int64
	assert.True(t, Every(&last, 0))
	assert.True(t, Every(nil, time.Second))
}

func TestForTagsComponent(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(slog.New(slog.NewTextHandler(&buf, nil)))
	defer SetLogger(nil)

	For("render").Info("draw")
	assert.Contains(t, buf.String(), "component=render")
	assert.Contains(t, buf.String(), "msg=draw")
}

func TestDebugEnabled(t *testing.T) {
	t.Setenv(envDebug, "1")
	assert.True(t, DebugEnabled())
	t.Setenv(envDebug, "0")
	assert.False(t, DebugEnabled())
}
