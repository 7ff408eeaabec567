package pipewire

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatString(t *testing.T) {
	assert.Equal(t, "RGBA", FormatRGBA.String())
	assert.Equal(t, "BGRx", FormatBGRx.String())
	assert.Equal(t, "unknown", FormatUnknown.String())
}

func TestRowStride(t *testing.T) {
	assert.Equal(t, 7680, RowStride(7680, 7680*1080, 1920, 1080))
	// Missing stride: derived from the chunk size, padding included.
	assert.Equal(t, 8192, RowStride(0, 8192*1080, 1920, 1080))
	assert.Equal(t, 7680, RowStride(-7680, 7680*1080, 1920, 1080))
	// A short chunk never yields a pitch below the tight row.
	assert.Equal(t, 7680, RowStride(0, 100, 1920, 1080))
	assert.Equal(t, 7680, RowStride(0, 100, 1920, 0))
}
