package capture

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChannelExtractFull8Bit(t *testing.T) {
	c := Channel{Offset: 8, Length: 8}
	// full 8-bit channel passes through exactly
	assert.Equal(t, uint8(0xAB), c.extract(0x00AB00))
	assert.Equal(t, uint8(0x00), c.extract(0x000000))
	assert.Equal(t, uint8(0xFF), c.extract(0x00FF00))
}

func TestChannelExtractNarrowRescales(t *testing.T) {
	// 5-bit channel: max mask value must normalize to 255, zero to 0
	c := Channel{Offset: 11, Length: 5}
	assert.Equal(t, uint8(255), c.extract(0x1F<<11))
	assert.Equal(t, uint8(0), c.extract(0))

	// 6-bit channel
	g := Channel{Offset: 5, Length: 6}
	assert.Equal(t, uint8(255), g.extract(0x3F<<5))
	assert.Equal(t, uint8(0), g.extract(0))
}

func TestChannelExtractWideTruncates(t *testing.T) {
	// 10-bit channel is right-shifted, not rounded
	c := Channel{Offset: 0, Length: 10}
	assert.Equal(t, uint8(0x3FF>>2), c.extract(0x3FF))
	assert.Equal(t, uint8(0x201>>2), c.extract(0x201))
}

func TestNormalizeBGRA32(t *testing.T) {
	// two BGRA pixels: (b,g,r,a)
	src := []byte{
		0x01, 0x02, 0x03, 0xFF,
		0x10, 0x20, 0x30, 0x00,
	}
	dst := make([]byte, 6)
	assert.NoError(t, Normalize(dst, src, BGRA32()))
	assert.Equal(t, []byte{0x03, 0x02, 0x01, 0x30, 0x20, 0x10}, dst)
}

func TestNormalizeRGB565(t *testing.T) {
	// white pixel in RGB565 is 0xFFFF
	src := []byte{0xFF, 0xFF}
	dst := make([]byte, 3)
	assert.NoError(t, Normalize(dst, src, RGB565()))
	assert.Equal(t, []byte{255, 255, 255}, dst)

	// black
	src = []byte{0x00, 0x00}
	assert.NoError(t, Normalize(dst, src, RGB565()))
	assert.Equal(t, []byte{0, 0, 0}, dst)
}

func TestNormalizeSizeMismatch(t *testing.T) {
	dst := make([]byte, 3)
	// src not a multiple of bytes per pixel
	assert.Error(t, Normalize(dst, []byte{0, 0, 0}, BGRA32()))
	// dst too small
	assert.Error(t, Normalize(dst, make([]byte, 8), BGRA32()))
	// invalid format
	assert.Error(t, Normalize(dst, []byte{0, 0}, PixelFormat{}))
}
