// Package capture obtains raw pixel data for a session and converts it into
// the canonical 8-bit-per-channel RGB buffer consumed by the encoder.
package capture

import (
	"encoding/binary"
	"fmt"
)

// Channel describes one color channel inside a packed pixel: where its bits
// start and how many there are.
type Channel struct {
	Offset uint32
	Length uint32
}

// PixelFormat describes how a packed framebuffer pixel maps to RGB.
type PixelFormat struct {
	R, G, B       Channel
	BytesPerPixel int
}

// BGRA32 is the format assumed when the framebuffer cannot be queried:
// 32-bit pixels, little-endian, blue in the low byte.
func BGRA32() PixelFormat {
	return PixelFormat{
		R:             Channel{Offset: 16, Length: 8},
		G:             Channel{Offset: 8, Length: 8},
		B:             Channel{Offset: 0, Length: 8},
		BytesPerPixel: 4,
	}
}

// RGB565 covers 16-bit framebuffers.
func RGB565() PixelFormat {
	return PixelFormat{
		R:             Channel{Offset: 11, Length: 5},
		G:             Channel{Offset: 5, Length: 6},
		B:             Channel{Offset: 0, Length: 5},
		BytesPerPixel: 2,
	}
}

func (f PixelFormat) valid() bool {
	if f.BytesPerPixel < 1 || f.BytesPerPixel > 4 {
		return false
	}
	for _, c := range []Channel{f.R, f.G, f.B} {
		if c.Length == 0 || c.Length > 16 || c.Offset+c.Length > uint32(f.BytesPerPixel)*8 {
			return false
		}
	}
	return true
}

// extract pulls the channel out of a packed pixel and widens or narrows it
// to 8 bits. Channels narrower than 8 bits are rescaled so the channel
// maximum maps to 255; wider channels are truncated, not rounded.
func (c Channel) extract(px uint32) uint8 {
	mask := uint32(1)<<c.Length - 1
	v := (px >> c.Offset) & mask
	switch {
	case c.Length == 8:
		return uint8(v)
	case c.Length < 8:
		return uint8(v * 255 / mask)
	default:
		return uint8(v >> (c.Length - 8))
	}
}

// Normalize converts a packed pixel buffer into the canonical RGB layout.
// dst must hold exactly len(src)/BytesPerPixel*3 bytes.
func Normalize(dst, src []byte, f PixelFormat) error {
	if !f.valid() {
		return fmt.Errorf("unsupported pixel format: %+v", f)
	}
	bpp := f.BytesPerPixel
	if len(src)%bpp != 0 {
		return fmt.Errorf("source length %d not a multiple of %d bytes per pixel", len(src), bpp)
	}
	pixels := len(src) / bpp
	if len(dst) != pixels*3 {
		return fmt.Errorf("destination length %d, want %d", len(dst), pixels*3)
	}

	for i, j := 0, 0; i < len(src); i, j = i+bpp, j+3 {
		px := packedPixel(src[i:i+bpp], bpp)
		dst[j+0] = f.R.extract(px)
		dst[j+1] = f.G.extract(px)
		dst[j+2] = f.B.extract(px)
	}
	return nil
}

// packedPixel reads one little-endian pixel of bpp bytes.
func packedPixel(b []byte, bpp int) uint32 {
	switch bpp {
	case 1:
		return uint32(b[0])
	case 2:
		return uint32(binary.LittleEndian.Uint16(b))
	case 3:
		return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
	default:
		return binary.LittleEndian.Uint32(b)
	}
}
