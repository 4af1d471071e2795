// Package encoder compresses canonical RGB buffers into JPEG.
package encoder

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"io"
)

// EncodeRGB writes rgb (width*height*3 bytes) to w as a JPEG at the given
// quality. Each call is independent; no state is carried across frames.
func EncodeRGB(w io.Writer, rgb []byte, width, height, quality int) error {
	if len(rgb) != width*height*3 {
		return fmt.Errorf("rgb buffer is %d bytes, want %d", len(rgb), width*height*3)
	}
	img := &rgbImage{pix: rgb, width: width, height: height}
	return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
}

// rgbImage adapts a packed RGB byte slice to image.Image without copying.
type rgbImage struct {
	pix    []byte
	width  int
	height int
}

func (m *rgbImage) ColorModel() color.Model { return color.RGBAModel }

func (m *rgbImage) Bounds() image.Rectangle {
	return image.Rect(0, 0, m.width, m.height)
}

func (m *rgbImage) At(x, y int) color.Color {
	i := (y*m.width + x) * 3
	return color.RGBA{R: m.pix[i], G: m.pix[i+1], B: m.pix[i+2], A: 0xFF}
}
