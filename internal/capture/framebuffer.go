package capture

import (
	"fmt"
	"os"
	"unsafe"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

const fbioGetVScreeninfo = 0x4600

// fbBitfield mirrors struct fb_bitfield from <linux/fb.h>.
type fbBitfield struct {
	Offset   uint32
	Length   uint32
	MsbRight uint32
}

// fbVarScreeninfo mirrors the leading fields of struct fb_var_screeninfo.
// Only resolution, depth and the channel bitfields are consumed; the rest is
// padding so the ioctl has the full struct to write into.
type fbVarScreeninfo struct {
	XRes         uint32
	YRes         uint32
	XResVirtual  uint32
	YResVirtual  uint32
	XOffset      uint32
	YOffset      uint32
	BitsPerPixel uint32
	Grayscale    uint32
	Red          fbBitfield
	Green        fbBitfield
	Blue         fbBitfield
	Transp       fbBitfield
	_            [20]uint32
}

// Framebuffer reads frames from a raw framebuffer device (or any file laid
// out like one) and normalizes them to RGB. Structural failures downgrade
// the source to synthetic frames for the rest of its life; the downgrade is
// one-way until the session is rebound.
type Framebuffer struct {
	logger   *zap.Logger
	f        *os.File
	format   PixelFormat
	raw      []byte
	fallback *Synthetic
	degraded bool
}

var _ Source = (*Framebuffer)(nil)

// OpenFramebuffer opens path and queries its pixel format. The format query
// is best-effort: regular files and exotic devices fall back to BGRA32.
func OpenFramebuffer(logger *zap.Logger, path string, width, height int) (*Framebuffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open framebuffer %s: %w", path, err)
	}

	format := queryPixelFormat(f)
	fb := &Framebuffer{
		logger:   logger.Named("capture.fb"),
		f:        f,
		format:   format,
		raw:      make([]byte, width*height*format.BytesPerPixel),
		fallback: NewSynthetic(width, height),
	}
	if !format.valid() {
		fb.logger.Warn("unsupported framebuffer pixel format, using synthetic frames",
			zap.String("path", path),
			zap.Int("bytes_per_pixel", format.BytesPerPixel))
		fb.degrade()
	}
	return fb, nil
}

// queryPixelFormat asks the kernel for the variable screen info. When the
// ioctl is not applicable (regular files in tests, non-fb devices) the
// assumed BGRA32 layout is returned.
func queryPixelFormat(f *os.File) PixelFormat {
	var info fbVarScreeninfo
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), fbioGetVScreeninfo, uintptr(unsafe.Pointer(&info)))
	if errno != 0 || info.BitsPerPixel == 0 {
		return BGRA32()
	}
	return PixelFormat{
		R:             Channel{Offset: info.Red.Offset, Length: info.Red.Length},
		G:             Channel{Offset: info.Green.Offset, Length: info.Green.Length},
		B:             Channel{Offset: info.Blue.Offset, Length: info.Blue.Length},
		BytesPerPixel: int(info.BitsPerPixel) / 8,
	}
}

// Frame implements Source. A short read or read error permanently switches
// this source to the synthetic generator.
func (fb *Framebuffer) Frame(rgb []byte, frameID uint64) error {
	if fb.degraded {
		return fb.fallback.Frame(rgb, frameID)
	}

	n, err := fb.f.ReadAt(fb.raw, 0)
	if err != nil || n != len(fb.raw) {
		fb.logger.Warn("framebuffer read failed, switching to synthetic frames",
			zap.Int("read", n),
			zap.Int("expected", len(fb.raw)),
			zap.Error(err))
		fb.degrade()
		return fb.fallback.Frame(rgb, frameID)
	}

	if err := Normalize(rgb, fb.raw, fb.format); err != nil {
		fb.logger.Warn("pixel normalization failed, switching to synthetic frames",
			zap.Error(err))
		fb.degrade()
		return fb.fallback.Frame(rgb, frameID)
	}
	return nil
}

// Degraded reports whether the source has fallen back to synthetic frames.
func (fb *Framebuffer) Degraded() bool { return fb.degraded }

// Kind implements Source.
func (fb *Framebuffer) Kind() string {
	if fb.degraded {
		return "synthetic"
	}
	return "framebuffer"
}

func (fb *Framebuffer) degrade() {
	fb.degraded = true
	if fb.f != nil {
		_ = fb.f.Close()
		fb.f = nil
	}
	fb.raw = nil
}

// Close implements Source.
func (fb *Framebuffer) Close() error {
	if fb.f != nil {
		err := fb.f.Close()
		fb.f = nil
		return err
	}
	return nil
}
