package cnst

import "time"

const (
	// FrameWidth and FrameHeight are the fixed dimensions of every captured
	// frame. The DOOM process renders at exactly this resolution.
	FrameWidth  = 320
	FrameHeight = 200

	// FrameBytes is the size of the canonical RGB buffer (8 bits per channel).
	FrameBytes = FrameWidth * FrameHeight * 3

	// StreamBoundary is the multipart boundary marker for MJPEG streams.
	StreamBoundary = "frame"

	// MaxInputBody caps the request body on the input route. Key tokens are
	// a few bytes; anything near this limit is garbage.
	MaxInputBody = 8192

	DefaultMaxSessions   = 8
	DefaultJPEGQuality   = 80
	DefaultFrameInterval = 33333 * time.Microsecond // ~30fps

	DefaultPort        = 8080
	DefaultDoomBinary  = "chocolate-doom"
	DefaultWADPath     = "/root/freedoom1.wad"
	DefaultFramebuffer = "/dev/fb0"
	DefaultSessionDir  = "/root/doom_sessions"
	DefaultPublicDir   = "public"
)
