package capture

// Source yields one canonical RGB frame per call. Implementations must never
// fail transiently: a broken backing target downgrades to synthetic frames
// instead of surfacing per-frame errors to the viewer.
type Source interface {
	// Frame writes the frame for frameID into rgb (width*height*3 bytes).
	Frame(rgb []byte, frameID uint64) error

	// Kind names what the frames currently come from ("framebuffer" or
	// "synthetic"). A degraded source reports synthetic.
	Kind() string

	// Close releases the backing capture target.
	Close() error
}
