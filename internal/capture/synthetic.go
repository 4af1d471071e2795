package capture

// Synthetic produces deterministic test-pattern frames. It stands in for a
// real capture target whenever one is missing or has been torn down, so a
// stream never stops just because the program isn't drawing yet.
type Synthetic struct {
	width  int
	height int
}

var _ Source = (*Synthetic)(nil)

// NewSynthetic returns a generator for the given frame dimensions.
func NewSynthetic(width, height int) *Synthetic {
	return &Synthetic{width: width, height: height}
}

// Frame fills rgb with a moving pattern derived from frameID. It never
// fails; consecutive frame IDs produce different buffer content.
func (s *Synthetic) Frame(rgb []byte, frameID uint64) error {
	for y := 0; y < s.height; y++ {
		for x := 0; x < s.width; x++ {
			idx := (y*s.width + x) * 3
			rgb[idx+0] = byte((uint64(x) + frameID) % 256)
			rgb[idx+1] = byte((y * 2) % 256)
			rgb[idx+2] = byte((frameID * 5) % 256)
		}
	}
	return nil
}

// Kind implements Source.
func (s *Synthetic) Kind() string { return "synthetic" }

// Close implements Source.
func (s *Synthetic) Close() error { return nil }
