package session

import (
	"time"
)

// Handle is a borrowed reference to a session, carrying the generation
// observed at lookup time. Every long-lived operation re-validates the
// generation before touching the session so a slot recycled mid-operation
// is detected instead of read from recycled state.
type Handle struct {
	registry *Registry
	sess     *Session
	gen      uint64
}

// ID returns the slot identifier.
func (h *Handle) ID() int { return h.sess.id }

// Alive reports whether the session is still the one observed at lookup.
func (h *Handle) Alive() bool {
	h.registry.mu.Lock()
	defer h.registry.mu.Unlock()
	return h.sess.state == StateActive && h.sess.gen == h.gen
}

// LastActivity returns the session's last-activity timestamp.
func (h *Handle) LastActivity() time.Time {
	h.registry.mu.Lock()
	defer h.registry.mu.Unlock()
	return h.sess.lastActivity
}

// Touch refreshes the activity timestamp. ErrSessionGone if recycled.
func (h *Handle) Touch() error {
	h.registry.mu.Lock()
	defer h.registry.mu.Unlock()
	if h.sess.state != StateActive || h.sess.gen != h.gen {
		return ErrSessionGone
	}
	h.sess.lastActivity = time.Now()
	return nil
}

// FIFOPath returns the input side-channel path. ErrSessionGone if recycled.
func (h *Handle) FIFOPath() (string, error) {
	h.registry.mu.Lock()
	defer h.registry.mu.Unlock()
	if h.sess.state != StateActive || h.sess.gen != h.gen {
		return "", ErrSessionGone
	}
	return h.sess.fifoPath, nil
}

// SourceKind names what the session's frames currently come from, or ""
// when the slot has no source bound.
func (h *Handle) SourceKind() string {
	h.sess.frameMu.Lock()
	defer h.sess.frameMu.Unlock()
	if h.sess.source == nil {
		return ""
	}
	return h.sess.source.Kind()
}

// CaptureFrame produces the next frame into the session's canonical RGB
// buffer and hands the buffer to fn while the session's frame lock is held.
// fn must not retain the slice. The registry lock is only taken for the
// generation check, never across capture or fn, so frame production does
// not contend with slot allocation.
func (h *Handle) CaptureFrame(fn func(rgb []byte, frameID uint64) error) error {
	h.registry.mu.Lock()
	if h.sess.state != StateActive || h.sess.gen != h.gen {
		h.registry.mu.Unlock()
		return ErrSessionGone
	}
	h.registry.mu.Unlock()

	h.sess.frameMu.Lock()
	defer h.sess.frameMu.Unlock()

	// Recycle may have won the race to frameMu after our check.
	if h.sess.source == nil || h.sess.rgb == nil {
		return ErrSessionGone
	}

	h.sess.frameID++
	if err := h.sess.source.Frame(h.sess.rgb, h.sess.frameID); err != nil {
		return err
	}
	return fn(h.sess.rgb, h.sess.frameID)
}
