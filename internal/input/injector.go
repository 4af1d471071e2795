package input

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/poodlez/doom/internal/common/config"
	"github.com/poodlez/doom/internal/session"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
	"golang.org/x/time/rate"
)

// ErrRateLimited reports that a session is sending key events faster than allowed.
var ErrRateLimited = errors.New("input rate exceeded")

// Injector resolves key tokens and writes the resulting transitions to the
// session's FIFO. One rate limiter per session slot keeps a hammering
// client from starving the DOOM process of real input.
type Injector struct {
	logger *zap.Logger
	cfg    config.InputConfig

	mu       sync.Mutex
	limiters map[int]*rate.Limiter
}

// NewInjector creates an injector with per-session rate limiting.
func NewInjector(logger *zap.Logger, cfg config.InputConfig) *Injector {
	return &Injector{
		logger:   logger.Named("input"),
		cfg:      cfg,
		limiters: make(map[int]*rate.Limiter),
	}
}

// Inject resolves token and delivers its transitions to the session's FIFO.
// Returns ErrUnresolvedKey for unmappable tokens, ErrRateLimited when the
// session's rate limit rejects the event, session.ErrSessionGone if the session was
// recycled, or a delivery error when the FIFO is unwritable. None of these
// affect the session itself.
func (i *Injector) Inject(h *session.Handle, token string) error {
	key, action, err := Resolve(token)
	if err != nil {
		i.logger.Warn("unresolvable key token",
			zap.Int("session", h.ID()),
			zap.String("token", token))
		return err
	}

	if !i.limiter(h.ID()).Allow() {
		return fmt.Errorf("%w: session %d", ErrRateLimited, h.ID())
	}

	fifoPath, err := h.FIFOPath()
	if err != nil {
		return err
	}

	var payload strings.Builder
	for _, transition := range action.Transitions() {
		fmt.Fprintf(&payload, "%s %s\n", key, transition)
	}

	if err := writeFIFO(fifoPath, []byte(payload.String())); err != nil {
		i.logger.Warn("input delivery failed",
			zap.Int("session", h.ID()),
			zap.String("fifo", fifoPath),
			zap.Error(err))
		return err
	}

	_ = h.Touch()
	return nil
}

// writeFIFO delivers payload without ever blocking a request thread: the
// open is non-blocking, so a FIFO with no reader fails fast instead of
// hanging.
func writeFIFO(path string, payload []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return fmt.Errorf("open fifo %s: %w", path, err)
	}
	defer f.Close()

	if _, err := f.Write(payload); err != nil {
		return fmt.Errorf("write fifo %s: %w", path, err)
	}
	return nil
}

func (i *Injector) limiter(sessionID int) *rate.Limiter {
	i.mu.Lock()
	defer i.mu.Unlock()
	l, ok := i.limiters[sessionID]
	if !ok {
		l = rate.NewLimiter(rate.Limit(i.cfg.Rate), i.cfg.Burst)
		i.limiters[sessionID] = l
	}
	return l
}
