package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/poodlez/doom/internal/capture"
	"github.com/poodlez/doom/internal/common/cnst"
	"github.com/poodlez/doom/pkg/metrics"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// Config describes the session pool. Built from the server configuration
// (session pool settings plus the capture target from the doom section).
type Config struct {
	MaxSessions   int
	Dir           string
	Framebuffer   string
	DisableCreate bool
	IdleTimeout   time.Duration
	SweepInterval time.Duration
}

// Supervisor is the slice of process supervision the registry needs.
// Implemented by proc.Supervisor.
type Supervisor interface {
	Spawn(sessionID int, fifoPath string) (int, error)
	Terminate(pid int)
	Exits() <-chan int
}

// Registry is the fixed-capacity session pool. Its mutex is the single
// point of mutual exclusion for slot state; it is held for allocation,
// lookup and teardown decisions only, never across a capture/encode cycle.
type Registry struct {
	logger     *zap.Logger
	cfg        Config
	supervisor Supervisor
	metrics    *metrics.Metrics

	mu    sync.Mutex
	slots []*Session
}

// NewRegistry creates an empty pool of cfg.MaxSessions slots.
func NewRegistry(logger *zap.Logger, cfg Config, sup Supervisor, m *metrics.Metrics) *Registry {
	slots := make([]*Session, cfg.MaxSessions)
	for i := range slots {
		slots[i] = &Session{id: i}
	}
	return &Registry{
		logger:     logger.Named("session"),
		cfg:        cfg,
		supervisor: sup,
		metrics:    m,
		slots:      slots,
	}
}

// GetOrCreate returns a handle to session id, initializing the slot on
// first reference. An out-of-range id is ErrNoSuchSession; a hard resource
// failure during initialization rolls the slot back to empty and returns
// ErrSessionResources. An already-active slot only has its activity
// timestamp refreshed.
func (r *Registry) GetOrCreate(id int) (*Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id < 0 || id >= len(r.slots) {
		return nil, fmt.Errorf("%w: id %d outside [0,%d)", ErrNoSuchSession, id, len(r.slots))
	}
	sess := r.slots[id]

	if sess.state == StateActive {
		sess.lastActivity = time.Now()
		return &Handle{registry: r, sess: sess, gen: sess.gen}, nil
	}

	if r.cfg.DisableCreate {
		return nil, fmt.Errorf("%w: session %d not active and creation disabled", ErrNoSuchSession, id)
	}

	if err := r.initSlot(sess); err != nil {
		return nil, err
	}
	return &Handle{registry: r, sess: sess, gen: sess.gen}, nil
}

// initSlot takes a slot from empty to active. Called with the registry lock
// held; any failure fully rolls back so the slot is never half-initialized.
func (r *Registry) initSlot(sess *Session) error {
	sess.state = StateInitializing
	sess.rgb = make([]byte, cnst.FrameBytes)
	sess.frameID = 0

	if err := os.MkdirAll(r.cfg.Dir, 0o777); err != nil {
		r.rollback(sess)
		return fmt.Errorf("%w: session dir: %v", ErrSessionResources, err)
	}
	sess.fifoPath = filepath.Join(r.cfg.Dir, fmt.Sprintf("input_%d", sess.id))
	if err := unix.Mkfifo(sess.fifoPath, 0o666); err != nil && err != unix.EEXIST {
		r.rollback(sess)
		return fmt.Errorf("%w: mkfifo %s: %v", ErrSessionResources, sess.fifoPath, err)
	}

	// Capture-target absence is a soft failure: the session still comes up,
	// it just serves synthetic frames.
	fb, err := capture.OpenFramebuffer(r.logger, r.cfg.Framebuffer, cnst.FrameWidth, cnst.FrameHeight)
	if err != nil {
		r.logger.Warn("framebuffer unavailable, session falls back to synthetic frames",
			zap.Int("session", sess.id),
			zap.Error(err))
		sess.source = capture.NewSynthetic(cnst.FrameWidth, cnst.FrameHeight)
	} else {
		sess.source = fb
	}

	pid, err := r.supervisor.Spawn(sess.id, sess.fifoPath)
	if err != nil {
		r.logger.Error("failed to spawn DOOM process",
			zap.Int("session", sess.id),
			zap.Error(err))
		if r.metrics != nil {
			r.metrics.Spawn(false)
		}
		r.rollback(sess)
		return fmt.Errorf("%w: spawn: %v", ErrSessionResources, err)
	}

	sess.pid = pid
	sess.state = StateActive
	sess.lastActivity = time.Now()
	if r.metrics != nil {
		r.metrics.Spawn(true)
		r.metrics.SessionOpened()
	}
	r.logger.Info("session initialized",
		zap.Int("session", sess.id),
		zap.Int("pid", pid))
	return nil
}

// rollback releases whatever initSlot managed to acquire and leaves the
// slot empty. Lock held by caller.
func (r *Registry) rollback(sess *Session) {
	if sess.source != nil {
		_ = sess.source.Close()
		sess.source = nil
	}
	if sess.fifoPath != "" {
		_ = os.Remove(sess.fifoPath)
		sess.fifoPath = ""
	}
	sess.rgb = nil
	sess.pid = 0
	sess.state = StateEmpty
}

// Close tears down session id. Idempotent: closing an inactive slot is a
// no-op. The DOOM process gets a graceful signal; its exit status is reaped
// out-of-band by the supervisor's watcher, so this never blocks.
func (r *Registry) Close(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id < 0 || id >= len(r.slots) {
		return
	}
	r.recycle(r.slots[id], true)
}

// CloseAll tears down every active session. Used on shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, sess := range r.slots {
		r.recycle(sess, true)
	}
}

// recycle moves an active slot back to empty, bumping the generation so
// laggard handles notice. terminate controls whether the process is
// signalled (false when it already exited on its own). Lock held by caller.
func (r *Registry) recycle(sess *Session, terminate bool) {
	if sess.state != StateActive {
		return
	}
	r.logger.Info("tearing down session", zap.Int("session", sess.id))

	sess.state = StateTearingDown
	sess.gen++

	if terminate && sess.pid > 0 {
		r.supervisor.Terminate(sess.pid)
	}

	// Wait for any in-flight capture before releasing its buffers.
	sess.frameMu.Lock()
	if sess.source != nil {
		_ = sess.source.Close()
		sess.source = nil
	}
	sess.rgb = nil
	sess.frameID = 0
	sess.frameMu.Unlock()

	if sess.fifoPath != "" {
		_ = os.Remove(sess.fifoPath)
		sess.fifoPath = ""
	}
	sess.pid = 0
	sess.state = StateEmpty
	if r.metrics != nil {
		r.metrics.SessionClosed()
	}
}

// State reports the lifecycle state of slot id.
func (r *Registry) State(id int) State {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id < 0 || id >= len(r.slots) {
		return StateEmpty
	}
	return r.slots[id].state
}

// Run drives the registry's background work: reaping DOOM processes that
// exited on their own and, when configured, evicting idle sessions. Blocks
// until ctx is done.
func (r *Registry) Run(ctx context.Context) {
	var sweep <-chan time.Time
	if r.cfg.IdleTimeout > 0 {
		interval := r.cfg.SweepInterval
		if interval <= 0 {
			interval = r.cfg.IdleTimeout / 2
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		sweep = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case pid := <-r.supervisor.Exits():
			r.handleExit(pid)
		case <-sweep:
			r.sweepIdle()
		}
	}
}

// handleExit recycles the slot owning pid after its process exited on its
// own. Exits caused by an explicit Close find no owning slot and are
// ignored.
func (r *Registry) handleExit(pid int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, sess := range r.slots {
		if sess.state == StateActive && sess.pid == pid {
			r.logger.Warn("DOOM process exited on its own, recycling session",
				zap.Int("session", sess.id),
				zap.Int("pid", pid))
			r.recycle(sess, false)
			return
		}
	}
}

// sweepIdle evicts sessions whose last activity is older than IdleTimeout.
func (r *Registry) sweepIdle() {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := time.Now().Add(-r.cfg.IdleTimeout)
	for _, sess := range r.slots {
		if sess.state == StateActive && sess.lastActivity.Before(cutoff) {
			r.logger.Info("evicting idle session",
				zap.Int("session", sess.id),
				zap.Time("last_activity", sess.lastActivity))
			r.recycle(sess, true)
		}
	}
}
