// Package proc spawns and supervises the external DOOM processes bound to
// session slots.
package proc

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"syscall"

	"github.com/poodlez/doom/internal/common/cnst"
	"github.com/poodlez/doom/internal/common/config"
	"github.com/poodlez/doom/pkg/utils"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// Supervisor launches chocolate-doom instances and reports their exits on a
// channel. Exit collection happens in per-child watcher goroutines, never in
// a signal handler, so the registry applies exits under its own lock.
type Supervisor struct {
	logger *zap.Logger
	cfg    config.DoomConfig

	mu    sync.Mutex
	procs map[int]*exec.Cmd
	exits chan int
}

// NewSupervisor creates a supervisor for the configured DOOM binary.
// maxSessions sizes the exit channel so every watcher can publish without
// blocking even after the reaper has stopped draining.
func NewSupervisor(logger *zap.Logger, cfg config.DoomConfig, maxSessions int) *Supervisor {
	if maxSessions <= 0 {
		maxSessions = cnst.DefaultMaxSessions
	}
	return &Supervisor{
		logger: logger.Named("proc"),
		cfg:    cfg,
		procs:  make(map[int]*exec.Cmd),
		exits:  make(chan int, maxSessions),
	}
}

// Exits returns the channel on which exited child pids are published.
func (s *Supervisor) Exits() <-chan int {
	return s.exits
}

// Spawn starts one DOOM process rendering into the configured framebuffer.
// The binary and WAD are checked up front so a missing asset fails the
// spawn synchronously instead of showing up later as a black stream.
// Returns pid 0 without starting anything when spawning is disabled.
func (s *Supervisor) Spawn(sessionID int, fifoPath string) (int, error) {
	if s.cfg.DisableSpawn {
		s.logger.Info("spawning disabled, session runs without a DOOM process",
			zap.Int("session", sessionID))
		return 0, nil
	}

	binPath, err := exec.LookPath(s.cfg.Binary)
	if err != nil {
		return 0, fmt.Errorf("locate %s: %w", s.cfg.Binary, err)
	}
	if _, err := os.Stat(s.cfg.WADPath); err != nil {
		return 0, fmt.Errorf("wad %s not readable: %w", s.cfg.WADPath, err)
	}

	cmd := exec.Command(binPath,
		"-iwad", s.cfg.WADPath,
		"-width", strconv.Itoa(cnst.FrameWidth),
		"-height", strconv.Itoa(cnst.FrameHeight),
		"-nosound",
		"-nomusic",
		"-window", // keep keyboard focus logic simple
	)
	cmd.Env = append(os.Environ(), utils.MapToEnvList(map[string]string{
		"SDL_VIDEODRIVER": "fbcon",
		"SDL_FBDEV":       s.cfg.Framebuffer,
		"DOOM_INPUT_FIFO": fifoPath,
	})...)
	// Own process group so termination reaches any children.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("start %s: %w", s.cfg.Binary, err)
	}

	pid := cmd.Process.Pid
	s.mu.Lock()
	s.procs[pid] = cmd
	s.mu.Unlock()

	s.logger.Info("spawned DOOM process",
		zap.Int("pid", pid),
		zap.Int("session", sessionID))

	go s.watch(pid, cmd)
	return pid, nil
}

// watch reaps the child and publishes its pid once it exits, whether on its
// own or after Terminate.
func (s *Supervisor) watch(pid int, cmd *exec.Cmd) {
	err := cmd.Wait()

	s.mu.Lock()
	delete(s.procs, pid)
	s.mu.Unlock()

	s.logger.Info("DOOM process exited",
		zap.Int("pid", pid),
		zap.Error(err))
	s.exits <- pid
}

// Terminate sends SIGTERM to the process group. It does not wait for the
// exit; the watcher goroutine reaps it out-of-band. There is no escalation
// to SIGKILL, a stuck child keeps its pid until an operator intervenes.
func (s *Supervisor) Terminate(pid int) {
	if pid <= 0 {
		return
	}
	if err := unix.Kill(-pid, unix.SIGTERM); err != nil {
		// Process group may already be gone; fall back to the pid itself.
		_ = unix.Kill(pid, unix.SIGTERM)
	}
}
