package server

import (
	"bufio"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/poodlez/doom/internal/common/config"
	"github.com/poodlez/doom/internal/input"
	"github.com/poodlez/doom/internal/session"
	"github.com/poodlez/doom/internal/stream"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type nopSupervisor struct{ exits chan int }

func (n *nopSupervisor) Spawn(int, string) (int, error) { return 0, nil }
func (n *nopSupervisor) Terminate(int)                  {}
func (n *nopSupervisor) Exits() <-chan int              { return n.exits }

type testEnv struct {
	srv      *Server
	registry *session.Registry
	fifoDir  string
}

func newTestEnv(t *testing.T, mutate func(*config.DoomServerConfig)) *testEnv {
	t.Helper()

	cfg := config.Default()
	cfg.PublicDir = t.TempDir()
	cfg.Session.Dir = t.TempDir()
	cfg.Doom.Framebuffer = filepath.Join(t.TempDir(), "no-fb")
	cfg.Stream.FrameInterval = time.Millisecond
	if mutate != nil {
		mutate(cfg)
	}

	logger := zap.NewNop()
	registry := session.NewRegistry(logger, session.Config{
		MaxSessions:   cfg.Session.MaxSessions,
		Dir:           cfg.Session.Dir,
		Framebuffer:   cfg.Doom.Framebuffer,
		DisableCreate: cfg.Session.DisableCreate,
	}, &nopSupervisor{exits: make(chan int)}, nil)

	srv := NewServer(logger, cfg,
		registry,
		stream.NewStreamer(logger, cfg.Stream, nil),
		input.NewInjector(logger, cfg.Input),
		nil)

	return &testEnv{srv: srv, registry: registry, fifoDir: cfg.Session.Dir}
}

func (e *testEnv) do(method, target string, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	e.srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealthzNoSideEffects(t *testing.T) {
	e := newTestEnv(t, nil)

	rec := e.do(http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	for i := 0; i < 8; i++ {
		assert.Equal(t, session.StateEmpty, e.registry.State(i))
	}
}

func TestUnknownRouteIs404(t *testing.T) {
	e := newTestEnv(t, nil)
	rec := e.do(http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestIndexServedFromPublicDir(t *testing.T) {
	e := newTestEnv(t, nil)
	html := []byte("<html>doom</html>")
	assert.NoError(t, os.WriteFile(filepath.Join(e.srv.cfg.PublicDir, "index.html"), html, 0o644))

	rec := e.do(http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, string(html), rec.Body.String())

	rec = e.do(http.MethodGet, "/public/index.html", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestInputEmptyBody(t *testing.T) {
	e := newTestEnv(t, nil)
	rec := e.do(http.MethodPost, "/input?session=1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInputUnresolvedToken(t *testing.T) {
	e := newTestEnv(t, nil)
	rec := e.do(http.MethodPost, "/input?session=1", "zzzznotakey")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	// the failed token still created the session; it must remain usable
	assert.Equal(t, session.StateActive, e.registry.State(1))
}

func TestInputDelivered(t *testing.T) {
	e := newTestEnv(t, nil)

	// create the session first so its FIFO exists, then attach a reader
	_, err := e.registry.GetOrCreate(1)
	assert.NoError(t, err)
	reader, err := os.OpenFile(filepath.Join(e.fifoDir, "input_1"), os.O_RDONLY|unix.O_NONBLOCK, 0)
	assert.NoError(t, err)
	defer reader.Close()

	rec := e.do(http.MethodPost, "/input?session=1", "Up:down")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	buf := make([]byte, 32)
	var n int
	assert.Eventually(t, func() bool {
		n, _ = reader.Read(buf)
		return n > 0
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, "up down\n", string(buf[:n]))
}

func TestInputOversizedBodyRejected(t *testing.T) {
	e := newTestEnv(t, nil)

	rec := e.do(http.MethodPost, "/input?session=1", strings.Repeat("a", 64*1024))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// the session itself is unaffected and still takes normal tokens
	assert.Equal(t, session.StateActive, e.registry.State(1))
}

func TestInputEmptyBodyNoSessionIs503(t *testing.T) {
	// session resolution runs before the body check, so an unusable session
	// answers 503 even for an empty payload
	e := newTestEnv(t, func(c *config.DoomServerConfig) { c.Session.DisableCreate = true })
	rec := e.do(http.MethodPost, "/input?session=1", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestInputNoSessionWhenCreateDisabled(t *testing.T) {
	e := newTestEnv(t, func(c *config.DoomServerConfig) { c.Session.DisableCreate = true })
	rec := e.do(http.MethodPost, "/input?session=1", "Up:down")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStreamRejectedWhenCreateDisabled(t *testing.T) {
	e := newTestEnv(t, func(c *config.DoomServerConfig) { c.Session.DisableCreate = true })
	rec := e.do(http.MethodGet, "/doom.mjpeg?session=2", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStreamOutOfRangeSession(t *testing.T) {
	e := newTestEnv(t, nil)
	rec := e.do(http.MethodGet, "/doom.mjpeg?session=99", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSessionCloseIdempotent(t *testing.T) {
	e := newTestEnv(t, nil)

	_, err := e.registry.GetOrCreate(3)
	assert.NoError(t, err)

	rec := e.do(http.MethodPost, "/session/close?session=3", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, session.StateEmpty, e.registry.State(3))

	// closing again is fine
	rec = e.do(http.MethodPost, "/session/close?session=3", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStreamCreatesSessionAndSurvivesDisconnect(t *testing.T) {
	e := newTestEnv(t, nil)

	ts := httptest.NewServer(e.srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/doom.mjpeg?session=1")
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "multipart/x-mixed-replace")

	// read until two frame boundaries have gone by
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	boundaries := 0
	for scanner.Scan() && boundaries < 2 {
		if strings.Contains(scanner.Text(), "--frame") {
			boundaries++
		}
	}
	assert.Equal(t, 2, boundaries)
	resp.Body.Close()

	// disconnect ends the stream but not the session
	assert.Eventually(t, func() bool {
		return e.registry.State(1) == session.StateActive
	}, time.Second, 10*time.Millisecond)
}

func TestSessionIDDefaultsToZero(t *testing.T) {
	e := newTestEnv(t, nil)

	rec := e.do(http.MethodPost, "/input?session=garbage", "w")
	// parse failure falls back to session 0; delivery fails (no FIFO
	// reader) but the slot was created
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, session.StateActive, e.registry.State(0))
}
