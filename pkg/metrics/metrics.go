package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/poodlez/doom/internal/common/config"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry       *prometheus.Registry
	namespace      string
	httpReqCnt     *prometheus.CounterVec
	httpDur        *prometheus.HistogramVec
	httpInfl       *prometheus.GaugeVec
	sessionsActive prometheus.Gauge
	spawnCnt       *prometheus.CounterVec
	streamViewers  prometheus.Gauge
	framesCnt      *prometheus.CounterVec
	frameDur       prometheus.Histogram
	inputCnt       *prometheus.CounterVec
}

func New(cfg config.MetricsConfig) *Metrics {
	ns := cfg.Namespace
	r := prometheus.NewRegistry()
	// Register standard process and Go collectors
	r.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	r.MustRegister(collectors.NewGoCollector())

	httpReqCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "http_requests_total"}, []string{"method", "route", "status"})
	httpDur := prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: ns, Name: "http_request_duration_seconds", Buckets: cfg.Buckets}, []string{"method", "route", "status"})
	httpInfl := prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: ns, Name: "http_requests_inflight"}, []string{"route"})
	r.MustRegister(httpReqCnt, httpDur, httpInfl)

	sessionsActive := prometheus.NewGauge(prometheus.GaugeOpts{Namespace: ns, Name: "sessions_active"})
	spawnCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "session_spawns_total"}, []string{"status"})
	r.MustRegister(sessionsActive, spawnCnt)

	streamViewers := prometheus.NewGauge(prometheus.GaugeOpts{Namespace: ns, Name: "stream_viewers"})
	framesCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "frames_encoded_total"}, []string{"source"})
	frameDur := prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: ns, Name: "frame_encode_duration_seconds", Buckets: cfg.Buckets})
	r.MustRegister(streamViewers, framesCnt, frameDur)

	inputCnt := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: "input_events_total"}, []string{"status"})
	r.MustRegister(inputCnt)

	return &Metrics{
		registry:       r,
		namespace:      ns,
		httpReqCnt:     httpReqCnt,
		httpDur:        httpDur,
		httpInfl:       httpInfl,
		sessionsActive: sessionsActive,
		spawnCnt:       spawnCnt,
		streamViewers:  streamViewers,
		framesCnt:      framesCnt,
		frameDur:       frameDur,
		inputCnt:       inputCnt,
	}
}

func (m *Metrics) SessionOpened()  { m.sessionsActive.Inc() }
func (m *Metrics) SessionClosed()  { m.sessionsActive.Dec() }
func (m *Metrics) Spawn(ok bool)   { m.spawnCnt.WithLabelValues(spawnStatus(ok)).Inc() }
func (m *Metrics) ViewerStart()    { m.streamViewers.Inc() }
func (m *Metrics) ViewerDone()     { m.streamViewers.Dec() }
func (m *Metrics) Input(st string) { m.inputCnt.WithLabelValues(st).Inc() }

func (m *Metrics) FrameEncoded(source string, since time.Time) {
	m.framesCnt.WithLabelValues(source).Inc()
	m.frameDur.Observe(time.Since(since).Seconds())
}

func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		m.httpInfl.WithLabelValues(route).Inc()
		start := time.Now()
		c.Next()
		status := strconv.Itoa(c.Writer.Status())
		m.httpReqCnt.WithLabelValues(c.Request.Method, route, status).Inc()
		m.httpDur.WithLabelValues(c.Request.Method, route, status).Observe(time.Since(start).Seconds())
		m.httpInfl.WithLabelValues(route).Dec()
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func spawnStatus(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
