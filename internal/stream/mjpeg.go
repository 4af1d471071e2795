// Package stream drives the per-connection MJPEG production loop.
package stream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/poodlez/doom/internal/common/cnst"
	"github.com/poodlez/doom/internal/common/config"
	"github.com/poodlez/doom/internal/encoder"
	"github.com/poodlez/doom/internal/session"
	"github.com/poodlez/doom/pkg/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Streamer writes multipart/x-mixed-replace MJPEG streams. Every viewer
// runs its own capture/encode loop against the session; there is no shared
// broadcast of encoded frames (fine for a handful of viewers, a known
// scaling boundary beyond that).
type Streamer struct {
	logger  *zap.Logger
	cfg     config.StreamConfig
	metrics *metrics.Metrics
}

// NewStreamer creates a streamer with the configured pacing and quality.
func NewStreamer(logger *zap.Logger, cfg config.StreamConfig, m *metrics.Metrics) *Streamer {
	return &Streamer{
		logger:  logger.Named("stream"),
		cfg:     cfg,
		metrics: m,
	}
}

// Serve streams frames to w until the peer disconnects, ctx is cancelled,
// or the session is recycled underneath us. The session stays active when
// the stream ends; only the connection dies.
func (s *Streamer) Serve(ctx context.Context, w http.ResponseWriter, h *session.Handle) {
	streamID := uuid.New().String()
	logger := s.logger.With(
		zap.String("stream", streamID),
		zap.Int("session", h.ID()))

	flusher, ok := w.(http.Flusher)
	if !ok {
		logger.Error("response writer does not support flushing")
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+cnst.StreamBoundary)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "close")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	if s.metrics != nil {
		s.metrics.ViewerStart()
		defer s.metrics.ViewerDone()
	}
	logger.Info("stream started")

	var frame bytes.Buffer
	frames := 0
	defer func() {
		logger.Info("stream ended", zap.Int("frames", frames))
	}()

	for {
		iterStart := time.Now()

		frame.Reset()
		err := h.CaptureFrame(func(rgb []byte, frameID uint64) error {
			return encoder.EncodeRGB(&frame, rgb, cnst.FrameWidth, cnst.FrameHeight, s.cfg.JPEGQuality)
		})
		if err != nil {
			if errors.Is(err, session.ErrSessionGone) {
				// Session recycled mid-stream: quiet stop.
				return
			}
			logger.Error("frame production failed, ending stream", zap.Error(err))
			return
		}
		if s.metrics != nil {
			s.metrics.FrameEncoded(h.SourceKind(), iterStart)
		}

		if _, err := fmt.Fprintf(w, "--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", cnst.StreamBoundary, frame.Len()); err != nil {
			return
		}
		if _, err := w.Write(frame.Bytes()); err != nil {
			return
		}
		if _, err := fmt.Fprint(w, "\r\n"); err != nil {
			return
		}
		flusher.Flush()
		frames++
		// A watched session is not idle.
		_ = h.Touch()

		// Pace against an explicit per-iteration deadline so capture and
		// encode time don't compound into drift.
		if wait := s.cfg.FrameInterval - time.Since(iterStart); wait > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
		} else if ctx.Err() != nil {
			return
		}
	}
}
