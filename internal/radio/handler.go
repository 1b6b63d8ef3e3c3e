package radio

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"radio-hls-relay/internal/platform/metrics"

	"github.com/go-chi/chi/v5"
)

// RelayConfig carries the process-wide relay tunables down to each
// connection's reader and transcoder.
type RelayConfig struct {
	BufferSeconds   float64
	PipeBufferBytes int
	SegmentWindow   int
	PollFactor      float64
	FFmpegPath      string
}

// Handler exposes the radio relay HTTP endpoints using go-chi.
type Handler struct {
	stations Stations
	log      *slog.Logger
	metrics  *metrics.Metrics
	cfg      RelayConfig
}

// NewHandler returns a Handler over the given station registry. Metrics may
// be nil to disable metric recording (e.g. in tests).
func NewHandler(stations Stations, log *slog.Logger, m *metrics.Metrics, cfg RelayConfig) *Handler {
	return &Handler{stations: stations, log: log, metrics: m, cfg: cfg}
}

// GetRadio handles GET /radio and GET /radio/{radio_id}. It commits the
// audio response headers, then relays the station until the client
// disconnects or the stream ends. Once streaming starts there is no way to
// signal errors in-band; they are logged and the connection just ends.
func (h *Handler) GetRadio(w http.ResponseWriter, r *http.Request) {
	id := 0
	if raw := chi.URLParam(r, "radio_id"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			h.notFound(w)
			return
		}
		id = n
	}
	station, ok := h.stations.Get(id)
	if !ok {
		h.notFound(w)
		return
	}

	h.log.Info("client connected",
		slog.String("remote", r.RemoteAddr),
		slog.Int("radio_id", id),
		slog.String("station", station.Name))

	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Content-Type", station.ContentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "Mon, 26 Jul 1997 05:00:00 GMT")
	w.Header().Set("icy-name", station.Name)
	w.Header().Set("icy-description", station.Description)

	if h.metrics != nil {
		h.metrics.RelayStarted()
		defer h.metrics.RelayEnded()
	}

	reader := NewReader(h.cfg.SegmentWindow, h.cfg.PollFactor)
	transcoder := NewTranscoder(h.cfg.FFmpegPath, h.cfg.PipeBufferBytes, h.log)
	relay := NewRelay(reader, transcoder, h.log, h.cfg.BufferSeconds, h.metrics)

	if err := relay.Run(r.Context(), station, newResponseSink(w)); err != nil {
		h.log.Error("relay ended with error",
			slog.Int("radio_id", id),
			slog.String("station", station.Name),
			slog.String("error", err.Error()))
		return
	}

	h.log.Info("client disconnected",
		slog.String("remote", r.RemoteAddr),
		slog.Int("radio_id", id),
		slog.String("station", station.Name))
}

// ListStations handles GET /stations with the station directory.
func (h *Handler) ListStations(w http.ResponseWriter, r *http.Request) {
	type stationInfo struct {
		ID          int    `json:"id"`
		Name        string `json:"name"`
		Description string `json:"description"`
		ContentType string `json:"content_type"`
	}
	stations := h.stations.List()
	out := make([]stationInfo, 0, len(stations))
	for i, st := range stations {
		out = append(out, stationInfo{
			ID:          i,
			Name:        st.Name,
			Description: st.Description,
			ContentType: st.ContentType,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(out)
}

func (h *Handler) notFound(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	json.NewEncoder(w).Encode(map[string]string{"message": "radio id not found"})
}

// responseSink adapts an http.ResponseWriter to the relay's Sink, flushing
// each chunk through so the client hears audio as it is produced.
type responseSink struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func newResponseSink(w http.ResponseWriter) *responseSink {
	f, _ := w.(http.Flusher)
	return &responseSink{w: w, flusher: f}
}

func (s *responseSink) Write(ctx context.Context, p []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.w.Write(p)
	return err
}

func (s *responseSink) Flush(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
	return nil
}
