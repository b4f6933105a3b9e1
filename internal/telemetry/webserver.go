package telemetry

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/rjboer/GoEphys/internal/graph"
)

// Server exposes the catalog, stream statistics and live updates over
// HTTP.
type Server struct {
	srv      *http.Server
	hub      *Hub
	registry *graph.Registry
	session  graph.Session
	logger   zerolog.Logger
}

// NewServer builds the HTTP server for one session's catalog.
func NewServer(addr string, reg *graph.Registry, session graph.Session, hub *Hub, metrics *Metrics, logger zerolog.Logger) *Server {
	s := &Server{
		hub:      hub,
		registry: reg,
		session:  session,
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(requestLogger(logger))
	r.Get("/api/streams", s.handleStreams)
	r.Get("/api/session", s.handleSession)
	r.Get("/api/snapshot", s.handleSnapshot)
	r.Get("/api/live", hub.handleLive)
	r.Handle("/metrics", metrics.Handler())

	s.srv = &http.Server{Addr: addr, Handler: r}
	return s
}

// Handler exposes the route tree, mainly for tests.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// Start begins listening and shuts down when the context is canceled.
func (s *Server) Start(ctx context.Context) {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error().Err(err).Msg("telemetry shutdown")
		}
	}()

	s.logger.Info().Str("addr", s.srv.Addr).Msg("telemetry server listening")
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.logger.Error().Err(err).Msg("telemetry server error")
	}
}

type streamResponse struct {
	Node     uint16       `json:"node"`
	Stream   uint16       `json:"stream"`
	Data     int          `json:"dataChannels"`
	Events   int          `json:"eventChannels"`
	Spikes   int          `json:"spikeChannels"`
	Configs  int          `json:"configurations"`
	Activity *StreamStats `json:"activity,omitempty"`
}

func (s *Server) handleStreams(w http.ResponseWriter, _ *http.Request) {
	activity := make(map[streamKey]StreamStats)
	for _, st := range s.hub.Stats() {
		activity[streamKey{node: st.Node, stream: st.Stream}] = st
	}

	var out []streamResponse
	for _, id := range s.registry.Streams() {
		resp := streamResponse{
			Node:    id.Node,
			Stream:  id.Stream,
			Data:    len(s.registry.DataChannels(id.Node, id.Stream)),
			Events:  len(s.registry.EventChannels(id.Node, id.Stream)),
			Spikes:  len(s.registry.SpikeChannels(id.Node, id.Stream)),
			Configs: len(s.registry.Configurations(id.Node, id.Stream)),
		}
		if st, ok := activity[streamKey{node: id.Node, stream: id.Stream}]; ok {
			resp.Activity = &st
		}
		out = append(out, resp)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func (s *Server) handleSession(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":        s.session.ID.String(),
		"name":      s.session.Name,
		"startedAt": s.session.StartedAt.Format(time.RFC3339),
	})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	data, err := graph.EncodeSnapshot(s.registry.Snapshot(s.session))
	if err != nil {
		s.logger.Error().Err(err).Msg("snapshot encode failed")
		http.Error(w, "snapshot encode failed", http.StatusInternalServerError)
		return
	}
	digest := graph.Digest(data)

	w.Header().Set("Content-Type", "application/cbor")
	w.Header().Set("X-Catalog-Digest", hex.EncodeToString(digest[:]))
	w.Write(data)
}

func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("elapsed", time.Since(start)).
				Msg("http request")
		})
	}
}
