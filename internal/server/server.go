// Package server exposes the parser over HTTP.
//
// Routes:
//
//	POST /parse    decode one sentence (JSON body, see ParseRequest)
//	GET  /healthz  liveness
//	GET  /metrics  Prometheus scrape endpoint
//	GET  /events   server-sent "reload" events
//
// When watching is enabled the feature file is reloaded on change and the
// new pipeline is swapped in atomically; in-flight requests finish on the
// pipeline they started with.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/leapstack-labs/beamline/internal/metrics"
	"github.com/leapstack-labs/beamline/internal/pipeline"
	"github.com/leapstack-labs/beamline/pkg/beam"
	"github.com/leapstack-labs/beamline/pkg/depparse"
	"github.com/leapstack-labs/beamline/pkg/feature"
	"golang.org/x/sync/errgroup"
)

// Loader builds a pipeline from the current configuration files.
type Loader func() (*pipeline.Pipeline, error)

// Config holds configuration for the server.
type Config struct {
	// Port to listen on.
	Port int
	// Load builds the pipeline at start-up and on every reload (required).
	Load Loader
	// Watch enables hot reload of WatchPath.
	Watch     bool
	WatchPath string
	// Debounce delays a reload after the last change event (default 100ms).
	Debounce time.Duration
	// Metrics (optional).
	Metrics *metrics.Metrics
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// Server is the HTTP parse server.
type Server struct {
	cfg      Config
	current  atomic.Pointer[pipeline.Pipeline]
	notifier *notifier
	logger   *slog.Logger
}

// New creates a server and loads the initial pipeline.
func New(cfg Config) (*Server, error) {
	if cfg.Load == nil {
		return nil, errors.New("pipeline loader is required")
	}
	if cfg.Watch && cfg.WatchPath == "" {
		return nil, errors.New("watch requires a file path")
	}
	if cfg.Debounce == 0 {
		cfg.Debounce = 100 * time.Millisecond
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	s := &Server{cfg: cfg, notifier: newNotifier(), logger: logger}
	p, err := cfg.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load pipeline: %w", err)
	}
	s.current.Store(p)
	return s, nil
}

// Reload rebuilds the pipeline. On failure the previous pipeline stays in
// service.
func (s *Server) Reload() error {
	p, err := s.cfg.Load()
	if err != nil {
		s.cfg.Metrics.FeatureReloadsTotal.WithLabelValues("error").Inc()
		s.logger.Error("reload failed, keeping previous features", "error", err)
		return err
	}
	s.current.Store(p)
	s.cfg.Metrics.FeatureReloadsTotal.WithLabelValues("ok").Inc()
	s.logger.Info("features reloaded", "path", s.cfg.WatchPath)
	s.notifier.broadcast()
	return nil
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		middleware.Recoverer,
		s.cfg.Metrics.Middleware,
	)

	r.Post("/parse", s.handleParse)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok\n"))
	})
	r.Method(http.MethodGet, "/metrics", s.cfg.Metrics.Handler())
	r.Get("/events", s.handleEvents)
	return r
}

// Serve starts the server and blocks until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.logger.Info("starting server", "addr", addr)

	eg, egctx := errgroup.WithContext(ctx)
	srv := &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.cfg.Watch {
		eg.Go(func() error {
			return s.watch(egctx)
		})
	}

	eg.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("shutting down server")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// watch reloads the pipeline when the watched file changes. The parent
// directory is watched so editors that replace the file are seen too.
func (s *Server) watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	target := filepath.Clean(s.cfg.WatchPath)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", target, err)
	}

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target || !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(s.cfg.Debounce, func() {
				s.logger.Debug("feature file changed", "file", event.Name)
				_ = s.Reload()
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("watcher error", "error", err)
		}
	}
}

// ParseRequest is the body of POST /parse.
type ParseRequest struct {
	depparse.InputSentence
}

// ParseResponse is the body returned by POST /parse.
type ParseResponse struct {
	Sentence  string         `json:"sentence"`
	Arcs      []depparse.Arc `json:"arcs"`
	Decisions string         `json:"decisions"`
	Score     float64        `json:"score"`
	Steps     int            `json:"steps"`
	Partial   bool           `json:"partial"`
	Beam      []Candidate    `json:"beam,omitempty"`
	Trace     []beam.Step    `json:"trace,omitempty"`
}

// Candidate is one propagated hypothesis.
type Candidate struct {
	Decisions string  `json:"decisions"`
	Score     float64 `json:"score"`
	Terminal  bool    `json:"terminal"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	var req ParseRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request: " + err.Error()})
		return
	}
	sentence, err := req.Sentence()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	res := s.current.Load().Parse(sentence)
	if res.Err != nil {
		status := http.StatusInternalServerError
		if errors.Is(res.Err, beam.ErrNoSolution) {
			status = http.StatusUnprocessableEntity
		}
		if feature.IsConfigurationError(res.Err) {
			s.logger.Error("configuration error", "error", res.Err, "request_id", middleware.GetReqID(r.Context()))
		}
		writeJSON(w, status, errorResponse{Error: res.Err.Error()})
		return
	}

	resp := ParseResponse{
		Sentence:  sentence.String(),
		Arcs:      res.Parse.Arcs(),
		Decisions: depparse.TransitionSequence(res.Outcome.Best.Config),
		Score:     res.Outcome.Best.Score,
		Steps:     res.Outcome.Steps,
		Partial:   res.Outcome.Partial,
		Trace:     res.Outcome.Trace,
	}
	if props := res.Outcome.Propagated(); len(props) > 1 {
		for _, h := range props {
			resp.Beam = append(resp.Beam, Candidate{
				Decisions: depparse.TransitionSequence(h.Config),
				Score:     h.Score,
				Terminal:  h.Terminal,
			})
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := s.notifier.subscribe()
	defer s.notifier.unsubscribe(ch)

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ch:
			_, _ = fmt.Fprint(w, "event: reload\ndata: {}\n\n")
			flusher.Flush()
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
