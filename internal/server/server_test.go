package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leapstack-labs/beamline/internal/metrics"
	"github.com/leapstack-labs/beamline/internal/pipeline"
	"github.com/leapstack-labs/beamline/internal/testutil"
	"github.com/leapstack-labs/beamline/pkg/beam"
	"github.com/leapstack-labs/beamline/pkg/classifier"
	"github.com/leapstack-labs/beamline/pkg/depparse"
	"github.com/leapstack-labs/beamline/pkg/session"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var labels = []string{"det", "suj", "root", "ponct"}

// fileLoader builds a pipeline from the feature file at path.
func fileLoader(t *testing.T, path string, loads *atomic.Int32) Loader {
	t.Helper()
	return func() (*pipeline.Pipeline, error) {
		loads.Add(1)
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer func() { _ = f.Close() }()

		features, err := depparse.CompileFile(f, nil)
		if err != nil {
			return nil, err
		}
		sys, err := depparse.NewArcEager(labels)
		if err != nil {
			return nil, err
		}
		sess := session.New(
			session.WithRules(&session.Rules{PunctuationTags: []string{"PONCT"}}),
			session.WithLabels(labels, "ponct"),
		)
		d, err := beam.New[*depparse.Configuration](sys, features, classifier.Uniform(), sess, beam.Options{
			BeamWidth:     2,
			PropagateBeam: true,
		})
		if err != nil {
			return nil, err
		}
		return pipeline.New(pipeline.Config{Decoder: d, Session: sess, Repair: true})
	}
}

func newTestServer(t *testing.T) (*Server, string, *atomic.Int32) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "features.txt")
	require.NoError(t, os.WriteFile(path, []byte("Word(Stack(0))\nPosTag(Buffer(0))\n"), 0o644))

	var loads atomic.Int32
	s, err := New(Config{
		Load:      fileLoader(t, path, &loads),
		Watch:     true,
		WatchPath: path,
		Debounce:  10 * time.Millisecond,
		Metrics:   metrics.New(),
		Logger:    testutil.NewTestLogger(t),
	})
	require.NoError(t, err)
	return s, path, &loads
}

func TestNew_Errors(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)

	_, err = New(Config{Load: func() (*pipeline.Pipeline, error) { return nil, nil }, Watch: true})
	assert.Error(t, err)

	_, err = New(Config{Load: func() (*pipeline.Pipeline, error) { return nil, errors.New("bad features") }})
	assert.ErrorContains(t, err, "bad features")
}

func TestHandleParse(t *testing.T) {
	s, _, _ := newTestServer(t)
	h := s.Handler()

	tests := []struct {
		name       string
		body       string
		wantStatus int
		check      func(t *testing.T, body []byte)
	}{
		{
			name:       "parses a sentence",
			body:       `{"tokens":[{"form":"Le","pos":"DET"},{"form":"chat","pos":"NC"},{"form":".","pos":"PONCT"}]}`,
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body []byte) {
				var resp ParseResponse
				require.NoError(t, json.Unmarshal(body, &resp))
				assert.Equal(t, "Le chat .", resp.Sentence)
				assert.Len(t, resp.Arcs, 3)
				assert.NotEmpty(t, resp.Decisions)
				assert.False(t, resp.Partial)
				assert.Len(t, resp.Beam, 2)
			},
		},
		{
			name:       "malformed json",
			body:       `{"tokens":`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown field",
			body:       `{"words":[]}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "empty sentence",
			body:       `{"tokens":[]}`,
			wantStatus: http.StatusBadRequest,
			check: func(t *testing.T, body []byte) {
				assert.Contains(t, string(body), "no tokens")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/parse", strings.NewReader(tt.body)))
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			if tt.check != nil {
				tt.check(t, rec.Body.Bytes())
			}
		})
	}
}

func TestHealthzAndMetrics(t *testing.T) {
	s, _, _ := newTestServer(t)
	h := s.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok\n", rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "beamline_http_requests_total")
}

func TestReload(t *testing.T) {
	s, path, loads := newTestServer(t)
	logger, logs := testutil.NewCaptureLogger(t)
	s.logger = logger
	before := s.current.Load()

	require.NoError(t, os.WriteFile(path, []byte("Word(Stack(0)\n"), 0o644))
	assert.Error(t, s.Reload())
	assert.Same(t, before, s.current.Load())
	assert.InDelta(t, 1, promtest.ToFloat64(s.cfg.Metrics.FeatureReloadsTotal.WithLabelValues("error")), 0)
	assert.True(t, logs.Contains("reload failed"))

	require.NoError(t, os.WriteFile(path, []byte("Lemma(Stack(0))\n"), 0o644))
	require.NoError(t, s.Reload())
	assert.NotSame(t, before, s.current.Load())
	assert.Equal(t, int32(3), loads.Load())
}

func TestWatchReloadsOnChange(t *testing.T) {
	s, path, _ := newTestServer(t)
	// reloads may still fire after the test returns
	s.logger = slog.New(slog.DiscardHandler)
	ch := s.notifier.subscribe()
	defer s.notifier.unsubscribe(ch)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.watch(ctx) }()

	// the watcher starts asynchronously, so keep touching the file
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	timeout := time.After(5 * time.Second)
	reloaded := false
	for !reloaded {
		select {
		case <-ch:
			reloaded = true
		case <-ticker.C:
			require.NoError(t, os.WriteFile(path, []byte("Word(Buffer(0))\n"), 0o644))
		case <-timeout:
			t.Fatal("no reload after file change")
		}
	}

	cancel()
	assert.NoError(t, <-done)
}
