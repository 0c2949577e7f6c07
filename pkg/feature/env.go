package feature

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/beamline/pkg/session"
	"golang.org/x/text/language"
)

// ConfigurationError reports runtime state that makes a feature
// impossible to evaluate, such as a session without the rules a feature
// consults.
type ConfigurationError struct {
	Resource string
	Err      error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s unavailable: %v", e.Resource, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// IsConfigurationError reports whether err wraps a *ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

type cacheKey struct {
	feature uint64
	context uint64
}

// Environment carries per-call evaluation state: the session and a result
// cache keyed by feature id and context id. An Environment belongs to one
// decoding call and must not be shared between goroutines.
type Environment struct {
	session *session.Session
	logger  *slog.Logger
	cache   map[cacheKey]any
	hits    int
	misses  int
}

// EnvOption configures an Environment.
type EnvOption func(*Environment)

// WithoutCache disables result caching. Results are identical with and
// without the cache.
func WithoutCache() EnvOption {
	return func(e *Environment) { e.cache = nil }
}

// WithLogger sets the logger used by features that report diagnostics.
func WithLogger(logger *slog.Logger) EnvOption {
	return func(e *Environment) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEnvironment creates an environment bound to s. s may be nil, in which
// case features needing session data fail with a ConfigurationError.
func NewEnvironment(s *session.Session, opts ...EnvOption) *Environment {
	e := &Environment{
		session: s,
		logger:  slog.New(slog.DiscardHandler),
		cache:   make(map[cacheKey]any),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Session returns the bound session, possibly nil.
func (e *Environment) Session() *session.Session {
	if e == nil {
		return nil
	}
	return e.session
}

// Logger returns the environment logger.
func (e *Environment) Logger() *slog.Logger {
	if e == nil {
		return slog.New(slog.DiscardHandler)
	}
	return e.logger
}

// Rules returns the session rules or a ConfigurationError.
func (e *Environment) Rules() (*session.Rules, error) {
	r, err := e.Session().Rules()
	if err != nil {
		return nil, &ConfigurationError{Resource: "linguistic rules", Err: err}
	}
	return r, nil
}

// Lexicon returns the session lexicon or a ConfigurationError.
func (e *Environment) Lexicon() (session.Lexicon, error) {
	l, err := e.Session().Lexicon()
	if err != nil {
		return nil, &ConfigurationError{Resource: "lexicon", Err: err}
	}
	return l, nil
}

// Locale returns the session locale or a ConfigurationError.
func (e *Environment) Locale() (language.Tag, error) {
	tag, err := e.Session().Locale()
	if err != nil {
		return language.Und, &ConfigurationError{Resource: "locale", Err: err}
	}
	return tag, nil
}

// CacheStats returns the number of cache hits and misses so far.
func (e *Environment) CacheStats() (hits, misses int) {
	if e == nil {
		return 0, 0
	}
	return e.hits, e.misses
}
