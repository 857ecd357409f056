// Package model provides the inference session.
//
// The session is the single point of control for the on-device model:
// artifact acquisition, initialization, completion, embedding,
// cancellation and teardown. The underlying engine is not reentrant, so
// the session enforces that at most one inference call is in flight; a
// concurrent attempt fails fast instead of queuing.
package model

import (
	"context"
	"log"
	"os"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/scout-ai/scout/internal/errors"
	"github.com/scout-ai/scout/internal/stats"
)

// SessionConfig configures an inference session.
type SessionConfig struct {
	Backend      Backend
	Fetcher      ArtifactFetcher
	Artifact     string // Artifact identifier passed to the fetcher
	ArtifactPath string // On-disk destination for the artifact
	// EmbedCacheSize bounds the embedding cache; 0 uses a default.
	EmbedCacheSize int
	Stats          *stats.Collector
}

// Session owns the model lifecycle and serializes all engine access.
type Session struct {
	mu   sync.Mutex
	cond *sync.Cond

	state     State
	lastErr   error
	destroyed bool
	inFlight  bool

	backend      Backend
	fetcher      ArtifactFetcher
	artifact     string
	artifactPath string

	cancelMu sync.Mutex
	cancelFn context.CancelFunc

	embedCache *lru.Cache[string, []float32]
	stats      *stats.Collector
}

// NewSession creates a session around the given backend and fetcher.
func NewSession(cfg *SessionConfig) (*Session, error) {
	if cfg == nil || cfg.Backend == nil {
		return nil, errors.User(errors.CodeInvalidInput, "session requires a backend")
	}

	cacheSize := cfg.EmbedCacheSize
	if cacheSize <= 0 {
		cacheSize = 256
	}
	cache, err := lru.New[string, []float32](cacheSize)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidInput, "invalid embed cache size", errors.CategoryUser)
	}

	collector := cfg.Stats
	if collector == nil {
		collector = stats.NewCollector()
	}

	s := &Session{
		state:        StateIdle,
		backend:      cfg.Backend,
		fetcher:      cfg.Fetcher,
		artifact:     cfg.Artifact,
		artifactPath: cfg.ArtifactPath,
		embedCache:   cache,
		stats:        collector,
	}
	s.cond = sync.NewCond(&s.mu)
	return s, nil
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Status returns an observable summary of the session.
func (s *Session) Status() *Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := &Status{
		Artifact:  s.artifact,
		State:     s.state.String(),
		Available: s.state == StateReady && !s.destroyed,
	}
	if s.lastErr != nil {
		st.Error = s.lastErr.Error()
	}
	return st
}

// Stats returns the session's statistics collector.
func (s *Session) Stats() *stats.Collector {
	return s.stats
}

// EnsureDownloaded makes sure the model artifact is on disk.
// Idempotent: once downloaded it reports 100% progress and returns
// immediately. A concurrent download attempt fails fast with
// MODEL_DOWNLOAD_IN_PROGRESS rather than queuing.
func (s *Session) EnsureDownloaded(ctx context.Context, progress ProgressFunc) error {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return destroyedError()
	}

	switch s.state {
	case StateDownloading:
		s.mu.Unlock()
		log.Printf("Warning: concurrent artifact download rejected for %s", s.artifact)
		return errors.NewBuilder(errors.CodeDownloadInProgress, "model download already in progress").
			User().
			WithSuggestion("Wait for the current download to finish").
			Build()
	case StateDownloaded, StateInitializing, StateReady:
		s.mu.Unlock()
		if progress != nil {
			progress(1.0)
		}
		return nil
	case StateError:
		lastErr := s.lastErr
		s.mu.Unlock()
		return errors.NewBuilder(errors.CodeDownloadFailed, "model engine is in a failed state").
			Permanent().
			Wrap(lastErr).
			Build()
	}

	// Idle: the artifact may already be on disk from a previous run.
	if s.artifactOnDisk() {
		s.setStateLocked(StateDownloaded)
		s.mu.Unlock()
		if progress != nil {
			progress(1.0)
		}
		return nil
	}

	if s.fetcher == nil {
		s.mu.Unlock()
		return errors.System(errors.CodeDownloadFailed, "no artifact fetcher configured")
	}

	s.setStateLocked(StateDownloading)
	s.mu.Unlock()

	err := s.fetcher.Fetch(ctx, s.artifact, s.artifactPath, monotonic(progress))

	s.mu.Lock()
	if err != nil {
		// Revert so the caller can retry cleanly.
		s.lastErr = err
		s.setStateLocked(StateIdle)
		s.mu.Unlock()
		return errors.NewBuilder(errors.CodeDownloadFailed, "model download failed").
			Temporary().
			Wrap(err).
			WithSuggestion("Check your network connection and retry").
			Build()
	}
	s.lastErr = nil
	s.setStateLocked(StateDownloaded)
	s.mu.Unlock()

	if progress != nil {
		progress(1.0)
	}
	return nil
}

// EnsureReady drives the session to the Ready state, downloading and
// initializing as needed. If initialization is already underway in
// another goroutine this call cooperatively waits for it instead of
// double-initializing.
func (s *Session) EnsureReady(ctx context.Context) error {
	for {
		s.mu.Lock()
		if s.destroyed {
			s.mu.Unlock()
			return destroyedError()
		}
		if err := ctx.Err(); err != nil {
			s.mu.Unlock()
			return errors.Wrap(err, errors.CodeInitFailed, "readiness wait canceled", errors.CategoryTemporary)
		}

		switch s.state {
		case StateReady:
			s.mu.Unlock()
			return nil

		case StateDownloading, StateInitializing:
			// Another goroutine is driving the lifecycle; wait for the
			// next transition and re-check.
			s.cond.Wait()
			s.mu.Unlock()
			continue

		case StateError:
			// Terminal: only Destroy leaves this state.
			lastErr := s.lastErr
			s.mu.Unlock()
			return errors.NewBuilder(errors.CodeInitFailed, "model engine is in a failed state").
				Permanent().
				Wrap(lastErr).
				Build()

		case StateIdle:
			s.mu.Unlock()
			if err := s.EnsureDownloaded(ctx, nil); err != nil {
				// A concurrent download is progress too; loop and wait.
				if errors.IsBusy(err) {
					continue
				}
				return err
			}
			continue

		case StateDownloaded:
			s.setStateLocked(StateInitializing)
			s.mu.Unlock()

			err := s.backend.Load(ctx, s.artifactPath)

			s.mu.Lock()
			if err != nil {
				s.lastErr = err
				if errors.GetCategory(err) == errors.CategoryPermanent {
					// Unrecoverable engine fault.
					s.setStateLocked(StateError)
				} else {
					// Revert to Idle so a retry is possible.
					s.setStateLocked(StateIdle)
				}
				s.mu.Unlock()
				return errors.NewBuilder(errors.CodeInitFailed, "model initialization failed").
					Temporary().
					Wrap(err).
					WithSuggestion("Retry loading the model").
					Build()
			}
			s.lastErr = nil
			s.setStateLocked(StateReady)
			s.mu.Unlock()
			return nil

		default:
			s.mu.Unlock()
			return errors.System(errors.CodeInitFailed, "unexpected session state")
		}
	}
}

// Complete runs one completion against the engine, streaming tokens
// through onToken. Exactly one Complete or Embed may be in flight per
// session; a concurrent call fails fast with SESSION_BUSY.
func (s *Session) Complete(ctx context.Context, messages []Message, opts Options, tools []ToolDef, onToken TokenFunc) (*CompletionResult, error) {
	if err := s.EnsureReady(ctx); err != nil {
		return nil, err
	}

	if err := s.acquire(); err != nil {
		return nil, err
	}
	defer s.release()

	cctx, cancel := context.WithCancel(ctx)
	defer cancel()
	s.setCancel(cancel)
	defer s.clearCancel()

	start := time.Now()
	result, err := s.backend.Complete(cctx, messages, opts, tools, onToken)
	if err != nil {
		s.stats.RecordError()
		return nil, errors.Wrap(err, errors.CodeInferFailed, "completion failed", errors.GetCategory(err))
	}

	s.stats.RecordCompletion(result.Stats.Tokens, result.Stats.TimeToFirstToken, time.Since(start))
	return result, nil
}

// Embed returns a dense vector for the text, serving repeats from an
// LRU cache without touching the engine.
func (s *Session) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := s.EnsureReady(ctx); err != nil {
		return nil, err
	}

	if vec, ok := s.embedCache.Get(text); ok {
		return vec, nil
	}

	if err := s.acquire(); err != nil {
		return nil, err
	}
	defer s.release()

	vec, err := s.backend.Embed(ctx, text)
	if err != nil {
		s.stats.RecordError()
		return nil, errors.Wrap(err, errors.CodeEmbedFailed, "embedding failed", errors.GetCategory(err))
	}

	s.embedCache.Add(text, vec)
	return vec, nil
}

// Cancel requests the in-flight completion to stop early. Cancellation
// is cooperative: the result already accumulated is returned marked as
// non-final.
func (s *Session) Cancel() {
	s.cancelMu.Lock()
	defer s.cancelMu.Unlock()
	if s.cancelFn != nil {
		s.cancelFn()
	}
}

// Reset clears engine-internal conversational context without tearing
// down the engine.
func (s *Session) Reset() error {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return destroyedError()
	}
	if s.inFlight {
		s.mu.Unlock()
		return busyError()
	}
	s.mu.Unlock()

	return s.backend.Reset()
}

// Destroy releases all resources. Subsequent calls on the session fail
// with SESSION_DESTROYED.
func (s *Session) Destroy() error {
	s.Cancel()

	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return nil
	}
	s.destroyed = true
	s.setStateLocked(StateIdle)
	s.mu.Unlock()

	return s.backend.Close()
}

// ============================================================
// Internal
// ============================================================

// acquire claims the engine for one call.
func (s *Session) acquire() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return destroyedError()
	}
	if s.inFlight {
		// A caller bug, not a transient fault: loud in logs, gentle to
		// the user, never auto-retried.
		log.Printf("Warning: concurrent inference call rejected; session is busy")
		return busyError()
	}
	s.inFlight = true
	return nil
}

func (s *Session) release() {
	s.mu.Lock()
	s.inFlight = false
	s.mu.Unlock()
}

func (s *Session) setCancel(fn context.CancelFunc) {
	s.cancelMu.Lock()
	s.cancelFn = fn
	s.cancelMu.Unlock()
}

func (s *Session) clearCancel() {
	s.cancelMu.Lock()
	s.cancelFn = nil
	s.cancelMu.Unlock()
}

// setStateLocked transitions state and wakes waiters. Callers hold mu.
func (s *Session) setStateLocked(state State) {
	s.state = state
	s.cond.Broadcast()
}

func (s *Session) artifactOnDisk() bool {
	if s.artifactPath == "" {
		return false
	}
	info, err := os.Stat(s.artifactPath)
	return err == nil && info.Size() > 0
}

// monotonic wraps a progress callback so the reported fraction never
// decreases and stays in [0,1].
func monotonic(progress ProgressFunc) ProgressFunc {
	if progress == nil {
		return nil
	}
	var mu sync.Mutex
	last := 0.0
	return func(fraction float64) {
		mu.Lock()
		defer mu.Unlock()
		if fraction < 0 {
			fraction = 0
		}
		if fraction > 1 {
			fraction = 1
		}
		if fraction < last {
			return
		}
		last = fraction
		progress(fraction)
	}
}

func busyError() *errors.AppError {
	return errors.NewBuilder(errors.CodeSessionBusy, "AI is busy with another request").
		User().
		WithSuggestion("Wait for the current request to finish").
		Build()
}

func destroyedError() *errors.AppError {
	return errors.User(errors.CodeSessionDestroyed, "session has been destroyed")
}

// ============================================================
// Process-Wide Singleton
// ============================================================

var (
	instanceMu sync.Mutex
	instance   *Session
)

// Instance returns the process-wide session, creating it on first use.
// This is a convenience constructor; the session itself stays an
// explicit handle passed to dependents.
func Instance(cfg *SessionConfig) (*Session, error) {
	instanceMu.Lock()
	defer instanceMu.Unlock()

	if instance != nil {
		return instance, nil
	}
	s, err := NewSession(cfg)
	if err != nil {
		return nil, err
	}
	instance = s
	return instance, nil
}

// ResetInstance destroys and forgets the process-wide session.
func ResetInstance() {
	instanceMu.Lock()
	defer instanceMu.Unlock()

	if instance != nil {
		_ = instance.Destroy()
		instance = nil
	}
}
