package model

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	apperrors "github.com/scout-ai/scout/internal/errors"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// instantFetcher succeeds immediately, counting calls.
type instantFetcher struct {
	calls atomic.Int64
}

func (f *instantFetcher) Fetch(ctx context.Context, identifier, dest string, progress ProgressFunc) error {
	f.calls.Add(1)
	if progress != nil {
		progress(0.5)
		progress(1.0)
	}
	return nil
}

func newTestSession(t *testing.T, backend Backend, fetcher ArtifactFetcher) *Session {
	t.Helper()
	s, err := NewSession(&SessionConfig{
		Backend:  backend,
		Fetcher:  fetcher,
		Artifact: "test-artifact",
	})
	require.NoError(t, err)
	return s
}

func TestEnsureDownloadedIdempotent(t *testing.T) {
	fetcher := &instantFetcher{}
	s := newTestSession(t, NewStubBackend(), fetcher)

	var first, second []float64
	require.NoError(t, s.EnsureDownloaded(context.Background(), func(f float64) {
		first = append(first, f)
	}))
	require.Equal(t, StateDownloaded, s.State())
	require.Equal(t, 1.0, first[len(first)-1])

	require.NoError(t, s.EnsureDownloaded(context.Background(), func(f float64) {
		second = append(second, f)
	}))
	require.Equal(t, StateDownloaded, s.State())
	require.Equal(t, []float64{1.0}, second)
	require.EqualValues(t, 1, fetcher.calls.Load(), "second call must not re-download")
}

func TestDownloadProgressMonotonic(t *testing.T) {
	fetcher := FetcherFunc(func(ctx context.Context, identifier, dest string, progress ProgressFunc) error {
		for _, f := range []float64{0.2, 0.8, 0.5, -0.1, 0.9, 1.2} {
			progress(f)
		}
		return nil
	})
	s := newTestSession(t, NewStubBackend(), fetcher)

	var reported []float64
	require.NoError(t, s.EnsureDownloaded(context.Background(), func(f float64) {
		reported = append(reported, f)
	}))

	last := 0.0
	for _, f := range reported {
		require.GreaterOrEqual(t, f, last)
		require.LessOrEqual(t, f, 1.0)
		last = f
	}
	require.Equal(t, 1.0, last)
}

func TestConcurrentDownloadRejected(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	fetcher := FetcherFunc(func(ctx context.Context, identifier, dest string, progress ProgressFunc) error {
		close(started)
		<-release
		return nil
	})
	s := newTestSession(t, NewStubBackend(), fetcher)

	done := make(chan error, 1)
	go func() {
		done <- s.EnsureDownloaded(context.Background(), nil)
	}()

	<-started
	err := s.EnsureDownloaded(context.Background(), nil)
	require.Error(t, err)
	require.Equal(t, apperrors.CodeDownloadInProgress, apperrors.GetCode(err))
	require.True(t, apperrors.IsBusy(err))

	close(release)
	require.NoError(t, <-done)
	require.Equal(t, StateDownloaded, s.State())
}

func TestDownloadFailureRevertsForRetry(t *testing.T) {
	var calls int
	fetcher := FetcherFunc(func(ctx context.Context, identifier, dest string, progress ProgressFunc) error {
		calls++
		if calls == 1 {
			return fmt.Errorf("connection reset")
		}
		return nil
	})
	s := newTestSession(t, NewStubBackend(), fetcher)

	err := s.EnsureDownloaded(context.Background(), nil)
	require.Error(t, err)
	require.Equal(t, apperrors.CodeDownloadFailed, apperrors.GetCode(err))
	require.Equal(t, StateIdle, s.State())

	require.NoError(t, s.EnsureDownloaded(context.Background(), nil))
	require.Equal(t, StateDownloaded, s.State())
}

func TestEnsureReadyDrivesFullLifecycle(t *testing.T) {
	s := newTestSession(t, NewStubBackend(StubResponse{Text: "hello"}), &instantFetcher{})

	require.Equal(t, StateIdle, s.State())
	require.NoError(t, s.EnsureReady(context.Background()))
	require.Equal(t, StateReady, s.State())
}

func TestEnsureReadyCooperativeWait(t *testing.T) {
	fetcher := &slowFetcher{delay: 50 * time.Millisecond}
	s := newTestSession(t, NewStubBackend(StubResponse{Text: "ok"}), fetcher)

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := 0; i < 4; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = s.EnsureReady(context.Background())
		}()
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	require.Equal(t, StateReady, s.State())
	require.EqualValues(t, 1, fetcher.calls.Load(), "lifecycle must be driven exactly once")
}

type slowFetcher struct {
	calls atomic.Int64
	delay time.Duration
}

func (f *slowFetcher) Fetch(ctx context.Context, identifier, dest string, progress ProgressFunc) error {
	f.calls.Add(1)
	time.Sleep(f.delay)
	return nil
}

func TestInitTransientFailureRevertsToIdle(t *testing.T) {
	backend := NewStubBackend(StubResponse{Text: "ok"})
	backend.SetLoadError(fmt.Errorf("weights truncated"))
	s := newTestSession(t, backend, &instantFetcher{})

	err := s.EnsureReady(context.Background())
	require.Error(t, err)
	require.Equal(t, apperrors.CodeInitFailed, apperrors.GetCode(err))
	require.Equal(t, StateIdle, s.State())

	// Retry succeeds once the fault clears.
	require.NoError(t, s.EnsureReady(context.Background()))
	require.Equal(t, StateReady, s.State())
}

func TestInitPermanentFaultIsTerminal(t *testing.T) {
	backend := NewStubBackend(StubResponse{Text: "ok"})
	backend.SetLoadError(apperrors.Permanent(apperrors.CodeInitFailed, "unsupported quantization"))
	s := newTestSession(t, backend, &instantFetcher{})

	require.Error(t, s.EnsureReady(context.Background()))
	require.Equal(t, StateError, s.State())

	// Error state sticks.
	err := s.EnsureReady(context.Background())
	require.Error(t, err)
	require.Equal(t, apperrors.CodeInitFailed, apperrors.GetCode(err))
	require.Equal(t, StateError, s.State())
}

func TestCompleteStreamsTokens(t *testing.T) {
	s := newTestSession(t, NewStubBackend(StubResponse{Text: "strong team here"}), &instantFetcher{})

	var streamed []string
	result, err := s.Complete(context.Background(), []Message{{Role: RoleUser, Text: "hi"}}, Options{}, nil, func(token string) {
		streamed = append(streamed, token)
	})
	require.NoError(t, err)
	require.Equal(t, "strong team here", result.Text)
	require.False(t, result.Cancelled)
	require.Equal(t, 3, result.Stats.Tokens)
	require.Len(t, streamed, 3)
}

func TestCompleteSingleFlight(t *testing.T) {
	backend := NewStubBackend(StubResponse{
		Text:  "one two three four five six seven eight",
		Delay: 20 * time.Millisecond,
	})
	s := newTestSession(t, backend, &instantFetcher{})
	require.NoError(t, s.EnsureReady(context.Background()))

	firstStarted := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := s.Complete(context.Background(), nil, Options{}, nil, func(string) {
			select {
			case <-firstStarted:
			default:
				close(firstStarted)
			}
		})
		done <- err
	}()

	<-firstStarted
	_, err := s.Complete(context.Background(), nil, Options{}, nil, nil)
	require.Error(t, err)
	require.Equal(t, apperrors.CodeSessionBusy, apperrors.GetCode(err))
	require.False(t, apperrors.IsRetryable(err))

	require.NoError(t, <-done)

	// The session is usable again once the first call finished.
	_, err = s.Complete(context.Background(), nil, Options{}, nil, nil)
	require.NoError(t, err)
}

func TestCancelReturnsPartialResult(t *testing.T) {
	backend := NewStubBackend(StubResponse{
		Text:  "alpha beta gamma delta epsilon zeta eta theta",
		Delay: 15 * time.Millisecond,
	})
	s := newTestSession(t, backend, &instantFetcher{})
	require.NoError(t, s.EnsureReady(context.Background()))

	sawToken := make(chan struct{})
	var once sync.Once
	type outcome struct {
		result *CompletionResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := s.Complete(context.Background(), nil, Options{}, nil, func(string) {
			once.Do(func() { close(sawToken) })
		})
		done <- outcome{result, err}
	}()

	<-sawToken
	s.Cancel()

	out := <-done
	require.NoError(t, out.err)
	require.True(t, out.result.Cancelled)
	require.NotEmpty(t, out.result.Text)
	require.Less(t, out.result.Stats.Tokens, 8)
}

// countingBackend tracks how often the engine actually embeds.
type countingBackend struct {
	*StubBackend
	embeds atomic.Int64
}

func (b *countingBackend) Embed(ctx context.Context, text string) ([]float32, error) {
	b.embeds.Add(1)
	return b.StubBackend.Embed(ctx, text)
}

func TestEmbedCachesRepeats(t *testing.T) {
	backend := &countingBackend{StubBackend: NewStubBackend(StubResponse{Text: "ok"})}
	s := newTestSession(t, backend, &instantFetcher{})

	first, err := s.Embed(context.Background(), "fintech founder in berlin")
	require.NoError(t, err)
	require.Len(t, first, 8)

	second, err := s.Embed(context.Background(), "fintech founder in berlin")
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.EqualValues(t, 1, backend.embeds.Load(), "repeat embed must hit the cache")

	_, err = s.Embed(context.Background(), "different text")
	require.NoError(t, err)
	require.EqualValues(t, 2, backend.embeds.Load())
}

func TestResetWhileBusyFails(t *testing.T) {
	backend := NewStubBackend(StubResponse{
		Text:  "one two three four five six",
		Delay: 20 * time.Millisecond,
	})
	s := newTestSession(t, backend, &instantFetcher{})
	require.NoError(t, s.EnsureReady(context.Background()))

	started := make(chan struct{})
	var once sync.Once
	done := make(chan error, 1)
	go func() {
		_, err := s.Complete(context.Background(), nil, Options{}, nil, func(string) {
			once.Do(func() { close(started) })
		})
		done <- err
	}()

	<-started
	err := s.Reset()
	require.Error(t, err)
	require.Equal(t, apperrors.CodeSessionBusy, apperrors.GetCode(err))

	require.NoError(t, <-done)
	require.NoError(t, s.Reset())
	require.Equal(t, 1, backend.Resets())
}

func TestDestroyedSessionRejectsEverything(t *testing.T) {
	s := newTestSession(t, NewStubBackend(StubResponse{Text: "ok"}), &instantFetcher{})
	require.NoError(t, s.Destroy())

	_, err := s.Complete(context.Background(), nil, Options{}, nil, nil)
	require.Equal(t, apperrors.CodeSessionDestroyed, apperrors.GetCode(err))

	err = s.EnsureDownloaded(context.Background(), nil)
	require.Equal(t, apperrors.CodeSessionDestroyed, apperrors.GetCode(err))

	err = s.EnsureReady(context.Background())
	require.Equal(t, apperrors.CodeSessionDestroyed, apperrors.GetCode(err))

	require.Equal(t, apperrors.CodeSessionDestroyed, apperrors.GetCode(s.Reset()))

	// Destroy is idempotent.
	require.NoError(t, s.Destroy())
}

func TestStateStrings(t *testing.T) {
	require.Equal(t, "idle", StateIdle.String())
	require.Equal(t, "downloading", StateDownloading.String())
	require.Equal(t, "downloaded", StateDownloaded.String())
	require.Equal(t, "initializing", StateInitializing.String())
	require.Equal(t, "ready", StateReady.String())
	require.Equal(t, "error", StateError.String())
}
