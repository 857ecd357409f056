package scout

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/scout-ai/scout/internal/config"
	"github.com/scout-ai/scout/internal/memory"
	"github.com/scout-ai/scout/internal/model"
	"github.com/scout-ai/scout/internal/persona"
	"github.com/scout-ai/scout/pkg/protocol"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Engine.Backend = "stub"
	cfg.Paths.DataDir = dir
	cfg.Paths.DB = filepath.Join(dir, "scout.db")
	cfg.Model.ModelsDir = filepath.Join(dir, "models")
	return cfg
}

func noopFetcher() model.ArtifactFetcher {
	return model.FetcherFunc(func(ctx context.Context, identifier, dest string, progress model.ProgressFunc) error {
		return nil
	})
}

func newTestApp(t *testing.T, backend model.Backend, executor func(ctx context.Context, call protocol.ToolCall, credential string) protocol.ToolResult) *App {
	t.Helper()
	app, err := NewApp(context.Background(), &Options{
		Config:     testConfig(t),
		Backend:    backend,
		Fetcher:    noopFetcher(),
		Executor:   executor,
		Credential: "bearer-1",
	})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, app.Close()) })
	return app
}

func TestAppAskStreamsAnswer(t *testing.T) {
	backend := model.NewStubBackend(model.StubResponse{Text: "Strong early-stage signal."})
	app := newTestApp(t, backend, nil)

	require.NoError(t, app.Engine.AddRecipe(context.Background(), &persona.Recipe{
		ID: "default", Name: "Default",
		Positive: []string{"serial_founder"},
	}))

	resp, err := app.Ask(context.Background(), "What do you think of this founder?",
		"Jordan is a serial founder who founded two companies.", nil)
	require.NoError(t, err)
	require.Equal(t, "Strong early-stage signal.", resp.Text)
	require.Equal(t, 1, resp.Steps)
}

func TestAppScoreProfile(t *testing.T) {
	app := newTestApp(t, model.NewStubBackend(), nil)
	require.NoError(t, app.Engine.AddRecipe(context.Background(), &persona.Recipe{
		ID: "deep-tech", Name: "Deep Tech",
		Positive: []string{"serial_founder", "ai_ml"},
		Weights:  map[string]float64{"serial_founder": 0.9, "ai_ml": 0.8},
	}))

	result, extracted, err := app.ScoreProfile("A serial founder who founded two AI companies.")
	require.NoError(t, err)
	require.Contains(t, extracted, "serial_founder")
	require.Contains(t, extracted, "ai_ml")
	require.Greater(t, result.Score, 50)
}

func TestAppScoreProfileWithoutPersona(t *testing.T) {
	app := newTestApp(t, model.NewStubBackend(), nil)
	_, _, err := app.ScoreProfile("A serial founder.")
	require.Error(t, err)
}

func TestAppRecordFeedbackPersists(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	app, err := NewApp(ctx, &Options{
		Config:  cfg,
		Backend: model.NewStubBackend(),
		Fetcher: noopFetcher(),
	})
	require.NoError(t, err)
	require.NoError(t, app.Engine.AddRecipe(ctx, &persona.Recipe{ID: "p1", Name: "P1"}))

	profile := "A serial founder who founded two fintech companies."
	require.NoError(t, app.RecordFeedback(ctx, "e-1", "person", profile, true))

	recent := app.Interactions.Recent(0)
	require.Len(t, recent, 1)
	require.Equal(t, memory.ActionLiked, recent[0].Action)

	weights := app.Engine.LearnedWeights(0)
	require.NotEmpty(t, weights)
	require.NoError(t, app.Close())

	// Reopen over the same database: the learned state comes back.
	reopened, err := NewApp(ctx, &Options{
		Config:  cfg,
		Backend: model.NewStubBackend(),
		Fetcher: noopFetcher(),
	})
	require.NoError(t, err)
	defer func() { require.NoError(t, reopened.Close()) }()

	require.Equal(t, 1, reopened.Interactions.Len())
	require.NotEmpty(t, reopened.Engine.LearnedWeights(0))
	active, err := reopened.Engine.ActivePersona()
	require.NoError(t, err)
	require.Equal(t, "p1", active.ID)
}
