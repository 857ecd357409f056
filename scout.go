// Package scout assembles the on-device deal screening core: inference
// session, tool catalog, orchestrator, persona scoring and interaction
// memory, wired together from one configuration. The host application
// embeds an App and supplies the tool executor that performs all
// external data access.
package scout

import (
	"context"
	"strings"
	"time"

	"github.com/scout-ai/scout/internal/agent"
	"github.com/scout-ai/scout/internal/config"
	"github.com/scout-ai/scout/internal/errors"
	"github.com/scout-ai/scout/internal/memory"
	"github.com/scout-ai/scout/internal/model"
	"github.com/scout-ai/scout/internal/persona"
	"github.com/scout-ai/scout/internal/tags"
	"github.com/scout-ai/scout/internal/tools"
)

// Options configures App construction. Everything is optional except
// the Executor, without which the model cannot reach external data.
type Options struct {
	// ConfigPath is the toml config file; missing files fall back to
	// defaults.
	ConfigPath string
	// Config overrides file loading entirely when set.
	Config *config.Config
	// Executor performs tool calls on behalf of the orchestrator.
	Executor tools.Executor
	// Credential is the opaque bearer token handed to the executor.
	Credential string
	// Backend overrides the configured inference backend (tests).
	Backend model.Backend
	// Fetcher overrides the artifact fetcher (tests).
	Fetcher model.ArtifactFetcher
}

// App is the assembled core. Fields are exported so the host can reach
// each collaborator directly; the convenience methods below cover the
// common flows.
type App struct {
	Config       *config.Config
	Session      *model.Session
	Tools        *tools.Registry
	Engine       *persona.Engine
	Interactions *memory.Interactions
	Extractor    *tags.Extractor
	Orchestrator *agent.Orchestrator

	store *memory.Store
}

// NewApp builds the full stack from configuration.
func NewApp(ctx context.Context, opts *Options) (*App, error) {
	if opts == nil {
		opts = &Options{}
	}

	cfg := opts.Config
	if cfg == nil {
		loaded, err := config.Load(opts.ConfigPath)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeInvalidInput, "failed to load configuration", errors.CategoryUser)
		}
		cfg = loaded
	}

	store, err := memory.Open(cfg.DBPath())
	if err != nil {
		return nil, err
	}

	engine, err := persona.NewEngine(ctx, store, persona.Thresholds{
		StrongPass: cfg.Scoring.StrongPass,
		SoftPass:   cfg.Scoring.SoftPass,
		Borderline: cfg.Scoring.Borderline,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	interactions, err := memory.NewInteractions(cfg.Memory.InteractionCap, store)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	backend := opts.Backend
	if backend == nil {
		backend = backendFor(cfg)
	}
	fetcher := opts.Fetcher
	if fetcher == nil && cfg.Model.ArtifactURL != "" {
		fetcher = model.NewHTTPFetcher(cfg.Model.ArtifactURL)
	}

	session, err := model.NewSession(&model.SessionConfig{
		Backend:        backend,
		Fetcher:        fetcher,
		Artifact:       cfg.Model.Artifact,
		ArtifactPath:   cfg.ArtifactPath(),
		EmbedCacheSize: cfg.Engine.EmbedCacheSize,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	registry := tools.NewRegistry()
	conversation := memory.NewConversation(cfg.Memory.ConversationCap)

	orchestrator := agent.New(&agent.Config{
		Session:      session,
		Tools:        registry,
		Executor:     opts.Executor,
		Engine:       engine,
		Interactions: interactions,
		Conversation: conversation,
		Credential:   opts.Credential,
		MaxSteps:     cfg.Orchestrator.MaxSteps,
	})

	return &App{
		Config:       cfg,
		Session:      session,
		Tools:        registry,
		Engine:       engine,
		Interactions: interactions,
		Extractor:    tags.NewExtractor(nil),
		Orchestrator: orchestrator,
		store:        store,
	}, nil
}

func backendFor(cfg *config.Config) model.Backend {
	if cfg.Engine.Backend == "stub" {
		return model.NewStubBackend()
	}
	return model.NewLlamaBackend(&model.LlamaConfig{
		BaseURL:     cfg.Engine.BaseURL,
		Timeout:     time.Duration(cfg.Engine.TimeoutSec) * time.Second,
		Temperature: cfg.Engine.Temperature,
		MaxTokens:   cfg.Engine.MaxTokens,
		ContextSize: cfg.Model.ContextSize,
		Threads:     cfg.Model.Threads,
	})
}

// Ask answers a question about a candidate through the tool-calling
// loop. profileText, when present, is tagged and included as entity
// context so the model sees normalized features alongside the raw text.
func (a *App) Ask(ctx context.Context, question, profileText string, onToken model.TokenFunc) (*agent.Response, error) {
	entityContext := profileText
	if extracted := a.Extractor.ExtractTags(profileText); len(extracted) > 0 {
		entityContext += "\n\nExtracted features: " + strings.Join(extracted, ", ")
	}
	return a.Orchestrator.Ask(ctx, question, entityContext, onToken)
}

// ScoreProfile tags a raw profile and scores it against the active
// persona.
func (a *App) ScoreProfile(profileText string) (*persona.MatchResult, []string, error) {
	extracted := a.Extractor.ExtractTags(profileText)
	result, err := a.Engine.Score(extracted)
	if err != nil {
		return nil, nil, err
	}
	return result, extracted, nil
}

// RecordFeedback logs a like or dislike for an entity and folds its
// features into the learned persona weights.
func (a *App) RecordFeedback(ctx context.Context, entityID, entityType, profileText string, liked bool) error {
	action := memory.ActionDisliked
	if liked {
		action = memory.ActionLiked
	}
	if err := a.Interactions.Add(ctx, &memory.Record{
		EntityID:   entityID,
		EntityType: entityType,
		Action:     action,
		Snapshot:   a.Extractor.Snapshot(profileText),
	}); err != nil {
		return err
	}
	extracted := a.Extractor.ExtractTags(profileText)
	if len(extracted) == 0 {
		return nil
	}
	return a.Engine.RecordFeedback(ctx, extracted, liked)
}

// Close tears down the session and the backing store.
func (a *App) Close() error {
	err := a.Session.Destroy()
	if cerr := a.store.Close(); err == nil {
		err = cerr
	}
	return err
}
