package persona

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	apperrors "github.com/scout-ai/scout/internal/errors"
)

// ============================================================
// Persistence contract
// ============================================================

// Store persists personas and learned weights. The sqlite
// implementation lives in internal/memory; the engine only needs this
// narrow surface.
type Store interface {
	LoadRecipes(ctx context.Context) ([]*Recipe, error)
	LoadLearnedWeights(ctx context.Context, personaID string) ([]*LearnedWeight, error)
	UpsertRecipe(ctx context.Context, r *Recipe) error
	UpsertLearnedWeight(ctx context.Context, w *LearnedWeight) error
}

// ============================================================
// Engine
// ============================================================

// Weight multipliers applied per matched tag.
const (
	curatedMultiplier float64 = 20
	redFlagMultiplier float64 = 30
	learnedMultiplier float64 = 15
	baselineScore     float64 = 50
)

// Engine scores candidates against the active persona and learns
// per-tag weights from feedback. Safe for concurrent use.
type Engine struct {
	mu         sync.RWMutex
	recipes    map[string]*Recipe
	learned    map[string]map[string]*LearnedWeight // personaID -> tag -> weight
	activeID   string
	thresholds Thresholds
	store      Store
}

// NewEngine builds an engine over the given store. Pass a nil store
// for a purely in-memory engine (tests, previews).
func NewEngine(ctx context.Context, store Store, thresholds Thresholds) (*Engine, error) {
	e := &Engine{
		recipes:    make(map[string]*Recipe),
		learned:    make(map[string]map[string]*LearnedWeight),
		thresholds: thresholds,
		store:      store,
	}

	if store == nil {
		return e, nil
	}

	recipes, err := store.LoadRecipes(ctx)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeRetrieveFailed, "failed to load personas", apperrors.CategorySystem)
	}
	for _, r := range recipes {
		e.recipes[r.ID] = r
		weights, err := store.LoadLearnedWeights(ctx, r.ID)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeRetrieveFailed,
				fmt.Sprintf("failed to load learned weights for %s", r.ID), apperrors.CategorySystem)
		}
		byTag := make(map[string]*LearnedWeight, len(weights))
		for _, w := range weights {
			byTag[w.Tag] = w
		}
		e.learned[r.ID] = byTag
		if e.activeID == "" {
			e.activeID = r.ID
		}
	}
	return e, nil
}

// AddRecipe registers a persona, persisting it when a store is
// configured. The first persona added becomes active.
func (e *Engine) AddRecipe(ctx context.Context, r *Recipe) error {
	if r.ID == "" {
		return apperrors.User(apperrors.CodeInvalidInput, "persona id is required")
	}
	e.mu.Lock()
	e.recipes[r.ID] = r
	if _, ok := e.learned[r.ID]; !ok {
		e.learned[r.ID] = make(map[string]*LearnedWeight)
	}
	if e.activeID == "" {
		e.activeID = r.ID
	}
	e.mu.Unlock()

	if e.store != nil {
		if err := e.store.UpsertRecipe(ctx, r); err != nil {
			return apperrors.Wrap(err, apperrors.CodeStoreFailed, "failed to persist persona", apperrors.CategorySystem)
		}
	}
	return nil
}

// SwitchPersona makes the named persona active for subsequent scoring.
func (e *Engine) SwitchPersona(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.recipes[id]; !ok {
		return personaNotFound(id)
	}
	e.activeID = id
	return nil
}

// ActivePersona returns the currently active recipe.
func (e *Engine) ActivePersona() (*Recipe, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	r, ok := e.recipes[e.activeID]
	if !ok {
		return nil, noActivePersona()
	}
	return r, nil
}

// Personas lists all known recipes sorted by name.
func (e *Engine) Personas() []*Recipe {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*Recipe, 0, len(e.recipes))
	for _, r := range e.recipes {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ============================================================
// Scoring
// ============================================================

// Score rates a candidate's tags against the active persona. The
// result is derived on demand and never persisted.
func (e *Engine) Score(tags []string) (*MatchResult, error) {
	e.mu.RLock()
	id := e.activeID
	e.mu.RUnlock()
	return e.ScoreAgainst(id, tags)
}

// ScoreAgainst rates a candidate's tags against a specific persona.
func (e *Engine) ScoreAgainst(personaID string, tags []string) (*MatchResult, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	recipe, ok := e.recipes[personaID]
	if !ok {
		if personaID == "" {
			return nil, noActivePersona()
		}
		return nil, personaNotFound(personaID)
	}
	learned := e.learned[personaID]

	positive := tagSet(recipe.Positive)
	negative := tagSet(recipe.Negative)
	redFlags := tagSet(recipe.RedFlags)

	score := baselineScore
	var reasons []string

	for _, tag := range tags {
		switch {
		case redFlags[tag]:
			w := e.effectiveWeight(recipe, learned, tag, -1.0)
			score += w * redFlagMultiplier
			reasons = append(reasons, fmt.Sprintf("red flag: %s (%+.2f)", tag, w*redFlagMultiplier))
		case positive[tag]:
			w := e.effectiveWeight(recipe, learned, tag, 1.0)
			score += w * curatedMultiplier
			reasons = append(reasons, fmt.Sprintf("matches thesis: %s (%+.2f)", tag, w*curatedMultiplier))
		case negative[tag]:
			w := e.effectiveWeight(recipe, learned, tag, -1.0)
			score += w * curatedMultiplier
			reasons = append(reasons, fmt.Sprintf("against thesis: %s (%+.2f)", tag, w*curatedMultiplier))
		default:
			lw, ok := learned[tag]
			if !ok || lw.Weight == 0 {
				continue
			}
			score += lw.Weight * learnedMultiplier
			reasons = append(reasons, fmt.Sprintf("learned signal: %s (%+.2f)", tag, lw.Weight*learnedMultiplier))
		}
	}

	if len(reasons) == 0 {
		reasons = []string{"no specific criteria matched"}
	}

	rounded := int(math.Round(score))
	if rounded > 100 {
		rounded = 100
	}
	if rounded < 0 {
		rounded = 0
	}

	return &MatchResult{
		Score:   rounded,
		Label:   e.thresholds.label(rounded),
		Reasons: reasons,
	}, nil
}

// effectiveWeight resolves the weight for a curated tag. A learned
// weight, once it exists, always overrides the curated one. The
// fallback carries the sign of the tag's set, so an unweighted
// negative or red-flag tag still penalizes at full strength.
func (e *Engine) effectiveWeight(recipe *Recipe, learned map[string]*LearnedWeight, tag string, fallback float64) float64 {
	if lw, ok := learned[tag]; ok {
		return lw.Weight
	}
	if w, ok := recipe.Weights[tag]; ok {
		return w
	}
	return fallback
}

// ============================================================
// Feedback learning
// ============================================================

// RecordFeedback applies a like (liked=true) or dislike to every tag of
// the active persona, re-deriving each weight from its counts.
func (e *Engine) RecordFeedback(ctx context.Context, tags []string, liked bool) error {
	e.mu.RLock()
	id := e.activeID
	e.mu.RUnlock()
	return e.RecordFeedbackFor(ctx, id, tags, liked)
}

// RecordFeedbackFor applies feedback to a specific persona, active or
// not, mirroring ScoreAgainst.
func (e *Engine) RecordFeedbackFor(ctx context.Context, personaID string, tags []string, liked bool) error {
	e.mu.Lock()
	if _, ok := e.recipes[personaID]; !ok {
		e.mu.Unlock()
		if personaID == "" {
			return noActivePersona()
		}
		return personaNotFound(personaID)
	}
	byTag := e.learned[personaID]
	if byTag == nil {
		byTag = make(map[string]*LearnedWeight)
		e.learned[personaID] = byTag
	}

	updated := make([]*LearnedWeight, 0, len(tags))
	now := time.Now().UTC()
	for _, tag := range tags {
		w, ok := byTag[tag]
		if !ok {
			w = &LearnedWeight{PersonaID: personaID, Tag: tag}
			byTag[tag] = w
		}
		if liked {
			w.LikeCount++
		} else {
			w.DislikeCount++
		}
		w.LastUpdated = now
		w.recompute()
		updated = append(updated, w)
	}
	e.mu.Unlock()

	if e.store == nil {
		return nil
	}
	for _, w := range updated {
		if err := e.store.UpsertLearnedWeight(ctx, w); err != nil {
			// In-memory state is already current; surface the
			// persistence failure so callers can warn the user.
			log.Printf("Warning: failed to persist learned weight %s/%s: %v", w.PersonaID, w.Tag, err)
			return apperrors.Wrap(err, apperrors.CodeStoreFailed, "failed to persist learned weight", apperrors.CategorySystem)
		}
	}
	return nil
}

// LearnedWeights returns up to limit learned weights for the active
// persona, strongest absolute weight first. limit <= 0 returns all.
func (e *Engine) LearnedWeights(limit int) []*LearnedWeight {
	e.mu.RLock()
	defer e.mu.RUnlock()
	byTag := e.learned[e.activeID]
	out := make([]*LearnedWeight, 0, len(byTag))
	for _, w := range byTag {
		c := *w
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		ai, aj := math.Abs(out[i].Weight), math.Abs(out[j].Weight)
		if ai != aj {
			return ai > aj
		}
		return out[i].Tag < out[j].Tag
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// ============================================================
// Prompt support
// ============================================================

// Summary renders the active persona as a compact block for system
// prompts: thesis tags plus the strongest learned signals.
func (e *Engine) Summary() string {
	recipe, err := e.ActivePersona()
	if err != nil {
		return "No investment persona is configured."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Active persona: %s\n", recipe.Name)
	if len(recipe.Positive) > 0 {
		fmt.Fprintf(&b, "Looks for: %s\n", strings.Join(recipe.Positive, ", "))
	}
	if len(recipe.Negative) > 0 {
		fmt.Fprintf(&b, "Avoids: %s\n", strings.Join(recipe.Negative, ", "))
	}
	if len(recipe.RedFlags) > 0 {
		fmt.Fprintf(&b, "Red flags: %s\n", strings.Join(recipe.RedFlags, ", "))
	}
	learned := e.LearnedWeights(5)
	if len(learned) > 0 {
		parts := make([]string, 0, len(learned))
		for _, w := range learned {
			parts = append(parts, fmt.Sprintf("%s %+.2f", w.Tag, w.Weight))
		}
		fmt.Fprintf(&b, "Learned signals: %s\n", strings.Join(parts, ", "))
	}
	return strings.TrimRight(b.String(), "\n")
}

func tagSet(tags []string) map[string]bool {
	set := make(map[string]bool, len(tags))
	for _, t := range tags {
		set[t] = true
	}
	return set
}

func noActivePersona() *apperrors.AppError {
	return apperrors.NewBuilder(apperrors.CodePersonaNotFound, "no active persona").
		User().
		WithSuggestion("Create a persona before scoring candidates").
		Build()
}

func personaNotFound(id string) error {
	return apperrors.NewBuilder(apperrors.CodePersonaNotFound,
		fmt.Sprintf("persona not found: %s", id)).
		User().
		WithSuggestion("List available personas and pick an existing id").
		Build()
}
