package memory

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultInteractionCap bounds the recent-interaction log.
const DefaultInteractionCap = 100

// Interaction actions.
const (
	ActionLiked       = "liked"
	ActionDisliked    = "disliked"
	ActionScored      = "scored"
	ActionShortlisted = "shortlisted"
	ActionViewed      = "viewed"
)

// Record is one user interaction with a candidate entity. Snapshot
// carries whatever the caller wants recalled later (tags, score).
type Record struct {
	ID         string         `json:"id"`
	EntityID   string         `json:"entity_id"`
	EntityType string         `json:"entity_type"` // "person" or "company"
	Action     string         `json:"action"`
	Snapshot   map[string]any `json:"snapshot,omitempty"`
	At         time.Time      `json:"at"`
}

// Interactions is a capped most-recent-N log of Records. The LRU cache
// gives oldest-first eviction; the store, when present, keeps the full
// window across restarts.
type Interactions struct {
	cache *lru.Cache[string, *Record]
	cap   int
	store *Store
}

// NewInteractions builds a log with the given capacity (<=0 uses the
// default). Pass a nil store for in-memory-only recall.
func NewInteractions(capacity int, store *Store) (*Interactions, error) {
	if capacity <= 0 {
		capacity = DefaultInteractionCap
	}
	cache, err := lru.New[string, *Record](capacity)
	if err != nil {
		return nil, err
	}
	in := &Interactions{cache: cache, cap: capacity, store: store}

	if store != nil {
		recent, err := store.RecentInteractions(context.Background(), capacity)
		if err != nil {
			return nil, err
		}
		// RecentInteractions is newest-first; replay oldest-first so
		// cache order matches insertion order.
		for i := len(recent) - 1; i >= 0; i-- {
			cache.Add(recent[i].ID, recent[i])
		}
	}
	return in, nil
}

// Add records one interaction, assigning an id and timestamp when
// missing, and persists it when a store is configured.
func (in *Interactions) Add(ctx context.Context, rec *Record) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.At.IsZero() {
		rec.At = time.Now().UTC()
	}
	in.cache.Add(rec.ID, rec)

	if in.store == nil {
		return nil
	}
	if err := in.store.AppendInteraction(ctx, rec); err != nil {
		return err
	}
	if err := in.store.PruneInteractions(ctx, in.cap); err != nil {
		log.Printf("Warning: failed to prune interaction history: %v", err)
	}
	return nil
}

// Recent returns up to limit records, newest first. limit <= 0 returns
// the whole window.
func (in *Interactions) Recent(limit int) []*Record {
	values := in.cache.Values() // oldest first
	out := make([]*Record, 0, len(values))
	for i := len(values) - 1; i >= 0; i-- {
		out = append(out, values[i])
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Len reports how many records are currently held.
func (in *Interactions) Len() int {
	return in.cache.Len()
}

// PreferenceSummary aggregates the window into prompt-ready lines.
// Returns "" when there is nothing to say.
func (in *Interactions) PreferenceSummary() string {
	records := in.cache.Values()
	if len(records) == 0 {
		return ""
	}

	likedTags := map[string]int{}
	dislikedTags := map[string]int{}
	var liked, disliked, scored int

	for _, rec := range records {
		switch rec.Action {
		case ActionLiked:
			liked++
			countTags(likedTags, rec)
		case ActionDisliked:
			disliked++
			countTags(dislikedTags, rec)
		case ActionScored:
			scored++
		}
	}

	var lines []string
	if liked+disliked > 0 {
		lines = append(lines, fmt.Sprintf("Recent feedback: %d liked, %d disliked.", liked, disliked))
	}
	if top := topTags(likedTags, 5); len(top) > 0 {
		lines = append(lines, "Frequently liked traits: "+strings.Join(top, ", ")+".")
	}
	if top := topTags(dislikedTags, 5); len(top) > 0 {
		lines = append(lines, "Frequently disliked traits: "+strings.Join(top, ", ")+".")
	}
	if len(lines) == 0 && scored > 0 {
		lines = append(lines, fmt.Sprintf("The user has scored %d candidates recently without giving feedback.", scored))
	}
	return strings.Join(lines, "\n")
}

// countTags pulls the "tags" field out of a snapshot, tolerating both
// []string and the []any json.Unmarshal produces.
func countTags(counts map[string]int, rec *Record) {
	raw, ok := rec.Snapshot["tags"]
	if !ok {
		return
	}
	switch tags := raw.(type) {
	case []string:
		for _, t := range tags {
			counts[t]++
		}
	case []any:
		for _, t := range tags {
			if s, ok := t.(string); ok {
				counts[s]++
			}
		}
	}
}

func topTags(counts map[string]int, limit int) []string {
	type entry struct {
		tag   string
		count int
	}
	entries := make([]entry, 0, len(counts))
	for tag, count := range counts {
		entries = append(entries, entry{tag, count})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count > entries[j].count
		}
		return entries[i].tag < entries[j].tag
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = fmt.Sprintf("%s (%dx)", e.tag, e.count)
	}
	return out
}
