package tags

import (
	"sort"
	"strings"
)

// Match is one extracted tag with its source category and confidence.
type Match struct {
	Tag        string  `json:"tag"`
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}

// Extractor derives feature tags from free-text candidate profiles.
// Extraction is rule-based: instant, deterministic, no model call.
type Extractor struct {
	patterns      []*TagPattern
	minConfidence float64
}

// Config for extractor.
type Config struct {
	MinConfidence float64
	Extra         []*TagPattern // caller-supplied patterns, checked after the defaults
}

// NewExtractor creates a tag extractor.
func NewExtractor(cfg *Config) *Extractor {
	if cfg == nil {
		cfg = &Config{MinConfidence: 0.7}
	}
	patterns := defaultPatterns()
	patterns = append(patterns, cfg.Extra...)
	minConfidence := cfg.MinConfidence
	if minConfidence == 0 {
		minConfidence = 0.7
	}
	return &Extractor{
		patterns:      patterns,
		minConfidence: minConfidence,
	}
}

// Extract returns every matching tag for the text, deduplicated,
// highest confidence first.
func (e *Extractor) Extract(text string) []Match {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	best := make(map[string]Match)
	for _, p := range e.patterns {
		if p.Confidence < e.minConfidence {
			continue
		}
		if !p.Matches(text) {
			continue
		}
		if cur, ok := best[p.Tag]; !ok || p.Confidence > cur.Confidence {
			best[p.Tag] = Match{Tag: p.Tag, Category: p.Category, Confidence: p.Confidence}
		}
	}

	out := make([]Match, 0, len(best))
	for _, m := range best {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].Tag < out[j].Tag
	})
	return out
}

// ExtractTags returns just the tag names, for feeding straight into
// scoring and feedback recording.
func (e *Extractor) ExtractTags(text string) []string {
	matches := e.Extract(text)
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.Tag
	}
	return out
}

// Snapshot groups extracted tags by category, the shape interaction
// records carry (industry, seniority, region, traits).
func (e *Extractor) Snapshot(text string) map[string]any {
	matches := e.Extract(text)
	if len(matches) == 0 {
		return nil
	}
	byCategory := make(map[string][]string)
	all := make([]string, 0, len(matches))
	for _, m := range matches {
		byCategory[m.Category] = append(byCategory[m.Category], m.Tag)
		all = append(all, m.Tag)
	}
	snapshot := map[string]any{"tags": all}
	for category, names := range byCategory {
		snapshot[category] = names
	}
	return snapshot
}
