// Package persona provides investment personas and preference learning.
package persona

import (
	"time"
)

// Recipe is a named set of tag-based scoring rules representing one
// investor's thesis. Tag sets and curated weights come from
// configuration or user-authored setup; only weight learning mutates
// engine state afterwards.
type Recipe struct {
	ID       string             `json:"id"`
	Name     string             `json:"name"`
	Positive []string           `json:"positive_tags"`
	Negative []string           `json:"negative_tags"`
	RedFlags []string           `json:"red_flag_tags"`
	Weights  map[string]float64 `json:"weights"` // Curated, roughly [-1,1]
}

// LearnedWeight is a per-tag weight derived purely from accumulated
// like/dislike counts. Invariant:
//
//	Weight == (LikeCount - DislikeCount) / max(LikeCount + DislikeCount, 1)
type LearnedWeight struct {
	PersonaID    string    `json:"persona_id"`
	Tag          string    `json:"tag"`
	Weight       float64   `json:"weight"`
	LikeCount    int       `json:"like_count"`
	DislikeCount int       `json:"dislike_count"`
	LastUpdated  time.Time `json:"last_updated"`
}

// recompute re-derives Weight from the counts.
func (w *LearnedWeight) recompute() {
	total := w.LikeCount + w.DislikeCount
	if total < 1 {
		total = 1
	}
	w.Weight = float64(w.LikeCount-w.DislikeCount) / float64(total)
}

// Label is the qualitative band a score falls into.
type Label string

const (
	LabelStrongPass Label = "strong_pass"
	LabelSoftPass   Label = "soft_pass"
	LabelBorderline Label = "borderline"
	LabelPass       Label = "pass"
)

// MatchResult is an explainable 0-100 estimate of candidate fit,
// derived on demand and never stored.
type MatchResult struct {
	Score   int      `json:"score"`
	Label   Label    `json:"label"`
	Reasons []string `json:"reasons"`
}

// Thresholds configure the label bands.
type Thresholds struct {
	StrongPass int
	SoftPass   int
	Borderline int
}

// DefaultThresholds returns the bands every caller in this system uses.
func DefaultThresholds() Thresholds {
	return Thresholds{StrongPass: 80, SoftPass: 60, Borderline: 40}
}

// label maps a score into its band.
func (t Thresholds) label(score int) Label {
	switch {
	case score >= t.StrongPass:
		return LabelStrongPass
	case score >= t.SoftPass:
		return LabelSoftPass
	case score >= t.Borderline:
		return LabelBorderline
	default:
		return LabelPass
	}
}
