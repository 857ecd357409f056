package tags

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleProfile = `Jordan Lee is a serial founder who previously founded two companies.
Ex-Google staff engineer, now building an AI platform for clinical trials in San Francisco.
Raised a $4M seed round led by Foundry.`

func TestExtractFindsProfileTags(t *testing.T) {
	e := NewExtractor(nil)
	tagNames := e.ExtractTags(sampleProfile)

	require.Contains(t, tagNames, "serial_founder")
	require.Contains(t, tagNames, "ex_faang")
	require.Contains(t, tagNames, "technical_founder")
	require.Contains(t, tagNames, "ai_ml")
	require.Contains(t, tagNames, "healthtech")
	require.Contains(t, tagNames, "us_based")
	require.Contains(t, tagNames, "venture_backed")
	require.NotContains(t, tagNames, "crypto")
	require.NotContains(t, tagNames, "solo_founder")
}

func TestExtractOrdersByConfidence(t *testing.T) {
	e := NewExtractor(nil)
	matches := e.Extract(sampleProfile)
	require.NotEmpty(t, matches)
	for i := 1; i < len(matches); i++ {
		require.GreaterOrEqual(t, matches[i-1].Confidence, matches[i].Confidence)
	}
	require.Equal(t, "serial_founder", matches[0].Tag)
}

func TestExtractDeduplicates(t *testing.T) {
	e := NewExtractor(nil)
	matches := e.Extract("crypto crypto blockchain web3 defi tokens")
	seen := map[string]bool{}
	for _, m := range matches {
		require.False(t, seen[m.Tag], "duplicate tag %s", m.Tag)
		seen[m.Tag] = true
	}
	require.True(t, seen["crypto"])
}

func TestExtractEmptyText(t *testing.T) {
	e := NewExtractor(nil)
	require.Nil(t, e.Extract(""))
	require.Nil(t, e.Extract("   \n\t"))
}

func TestExtractMinConfidenceFilters(t *testing.T) {
	strict := NewExtractor(&Config{MinConfidence: 0.9})
	tagNames := strict.ExtractTags(sampleProfile)
	// ex_faang sits at 0.85 and must be filtered out.
	require.NotContains(t, tagNames, "ex_faang")
	require.Contains(t, tagNames, "serial_founder")
}

func TestExtractCustomPattern(t *testing.T) {
	e := NewExtractor(&Config{
		MinConfidence: 0.7,
		Extra: []*TagPattern{{
			Tag:        "yc_alumni",
			Category:   "trait",
			Keywords:   []string{"y combinator", "yc"},
			Regex:      regexp.MustCompile(`(y combinator|yc [ws]\d{2})`),
			Confidence: 0.9,
		}},
	})
	tagNames := e.ExtractTags("Went through Y Combinator in the YC W23 batch.")
	require.Contains(t, tagNames, "yc_alumni")
}

func TestPatternKeywordsGateRegex(t *testing.T) {
	p := &TagPattern{
		Tag:      "fintech",
		Keywords: []string{"fintech", "payments"},
		Regex:    regexp.MustCompile(`(fintech|payment)`),
	}
	require.True(t, p.Matches("A Payments infrastructure startup"))
	require.False(t, p.Matches("A logistics startup"))
}

func TestSnapshotGroupsByCategory(t *testing.T) {
	e := NewExtractor(nil)
	snapshot := e.Snapshot(sampleProfile)
	require.NotNil(t, snapshot)

	all, ok := snapshot["tags"].([]string)
	require.True(t, ok)
	require.Contains(t, all, "serial_founder")

	seniority, ok := snapshot["seniority"].([]string)
	require.True(t, ok)
	require.Contains(t, seniority, "serial_founder")

	industry, ok := snapshot["industry"].([]string)
	require.True(t, ok)
	require.Contains(t, industry, "ai_ml")

	require.Nil(t, e.Snapshot("nothing relevant here"))
}
