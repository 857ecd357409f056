// Package tags derives normalized feature tags from candidate profile
// text using rule-based pattern matching.
package tags

import (
	"regexp"
	"strings"
)

// TagPattern represents a pattern for rule-based tag extraction.
type TagPattern struct {
	Tag        string
	Category   string // industry, seniority, region, trait
	Keywords   []string
	Regex      *regexp.Regexp
	Confidence float64
}

// Matches checks if the pattern matches the given text.
func (p *TagPattern) Matches(text string) bool {
	t := strings.ToLower(text)

	// Check keywords
	if len(p.Keywords) > 0 {
		matchCount := 0
		for _, kw := range p.Keywords {
			if strings.Contains(t, strings.ToLower(kw)) {
				matchCount++
			}
		}
		if matchCount == 0 {
			return false
		}
	}

	// Check regex if present
	if p.Regex != nil {
		return p.Regex.MatchString(t)
	}

	return true
}

// defaultPatterns returns the default extraction patterns.
func defaultPatterns() []*TagPattern {
	return []*TagPattern{
		// ============================================================
		// SENIORITY PATTERNS
		// ============================================================
		{
			Tag:        "serial_founder",
			Category:   "seniority",
			Keywords:   []string{"founder", "founded", "co-founder"},
			Regex:      regexp.MustCompile(`(serial founder|second.time founder|(founded|co.founded).*(two|three|2|3|\d+).*(compan|startup))`),
			Confidence: 0.95,
		},
		{
			Tag:        "first_time_founder",
			Category:   "seniority",
			Keywords:   []string{"founder", "first"},
			Regex:      regexp.MustCompile(`first.time founder`),
			Confidence: 0.9,
		},
		{
			Tag:        "ex_faang",
			Category:   "seniority",
			Keywords:   []string{"google", "meta", "facebook", "amazon", "apple", "netflix", "microsoft"},
			Regex:      regexp.MustCompile(`(ex.|former |previously at |alumn\w* of )?(google|meta|facebook|amazon|apple|netflix|microsoft)`),
			Confidence: 0.85,
		},
		{
			Tag:        "technical_founder",
			Category:   "seniority",
			Keywords:   []string{"cto", "engineer", "technical", "phd"},
			Regex:      regexp.MustCompile(`(cto|chief technolog|staff engineer|principal engineer|phd)`),
			Confidence: 0.85,
		},
		{
			Tag:        "solo_founder",
			Category:   "seniority",
			Keywords:   []string{"solo", "sole founder", "single founder"},
			Regex:      regexp.MustCompile(`(solo|sole|single) founder`),
			Confidence: 0.9,
		},

		// ============================================================
		// INDUSTRY PATTERNS
		// ============================================================
		{
			Tag:        "ai_ml",
			Category:   "industry",
			Keywords:   []string{"ai", "machine learning", "ml", "llm", "deep learning"},
			Regex:      regexp.MustCompile(`\b(ai|ml|llm)\b|machine learning|deep learning|artificial intelligence`),
			Confidence: 0.9,
		},
		{
			Tag:        "fintech",
			Category:   "industry",
			Keywords:   []string{"fintech", "payments", "banking", "lending"},
			Regex:      regexp.MustCompile(`(fintech|payment|banking|lending|neobank)`),
			Confidence: 0.9,
		},
		{
			Tag:        "healthtech",
			Category:   "industry",
			Keywords:   []string{"health", "medical", "biotech", "clinical"},
			Regex:      regexp.MustCompile(`(healthtech|health care|healthcare|medical|biotech|clinical)`),
			Confidence: 0.9,
		},
		{
			Tag:        "saas_b2b",
			Category:   "industry",
			Keywords:   []string{"saas", "b2b", "enterprise"},
			Regex:      regexp.MustCompile(`(saas|b2b|enterprise software)`),
			Confidence: 0.85,
		},
		{
			Tag:        "consumer",
			Category:   "industry",
			Keywords:   []string{"consumer", "b2c", "marketplace", "social"},
			Regex:      regexp.MustCompile(`(consumer|b2c|marketplace|social app)`),
			Confidence: 0.8,
		},
		{
			Tag:        "crypto",
			Category:   "industry",
			Keywords:   []string{"crypto", "blockchain", "web3", "token"},
			Regex:      regexp.MustCompile(`(crypto|blockchain|web3|defi|token)`),
			Confidence: 0.9,
		},
		{
			Tag:        "climate",
			Category:   "industry",
			Keywords:   []string{"climate", "carbon", "energy", "sustainability"},
			Regex:      regexp.MustCompile(`(climate|carbon|clean energy|renewable|sustainab)`),
			Confidence: 0.85,
		},

		// ============================================================
		// REGION PATTERNS
		// ============================================================
		{
			Tag:        "us_based",
			Category:   "region",
			Keywords:   []string{"san francisco", "new york", "bay area", "united states", "boston", "austin"},
			Regex:      regexp.MustCompile(`(san francisco|new york|bay area|united states|boston|austin|seattle|\busa?\b)`),
			Confidence: 0.85,
		},
		{
			Tag:        "europe_based",
			Category:   "region",
			Keywords:   []string{"london", "berlin", "paris", "amsterdam", "europe"},
			Regex:      regexp.MustCompile(`(london|berlin|paris|amsterdam|stockholm|europe)`),
			Confidence: 0.85,
		},
		{
			Tag:        "asia_based",
			Category:   "region",
			Keywords:   []string{"singapore", "bangalore", "tokyo", "asia", "india"},
			Regex:      regexp.MustCompile(`(singapore|bangalore|bengaluru|tokyo|jakarta|india|asia)`),
			Confidence: 0.85,
		},

		// ============================================================
		// TRACTION / TRAIT PATTERNS
		// ============================================================
		{
			Tag:        "revenue_positive",
			Category:   "trait",
			Keywords:   []string{"revenue", "arr", "mrr", "profitable"},
			Regex:      regexp.MustCompile(`(\$\d+[km]?\s*(arr|mrr)|revenue|profitable)`),
			Confidence: 0.85,
		},
		{
			Tag:        "venture_backed",
			Category:   "trait",
			Keywords:   []string{"raised", "seed", "series", "funding"},
			Regex:      regexp.MustCompile(`(raised|seed round|series [a-c]|backed by)`),
			Confidence: 0.85,
		},
		{
			Tag:        "pre_product",
			Category:   "trait",
			Keywords:   []string{"idea stage", "pre-product", "stealth"},
			Regex:      regexp.MustCompile(`(idea stage|pre.product|pre.launch|stealth)`),
			Confidence: 0.85,
		},
		{
			Tag:        "no_moat",
			Category:   "trait",
			Keywords:   []string{"wrapper", "no moat", "thin layer"},
			Regex:      regexp.MustCompile(`((gpt|llm|api) wrapper|no (moat|defensib))`),
			Confidence: 0.8,
		},
	}
}
