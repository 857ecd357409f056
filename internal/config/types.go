// Package config provides configuration types for Scout.
package config

// Config represents the main Scout configuration.
type Config struct {
	Model        ModelConfig        `toml:"model"`
	Engine       EngineConfig       `toml:"engine"`
	Orchestrator OrchestratorConfig `toml:"orchestrator"`
	Scoring      ScoringConfig      `toml:"scoring"`
	Memory       MemoryConfig       `toml:"memory"`
	Paths        PathsConfig        `toml:"paths"`
}

// ModelConfig configures the on-device model artifact and runtime knobs.
type ModelConfig struct {
	Artifact    string `toml:"artifact"`     // Artifact identifier, e.g. "gemma-3n-e2b"
	ArtifactURL string `toml:"artifact_url"` // Download source for the artifact
	ModelsDir   string `toml:"models_dir"`
	ContextSize int    `toml:"context_size"`
	Threads     int    `toml:"threads"`
	EmbedDim    int    `toml:"embed_dim"` // Dimension of embedding vectors
}

// EngineConfig configures the inference backend.
type EngineConfig struct {
	Backend        string  `toml:"backend"`  // "llama" or "stub"
	BaseURL        string  `toml:"base_url"` // llama.cpp server endpoint
	TimeoutSec     int     `toml:"timeout_sec"`
	Temperature    float64 `toml:"temperature"`
	MaxTokens      int     `toml:"max_tokens"`
	EmbedCacheSize int     `toml:"embed_cache_size"`
}

// OrchestratorConfig configures the tool-calling loop.
type OrchestratorConfig struct {
	MaxSteps int `toml:"max_steps"` // Total model calls per question
}

// ScoringConfig holds the match-label thresholds.
// These are defaults every caller uses, not hard-coded business law.
type ScoringConfig struct {
	StrongPass int `toml:"strong_pass"`
	SoftPass   int `toml:"soft_pass"`
	Borderline int `toml:"borderline"`
}

// MemoryConfig bounds the in-memory observation logs.
type MemoryConfig struct {
	InteractionCap  int `toml:"interaction_cap"`
	ConversationCap int `toml:"conversation_cap"`
}

// PathsConfig contains filesystem locations.
type PathsConfig struct {
	DataDir string `toml:"data_dir"`
	DB      string `toml:"db"`
}
