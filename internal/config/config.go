// Package config handles Scout configuration loading and management.
package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Default returns the default configuration.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".scout")

	return &Config{
		Model: ModelConfig{
			Artifact:    "gemma-3n-e2b-q4",
			ArtifactURL: "",
			ModelsDir:   filepath.Join(dataDir, "models"),
			ContextSize: 4096,
			Threads:     4,
			EmbedDim:    768,
		},
		Engine: EngineConfig{
			Backend:        "llama",
			BaseURL:        "http://127.0.0.1:8080",
			TimeoutSec:     120,
			Temperature:    0.7,
			MaxTokens:      1024,
			EmbedCacheSize: 256,
		},
		Orchestrator: OrchestratorConfig{
			MaxSteps: 3,
		},
		Scoring: ScoringConfig{
			StrongPass: 80,
			SoftPass:   60,
			Borderline: 40,
		},
		Memory: MemoryConfig{
			InteractionCap:  100,
			ConversationCap: 20,
		},
		Paths: PathsConfig{
			DataDir: dataDir,
			DB:      filepath.Join(dataDir, "scout.db"),
		},
	}
}

// Load loads the configuration from the given path.
// If the file doesn't exist, returns defaults.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	// Try to read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// Config file doesn't exist, return defaults
			return cfg, nil
		}
		return nil, err
	}

	// Parse TOML
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	// Expand paths
	cfg = expandPaths(cfg)

	return cfg, nil
}

// Save saves the configuration to the given path.
func (c *Config) Save(configPath string) error {
	// Ensure directory exists
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	// Write TOML
	file, err := os.Create(configPath)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := toml.NewEncoder(file)
	return encoder.Encode(c)
}

// DBPath returns the path to the local database.
func (c *Config) DBPath() string {
	return c.Paths.DB
}

// ArtifactPath returns the on-disk location for the model artifact.
func (c *Config) ArtifactPath() string {
	return filepath.Join(c.Model.ModelsDir, c.Model.Artifact+".gguf")
}

// expandPaths expands ~ in paths.
func expandPaths(cfg *Config) *Config {
	homeDir, _ := os.UserHomeDir()

	expand := func(p string) string {
		if len(p) > 0 && p[0] == '~' {
			return filepath.Join(homeDir, p[1:])
		}
		return p
	}

	cfg.Paths.DataDir = expand(cfg.Paths.DataDir)
	cfg.Paths.DB = expand(cfg.Paths.DB)
	cfg.Model.ModelsDir = expand(cfg.Model.ModelsDir)

	return cfg
}
