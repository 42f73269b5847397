// Package config provides configuration management for socsim. Settings
// load from environment variables with the SOCSIM_ prefix and carry
// sensible defaults; CLI flags may override individual fields before
// Validate runs. The fully resolved configuration is serialized to YAML
// into the run directory for reproducibility.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all settings for one simulation run.
type Config struct {
	Run     RunConfig     `yaml:"run"`
	Network NetworkConfig `yaml:"network"`
	Ranking RankingConfig `yaml:"ranking"`
	LLM     LLMConfig     `yaml:"llm"`
}

// RunConfig drives the step loop and persistence.
type RunConfig struct {
	Seed              int64  `yaml:"seed"`               // Random seed (default: 42)
	Steps             int    `yaml:"steps"`              // Number of simulation steps (default: 100)
	Agents            int    `yaml:"agents"`             // Number of agents (default: 16)
	TopK              int    `yaml:"top_k"`              // Candidate cap per user; 0 uses the agent read amount (default: 5)
	SessionActivation bool   `yaml:"session_activation"` // Per-step Bernoulli session draw (default: false)
	Window            int    `yaml:"window"`             // Feed window in steps before ranking; 0 = whole feed
	SnapshotEvery     int    `yaml:"snapshot_every"`     // Per-step snapshot cadence; 0 = final only
	Workers           int    `yaml:"workers"`            // Worker pool size; 0 = 2x GOMAXPROCS
	OutputDir         string `yaml:"output_dir"`         // Run directory (default: ./runs)
}

// NetworkConfig selects the social graph topology.
type NetworkConfig struct {
	Topology    string  `yaml:"topology"`    // complete, cycle, star, random_regular, random_sparse, watts_strogatz, barabasi_albert
	Degree      int     `yaml:"degree"`      // Node degree for regular/ring topologies (default: 4)
	Probability float64 `yaml:"probability"` // Edge/rewiring probability (default: 0.1)
	Attachment  int     `yaml:"attachment"`  // Barabasi-Albert edges per new node (default: 2)
}

// RankingConfig selects and tunes the ranking strategy.
type RankingConfig struct {
	Strategy         string  `yaml:"strategy"`          // random, popularity, similarity, social_proof (default: popularity)
	NoiseLow         float64 `yaml:"noise_low"`         // Noise lower bound (default: 0.8)
	NoiseHigh        float64 `yaml:"noise_high"`        // Noise upper bound (default: 1.2)
	DecayMinimum     float64 `yaml:"decay_minimum"`     // Decay floor (default: 0.2)
	DecayWindow      float64 `yaml:"decay_window"`      // Decay window in steps (default: 3)
	Persistence      int     `yaml:"persistence"`       // Recency window in steps; 0 disables (default: 144)
	WeightNetwork    float64 `yaml:"weight_network"`    // Global signal weight (default: 1.0)
	WeightIndividual float64 `yaml:"weight_individual"` // Per-user signal weight (default: 1.0)
	SimilarityRecent int     `yaml:"similarity_recent"` // Recent own posts used by the similarity strategy (default: 5)
}

// LLMConfig configures the inference backend. The API key is excluded
// from the YAML dump.
type LLMConfig struct {
	APIKey            string  `yaml:"-"`
	Model             string  `yaml:"model"`        // Chat model name
	GenerateURL       string  `yaml:"generate_url"` // Chat-completions endpoint
	EmbedURL          string  `yaml:"embed_url"`    // Feature-extraction endpoint
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	MaxRetries        int     `yaml:"max_retries"`
}

// Load builds configuration from environment variables with defaults.
// All variables use the SOCSIM_ prefix.
func Load() *Config {
	return &Config{
		Run: RunConfig{
			Seed:              int64(getEnvInt("SOCSIM_SEED", 42)),
			Steps:             getEnvInt("SOCSIM_STEPS", 100),
			Agents:            getEnvInt("SOCSIM_AGENTS", 16),
			TopK:              getEnvInt("SOCSIM_TOP_K", 5),
			SessionActivation: getEnvBool("SOCSIM_SESSION_ACTIVATION", false),
			Window:            getEnvInt("SOCSIM_WINDOW", 0),
			SnapshotEvery:     getEnvInt("SOCSIM_SNAPSHOT_EVERY", 0),
			Workers:           getEnvInt("SOCSIM_WORKERS", 0),
			OutputDir:         getEnv("SOCSIM_OUTPUT_DIR", "./runs"),
		},
		Network: NetworkConfig{
			Topology:    getEnv("SOCSIM_TOPOLOGY", "complete"),
			Degree:      getEnvInt("SOCSIM_DEGREE", 4),
			Probability: getEnvFloat("SOCSIM_PROBABILITY", 0.1),
			Attachment:  getEnvInt("SOCSIM_ATTACHMENT", 2),
		},
		Ranking: RankingConfig{
			Strategy:         getEnv("SOCSIM_STRATEGY", "popularity"),
			NoiseLow:         getEnvFloat("SOCSIM_NOISE_LOW", 0.8),
			NoiseHigh:        getEnvFloat("SOCSIM_NOISE_HIGH", 1.2),
			DecayMinimum:     getEnvFloat("SOCSIM_DECAY_MINIMUM", 0.2),
			DecayWindow:      getEnvFloat("SOCSIM_DECAY_WINDOW", 3),
			Persistence:      getEnvInt("SOCSIM_PERSISTENCE", 144),
			WeightNetwork:    getEnvFloat("SOCSIM_WEIGHT_NETWORK", 1.0),
			WeightIndividual: getEnvFloat("SOCSIM_WEIGHT_INDIVIDUAL", 1.0),
			SimilarityRecent: getEnvInt("SOCSIM_SIMILARITY_RECENT", 5),
		},
		LLM: LLMConfig{
			APIKey:            getEnv("SOCSIM_API_KEY", ""),
			Model:             getEnv("SOCSIM_MODEL", ""),
			GenerateURL:       getEnv("SOCSIM_GENERATE_URL", ""),
			EmbedURL:          getEnv("SOCSIM_EMBED_URL", ""),
			RequestsPerSecond: getEnvFloat("SOCSIM_REQUESTS_PER_SECOND", 0),
			MaxRetries:        getEnvInt("SOCSIM_MAX_RETRIES", 3),
		},
	}
}

// validStrategies and validTopologies gate Validate.
var validStrategies = map[string]bool{
	"random": true, "popularity": true, "similarity": true, "social_proof": true,
}

var validTopologies = map[string]bool{
	"complete": true, "cycle": true, "star": true, "random_regular": true,
	"random_sparse": true, "watts_strogatz": true, "barabasi_albert": true,
}

// Validate checks the configuration before any step runs. Failures here
// are fatal at startup.
func (c *Config) Validate() error {
	if c.Run.Steps <= 0 {
		return fmt.Errorf("config: steps must be positive, got %d", c.Run.Steps)
	}
	if c.Run.Agents <= 0 {
		return fmt.Errorf("config: agents must be positive, got %d", c.Run.Agents)
	}
	if c.Run.OutputDir == "" {
		return fmt.Errorf("config: output directory is required")
	}
	if !validTopologies[c.Network.Topology] {
		return fmt.Errorf("config: unknown topology %q", c.Network.Topology)
	}
	if !validStrategies[c.Ranking.Strategy] {
		return fmt.Errorf("config: unknown strategy %q", c.Ranking.Strategy)
	}
	if c.Ranking.NoiseLow > c.Ranking.NoiseHigh {
		return fmt.Errorf("config: noise bounds inverted: low %v > high %v",
			c.Ranking.NoiseLow, c.Ranking.NoiseHigh)
	}
	if c.Ranking.DecayWindow <= 0 {
		return fmt.Errorf("config: decay window must be positive, got %v", c.Ranking.DecayWindow)
	}
	if c.Ranking.Strategy == "similarity" && c.LLM.EmbedURL == "" {
		return fmt.Errorf("config: similarity strategy requires SOCSIM_EMBED_URL")
	}
	return nil
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default value.
// If the environment variable exists but cannot be parsed as an integer,
// it returns the default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat retrieves a float environment variable or returns a default value.
// If the environment variable exists but cannot be parsed as a float,
// it returns the default value.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns a default value.
// It recognizes "true", "1", "yes" as true and "false", "0", "no" as false (case-insensitive).
// If the environment variable exists but cannot be parsed as a boolean,
// it returns the default value.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch value {
		case "true", "1", "yes", "True", "TRUE", "Yes", "YES":
			return true
		case "false", "0", "no", "False", "FALSE", "No", "NO":
			return false
		}
	}
	return defaultValue
}
