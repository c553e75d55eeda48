// Package config assembles gofr-iq's runtime configuration from an
// optional YAML file, then environment variable overrides, matching the
// teacher's struct-of-structs + os.Getenv override pattern.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds all gofr-iq configuration.
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	LLM     LLMConfig     `yaml:"llm"`
	Graph   GraphConfig   `yaml:"graph"`
	Vector  VectorConfig  `yaml:"vector"`
	Ranking RankingConfig `yaml:"ranking"`
	Feed    FeedConfig    `yaml:"feed"`
	Auth    AuthConfig    `yaml:"auth"`
	Logging LoggingConfig `yaml:"logging"`
	Server  ServerConfig  `yaml:"server"`
}

// StorageConfig locates the document/source file tree (spec.md §3, §6).
type StorageConfig struct {
	// Dir is the root under which documents/<group>/<date>/<id>.json and
	// sources/<group>/<id>.json live.
	Dir string `yaml:"dir"`
}

// GraphConfig locates the GraphIndex backing store. The teacher's
// Neo4j-shaped env vars (GOFR_IQ_NEO4J_URI/_USER/_PASSWORD) are accepted
// for interface compatibility with spec.md §6 but reinterpreted: this
// implementation backs GraphIndex with embedded SQLite (see DESIGN.md),
// so URI is treated as a filesystem path when set and user/password are
// accepted but unused.
type GraphConfig struct {
	DBPath   string `yaml:"db_path"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// VectorConfig locates the VectorIndex backing store. Like GraphConfig,
// the ChromaDB-shaped host/port env vars are accepted into
// ExternalHost/ExternalPort but not used: VectorIndex always opens
// embedded SQLite at DBPath (spec.md §6: "absence ⇒ embedded mode (path)
// or ephemeral (neither set)").
type VectorConfig struct {
	DBPath              string  `yaml:"db_path"`
	ExternalHost        string  `yaml:"external_host"`
	ExternalPort        int     `yaml:"external_port"`
	ChunkSize           int     `yaml:"chunk_size"`
	ChunkOverlap        int     `yaml:"chunk_overlap"`
	MinChunkSize        int     `yaml:"min_chunk_size"`
	ActivationThreshold float64 `yaml:"activation_threshold"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
}

// LLMConfig configures the OpenRouter-compatible extraction/embedding
// client (spec.md §4.5, §6).
type LLMConfig struct {
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url"`
	Model          string `yaml:"model"`
	EmbeddingModel string `yaml:"embedding_model"`
	Timeout        string `yaml:"timeout"`
	MaxRetries     int    `yaml:"max_retries"`
}

// RankingConfig carries QueryService's default scoring weights
// (spec.md §4.10: final = w_sem*similarity + w_trust*source_boost +
// w_rec*recency + w_graph*graph_bonus) which GOFR_IQ_CLIENT_NEWS_WEIGHT_*
// overrides (re-normalized to sum to 1 after any override).
type RankingConfig struct {
	SemanticWeight         float64 `yaml:"semantic_weight"`
	TrustWeight            float64 `yaml:"trust_weight"`
	RecencyWeight          float64 `yaml:"recency_weight"`
	GraphWeight            float64 `yaml:"graph_weight"`
	RecencyHalfLifeMinutes float64 `yaml:"recency_half_life_minutes"`
}

// FeedConfig carries a default opportunity bias lambda for
// AvatarFeedService (spec.md §4.11). It is validated at load time;
// internal/feed derives its lambda-dependent base weights from the bias
// passed with each feed request, not from this field.
type FeedConfig struct {
	OpportunityBias float64 `yaml:"opportunity_bias"` // lambda, in [0,1]
}

// AuthConfig carries the group-token signing secret (spec.md §4.13).
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// LoggingConfig configures the zap operational logger
// (SPEC_FULL.md "Logging").
type LoggingConfig struct {
	Level    string `yaml:"level"`
	Encoding string `yaml:"encoding"` // "json" or "console"
}

// ServerConfig configures the tool-call HTTP transport
// (SPEC_FULL.md "CLI / process entrypoint").
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// DefaultConfig returns the configuration spec.md's defaults describe.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Dir: "data/gofr-iq",
		},
		LLM: LLMConfig{
			BaseURL:        "https://openrouter.ai/api/v1",
			Model:          "openai/gpt-4o-mini",
			EmbeddingModel: "openai/text-embedding-3-small",
			Timeout:        "60s",
			MaxRetries:     3,
		},
		Graph: GraphConfig{
			DBPath: "data/gofr-iq/graph.db",
		},
		Vector: VectorConfig{
			DBPath:              "data/gofr-iq/vector.db",
			ChunkSize:           1000,
			ChunkOverlap:        200,
			MinChunkSize:        100,
			ActivationThreshold: 0.0,
			SimilarityThreshold: 0.0,
		},
		Ranking: RankingConfig{
			SemanticWeight:         0.6,
			TrustWeight:            0.2,
			RecencyWeight:          0.1,
			GraphWeight:            0.1,
			RecencyHalfLifeMinutes: 60,
		},
		Feed: FeedConfig{
			OpportunityBias: 0.5,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Encoding: "json",
		},
		Server: ServerConfig{
			Addr: ":8090",
		},
	}
}

// Load reads path (if present) over DefaultConfig(), then applies
// environment overrides. Loading is side-effect-free: the returned
// Config is a value, never a package-level global.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks cross-field invariants DefaultConfig alone can't enforce.
func (c *Config) Validate() error {
	if c.Storage.Dir == "" {
		return fmt.Errorf("storage.dir must not be empty")
	}
	sum := c.Ranking.SemanticWeight + c.Ranking.TrustWeight + c.Ranking.RecencyWeight + c.Ranking.GraphWeight
	if sum < 0.99 || sum > 1.01 {
		return fmt.Errorf("ranking weights must sum to 1 (±0.01), got %f", sum)
	}
	if c.Feed.OpportunityBias < 0 || c.Feed.OpportunityBias > 1 {
		return fmt.Errorf("feed.opportunity_bias must be in [0,1], got %f", c.Feed.OpportunityBias)
	}
	if c.Vector.ActivationThreshold < 0 || c.Vector.ActivationThreshold > 1 {
		return fmt.Errorf("vector.activation_threshold must be in [0,1]")
	}
	if c.Vector.SimilarityThreshold < 0 || c.Vector.SimilarityThreshold > 1 {
		return fmt.Errorf("vector.similarity_threshold must be in [0,1]")
	}
	return nil
}
