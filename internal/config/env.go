package config

import (
	"os"
	"strconv"
)

// applyEnvOverrides applies GOFR_IQ_* environment variable overrides
// (spec.md §6), mirroring the teacher's os.Getenv priority-override
// pattern in internal/config/config.go.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("GOFR_IQ_STORAGE_DIR"); v != "" {
		c.Storage.Dir = v
	}

	if v := os.Getenv("GOFR_IQ_NEO4J_URI"); v != "" {
		c.Graph.DBPath = v
	}
	if v := os.Getenv("GOFR_IQ_NEO4J_USER"); v != "" {
		c.Graph.User = v
	}
	if v := os.Getenv("GOFR_IQ_NEO4J_PASSWORD"); v != "" {
		c.Graph.Password = v
	}

	if v := os.Getenv("GOFR_IQ_CHROMADB_HOST"); v != "" {
		c.Vector.ExternalHost = v
	}
	if v := os.Getenv("GOFR_IQ_CHROMADB_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Vector.ExternalPort = n
		}
	}

	if v := os.Getenv("GOFR_IQ_OPENROUTER_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("GOFR_IQ_OPENROUTER_BASE_URL"); v != "" {
		c.LLM.BaseURL = v
	}
	if v := os.Getenv("GOFR_IQ_OPENROUTER_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("GOFR_IQ_OPENROUTER_EMBEDDING_MODEL"); v != "" {
		c.LLM.EmbeddingModel = v
	}
	if v := os.Getenv("GOFR_IQ_OPENROUTER_TIMEOUT"); v != "" {
		c.LLM.Timeout = v
	}
	if v := os.Getenv("GOFR_IQ_OPENROUTER_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.LLM.MaxRetries = n
		}
	}

	if v := os.Getenv("GOFR_IQ_JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}

	c.applyWeightOverrides()

	if v := os.Getenv("GOFR_IQ_VECTOR_ACTIVATION_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Vector.ActivationThreshold = clamp01(f)
		}
	}
	if v := os.Getenv("GOFR_IQ_VECTOR_SIMILARITY_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Vector.SimilarityThreshold = clamp01(f)
		}
	}
}

// applyWeightOverrides reads GOFR_IQ_CLIENT_NEWS_WEIGHT_{SEMANTIC,TRUST,
// RECENCY,GRAPH}; when any is set the whole weight vector is
// re-normalized to sum to 1 (spec.md §6). GOFR_IQ_CLIENT_NEWS_WEIGHT_IMPACT
// is accepted as an alias for the TRUST slot: spec.md §6 names the slot
// IMPACT, but RankingConfig carries it as TrustWeight (DESIGN.md's
// w_sem/w_trust/w_rec/w_graph reconciliation) — IMPACT wins if both the
// alias and the canonical key are set, so the spec-literal name is never
// silently dropped.
func (c *Config) applyWeightOverrides() {
	w := [4]float64{
		c.Ranking.SemanticWeight,
		c.Ranking.TrustWeight,
		c.Ranking.RecencyWeight,
		c.Ranking.GraphWeight,
	}
	keys := [4]string{
		"GOFR_IQ_CLIENT_NEWS_WEIGHT_SEMANTIC",
		"GOFR_IQ_CLIENT_NEWS_WEIGHT_TRUST",
		"GOFR_IQ_CLIENT_NEWS_WEIGHT_RECENCY",
		"GOFR_IQ_CLIENT_NEWS_WEIGHT_GRAPH",
	}
	changed := false
	for i, k := range keys {
		if v := os.Getenv(k); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				w[i] = f
				changed = true
			}
		}
	}
	if v := os.Getenv("GOFR_IQ_CLIENT_NEWS_WEIGHT_IMPACT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			w[1] = f
			changed = true
		}
	}
	if !changed {
		return
	}
	var sum float64
	for _, v := range w {
		sum += v
	}
	if sum <= 0 {
		return
	}
	c.Ranking.SemanticWeight = w[0] / sum
	c.Ranking.TrustWeight = w[1] / sum
	c.Ranking.RecencyWeight = w[2] / sum
	c.Ranking.GraphWeight = w[3] / sum
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
