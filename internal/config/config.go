package config

import (
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	Port string

	// Semantic extraction API
	SemanticAPIKey  string
	SemanticBaseURL string

	// Rule proposal LLM
	ProposerAPIKey  string
	ProposerModel   string
	ProposerBaseURL string

	// Paths
	OutputDir string
	CacheDir  string
	DBPath    string
	RulesPath string

	// Collection stored documents are filed under.
	Collection string

	// Aligner thresholds. Defaults are the values the built-in rules
	// were tuned against.
	BBoxMargin     float64
	FuzzyThreshold float64
	GrowthLimit    float64
}

func Load() Config {
	return Config{
		Port: envOr("PORT", "8091"),

		SemanticAPIKey:  os.Getenv("SEMANTIC_API_KEY"),
		SemanticBaseURL: envOr("SEMANTIC_BASE_URL", "https://api.cloud.llamaindex.ai"),

		ProposerAPIKey:  os.Getenv("OPENAI_API_KEY"),
		ProposerModel:   envOr("PROPOSER_MODEL", "gpt-4o"),
		ProposerBaseURL: envOr("PROPOSER_BASE_URL", "https://api.openai.com/v1"),

		OutputDir: envOr("OUTPUT_DIR", "output"),
		CacheDir:  envOr("CACHE_DIR", ".cache"),
		DBPath:    envOr("DB_PATH", "planmirror.db"),
		RulesPath: os.Getenv("RULES_PATH"),

		Collection: envOr("COLLECTION_NAME", "Documents"),

		BBoxMargin:     envFloat("ALIGN_BBOX_MARGIN", 5.0),
		FuzzyThreshold: envFloat("ALIGN_FUZZY_THRESHOLD", 0.85),
		GrowthLimit:    envFloat("ALIGN_GROWTH_LIMIT", 1.5),
	}
}

func (c Config) Validate() error {
	if c.SemanticAPIKey == "" {
		return fmt.Errorf("SEMANTIC_API_KEY is required")
	}
	if c.FuzzyThreshold <= 0 || c.FuzzyThreshold > 1 {
		return fmt.Errorf("ALIGN_FUZZY_THRESHOLD must be in (0, 1]")
	}
	if c.BBoxMargin < 0 {
		return fmt.Errorf("ALIGN_BBOX_MARGIN must be >= 0")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
