// Package config loads the engine's single configuration record via
// viper, applying HEBBIAN_* environment overrides on top of an optional
// config file.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/hebbianmem/hebbianmem/internal/models"
)

// Config is the engine's single configuration record.
type Config struct {
	DBPath              string
	EmbedModel          string
	EmbedURL            string
	EmbedDimension      int
	MaxContextTokens    int
	MaxEntries          int
	SemanticWeight      float64
	ActivationWeight    float64
	DomainWeight        float64
	DecayDailyFactor    float64
	DecayPruneThreshold float64 // advisory; engine does not delete
	EmbeddingCacheTTL   time.Duration
}

// Default returns the engine's built-in configuration defaults.
func Default() *Config {
	return &Config{
		DBPath:              "~/.hebbianmem/memory.db",
		EmbedModel:          "nomic-embed-text",
		EmbedURL:            "http://localhost:11434",
		EmbedDimension:      768,
		MaxContextTokens:    800,
		MaxEntries:          30,
		SemanticWeight:      0.6,
		ActivationWeight:    0.3,
		DomainWeight:        0.1,
		DecayDailyFactor:    0.9995,
		DecayPruneThreshold: 0,
		EmbeddingCacheTTL:   5 * time.Minute,
	}
}

// Load reads configuration from configPath (if non-empty) and environment
// variables prefixed HEBBIAN_, falling back to Default() for anything
// unset. A malformed config file is reported as a ConfigInvalid error.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	d := Default()

	v.SetDefault("dbPath", d.DBPath)
	v.SetDefault("embedModel", d.EmbedModel)
	v.SetDefault("embedUrl", d.EmbedURL)
	v.SetDefault("embedDimension", d.EmbedDimension)
	v.SetDefault("maxContextTokens", d.MaxContextTokens)
	v.SetDefault("maxEntries", d.MaxEntries)
	v.SetDefault("semanticWeight", d.SemanticWeight)
	v.SetDefault("activationWeight", d.ActivationWeight)
	v.SetDefault("domainWeight", d.DomainWeight)
	v.SetDefault("decay.dailyFactor", d.DecayDailyFactor)
	v.SetDefault("decay.pruneThreshold", d.DecayPruneThreshold)
	v.SetDefault("embeddingCacheTtlMs", d.EmbeddingCacheTTL.Milliseconds())

	v.SetEnvPrefix("HEBBIAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, models.NewError(models.ConfigInvalid, "config.Load", err)
		}
	}

	cfg := &Config{
		DBPath:              v.GetString("dbPath"),
		EmbedModel:          v.GetString("embedModel"),
		EmbedURL:            v.GetString("embedUrl"),
		EmbedDimension:      v.GetInt("embedDimension"),
		MaxContextTokens:    v.GetInt("maxContextTokens"),
		MaxEntries:          v.GetInt("maxEntries"),
		SemanticWeight:      v.GetFloat64("semanticWeight"),
		ActivationWeight:    v.GetFloat64("activationWeight"),
		DomainWeight:        v.GetFloat64("domainWeight"),
		DecayDailyFactor:    v.GetFloat64("decay.dailyFactor"),
		DecayPruneThreshold: v.GetFloat64("decay.pruneThreshold"),
		EmbeddingCacheTTL:   time.Duration(v.GetInt64("embeddingCacheTtlMs")) * time.Millisecond,
	}

	// Automatic env maps the key "dbPath" to HEBBIAN_DBPATH (the replacer
	// only turns dots into underscores), so the documented HEBBIAN_DB_PATH
	// name is read by this explicit check.
	if override := v.GetString("DB_PATH"); override != "" {
		cfg.DBPath = override
	}

	return cfg, nil
}
