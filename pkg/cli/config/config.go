package config

import (
	"os"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"

	domainConfig "github.com/secmon-lab/orbit/pkg/domain/model/config"
	"github.com/secmon-lab/orbit/pkg/domain/types"
)

// AppConfig is the TOML tuning file for the aggregation engine. All fields
// are optional; absent values fall back to the documented defaults.
type AppConfig struct {
	DedupTolerance  string             `toml:"dedup_tolerance"`
	RecencyHalfLife string             `toml:"recency_half_life"`
	ContextBudget   int                `toml:"context_budget"`
	PriorityWeight  float64            `toml:"priority_weight"`
	Weights         map[string]float64 `toml:"weights"`
}

// Validate checks that the AppConfig is usable
func (a *AppConfig) Validate() error {
	if a.DedupTolerance != "" {
		d, err := time.ParseDuration(a.DedupTolerance)
		if err != nil {
			return goerr.Wrap(ErrInvalidConfig, "invalid dedup_tolerance",
				goerr.V("value", a.DedupTolerance))
		}
		if d < 0 {
			return goerr.Wrap(ErrInvalidConfig, "dedup_tolerance must not be negative",
				goerr.V("value", a.DedupTolerance))
		}
	}
	if a.RecencyHalfLife != "" {
		d, err := time.ParseDuration(a.RecencyHalfLife)
		if err != nil {
			return goerr.Wrap(ErrInvalidConfig, "invalid recency_half_life",
				goerr.V("value", a.RecencyHalfLife))
		}
		if d <= 0 {
			return goerr.Wrap(ErrInvalidConfig, "recency_half_life must be positive",
				goerr.V("value", a.RecencyHalfLife))
		}
	}
	if a.ContextBudget < 0 {
		return goerr.Wrap(ErrInvalidConfig, "context_budget must not be negative",
			goerr.V("value", a.ContextBudget))
	}
	if a.PriorityWeight < 0 {
		return goerr.Wrap(ErrInvalidConfig, "priority_weight must not be negative",
			goerr.V("value", a.PriorityWeight))
	}
	for name, w := range a.Weights {
		cat, err := types.ParseEventCategory(name)
		if err != nil {
			return goerr.Wrap(ErrInvalidConfig, "unknown event category in weights",
				goerr.V("category", name))
		}
		if w < 0 {
			return goerr.Wrap(ErrInvalidConfig, "category weight must not be negative",
				goerr.V("category", cat), goerr.V("weight", w))
		}
	}
	return nil
}

// LoadAppConfiguration loads the tuning configuration from a TOML file
func LoadAppConfiguration(path string) (*AppConfig, error) {
	// #nosec G304 - path is expected to be provided by CLI argument
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(ErrConfigNotFound, "failed to read config file",
			goerr.V(ConfigPathKey, path))
	}

	var config AppConfig
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, goerr.Wrap(err, "failed to parse TOML config", goerr.V(ConfigPathKey, path))
	}

	if err := config.Validate(); err != nil {
		return nil, goerr.Wrap(err, "config validation failed", goerr.V(ConfigPathKey, path))
	}

	return &config, nil
}

// ToBriefingConfig converts the AppConfig to the domain tuning configuration,
// filling absent fields with defaults
func (a *AppConfig) ToBriefingConfig() *domainConfig.BriefingConfig {
	cfg := domainConfig.NewBriefingConfig()

	if a.DedupTolerance != "" {
		cfg.DedupTolerance, _ = time.ParseDuration(a.DedupTolerance)
	}
	if a.RecencyHalfLife != "" {
		cfg.RecencyHalfLife, _ = time.ParseDuration(a.RecencyHalfLife)
	}
	if a.ContextBudget > 0 {
		cfg.ContextBudget = a.ContextBudget
	}
	if a.PriorityWeight > 0 {
		cfg.PriorityWeight = a.PriorityWeight
	}
	for name, w := range a.Weights {
		cat, err := types.ParseEventCategory(name)
		if err != nil {
			continue // rejected by Validate already
		}
		cfg.CategoryWeights[cat] = w
	}

	return cfg
}
