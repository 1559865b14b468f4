package config

import (
	"time"

	"github.com/secmon-lab/orbit/pkg/domain/types"
)

// Default tuning values. The originals are deliberately conservative: a five
// minute dedup window collapses cross-posted notifications without merging
// adjacent meetings, and the half-life keeps a full working day relevant.
const (
	DefaultDedupTolerance  = 5 * time.Minute
	DefaultRecencyHalfLife = 6 * time.Hour
	DefaultContextBudget   = 8000
	DefaultPriorityWeight  = 0.2
)

// DefaultCategoryWeights weights meetings above tasks and deployments, and
// both above generic messages
func DefaultCategoryWeights() map[types.EventCategory]float64 {
	return map[types.EventCategory]float64{
		types.EventCategoryMeeting:    1.0,
		types.EventCategoryTask:       0.8,
		types.EventCategoryDeployment: 0.7,
		types.EventCategoryMessage:    0.5,
	}
}

// BriefingConfig holds the tuning parameters of the aggregation engine.
// All values are explicit configuration, not hardcoded constants, since the
// right settings depend on each deployment's activity volume.
type BriefingConfig struct {
	// DedupTolerance is the maximum occurred_at distance for two events with
	// matching category and normalized title to be considered duplicates
	DedupTolerance time.Duration

	// RecencyHalfLife controls the exponential decay of the recency score
	RecencyHalfLife time.Duration

	// ContextBudget is the cumulative character budget of the ranked set
	ContextBudget int

	// PriorityWeight scales the contribution of the source priority hint
	PriorityWeight float64

	// CategoryWeights maps each event category to its base relevance weight
	CategoryWeights map[types.EventCategory]float64
}

// NewBriefingConfig returns a BriefingConfig with documented defaults
func NewBriefingConfig() *BriefingConfig {
	return &BriefingConfig{
		DedupTolerance:  DefaultDedupTolerance,
		RecencyHalfLife: DefaultRecencyHalfLife,
		ContextBudget:   DefaultContextBudget,
		PriorityWeight:  DefaultPriorityWeight,
		CategoryWeights: DefaultCategoryWeights(),
	}
}

// CategoryWeight returns the weight for a category, falling back to the
// message weight for unknown categories
func (c *BriefingConfig) CategoryWeight(cat types.EventCategory) float64 {
	if w, ok := c.CategoryWeights[cat]; ok {
		return w
	}
	return c.CategoryWeights[types.EventCategoryMessage]
}
