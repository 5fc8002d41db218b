package training

import (
	"context"

	"modelwatch/internal/types"
)

// TrainingSet is the engineered feature matrix plus labels handed to the
// external training routine. Feature engineering itself happens upstream; a
// FeatureBuilder adapts raw trade outcomes into this shape.
type TrainingSet struct {
	FeatureNames []string    `json:"feature_names"`
	Features     [][]float64 `json:"features"`
	Labels       []int       `json:"labels"`
}

// SampleCount returns the number of rows in the set.
func (s TrainingSet) SampleCount() int { return len(s.Features) }

// Result is the training routine's report for one fit.
type Result struct {
	Success  bool               `json:"success"`
	Accuracy float64            `json:"accuracy"`
	Samples  int                `json:"samples"`
	Metrics  map[string]float64 `json:"metrics,omitempty"`
	Message  string             `json:"message,omitempty"`
}

// Trainer is the boundary to the external model-fitting routine. Callers
// set any timeout on ctx; the orchestrator treats a timeout like any other
// training failure.
type Trainer interface {
	Train(ctx context.Context, key types.ModelKey, set TrainingSet) (Result, error)
}

// FeatureBuilder maps raw trade outcomes to a training set. It must be a
// pure function of its input.
type FeatureBuilder func(key types.ModelKey, outcomes []types.TradeOutcome) (TrainingSet, error)
