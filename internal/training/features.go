package training

import (
	"modelwatch/internal/types"
)

// OutcomeFeatures is the default feature builder: a small, leak-free set
// derived from each trade's prediction context. The label is whether the
// trade won; realized profit never enters the features.
func OutcomeFeatures(key types.ModelKey, outcomes []types.TradeOutcome) (TrainingSet, error) {
	set := TrainingSet{
		FeatureNames: []string{"ml_confidence", "ml_prediction", "hour_of_day", "day_of_week"},
		Features:     make([][]float64, 0, len(outcomes)),
		Labels:       make([]int, 0, len(outcomes)),
	}
	for _, out := range outcomes {
		t := out.TradeTime.UTC()
		set.Features = append(set.Features, []float64{
			out.MLConfidence,
			float64(out.MLPrediction),
			float64(t.Hour()) / 24,
			float64(t.Weekday()) / 7,
		})
		label := 0
		if out.Win() {
			label = 1
		}
		set.Labels = append(set.Labels, label)
	}
	return set, nil
}
