package training

import (
	"fmt"
	"math"
)

// Diagnostics captures why a training attempt failed in enough detail that
// an operator can tell a data problem from a model problem without
// re-running the fit.
type Diagnostics struct {
	SampleCount    int      `json:"sample_count"`
	MinSamples     int      `json:"min_samples"`
	EnoughSamples  bool     `json:"enough_samples"`
	NaNFeatures    int      `json:"nan_features"`
	EmptyFeatures  bool     `json:"empty_features"`
	WinRatePct     float64  `json:"win_rate_pct"`
	ClassImbalance bool     `json:"class_imbalance"`
	Notes          []string `json:"notes,omitempty"`
}

// Diagnose inspects a training set for the known failure causes: too few
// samples, missing or NaN features, and a degenerate class balance.
func Diagnose(set TrainingSet, minSamples int) Diagnostics {
	if minSamples <= 0 {
		minSamples = 20
	}
	d := Diagnostics{
		SampleCount:   set.SampleCount(),
		MinSamples:    minSamples,
		EnoughSamples: set.SampleCount() >= minSamples,
	}
	if !d.EnoughSamples {
		d.Notes = append(d.Notes,
			fmt.Sprintf("only %d samples, need %d: collect more trades before retraining", d.SampleCount, minSamples))
	}

	if len(set.Features) > 0 && len(set.Features[0]) == 0 {
		d.EmptyFeatures = true
		d.Notes = append(d.Notes, "feature rows are empty: check the feature engineering step")
	}
	for _, row := range set.Features {
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				d.NaNFeatures++
			}
		}
	}
	if d.NaNFeatures > 0 {
		d.Notes = append(d.Notes,
			fmt.Sprintf("%d NaN/Inf feature values: upstream indicators are producing bad data", d.NaNFeatures))
	}

	if len(set.Labels) > 0 {
		wins := 0
		for _, l := range set.Labels {
			if l == 1 {
				wins++
			}
		}
		d.WinRatePct = float64(wins) / float64(len(set.Labels)) * 100
		if d.WinRatePct < 20 || d.WinRatePct > 80 {
			d.ClassImbalance = true
			d.Notes = append(d.Notes,
				fmt.Sprintf("labels are %.1f%% wins: heavy class imbalance, the classifier may degenerate", d.WinRatePct))
		}
	}
	return d
}

// Map flattens the diagnostics for persistence in history details.
func (d Diagnostics) Map() map[string]any {
	m := map[string]any{
		"sample_count":    d.SampleCount,
		"min_samples":     d.MinSamples,
		"enough_samples":  d.EnoughSamples,
		"nan_features":    d.NaNFeatures,
		"empty_features":  d.EmptyFeatures,
		"win_rate_pct":    d.WinRatePct,
		"class_imbalance": d.ClassImbalance,
	}
	if len(d.Notes) > 0 {
		m["notes"] = d.Notes
	}
	return m
}

// Summary renders a one-line operator summary.
func (d Diagnostics) Summary() string {
	if len(d.Notes) == 0 {
		return "no data-quality problems detected; likely a model-side failure"
	}
	out := d.Notes[0]
	for _, n := range d.Notes[1:] {
		out += "; " + n
	}
	return out
}
