package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ModelKey identifies one directional prediction model. A model is trained
// per (direction, symbol, timeframe), e.g. long:BTCUSDT:4h.
type ModelKey struct {
	Direction string `json:"direction"`
	Symbol    string `json:"symbol"`
	Timeframe string `json:"timeframe"`
}

// String renders the canonical wire form "direction:symbol:timeframe".
func (k ModelKey) String() string {
	return k.Direction + ":" + k.Symbol + ":" + k.Timeframe
}

// IsZero reports whether any component of the key is missing.
func (k ModelKey) IsZero() bool {
	return k.Direction == "" || k.Symbol == "" || k.Timeframe == ""
}

// ParseModelKey parses the wire form produced by String.
func ParseModelKey(s string) (ModelKey, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return ModelKey{}, fmt.Errorf("invalid model key %q, want direction:symbol:timeframe", s)
	}
	key := ModelKey{
		Direction: strings.ToLower(strings.TrimSpace(parts[0])),
		Symbol:    strings.ToUpper(strings.TrimSpace(parts[1])),
		Timeframe: strings.ToLower(strings.TrimSpace(parts[2])),
	}
	if key.IsZero() {
		return ModelKey{}, fmt.Errorf("invalid model key %q, empty component", s)
	}
	return key, nil
}

// TradeOutcome is one closed trade attributed to a model. The metrics store
// owns these records; this subsystem only reads them.
type TradeOutcome struct {
	Model        ModelKey  `json:"model_key"`
	ProfitLoss   float64   `json:"profit_loss"`
	MLConfidence float64   `json:"ml_confidence"`
	MLPrediction int       `json:"ml_prediction"`
	TradeTime    time.Time `json:"trade_time"`
}

// Win reports whether the trade closed in profit.
func (t TradeOutcome) Win() bool { return t.ProfitLoss > 0 }

// RecommendationRow is one aggregated recommendation-performance row,
// keyed by (model, analysis method) upstream.
type RecommendationRow struct {
	Model                      ModelKey        `json:"ml_model_key"`
	AnalysisMethod             string          `json:"analysis_method"`
	TotalRecommendations       int             `json:"total_recommendations"`
	CorrectRecommendations     int             `json:"correct_recommendations"`
	IncorrectRecommendations   int             `json:"incorrect_recommendations"`
	AvgMLConfidence            float64         `json:"avg_ml_confidence"`
	AvgFinalConfidence         float64         `json:"avg_final_confidence"`
	TotalProfitIfFollowed      decimal.Decimal `json:"total_profit_if_followed"`
	TotalProfitIfOpposite      decimal.Decimal `json:"total_profit_if_opposite"`
	TotalRecommendationValue   decimal.Decimal `json:"total_recommendation_value"`
	AvgProfitPerRecommendation float64         `json:"avg_profit_per_recommendation"`
}
