package training

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"modelwatch/internal/types"
)

// HTTPTrainer calls the trading client's retrain endpoint. The fit itself
// runs inside the trading client's Python process; this side only ships the
// training set and interprets the report.
type HTTPTrainer struct {
	url    string
	client *http.Client
}

// NewHTTPTrainer builds a trainer against the given endpoint. timeout bounds
// a whole fit, not a single request hop.
func NewHTTPTrainer(url string, timeout time.Duration) *HTTPTrainer {
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	return &HTTPTrainer{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

type trainRequest struct {
	Direction    string      `json:"direction"`
	Symbol       string      `json:"symbol"`
	Timeframe    string      `json:"timeframe"`
	FeatureNames []string    `json:"feature_names"`
	Features     [][]float64 `json:"features"`
	Labels       []int       `json:"labels"`
}

// Train posts the training set and decodes the training report. A non-2xx
// status or an unreadable body is a training error, not a Result.
func (t *HTTPTrainer) Train(ctx context.Context, key types.ModelKey, set TrainingSet) (Result, error) {
	payload, err := json.Marshal(trainRequest{
		Direction:    key.Direction,
		Symbol:       key.Symbol,
		Timeframe:    key.Timeframe,
		FeatureNames: set.FeatureNames,
		Features:     set.Features,
		Labels:       set.Labels,
	})
	if err != nil {
		return Result{}, fmt.Errorf("encoding training request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(payload))
	if err != nil {
		return Result{}, fmt.Errorf("building training request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("calling training service: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Result{}, fmt.Errorf("reading training response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{}, fmt.Errorf("training service returned %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var res Result
	if err := json.Unmarshal(body, &res); err != nil {
		return Result{}, fmt.Errorf("decoding training response: %w", err)
	}
	return res, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
