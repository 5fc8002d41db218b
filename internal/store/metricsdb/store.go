package metricsdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"modelwatch/internal/store"
	"modelwatch/internal/types"

	_ "modernc.org/sqlite"
)

// MetricsDB reads trade outcomes and recommendation performance from the
// trading client's SQLite database. All queries run under the bounded retry
// policy; the database itself is owned by the trading client.
type MetricsDB struct {
	mu    sync.Mutex
	db    *sql.DB
	retry store.RetryPolicy
	nowFn func() time.Time
}

// New opens the metrics database at path. The schema is created when absent
// so a fresh deployment (or a test fixture) starts from a valid file.
func New(path string, retry store.RetryPolicy) (*MetricsDB, error) {
	if path == "" {
		return nil, fmt.Errorf("metrics db path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	s := &MetricsDB{db: db, retry: retry, nowFn: time.Now}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *MetricsDB) ensureSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS trade_outcomes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			direction TEXT NOT NULL,
			symbol TEXT NOT NULL,
			timeframe TEXT NOT NULL,
			profit_loss REAL NOT NULL,
			ml_confidence REAL NOT NULL,
			ml_prediction INTEGER NOT NULL,
			trade_time INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trade_outcomes_model_time
			ON trade_outcomes(direction, symbol, timeframe, trade_time)`,
		`CREATE TABLE IF NOT EXISTS recommendations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			direction TEXT NOT NULL,
			symbol TEXT NOT NULL,
			timeframe TEXT NOT NULL,
			analysis_method TEXT NOT NULL,
			ml_confidence REAL NOT NULL,
			final_confidence REAL NOT NULL,
			correct INTEGER,
			profit_if_followed REAL NOT NULL DEFAULT 0,
			profit_if_opposite REAL NOT NULL DEFAULT 0,
			recommendation_value REAL NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_recommendations_lookup
			ON recommendations(symbol, timeframe, created_at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("metrics db schema: %w", err)
		}
	}
	return nil
}

// SetNowFunc overrides the clock, for tests.
func (s *MetricsDB) SetNowFunc(fn func() time.Time) {
	if fn != nil {
		s.nowFn = fn
	}
}

// Close closes the underlying connection.
func (s *MetricsDB) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

var _ store.MetricsStore = (*MetricsDB)(nil)

// GetTradeOutcomes returns one model's closed trades in [start, end),
// oldest first.
func (s *MetricsDB) GetTradeOutcomes(ctx context.Context, key types.ModelKey, start, end time.Time) ([]types.TradeOutcome, error) {
	var out []types.TradeOutcome
	err := s.retry.Do(ctx, func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		rows, err := s.db.QueryContext(ctx, `
			SELECT profit_loss, ml_confidence, ml_prediction, trade_time
			FROM trade_outcomes
			WHERE direction = ? AND symbol = ? AND timeframe = ?
			  AND trade_time >= ? AND trade_time < ?
			ORDER BY trade_time ASC`,
			key.Direction, key.Symbol, key.Timeframe, start.Unix(), end.Unix())
		if err != nil {
			return err
		}
		defer rows.Close()
		out = out[:0]
		for rows.Next() {
			var (
				o       types.TradeOutcome
				tradeTS int64
			)
			if err := rows.Scan(&o.ProfitLoss, &o.MLConfidence, &o.MLPrediction, &tradeTS); err != nil {
				return err
			}
			o.Model = key
			o.TradeTime = time.Unix(tradeTS, 0).UTC()
			out = append(out, o)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("trade outcomes for %s: %w", key, err)
	}
	return out, nil
}

// GetAllModelKeys lists the distinct models with trade history. Symbols
// used by integration tests and placeholder rows are filtered out here so
// no caller ever schedules them.
func (s *MetricsDB) GetAllModelKeys(ctx context.Context) ([]types.ModelKey, error) {
	var keys []types.ModelKey
	err := s.retry.Do(ctx, func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		rows, err := s.db.QueryContext(ctx, `
			SELECT DISTINCT direction, symbol, timeframe
			FROM trade_outcomes
			WHERE direction IN ('long', 'short')
			  AND UPPER(symbol) NOT LIKE 'TEST%'
			  AND UPPER(symbol) <> 'PLACEHOLDER'
			ORDER BY symbol, timeframe, direction`)
		if err != nil {
			return err
		}
		defer rows.Close()
		keys = keys[:0]
		for rows.Next() {
			var k types.ModelKey
			if err := rows.Scan(&k.Direction, &k.Symbol, &k.Timeframe); err != nil {
				return err
			}
			keys = append(keys, k)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list model keys: %w", err)
	}
	return keys, nil
}

// GetRecommendationPerformance aggregates graded recommendations over the
// trailing number of days, grouped by model key and analysis method.
func (s *MetricsDB) GetRecommendationPerformance(ctx context.Context, symbol, timeframe string, days int) ([]types.RecommendationRow, error) {
	if days <= 0 {
		days = 30
	}
	since := s.nowFn().UTC().AddDate(0, 0, -days).Unix()
	var out []types.RecommendationRow
	err := s.retry.Do(ctx, func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		rows, err := s.db.QueryContext(ctx, `
			SELECT direction, symbol, timeframe, analysis_method,
				COUNT(*) AS total,
				COALESCE(SUM(CASE WHEN correct = 1 THEN 1 ELSE 0 END), 0) AS correct_recs,
				COALESCE(SUM(CASE WHEN correct = 0 THEN 1 ELSE 0 END), 0) AS incorrect_recs,
				COALESCE(AVG(ml_confidence), 0),
				COALESCE(AVG(final_confidence), 0),
				COALESCE(SUM(profit_if_followed), 0),
				COALESCE(SUM(profit_if_opposite), 0),
				COALESCE(SUM(recommendation_value), 0),
				COALESCE(AVG(recommendation_value), 0)
			FROM recommendations
			WHERE symbol = ? AND timeframe = ? AND created_at >= ?
			GROUP BY direction, symbol, timeframe, analysis_method`,
			symbol, timeframe, since)
		if err != nil {
			return err
		}
		defer rows.Close()
		out = out[:0]
		for rows.Next() {
			var (
				row                          types.RecommendationRow
				followed, opposite, totalVal float64
			)
			if err := rows.Scan(
				&row.Model.Direction, &row.Model.Symbol, &row.Model.Timeframe,
				&row.AnalysisMethod,
				&row.TotalRecommendations,
				&row.CorrectRecommendations,
				&row.IncorrectRecommendations,
				&row.AvgMLConfidence,
				&row.AvgFinalConfidence,
				&followed, &opposite, &totalVal,
				&row.AvgProfitPerRecommendation,
			); err != nil {
				return err
			}
			row.TotalProfitIfFollowed = decimal.NewFromFloat(followed)
			row.TotalProfitIfOpposite = decimal.NewFromFloat(opposite)
			row.TotalRecommendationValue = decimal.NewFromFloat(totalVal)
			out = append(out, row)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("recommendation performance %s/%s: %w", symbol, timeframe, err)
	}
	return out, nil
}

// InsertTradeOutcomes writes trades directly. The trading client owns this
// table in production; this exists for fixtures and backfill tooling.
func (s *MetricsDB) InsertTradeOutcomes(ctx context.Context, outcomes []types.TradeOutcome) error {
	if len(outcomes) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, o := range outcomes {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO trade_outcomes
				(direction, symbol, timeframe, profit_loss, ml_confidence, ml_prediction, trade_time)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			o.Model.Direction, o.Model.Symbol, o.Model.Timeframe,
			o.ProfitLoss, o.MLConfidence, o.MLPrediction, o.TradeTime.Unix()); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// InsertRecommendation writes one recommendation row; fixtures only, like
// InsertTradeOutcomes.
func (s *MetricsDB) InsertRecommendation(ctx context.Context, key types.ModelKey, method string, mlConf, finalConf float64, correct *bool, value float64, createdAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var correctVal any
	if correct != nil {
		if *correct {
			correctVal = 1
		} else {
			correctVal = 0
		}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO recommendations
			(direction, symbol, timeframe, analysis_method, ml_confidence, final_confidence,
			 correct, profit_if_followed, profit_if_opposite, recommendation_value, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, 0, ?, ?)`,
		key.Direction, key.Symbol, key.Timeframe, method, mlConf, finalConf,
		correctVal, value, createdAt.Unix())
	return err
}
