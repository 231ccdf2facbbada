// Package ledger persists API usage records in sqlite. The table is
// append-only: the router inserts one row per provider call and the
// aggregate readers never mutate.
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite" // sqlite driver

	"github.com/kailas-cloud/ragdex/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS api_usage (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp TEXT NOT NULL,
	project_id TEXT,
	conversation_id TEXT,
	provider TEXT NOT NULL,
	model TEXT NOT NULL,
	operation TEXT NOT NULL,
	prompt_tokens INTEGER NOT NULL DEFAULT 0,
	completion_tokens INTEGER NOT NULL DEFAULT 0,
	total_tokens INTEGER NOT NULL DEFAULT 0,
	cost_estimated REAL NOT NULL DEFAULT 0,
	metadata_json TEXT
);
CREATE INDEX IF NOT EXISTS idx_usage_timestamp ON api_usage(timestamp);
CREATE INDEX IF NOT EXISTS idx_usage_project ON api_usage(project_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_usage_provider ON api_usage(provider, model, timestamp);
`

// Store is a sqlite-backed usage ledger.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// New opens (and if needed initializes) the ledger database at path.
func New(path string, logger *zap.Logger) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open ledger db: %w", err)
	}

	// sqlite allows a single writer; serialize access through one connection.
	sqlDB.SetMaxOpenConns(1)

	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("init ledger schema: %w", err)
	}

	return &Store{db: sqlDB, logger: logger}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close ledger db: %w", err)
	}
	return nil
}

// Ping checks database availability.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping ledger db: %w", err)
	}
	return nil
}

// Insert appends one usage record.
func (s *Store) Insert(ctx context.Context, rec domain.UsageRecord) error {
	metaJSON, err := json.Marshal(rec.Metadata)
	if err != nil {
		metaJSON = []byte("{}")
	}

	ts := rec.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO api_usage
		(timestamp, project_id, conversation_id, provider, model, operation,
		 prompt_tokens, completion_tokens, total_tokens, cost_estimated, metadata_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ts.UTC().Format(time.RFC3339),
		nullable(rec.ProjectID),
		nullable(rec.ConversationID),
		rec.Provider,
		rec.Model,
		rec.Operation,
		rec.PromptTokens,
		rec.CompletionTokens,
		rec.TotalTokens,
		rec.CostUSD,
		string(metaJSON),
	)
	if err != nil {
		return fmt.Errorf("insert usage record: %w", err)
	}

	s.logger.Debug("Usage recorded",
		zap.String("provider", rec.Provider),
		zap.String("model", rec.Model),
		zap.Int("tokens", rec.TotalTokens),
		zap.Float64("cost_usd", rec.CostUSD),
	)
	return nil
}

// MonthlyUsage aggregates the current UTC calendar month, optionally filtered
// by project.
func (s *Store) MonthlyUsage(ctx context.Context, projectID string) (domain.MonthlyUsage, error) {
	now := time.Now().UTC()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	return s.aggregate(ctx, projectID, start, end)
}

// Stats builds a rolling usage report over the last `days` days, with a
// per-model breakdown.
func (s *Store) Stats(ctx context.Context, projectID string, days int) (domain.UsageStats, error) {
	if days <= 0 {
		days = 30
	}
	end := time.Now().UTC()
	start := end.AddDate(0, 0, -days)

	agg, err := s.aggregate(ctx, projectID, start, end)
	if err != nil {
		return domain.UsageStats{}, err
	}

	stats := domain.UsageStats{
		Days:         days,
		Requests:     agg.Requests,
		TotalTokens:  agg.TotalTokens,
		TotalCostUSD: agg.TotalCostUSD,
		ByModel:      map[string]domain.ModelUsage{},
	}

	query := `
		SELECT provider || '/' || model,
		       COUNT(*), COALESCE(SUM(total_tokens), 0), COALESCE(SUM(cost_estimated), 0)
		FROM api_usage
		WHERE timestamp >= ? AND timestamp < ?` + projectFilter(projectID) + `
		GROUP BY provider, model`

	rows, err := s.db.QueryContext(ctx, query, queryArgs(projectID, start, end)...)
	if err != nil {
		return domain.UsageStats{}, fmt.Errorf("query model usage: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var name string
		var mu domain.ModelUsage
		if err := rows.Scan(&name, &mu.Requests, &mu.TotalTokens, &mu.TotalCostUSD); err != nil {
			return domain.UsageStats{}, fmt.Errorf("scan model usage: %w", err)
		}
		stats.ByModel[name] = mu
	}
	if err := rows.Err(); err != nil {
		return domain.UsageStats{}, fmt.Errorf("iterate model usage: %w", err)
	}

	return stats, nil
}

func (s *Store) aggregate(
	ctx context.Context, projectID string, start, end time.Time,
) (domain.MonthlyUsage, error) {
	query := `
		SELECT COUNT(*),
		       COALESCE(SUM(prompt_tokens), 0),
		       COALESCE(SUM(completion_tokens), 0),
		       COALESCE(SUM(total_tokens), 0),
		       COALESCE(SUM(cost_estimated), 0),
		       COUNT(DISTINCT substr(timestamp, 1, 10))
		FROM api_usage
		WHERE timestamp >= ? AND timestamp < ?` + projectFilter(projectID)

	var u domain.MonthlyUsage
	err := s.db.QueryRowContext(ctx, query, queryArgs(projectID, start, end)...).Scan(
		&u.Requests, &u.PromptTokens, &u.CompletionTokens,
		&u.TotalTokens, &u.TotalCostUSD, &u.DaysActive,
	)
	if err != nil {
		return domain.MonthlyUsage{}, fmt.Errorf("aggregate usage: %w", err)
	}
	return u, nil
}

func projectFilter(projectID string) string {
	if projectID == "" {
		return ""
	}
	return " AND project_id = ?"
}

func queryArgs(projectID string, start, end time.Time) []any {
	args := []any{
		start.Format(time.RFC3339),
		end.Format(time.RFC3339),
	}
	if projectID != "" {
		args = append(args, projectID)
	}
	return args
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
