package metrics

import (
	"context"
	"fmt"
	"time"

	"meal-planner/internal/shared"

	"github.com/jackc/pgx/v5/pgxpool"
)

// UsageRecord is one LLM call persisted to llm_usage.
type UsageRecord struct {
	Operation        string
	Model            string
	PromptTokens     int
	CompletionTokens int
	LatencyMS        int64
	Timestamp        time.Time
}

// Recorder is what LLM callers need to report usage.
type Recorder interface {
	RecordMeta(ctx context.Context, meta shared.CallMeta) error
}

// Store handles persistence of LLM usage to Postgres.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore initializes the Store with an existing pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Record saves a usage row.
func (s *Store) Record(ctx context.Context, u UsageRecord) error {
	ts := u.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO llm_usage (operation, model, prompt_tokens, completion_tokens, latency_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		u.Operation, u.Model, u.PromptTokens, u.CompletionTokens, u.LatencyMS, ts)
	if err != nil {
		return fmt.Errorf("failed to record llm usage: %w", err)
	}
	return nil
}

// RecordMeta records a call unless it reported no tokens at all.
func (s *Store) RecordMeta(ctx context.Context, meta shared.CallMeta) error {
	if meta.Usage.PromptTokens == 0 && meta.Usage.CompletionTokens == 0 {
		return nil
	}
	return s.Record(ctx, MapUsage(meta.Operation, meta.Usage, meta.Latency))
}

// DailyUsage represents token totals for a single day.
type DailyUsage struct {
	Date            string `json:"date"`
	TotalPrompt     int    `json:"total_prompt"`
	TotalCompletion int    `json:"total_completion"`
	TotalCalls      int    `json:"total_calls"`
}

// GetDailyUsage retrieves usage for the last N days, newest first.
func (s *Store) GetDailyUsage(ctx context.Context, days int) ([]DailyUsage, error) {
	since := time.Now().UTC().AddDate(0, 0, -days)
	rows, err := s.pool.Query(ctx, `
		SELECT to_char(created_at AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS day,
		       COALESCE(SUM(prompt_tokens), 0), COALESCE(SUM(completion_tokens), 0), COUNT(*)
		FROM llm_usage
		WHERE created_at >= $1
		GROUP BY day
		ORDER BY day DESC`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily usage: %w", err)
	}
	defer rows.Close()

	var results []DailyUsage
	for rows.Next() {
		var u DailyUsage
		if err := rows.Scan(&u.Date, &u.TotalPrompt, &u.TotalCompletion, &u.TotalCalls); err != nil {
			return nil, fmt.Errorf("failed to scan daily usage: %w", err)
		}
		results = append(results, u)
	}
	return results, rows.Err()
}

// Cleanup removes records older than the specified number of days.
func (s *Store) Cleanup(ctx context.Context, olderThanDays int) (int64, error) {
	threshold := time.Now().UTC().AddDate(0, 0, -olderThanDays)
	tag, err := s.pool.Exec(ctx, `DELETE FROM llm_usage WHERE created_at < $1`, threshold)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up llm usage: %w", err)
	}
	return tag.RowsAffected(), nil
}

// MapUsage converts token usage into a UsageRecord.
func MapUsage(operation string, usage shared.TokenUsage, latency time.Duration) UsageRecord {
	return UsageRecord{
		Operation:        operation,
		Model:            usage.Model,
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		LatencyMS:        latency.Milliseconds(),
		Timestamp:        time.Now().UTC(),
	}
}

// Discard drops usage, for runs without a database.
type Discard struct{}

func (Discard) RecordMeta(ctx context.Context, meta shared.CallMeta) error { return nil }
