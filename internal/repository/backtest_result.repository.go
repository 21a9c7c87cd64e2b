package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"maxtrade/internal/domain"

	"github.com/google/uuid"
)

type BacktestResultSummary struct {
	ID         uuid.UUID             `json:"id"`
	StrategyID string                `json:"strategyId"`
	Status     domain.BacktestStatus `json:"status"`
	CreatedAt  time.Time             `json:"createdAt"`
}

type BacktestResultRepository interface {
	Add(ctx context.Context, result domain.BacktestResult) error
	Get(ctx context.Context, id uuid.UUID) (*domain.BacktestResult, error)
	List(ctx context.Context, limit int) ([]BacktestResultSummary, error)
}

type backtestResultRepositoryHandler struct {
	Db  *sql.DB
	Now func() time.Time
}

func NewBacktestResultRepository(db *sql.DB) BacktestResultRepository {
	return &backtestResultRepositoryHandler{
		Db:  db,
		Now: time.Now,
	}
}

// Add upserts by id, so rerunning identical inputs overwrites the
// earlier (identical) result
func (h backtestResultRepositoryHandler) Add(ctx context.Context, result domain.BacktestResult) error {
	bytes, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal backtest result: %w", err)
	}

	_, err = h.Db.ExecContext(ctx, `
		INSERT INTO backtest_result (backtest_result_id, strategy_id, status, created_at, result_json)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(backtest_result_id) DO UPDATE SET
			status=excluded.status,
			created_at=excluded.created_at,
			result_json=excluded.result_json`,
		result.ID.String(), result.StrategyID, string(result.Status), h.Now().UnixMilli(), bytes,
	)
	if err != nil {
		return fmt.Errorf("failed to insert backtest result %s: %w", result.ID.String(), err)
	}
	return nil
}

func (h backtestResultRepositoryHandler) Get(ctx context.Context, id uuid.UUID) (*domain.BacktestResult, error) {
	var bytes []byte
	err := h.Db.QueryRowContext(ctx, `
		SELECT result_json FROM backtest_result WHERE backtest_result_id = ?`,
		id.String(),
	).Scan(&bytes)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFoundError("backtest %s not found", id.String())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get backtest result %s: %w", id.String(), err)
	}

	result := domain.BacktestResult{}
	if err := json.Unmarshal(bytes, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal backtest result %s: %w", id.String(), err)
	}
	return &result, nil
}

func (h backtestResultRepositoryHandler) List(ctx context.Context, limit int) ([]BacktestResultSummary, error) {
	rows, err := h.Db.QueryContext(ctx, `
		SELECT backtest_result_id, strategy_id, status, created_at
		FROM backtest_result
		ORDER BY created_at DESC, backtest_result_id ASC
		LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list backtest results: %w", err)
	}
	defer rows.Close()

	out := []BacktestResultSummary{}
	for rows.Next() {
		var (
			id, strategyID, status string
			createdAt              int64
		)
		if err := rows.Scan(&id, &strategyID, &status, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan backtest result: %w", err)
		}
		parsed, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("invalid stored backtest id %s: %w", id, err)
		}
		out = append(out, BacktestResultSummary{
			ID:         parsed,
			StrategyID: strategyID,
			Status:     domain.BacktestStatus(status),
			CreatedAt:  time.UnixMilli(createdAt).UTC(),
		})
	}
	return out, rows.Err()
}
