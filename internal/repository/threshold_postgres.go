package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/smartcost/backend/internal/model"
)

const thresholdColumns = `id, name, resource_group, service_name, amount, alert_level, alert_type, is_enabled, created_at, last_triggered, trigger_count`

// PostgresThresholdRepository implements ThresholdRepository for PostgreSQL.
type PostgresThresholdRepository struct {
	db *sql.DB
}

// NewPostgresThresholdRepository creates a new PostgresThresholdRepository.
func NewPostgresThresholdRepository(db *sql.DB) *PostgresThresholdRepository {
	return &PostgresThresholdRepository{db: db}
}

// ListThresholds returns every stored threshold ordered by creation.
func (r *PostgresThresholdRepository) ListThresholds(ctx context.Context) ([]model.CostThreshold, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+thresholdColumns+` FROM cost_thresholds ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	thresholds := []model.CostThreshold{}
	for rows.Next() {
		t, err := scanThreshold(rows)
		if err != nil {
			return nil, err
		}
		thresholds = append(thresholds, *t)
	}
	return thresholds, rows.Err()
}

func (r *PostgresThresholdRepository) GetByID(ctx context.Context, id string) (*model.CostThreshold, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+thresholdColumns+` FROM cost_thresholds WHERE id = $1`, id)
	t, err := scanThreshold(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("threshold %q: %w", id, ErrNotFound)
	}
	return t, err
}

func (r *PostgresThresholdRepository) Create(ctx context.Context, t *model.CostThreshold) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cost_thresholds (`+thresholdColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, t.ID, t.Name, t.ResourceGroup, t.ServiceName, t.Amount, t.AlertLevel, t.AlertType,
		t.IsEnabled, t.CreatedAt, t.LastTriggered, t.TriggerCount)
	return err
}

func (r *PostgresThresholdRepository) Update(ctx context.Context, t *model.CostThreshold) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE cost_thresholds
		SET name = $2, resource_group = $3, service_name = $4, amount = $5,
			alert_level = $6, alert_type = $7, is_enabled = $8
		WHERE id = $1
	`, t.ID, t.Name, t.ResourceGroup, t.ServiceName, t.Amount, t.AlertLevel, t.AlertType, t.IsEnabled)
	if err != nil {
		return err
	}
	return expectAffected(res, t.ID)
}

func (r *PostgresThresholdRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM cost_thresholds WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectAffected(res, id)
}

// MarkTriggered stamps last_triggered and bumps trigger_count for ids.
func (r *PostgresThresholdRepository) MarkTriggered(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, id := range ids {
		_, err := tx.ExecContext(ctx, `
			UPDATE cost_thresholds SET last_triggered = $2, trigger_count = trigger_count + 1 WHERE id = $1
		`, id, at)
		if err != nil {
			return fmt.Errorf("mark threshold %q triggered: %w", id, err)
		}
	}
	return tx.Commit()
}

// SeedIfEmpty inserts thresholds when the table has no rows.
func (r *PostgresThresholdRepository) SeedIfEmpty(ctx context.Context, thresholds []model.CostThreshold) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cost_thresholds`).Scan(&count); err != nil {
		return 0, err
	}
	if count > 0 {
		return 0, nil
	}
	for i := range thresholds {
		if err := r.Create(ctx, &thresholds[i]); err != nil {
			return i, fmt.Errorf("seed threshold %q: %w", thresholds[i].ID, err)
		}
	}
	return len(thresholds), nil
}

// EnsureTable creates the cost_thresholds table if it doesn't exist.
func (r *PostgresThresholdRepository) EnsureTable(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS cost_thresholds (
			id VARCHAR(64) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			resource_group VARCHAR(255) NOT NULL DEFAULT '',
			service_name VARCHAR(255) NOT NULL DEFAULT '',
			amount NUMERIC(18, 2) NOT NULL CHECK (amount > 0),
			alert_level VARCHAR(20) NOT NULL,
			alert_type VARCHAR(40) NOT NULL DEFAULT 'DailyCostThreshold',
			is_enabled BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			last_triggered TIMESTAMPTZ,
			trigger_count INTEGER NOT NULL DEFAULT 0
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create cost_thresholds table: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanThreshold(row rowScanner) (*model.CostThreshold, error) {
	var t model.CostThreshold
	var lastTriggered sql.NullTime
	err := row.Scan(&t.ID, &t.Name, &t.ResourceGroup, &t.ServiceName, &t.Amount, &t.AlertLevel,
		&t.AlertType, &t.IsEnabled, &t.CreatedAt, &lastTriggered, &t.TriggerCount)
	if err != nil {
		return nil, err
	}
	if lastTriggered.Valid {
		ts := lastTriggered.Time
		t.LastTriggered = &ts
	}
	return &t, nil
}

func expectAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("threshold %q: %w", id, ErrNotFound)
	}
	return nil
}
