// Package repository provides PostgreSQL repository implementations.
package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/smartcost/backend/internal/model"
)

// PostgresCostRecordRepository implements CostRecordRepository for PostgreSQL.
type PostgresCostRecordRepository struct {
	db *sql.DB
}

// NewPostgresCostRecordRepository creates a new PostgresCostRecordRepository.
func NewPostgresCostRecordRepository(db *sql.DB) *PostgresCostRecordRepository {
	return &PostgresCostRecordRepository{db: db}
}

// CreateBatch upserts records keyed by subscription, day, resource group and
// service, so re-importing a day replaces its figures.
func (r *PostgresCostRecordRepository) CreateBatch(ctx context.Context, records []model.CostRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO cost_records (id, subscription_id, date, total_cost, currency, resource_group, service_name, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (subscription_id, date, resource_group, service_name)
		DO UPDATE SET total_cost = EXCLUDED.total_cost, currency = EXCLUDED.currency
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, rec := range records {
		_, err := stmt.ExecContext(ctx, rec.ID, rec.SubscriptionID, model.TruncateDay(rec.Date), rec.TotalCost,
			rec.Currency, rec.ResourceGroup, rec.ServiceName, rec.CreatedAt)
		if err != nil {
			return fmt.Errorf("upsert cost record %s: %w", rec.ID, err)
		}
	}

	return tx.Commit()
}

// ListByDateRange returns a subscription's records with both ends of the range
// inclusive, most recent first.
func (r *PostgresCostRecordRepository) ListByDateRange(ctx context.Context, filter model.CostFilter) ([]model.CostRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, subscription_id, date, total_cost, currency, resource_group, service_name, created_at
		FROM cost_records
		WHERE subscription_id = $1 AND date >= $2 AND date <= $3
		ORDER BY date DESC
	`, filter.SubscriptionID, model.TruncateDay(filter.DateRange.Start), model.TruncateDay(filter.DateRange.End))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []model.CostRecord{}
	for rows.Next() {
		var rec model.CostRecord
		err := rows.Scan(&rec.ID, &rec.SubscriptionID, &rec.Date, &rec.TotalCost, &rec.Currency,
			&rec.ResourceGroup, &rec.ServiceName, &rec.CreatedAt)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ListSubscriptions returns every subscription with stored cost data.
func (r *PostgresCostRecordRepository) ListSubscriptions(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT subscription_id FROM cost_records ORDER BY subscription_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []string
	for rows.Next() {
		var sub string
		if err := rows.Scan(&sub); err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// EnsureTable creates the cost_records table if it doesn't exist.
func (r *PostgresCostRecordRepository) EnsureTable(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS cost_records (
			id UUID PRIMARY KEY,
			subscription_id VARCHAR(255) NOT NULL,
			date DATE NOT NULL,
			total_cost NUMERIC(18, 6) NOT NULL CHECK (total_cost >= 0),
			currency VARCHAR(3) NOT NULL DEFAULT 'USD',
			resource_group VARCHAR(255) NOT NULL DEFAULT '',
			service_name VARCHAR(255) NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (subscription_id, date, resource_group, service_name)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create cost_records table: %w", err)
	}

	r.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_cost_records_sub_date ON cost_records (subscription_id, date DESC)`)
	return nil
}
