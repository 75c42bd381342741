package postgres

import (
	"context"
	"fmt"

	"github.com/dafibh/fortuna/fortuna-engine/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const insertNotificationQuery = `
INSERT INTO notifications (user_id, kind, payload)
VALUES ($1, $2, $3)
RETURNING id, created_at, read`

const insertAlertQuery = `
INSERT INTO budget_alerts (budget_id, period_start, tier, delivered_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (budget_id, period_start, tier) DO NOTHING`

// querier is satisfied by both *pgxpool.Pool and pgx.Tx
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NotificationRepository implements domain.NotificationRepository and
// domain.AlertRepository using PostgreSQL
type NotificationRepository struct {
	pool *pgxpool.Pool
}

// NewNotificationRepository creates a new NotificationRepository
func NewNotificationRepository(pool *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{pool: pool}
}

// Create stores a notification in the user's inbox
func (r *NotificationRepository) Create(ctx context.Context, notification *domain.Notification) (*domain.Notification, error) {
	return insertNotification(ctx, r.pool, notification)
}

// RecordAlert inserts the dedup record and, only if it was new, the notification.
// Returns nil and no error when the (budget, period start, tier) key already exists.
func (r *NotificationRepository) RecordAlert(ctx context.Context, record *domain.AlertRecord, notification *domain.Notification) (*domain.Notification, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, insertAlertQuery, record.BudgetID, record.PeriodStart, string(record.Tier), record.DeliveredAt)
	if err != nil {
		return nil, fmt.Errorf("insert budget alert: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, nil
	}

	created, err := insertNotification(ctx, tx, notification)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return created, nil
}

func insertNotification(ctx context.Context, q querier, notification *domain.Notification) (*domain.Notification, error) {
	created := *notification
	payload := []byte(notification.Payload)
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	err := q.QueryRow(ctx, insertNotificationQuery, notification.UserID, string(notification.Kind), payload).
		Scan(&created.ID, &created.CreatedAt, &created.Read)
	if err != nil {
		return nil, fmt.Errorf("insert notification: %w", err)
	}
	return &created, nil
}
