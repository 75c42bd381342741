package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/dafibh/fortuna/fortuna-engine/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const recurringTemplateColumns = `
	t.id, t.user_id, t.description, t.amount, t.direction, t.category_id, t.wallet_id,
	t.frequency, t.start_date, t.anchor_at, t.next_run_at, t.last_run_at, t.active,
	t.end_date, u.timezone, t.created_at, t.updated_at`

const listDueTemplatesQuery = `
SELECT` + recurringTemplateColumns + `
FROM recurring_templates t
JOIN users u ON u.id = t.user_id
WHERE t.active AND t.next_run_at <= $1
ORDER BY t.next_run_at, t.id`

const claimTemplateQuery = `
UPDATE recurring_templates
SET next_run_at = $3, last_run_at = $4, active = $5, updated_at = NOW()
WHERE id = $1 AND next_run_at = $2 AND active`

const deactivateTemplateQuery = `
UPDATE recurring_templates
SET active = FALSE, updated_at = NOW()
WHERE id = $1 AND next_run_at = $2 AND active`

// RecurringTemplateRepository implements domain.RecurringTemplateRepository using PostgreSQL
type RecurringTemplateRepository struct {
	pool *pgxpool.Pool
}

// NewRecurringTemplateRepository creates a new RecurringTemplateRepository
func NewRecurringTemplateRepository(pool *pgxpool.Pool) *RecurringTemplateRepository {
	return &RecurringTemplateRepository{pool: pool}
}

// ListDue returns active templates whose next run is at or before now, oldest first
func (r *RecurringTemplateRepository) ListDue(ctx context.Context, now time.Time) ([]*domain.RecurringTemplate, error) {
	rows, err := r.pool.Query(ctx, listDueTemplatesQuery, now)
	if err != nil {
		return nil, fmt.Errorf("list due templates: %w", err)
	}
	defer rows.Close()

	var templates []*domain.RecurringTemplate
	for rows.Next() {
		t, err := scanRecurringTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list due templates: %w", err)
	}
	return templates, nil
}

// Claim advances the template only if next_run_at still holds the expected value.
// Zero affected rows means another run already claimed this occurrence.
func (r *RecurringTemplateRepository) Claim(ctx context.Context, update domain.ClaimUpdate) (bool, error) {
	tag, err := r.pool.Exec(ctx, claimTemplateQuery,
		update.TemplateID,
		update.ExpectedNextRunAt,
		update.NextRunAt,
		update.LastRunAt,
		update.Active,
	)
	if err != nil {
		return false, fmt.Errorf("claim template %d: %w", update.TemplateID, err)
	}
	return tag.RowsAffected() == 1, nil
}

// Deactivate marks the template inactive under the same precondition as Claim
func (r *RecurringTemplateRepository) Deactivate(ctx context.Context, id int64, expectedNextRunAt time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, deactivateTemplateQuery, id, expectedNextRunAt)
	if err != nil {
		return false, fmt.Errorf("deactivate template %d: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

func scanRecurringTemplate(row pgx.Row) (*domain.RecurringTemplate, error) {
	var (
		t         domain.RecurringTemplate
		direction string
		frequency string
		anchorAt  pgtype.Timestamptz
		lastRunAt pgtype.Timestamptz
		endDate   pgtype.Timestamptz
	)
	err := row.Scan(
		&t.ID,
		&t.UserID,
		&t.Description,
		&t.Amount,
		&direction,
		&t.CategoryID,
		&t.WalletID,
		&frequency,
		&t.StartDate,
		&anchorAt,
		&t.NextRunAt,
		&lastRunAt,
		&t.Active,
		&endDate,
		&t.Timezone,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Direction = domain.Direction(direction)
	t.Frequency = domain.Frequency(frequency)
	t.AnchorAt = pgTimestamptzToPtr(anchorAt)
	t.LastRunAt = pgTimestamptzToPtr(lastRunAt)
	t.EndDate = pgTimestamptzToPtr(endDate)
	return &t, nil
}

func pgTimestamptzToPtr(ts pgtype.Timestamptz) *time.Time {
	if !ts.Valid {
		return nil
	}
	t := ts.Time
	return &t
}

func ptrToPgInt8(v *int64) pgtype.Int8 {
	if v == nil {
		return pgtype.Int8{}
	}
	return pgtype.Int8{Int64: *v, Valid: true}
}

func pgInt8ToPtr(v pgtype.Int8) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}
