package postgres

import (
	"context"
	"fmt"

	"github.com/dafibh/fortuna/fortuna-engine/internal/domain"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const listActiveBudgetsForScopeQuery = `
SELECT b.id, b.user_id, b.name, b.category_id, b.wallet_id, b.limit_amount, b.period,
       b.active, u.timezone, b.created_at, b.updated_at
FROM budgets b
JOIN users u ON u.id = b.user_id
WHERE b.user_id = $1
  AND b.active
  AND (b.category_id = $2 OR b.wallet_id = $3)
ORDER BY b.id`

// BudgetRepository implements domain.BudgetRepository using PostgreSQL
type BudgetRepository struct {
	pool *pgxpool.Pool
}

// NewBudgetRepository creates a new BudgetRepository
func NewBudgetRepository(pool *pgxpool.Pool) *BudgetRepository {
	return &BudgetRepository{pool: pool}
}

// ListActiveForScope returns active budgets scoped to the category or the wallet
func (r *BudgetRepository) ListActiveForScope(ctx context.Context, userID, categoryID, walletID int64) ([]*domain.Budget, error) {
	rows, err := r.pool.Query(ctx, listActiveBudgetsForScopeQuery, userID, categoryID, walletID)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	var budgets []*domain.Budget
	for rows.Next() {
		var (
			b          domain.Budget
			categoryID pgtype.Int8
			walletID   pgtype.Int8
			period     string
		)
		if err := rows.Scan(
			&b.ID,
			&b.UserID,
			&b.Name,
			&categoryID,
			&walletID,
			&b.LimitAmount,
			&period,
			&b.Active,
			&b.Timezone,
			&b.CreatedAt,
			&b.UpdatedAt,
		); err != nil {
			return nil, err
		}
		b.CategoryID = pgInt8ToPtr(categoryID)
		b.WalletID = pgInt8ToPtr(walletID)
		b.Period = domain.BudgetPeriod(period)
		budgets = append(budgets, &b)
	}
	return budgets, rows.Err()
}
