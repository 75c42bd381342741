package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/dafibh/fortuna/fortuna-engine/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

const lockWalletQuery = `
SELECT user_id, deleted_at FROM wallets WHERE id = $1 FOR UPDATE`

const checkCategoryQuery = `
SELECT user_id, deleted_at FROM categories WHERE id = $1`

const insertTransactionQuery = `
INSERT INTO transactions (
	user_id, wallet_id, category_id, description, amount, direction,
	transaction_date, source, template_id
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING id, created_at`

const applyBalanceQuery = `
UPDATE wallets SET balance = balance + $2, updated_at = NOW() WHERE id = $1`

const sumExpensesQuery = `
SELECT COALESCE(SUM(amount), 0)::bigint
FROM transactions
WHERE user_id = $1
  AND direction = 'EXPENSE'
  AND deleted_at IS NULL
  AND transaction_date >= $2
  AND transaction_date < $3
  AND ($4::bigint IS NULL OR category_id = $4)
  AND ($5::bigint IS NULL OR wallet_id = $5)`

// TransactionRepository implements domain.TransactionRepository using PostgreSQL
type TransactionRepository struct {
	pool *pgxpool.Pool
}

// NewTransactionRepository creates a new TransactionRepository
func NewTransactionRepository(pool *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{pool: pool}
}

// CreateWithBalance inserts the transaction and applies its signed amount to the wallet.
// Both writes commit together or not at all.
func (r *TransactionRepository) CreateWithBalance(ctx context.Context, transaction *domain.Transaction) (*domain.Transaction, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := checkOwned(ctx, tx, lockWalletQuery, transaction.WalletID, transaction.UserID, domain.ErrWalletNotFound); err != nil {
		return nil, err
	}
	if err := checkOwned(ctx, tx, checkCategoryQuery, transaction.CategoryID, transaction.UserID, domain.ErrCategoryNotFound); err != nil {
		return nil, err
	}

	created := *transaction
	err = tx.QueryRow(ctx, insertTransactionQuery,
		transaction.UserID,
		transaction.WalletID,
		transaction.CategoryID,
		transaction.Description,
		transaction.Amount,
		string(transaction.Direction),
		transaction.TransactionDate,
		transaction.Source,
		ptrToPgInt8(transaction.TemplateID),
	).Scan(&created.ID, &created.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, domain.ErrClaimLost
		}
		return nil, fmt.Errorf("insert transaction: %w", err)
	}

	if _, err := tx.Exec(ctx, applyBalanceQuery, transaction.WalletID, transaction.SignedAmount()); err != nil {
		return nil, fmt.Errorf("apply wallet balance: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &created, nil
}

// SumExpenses totals non-deleted expenses in the scope's window
func (r *TransactionRepository) SumExpenses(ctx context.Context, scope domain.SpendScope) (int64, error) {
	var total int64
	err := r.pool.QueryRow(ctx, sumExpensesQuery,
		scope.UserID,
		scope.Start,
		scope.End,
		ptrToPgInt8(scope.CategoryID),
		ptrToPgInt8(scope.WalletID),
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum expenses: %w", err)
	}
	return total, nil
}

// checkOwned verifies the referenced row exists, is not soft-deleted and belongs to userID
func checkOwned(ctx context.Context, tx pgx.Tx, query string, id, userID int64, notFound error) error {
	var (
		ownerID   int64
		deletedAt pgtype.Timestamptz
	)
	if err := tx.QueryRow(ctx, query, id).Scan(&ownerID, &deletedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return notFound
		}
		return err
	}
	if deletedAt.Valid || ownerID != userID {
		return notFound
	}
	return nil
}
