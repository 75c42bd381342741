package domain

import (
	"context"
	"time"
)

type Direction string

const (
	DirectionIncome  Direction = "INCOME"
	DirectionExpense Direction = "EXPENSE"
)

// IsValid reports whether d is INCOME or EXPENSE
func (d Direction) IsValid() bool {
	return d == DirectionIncome || d == DirectionExpense
}

// TransactionSourceRecurring marks transactions materialized from a recurring template
const TransactionSourceRecurring = "recurring"

type Transaction struct {
	ID              int64      `json:"id"`
	UserID          int64      `json:"userId"`
	WalletID        int64      `json:"walletId"`
	CategoryID      int64      `json:"categoryId"`
	Description     string     `json:"description"`
	Amount          int64      `json:"amount"`
	Direction       Direction  `json:"direction"`
	TransactionDate time.Time  `json:"transactionDate"`
	Source          string     `json:"source"`
	TemplateID      *int64     `json:"templateId,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	DeletedAt       *time.Time `json:"deletedAt,omitempty"`
}

// SignedAmount is the delta the transaction applies to its wallet balance
func (t *Transaction) SignedAmount() int64 {
	return SignedAmount(t.Direction, t.Amount)
}

// SignedAmount returns amount for income and -amount for expenses
func SignedAmount(direction Direction, amount int64) int64 {
	if direction == DirectionExpense {
		return -amount
	}
	return amount
}

// SpendScope selects the expense transactions a budget counts
type SpendScope struct {
	UserID     int64
	CategoryID *int64
	WalletID   *int64
	Start      time.Time
	End        time.Time
}

type TransactionRepository interface {
	// CreateWithBalance inserts the transaction and applies its signed amount to the
	// wallet balance in one database transaction.
	CreateWithBalance(ctx context.Context, transaction *Transaction) (*Transaction, error)
	// SumExpenses totals non-deleted EXPENSE amounts in scope, Start inclusive, End exclusive
	SumExpenses(ctx context.Context, scope SpendScope) (int64, error)
}
