package domain

import (
	"context"
	"time"
)

type BudgetPeriod string

const (
	BudgetPeriodWeekly  BudgetPeriod = "WEEKLY"
	BudgetPeriodMonthly BudgetPeriod = "MONTHLY"
)

// IsValid reports whether p is WEEKLY or MONTHLY
func (p BudgetPeriod) IsValid() bool {
	return p == BudgetPeriodWeekly || p == BudgetPeriodMonthly
}

// Budget caps spend for one category or one wallet per period. Budgets are owned by
// the CRUD layer; the engine only reads them.
type Budget struct {
	ID          int64        `json:"id"`
	UserID      int64        `json:"userId"`
	Name        string       `json:"name"`
	CategoryID  *int64       `json:"categoryId,omitempty"`
	WalletID    *int64       `json:"walletId,omitempty"`
	LimitAmount int64        `json:"limitAmount"`
	Period      BudgetPeriod `json:"period"`
	Active      bool         `json:"active"`
	Timezone    string       `json:"timezone"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// Covers reports whether the transaction falls in the budget's category or wallet scope
func (b *Budget) Covers(tx *Transaction) bool {
	if b.UserID != tx.UserID {
		return false
	}
	if b.CategoryID != nil && *b.CategoryID == tx.CategoryID {
		return true
	}
	return b.WalletID != nil && *b.WalletID == tx.WalletID
}

// PeriodWindow is a budget period, Start inclusive and End exclusive
type PeriodWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t lies inside the window
func (w PeriodWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

type BudgetRepository interface {
	// ListActiveForScope returns active budgets of the user scoped to the category or the wallet
	ListActiveForScope(ctx context.Context, userID, categoryID, walletID int64) ([]*Budget, error)
}
