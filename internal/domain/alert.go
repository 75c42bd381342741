package domain

import (
	"context"
	"encoding/json"
	"time"
)

type AlertTier string

const (
	AlertTierWarning  AlertTier = "WARNING"
	AlertTierExceeded AlertTier = "EXCEEDED"
)

// NotificationKind returns the notification kind emitted for the tier
func (t AlertTier) NotificationKind() NotificationKind {
	if t == AlertTierExceeded {
		return NotificationKindBudgetExceeded
	}
	return NotificationKindBudgetWarning
}

// AlertRecord is the dedup key for budget alerts. A row for (BudgetID, PeriodStart, Tier)
// means that tier's alert was already delivered this period.
type AlertRecord struct {
	BudgetID    int64     `json:"budgetId"`
	PeriodStart time.Time `json:"periodStart"`
	Tier        AlertTier `json:"tier"`
	DeliveredAt time.Time `json:"deliveredAt"`
}

// AlertCandidate is the highest tier a budget reached in one evaluation pass
type AlertCandidate struct {
	Budget *Budget
	Window PeriodWindow
	Tier   AlertTier
	Spent  int64
	Ratio  float64
}

type NotificationKind string

const (
	NotificationKindBudgetWarning      NotificationKind = "BUDGET_WARNING"
	NotificationKindBudgetExceeded     NotificationKind = "BUDGET_EXCEEDED"
	NotificationKindRecurringProcessed NotificationKind = "RECURRING_PROCESSED"
)

type Notification struct {
	ID        int64            `json:"id"`
	UserID    int64            `json:"userId"`
	Kind      NotificationKind `json:"kind"`
	Payload   json.RawMessage  `json:"payload"`
	CreatedAt time.Time        `json:"createdAt"`
	Read      bool             `json:"read"`
}

type NotificationRepository interface {
	Create(ctx context.Context, notification *Notification) (*Notification, error)
}

type AlertRepository interface {
	// RecordAlert inserts the alert record and its notification atomically. It returns
	// nil and no error when a record with the same key already exists.
	RecordAlert(ctx context.Context, record *AlertRecord, notification *Notification) (*Notification, error)
}
