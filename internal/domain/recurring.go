package domain

import (
	"context"
	"time"
)

type Frequency string

const (
	FrequencyDaily   Frequency = "DAILY"
	FrequencyWeekly  Frequency = "WEEKLY"
	FrequencyMonthly Frequency = "MONTHLY"
	FrequencyYearly  Frequency = "YEARLY"
)

// IsValid reports whether f is one of the supported schedule frequencies
func (f Frequency) IsValid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyYearly:
		return true
	}
	return false
}

// RecurringTemplate is a user-defined rule that generates transactions on a schedule.
// The engine only writes NextRunAt, LastRunAt and Active.
type RecurringTemplate struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"userId"`
	Description string     `json:"description"`
	Amount      int64      `json:"amount"`
	Direction   Direction  `json:"direction"`
	CategoryID  int64      `json:"categoryId"`
	WalletID    int64      `json:"walletId"`
	Frequency   Frequency  `json:"frequency"`
	StartDate   time.Time  `json:"startDate"`
	AnchorAt    *time.Time `json:"anchorAt,omitempty"`
	NextRunAt   time.Time  `json:"nextRunAt"`
	LastRunAt   *time.Time `json:"lastRunAt,omitempty"`
	Active      bool       `json:"active"`
	EndDate     *time.Time `json:"endDate,omitempty"`
	Timezone    string     `json:"timezone"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Anchor returns the instant whose day, weekday and time of day the schedule follows
func (t *RecurringTemplate) Anchor() time.Time {
	if t.AnchorAt != nil {
		return *t.AnchorAt
	}
	return t.StartDate
}

// EndsBefore reports whether the given occurrence falls after the template's end date
func (t *RecurringTemplate) EndsBefore(occurrence time.Time) bool {
	return t.EndDate != nil && occurrence.After(*t.EndDate)
}

// ClaimedTemplate is a template this run won the claim for, together with the
// occurrence it was claimed for.
type ClaimedTemplate struct {
	Template *RecurringTemplate
	DueAt    time.Time
	NextRun  time.Time
}

// ClaimUpdate is the conditional write issued for one due template. The write only
// applies when the stored next_run_at still equals ExpectedNextRunAt.
type ClaimUpdate struct {
	TemplateID        int64
	ExpectedNextRunAt time.Time
	NextRunAt         time.Time
	LastRunAt         time.Time
	Active            bool
}

type RecurringTemplateRepository interface {
	ListDue(ctx context.Context, now time.Time) ([]*RecurringTemplate, error)
	// Claim applies the update and reports whether this caller won the precondition
	Claim(ctx context.Context, update ClaimUpdate) (bool, error)
	// Deactivate marks the template inactive if next_run_at is still expectedNextRunAt
	Deactivate(ctx context.Context, id int64, expectedNextRunAt time.Time) (bool, error)
}
