package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/dafibh/fortuna/fortuna-engine/internal/domain"
	"github.com/dafibh/fortuna/fortuna-engine/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func candidateFor(budget *domain.Budget, tier domain.AlertTier, spent int64, periodStart time.Time) domain.AlertCandidate {
	return domain.AlertCandidate{
		Budget: budget,
		Window: domain.PeriodWindow{Start: periodStart, End: periodStart.AddDate(0, 1, 0)},
		Tier:   tier,
		Spent:  spent,
		Ratio:  float64(spent) / float64(budget.LimitAmount),
	}
}

func TestNotificationDeduplicator_DeliversOncePerTier(t *testing.T) {
	f := setupEngine()
	budget := newCategoryBudget(100, 1000, domain.BudgetPeriodMonthly)
	period := at(2026, time.February, 1, 0)

	delivered, err := f.deduplicator.Deliver(context.Background(), candidateFor(budget, domain.AlertTierWarning, 850, period))
	require.NoError(t, err)
	assert.True(t, delivered)

	delivered, err = f.deduplicator.Deliver(context.Background(), candidateFor(budget, domain.AlertTierWarning, 850, period))
	require.NoError(t, err)
	assert.False(t, delivered, "same tier in the same period is suppressed")

	delivered, err = f.deduplicator.Deliver(context.Background(), candidateFor(budget, domain.AlertTierExceeded, 1100, period))
	require.NoError(t, err)
	assert.True(t, delivered, "tiers are independent")

	assert.Len(t, f.store.Notifications(domain.NotificationKindBudgetWarning), 1)
	assert.Len(t, f.store.Notifications(domain.NotificationKindBudgetExceeded), 1)
	assert.Len(t, f.store.AlertRecords(), 2)
}

func TestNotificationDeduplicator_NewPeriodDeliversAgain(t *testing.T) {
	f := setupEngine()
	budget := newCategoryBudget(100, 1000, domain.BudgetPeriodMonthly)

	first, err := f.deduplicator.Deliver(context.Background(), candidateFor(budget, domain.AlertTierWarning, 850, at(2026, time.February, 1, 0)))
	require.NoError(t, err)
	second, err := f.deduplicator.Deliver(context.Background(), candidateFor(budget, domain.AlertTierWarning, 850, at(2026, time.March, 1, 0)))
	require.NoError(t, err)

	assert.True(t, first)
	assert.True(t, second)
	assert.Len(t, f.store.Notifications(domain.NotificationKindBudgetWarning), 2)
}

func TestNotificationDeduplicator_Payload(t *testing.T) {
	f := setupEngine()
	budget := newCategoryBudget(100, 100000, domain.BudgetPeriodMonthly)

	_, err := f.deduplicator.Deliver(context.Background(), candidateFor(budget, domain.AlertTierWarning, 85050, at(2026, time.February, 1, 0)))
	require.NoError(t, err)

	notifications := f.store.Notifications(domain.NotificationKindBudgetWarning)
	require.Len(t, notifications, 1)
	assert.Equal(t, testUserID, notifications[0].UserID)

	var payload BudgetAlertPayload
	require.NoError(t, json.Unmarshal(notifications[0].Payload, &payload))
	assert.Equal(t, int64(100), payload.BudgetID)
	assert.Equal(t, domain.AlertTierWarning, payload.Tier)
	assert.Equal(t, "850.50", payload.SpentFormatted)
	assert.Equal(t, "1000.00", payload.LimitFormatted)
	assert.InDelta(t, 0.8505, payload.Ratio, 1e-9)
}

func TestNotificationDeduplicator_PublishesAfterRecord(t *testing.T) {
	f := setupEngine()
	budget := newCategoryBudget(100, 1000, domain.BudgetPeriodMonthly)

	_, err := f.deduplicator.Deliver(context.Background(), candidateFor(budget, domain.AlertTierExceeded, 1000, at(2026, time.February, 1, 0)))
	require.NoError(t, err)
	_, err = f.deduplicator.Deliver(context.Background(), candidateFor(budget, domain.AlertTierExceeded, 1000, at(2026, time.February, 1, 0)))
	require.NoError(t, err)

	published := f.publisher.Events()
	require.Len(t, published, 1, "suppressed alerts are not published")
	assert.Equal(t, events.EntityTypeNotification, published[0].Entity)
	assert.Equal(t, testUserID, published[0].UserID)
}

func TestNotificationDeduplicator_PublishFailureStillDelivers(t *testing.T) {
	f := setupEngine()
	f.publisher.Err = errors.New("broker unavailable")
	budget := newCategoryBudget(100, 1000, domain.BudgetPeriodMonthly)

	delivered, err := f.deduplicator.Deliver(context.Background(), candidateFor(budget, domain.AlertTierWarning, 900, at(2026, time.February, 1, 0)))

	require.NoError(t, err)
	assert.True(t, delivered)
}

func TestNotificationDeduplicator_RecordError(t *testing.T) {
	f := setupEngine()
	f.notifications.RecordAlertFn = func(ctx context.Context, record *domain.AlertRecord, notification *domain.Notification) (*domain.Notification, error) {
		return nil, errors.New("unique index corrupted")
	}
	budget := newCategoryBudget(100, 1000, domain.BudgetPeriodMonthly)

	delivered, err := f.deduplicator.Deliver(context.Background(), candidateFor(budget, domain.AlertTierWarning, 900, at(2026, time.February, 1, 0)))

	assert.Error(t, err)
	assert.False(t, delivered)
	assert.Empty(t, f.publisher.Events())
}
