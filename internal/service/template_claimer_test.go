package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dafibh/fortuna/fortuna-engine/internal/domain"
	"github.com/dafibh/fortuna/fortuna-engine/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplateClaimer_ClaimDue_MonthEndAnchor(t *testing.T) {
	f := setupEngine()
	f.store.AddTemplate(newTemplate(1, 1200, domain.DirectionExpense, domain.FrequencyMonthly, at(2026, time.January, 31, 9)))
	now := at(2026, time.February, 1, 0)

	result, err := f.claimer.ClaimDue(context.Background(), now)

	require.NoError(t, err)
	require.Len(t, result.Claimed, 1)
	claimed := result.Claimed[0]
	assert.True(t, claimed.DueAt.Equal(at(2026, time.January, 31, 9)))
	assert.True(t, claimed.NextRun.Equal(at(2026, time.February, 28, 9)))

	stored := f.store.Template(1)
	assert.True(t, stored.NextRunAt.Equal(at(2026, time.February, 28, 9)))
	require.NotNil(t, stored.LastRunAt)
	assert.True(t, stored.LastRunAt.Equal(now))
	assert.True(t, stored.NextRunAt.After(*stored.LastRunAt))
	assert.True(t, stored.Active)
}

func TestTemplateClaimer_ClaimDue_NotYetDue(t *testing.T) {
	f := setupEngine()
	f.store.AddTemplate(newTemplate(1, 100, domain.DirectionExpense, domain.FrequencyDaily, at(2026, time.March, 2, 9)))

	result, err := f.claimer.ClaimDue(context.Background(), at(2026, time.March, 2, 8))

	require.NoError(t, err)
	assert.Empty(t, result.Claimed)
	assert.True(t, f.store.Template(1).NextRunAt.Equal(at(2026, time.March, 2, 9)))
}

func TestTemplateClaimer_ClaimDue_DueExactlyNow(t *testing.T) {
	f := setupEngine()
	due := at(2026, time.March, 2, 9)
	f.store.AddTemplate(newTemplate(1, 100, domain.DirectionExpense, domain.FrequencyDaily, due))

	result, err := f.claimer.ClaimDue(context.Background(), due)

	require.NoError(t, err)
	require.Len(t, result.Claimed, 1)
	assert.True(t, result.Claimed[0].NextRun.Equal(at(2026, time.March, 3, 9)))
}

func TestTemplateClaimer_ClaimDue_SecondPassClaimsNothing(t *testing.T) {
	f := setupEngine()
	f.store.AddTemplate(newTemplate(1, 100, domain.DirectionExpense, domain.FrequencyWeekly, at(2026, time.March, 2, 9)))
	now := at(2026, time.March, 2, 12)

	first, err := f.claimer.ClaimDue(context.Background(), now)
	require.NoError(t, err)
	second, err := f.claimer.ClaimDue(context.Background(), now)
	require.NoError(t, err)

	assert.Len(t, first.Claimed, 1)
	assert.Empty(t, second.Claimed)
}

func TestTemplateClaimer_ClaimDue_PreconditionLost(t *testing.T) {
	f := setupEngine()
	f.store.AddTemplate(newTemplate(1, 100, domain.DirectionExpense, domain.FrequencyDaily, at(2026, time.March, 2, 9)))
	f.templates.ClaimFn = func(ctx context.Context, update domain.ClaimUpdate) (bool, error) {
		return false, nil
	}

	result, err := f.claimer.ClaimDue(context.Background(), at(2026, time.March, 2, 12))

	require.NoError(t, err)
	assert.Empty(t, result.Claimed)
	assert.Equal(t, 1, result.Skipped)
	assert.Empty(t, result.Errors)
}

func TestTemplateClaimer_ClaimDue_SkipsMissedOccurrences(t *testing.T) {
	f := setupEngine()
	f.store.AddTemplate(newTemplate(1, 100, domain.DirectionExpense, domain.FrequencyMonthly, at(2026, time.January, 31, 9)))
	now := at(2026, time.April, 2, 0)

	result, err := f.claimer.ClaimDue(context.Background(), now)

	require.NoError(t, err)
	require.Len(t, result.Claimed, 1)
	assert.True(t, result.Claimed[0].DueAt.Equal(at(2026, time.January, 31, 9)))
	assert.True(t, result.Claimed[0].NextRun.Equal(at(2026, time.April, 30, 9)))
}

func TestTemplateClaimer_ClaimDue_DeactivatesPastEndDate(t *testing.T) {
	f := setupEngine()
	template := newTemplate(1, 100, domain.DirectionExpense, domain.FrequencyMonthly, at(2026, time.March, 15, 9))
	endDate := at(2026, time.March, 1, 0)
	template.EndDate = &endDate
	f.store.AddTemplate(template)

	result, err := f.claimer.ClaimDue(context.Background(), at(2026, time.March, 20, 0))

	require.NoError(t, err)
	assert.Empty(t, result.Claimed)
	assert.Equal(t, 1, result.Deactivated)
	stored := f.store.Template(1)
	assert.False(t, stored.Active)
	assert.Nil(t, stored.LastRunAt)
}

func TestTemplateClaimer_ClaimDue_LastOccurrenceDeactivates(t *testing.T) {
	f := setupEngine()
	template := newTemplate(1, 100, domain.DirectionExpense, domain.FrequencyMonthly, at(2026, time.March, 15, 9))
	endDate := at(2026, time.March, 31, 0)
	template.EndDate = &endDate
	f.store.AddTemplate(template)

	result, err := f.claimer.ClaimDue(context.Background(), at(2026, time.March, 15, 10))

	require.NoError(t, err)
	require.Len(t, result.Claimed, 1)
	assert.False(t, result.Claimed[0].Template.Active)
	assert.Equal(t, 1, result.Deactivated)
	assert.False(t, f.store.Template(1).Active)
}

func TestTemplateClaimer_ClaimDue_UnknownFrequency(t *testing.T) {
	f := setupEngine()
	f.store.AddTemplate(newTemplate(1, 100, domain.DirectionExpense, "FORTNIGHTLY", at(2026, time.March, 2, 9)))
	f.store.AddTemplate(newTemplate(2, 100, domain.DirectionExpense, domain.FrequencyDaily, at(2026, time.March, 2, 9)))

	result, err := f.claimer.ClaimDue(context.Background(), at(2026, time.March, 2, 12))

	require.NoError(t, err)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, int64(1), result.Errors[0].TemplateID)
	assert.Contains(t, result.Errors[0].Reason, domain.ErrInvalidFrequency.Error())
	require.Len(t, result.Claimed, 1)
	assert.Equal(t, int64(2), result.Claimed[0].Template.ID)
	assert.True(t, f.store.Template(1).NextRunAt.Equal(at(2026, time.March, 2, 9)), "invalid template must be left untouched")
}

func TestTemplateClaimer_ClaimDue_ListError(t *testing.T) {
	f := setupEngine()
	f.templates.ListDueFn = func(ctx context.Context, now time.Time) ([]*domain.RecurringTemplate, error) {
		return nil, errors.New("connection refused")
	}

	_, err := f.claimer.ClaimDue(context.Background(), at(2026, time.March, 2, 12))

	assert.ErrorContains(t, err, "connection refused")
}

func TestTemplateClaimer_ClaimDue_ClaimErrorContinues(t *testing.T) {
	f := setupEngine()
	f.store.AddTemplate(newTemplate(1, 100, domain.DirectionExpense, domain.FrequencyDaily, at(2026, time.March, 2, 8)))
	f.store.AddTemplate(newTemplate(2, 100, domain.DirectionExpense, domain.FrequencyDaily, at(2026, time.March, 2, 9)))

	inner := testutil.NewMockRecurringTemplateRepository(f.store)
	f.templates.ClaimFn = func(ctx context.Context, update domain.ClaimUpdate) (bool, error) {
		if update.TemplateID == 1 {
			return false, errors.New("deadlock detected")
		}
		return inner.Claim(ctx, update)
	}

	result, err := f.claimer.ClaimDue(context.Background(), at(2026, time.March, 2, 12))

	require.NoError(t, err)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, int64(1), result.Errors[0].TemplateID)
	require.Len(t, result.Claimed, 1)
	assert.Equal(t, int64(2), result.Claimed[0].Template.ID)
}

func TestTemplateClaimer_ClaimDue_UsesOwnerTimezone(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Skip("tzdata not available")
	}
	f := setupEngine()
	// Jan 31 09:00 in Tokyo
	due := time.Date(2026, time.January, 31, 9, 0, 0, 0, loc)
	template := newTemplate(1, 100, domain.DirectionExpense, domain.FrequencyMonthly, due)
	template.Timezone = "Asia/Tokyo"
	f.store.AddTemplate(template)

	result, err := f.claimer.ClaimDue(context.Background(), due.Add(time.Hour))

	require.NoError(t, err)
	require.Len(t, result.Claimed, 1)
	assert.True(t, result.Claimed[0].NextRun.Equal(time.Date(2026, time.February, 28, 9, 0, 0, 0, loc)))
}
