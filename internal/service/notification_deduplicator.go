package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dafibh/fortuna/fortuna-engine/internal/domain"
	"github.com/dafibh/fortuna/fortuna-engine/internal/events"
	"github.com/rs/zerolog"
)

// BudgetAlertPayload is the notification body for budget alerts
type BudgetAlertPayload struct {
	BudgetID       int64            `json:"budgetId"`
	BudgetName     string           `json:"budgetName"`
	Tier           domain.AlertTier `json:"tier"`
	PeriodStart    time.Time        `json:"periodStart"`
	PeriodEnd      time.Time        `json:"periodEnd"`
	Spent          int64            `json:"spent"`
	Limit          int64            `json:"limit"`
	SpentFormatted string           `json:"spentFormatted"`
	LimitFormatted string           `json:"limitFormatted"`
	Ratio          float64          `json:"ratio"`
}

// NotificationDeduplicator delivers each (budget, period, tier) alert at most once
type NotificationDeduplicator struct {
	alertRepo domain.AlertRepository
	publisher events.Publisher
	logger    zerolog.Logger
}

// NewNotificationDeduplicator creates a new NotificationDeduplicator
func NewNotificationDeduplicator(alertRepo domain.AlertRepository, publisher events.Publisher, logger zerolog.Logger) *NotificationDeduplicator {
	if publisher == nil {
		publisher = events.NoOpPublisher{}
	}
	return &NotificationDeduplicator{
		alertRepo: alertRepo,
		publisher: publisher,
		logger:    logger.With().Str("component", "notification_deduplicator").Logger(),
	}
}

// Deliver records the alert and its notification together. It reports false without
// error when the alert was already delivered for this budget period and tier.
func (d *NotificationDeduplicator) Deliver(ctx context.Context, candidate domain.AlertCandidate) (bool, error) {
	b := candidate.Budget

	payload, err := json.Marshal(BudgetAlertPayload{
		BudgetID:       b.ID,
		BudgetName:     b.Name,
		Tier:           candidate.Tier,
		PeriodStart:    candidate.Window.Start,
		PeriodEnd:      candidate.Window.End,
		Spent:          candidate.Spent,
		Limit:          b.LimitAmount,
		SpentFormatted: domain.FormatMinor(candidate.Spent),
		LimitFormatted: domain.FormatMinor(b.LimitAmount),
		Ratio:          candidate.Ratio,
	})
	if err != nil {
		return false, fmt.Errorf("failed to encode alert payload: %w", err)
	}

	created, err := d.alertRepo.RecordAlert(ctx,
		&domain.AlertRecord{
			BudgetID:    b.ID,
			PeriodStart: candidate.Window.Start,
			Tier:        candidate.Tier,
			DeliveredAt: time.Now().UTC(),
		},
		&domain.Notification{
			UserID:  b.UserID,
			Kind:    candidate.Tier.NotificationKind(),
			Payload: payload,
		},
	)
	if err != nil {
		return false, fmt.Errorf("failed to record alert for budget %d: %w", b.ID, err)
	}
	if created == nil {
		d.logger.Debug().
			Int64("budget_id", b.ID).
			Str("tier", string(candidate.Tier)).
			Time("period_start", candidate.Window.Start).
			Msg("Alert already delivered this period")
		return false, nil
	}

	d.logger.Info().
		Int64("budget_id", b.ID).
		Int64("notification_id", created.ID).
		Str("tier", string(candidate.Tier)).
		Float64("ratio", candidate.Ratio).
		Msg("Budget alert delivered")

	if err := d.publisher.Publish(ctx, events.NotificationCreated(created.UserID, created)); err != nil {
		d.logger.Warn().Err(err).Int64("notification_id", created.ID).Msg("Failed to publish notification event")
	}
	return true, nil
}
