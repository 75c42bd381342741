package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dafibh/fortuna/fortuna-engine/internal/domain"
	"github.com/dafibh/fortuna/fortuna-engine/internal/events"
	"github.com/dafibh/fortuna/fortuna-engine/internal/repository/storage"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// DefaultProcessorConcurrency is the number of templates processed in parallel
const DefaultProcessorConcurrency = 4

// RecurringProcessedPayload is the notification body sent when a template fires
type RecurringProcessedPayload struct {
	TemplateID      int64            `json:"templateId"`
	TransactionID   int64            `json:"transactionId"`
	Description     string           `json:"description"`
	Amount          int64            `json:"amount"`
	AmountFormatted string           `json:"amountFormatted"`
	Direction       domain.Direction `json:"direction"`
	WalletID        int64            `json:"walletId"`
	DueAt           time.Time        `json:"dueAt"`
	NextRunAt       time.Time        `json:"nextRunAt"`
	Active          bool             `json:"active"`
}

// RecurringProcessorConfig holds configuration for the processor
type RecurringProcessorConfig struct {
	Concurrency int
}

// RecurringProcessor runs claim, materialize, evaluate and deliver for every due template
type RecurringProcessor struct {
	claimer          *TemplateClaimer
	materializer     *TransactionMaterializer
	evaluator        *BudgetAlertEvaluator
	deduplicator     *NotificationDeduplicator
	notificationRepo domain.NotificationRepository
	publisher        events.Publisher
	reports          storage.RunReportRepository
	logger           zerolog.Logger
	concurrency      int
	clock            func() time.Time
}

// NewRecurringProcessor creates a new RecurringProcessor
func NewRecurringProcessor(
	claimer *TemplateClaimer,
	materializer *TransactionMaterializer,
	evaluator *BudgetAlertEvaluator,
	deduplicator *NotificationDeduplicator,
	notificationRepo domain.NotificationRepository,
	publisher events.Publisher,
	reports storage.RunReportRepository,
	logger zerolog.Logger,
	config RecurringProcessorConfig,
) *RecurringProcessor {
	if config.Concurrency <= 0 {
		config.Concurrency = DefaultProcessorConcurrency
	}
	if publisher == nil {
		publisher = events.NoOpPublisher{}
	}
	if reports == nil {
		reports = storage.NoOpRunReportRepository{}
	}

	return &RecurringProcessor{
		claimer:          claimer,
		materializer:     materializer,
		evaluator:        evaluator,
		deduplicator:     deduplicator,
		notificationRepo: notificationRepo,
		publisher:        publisher,
		reports:          reports,
		logger:           logger.With().Str("component", "recurring_processor").Logger(),
		concurrency:      config.Concurrency,
		clock:            time.Now,
	}
}

// templateOutcome is what one template's pipeline contributed to the run
type templateOutcome struct {
	transactions int
	alerts       int
	skipped      bool
	errors       []domain.TemplateError
}

func (o *templateOutcome) fail(templateID int64, err error) {
	o.errors = append(o.errors, domain.TemplateError{TemplateID: templateID, Reason: err.Error()})
}

// ProcessDue processes every template due at now. Per-template failures end up in
// the summary; an error is returned only when due templates could not be listed.
func (p *RecurringProcessor) ProcessDue(ctx context.Context, now time.Time) (*domain.RunSummary, error) {
	started := p.clock()
	summary := domain.NewRunSummary(started)
	logger := p.logger.With().Str("run_id", summary.RunID.String()).Logger()

	logger.Info().Time("now", now).Msg("Starting recurring run")

	claims, err := p.claimer.ClaimDue(ctx, now)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to claim due templates")
		return nil, err
	}

	summary.ProcessedCount = len(claims.Claimed)
	summary.DeactivatedCount = claims.Deactivated
	summary.SkippedCount = claims.Skipped
	summary.Errors = append(summary.Errors, claims.Errors...)

	// Claims are committed; their pipelines must finish even if the caller goes away,
	// otherwise the advanced templates would never get their transaction.
	pipelineCtx := context.WithoutCancel(ctx)

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(p.concurrency)

	for _, claimed := range claims.Claimed {
		g.Go(func() error {
			outcome := p.processClaimed(pipelineCtx, claimed, now, logger)

			mu.Lock()
			defer mu.Unlock()
			summary.CreatedTransactionCount += outcome.transactions
			summary.CreatedAlertCount += outcome.alerts
			if outcome.skipped {
				summary.SkippedCount++
			}
			summary.Errors = append(summary.Errors, outcome.errors...)
			return nil
		})
	}
	// Goroutines never return errors; failures are recorded per template
	_ = g.Wait()

	summary.DurationMs = p.clock().Sub(started).Milliseconds()

	if key, err := p.reports.Save(pipelineCtx, summary); err != nil {
		logger.Warn().Err(err).Msg("Failed to archive run summary")
	} else if key != "" {
		logger.Debug().Str("key", key).Msg("Archived run summary")
	}
	if err := p.publisher.Publish(pipelineCtx, events.RecurringRunProcessed(summary)); err != nil {
		logger.Warn().Err(err).Msg("Failed to publish run event")
	}

	logger.Info().
		Int("processed", summary.ProcessedCount).
		Int("transactions", summary.CreatedTransactionCount).
		Int("alerts", summary.CreatedAlertCount).
		Int("deactivated", summary.DeactivatedCount).
		Int("skipped", summary.SkippedCount).
		Int("errors", len(summary.Errors)).
		Int64("duration_ms", summary.DurationMs).
		Msg("Completed recurring run")

	return summary, nil
}

// processClaimed runs one template's steps in order; each step sees the previous
// step's committed writes
func (p *RecurringProcessor) processClaimed(ctx context.Context, claimed domain.ClaimedTemplate, now time.Time, logger zerolog.Logger) templateOutcome {
	var outcome templateOutcome
	t := claimed.Template
	logger = logger.With().Int64("template_id", t.ID).Logger()

	tx, err := p.materializer.Materialize(ctx, claimed)
	if err != nil {
		if errors.Is(err, domain.ErrClaimLost) {
			logger.Debug().Time("due_at", claimed.DueAt).Msg("Occurrence already materialized")
			outcome.skipped = true
			return outcome
		}
		logger.Error().Err(err).Bool("referential", domain.IsReferentialError(err)).Msg("Failed to materialize template")
		outcome.fail(t.ID, err)
		return outcome
	}
	outcome.transactions = 1

	if err := p.publisher.Publish(ctx, events.TransactionCreated(tx.UserID, tx)); err != nil {
		logger.Warn().Err(err).Int64("transaction_id", tx.ID).Msg("Failed to publish transaction event")
	}

	if err := p.notifyProcessed(ctx, claimed, tx); err != nil {
		logger.Error().Err(err).Msg("Failed to create recurring notification")
		outcome.fail(t.ID, err)
	}

	candidates, err := p.evaluator.Evaluate(ctx, []*domain.Transaction{tx}, now)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to evaluate budgets")
		outcome.fail(t.ID, err)
	}

	for _, candidate := range candidates {
		delivered, err := p.deduplicator.Deliver(ctx, candidate)
		if err != nil {
			logger.Error().Err(err).Int64("budget_id", candidate.Budget.ID).Msg("Failed to deliver budget alert")
			outcome.fail(t.ID, err)
			continue
		}
		if delivered {
			outcome.alerts++
		}
	}

	return outcome
}

func (p *RecurringProcessor) notifyProcessed(ctx context.Context, claimed domain.ClaimedTemplate, tx *domain.Transaction) error {
	payload, err := json.Marshal(RecurringProcessedPayload{
		TemplateID:      claimed.Template.ID,
		TransactionID:   tx.ID,
		Description:     tx.Description,
		Amount:          tx.Amount,
		AmountFormatted: domain.FormatMinor(tx.Amount),
		Direction:       tx.Direction,
		WalletID:        tx.WalletID,
		DueAt:           claimed.DueAt,
		NextRunAt:       claimed.NextRun,
		Active:          claimed.Template.Active,
	})
	if err != nil {
		return fmt.Errorf("failed to encode recurring payload: %w", err)
	}

	created, err := p.notificationRepo.Create(ctx, &domain.Notification{
		UserID:  tx.UserID,
		Kind:    domain.NotificationKindRecurringProcessed,
		Payload: payload,
	})
	if err != nil {
		return fmt.Errorf("failed to create recurring notification: %w", err)
	}

	if err := p.publisher.Publish(ctx, events.NotificationCreated(created.UserID, created)); err != nil {
		p.logger.Warn().Err(err).Int64("notification_id", created.ID).Msg("Failed to publish notification event")
	}
	return nil
}
