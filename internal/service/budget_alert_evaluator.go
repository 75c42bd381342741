package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dafibh/fortuna/fortuna-engine/internal/domain"
	"github.com/dafibh/fortuna/fortuna-engine/internal/util"
	"github.com/rs/zerolog"
)

// BudgetAlertEvaluator recomputes spend for the budgets a set of transactions
// touches and reports the highest threshold each one has crossed
type BudgetAlertEvaluator struct {
	budgetRepo      domain.BudgetRepository
	transactionRepo domain.TransactionRepository
	defaultLoc      *time.Location
	logger          zerolog.Logger
}

// NewBudgetAlertEvaluator creates a new BudgetAlertEvaluator
func NewBudgetAlertEvaluator(
	budgetRepo domain.BudgetRepository,
	transactionRepo domain.TransactionRepository,
	defaultLoc *time.Location,
	logger zerolog.Logger,
) *BudgetAlertEvaluator {
	if defaultLoc == nil {
		defaultLoc = time.UTC
	}
	return &BudgetAlertEvaluator{
		budgetRepo:      budgetRepo,
		transactionRepo: transactionRepo,
		defaultLoc:      defaultLoc,
		logger:          logger.With().Str("component", "budget_alert_evaluator").Logger(),
	}
}

// AlertTierFor returns the highest tier reached by spent against limit.
// EXCEEDED at 100%, WARNING at 80%, compared in integer arithmetic.
func AlertTierFor(spent, limit int64) (domain.AlertTier, bool) {
	if limit <= 0 {
		return "", false
	}
	if spent >= limit {
		return domain.AlertTierExceeded, true
	}
	if spent*5 >= limit*4 {
		return domain.AlertTierWarning, true
	}
	return "", false
}

// Evaluate returns at most one candidate per affected budget. Only expenses move
// spend. A budget is affected when it covers a transaction whose date falls inside
// the budget's period at now. Per-budget failures are joined into the returned error
// while candidates for other budgets are still returned.
func (e *BudgetAlertEvaluator) Evaluate(ctx context.Context, transactions []*domain.Transaction, now time.Time) ([]domain.AlertCandidate, error) {
	var (
		candidates []domain.AlertCandidate
		errs       []error
		evaluated  = make(map[int64]bool)
	)

	for _, tx := range transactions {
		if tx.Direction != domain.DirectionExpense {
			continue
		}

		budgets, err := e.budgetRepo.ListActiveForScope(ctx, tx.UserID, tx.CategoryID, tx.WalletID)
		if err != nil {
			errs = append(errs, fmt.Errorf("list budgets for transaction %d: %w", tx.ID, err))
			continue
		}

		for _, b := range budgets {
			if evaluated[b.ID] || !b.Covers(tx) {
				continue
			}
			if !b.Period.IsValid() {
				evaluated[b.ID] = true
				errs = append(errs, fmt.Errorf("budget %d: %w: %q", b.ID, domain.ErrInvalidPeriod, b.Period))
				continue
			}

			window := util.PeriodWindow(b.Period, now, e.location(b))
			if !window.Contains(tx.TransactionDate) {
				continue
			}
			evaluated[b.ID] = true

			if b.LimitAmount <= 0 {
				e.logger.Debug().Int64("budget_id", b.ID).Msg("Skipping budget without a positive limit")
				continue
			}

			candidate, ok, err := e.evaluateBudget(ctx, b, window)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if ok {
				candidates = append(candidates, candidate)
			}
		}
	}

	return candidates, errors.Join(errs...)
}

func (e *BudgetAlertEvaluator) evaluateBudget(ctx context.Context, b *domain.Budget, window domain.PeriodWindow) (domain.AlertCandidate, bool, error) {
	spent, err := e.transactionRepo.SumExpenses(ctx, domain.SpendScope{
		UserID:     b.UserID,
		CategoryID: b.CategoryID,
		WalletID:   b.WalletID,
		Start:      window.Start,
		End:        window.End,
	})
	if err != nil {
		return domain.AlertCandidate{}, false, fmt.Errorf("budget %d: failed to sum spend: %w", b.ID, err)
	}

	tier, ok := AlertTierFor(spent, b.LimitAmount)
	if !ok {
		return domain.AlertCandidate{}, false, nil
	}

	return domain.AlertCandidate{
		Budget: b,
		Window: window,
		Tier:   tier,
		Spent:  spent,
		Ratio:  float64(spent) / float64(b.LimitAmount),
	}, true, nil
}

func (e *BudgetAlertEvaluator) location(b *domain.Budget) *time.Location {
	loc, ok := util.LoadLocation(b.Timezone, e.defaultLoc)
	if !ok {
		e.logger.Warn().Int64("budget_id", b.ID).Str("timezone", b.Timezone).Msg("Unknown time zone, using default")
	}
	return loc
}
