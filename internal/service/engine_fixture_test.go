package service

import (
	"fmt"
	"time"

	"github.com/dafibh/fortuna/fortuna-engine/internal/domain"
	"github.com/dafibh/fortuna/fortuna-engine/internal/testutil"
	"github.com/rs/zerolog"
)

const (
	testUserID        int64 = 1
	testWalletID      int64 = 10
	testCategoryID    int64 = 20
	testOtherCategory int64 = 21
	testStartBalance  int64 = 500000
)

// engineFixture wires every engine component to one in-memory store
type engineFixture struct {
	store         *testutil.Store
	templates     *testutil.MockRecurringTemplateRepository
	transactions  *testutil.MockTransactionRepository
	budgets       *testutil.MockBudgetRepository
	notifications *testutil.MockNotificationRepository
	publisher     *testutil.RecordingPublisher
	reports       *testutil.MockRunReportRepository

	claimer      *TemplateClaimer
	materializer *TransactionMaterializer
	evaluator    *BudgetAlertEvaluator
	deduplicator *NotificationDeduplicator
	processor    *RecurringProcessor
}

func setupEngine() *engineFixture {
	store := testutil.NewStore()
	store.AddWallet(&domain.Wallet{ID: testWalletID, UserID: testUserID, Name: "Main", Balance: testStartBalance})
	store.AddCategory(&domain.Category{ID: testCategoryID, UserID: testUserID, Name: "Rent"})
	store.AddCategory(&domain.Category{ID: testOtherCategory, UserID: testUserID, Name: "Salary"})

	f := &engineFixture{
		store:         store,
		templates:     testutil.NewMockRecurringTemplateRepository(store),
		transactions:  testutil.NewMockTransactionRepository(store),
		budgets:       testutil.NewMockBudgetRepository(store),
		notifications: testutil.NewMockNotificationRepository(store),
		publisher:     testutil.NewRecordingPublisher(),
		reports:       &testutil.MockRunReportRepository{},
	}

	logger := zerolog.Nop()
	f.claimer = NewTemplateClaimer(f.templates, time.UTC, logger)
	f.materializer = NewTransactionMaterializer(f.transactions, logger)
	f.evaluator = NewBudgetAlertEvaluator(f.budgets, f.transactions, time.UTC, logger)
	f.deduplicator = NewNotificationDeduplicator(f.notifications, f.publisher, logger)
	f.processor = NewRecurringProcessor(
		f.claimer,
		f.materializer,
		f.evaluator,
		f.deduplicator,
		f.notifications,
		f.publisher,
		f.reports,
		logger,
		RecurringProcessorConfig{Concurrency: 4},
	)
	return f
}

func at(year int, month time.Month, day, hour int) time.Time {
	return time.Date(year, month, day, hour, 0, 0, 0, time.UTC)
}

func newTemplate(id, amount int64, direction domain.Direction, frequency domain.Frequency, nextRunAt time.Time) *domain.RecurringTemplate {
	return &domain.RecurringTemplate{
		ID:          id,
		UserID:      testUserID,
		Description: fmt.Sprintf("Template %d", id),
		Amount:      amount,
		Direction:   direction,
		CategoryID:  testCategoryID,
		WalletID:    testWalletID,
		Frequency:   frequency,
		StartDate:   nextRunAt,
		NextRunAt:   nextRunAt,
		Active:      true,
		Timezone:    "UTC",
	}
}

func newCategoryBudget(id, limit int64, period domain.BudgetPeriod) *domain.Budget {
	categoryID := testCategoryID
	return &domain.Budget{
		ID:          id,
		UserID:      testUserID,
		Name:        fmt.Sprintf("Budget %d", id),
		CategoryID:  &categoryID,
		LimitAmount: limit,
		Period:      period,
		Active:      true,
		Timezone:    "UTC",
	}
}

func expense(amount int64, date time.Time) *domain.Transaction {
	return &domain.Transaction{
		UserID:          testUserID,
		WalletID:        testWalletID,
		CategoryID:      testCategoryID,
		Amount:          amount,
		Direction:       domain.DirectionExpense,
		TransactionDate: date,
		Source:          "manual",
	}
}
