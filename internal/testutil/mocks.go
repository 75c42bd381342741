package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dafibh/fortuna/fortuna-engine/internal/domain"
	"github.com/dafibh/fortuna/fortuna-engine/internal/events"
)

// MockRecurringTemplateRepository is a mock implementation of domain.RecurringTemplateRepository
type MockRecurringTemplateRepository struct {
	store        *Store
	ListDueFn    func(ctx context.Context, now time.Time) ([]*domain.RecurringTemplate, error)
	ClaimFn      func(ctx context.Context, update domain.ClaimUpdate) (bool, error)
	DeactivateFn func(ctx context.Context, id int64, expectedNextRunAt time.Time) (bool, error)
}

// NewMockRecurringTemplateRepository creates a new MockRecurringTemplateRepository
func NewMockRecurringTemplateRepository(store *Store) *MockRecurringTemplateRepository {
	return &MockRecurringTemplateRepository{store: store}
}

// ListDue returns copies of active templates due at now, oldest first
func (m *MockRecurringTemplateRepository) ListDue(ctx context.Context, now time.Time) ([]*domain.RecurringTemplate, error) {
	if m.ListDueFn != nil {
		return m.ListDueFn(ctx, now)
	}
	m.store.mu.Lock()
	defer m.store.mu.Unlock()

	var due []*domain.RecurringTemplate
	for _, t := range m.store.templates {
		if t.Active && !t.NextRunAt.After(now) {
			due = append(due, copyTemplate(t))
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if !due[i].NextRunAt.Equal(due[j].NextRunAt) {
			return due[i].NextRunAt.Before(due[j].NextRunAt)
		}
		return due[i].ID < due[j].ID
	})
	return due, nil
}

// Claim applies the update only when the stored next run still matches
func (m *MockRecurringTemplateRepository) Claim(ctx context.Context, update domain.ClaimUpdate) (bool, error) {
	if m.ClaimFn != nil {
		return m.ClaimFn(ctx, update)
	}
	m.store.mu.Lock()
	defer m.store.mu.Unlock()

	t, ok := m.store.templates[update.TemplateID]
	if !ok || !t.Active || !t.NextRunAt.Equal(update.ExpectedNextRunAt) {
		return false, nil
	}
	lastRun := update.LastRunAt
	t.NextRunAt = update.NextRunAt
	t.LastRunAt = &lastRun
	t.Active = update.Active
	return true, nil
}

// Deactivate marks the template inactive when the stored next run still matches
func (m *MockRecurringTemplateRepository) Deactivate(ctx context.Context, id int64, expectedNextRunAt time.Time) (bool, error) {
	if m.DeactivateFn != nil {
		return m.DeactivateFn(ctx, id, expectedNextRunAt)
	}
	m.store.mu.Lock()
	defer m.store.mu.Unlock()

	t, ok := m.store.templates[id]
	if !ok || !t.Active || !t.NextRunAt.Equal(expectedNextRunAt) {
		return false, nil
	}
	t.Active = false
	return true, nil
}

// MockTransactionRepository is a mock implementation of domain.TransactionRepository
type MockTransactionRepository struct {
	store               *Store
	CreateWithBalanceFn func(ctx context.Context, transaction *domain.Transaction) (*domain.Transaction, error)
	SumExpensesFn       func(ctx context.Context, scope domain.SpendScope) (int64, error)
	// BalanceUpdateErr, when set, fails the balance write after the insert was staged.
	// Neither write is applied, as with a rolled back database transaction.
	BalanceUpdateErr func(walletID, delta int64) error
}

// NewMockTransactionRepository creates a new MockTransactionRepository
func NewMockTransactionRepository(store *Store) *MockTransactionRepository {
	return &MockTransactionRepository{store: store}
}

// CreateWithBalance inserts the transaction and applies its signed amount atomically
func (m *MockTransactionRepository) CreateWithBalance(ctx context.Context, transaction *domain.Transaction) (*domain.Transaction, error) {
	if m.CreateWithBalanceFn != nil {
		return m.CreateWithBalanceFn(ctx, transaction)
	}
	m.store.mu.Lock()
	defer m.store.mu.Unlock()

	wallet, ok := m.store.wallets[transaction.WalletID]
	if !ok || wallet.DeletedAt != nil || wallet.UserID != transaction.UserID {
		return nil, domain.ErrWalletNotFound
	}
	category, ok := m.store.categories[transaction.CategoryID]
	if !ok || category.DeletedAt != nil || category.UserID != transaction.UserID {
		return nil, domain.ErrCategoryNotFound
	}

	var key occurrenceKey
	if transaction.TemplateID != nil {
		key = occurrenceKey{templateID: *transaction.TemplateID, date: transaction.TransactionDate.UnixNano()}
		if _, exists := m.store.occurrences[key]; exists {
			return nil, domain.ErrClaimLost
		}
	}

	delta := transaction.SignedAmount()
	if m.BalanceUpdateErr != nil {
		if err := m.BalanceUpdateErr(transaction.WalletID, delta); err != nil {
			return nil, err
		}
	}

	created := *transaction
	created.ID = m.store.nextTransactionID
	created.CreatedAt = time.Now().UTC()
	m.store.nextTransactionID++
	stored := created
	m.store.transactions = append(m.store.transactions, &stored)
	if transaction.TemplateID != nil {
		m.store.occurrences[key] = struct{}{}
	}
	wallet.Balance += delta
	return &created, nil
}

// SumExpenses totals non-deleted expenses in scope
func (m *MockTransactionRepository) SumExpenses(ctx context.Context, scope domain.SpendScope) (int64, error) {
	if m.SumExpensesFn != nil {
		return m.SumExpensesFn(ctx, scope)
	}
	m.store.mu.Lock()
	defer m.store.mu.Unlock()

	var total int64
	for _, tx := range m.store.transactions {
		if tx.UserID != scope.UserID || tx.Direction != domain.DirectionExpense || tx.DeletedAt != nil {
			continue
		}
		if tx.TransactionDate.Before(scope.Start) || !tx.TransactionDate.Before(scope.End) {
			continue
		}
		if scope.CategoryID != nil && tx.CategoryID != *scope.CategoryID {
			continue
		}
		if scope.WalletID != nil && tx.WalletID != *scope.WalletID {
			continue
		}
		total += tx.Amount
	}
	return total, nil
}

// MockBudgetRepository is a mock implementation of domain.BudgetRepository
type MockBudgetRepository struct {
	store                *Store
	ListActiveForScopeFn func(ctx context.Context, userID, categoryID, walletID int64) ([]*domain.Budget, error)
}

// NewMockBudgetRepository creates a new MockBudgetRepository
func NewMockBudgetRepository(store *Store) *MockBudgetRepository {
	return &MockBudgetRepository{store: store}
}

// ListActiveForScope returns active budgets scoped to the category or the wallet
func (m *MockBudgetRepository) ListActiveForScope(ctx context.Context, userID, categoryID, walletID int64) ([]*domain.Budget, error) {
	if m.ListActiveForScopeFn != nil {
		return m.ListActiveForScopeFn(ctx, userID, categoryID, walletID)
	}
	m.store.mu.Lock()
	defer m.store.mu.Unlock()

	var out []*domain.Budget
	for _, b := range m.store.budgets {
		if b.UserID != userID || !b.Active {
			continue
		}
		if (b.CategoryID != nil && *b.CategoryID == categoryID) || (b.WalletID != nil && *b.WalletID == walletID) {
			c := *b
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// MockNotificationRepository implements domain.NotificationRepository and domain.AlertRepository
type MockNotificationRepository struct {
	store         *Store
	CreateFn      func(ctx context.Context, notification *domain.Notification) (*domain.Notification, error)
	RecordAlertFn func(ctx context.Context, record *domain.AlertRecord, notification *domain.Notification) (*domain.Notification, error)
}

// NewMockNotificationRepository creates a new MockNotificationRepository
func NewMockNotificationRepository(store *Store) *MockNotificationRepository {
	return &MockNotificationRepository{store: store}
}

// Create stores a notification
func (m *MockNotificationRepository) Create(ctx context.Context, notification *domain.Notification) (*domain.Notification, error) {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, notification)
	}
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	return m.insertLocked(notification), nil
}

// RecordAlert inserts the alert record and notification unless the key exists
func (m *MockNotificationRepository) RecordAlert(ctx context.Context, record *domain.AlertRecord, notification *domain.Notification) (*domain.Notification, error) {
	if m.RecordAlertFn != nil {
		return m.RecordAlertFn(ctx, record, notification)
	}
	m.store.mu.Lock()
	defer m.store.mu.Unlock()

	key := alertKey{budgetID: record.BudgetID, periodStart: record.PeriodStart.UnixNano(), tier: record.Tier}
	if _, exists := m.store.alerts[key]; exists {
		return nil, nil
	}
	c := *record
	m.store.alerts[key] = &c
	return m.insertLocked(notification), nil
}

func (m *MockNotificationRepository) insertLocked(notification *domain.Notification) *domain.Notification {
	created := *notification
	created.ID = m.store.nextNotificationID
	created.CreatedAt = time.Now().UTC()
	m.store.nextNotificationID++
	stored := created
	m.store.notifications = append(m.store.notifications, &stored)
	return &created
}

// RecordingPublisher is an events.Publisher that keeps every published event
type RecordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	Err    error
}

// NewRecordingPublisher creates a new RecordingPublisher
func NewRecordingPublisher() *RecordingPublisher {
	return &RecordingPublisher{}
}

// Publish records the event, then returns Err
func (p *RecordingPublisher) Publish(ctx context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.Err
}

// Events returns the events published so far
func (p *RecordingPublisher) Events() []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.Event(nil), p.events...)
}

// MockRunReportRepository records archived run summaries
type MockRunReportRepository struct {
	mu     sync.Mutex
	Saved  []*domain.RunSummary
	SaveFn func(ctx context.Context, summary *domain.RunSummary) (string, error)
}

// Save records the summary
func (m *MockRunReportRepository) Save(ctx context.Context, summary *domain.RunSummary) (string, error) {
	if m.SaveFn != nil {
		return m.SaveFn(ctx, summary)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Saved = append(m.Saved, summary)
	return "runs/" + summary.RunID.String() + ".json", nil
}
