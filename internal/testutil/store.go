package testutil

import (
	"sort"
	"sync"
	"time"

	"github.com/dafibh/fortuna/fortuna-engine/internal/domain"
)

type alertKey struct {
	budgetID    int64
	periodStart int64
	tier        domain.AlertTier
}

type occurrenceKey struct {
	templateID int64
	date       int64
}

// Store is a concurrency-safe in-memory database shared by the mock repositories.
// Each repository call runs under one lock, so multi-row writes are atomic.
type Store struct {
	mu sync.Mutex

	templates     map[int64]*domain.RecurringTemplate
	wallets       map[int64]*domain.Wallet
	categories    map[int64]*domain.Category
	budgets       map[int64]*domain.Budget
	transactions  []*domain.Transaction
	occurrences   map[occurrenceKey]struct{}
	alerts        map[alertKey]*domain.AlertRecord
	notifications []*domain.Notification

	nextTransactionID  int64
	nextNotificationID int64
}

// NewStore creates an empty Store
func NewStore() *Store {
	return &Store{
		templates:          make(map[int64]*domain.RecurringTemplate),
		wallets:            make(map[int64]*domain.Wallet),
		categories:         make(map[int64]*domain.Category),
		budgets:            make(map[int64]*domain.Budget),
		occurrences:        make(map[occurrenceKey]struct{}),
		alerts:             make(map[alertKey]*domain.AlertRecord),
		nextTransactionID:  1,
		nextNotificationID: 1,
	}
}

// AddWallet seeds a wallet
func (s *Store) AddWallet(w *domain.Wallet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *w
	s.wallets[w.ID] = &c
}

// AddCategory seeds a category
func (s *Store) AddCategory(c *domain.Category) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.categories[c.ID] = &cp
}

// AddTemplate seeds a recurring template
func (s *Store) AddTemplate(t *domain.RecurringTemplate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates[t.ID] = copyTemplate(t)
}

// AddBudget seeds a budget
func (s *Store) AddBudget(b *domain.Budget) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *b
	s.budgets[b.ID] = &c
}

// AddTransaction seeds an existing transaction without touching wallet balances
func (s *Store) AddTransaction(tx *domain.Transaction) *domain.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *tx
	c.ID = s.nextTransactionID
	s.nextTransactionID++
	s.transactions = append(s.transactions, &c)
	return &c
}

// DeleteWallet soft-deletes a wallet
func (s *Store) DeleteWallet(id int64, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w, ok := s.wallets[id]; ok {
		w.DeletedAt = &at
	}
}

// Template returns a copy of the stored template
func (s *Store) Template(id int64) *domain.RecurringTemplate {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.templates[id]
	if !ok {
		return nil
	}
	return copyTemplate(t)
}

// Wallet returns a copy of the stored wallet
func (s *Store) Wallet(id int64) *domain.Wallet {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[id]
	if !ok {
		return nil
	}
	c := *w
	return &c
}

// Transactions returns copies of all stored transactions in insertion order
func (s *Store) Transactions() []domain.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Transaction, 0, len(s.transactions))
	for _, tx := range s.transactions {
		out = append(out, *tx)
	}
	return out
}

// TransactionsForTemplate returns transactions materialized from the template
func (s *Store) TransactionsForTemplate(templateID int64) []domain.Transaction {
	var out []domain.Transaction
	for _, tx := range s.Transactions() {
		if tx.TemplateID != nil && *tx.TemplateID == templateID {
			out = append(out, tx)
		}
	}
	return out
}

// Notifications returns copies of stored notifications, optionally filtered by kind
func (s *Store) Notifications(kinds ...domain.NotificationKind) []domain.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Notification
	for _, n := range s.notifications {
		if len(kinds) == 0 || containsKind(kinds, n.Kind) {
			out = append(out, *n)
		}
	}
	return out
}

// AlertRecords returns the stored dedup records ordered by budget, period and tier
func (s *Store) AlertRecords() []domain.AlertRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.AlertRecord, 0, len(s.alerts))
	for _, a := range s.alerts {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].BudgetID != out[j].BudgetID {
			return out[i].BudgetID < out[j].BudgetID
		}
		if !out[i].PeriodStart.Equal(out[j].PeriodStart) {
			return out[i].PeriodStart.Before(out[j].PeriodStart)
		}
		return out[i].Tier < out[j].Tier
	})
	return out
}

func containsKind(kinds []domain.NotificationKind, kind domain.NotificationKind) bool {
	for _, k := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}

func copyTemplate(t *domain.RecurringTemplate) *domain.RecurringTemplate {
	c := *t
	c.AnchorAt = copyTime(t.AnchorAt)
	c.LastRunAt = copyTime(t.LastRunAt)
	c.EndDate = copyTime(t.EndDate)
	return &c
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
