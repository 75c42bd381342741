package service

import (
	"context"
	"fmt"

	"github.com/dafibh/fortuna/fortuna-engine/internal/domain"
	"github.com/rs/zerolog"
)

// TransactionMaterializer turns a claimed occurrence into a transaction
type TransactionMaterializer struct {
	transactionRepo domain.TransactionRepository
	logger          zerolog.Logger
}

// NewTransactionMaterializer creates a new TransactionMaterializer
func NewTransactionMaterializer(transactionRepo domain.TransactionRepository, logger zerolog.Logger) *TransactionMaterializer {
	return &TransactionMaterializer{
		transactionRepo: transactionRepo,
		logger:          logger.With().Str("component", "transaction_materializer").Logger(),
	}
}

// Materialize creates the transaction for the claimed occurrence, dated at the due
// timestamp, and applies it to the wallet balance in the same database transaction.
func (m *TransactionMaterializer) Materialize(ctx context.Context, claimed domain.ClaimedTemplate) (*domain.Transaction, error) {
	t := claimed.Template
	if t.Amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	if !t.Direction.IsValid() {
		return nil, domain.ErrInvalidDirection
	}

	templateID := t.ID
	created, err := m.transactionRepo.CreateWithBalance(ctx, &domain.Transaction{
		UserID:          t.UserID,
		WalletID:        t.WalletID,
		CategoryID:      t.CategoryID,
		Description:     t.Description,
		Amount:          t.Amount,
		Direction:       t.Direction,
		TransactionDate: claimed.DueAt,
		Source:          domain.TransactionSourceRecurring,
		TemplateID:      &templateID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to materialize template %d: %w", t.ID, err)
	}

	m.logger.Debug().
		Int64("template_id", t.ID).
		Int64("transaction_id", created.ID).
		Int64("wallet_id", created.WalletID).
		Int64("delta", created.SignedAmount()).
		Time("transaction_date", created.TransactionDate).
		Msg("Materialized recurring transaction")

	return created, nil
}
