package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dafibh/fortuna/fortuna-engine/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func claimedFor(template *domain.RecurringTemplate) domain.ClaimedTemplate {
	return domain.ClaimedTemplate{Template: template, DueAt: template.NextRunAt, NextRun: template.NextRunAt.AddDate(0, 1, 0)}
}

func TestTransactionMaterializer_Expense(t *testing.T) {
	f := setupEngine()
	template := newTemplate(1, 1200, domain.DirectionExpense, domain.FrequencyMonthly, at(2026, time.January, 31, 9))

	tx, err := f.materializer.Materialize(context.Background(), claimedFor(template))

	require.NoError(t, err)
	assert.NotZero(t, tx.ID)
	assert.Equal(t, int64(1200), tx.Amount)
	assert.Equal(t, domain.DirectionExpense, tx.Direction)
	assert.Equal(t, domain.TransactionSourceRecurring, tx.Source)
	assert.True(t, tx.TransactionDate.Equal(at(2026, time.January, 31, 9)), "dated at the due timestamp, not now")
	require.NotNil(t, tx.TemplateID)
	assert.Equal(t, int64(1), *tx.TemplateID)
	assert.Equal(t, testStartBalance-1200, f.store.Wallet(testWalletID).Balance)
}

func TestTransactionMaterializer_Income(t *testing.T) {
	f := setupEngine()
	template := newTemplate(1, 350000, domain.DirectionIncome, domain.FrequencyMonthly, at(2026, time.February, 25, 9))
	template.CategoryID = testOtherCategory

	_, err := f.materializer.Materialize(context.Background(), claimedFor(template))

	require.NoError(t, err)
	assert.Equal(t, testStartBalance+350000, f.store.Wallet(testWalletID).Balance)
}

func TestTransactionMaterializer_ReferentialFailures(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(f *engineFixture, template *domain.RecurringTemplate)
		wantErr error
	}{
		{
			name:    "missing wallet",
			mutate:  func(f *engineFixture, template *domain.RecurringTemplate) { template.WalletID = 999 },
			wantErr: domain.ErrWalletNotFound,
		},
		{
			name: "soft-deleted wallet",
			mutate: func(f *engineFixture, template *domain.RecurringTemplate) {
				f.store.DeleteWallet(testWalletID, at(2026, time.January, 1, 0))
			},
			wantErr: domain.ErrWalletNotFound,
		},
		{
			name:    "missing category",
			mutate:  func(f *engineFixture, template *domain.RecurringTemplate) { template.CategoryID = 999 },
			wantErr: domain.ErrCategoryNotFound,
		},
		{
			name:    "wallet of another user",
			mutate:  func(f *engineFixture, template *domain.RecurringTemplate) { template.UserID = 2 },
			wantErr: domain.ErrWalletNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupEngine()
			template := newTemplate(1, 500, domain.DirectionExpense, domain.FrequencyMonthly, at(2026, time.January, 31, 9))
			tt.mutate(f, template)

			tx, err := f.materializer.Materialize(context.Background(), claimedFor(template))

			assert.Nil(t, tx)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, domain.IsReferentialError(err))
			assert.Empty(t, f.store.Transactions())
		})
	}
}

func TestTransactionMaterializer_BalanceFailureRollsBack(t *testing.T) {
	f := setupEngine()
	f.transactions.BalanceUpdateErr = func(walletID, delta int64) error {
		return errors.New("could not serialize access")
	}
	template := newTemplate(1, 1200, domain.DirectionExpense, domain.FrequencyMonthly, at(2026, time.January, 31, 9))

	_, err := f.materializer.Materialize(context.Background(), claimedFor(template))

	require.Error(t, err)
	assert.Empty(t, f.store.TransactionsForTemplate(1))
	assert.Equal(t, testStartBalance, f.store.Wallet(testWalletID).Balance)
}

func TestTransactionMaterializer_SameOccurrenceTwice(t *testing.T) {
	f := setupEngine()
	template := newTemplate(1, 1200, domain.DirectionExpense, domain.FrequencyMonthly, at(2026, time.January, 31, 9))

	_, err := f.materializer.Materialize(context.Background(), claimedFor(template))
	require.NoError(t, err)
	_, err = f.materializer.Materialize(context.Background(), claimedFor(template))

	assert.ErrorIs(t, err, domain.ErrClaimLost)
	assert.Len(t, f.store.TransactionsForTemplate(1), 1)
	assert.Equal(t, testStartBalance-1200, f.store.Wallet(testWalletID).Balance)
}

func TestTransactionMaterializer_InvalidTemplate(t *testing.T) {
	f := setupEngine()

	zero := newTemplate(1, 0, domain.DirectionExpense, domain.FrequencyMonthly, at(2026, time.January, 31, 9))
	_, err := f.materializer.Materialize(context.Background(), claimedFor(zero))
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	transfer := newTemplate(2, 100, "TRANSFER", domain.FrequencyMonthly, at(2026, time.January, 31, 9))
	_, err = f.materializer.Materialize(context.Background(), claimedFor(transfer))
	assert.ErrorIs(t, err, domain.ErrInvalidDirection)

	assert.Empty(t, f.store.Transactions())
}
