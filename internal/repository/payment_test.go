package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/manovHacksaw/Mizu-Pay-sub000/internal/errs"
	"github.com/manovHacksaw/Mizu-Pay-sub000/internal/model"
)

func testPayment(id, sessionID string) *model.Payment {
	return &model.Payment{
		ID:           id,
		SessionID:    sessionID,
		WalletID:     "wallet-1",
		UserID:       "user-1",
		AmountCrypto: "1.5",
		Token:        "ETH",
		TxHash:       "0xabc",
		Status:       model.PaymentStatusConfirming,
	}
}

func TestPaymentCreateAndFind(t *testing.T) {
	db := openTestDB(t)
	repo := NewPaymentRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, db, testPayment("pay-1", "sess-1")))

	byID, err := repo.FindByID(ctx, "pay-1")
	require.NoError(t, err)
	assert.Equal(t, "sess-1", byID.SessionID)

	bySession, err := repo.FindBySessionID(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "pay-1", bySession.ID)
}

func TestPaymentCreateRejectsSecondForSameSession(t *testing.T) {
	db := openTestDB(t)
	repo := NewPaymentRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, db, testPayment("pay-1", "sess-1")))

	err := repo.Create(ctx, db, testPayment("pay-2", "sess-1"))
	assert.ErrorIs(t, err, errs.ErrDuplicatePayment)
}

func TestPaymentUpdateStatus(t *testing.T) {
	db := openTestDB(t)
	repo := NewPaymentRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, db, testPayment("pay-1", "sess-1")))

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return repo.UpdateStatus(ctx, tx, "pay-1", model.PaymentStatusSucceeded)
	}))

	payment, err := repo.FindByID(ctx, "pay-1")
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusSucceeded, payment.Status)

	err = repo.UpdateStatus(ctx, db, "no-such-payment", model.PaymentStatusFailed)
	assert.ErrorIs(t, err, errs.ErrPaymentNotFound)
}

func TestPaymentFindMissing(t *testing.T) {
	db := openTestDB(t)
	repo := NewPaymentRepository(db)

	_, err := repo.FindByID(context.Background(), "nope")
	assert.ErrorIs(t, err, errs.ErrPaymentNotFound)

	_, err = repo.FindBySessionID(context.Background(), "nope")
	assert.ErrorIs(t, err, errs.ErrPaymentNotFound)
}
