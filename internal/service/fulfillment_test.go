package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/manovHacksaw/Mizu-Pay-sub000/internal/client"
	"github.com/manovHacksaw/Mizu-Pay-sub000/internal/dto"
	"github.com/manovHacksaw/Mizu-Pay-sub000/internal/errs"
	"github.com/manovHacksaw/Mizu-Pay-sub000/internal/model"
	"github.com/manovHacksaw/Mizu-Pay-sub000/internal/repository"
	"github.com/manovHacksaw/Mizu-Pay-sub000/internal/vault"
	"github.com/manovHacksaw/Mizu-Pay-sub000/internal/verifier"
)

const testVaultKey = "6368616e676520746869732070617373776f726420746f206120736563726574"

type stubVerifier struct {
	err error
}

func (s *stubVerifier) Verify(ctx context.Context, txHash, sessionID, expectedWallet string, expectedAmount decimal.Decimal) (verifier.Result, error) {
	if s.err != nil {
		return verifier.Result{Confirmations: 1}, s.err
	}
	return verifier.Result{Verified: true, Confirmations: 5}, nil
}

type sentEmail struct {
	to     string
	number string
	pin    string
}

type stubEmail struct {
	mu   sync.Mutex
	fail bool
	sent []sentEmail
}

func (s *stubEmail) SendGiftCard(ctx context.Context, to string, card *client.GiftCardEmail, pctx *client.PaymentContext) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("smtp relay rejected the message")
	}
	s.sent = append(s.sent, sentEmail{to: to, number: card.Number, pin: card.Pin})
	return nil
}

type fixture struct {
	db       *gorm.DB
	svc      FulfillmentService
	verifier *stubVerifier
	email    *stubEmail
	vault    *vault.Vault

	sessions repository.SessionRepository
	payments repository.PaymentRepository
	cards    repository.GiftCardRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&model.User{},
		&model.Wallet{},
		&model.PaymentSession{},
		&model.Payment{},
		&model.GiftCard{},
	))

	v, err := vault.New(testVaultKey)
	require.NoError(t, err)

	f := &fixture{
		db:       db,
		verifier: &stubVerifier{},
		email:    &stubEmail{},
		vault:    v,
		sessions: repository.NewSessionRepository(db),
		payments: repository.NewPaymentRepository(db),
		cards:    repository.NewGiftCardRepository(db),
	}
	f.svc = NewFulfillmentService(
		db,
		f.verifier,
		v,
		f.email,
		f.sessions,
		f.payments,
		f.cards,
		repository.NewUserRepository(db),
		repository.NewWalletRepository(db),
		[]string{"ETH", "USDC"},
		zap.NewNop(),
	)

	require.NoError(t, db.Create(&model.User{ID: "user-1", Email: "buyer@example.com", Name: "Buyer"}).Error)
	require.NoError(t, db.Create(&model.Wallet{
		ID:      "wallet-1",
		UserID:  "user-1",
		Address: "0x1111111111111111111111111111111111111111",
		Chain:   "base",
	}).Error)

	return f
}

func (f *fixture) seedSession(t *testing.T, id string) {
	t.Helper()
	require.NoError(t, f.db.Create(&model.PaymentSession{
		ID:        id,
		Store:     "amazon",
		AmountUSD: 50,
		Currency:  "USD",
		Status:    model.SessionStatusPending,
		WalletID:  "wallet-1",
		UserID:    "user-1",
		ExpiresAt: time.Now().Add(time.Hour),
	}).Error)
}

func (f *fixture) seedCard(t *testing.T, id string) {
	t.Helper()
	number, iv, tag, err := f.vault.Encrypt("6064-1111-2222-3333")
	require.NoError(t, err)
	pin, pinIV, pinTag, err := f.vault.Encrypt("9876")
	require.NoError(t, err)

	require.NoError(t, f.db.Create(&model.GiftCard{
		ID:              id,
		Store:           "amazon",
		Currency:        "USD",
		AmountUSD:       50,
		EncryptedNumber: number,
		EncryptedPin:    pin,
		IV:              iv,
		Tag:             tag,
		PinIV:           pinIV,
		PinTag:          pinTag,
		Active:          true,
	}).Error)
}

func recordReq(sessionID string, giftCardID *string) *dto.RecordPaymentRequest {
	return &dto.RecordPaymentRequest{
		SessionID:    sessionID,
		TxHash:       "0xabc",
		AmountCrypto: "1.5",
		Token:        "ETH",
		GiftCardID:   giftCardID,
	}
}

func (f *fixture) cardState(t *testing.T, id string) *model.GiftCard {
	t.Helper()
	card, err := f.cards.FindByID(context.Background(), id)
	require.NoError(t, err)
	return card
}

func (f *fixture) sessionStatus(t *testing.T, id string) string {
	t.Helper()
	var session model.PaymentSession
	require.NoError(t, f.db.First(&session, "id = ?", id).Error)
	return session.Status
}

func TestRecordPaymentFulfillsGiftCard(t *testing.T) {
	f := newFixture(t)
	f.seedSession(t, "sess-1")
	f.seedCard(t, "card-1")
	cardID := "card-1"

	resp, err := f.svc.RecordPayment(context.Background(), recordReq("sess-1", &cardID))
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Equal(t, model.PaymentStatusSucceeded, resp.Payment.Status)
	assert.Equal(t, model.SessionStatusFulfilled, resp.Session.Status)
	require.NotNil(t, resp.Session.GiftCardID)

	// Inventory consumed exactly once, only after the email went out.
	card := f.cardState(t, "card-1")
	assert.False(t, card.Active)
	assert.Nil(t, card.ReservedByPaymentID)

	require.Len(t, f.email.sent, 1)
	assert.Equal(t, "buyer@example.com", f.email.sent[0].to)
	assert.Equal(t, "6064-1111-2222-3333", f.email.sent[0].number)
	assert.Equal(t, "9876", f.email.sent[0].pin)
}

func TestRecordPaymentEmailFailureReleasesCard(t *testing.T) {
	f := newFixture(t)
	f.seedSession(t, "sess-1")
	f.seedCard(t, "card-1")
	f.email.fail = true
	cardID := "card-1"

	_, err := f.svc.RecordPayment(context.Background(), recordReq("sess-1", &cardID))

	var emailErr *errs.EmailDeliveryError
	require.ErrorAs(t, err, &emailErr)

	payment, perr := f.payments.FindBySessionID(context.Background(), "sess-1")
	require.NoError(t, perr)
	assert.Equal(t, model.PaymentStatusEmailFailed, payment.Status)
	assert.Equal(t, model.SessionStatusEmailFailed, f.sessionStatus(t, "sess-1"))

	// The card goes back into the pool for another buyer.
	card := f.cardState(t, "card-1")
	assert.True(t, card.Active)
	assert.Nil(t, card.ReservedByPaymentID)
}

func TestRecordPaymentDecryptFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	f.seedSession(t, "sess-1")
	f.seedCard(t, "card-1")
	require.NoError(t, f.db.Model(&model.GiftCard{ID: "card-1"}).Update("tag", "00112233445566778899aabbccddeeff").Error)
	cardID := "card-1"

	_, err := f.svc.RecordPayment(context.Background(), recordReq("sess-1", &cardID))

	var decErr *errs.DecryptionError
	require.ErrorAs(t, err, &decErr)

	payment, perr := f.payments.FindBySessionID(context.Background(), "sess-1")
	require.NoError(t, perr)
	assert.Equal(t, model.PaymentStatusFailed, payment.Status)
	assert.Equal(t, model.SessionStatusFailed, f.sessionStatus(t, "sess-1"))

	card := f.cardState(t, "card-1")
	assert.True(t, card.Active)
	assert.Nil(t, card.ReservedByPaymentID)
	assert.Empty(t, f.email.sent)
}

func TestRecordPaymentMissingBuyerEmailRollsBack(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.db.Model(&model.User{ID: "user-1"}).Update("email", "").Error)
	f.seedSession(t, "sess-1")
	f.seedCard(t, "card-1")
	cardID := "card-1"

	_, err := f.svc.RecordPayment(context.Background(), recordReq("sess-1", &cardID))

	var valErr *errs.ValidationError
	require.ErrorAs(t, err, &valErr)

	payment, perr := f.payments.FindBySessionID(context.Background(), "sess-1")
	require.NoError(t, perr)
	assert.Equal(t, model.PaymentStatusFailed, payment.Status)

	card := f.cardState(t, "card-1")
	assert.True(t, card.Reservable())
}

func TestRecordPaymentWithoutGiftCard(t *testing.T) {
	f := newFixture(t)
	f.seedSession(t, "sess-1")

	resp, err := f.svc.RecordPayment(context.Background(), recordReq("sess-1", nil))
	require.NoError(t, err)

	assert.Equal(t, model.PaymentStatusSucceeded, resp.Payment.Status)
	assert.Equal(t, model.SessionStatusPaid, resp.Session.Status)
	assert.Nil(t, resp.Session.GiftCardID)
	assert.Empty(t, f.email.sent)
}

func TestRecordPaymentDuplicateIsConflict(t *testing.T) {
	f := newFixture(t)
	f.seedSession(t, "sess-1")
	f.seedCard(t, "card-1")
	cardID := "card-1"

	_, err := f.svc.RecordPayment(context.Background(), recordReq("sess-1", &cardID))
	require.NoError(t, err)

	_, err = f.svc.RecordPayment(context.Background(), recordReq("sess-1", &cardID))
	assert.ErrorIs(t, err, errs.ErrDuplicatePayment)

	// No duplicate payment row, no double consumption.
	var count int64
	require.NoError(t, f.db.Model(&model.Payment{}).Where("session_id = ?", "sess-1").Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestRecordPaymentVerificationFailurePersistsNothing(t *testing.T) {
	f := newFixture(t)
	f.seedSession(t, "sess-1")
	f.seedCard(t, "card-1")
	f.verifier.err = &errs.VerificationError{
		Reason:        errs.ReasonWrongDestination,
		Detail:        "transaction sent to 0xdead, expected payment contract 0xbeef",
		Confirmations: 5,
	}
	cardID := "card-1"

	_, err := f.svc.RecordPayment(context.Background(), recordReq("sess-1", &cardID))

	var verr *errs.VerificationError
	require.ErrorAs(t, err, &verr)

	// Safe to retry: nothing was written.
	_, perr := f.payments.FindBySessionID(context.Background(), "sess-1")
	assert.ErrorIs(t, perr, errs.ErrPaymentNotFound)
	assert.Equal(t, model.SessionStatusPending, f.sessionStatus(t, "sess-1"))
	assert.True(t, f.cardState(t, "card-1").Reservable())
}

func TestRecordPaymentUnavailableCard(t *testing.T) {
	f := newFixture(t)
	f.seedSession(t, "sess-1")
	f.seedCard(t, "card-1")
	require.NoError(t, f.db.Model(&model.GiftCard{ID: "card-1"}).Update("reserved_by_payment_id", "pay-other").Error)
	cardID := "card-1"

	_, err := f.svc.RecordPayment(context.Background(), recordReq("sess-1", &cardID))
	assert.ErrorIs(t, err, errs.ErrGiftCardUnavailable)

	_, perr := f.payments.FindBySessionID(context.Background(), "sess-1")
	assert.ErrorIs(t, perr, errs.ErrPaymentNotFound)
}

func TestRecordPaymentMissingCard(t *testing.T) {
	f := newFixture(t)
	f.seedSession(t, "sess-1")
	cardID := "no-such-card"

	_, err := f.svc.RecordPayment(context.Background(), recordReq("sess-1", &cardID))
	assert.ErrorIs(t, err, errs.ErrGiftCardNotFound)
}

func TestRecordPaymentExpiredSession(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.db.Create(&model.PaymentSession{
		ID:        "sess-old",
		Store:     "amazon",
		AmountUSD: 50,
		Currency:  "USD",
		Status:    model.SessionStatusPending,
		WalletID:  "wallet-1",
		UserID:    "user-1",
		ExpiresAt: time.Now().Add(-time.Minute),
	}).Error)

	_, err := f.svc.RecordPayment(context.Background(), recordReq("sess-old", nil))

	var stateErr *errs.SessionStateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, model.SessionStatusExpired, stateErr.Status)
}

func TestRecordPaymentMissingSession(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.RecordPayment(context.Background(), recordReq("nope", nil))
	assert.ErrorIs(t, err, errs.ErrSessionNotFound)
}

func TestRecordPaymentValidation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		req  *dto.RecordPaymentRequest
	}{
		{name: "missing tx hash", req: &dto.RecordPaymentRequest{SessionID: "s", AmountCrypto: "1", Token: "ETH"}},
		{name: "unknown token", req: &dto.RecordPaymentRequest{SessionID: "s", TxHash: "0x1", AmountCrypto: "1", Token: "DOGE"}},
		{name: "bad amount", req: &dto.RecordPaymentRequest{SessionID: "s", TxHash: "0x1", AmountCrypto: "abc", Token: "ETH"}},
		{name: "negative amount", req: &dto.RecordPaymentRequest{SessionID: "s", TxHash: "0x1", AmountCrypto: "-1", Token: "ETH"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.RecordPayment(context.Background(), tt.req)
			var valErr *errs.ValidationError
			assert.ErrorAs(t, err, &valErr)
		})
	}
}

func TestConcurrentRequestsForSameCard(t *testing.T) {
	f := newFixture(t)
	f.seedSession(t, "sess-a")
	f.seedSession(t, "sess-b")
	f.seedCard(t, "card-1")
	cardID := "card-1"

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i, sessionID := range []string{"sess-a", "sess-b"} {
		wg.Add(1)
		go func(n int, id string) {
			defer wg.Done()
			_, results[n] = f.svc.RecordPayment(context.Background(), recordReq(id, &cardID))
		}(i, sessionID)
	}
	wg.Wait()

	winners, losers := 0, 0
	for _, err := range results {
		switch {
		case err == nil:
			winners++
		case errors.Is(err, errs.ErrGiftCardUnavailable):
			losers++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, winners)
	assert.Equal(t, 1, losers)

	// One consumption, one delivery.
	card := f.cardState(t, "card-1")
	assert.False(t, card.Active)
	require.Len(t, f.email.sent, 1)
}

func TestGetPayment(t *testing.T) {
	f := newFixture(t)
	f.seedSession(t, "sess-1")

	resp, err := f.svc.RecordPayment(context.Background(), recordReq("sess-1", nil))
	require.NoError(t, err)

	payment, err := f.svc.GetPayment(context.Background(), resp.Payment.ID)
	require.NoError(t, err)
	assert.Equal(t, "sess-1", payment.SessionID)

	_, err = f.svc.GetPayment(context.Background(), "nope")
	assert.ErrorIs(t, err, errs.ErrPaymentNotFound)
}
