package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/manovHacksaw/Mizu-Pay-sub000/internal/client"
	"github.com/manovHacksaw/Mizu-Pay-sub000/internal/dto"
	"github.com/manovHacksaw/Mizu-Pay-sub000/internal/errs"
	"github.com/manovHacksaw/Mizu-Pay-sub000/internal/model"
	"github.com/manovHacksaw/Mizu-Pay-sub000/internal/verifier"
)

// TxVerifier is the on-chain verification dependency.
type TxVerifier interface {
	Verify(ctx context.Context, txHash, sessionID, expectedWallet string, expectedAmount decimal.Decimal) (verifier.Result, error)
}

// Decrypter opens stored gift card secrets.
type Decrypter interface {
	Decrypt(ciphertext, iv, tag string) (string, error)
}

type FulfillmentService interface {
	// RecordPayment runs the whole flow: verify the transaction on chain,
	// reserve the selected gift card (phase 1), then decrypt, email and
	// consume it (phase 2), compensating on every failure branch.
	RecordPayment(ctx context.Context, req *dto.RecordPaymentRequest) (*dto.RecordPaymentResponse, error)
	GetPayment(ctx context.Context, id string) (*dto.PaymentInfo, error)
}

type SessionRepo interface {
	CheckAndExpire(ctx context.Context, id string) (*model.PaymentSession, error)
	MarkPaid(ctx context.Context, tx *gorm.DB, id string, giftCardID *string) error
	UpdateStatus(ctx context.Context, tx *gorm.DB, id, status string) error
}

type PaymentRepo interface {
	Create(ctx context.Context, tx *gorm.DB, payment *model.Payment) error
	FindByID(ctx context.Context, id string) (*model.Payment, error)
	FindBySessionID(ctx context.Context, sessionID string) (*model.Payment, error)
	UpdateStatus(ctx context.Context, tx *gorm.DB, id, status string) error
}

type GiftCardRepo interface {
	FindByID(ctx context.Context, id string) (*model.GiftCard, error)
	Reserve(ctx context.Context, tx *gorm.DB, giftCardID, paymentID string) error
	Release(ctx context.Context, tx *gorm.DB, giftCardID string) error
	Consume(ctx context.Context, tx *gorm.DB, giftCardID string) error
}

type UserRepo interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
}

type WalletRepo interface {
	FindByID(ctx context.Context, id string) (*model.Wallet, error)
}

type fulfillmentServiceImpl struct {
	db           *gorm.DB
	verifier     TxVerifier
	vault        Decrypter
	email        client.EmailDispatcher
	sessionRepo  SessionRepo
	paymentRepo  PaymentRepo
	giftCardRepo GiftCardRepo
	userRepo     UserRepo
	walletRepo   WalletRepo
	tokens       map[string]bool
	log          *zap.Logger
}

func NewFulfillmentService(
	db *gorm.DB,
	txVerifier TxVerifier,
	vault Decrypter,
	email client.EmailDispatcher,
	sessionRepo SessionRepo,
	paymentRepo PaymentRepo,
	giftCardRepo GiftCardRepo,
	userRepo UserRepo,
	walletRepo WalletRepo,
	tokens []string,
	log *zap.Logger,
) FulfillmentService {
	tokenSet := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		tokenSet[strings.ToUpper(t)] = true
	}

	return &fulfillmentServiceImpl{
		db:           db,
		verifier:     txVerifier,
		vault:        vault,
		email:        email,
		sessionRepo:  sessionRepo,
		paymentRepo:  paymentRepo,
		giftCardRepo: giftCardRepo,
		userRepo:     userRepo,
		walletRepo:   walletRepo,
		tokens:       tokenSet,
		log:          log,
	}
}

func (s *fulfillmentServiceImpl) RecordPayment(ctx context.Context, req *dto.RecordPaymentRequest) (*dto.RecordPaymentResponse, error) {
	amount, err := s.validate(req)
	if err != nil {
		return nil, err
	}

	session, err := s.sessionRepo.CheckAndExpire(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}

	// A session that already has a payment is a retried request; report the
	// conflict before complaining about the session state it caused.
	if _, err := s.paymentRepo.FindBySessionID(ctx, session.ID); err == nil {
		return nil, errs.ErrDuplicatePayment
	}

	if session.Status != model.SessionStatusPending {
		return nil, &errs.SessionStateError{SessionID: session.ID, Status: session.Status}
	}

	wallet, err := s.walletRepo.FindByID(ctx, session.WalletID)
	if err != nil {
		return nil, fmt.Errorf("load session wallet: %w", err)
	}

	if _, err := s.verifier.Verify(ctx, req.TxHash, session.ID, wallet.Address, amount); err != nil {
		return nil, err
	}

	payment := &model.Payment{
		ID:           uuid.NewString(),
		SessionID:    session.ID,
		WalletID:     session.WalletID,
		UserID:       session.UserID,
		AmountCrypto: amount.String(),
		Token:        strings.ToUpper(req.Token),
		TxHash:       req.TxHash,
	}

	if req.GiftCardID == nil {
		return s.recordDirect(ctx, payment, session)
	}
	return s.recordWithGiftCard(ctx, payment, session, *req.GiftCardID)
}

func (s *fulfillmentServiceImpl) validate(req *dto.RecordPaymentRequest) (decimal.Decimal, error) {
	if req.SessionID == "" || req.TxHash == "" || req.AmountCrypto == "" || req.Token == "" {
		return decimal.Zero, &errs.ValidationError{Msg: "sessionId, txHash, amountCrypto and token are required"}
	}
	if !s.tokens[strings.ToUpper(req.Token)] {
		return decimal.Zero, &errs.ValidationError{Msg: fmt.Sprintf("token %q is not accepted", req.Token)}
	}
	amount, err := decimal.NewFromString(req.AmountCrypto)
	if err != nil || !amount.IsPositive() {
		return decimal.Zero, &errs.ValidationError{Msg: fmt.Sprintf("amountCrypto %q is not a positive decimal", req.AmountCrypto)}
	}
	return amount, nil
}

// recordDirect handles payments without a gift card selection: no
// reservation machinery, the payment succeeds and the session stays paid.
func (s *fulfillmentServiceImpl) recordDirect(ctx context.Context, payment *model.Payment, session *model.PaymentSession) (*dto.RecordPaymentResponse, error) {
	payment.Status = model.PaymentStatusSucceeded

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.paymentRepo.Create(ctx, tx, payment); err != nil {
			return err
		}
		return s.sessionRepo.MarkPaid(ctx, tx, session.ID, nil)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("payment recorded without gift card",
		zap.String("payment_id", payment.ID),
		zap.String("session_id", session.ID),
	)

	return s.response(payment, session.ID, model.SessionStatusPaid, nil), nil
}

func (s *fulfillmentServiceImpl) recordWithGiftCard(ctx context.Context, payment *model.Payment, session *model.PaymentSession, giftCardID string) (*dto.RecordPaymentResponse, error) {
	// Pre-check before any write; the transactional re-check in Reserve
	// closes the remaining race window.
	card, err := s.giftCardRepo.FindByID(ctx, giftCardID)
	if err != nil {
		return nil, err
	}
	if !card.Reservable() {
		return nil, errs.ErrGiftCardUnavailable
	}

	// Phase 1: one atomic transaction creates the payment, flips the
	// session to paid and takes the reservation.
	payment.Status = model.PaymentStatusConfirming
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.paymentRepo.Create(ctx, tx, payment); err != nil {
			return err
		}
		if err := s.sessionRepo.MarkPaid(ctx, tx, session.ID, &giftCardID); err != nil {
			return err
		}
		return s.giftCardRepo.Reserve(ctx, tx, giftCardID, payment.ID)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("gift card reserved",
		zap.String("payment_id", payment.ID),
		zap.String("session_id", session.ID),
		zap.String("gift_card_id", giftCardID),
	)

	// Phase 2 always runs to a terminal state, even if the request is
	// cancelled mid-flight: an abandoned reservation would leave inventory
	// ambiguously held.
	if err := s.fulfill(context.WithoutCancel(ctx), payment, session, card); err != nil {
		return nil, err
	}

	return s.response(payment, session.ID, model.SessionStatusFulfilled, &giftCardID), nil
}

// fulfill is phase 2: decrypt, email, consume. Every failure branch runs the
// same compensating transaction before surfacing.
func (s *fulfillmentServiceImpl) fulfill(ctx context.Context, payment *model.Payment, session *model.PaymentSession, card *model.GiftCard) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.compensate(ctx, payment, session.ID, card.ID, model.PaymentStatusFailed)
			err = &errs.UnexpectedError{Err: fmt.Errorf("panic during fulfillment: %v", r)}
		}
	}()

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil || user.Email == "" {
		s.compensate(ctx, payment, session.ID, card.ID, model.PaymentStatusFailed)
		return &errs.ValidationError{Msg: "buyer has no email address on file"}
	}

	number, err := s.vault.Decrypt(card.EncryptedNumber, card.IV, card.Tag)
	if err != nil {
		s.compensate(ctx, payment, session.ID, card.ID, model.PaymentStatusFailed)
		return &errs.DecryptionError{Err: err}
	}
	pin := ""
	if card.EncryptedPin != "" {
		pin, err = s.vault.Decrypt(card.EncryptedPin, card.PinIV, card.PinTag)
		if err != nil {
			s.compensate(ctx, payment, session.ID, card.ID, model.PaymentStatusFailed)
			return &errs.DecryptionError{Err: err}
		}
	}

	err = s.email.SendGiftCard(ctx, user.Email,
		&client.GiftCardEmail{
			Store:     card.Store,
			Currency:  card.Currency,
			AmountUSD: card.AmountUSD,
			Number:    number,
			Pin:       pin,
		},
		&client.PaymentContext{
			PaymentID: payment.ID,
			SessionID: session.ID,
			TxHash:    payment.TxHash,
		},
	)
	if err != nil {
		s.log.Warn("gift card email delivery failed",
			zap.String("payment_id", payment.ID),
			zap.String("gift_card_id", card.ID),
			zap.Error(err),
		)
		s.compensate(ctx, payment, session.ID, card.ID, model.PaymentStatusEmailFailed)
		return &errs.EmailDeliveryError{Msg: err.Error()}
	}

	// The single irreversible inventory-consuming step, gated strictly on
	// confirmed email success.
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.giftCardRepo.Consume(ctx, tx, card.ID); err != nil {
			return err
		}
		if err := s.paymentRepo.UpdateStatus(ctx, tx, payment.ID, model.PaymentStatusSucceeded); err != nil {
			return err
		}
		return s.sessionRepo.UpdateStatus(ctx, tx, session.ID, model.SessionStatusFulfilled)
	})
	if err != nil {
		s.compensate(ctx, payment, session.ID, card.ID, model.PaymentStatusFailed)
		return &errs.UnexpectedError{Err: err}
	}

	payment.Status = model.PaymentStatusSucceeded
	s.log.Info("gift card fulfilled",
		zap.String("payment_id", payment.ID),
		zap.String("session_id", session.ID),
		zap.String("gift_card_id", card.ID),
	)
	return nil
}

// compensate is the single rollback shape shared by every phase-2 failure
// branch: mark payment and session with the terminal status and release the
// reservation, in one transaction.
func (s *fulfillmentServiceImpl) compensate(ctx context.Context, payment *model.Payment, sessionID, giftCardID, terminalStatus string) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.paymentRepo.UpdateStatus(ctx, tx, payment.ID, terminalStatus); err != nil {
			return err
		}
		if err := s.sessionRepo.UpdateStatus(ctx, tx, sessionID, terminalStatus); err != nil {
			return err
		}
		return s.giftCardRepo.Release(ctx, tx, giftCardID)
	})
	if err != nil {
		// The reservation is now dangling; this needs operator attention.
		s.log.Error("compensating transaction failed",
			zap.String("payment_id", payment.ID),
			zap.String("session_id", sessionID),
			zap.String("gift_card_id", giftCardID),
			zap.String("terminal_status", terminalStatus),
			zap.Error(err),
		)
		return
	}

	payment.Status = terminalStatus
	s.log.Info("fulfillment rolled back",
		zap.String("payment_id", payment.ID),
		zap.String("gift_card_id", giftCardID),
		zap.String("terminal_status", terminalStatus),
	)
}

func (s *fulfillmentServiceImpl) GetPayment(ctx context.Context, id string) (*dto.PaymentInfo, error) {
	payment, err := s.paymentRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return paymentInfo(payment), nil
}

func (s *fulfillmentServiceImpl) response(payment *model.Payment, sessionID, sessionStatus string, giftCardID *string) *dto.RecordPaymentResponse {
	return &dto.RecordPaymentResponse{
		Success: true,
		Payment: *paymentInfo(payment),
		Session: dto.SessionInfo{
			ID:         sessionID,
			Status:     sessionStatus,
			GiftCardID: giftCardID,
		},
	}
}

func paymentInfo(p *model.Payment) *dto.PaymentInfo {
	return &dto.PaymentInfo{
		ID:           p.ID,
		SessionID:    p.SessionID,
		TxHash:       p.TxHash,
		AmountCrypto: p.AmountCrypto,
		Token:        p.Token,
		Status:       p.Status,
	}
}
