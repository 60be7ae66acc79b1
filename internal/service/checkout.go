package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/manovHacksaw/Mizu-Pay-sub000/internal/dto"
	"github.com/manovHacksaw/Mizu-Pay-sub000/internal/errs"
	"github.com/manovHacksaw/Mizu-Pay-sub000/internal/model"
)

const sessionTTL = 30 * time.Minute

// CheckoutService covers the read/setup surface around fulfillment:
// creating pending sessions, reading them back (expiring stale ones on
// read), and listing reservable inventory.
type CheckoutService interface {
	CreateSession(ctx context.Context, req *dto.CreateSessionRequest) (*dto.SessionInfo, error)
	GetSession(ctx context.Context, id string) (*dto.SessionInfo, error)
	ListGiftCards(ctx context.Context, store string) ([]*dto.GiftCardInfo, error)
}

type SessionCreator interface {
	Create(ctx context.Context, session *model.PaymentSession) error
	CheckAndExpire(ctx context.Context, id string) (*model.PaymentSession, error)
}

type GiftCardLister interface {
	ListAvailable(ctx context.Context, store string) ([]*model.GiftCard, error)
}

type checkoutServiceImpl struct {
	sessionRepo  SessionCreator
	giftCardRepo GiftCardLister
	log          *zap.Logger
}

func NewCheckoutService(sessionRepo SessionCreator, giftCardRepo GiftCardLister, log *zap.Logger) CheckoutService {
	return &checkoutServiceImpl{
		sessionRepo:  sessionRepo,
		giftCardRepo: giftCardRepo,
		log:          log,
	}
}

func (s *checkoutServiceImpl) CreateSession(ctx context.Context, req *dto.CreateSessionRequest) (*dto.SessionInfo, error) {
	if req.Store == "" || req.WalletID == "" || req.UserID == "" || req.AmountUSD <= 0 {
		return nil, &errs.ValidationError{Msg: "store, walletId, userId and a positive amountUSD are required"}
	}

	currency := req.Currency
	if currency == "" {
		currency = "USD"
	}

	now := time.Now()
	session := &model.PaymentSession{
		ID:        uuid.NewString(),
		Store:     req.Store,
		AmountUSD: req.AmountUSD,
		Currency:  currency,
		Status:    model.SessionStatusPending,
		WalletID:  req.WalletID,
		UserID:    req.UserID,
		ExpiresAt: now.Add(sessionTTL),
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, err
	}

	s.log.Info("checkout session created",
		zap.String("session_id", session.ID),
		zap.String("store", session.Store),
	)

	return sessionInfo(session), nil
}

func (s *checkoutServiceImpl) GetSession(ctx context.Context, id string) (*dto.SessionInfo, error) {
	session, err := s.sessionRepo.CheckAndExpire(ctx, id)
	if err != nil {
		return nil, err
	}
	return sessionInfo(session), nil
}

func (s *checkoutServiceImpl) ListGiftCards(ctx context.Context, store string) ([]*dto.GiftCardInfo, error) {
	cards, err := s.giftCardRepo.ListAvailable(ctx, store)
	if err != nil {
		return nil, err
	}

	infos := make([]*dto.GiftCardInfo, len(cards))
	for i, card := range cards {
		infos[i] = &dto.GiftCardInfo{
			ID:        card.ID,
			Store:     card.Store,
			Currency:  card.Currency,
			AmountUSD: card.AmountUSD,
		}
	}
	return infos, nil
}

func sessionInfo(s *model.PaymentSession) *dto.SessionInfo {
	return &dto.SessionInfo{
		ID:         s.ID,
		Status:     s.Status,
		GiftCardID: s.GiftCardID,
	}
}
