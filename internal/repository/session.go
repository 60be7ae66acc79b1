package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/manovHacksaw/Mizu-Pay-sub000/internal/errs"
	"github.com/manovHacksaw/Mizu-Pay-sub000/internal/model"
)

type SessionRepository interface {
	Create(ctx context.Context, session *model.PaymentSession) error
	FindByID(ctx context.Context, id string) (*model.PaymentSession, error)
	// CheckAndExpire loads a session and, if it is pending past its expiry,
	// flips it to expired before returning it.
	CheckAndExpire(ctx context.Context, id string) (*model.PaymentSession, error)
	MarkPaid(ctx context.Context, tx *gorm.DB, id string, giftCardID *string) error
	UpdateStatus(ctx context.Context, tx *gorm.DB, id, status string) error
}

type sessionRepoImpl struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepoImpl{
		db: db,
	}
}

func (r *sessionRepoImpl) Create(ctx context.Context, session *model.PaymentSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *sessionRepoImpl) FindByID(ctx context.Context, id string) (*model.PaymentSession, error) {
	var session model.PaymentSession
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&session).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrSessionNotFound
		}
		return nil, err
	}

	return &session, nil
}

func (r *sessionRepoImpl) CheckAndExpire(ctx context.Context, id string) (*model.PaymentSession, error) {
	session, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if session.Status == model.SessionStatusPending && time.Now().After(session.ExpiresAt) {
		// Guarded update: only a still-pending row is expired.
		result := r.db.WithContext(ctx).Model(&model.PaymentSession{}).
			Where("id = ? AND status = ?", id, model.SessionStatusPending).
			Updates(map[string]interface{}{
				"status":     model.SessionStatusExpired,
				"updated_at": time.Now(),
			})
		if result.Error != nil {
			return nil, result.Error
		}
		return r.FindByID(ctx, id)
	}

	return session, nil
}

func (r *sessionRepoImpl) MarkPaid(ctx context.Context, tx *gorm.DB, id string, giftCardID *string) error {
	result := tx.WithContext(ctx).Model(&model.PaymentSession{}).
		Where("id = ? AND status = ?", id, model.SessionStatusPending).
		Updates(map[string]interface{}{
			"status":       model.SessionStatusPaid,
			"gift_card_id": giftCardID,
			"updated_at":   time.Now(),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errs.ErrSessionNotFound
	}
	return nil
}

func (r *sessionRepoImpl) UpdateStatus(ctx context.Context, tx *gorm.DB, id, status string) error {
	result := tx.WithContext(ctx).Model(&model.PaymentSession{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errs.ErrSessionNotFound
	}
	return nil
}
