package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/manovHacksaw/Mizu-Pay-sub000/internal/errs"
	"github.com/manovHacksaw/Mizu-Pay-sub000/internal/model"
)

type PaymentRepository interface {
	Create(ctx context.Context, tx *gorm.DB, payment *model.Payment) error
	FindByID(ctx context.Context, id string) (*model.Payment, error)
	FindBySessionID(ctx context.Context, sessionID string) (*model.Payment, error)
	UpdateStatus(ctx context.Context, tx *gorm.DB, id, status string) error
}

type paymentRepoImpl struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepoImpl{
		db: db,
	}
}

func (r *paymentRepoImpl) Create(ctx context.Context, tx *gorm.DB, payment *model.Payment) error {
	err := tx.WithContext(ctx).Create(payment).Error
	if err != nil {
		// session_id is unique: a second payment for the same session is a
		// retried request, not a new sale.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return errs.ErrDuplicatePayment
		}
		return err
	}
	return nil
}

func (r *paymentRepoImpl) FindByID(ctx context.Context, id string) (*model.Payment, error) {
	var payment model.Payment
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&payment).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrPaymentNotFound
		}
		return nil, err
	}

	return &payment, nil
}

func (r *paymentRepoImpl) FindBySessionID(ctx context.Context, sessionID string) (*model.Payment, error) {
	var payment model.Payment
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		First(&payment).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrPaymentNotFound
		}
		return nil, err
	}

	return &payment, nil
}

func (r *paymentRepoImpl) UpdateStatus(ctx context.Context, tx *gorm.DB, id, status string) error {
	result := tx.WithContext(ctx).Model(&model.Payment{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errs.ErrPaymentNotFound
	}
	return nil
}
