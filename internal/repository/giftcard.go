package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/manovHacksaw/Mizu-Pay-sub000/internal/errs"
	"github.com/manovHacksaw/Mizu-Pay-sub000/internal/model"
)

// GiftCardRepository holds the only contended resource in the system.
// Reserve/Release/Consume run inside a caller-supplied transaction; the
// store's transactional isolation is the sole serialization mechanism for
// concurrent reservation attempts on the same row.
type GiftCardRepository interface {
	FindByID(ctx context.Context, id string) (*model.GiftCard, error)
	ListAvailable(ctx context.Context, store string) ([]*model.GiftCard, error)
	// Reserve locks the card for one payment. It re-checks eligibility in
	// the same statement; a loser of a concurrent race observes zero rows
	// updated and gets ErrGiftCardUnavailable.
	Reserve(ctx context.Context, tx *gorm.DB, giftCardID, paymentID string) error
	// Release clears the reservation, restoring eligibility.
	Release(ctx context.Context, tx *gorm.DB, giftCardID string) error
	// Consume deactivates the card and clears the reservation. Called only
	// after confirmed email delivery.
	Consume(ctx context.Context, tx *gorm.DB, giftCardID string) error
}

type giftCardRepoImpl struct {
	db *gorm.DB
}

func NewGiftCardRepository(db *gorm.DB) GiftCardRepository {
	return &giftCardRepoImpl{
		db: db,
	}
}

func (r *giftCardRepoImpl) FindByID(ctx context.Context, id string) (*model.GiftCard, error) {
	var card model.GiftCard
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&card).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrGiftCardNotFound
		}
		return nil, err
	}

	return &card, nil
}

func (r *giftCardRepoImpl) ListAvailable(ctx context.Context, store string) ([]*model.GiftCard, error) {
	var cards []*model.GiftCard
	q := r.db.WithContext(ctx).
		Where("active = ? AND reserved_by_payment_id IS NULL", true)
	if store != "" {
		q = q.Where("store = ?", store)
	}

	if err := q.Find(&cards).Error; err != nil {
		return nil, err
	}
	return cards, nil
}

func (r *giftCardRepoImpl) Reserve(ctx context.Context, tx *gorm.DB, giftCardID, paymentID string) error {
	result := tx.WithContext(ctx).Model(&model.GiftCard{}).
		Where("id = ? AND active = ? AND reserved_by_payment_id IS NULL", giftCardID, true).
		Updates(map[string]interface{}{
			"reserved_by_payment_id": paymentID,
			"reserved_at":            time.Now(),
			"updated_at":             time.Now(),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		// Distinguish a missing card from one already taken.
		var count int64
		if err := tx.WithContext(ctx).Model(&model.GiftCard{}).
			Where("id = ?", giftCardID).
			Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return errs.ErrGiftCardNotFound
		}
		return errs.ErrGiftCardUnavailable
	}
	return nil
}

func (r *giftCardRepoImpl) Release(ctx context.Context, tx *gorm.DB, giftCardID string) error {
	return tx.WithContext(ctx).Model(&model.GiftCard{}).
		Where("id = ?", giftCardID).
		Updates(map[string]interface{}{
			"reserved_by_payment_id": nil,
			"reserved_at":            nil,
			"updated_at":             time.Now(),
		}).Error
}

func (r *giftCardRepoImpl) Consume(ctx context.Context, tx *gorm.DB, giftCardID string) error {
	result := tx.WithContext(ctx).Model(&model.GiftCard{}).
		Where("id = ? AND active = ?", giftCardID, true).
		Updates(map[string]interface{}{
			"active":                 false,
			"reserved_by_payment_id": nil,
			"reserved_at":            nil,
			"updated_at":             time.Now(),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errs.ErrGiftCardNotFound
	}
	return nil
}
