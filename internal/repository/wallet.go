package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/manovHacksaw/Mizu-Pay-sub000/internal/model"
)

type WalletRepository interface {
	FindByID(ctx context.Context, id string) (*model.Wallet, error)
}

type walletRepoImpl struct {
	db *gorm.DB
}

func NewWalletRepository(db *gorm.DB) WalletRepository {
	return &walletRepoImpl{
		db: db,
	}
}

func (r *walletRepoImpl) FindByID(ctx context.Context, id string) (*model.Wallet, error) {
	var wallet model.Wallet
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&wallet).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("wallet %s not found", id)
		}
		return nil, err
	}

	return &wallet, nil
}
