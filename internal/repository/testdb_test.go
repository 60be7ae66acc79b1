package repository

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/manovHacksaw/Mizu-Pay-sub000/internal/model"
)

// openTestDB gives each test a private in-memory database. A single
// connection keeps sqlite's locking out of the picture: concurrent
// transactions serialize instead of erroring.
func openTestDB(t *testing.T) *gorm.DB {
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

	return db
}
