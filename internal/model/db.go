package model

import "time"

const (
	SessionStatusPending     = "pending"
	SessionStatusPaid        = "paid"
	SessionStatusFulfilled   = "fulfilled"
	SessionStatusFailed      = "failed"
	SessionStatusEmailFailed = "email_failed"
	SessionStatusExpired     = "expired"
)

const (
	PaymentStatusConfirming  = "confirming"
	PaymentStatusSucceeded   = "succeeded"
	PaymentStatusFailed      = "failed"
	PaymentStatusEmailFailed = "email_failed"
)

type User struct {
	ID        string `gorm:"primaryKey;size:64;not null"`
	Email     string `gorm:"size:255;index;not null"`
	Name      string `gorm:"size:120"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Wallet struct {
	ID        string `gorm:"primaryKey;size:64;not null"`
	UserID    string `gorm:"size:64;index;not null"`
	Address   string `gorm:"size:64;uniqueIndex;not null"` // 0x-prefixed, stored lowercase
	Chain     string `gorm:"size:32;not null"`
	CreatedAt time.Time
}

type PaymentSession struct {
	ID        string  `gorm:"primaryKey;size:64;not null"`
	Store     string  `gorm:"size:64;index;not null"`
	AmountUSD float64 `gorm:"not null"`
	Currency  string  `gorm:"size:8;not null"`
	// pending, paid, fulfilled, failed, email_failed, expired
	Status     string  `gorm:"size:32;index;not null"`
	WalletID   string  `gorm:"size:64;index;not null"`
	UserID     string  `gorm:"size:64;index;not null"`
	GiftCardID *string `gorm:"size:64;index"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
	ExpiresAt  time.Time `gorm:"index;not null"`
}

type Payment struct {
	ID           string `gorm:"primaryKey;size:64;not null"`
	SessionID    string `gorm:"size:64;uniqueIndex;not null"` // at most one payment per session
	WalletID     string `gorm:"size:64;index;not null"`
	UserID       string `gorm:"size:64;index;not null"`
	AmountCrypto string `gorm:"size:78;not null"` // decimal string in token units
	Token        string `gorm:"size:16;not null"`
	TxHash       string `gorm:"size:66;index;not null"`
	// confirming, succeeded, failed, email_failed
	Status    string `gorm:"size:32;index;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// GiftCard is shared inventory. A card is reservable iff it is active and
// not reserved by any payment; it is consumed (active=false) exactly once,
// only after its redemption email was delivered.
type GiftCard struct {
	ID              string  `gorm:"primaryKey;size:64;not null"`
	Store           string  `gorm:"size:64;index;not null"`
	Currency        string  `gorm:"size:8;not null"`
	AmountUSD       float64 `gorm:"not null"`
	EncryptedNumber string  `gorm:"size:512;not null"`
	EncryptedPin    string  `gorm:"size:512"`
	IV              string  `gorm:"size:64;not null"`
	Tag             string  `gorm:"size:64;not null"`
	PinIV           string  `gorm:"size:64"`
	PinTag          string  `gorm:"size:64"`
	Active          bool    `gorm:"index;not null;default:true"`

	ReservedByPaymentID *string `gorm:"size:64;index"`
	ReservedAt          *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Reservable reports whether the card can be handed to a new payment.
func (g *GiftCard) Reservable() bool {
	return g.Active && g.ReservedByPaymentID == nil
}
