package dto

type RecordPaymentRequest struct {
	SessionID    string  `json:"sessionId"`
	TxHash       string  `json:"txHash"`
	AmountCrypto string  `json:"amountCrypto"`
	Token        string  `json:"token"`
	GiftCardID   *string `json:"giftCardId,omitempty"`
}

type PaymentInfo struct {
	ID           string `json:"id"`
	SessionID    string `json:"sessionId"`
	TxHash       string `json:"txHash"`
	AmountCrypto string `json:"amountCrypto"`
	Token        string `json:"token"`
	Status       string `json:"status"`
}

type SessionInfo struct {
	ID         string  `json:"id"`
	Status     string  `json:"status"`
	GiftCardID *string `json:"giftCardId,omitempty"`
}

type RecordPaymentResponse struct {
	Success bool        `json:"success"`
	Payment PaymentInfo `json:"payment"`
	Session SessionInfo `json:"session"`
}

type CreateSessionRequest struct {
	Store     string  `json:"store"`
	AmountUSD float64 `json:"amountUSD"`
	Currency  string  `json:"currency"`
	WalletID  string  `json:"walletId"`
	UserID    string  `json:"userId"`
}

type GiftCardInfo struct {
	ID        string  `json:"id"`
	Store     string  `json:"store"`
	Currency  string  `json:"currency"`
	AmountUSD float64 `json:"amountUSD"`
}

type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message,omitempty"`
	Confirmations *int64 `json:"confirmations,omitempty"`
}
