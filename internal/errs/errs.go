package errs

import (
	"errors"
	"fmt"
)

var (
	ErrSessionNotFound     = errors.New("session not found")
	ErrGiftCardNotFound    = errors.New("gift card not found")
	ErrGiftCardUnavailable = errors.New("gift card unavailable")
	ErrPaymentNotFound     = errors.New("payment not found")
	ErrDuplicatePayment    = errors.New("payment already recorded for this session")
)

// ValidationError rejects a malformed or incomplete request before any
// verification or persistence happens.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// SessionStateError rejects a request whose session is not in a state that
// allows recording a payment (already paid, expired, failed, ...).
type SessionStateError struct {
	SessionID string
	Status    string
}

func (e *SessionStateError) Error() string {
	return fmt.Sprintf("session %s is %s", e.SessionID, e.Status)
}

type VerifyReason string

const (
	ReasonWrongDestination VerifyReason = "wrong_destination"
	ReasonWrongSender      VerifyReason = "wrong_sender"
	ReasonParamMismatch    VerifyReason = "param_mismatch"
	ReasonExecutionFailed  VerifyReason = "execution_failed"
	ReasonTimeout          VerifyReason = "timeout"
)

// VerificationError is a terminal on-chain verification verdict. It always
// carries the confirmation count observed so far so callers can report
// progress alongside the failure.
type VerificationError struct {
	Reason        VerifyReason
	Detail        string
	Confirmations int64
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("transaction verification failed (%s): %s", e.Reason, e.Detail)
}

// DecryptionError means stored gift card secrets could not be opened. The
// underlying cause is kept for logs; the detail never includes key material.
type DecryptionError struct {
	Err error
}

func (e *DecryptionError) Error() string {
	return "gift card decryption failed"
}

func (e *DecryptionError) Unwrap() error {
	return e.Err
}

// EmailDeliveryError means the payment verified but the redemption email
// could not be delivered. A distinct terminal state: manual support follow-up
// is required.
type EmailDeliveryError struct {
	Msg string
}

func (e *EmailDeliveryError) Error() string {
	return e.Msg
}

// UnexpectedError wraps any failure in phase 2 that has no more specific
// classification, after the compensating transaction has run.
type UnexpectedError struct {
	Err error
}

func (e *UnexpectedError) Error() string {
	return "unexpected fulfillment failure"
}

func (e *UnexpectedError) Unwrap() error {
	return e.Err
}
