// Package verifier checks that a submitted blockchain transaction actually
// pays for the session it claims to pay for. It polls the chain indexer
// until the transaction is buried deep enough, then cross-checks execution
// status, destination, sender and the encoded call parameters.
package verifier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/manovHacksaw/Mizu-Pay-sub000/internal/client"
	"github.com/manovHacksaw/Mizu-Pay-sub000/internal/config"
	"github.com/manovHacksaw/Mizu-Pay-sub000/internal/errs"
)

// Result reports the verification verdict together with the confirmation
// count observed, so callers can render progress even on failure.
type Result struct {
	Verified      bool
	Confirmations int64
}

type Verifier struct {
	ledger client.LedgerClient
	log    *zap.Logger

	paymentContract string
	threshold       int64
	pollInterval    time.Duration
	maxWait         time.Duration
	tokenDecimals   int32
}

func New(ledger client.LedgerClient, chainCfg *config.Chain, log *zap.Logger) *Verifier {
	return &Verifier{
		ledger:          ledger,
		log:             log,
		paymentContract: chainCfg.PaymentContract,
		threshold:       chainCfg.ConfirmationThreshold,
		pollInterval:    chainCfg.PollInterval,
		maxWait:         chainCfg.MaxWait,
		tokenDecimals:   chainCfg.TokenDecimals,
	}
}

// Verify blocks until the transaction reaches the confirmation threshold or
// the wait budget runs out, then validates it against the expected session.
// A failed verdict is always an *errs.VerificationError; the Result carries
// the confirmations observed either way.
func (v *Verifier) Verify(ctx context.Context, txHash, sessionID, expectedWallet string, expectedAmount decimal.Decimal) (Result, error) {
	info, confirmations, err := v.awaitConfirmations(ctx, txHash)
	if err != nil {
		return Result{Confirmations: confirmations}, err
	}

	result := Result{Confirmations: info.Confirmations}

	if !info.Success {
		return result, &errs.VerificationError{
			Reason:        errs.ReasonExecutionFailed,
			Detail:        fmt.Sprintf("transaction %s reverted on chain", txHash),
			Confirmations: info.Confirmations,
		}
	}

	if !strings.EqualFold(info.To, v.paymentContract) {
		return result, &errs.VerificationError{
			Reason:        errs.ReasonWrongDestination,
			Detail:        fmt.Sprintf("transaction sent to %s, expected payment contract %s", info.To, v.paymentContract),
			Confirmations: info.Confirmations,
		}
	}

	if !strings.EqualFold(info.From, expectedWallet) {
		return result, &errs.VerificationError{
			Reason:        errs.ReasonWrongSender,
			Detail:        fmt.Sprintf("transaction sent from %s, expected session wallet %s", info.From, expectedWallet),
			Confirmations: info.Confirmations,
		}
	}

	if err := v.checkCallParams(info, sessionID, expectedAmount, result.Confirmations); err != nil {
		return result, err
	}

	v.log.Info("transaction verified",
		zap.String("tx_hash", txHash),
		zap.String("session_id", sessionID),
		zap.Int64("confirmations", info.Confirmations),
	)

	result.Verified = true
	return result, nil
}

// awaitConfirmations polls the indexer until the transaction is confirmed
// deep enough. "Not found yet" and "not confirmed yet" are retryable;
// transient indexer errors are retried within the same budget and surface
// as a timeout, never as a distinct terminal verdict.
func (v *Verifier) awaitConfirmations(ctx context.Context, txHash string) (*client.TxInfo, int64, error) {
	deadline := time.Now().Add(v.maxWait)
	var observed int64

	for {
		info, err := v.ledger.TransactionByHash(ctx, txHash)
		switch {
		case err == nil && info.Confirmations >= v.threshold:
			return info, info.Confirmations, nil
		case err == nil:
			observed = info.Confirmations
		case errors.Is(err, client.ErrTxNotFound) || errors.Is(err, client.ErrTxPending):
			// keep waiting
		default:
			v.log.Warn("transient ledger error while polling",
				zap.String("tx_hash", txHash),
				zap.Error(err),
			)
		}

		if time.Now().After(deadline) {
			return nil, observed, &errs.VerificationError{
				Reason:        errs.ReasonTimeout,
				Detail:        fmt.Sprintf("transaction %s did not reach %d confirmations within %s", txHash, v.threshold, v.maxWait),
				Confirmations: observed,
			}
		}

		select {
		case <-ctx.Done():
			return nil, observed, &errs.VerificationError{
				Reason:        errs.ReasonTimeout,
				Detail:        fmt.Sprintf("verification of %s cancelled: %v", txHash, ctx.Err()),
				Confirmations: observed,
			}
		case <-time.After(v.pollInterval):
		}
	}
}

// checkCallParams decodes the transaction's fixed-layout input and compares
// it byte-for-byte against an independent re-encoding of the expected
// session id and amount. The decoded call parameters are authoritative; no
// tolerance applies here.
func (v *Verifier) checkCallParams(info *client.TxInfo, sessionID string, expectedAmount decimal.Decimal, confirmations int64) error {
	gotSession, gotAmount, err := DecodeCallInput(info.Input)
	if err != nil {
		return &errs.VerificationError{
			Reason:        errs.ReasonParamMismatch,
			Detail:        fmt.Sprintf("malformed call input: %v", err),
			Confirmations: confirmations,
		}
	}

	wantSession, err := EncodeSessionID(sessionID)
	if err != nil {
		return &errs.VerificationError{
			Reason:        errs.ReasonParamMismatch,
			Detail:        fmt.Sprintf("session id not encodable: %v", err),
			Confirmations: confirmations,
		}
	}
	if gotSession != wantSession {
		return &errs.VerificationError{
			Reason:        errs.ReasonParamMismatch,
			Detail:        fmt.Sprintf("session id mismatch: transaction pays for %q, expected %q", DecodeSessionID(gotSession), sessionID),
			Confirmations: confirmations,
		}
	}

	wantAmountWord, err := EncodeAmount(expectedAmount, v.tokenDecimals)
	if err != nil {
		return &errs.VerificationError{
			Reason:        errs.ReasonParamMismatch,
			Detail:        fmt.Sprintf("expected amount not encodable: %v", err),
			Confirmations: confirmations,
		}
	}
	var gotAmountWord [wordSize]byte
	raw := gotAmount.Bytes()
	copy(gotAmountWord[wordSize-len(raw):], raw)

	if gotAmountWord != wantAmountWord {
		return &errs.VerificationError{
			Reason:        errs.ReasonParamMismatch,
			Detail:        fmt.Sprintf("amount mismatch: transaction pays %s base units, expected %s tokens", gotAmount, expectedAmount),
			Confirmations: confirmations,
		}
	}

	return nil
}
