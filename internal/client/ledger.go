package client

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/manovHacksaw/Mizu-Pay-sub000/internal/config"
)

var (
	ErrTxNotFound = errors.New("ledger: transaction not found")
	ErrTxPending  = errors.New("ledger: transaction not yet confirmed")
)

// TxInfo is the internal shape for an indexed transaction. The indexer's
// loosely-typed response is translated into this at the boundary so nothing
// downstream depends on the raw external schema.
type TxInfo struct {
	Hash          string
	From          string
	To            string
	Input         []byte
	Confirmations int64
	Success       bool
}

type LedgerClient interface {
	TransactionByHash(ctx context.Context, hash string) (*TxInfo, error)
}

type ledgerClientImpl struct {
	httpClient *http.Client
	baseAPIURL string
	apiKey     string
}

func NewLedgerClient(chainCfg *config.Chain) LedgerClient {
	return &ledgerClientImpl{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseAPIURL: strings.TrimRight(chainCfg.IndexerBaseURL, "/"),
		apiKey:     chainCfg.IndexerAPIKey,
	}
}

// indexerTx mirrors the indexer's transaction payload. Only the fields the
// verifier needs are decoded.
type indexerTx struct {
	Hash   string `json:"hash"`
	Status string `json:"status"` // "ok" | "error", empty while pending
	From   struct {
		Hash string `json:"hash"`
	} `json:"from"`
	To struct {
		Hash string `json:"hash"`
	} `json:"to"`
	RawInput      string `json:"raw_input"`
	Confirmations int64  `json:"confirmations"`
	BlockNumber   *int64 `json:"block_number"`
}

func (c *ledgerClientImpl) TransactionByHash(ctx context.Context, hash string) (*TxInfo, error) {
	url := fmt.Sprintf("%s/api/v2/transactions/%s", c.baseAPIURL, hash)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("http new request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ledger request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrTxNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ledger error %d: %s", resp.StatusCode, string(b))
	}

	var raw indexerTx
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode ledger response: %w", err)
	}

	// Not mined yet: the indexer knows the hash but has no block for it.
	if raw.BlockNumber == nil || raw.Status == "" {
		return nil, ErrTxPending
	}

	input, err := hex.DecodeString(strings.TrimPrefix(raw.RawInput, "0x"))
	if err != nil {
		return nil, fmt.Errorf("decode tx input of %s: %w", raw.Hash, err)
	}

	return &TxInfo{
		Hash:          raw.Hash,
		From:          raw.From.Hash,
		To:            raw.To.Hash,
		Input:         input,
		Confirmations: raw.Confirmations,
		Success:       raw.Status == "ok",
	}, nil
}
