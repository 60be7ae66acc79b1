package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/manovHacksaw/Mizu-Pay-sub000/internal/config"
)

// GiftCardEmail carries the decrypted redemption data for one delivery.
// Instances are short-lived and must never be logged.
type GiftCardEmail struct {
	Store     string
	Currency  string
	AmountUSD float64
	Number    string
	Pin       string
}

// PaymentContext is the id-only context included in the email for support
// reference. Safe to log.
type PaymentContext struct {
	PaymentID string
	SessionID string
	TxHash    string
}

type EmailDispatcher interface {
	SendGiftCard(ctx context.Context, to string, card *GiftCardEmail, pctx *PaymentContext) error
}

type emailClientImpl struct {
	httpClient *http.Client
	baseAPIURL string
	apiKey     string
	from       string
}

func NewEmailClient(emailCfg *config.Email) EmailDispatcher {
	return &emailClientImpl{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseAPIURL: emailCfg.BaseAPIURL,
		apiKey:     emailCfg.APIKey,
		from:       emailCfg.From,
	}
}

func (c *emailClientImpl) SendGiftCard(ctx context.Context, to string, card *GiftCardEmail, pctx *PaymentContext) error {
	payload := map[string]interface{}{
		"from":    c.from,
		"to":      []string{to},
		"subject": fmt.Sprintf("Your %s gift card is ready", card.Store),
		"html":    giftCardHTML(card, pctx),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal email payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseAPIURL+"/emails", bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("http new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("email request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("email api error %d: %s", resp.StatusCode, string(b))
	}

	return nil
}

func giftCardHTML(card *GiftCardEmail, pctx *PaymentContext) string {
	pinRow := ""
	if card.Pin != "" {
		pinRow = fmt.Sprintf(`<p>PIN: <strong>%s</strong></p>`, card.Pin)
	}

	return fmt.Sprintf(`
	<div style="font-family: Arial, sans-serif; max-width: 480px; margin: 0 auto;">
		<h2>Thanks for your purchase!</h2>
		<p>Here is your %s gift card worth %.2f %s.</p>
		<p>Card number: <strong>%s</strong></p>
		%s
		<hr>
		<p style="color: #888; font-size: 12px;">
			Order reference: %s<br>
			Transaction: %s
		</p>
	</div>
	`, card.Store, card.AmountUSD, card.Currency, card.Number, pinRow, pctx.PaymentID, pctx.TxHash)
}
