/**
 * @description
 * Outbound client for the Visa endpoint-message service: submits the
 * statement-credit request for a settled redemption. Visa answers with the
 * same ack envelope the webhook emits; the credit itself is confirmed later
 * by a StatementCreditEndPoint message back on the webhook.
 *
 * @dependencies
 * - bytes, context, encoding/json, fmt, net/http, strconv, time: Standard Go libraries.
 * - internal/domain: The redeemed-deal model.
 */

package visaclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/CardLinx/microsoft-earn-sub008/internal/domain"
)

// Message-element keys the outbound request carries.
const (
	ElementVipTransactionID = "Transaction.VipTransactionId"
	ElementCreditAmount     = "Transaction.CreditAmount"
	ElementCurrency         = "Transaction.CurrencyCode"
)

// Client posts statement-credit requests to the Visa endpoint-message service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Visa endpoint-message client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// RequestStatementCredit submits the credit request for one settled deal. The
// deal's partner transaction id keys the request, so a resubmission lands on
// the same credit.
func (c *Client) RequestStatementCredit(ctx context.Context, deal *domain.RedeemedDeal) error {
	msg := EndPointMessageRequest{
		ReqID:       fmt.Sprintf("credit-%s-%d", deal.ID, time.Now().UnixNano()),
		MessageID:   deal.ID.String(),
		MessageName: statementCreditMessageName + "Request",
		MessageElements: []MessageElement{
			{Key: ElementVipTransactionID, Value: deal.PartnerRedeemedDealID},
			{Key: ElementCreditAmount, Value: strconv.FormatInt(deal.DiscountAmount, 10)},
			{Key: ElementCurrency, Value: deal.Currency},
		},
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode credit request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+PathStatementCredit, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("credit request call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("credit request returned HTTP %d", resp.StatusCode)
	}
	var ack Response
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		return fmt.Errorf("failed to decode credit request response: %w", err)
	}
	if ack.StatusCode != StatusAccepted {
		return fmt.Errorf("credit request for %s rejected: %s (%s)", deal.PartnerRedeemedDealID, ack.StatusCode, ack.ErrorMessage)
	}
	return nil
}
