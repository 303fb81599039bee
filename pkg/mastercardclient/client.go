/**
 * @description
 * This package provides the MasterCard partner adapter: bearer-token REST
 * calls for card enrollment and removal, with MasterCard response codes
 * mapped into the canonical ResultCode taxonomy at this boundary.
 *
 * @dependencies
 * - internal/domain: Canonical result taxonomy.
 */

package mastercardclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/CardLinx/microsoft-earn-sub008/internal/domain"
)

// Client is the MasterCard partner adapter.
type Client struct {
	BaseURL     string
	BearerToken string
	HTTPClient  *http.Client
}

// NewClient creates a new MasterCard adapter.
func NewClient(baseURL, bearerToken string) *Client {
	return &Client{
		BaseURL:     baseURL,
		BearerToken: bearerToken,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// EnrollmentRequest is the MasterCard card enrollment payload.
type EnrollmentRequest struct {
	BankCustomerNumber string `json:"bankCustomerNumber"`
	AccountToken       string `json:"accountToken,omitempty"`
	MemberICA          string `json:"memberIca"`
	ProgramID          string `json:"programIdentifier"`
}

// EnrollmentResponse is the MasterCard enrollment response.
type EnrollmentResponse struct {
	BankCustomerNumber string `json:"bankCustomerNumber"`
	AccountID          string `json:"accountId"`
	AccountSuffix      string `json:"accountSuffix"`
	ReturnCode         string `json:"returnCode"`
	ReturnDescription  string `json:"returnDescription"`
}

// ResultCode maps MasterCard return codes onto the canonical taxonomy.
func (r *EnrollmentResponse) ResultCode() domain.ResultCode {
	switch r.ReturnCode {
	case "00", "":
		return domain.ResultSuccess
	case "10": // account already enrolled
		return domain.ResultSuccess
	case "20": // invalid account token
		return domain.ResultInvalidCard
	case "30": // enrollment exists under a different token
		return domain.ResultCardExistsWithDifferentToken
	case "90", "91": // partner system busy
		return domain.ResultSystemBusy
	}
	return domain.ResultUnknownError
}

// Partner identifies this adapter.
func (c *Client) Partner() domain.Partner {
	return domain.PartnerMasterCard
}

// AddCard enrolls a card with MasterCard and returns the partner link.
func (c *Client) AddCard(ctx context.Context, card *domain.Card) (*domain.PartnerLink, domain.ResultCode, error) {
	payload := EnrollmentRequest{
		BankCustomerNumber: card.ID.String(),
		AccountToken:       card.PANToken,
		MemberICA:          "16324",
		ProgramID:          "REWARDS",
	}
	resp, code, err := c.do(ctx, "/enrollment/customer", payload)
	if err != nil || !code.IsSuccessful() {
		return nil, code, err
	}
	link := &domain.PartnerLink{
		Partner:           domain.PartnerMasterCard,
		PartnerCardID:     resp.AccountID,
		PartnerCardSuffix: resp.AccountSuffix,
	}
	return link, code, nil
}

// RemoveCard unenrolls a card from MasterCard.
func (c *Client) RemoveCard(ctx context.Context, card *domain.Card) (domain.ResultCode, error) {
	payload := EnrollmentRequest{
		BankCustomerNumber: card.ID.String(),
		MemberICA:          "16324",
		ProgramID:          "REWARDS",
	}
	_, code, err := c.do(ctx, "/enrollment/customer/delete", payload)
	return code, err
}

func (c *Client) do(ctx context.Context, path string, payload EnrollmentRequest) (*EnrollmentResponse, domain.ResultCode, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, domain.ResultUnknownError, fmt.Errorf("failed to marshal enrollment request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewBuffer(body))
	if err != nil {
		return nil, domain.ResultUnknownError, fmt.Errorf("failed to create enrollment request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.BearerToken)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, domain.ResultSystemBusy, fmt.Errorf("failed to execute enrollment request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.ResultSystemBusy, fmt.Errorf("failed to read enrollment response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		log.Printf("level=warn component=mastercard_client op=enrollment status=%d msg=\"bearer token rejected\"", resp.StatusCode)
		return nil, domain.ResultInvalidToken, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Printf("level=warn component=mastercard_client op=enrollment status=%d msg=\"non-2xx response\"", resp.StatusCode)
		return nil, domain.ResultSystemBusy, nil
	}

	var enrollResp EnrollmentResponse
	if err := json.Unmarshal(bodyBytes, &enrollResp); err != nil {
		return nil, domain.ResultUnknownError, fmt.Errorf("failed to decode enrollment response: %w", err)
	}

	code := enrollResp.ResultCode()
	if code == domain.ResultUnknownError {
		log.Printf("level=warn component=mastercard_client op=enrollment return_code=%s desc=%q", enrollResp.ReturnCode, enrollResp.ReturnDescription)
	}
	return &enrollResp, code, nil
}
