/**
 * @description
 * Outbound SOAP client for the First Data publisher service: registers a
 * merchant's offer catalog so redemptions can reference it. Registration is
 * per merchant and idempotent on the partner side, which is what lets the
 * registration job retry merchant-by-merchant.
 *
 * @dependencies
 * - bytes, context, encoding/xml, fmt, io, net/http, time: Standard Go libraries.
 * - internal/domain: Partner identifiers.
 */

package firstdata

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/CardLinx/microsoft-earn-sub008/internal/domain"
)

// Client posts operations to the First Data publisher endpoint.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// NewClient creates a First Data SOAP client.
func NewClient(endpoint string) *Client {
	return &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// OfferRegistrationRequest is the pubOfferRegistration payload.
type OfferRegistrationRequest struct {
	XMLName    xml.Name `xml:"pubOfferRegistrationRequest"`
	ReqID      string   `xml:"reqID"`
	MerchantID string   `xml:"merchantId"`
}

// OfferRegistrationResponse acks a pubOfferRegistration.
type OfferRegistrationResponse struct {
	ReqID    string `xml:"reqID"`
	RespCode string `xml:"respCode"`
	RespText string `xml:"respText"`
}

type registrationEnvelope struct {
	XMLName xml.Name `xml:"http://schemas.xmlsoap.org/soap/envelope/ Envelope"`
	Body    struct {
		Request *OfferRegistrationRequest `xml:"pubOfferRegistrationRequest"`
	} `xml:"Body"`
}

type registrationResponseEnvelope struct {
	XMLName xml.Name `xml:"Envelope"`
	Body    struct {
		Response *OfferRegistrationResponse `xml:"pubOfferRegistrationResponse"`
	} `xml:"Body"`
}

// RegisterOffers registers a merchant's current offer catalog. The partner
// argument satisfies the job contract; this client only serves First Data.
func (c *Client) RegisterOffers(ctx context.Context, _ domain.Partner, merchantID string) error {
	env := registrationEnvelope{}
	env.Body.Request = &OfferRegistrationRequest{
		ReqID:      fmt.Sprintf("reg-%s-%d", merchantID, time.Now().UnixNano()),
		MerchantID: merchantID,
	}
	raw, err := xml.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to encode registration request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(append([]byte(xml.Header), raw...)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", "pubOfferRegistration")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("registration call failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read registration response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("registration returned HTTP %d", resp.StatusCode)
	}

	var ack registrationResponseEnvelope
	if err := xml.Unmarshal(body, &ack); err != nil {
		return fmt.Errorf("failed to decode registration response: %w", err)
	}
	if ack.Body.Response == nil {
		return fmt.Errorf("registration response carries no ack")
	}
	if ack.Body.Response.RespCode != "0" {
		return fmt.Errorf("registration rejected for merchant %s: %s (%s)", merchantID, ack.Body.Response.RespCode, ack.Body.Response.RespText)
	}
	return nil
}
