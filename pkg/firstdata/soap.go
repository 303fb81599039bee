/**
 * @description
 * This package implements the First Data SOAP service contract: envelope
 * encoding/decoding for the pubRedemption, pubReversal, and pubPing
 * operations, and the routing rule that sends a reversal either to
 * reversal-of-redemption or to timeout processing based on its revReason.
 *
 * @notes
 * - Caller authenticity is certificate-based (serial-number allow-list) and
 *   enforced by the HTTP layer before these payloads are decoded.
 */

package firstdata

import (
	"encoding/xml"
	"fmt"
	"strings"
)

// RevReasonTimeout is the sentinel revReason that routes a pubReversal to
// timeout processing instead of reversal-of-redemption.
const RevReasonTimeout = "TIMEOUT"

// TransactionID composes the ledger idempotency key for a First Data event.
// The offer id alone repeats across purchases; the auth code pins the event
// to one transaction. Reversals, settlements, and extract records all carry
// both fields, so every leg of a transaction derives the same key.
func TransactionID(offerID, authCode string) string {
	return offerID + ":" + authCode
}

// Operation identifies a decoded SOAP operation.
type Operation string

const (
	OpRedemption Operation = "pubRedemption"
	OpReversal   Operation = "pubReversal"
	OpPing       Operation = "pubPing"
)

// Envelope is the SOAP 1.1 envelope wrapper.
type Envelope struct {
	XMLName xml.Name `xml:"http://schemas.xmlsoap.org/soap/envelope/ Envelope"`
	Body    Body     `xml:"Body"`
}

// Body holds exactly one of the supported operation payloads.
type Body struct {
	XMLName    xml.Name           `xml:"Body"`
	Redemption *RedemptionRequest `xml:"pubRedemptionRequest"`
	Reversal   *ReversalRequest   `xml:"pubReversalRequest"`
	Ping       *PingRequest       `xml:"pubPingRequest"`
}

// RedemptionRequest is the pubRedemption payload.
type RedemptionRequest struct {
	XMLName       xml.Name `xml:"pubRedemptionRequest"`
	ReqID         string   `xml:"reqID"`
	OfferID       string   `xml:"offerId"`
	PurchaseDate  string   `xml:"purchaseDate"`
	PurchasePrice int64    `xml:"purchasePrice"`
	AuthCode      string   `xml:"authCode"`
	MerchantID    string   `xml:"merchantId"`
	CardSuffix    string   `xml:"cardSuffix"`
}

// ReversalRequest is the pubReversal payload.
type ReversalRequest struct {
	XMLName   xml.Name `xml:"pubReversalRequest"`
	ReqID     string   `xml:"reqID"`
	OfferID   string   `xml:"offerId"`
	AuthCode  string   `xml:"authCode"`
	RevReason string   `xml:"revReason"`
	Amount    int64    `xml:"amount"`
}

// IsTimeout reports whether the reversal routes to timeout processing.
func (r *ReversalRequest) IsTimeout() bool {
	return strings.EqualFold(strings.TrimSpace(r.RevReason), RevReasonTimeout)
}

// PingRequest is the pubPing payload.
type PingRequest struct {
	XMLName xml.Name `xml:"pubPingRequest"`
	ReqID   string   `xml:"reqID"`
}

// ResponseEnvelope wraps an operation response for encoding.
type ResponseEnvelope struct {
	XMLName xml.Name     `xml:"http://schemas.xmlsoap.org/soap/envelope/ Envelope"`
	Body    ResponseBody `xml:"Body"`
}

// ResponseBody carries exactly one operation response.
type ResponseBody struct {
	XMLName    xml.Name            `xml:"Body"`
	Redemption *RedemptionResponse `xml:"pubRedemptionResponse,omitempty"`
	Reversal   *ReversalResponse   `xml:"pubReversalResponse,omitempty"`
	Ping       *PingResponse       `xml:"pubPingResponse,omitempty"`
}

// RedemptionResponse acks a pubRedemption.
type RedemptionResponse struct {
	ReqID      string `xml:"reqID"`
	RespCode   string `xml:"respCode"`
	RespText   string `xml:"respText"`
	DiscountAmount int64 `xml:"discountAmount"`
}

// ReversalResponse acks a pubReversal.
type ReversalResponse struct {
	ReqID    string `xml:"reqID"`
	RespCode string `xml:"respCode"`
	RespText string `xml:"respText"`
}

// PingResponse acks a pubPing.
type PingResponse struct {
	ReqID    string `xml:"reqID"`
	RespText string `xml:"respText"`
}

// Decode parses a SOAP envelope and identifies its operation.
func Decode(raw []byte) (*Envelope, Operation, error) {
	var env Envelope
	if err := xml.Unmarshal(raw, &env); err != nil {
		return nil, "", fmt.Errorf("failed to decode soap envelope: %w", err)
	}
	switch {
	case env.Body.Redemption != nil:
		return &env, OpRedemption, nil
	case env.Body.Reversal != nil:
		return &env, OpReversal, nil
	case env.Body.Ping != nil:
		return &env, OpPing, nil
	}
	return nil, "", fmt.Errorf("soap envelope carries no supported operation")
}

// Encode serializes a response envelope with the XML declaration First Data
// expects.
func Encode(body ResponseBody) ([]byte, error) {
	env := ResponseEnvelope{Body: body}
	raw, err := xml.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("failed to encode soap response: %w", err)
	}
	return append([]byte(xml.Header), raw...), nil
}
