/**
 * @description
 * This package defines the Visa endpoint-message webhook contract: the
 * inbound EndPointMessageRequest envelope, the routing rules that classify a
 * payload into authorization / clearing / statement-credit traffic, and the
 * ack envelope Visa expects back.
 *
 * @notes
 * - Visa always receives HTTP 200; business failure is signaled in the body.
 *   Malformed input is acked with StatusCode "100" so Visa does not retry.
 * - Statement-credit messages occasionally arrive on the clearing path, so
 *   routing falls back to inspecting MessageName.
 */

package visaclient

import (
	"strings"
)

// MessageKind classifies an inbound Visa endpoint message.
type MessageKind string

const (
	KindAuthorization   MessageKind = "Authorization"
	KindClearing        MessageKind = "Clearing"
	KindStatementCredit MessageKind = "StatementCredit"
	KindUnknown         MessageKind = "Unknown"
)

// Webhook path suffixes Visa posts to.
const (
	PathAuthorization   = "/authorization"
	PathClearing        = "/clearing"
	PathStatementCredit = "/statementcredit"
)

const statementCreditMessageName = "StatementCreditEndPoint"

// EndPointMessageRequest is the Visa webhook envelope. Fields beyond the
// routing and correlation set are carried opaquely in MessageElements.
type EndPointMessageRequest struct {
	ReqID           string           `json:"reqID"`
	MessageID       string           `json:"MessageId"`
	MessageName     string           `json:"MessageName"`
	UserProfileID   string           `json:"UserProfileId"`
	UserIdentifier  string           `json:"UserIdentifier"`
	CardID          string           `json:"CardId"`
	ExternalUserID  string           `json:"ExternalUserId"`
	MessageElements []MessageElement `json:"MessageElementsCollection"`
}

// MessageElement is a Visa key/value message field.
type MessageElement struct {
	Key   string `json:"Key"`
	Value string `json:"Value"`
}

// Element returns the value of a message element by key.
func (r *EndPointMessageRequest) Element(key string) (string, bool) {
	for _, el := range r.MessageElements {
		if el.Key == key {
			return el.Value, true
		}
	}
	return "", false
}

// Response is the ack envelope Visa expects. StatusCode "0" acknowledges the
// message; "100" marks malformed input.
type Response struct {
	StatusCode   string `json:"StatusCode"`
	ErrorMessage string `json:"ErrorMessage,omitempty"`
}

const (
	StatusAccepted  = "0"
	StatusMalformed = "100"
)

// Ack builds a success response.
func Ack() Response {
	return Response{StatusCode: StatusAccepted}
}

// Malformed builds the rejection response for unparsable input.
func Malformed(reason string) Response {
	return Response{StatusCode: StatusMalformed, ErrorMessage: reason}
}

// Classify routes an inbound payload by URL path, falling back to the
// MessageName when statement-credit traffic is posted to the clearing path.
func Classify(path, messageName string) MessageKind {
	switch {
	case strings.HasSuffix(path, PathAuthorization):
		return KindAuthorization
	case strings.HasSuffix(path, PathStatementCredit):
		return KindStatementCredit
	case strings.HasSuffix(path, PathClearing):
		if strings.Contains(messageName, statementCreditMessageName) {
			return KindStatementCredit
		}
		return KindClearing
	}
	return KindUnknown
}
