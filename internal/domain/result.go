/**
 * @description
 * This file defines the canonical outcome taxonomy shared by every lifecycle
 * operation and partner adapter. Partner-specific response codes are mapped
 * into these values at the adapter boundary, so the lifecycle engine and the
 * HTTP layer never see partner vocabulary.
 *
 * @notes
 * - Adapters return a ResultCode for every expected business outcome; a Go
 *   error is reserved for transport-level faults (network failure, malformed
 *   response body).
 */

package domain

// ResultCode is the universal outcome type returned by lifecycle operations.
type ResultCode string

const (
	ResultNone                 ResultCode = "None"
	ResultSuccess              ResultCode = "Success"
	ResultCreated              ResultCode = "Created"
	ResultJobQueued            ResultCode = "JobQueued"
	ResultDuplicateTransaction ResultCode = "DuplicateTransaction"
	ResultNotFound             ResultCode = "NotFound"
	ResultInvalidCard          ResultCode = "InvalidCard"
	ResultInvalidDeal          ResultCode = "InvalidDeal"
	ResultInvalidPartnerMessage  ResultCode = "InvalidPartnerMessage"
	ResultCardExistsWithDifferentToken ResultCode = "CardExistsWithDifferentToken"
	ResultSystemBusy           ResultCode = "SystemBusy"
	ResultInvalidClientCertificate ResultCode = "InvalidClientCertificate"
	ResultInvalidToken         ResultCode = "InvalidToken"
	ResultUnauthorizedCaller   ResultCode = "UnauthorizedCaller"
	ResultUnknownError         ResultCode = "UnknownError"
)

// IsSuccessful reports whether the result represents a business-level success
// (including warning-grade outcomes a synchronous caller should treat as OK).
func (r ResultCode) IsSuccessful() bool {
	switch r {
	case ResultSuccess, ResultCreated, ResultJobQueued, ResultDuplicateTransaction:
		return true
	}
	return false
}

// Retryable reports whether a caller can plausibly succeed by retrying.
func (r ResultCode) Retryable() bool {
	return r == ResultSystemBusy
}

// Explanation returns the human-readable audit string carried in response
// bodies alongside the code.
func (r ResultCode) Explanation() string {
	switch r {
	case ResultNone:
		return "No result was produced."
	case ResultSuccess:
		return "The operation completed successfully."
	case ResultCreated:
		return "A new record was created."
	case ResultJobQueued:
		return "The operation was accepted and queued for asynchronous completion."
	case ResultDuplicateTransaction:
		return "The event was already applied; no state was changed."
	case ResultNotFound:
		return "No matching record was found."
	case ResultInvalidCard:
		return "The card could not be validated by the partner."
	case ResultInvalidDeal:
		return "The referenced deal is unknown or not claimable."
	case ResultInvalidPartnerMessage:
		return "The partner message was malformed or carried an unknown identifier."
	case ResultCardExistsWithDifferentToken:
		return "The card is already enrolled under a different token."
	case ResultSystemBusy:
		return "The partner system is busy; retry later."
	case ResultInvalidClientCertificate:
		return "The presented client certificate is not on the allow-list."
	case ResultInvalidToken:
		return "The presented credential is invalid or expired."
	case ResultUnauthorizedCaller:
		return "The caller is not authorized to invoke this operation."
	}
	return "An unexpected error occurred."
}
