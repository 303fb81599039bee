/**
 * @description
 * Shared response envelope for the first-party card API. Every response body
 * carries the canonical result code plus its audit explanation, so callers
 * and log scrapers never need partner vocabulary.
 */

package api

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/CardLinx/microsoft-earn-sub008/internal/domain"
)

// resultResponse is the standard API response envelope.
type resultResponse struct {
	ResultCode  domain.ResultCode `json:"result_code"`
	Explanation string            `json:"explanation"`
	Payload     interface{}       `json:"payload,omitempty"`
}

// writeResult sends the envelope. Business outcomes ride on HTTP 200; only
// authentication failures and unexpected faults use other statuses.
func writeResult(w http.ResponseWriter, status int, code domain.ResultCode, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resultResponse{
		ResultCode:  code,
		Explanation: code.Explanation(),
		Payload:     payload,
	}); err != nil {
		log.Printf("level=error component=api msg=\"failed to encode response\" err=%v", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("level=error component=api msg=\"failed to encode response\" err=%v", err)
	}
}
