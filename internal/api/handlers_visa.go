/**
 * @description
 * The Visa endpoint-message webhook. Visa always receives HTTP 200: business
 * outcomes ride in the response body, and malformed input is acked with
 * StatusCode "100" so Visa stops retrying it. Routing is by URL path with a
 * MessageName fallback for statement-credit traffic posted to the clearing
 * path.
 *
 * @dependencies
 * - encoding/json, log, net/http, strconv, time: Standard Go libraries.
 * - internal/domain, pkg/visaclient: Event models and the webhook contract.
 */

package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/CardLinx/microsoft-earn-sub008/internal/domain"
	"github.com/CardLinx/microsoft-earn-sub008/pkg/visaclient"
)

// Visa message-element keys this service consumes.
const (
	elVipTransactionID  = "Transaction.VipTransactionId"
	elTransactionAmount = "Transaction.TransactionAmount"
	elTimestamp         = "Transaction.TimeStampYYMMDD"
	elUserDefinedData   = "Transaction.UserDefinedData"
	elSettlementAmount  = "Transaction.SettlementAmount"
)

const visaTimestampLayout = "060102 15:04:05"

// VisaWebhookHandler processes one inbound endpoint message.
func (h *Handlers) VisaWebhookHandler(w http.ResponseWriter, r *http.Request) {
	var msg visaclient.EndPointMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		writeJSON(w, http.StatusOK, visaclient.Malformed("undecodable payload"))
		return
	}

	kind := visaclient.Classify(r.URL.Path, msg.MessageName)
	log.Printf("VisaWebhookHandler: Message %s classified %s", msg.MessageID, kind)

	switch kind {
	case visaclient.KindAuthorization:
		h.visaAuthorization(w, r, &msg)
	case visaclient.KindClearing:
		h.visaClearing(w, r, &msg)
	case visaclient.KindStatementCredit:
		h.visaStatementCredit(w, r, &msg)
	default:
		writeJSON(w, http.StatusOK, visaclient.Malformed("unroutable message"))
	}
}

// visaStatementCredit closes the loop opened by the outbound credit request:
// the referenced deal moves to CreditGranted.
func (h *Handlers) visaStatementCredit(w http.ResponseWriter, r *http.Request, msg *visaclient.EndPointMessageRequest) {
	transactionID, ok := msg.Element(elVipTransactionID)
	if !ok || transactionID == "" {
		writeJSON(w, http.StatusOK, visaclient.Malformed("missing transaction id"))
		return
	}

	code, err := h.service.GrantStatementCredit(r.Context(), transactionID)
	if err != nil {
		log.Printf("VisaWebhookHandler: Credit confirmation %s failed: %v", transactionID, err)
		writeJSON(w, http.StatusOK, visaclient.Ack())
		return
	}
	if !code.IsSuccessful() {
		log.Printf("VisaWebhookHandler: Credit confirmation %s resolved %s", transactionID, code)
	}
	writeJSON(w, http.StatusOK, visaclient.Ack())
}

func (h *Handlers) visaAuthorization(w http.ResponseWriter, r *http.Request, msg *visaclient.EndPointMessageRequest) {
	transactionID, ok := msg.Element(elVipTransactionID)
	if !ok || transactionID == "" {
		writeJSON(w, http.StatusOK, visaclient.Malformed("missing transaction id"))
		return
	}
	rawAmount, ok := msg.Element(elTransactionAmount)
	if !ok {
		writeJSON(w, http.StatusOK, visaclient.Malformed("missing transaction amount"))
		return
	}
	amount, err := strconv.ParseInt(rawAmount, 10, 64)
	if err != nil {
		writeJSON(w, http.StatusOK, visaclient.Malformed("bad transaction amount"))
		return
	}
	claimedDealRaw, _ := msg.Element(elUserDefinedData)
	claimedDealID, err := uuid.Parse(claimedDealRaw)
	if err != nil {
		writeJSON(w, http.StatusOK, visaclient.Malformed("missing claimed deal reference"))
		return
	}

	purchasedAt := time.Now()
	if raw, ok := msg.Element(elTimestamp); ok {
		if parsed, err := time.Parse(visaTimestampLayout, raw); err == nil {
			purchasedAt = parsed
		}
	}

	_, code, err := h.service.RedeemDeal(r.Context(), domain.RedemptionEvent{
		Partner:               domain.PartnerVisa,
		ClaimedDealID:         claimedDealID,
		PartnerRedeemedDealID: transactionID,
		AuthorizationAmount:   amount,
		PurchaseDateTime:      purchasedAt,
		CallbackEvent:         domain.CallbackSettlement,
	})
	if err != nil {
		log.Printf("VisaWebhookHandler: Redemption %s failed: %v", transactionID, err)
		writeJSON(w, http.StatusOK, visaclient.Ack())
		return
	}
	if !code.IsSuccessful() {
		log.Printf("VisaWebhookHandler: Redemption %s resolved %s", transactionID, code)
	}
	writeJSON(w, http.StatusOK, visaclient.Ack())
}

func (h *Handlers) visaClearing(w http.ResponseWriter, r *http.Request, msg *visaclient.EndPointMessageRequest) {
	transactionID, ok := msg.Element(elVipTransactionID)
	if !ok || transactionID == "" {
		writeJSON(w, http.StatusOK, visaclient.Malformed("missing transaction id"))
		return
	}
	rawAmount, ok := msg.Element(elSettlementAmount)
	if !ok {
		rawAmount, ok = msg.Element(elTransactionAmount)
	}
	if !ok {
		writeJSON(w, http.StatusOK, visaclient.Malformed("missing settlement amount"))
		return
	}
	amount, err := strconv.ParseInt(rawAmount, 10, 64)
	if err != nil {
		writeJSON(w, http.StatusOK, visaclient.Malformed("bad settlement amount"))
		return
	}

	_, code, err := h.service.SettleRedeemedDeal(r.Context(), domain.SettlementEvent{
		Partner:               domain.PartnerVisa,
		PartnerRedeemedDealID: transactionID,
		SettlementAmount:      amount,
	})
	if err != nil {
		log.Printf("VisaWebhookHandler: Settlement %s failed: %v", transactionID, err)
		writeJSON(w, http.StatusOK, visaclient.Ack())
		return
	}
	if !code.IsSuccessful() {
		log.Printf("VisaWebhookHandler: Settlement %s resolved %s", transactionID, code)
	}
	writeJSON(w, http.StatusOK, visaclient.Ack())
}
