/**
 * @description
 * The First Data SOAP endpoint: pubRedemption, pubReversal, and pubPing on a
 * single POST route. A pubReversal whose revReason is the TIMEOUT sentinel is
 * routed to timeout processing (undo the request if it landed, succeed if it
 * never did) instead of reversal-of-redemption. Like the Visa webhook, the
 * endpoint always acks with HTTP 200 once the caller's certificate has been
 * accepted; business outcomes ride in respCode.
 *
 * @dependencies
 * - io, log, net/http, time: Standard Go libraries.
 * - internal/domain, pkg/firstdata: Event models and the SOAP contract.
 */

package api

import (
	"io"
	"log"
	"net/http"
	"time"

	"github.com/CardLinx/microsoft-earn-sub008/internal/domain"
	"github.com/CardLinx/microsoft-earn-sub008/pkg/firstdata"
)

// First Data response codes.
const (
	fdRespSuccess = "0"
	fdRespFailure = "1"
)

const fdPurchaseDateLayout = "2006-01-02"

// FirstDataSOAPHandler processes one SOAP request.
func (h *Handlers) FirstDataSOAPHandler(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "unreadable request", http.StatusBadRequest)
		return
	}
	env, op, err := firstdata.Decode(raw)
	if err != nil {
		log.Printf("FirstDataSOAPHandler: %v", err)
		http.Error(w, "malformed soap envelope", http.StatusBadRequest)
		return
	}

	switch op {
	case firstdata.OpRedemption:
		h.firstDataRedemption(w, r, env.Body.Redemption)
	case firstdata.OpReversal:
		h.firstDataReversal(w, r, env.Body.Reversal)
	case firstdata.OpPing:
		h.writeSOAP(w, firstdata.ResponseBody{
			Ping: &firstdata.PingResponse{ReqID: env.Body.Ping.ReqID, RespText: "pong"},
		})
	}
}

func (h *Handlers) firstDataRedemption(w http.ResponseWriter, r *http.Request, req *firstdata.RedemptionRequest) {
	claimedDealID, err := domain.RedeemedDealIDFromPartnerID(req.OfferID)
	if err != nil {
		h.writeSOAP(w, firstdata.ResponseBody{
			Redemption: &firstdata.RedemptionResponse{ReqID: req.ReqID, RespCode: fdRespFailure, RespText: string(domain.ResultInvalidPartnerMessage)},
		})
		return
	}

	purchasedAt := time.Now()
	if parsed, err := time.Parse(fdPurchaseDateLayout, req.PurchaseDate); err == nil {
		purchasedAt = parsed
	}

	redeemed, code, err := h.service.RedeemDeal(r.Context(), domain.RedemptionEvent{
		Partner:               domain.PartnerFirstData,
		ClaimedDealID:         claimedDealID,
		PartnerRedeemedDealID: firstdata.TransactionID(req.OfferID, req.AuthCode),
		AuthorizationAmount:   req.PurchasePrice,
		PurchaseDateTime:      purchasedAt,
		CallbackEvent:         domain.CallbackSettlement,
	})
	if err != nil {
		log.Printf("FirstDataSOAPHandler: Redemption %s failed: %v", req.ReqID, err)
		h.writeSOAP(w, firstdata.ResponseBody{
			Redemption: &firstdata.RedemptionResponse{ReqID: req.ReqID, RespCode: fdRespFailure, RespText: string(domain.ResultUnknownError)},
		})
		return
	}

	resp := &firstdata.RedemptionResponse{ReqID: req.ReqID, RespCode: fdRespSuccess, RespText: string(code)}
	if redeemed != nil {
		resp.DiscountAmount = redeemed.DiscountAmount
	}
	if !code.IsSuccessful() {
		resp.RespCode = fdRespFailure
	}
	h.writeSOAP(w, firstdata.ResponseBody{Redemption: resp})
}

func (h *Handlers) firstDataReversal(w http.ResponseWriter, r *http.Request, req *firstdata.ReversalRequest) {
	var code domain.ResultCode
	var err error

	transactionID := firstdata.TransactionID(req.OfferID, req.AuthCode)
	if req.IsTimeout() {
		code, err = h.service.ProcessRedemptionTimeout(r.Context(), domain.PartnerFirstData, transactionID)
	} else {
		_, code, err = h.service.ReverseRedeemedDeal(r.Context(), domain.ReversalEvent{
			Partner:               domain.PartnerFirstData,
			PartnerRedeemedDealID: transactionID,
			ReversalAmount:        req.Amount,
			Cause:                 domain.CausePartnerReversal,
		})
	}
	if err != nil {
		log.Printf("FirstDataSOAPHandler: Reversal %s failed: %v", req.ReqID, err)
		h.writeSOAP(w, firstdata.ResponseBody{
			Reversal: &firstdata.ReversalResponse{ReqID: req.ReqID, RespCode: fdRespFailure, RespText: string(domain.ResultUnknownError)},
		})
		return
	}

	respCode := fdRespSuccess
	if !code.IsSuccessful() {
		respCode = fdRespFailure
	}
	h.writeSOAP(w, firstdata.ResponseBody{
		Reversal: &firstdata.ReversalResponse{ReqID: req.ReqID, RespCode: respCode, RespText: string(code)},
	})
}

func (h *Handlers) writeSOAP(w http.ResponseWriter, body firstdata.ResponseBody) {
	raw, err := firstdata.Encode(body)
	if err != nil {
		log.Printf("FirstDataSOAPHandler: Failed to encode response: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(raw)
}
