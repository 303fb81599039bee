/**
 * @description
 * This file contains the HTTP handlers for the first-party card API. Handlers
 * parse requests, call the lifecycle engine, and write the standard response
 * envelope; business outcomes ride on HTTP 200.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - github.com/go-chi/chi/v5, github.com/google/uuid: Routing and ids.
 * - internal/domain: Domain models and result codes.
 */

package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/CardLinx/microsoft-earn-sub008/internal/domain"
)

// LifecycleService is the slice of the engine the HTTP layer needs.
type LifecycleService interface {
	AddCard(ctx context.Context, req domain.AddCardRequest) (*domain.Card, domain.ResultCode, error)
	RemoveCard(ctx context.Context, req domain.RemoveCardRequest) (domain.ResultCode, error)
	RedeemDeal(ctx context.Context, event domain.RedemptionEvent) (*domain.RedeemedDeal, domain.ResultCode, error)
	ReverseRedeemedDeal(ctx context.Context, event domain.ReversalEvent) (*domain.ReverseRedeemedDealInfo, domain.ResultCode, error)
	SettleRedeemedDeal(ctx context.Context, event domain.SettlementEvent) (*domain.SettledDealInfo, domain.ResultCode, error)
	ProcessRedemptionTimeout(ctx context.Context, partner domain.Partner, partnerRedeemedDealID string) (domain.ResultCode, error)
	GrantStatementCredit(ctx context.Context, partnerRedeemedDealID string) (domain.ResultCode, error)
}

// Handlers holds the lifecycle engine that handlers delegate to.
type Handlers struct {
	service LifecycleService
}

// NewHandlers creates the handler set.
func NewHandlers(service LifecycleService) *Handlers {
	return &Handlers{service: service}
}

// AddCardHandler enrolls a card for the authenticated user.
func (h *Handlers) AddCardHandler(w http.ResponseWriter, r *http.Request) {
	subject, ok := AuthenticatedUserID(r.Context())
	if !ok {
		writeResult(w, http.StatusUnauthorized, domain.ResultInvalidToken, nil)
		return
	}
	globalUserID, err := uuid.Parse(subject)
	if err != nil {
		writeResult(w, http.StatusUnauthorized, domain.ResultInvalidToken, nil)
		return
	}

	var req domain.AddCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeResult(w, http.StatusOK, domain.ResultInvalidPartnerMessage, nil)
		return
	}
	req.GlobalUserID = globalUserID

	card, code, err := h.service.AddCard(r.Context(), req)
	if err != nil {
		log.Printf("AddCardHandler: enrollment failed for user %s: %v", globalUserID, err)
		writeResult(w, http.StatusInternalServerError, domain.ResultUnknownError, nil)
		return
	}
	writeResult(w, http.StatusOK, code, card)
}

// RemoveCardHandler unenrolls the card named in the URL from one partner.
func (h *Handlers) RemoveCardHandler(w http.ResponseWriter, r *http.Request) {
	subject, ok := AuthenticatedUserID(r.Context())
	if !ok {
		writeResult(w, http.StatusUnauthorized, domain.ResultInvalidToken, nil)
		return
	}
	globalUserID, err := uuid.Parse(subject)
	if err != nil {
		writeResult(w, http.StatusUnauthorized, domain.ResultInvalidToken, nil)
		return
	}
	cardID, err := uuid.Parse(chi.URLParam(r, "cardID"))
	if err != nil {
		writeResult(w, http.StatusOK, domain.ResultNotFound, nil)
		return
	}
	partner := domain.Partner(r.URL.Query().Get("partner"))
	if partner == "" {
		writeResult(w, http.StatusOK, domain.ResultInvalidPartnerMessage, nil)
		return
	}

	code, err := h.service.RemoveCard(r.Context(), domain.RemoveCardRequest{
		GlobalUserID: globalUserID,
		CardID:       cardID,
		Partner:      partner,
	})
	if err != nil {
		log.Printf("RemoveCardHandler: unenrollment failed for card %s: %v", cardID, err)
		writeResult(w, http.StatusInternalServerError, domain.ResultUnknownError, nil)
		return
	}
	writeResult(w, http.StatusOK, code, nil)
}
