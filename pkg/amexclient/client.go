/**
 * @description
 * This package provides the Amex partner adapter. It acquires MAC-signed
 * OAuth tokens, signs card enrollment calls with the issued mac_key, and maps
 * Amex respCd values into the canonical ResultCode taxonomy so the lifecycle
 * engine never sees partner vocabulary.
 *
 * Key features:
 * - Token acquisition is cached process-wide (or in Redis) with an effective
 *   lifetime shorter than Amex's stated one; expired entries trigger a
 *   re-acquisition and last-writer-wins on concurrent refresh.
 * - Expected business outcomes are returned as ResultCodes; a Go error is
 *   raised only for transport faults (network failure, malformed response).
 *
 * @dependencies
 * - pkg/macauth: MAC signing.
 * - internal/cache: Token cache.
 * - internal/domain: Canonical result taxonomy.
 */

package amexclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/CardLinx/microsoft-earn-sub008/internal/cache"
	"github.com/CardLinx/microsoft-earn-sub008/internal/domain"
	"github.com/CardLinx/microsoft-earn-sub008/pkg/macauth"
)

const (
	tokenResource = "amex"
	tokenBody     = "grant_type=client_credentials&app_spec_info=Apigee&guid_type=privateguid"
)

// Client is the Amex partner adapter.
type Client struct {
	BaseURL      string
	TokenPath    string
	CardSyncPath string
	CardUnsyncPath string
	ClientID     string
	ClientSecret string
	APIKey       string
	PartnerID    string
	HTTPClient   *http.Client

	tokens cache.TokenCache
	now    func() time.Time
}

// NewClient creates a new Amex adapter.
func NewClient(baseURL, clientID, clientSecret, apiKey, partnerID string, tokens cache.TokenCache) *Client {
	if tokens == nil {
		tokens = cache.NewMemoryTokenCache()
	}
	return &Client{
		BaseURL:        baseURL,
		TokenPath:      "/apiplatform/v2/oauth/token/mac",
		CardSyncPath:   "/marketing/v4/smartoffers/card_accounts/cards/sync_details",
		CardUnsyncPath: "/marketing/v4/smartoffers/card_accounts/cards/unsync_details",
		ClientID:       clientID,
		ClientSecret:   clientSecret,
		APIKey:         apiKey,
		PartnerID:      partnerID,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		tokens: tokens,
		now:    time.Now,
	}
}

// TokenResponse is the Amex OAuth token endpoint payload.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    string `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope"`
	MACKey       string `json:"mac_key"`
	MACAlgorithm string `json:"mac_algorithm"`
}

// CardRequest is the Amex add/remove card payload.
type CardRequest struct {
	MsgID     string `json:"msgId"`
	PartnerID string `json:"partnerId"`
	LangCd    string `json:"langCd"`
	CtryCd    string `json:"ctryCd"`
	DistrChan string `json:"distrChan"`
	DiscInd   string `json:"discInd,omitempty"`
	CardNbr   string `json:"cardNbr,omitempty"`
	CmAlias1  string `json:"cmAlias1"`
}

// CardResponse is the Amex add/remove card response.
type CardResponse struct {
	CorrelationID string `json:"correlationId"`
	Status        string `json:"status"`
	RespCd        string `json:"respCd"`
	RespDesc      string `json:"respDesc"`
	CmAlias1      string `json:"cmAlias1"`
	CmAlias2      string `json:"cmAlias2"`
}

// ResultCode maps the Amex respCd taxonomy to the canonical one.
func (r *CardResponse) ResultCode() domain.ResultCode {
	switch r.RespCd {
	case "RCCMP000":
		return domain.ResultSuccess
	case "RCCMP004":
		return domain.ResultCardExistsWithDifferentToken
	case "RCCMP001", "RCCMP002", "RCCMP003":
		return domain.ResultInvalidCard
	case "RCCMP900", "RCCMP901", "RCCMP904":
		return domain.ResultSystemBusy
	}
	return domain.ResultUnknownError
}

// Partner identifies this adapter.
func (c *Client) Partner() domain.Partner {
	return domain.PartnerAmex
}

// AddCard enrolls a card with Amex and returns the partner link on success.
func (c *Client) AddCard(ctx context.Context, card *domain.Card) (*domain.PartnerLink, domain.ResultCode, error) {
	resp, code, err := c.syncCard(ctx, c.CardSyncPath, card, true)
	if err != nil || !code.IsSuccessful() {
		return nil, code, err
	}
	link := &domain.PartnerLink{
		Partner:           domain.PartnerAmex,
		PartnerCardID:     resp.CmAlias1,
		PartnerCardSuffix: resp.CmAlias2,
	}
	return link, code, nil
}

// RemoveCard unenrolls a card from Amex.
func (c *Client) RemoveCard(ctx context.Context, card *domain.Card) (domain.ResultCode, error) {
	_, code, err := c.syncCard(ctx, c.CardUnsyncPath, card, false)
	return code, err
}

func (c *Client) syncCard(ctx context.Context, path string, card *domain.Card, includeCardNumber bool) (*CardResponse, domain.ResultCode, error) {
	token, err := c.getToken(ctx)
	if err != nil {
		return nil, domain.ResultInvalidToken, err
	}

	msgID := strings.ReplaceAll(uuid.New().String(), "-", "")
	payload := CardRequest{
		MsgID:     msgID,
		PartnerID: c.PartnerID,
		LangCd:    "en",
		CtryCd:    "US",
		DistrChan: "9999",
		CmAlias1:  card.ID.String(),
	}
	if includeCardNumber {
		payload.DiscInd = "Y"
		payload.CardNbr = card.PANToken
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, domain.ResultUnknownError, fmt.Errorf("failed to marshal card request: %w", err)
	}

	requestURL, err := url.Parse(c.BaseURL + path)
	if err != nil {
		return nil, domain.ResultUnknownError, fmt.Errorf("failed to parse card request url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, requestURL.String(), bytes.NewBuffer(body))
	if err != nil {
		return nil, domain.ResultUnknownError, fmt.Errorf("failed to create card request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", macauth.SignAPICall(token.AccessToken, token.MACKey, http.MethodPost, requestURL, c.now()))
	req.Header.Set("X-AMEX-API-KEY", c.APIKey)
	req.Header.Set("X-AMEX-MSG-ID", msgID)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, domain.ResultSystemBusy, fmt.Errorf("failed to execute card request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.ResultSystemBusy, fmt.Errorf("failed to read card response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		log.Printf("level=warn component=amex_client op=card_sync status=%d msg=\"token rejected\"", resp.StatusCode)
		return nil, domain.ResultInvalidToken, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Printf("level=warn component=amex_client op=card_sync status=%d msg=\"non-2xx response\"", resp.StatusCode)
		return nil, domain.ResultSystemBusy, nil
	}

	var cardResp CardResponse
	if err := json.Unmarshal(bodyBytes, &cardResp); err != nil {
		return nil, domain.ResultUnknownError, fmt.Errorf("failed to decode card response: %w", err)
	}

	code := cardResp.ResultCode()
	if code == domain.ResultUnknownError || code == domain.ResultSystemBusy {
		log.Printf("level=warn component=amex_client op=card_sync resp_cd=%s resp_desc=%q result=%s", cardResp.RespCd, cardResp.RespDesc, code)
	}
	return &cardResp, code, nil
}

// getToken returns a cached token or acquires a fresh one.
func (c *Client) getToken(ctx context.Context) (cache.Token, error) {
	token, err := c.tokens.Get(ctx, tokenResource)
	if err == nil {
		return token, nil
	}
	if !errors.Is(err, cache.ErrNotFound) {
		log.Printf("level=warn component=amex_client msg=\"token cache read failed; acquiring fresh token\" err=%v", err)
	}

	token, err = c.acquireToken(ctx)
	if err != nil {
		return cache.Token{}, err
	}
	if setErr := c.tokens.Set(ctx, tokenResource, token); setErr != nil {
		log.Printf("level=warn component=amex_client msg=\"token cache write failed\" err=%v", setErr)
	}
	return token, nil
}

func (c *Client) acquireToken(ctx context.Context) (cache.Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+c.TokenPath, strings.NewReader(tokenBody))
	if err != nil {
		return cache.Token{}, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authentication", macauth.SignTokenRequest(c.ClientID, c.ClientSecret, c.now()))
	req.Header.Set("X-AMEX-API-KEY", c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return cache.Token{}, fmt.Errorf("failed to execute token request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return cache.Token{}, fmt.Errorf("failed to read token response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Printf("level=warn component=amex_client op=token status=%d msg=\"token acquisition failed\"", resp.StatusCode)
		return cache.Token{}, fmt.Errorf("token acquisition failed with status %d", resp.StatusCode)
	}

	var tokenResp TokenResponse
	if err := json.Unmarshal(bodyBytes, &tokenResp); err != nil {
		return cache.Token{}, fmt.Errorf("failed to decode token response: %w", err)
	}
	if tokenResp.AccessToken == "" || tokenResp.MACKey == "" {
		return cache.Token{}, fmt.Errorf("token response missing access_token or mac_key")
	}

	return cache.Token{
		AccessToken: tokenResp.AccessToken,
		MACKey:      tokenResp.MACKey,
		ExpiresAt:   c.now().UTC().Add(cache.EffectiveTokenLifetime),
	}, nil
}
