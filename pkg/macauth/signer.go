/**
 * @description
 * This package implements the HMAC-based MAC request-signing scheme used by
 * the Amex OAuth and API layers. The partner validates the signature against
 * an exact canonical message, so the field order, delimiters, and case-folding
 * rules here must be reproduced bit-for-bit.
 *
 * Canonical messages:
 *   token acquisition: clientId \n ts \n nonce \n "client_credentials" \n
 *   signed API call:   ts \n nonce \n METHOD \n path \n host \n port \n\n
 * where path is the URL-encoded path lowercased except the hex digits of
 * percent escapes (upper-cased), and host is lowercased.
 *
 * @notes
 * - All functions are pure: given fixed inputs the output is byte-identical
 *   across runs, which is what the signature determinism tests pin down.
 */

package macauth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// NonceSuffix is the fixed suffix appended to the timestamp to form a nonce.
const NonceSuffix = "AMEX"

// Timestamp returns the UTC unix-seconds timestamp used in MAC messages.
func Timestamp(now time.Time) string {
	return strconv.FormatInt(now.UTC().Unix(), 10)
}

// Nonce builds the nonce for a given timestamp.
func Nonce(timestamp string) string {
	return timestamp + ":" + NonceSuffix
}

// TokenRequestMessage builds the canonical message signed during OAuth token
// acquisition. The signing key is the OAuth client secret.
func TokenRequestMessage(clientID, timestamp, nonce string) string {
	return clientID + "\n" + timestamp + "\n" + nonce + "\nclient_credentials\n"
}

// APICallMessage builds the canonical message for a signed API call. The
// signing key is the mac_key returned by the token endpoint.
func APICallMessage(timestamp, nonce, method string, requestURL *url.URL) string {
	return timestamp + "\n" +
		nonce + "\n" +
		strings.ToUpper(method) + "\n" +
		CanonicalPath(requestURL) + "\n" +
		strings.ToLower(requestURL.Hostname()) + "\n" +
		CanonicalPort(requestURL) + "\n\n"
}

// CanonicalPath lowercases the URL-encoded path while upper-casing the hex
// digits of every percent escape, per the partner's canonicalization rules.
func CanonicalPath(u *url.URL) string {
	escaped := strings.ToLower(u.EscapedPath())
	var b strings.Builder
	b.Grow(len(escaped))
	for i := 0; i < len(escaped); i++ {
		c := escaped[i]
		if c == '%' && i+2 < len(escaped) {
			b.WriteByte(c)
			b.WriteByte(upperHex(escaped[i+1]))
			b.WriteByte(upperHex(escaped[i+2]))
			i += 2
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

func upperHex(c byte) byte {
	if c >= 'a' && c <= 'f' {
		return c - ('a' - 'A')
	}
	return c
}

// CanonicalPort resolves the explicit or scheme-default port of a URL.
func CanonicalPort(u *url.URL) string {
	if port := u.Port(); port != "" {
		return port
	}
	if strings.EqualFold(u.Scheme, "https") {
		return "443"
	}
	return "80"
}

// Sign computes base64(HMAC_SHA256(key, message)).
func Sign(key, message string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Header formats the MAC authentication header value.
func Header(id, timestamp, nonce, mac string) string {
	return fmt.Sprintf("MAC id=%q,ts=%q,nonce=%q,mac=%q", id, timestamp, nonce, mac)
}

// SignTokenRequest produces the full MAC header for OAuth token acquisition.
func SignTokenRequest(clientID, clientSecret string, now time.Time) string {
	ts := Timestamp(now)
	nonce := Nonce(ts)
	mac := Sign(clientSecret, TokenRequestMessage(clientID, ts, nonce))
	return Header(clientID, ts, nonce, mac)
}

// SignAPICall produces the full MAC header for a signed API call, keyed with
// the mac_key issued alongside the access token.
func SignAPICall(tokenID, macKey, method string, requestURL *url.URL, now time.Time) string {
	ts := Timestamp(now)
	nonce := Nonce(ts)
	mac := Sign(macKey, APICallMessage(ts, nonce, method, requestURL))
	return Header(tokenID, ts, nonce, mac)
}
