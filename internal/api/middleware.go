/**
 * @description
 * This file contains the custom middleware guarding the partner-facing and
 * first-party endpoints: a client-certificate serial allow-list for the First
 * Data SOAP service, a CIDR allow-list for the Visa webhook, and bearer-token
 * authentication for the card API.
 *
 * @dependencies
 * - context, crypto/tls, net, net/http, strings: Standard Go libraries.
 * - github.com/golang-jwt/jwt/v5: Bearer token validation.
 */

package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/CardLinx/microsoft-earn-sub008/internal/domain"
)

// UserIDContextKey is a custom type for the context key to avoid collisions.
type UserIDContextKey string

const authenticatedUserKey UserIDContextKey = "authenticatedUserID"

// AuthenticatedUserID returns the user id placed in the context by
// BearerAuthMiddleware.
func AuthenticatedUserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(authenticatedUserKey).(string)
	return id, ok
}

// CertSerialAllowlistMiddleware admits only requests presenting a client
// certificate whose serial number is on the allow-list. When TLS is
// terminated upstream the serial arrives in X-Client-Cert-Serial.
func CertSerialAllowlistMiddleware(allowedSerials []string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(allowedSerials))
	for _, serial := range allowedSerials {
		allowed[normalizeSerial(serial)] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			serial := peerCertSerial(r)
			if serial == "" || !allowed[normalizeSerial(serial)] {
				writeResult(w, http.StatusUnauthorized, domain.ResultInvalidClientCertificate, nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func peerCertSerial(r *http.Request) string {
	if r.TLS != nil && len(r.TLS.PeerCertificates) > 0 {
		return r.TLS.PeerCertificates[0].SerialNumber.Text(16)
	}
	return r.Header.Get("X-Client-Cert-Serial")
}

func normalizeSerial(serial string) string {
	return strings.ToLower(strings.TrimSpace(strings.TrimPrefix(serial, "0x")))
}

// CIDRAllowlistMiddleware admits only requests whose source address falls in
// one of the configured CIDR blocks. The block list is configuration, never
// code.
func CIDRAllowlistMiddleware(cidrs []string) func(http.Handler) http.Handler {
	var networks []*net.IPNet
	for _, cidr := range cidrs {
		if _, network, err := net.ParseCIDR(strings.TrimSpace(cidr)); err == nil {
			networks = append(networks, network)
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			if ip == nil || !ipAllowed(ip, networks) {
				writeResult(w, http.StatusUnauthorized, domain.ResultUnauthorizedCaller, nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) net.IP {
	// Honor the first hop recorded by a trusted proxy, if present.
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first := strings.TrimSpace(strings.Split(fwd, ",")[0])
		if ip := net.ParseIP(first); ip != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return net.ParseIP(r.RemoteAddr)
	}
	return net.ParseIP(host)
}

func ipAllowed(ip net.IP, networks []*net.IPNet) bool {
	for _, network := range networks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// BearerAuthMiddleware validates an HMAC-signed bearer token and places the
// subject claim into the request context.
func BearerAuthMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeResult(w, http.StatusUnauthorized, domain.ResultInvalidToken, nil)
				return
			}
			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				writeResult(w, http.StatusUnauthorized, domain.ResultInvalidToken, nil)
				return
			}

			token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				writeResult(w, http.StatusUnauthorized, domain.ResultInvalidToken, nil)
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				writeResult(w, http.StatusUnauthorized, domain.ResultInvalidToken, nil)
				return
			}
			subject, ok := claims["sub"].(string)
			if !ok || subject == "" {
				writeResult(w, http.StatusUnauthorized, domain.ResultInvalidToken, nil)
				return
			}

			ctx := context.WithValue(r.Context(), authenticatedUserKey, subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
