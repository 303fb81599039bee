package macauth

import (
	"net/url"
	"strings"
	"testing"
	"time"
)

func TestTokenRequestMessageLayout(t *testing.T) {
	msg := TokenRequestMessage("client-1", "1700000000", "1700000000:AMEX")
	want := "client-1\n1700000000\n1700000000:AMEX\nclient_credentials\n"
	if msg != want {
		t.Fatalf("expected %q, got %q", want, msg)
	}
}

func TestAPICallMessageLayout(t *testing.T) {
	u, err := url.Parse("https://API.Example.COM/Payments/Digital/v1/Sync%2fCards?x=1")
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	msg := APICallMessage("1700000000", "1700000000:AMEX", "post", u)
	want := "1700000000\n" +
		"1700000000:AMEX\n" +
		"POST\n" +
		"/payments/digital/v1/sync%2Fcards\n" +
		"api.example.com\n" +
		"443\n\n"
	if msg != want {
		t.Fatalf("expected %q, got %q", want, msg)
	}
}

func TestCanonicalPathUppercasesEscapeHex(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"plain path lowercased", "https://h/A/B/C", "/a/b/c"},
		{"escape hex upper-cased", "https://h/a%2fb%3ac", "/a%2Fb%3Ac"},
		{"mixed case escapes", "https://h/A%2Fb%3Ac", "/a%2Fb%3Ac"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := url.Parse(tt.raw)
			if err != nil {
				t.Fatalf("parse url: %v", err)
			}
			if got := CanonicalPath(u); got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestCanonicalPort(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"https://h/path", "443"},
		{"http://h/path", "80"},
		{"https://h:8443/path", "8443"},
	}
	for _, tt := range tests {
		u, err := url.Parse(tt.raw)
		if err != nil {
			t.Fatalf("parse url: %v", err)
		}
		if got := CanonicalPort(u); got != tt.want {
			t.Fatalf("%s: expected port %q, got %q", tt.raw, tt.want, got)
		}
	}
}

func TestSignatureDeterminism(t *testing.T) {
	at := time.Unix(1700000000, 0).UTC()
	first := SignTokenRequest("client-1", "secret", at)
	second := SignTokenRequest("client-1", "secret", at)
	if first != second {
		t.Fatalf("MAC header not deterministic: %q vs %q", first, second)
	}
	if !strings.HasPrefix(first, `MAC id="client-1",ts="1700000000",nonce="1700000000:AMEX",mac="`) {
		t.Fatalf("unexpected header shape: %q", first)
	}
}

func TestSignKnownVector(t *testing.T) {
	// HMAC-SHA256("key", "message"), base64 of the well-known digest.
	got := Sign("key", "message")
	want := "bp7ym3X//Ft6uuUn1Y/a2y/kLnIZARl2kXNDBl9Y7Uo="
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestSignedCallDiffersByKey(t *testing.T) {
	u, _ := url.Parse("https://api.example.com/v1/cards")
	at := time.Unix(1700000000, 0).UTC()
	a := SignAPICall("tok", "key-a", "POST", u, at)
	b := SignAPICall("tok", "key-b", "POST", u, at)
	if a == b {
		t.Fatal("expected different MACs for different keys")
	}
}
