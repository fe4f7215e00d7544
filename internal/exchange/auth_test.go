package exchange

import (
	"encoding/base64"
	"net/url"
	"strings"
	"testing"

	"kraken-mm/internal/config"
)

func testAuth(t *testing.T) *Auth {
	t.Helper()
	cfg := config.Config{Kraken: config.KrakenConfig{
		APIKey:    "test-key",
		APISecret: base64.StdEncoding.EncodeToString([]byte("supersecret")),
	}}
	auth, err := NewAuth(cfg)
	if err != nil {
		t.Fatalf("NewAuth: %v", err)
	}
	return auth
}

func TestNewAuthRequiresCredentials(t *testing.T) {
	t.Parallel()

	if _, err := NewAuth(config.Config{}); err == nil {
		t.Fatal("expected error for missing credentials")
	}
}

func TestNextNonceIsStrictlyIncreasing(t *testing.T) {
	t.Parallel()

	auth := testAuth(t)
	prev := auth.nextNonce()
	for i := 0; i < 1000; i++ {
		next := auth.nextNonce()
		if next <= prev {
			t.Fatalf("nonce did not increase: prev=%d next=%d", prev, next)
		}
		prev = next
	}
}

func TestSignProducesStableHeaders(t *testing.T) {
	t.Parallel()

	auth := testAuth(t)
	params := url.Values{}
	params.Set("pair", "XBTUSD")

	signed, err := auth.sign("/0/private/AddOrder", params)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if signed.APIKey != "test-key" {
		t.Errorf("APIKey = %q, want test-key", signed.APIKey)
	}
	if signed.APISign == "" {
		t.Error("APISign must not be empty")
	}
	if _, err := base64.StdEncoding.DecodeString(signed.APISign); err != nil {
		t.Errorf("APISign is not valid base64: %v", err)
	}
	if !strings.Contains(signed.Body, "pair=XBTUSD") {
		t.Errorf("body %q missing pair param", signed.Body)
	}
	if !strings.HasPrefix(signed.Body, "nonce=") {
		t.Errorf("body %q must encode nonce first", signed.Body)
	}
}

func TestSignNonceChangesEveryCall(t *testing.T) {
	t.Parallel()

	auth := testAuth(t)
	first, err := auth.sign("/0/private/AddOrder", url.Values{})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	second, err := auth.sign("/0/private/AddOrder", url.Values{})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if first.Nonce == second.Nonce {
		t.Fatal("expected distinct nonces across calls")
	}
	if first.APISign == second.APISign {
		t.Fatal("expected distinct signatures across calls with distinct nonces")
	}
}
