package exchange

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"fmt"
	"net/url"
	"sync/atomic"
	"time"

	"kraken-mm/internal/config"
)

// Auth holds Kraken's nonce-based HMAC-SHA512 credentials and signs private
// REST requests. Kraken has no L1/wallet-signing step (unlike the
// EIP-712-based venues in this corpus): every private endpoint is
// authenticated the same way, keyed off a strictly increasing nonce.
type Auth struct {
	apiKey    string
	apiSecret string // base64-encoded, as issued by Kraken

	// lastNonce enforces nonce monotonicity across concurrent requests.
	// nextNonce derives max(now_ms, last+1) and retries the CAS on races.
	lastNonce atomic.Int64
}

// NewAuth creates an Auth from configured Kraken API credentials.
func NewAuth(cfg config.Config) (*Auth, error) {
	if cfg.Kraken.APIKey == "" || cfg.Kraken.APISecret == "" {
		return nil, fmt.Errorf("kraken api key/secret are required (set KRAKEN_API_KEY / KRAKEN_API_SECRET)")
	}
	return &Auth{
		apiKey:    cfg.Kraken.APIKey,
		apiSecret: cfg.Kraken.APISecret,
	}, nil
}

// nextNonce returns a strictly increasing nonce: max(now_ms, last+1),
// resolved via compare-and-swap so concurrent callers never collide.
func (a *Auth) nextNonce() int64 {
	for {
		prev := a.lastNonce.Load()
		nowMs := time.Now().UnixMilli()
		next := prev + 1
		if nowMs > next {
			next = nowMs
		}
		if a.lastNonce.CompareAndSwap(prev, next) {
			return next
		}
	}
}

// signedRequest holds everything needed to attach Kraken's API-Key/API-Sign
// headers to a private POST.
type signedRequest struct {
	Nonce   int64
	Body    string // application/x-www-form-urlencoded, nonce included
	APIKey  string
	APISign string
}

// sign builds the form-encoded body (nonce plus params, keys sorted by
// url.Values.Encode) and the
// corresponding API-Sign header: HMAC-SHA512(secret, path + SHA256(nonce +
// postdata)), base64 encoded, over the secret key decoded from base64.
func (a *Auth) sign(path string, params url.Values) (signedRequest, error) {
	nonce := a.nextNonce()

	form := url.Values{}
	form.Set("nonce", fmt.Sprintf("%d", nonce))
	for k, vs := range params {
		for _, v := range vs {
			form.Add(k, v)
		}
	}
	postdata := form.Encode()

	secret, err := base64.StdEncoding.DecodeString(a.apiSecret)
	if err != nil {
		return signedRequest{}, fmt.Errorf("decode api secret: %w", err)
	}

	sha := sha256.New()
	sha.Write([]byte(fmt.Sprintf("%d", nonce)))
	sha.Write([]byte(postdata))
	digest := sha.Sum(nil)

	mac := hmac.New(sha512.New, secret)
	mac.Write([]byte(path))
	mac.Write(digest)
	sig := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return signedRequest{
		Nonce:   nonce,
		Body:    postdata,
		APIKey:  a.apiKey,
		APISign: sig,
	}, nil
}
