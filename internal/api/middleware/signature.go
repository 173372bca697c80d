package middleware

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"

	"github.com/tooldex/tooldex/internal/api/response"
)

// maxWebhookBody bounds how much of an inbound webhook payload is read
// before verification.
const maxWebhookBody = 1 << 20

// Signature verifies inbound webhook calls: an HMAC-SHA256 over the raw
// body, presented in X-Webhook-Signature as "sha256=<hex>". Mismatches
// are rejected before any business logic runs; the comparison is
// constant time.
type Signature struct {
	secret []byte
}

// NewSignature creates the Signature middleware.
func NewSignature(secret string) *Signature {
	return &Signature{secret: []byte(secret)}
}

// Verify checks the signature and, on success, restores the body for the
// downstream handler.
func (s *Signature) Verify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		presented := strings.TrimPrefix(r.Header.Get("X-Webhook-Signature"), "sha256=")
		if presented == "" {
			response.Error(w, http.StatusUnauthorized,
				"INVALID_SIGNATURE", "Missing webhook signature", nil)
			return
		}
		presentedMAC, err := hex.DecodeString(presented)
		if err != nil {
			response.Error(w, http.StatusUnauthorized,
				"INVALID_SIGNATURE", "Malformed webhook signature", nil)
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			response.Error(w, http.StatusBadRequest,
				"INVALID_REQUEST", "Failed to read request body", nil)
			return
		}
		r.Body.Close()

		mac := hmac.New(sha256.New, s.secret)
		mac.Write(body)
		if !hmac.Equal(mac.Sum(nil), presentedMAC) {
			response.Error(w, http.StatusUnauthorized,
				"INVALID_SIGNATURE", "Webhook signature mismatch", nil)
			return
		}

		r.Body = io.NopCloser(bytes.NewReader(body))
		next.ServeHTTP(w, r)
	})
}
