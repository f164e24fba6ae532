// Package payment handles the provider-mediated path: creating provider
// orders and verifying the provider's signed callback.
package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/ariefcatur/go-marketplace-orders/internal/apperr"
)

// Verifier checks callback signatures against the shared secret.
type Verifier struct {
	Secret string
}

// Sign returns hex(HMAC-SHA256(secret, orderRef + "|" + paymentRef)).
func Sign(secret, orderRef, paymentRef string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderRef + "|" + paymentRef))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify returns apperr.SignatureMismatch unless signature matches the
// expected value. Comparison is constant time.
func (v Verifier) Verify(orderRef, paymentRef, signature string) error {
	if v.Secret == "" || orderRef == "" || paymentRef == "" || signature == "" {
		return apperr.SignatureMismatch
	}
	expected := Sign(v.Secret, orderRef, paymentRef)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return apperr.SignatureMismatch
	}
	return nil
}
