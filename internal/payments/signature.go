// Package payments verifies checkout payment signatures.
package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Verifier checks the signature a payment provider hands back after a
// successful charge.
type Verifier struct{ Secret string }

// Verify reports whether sig is the hex HMAC-SHA256 of "orderRef|paymentID"
// under the configured secret.
func (v Verifier) Verify(orderRef, paymentID, sig string) bool {
	mac := hmac.New(sha256.New, []byte(v.Secret))
	mac.Write([]byte(orderRef + "|" + paymentID))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(sig))
}

// Sign produces the signature Verify expects. Used by tests and local tools.
func (v Verifier) Sign(orderRef, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(v.Secret))
	mac.Write([]byte(orderRef + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}
