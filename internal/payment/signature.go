package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Sign returns the hex HMAC-SHA256 of "attemptID|paymentID", the value the
// gateway attaches to a success callback.
func Sign(secret, attemptID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(attemptID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func Verify(secret, attemptID, paymentID, signature string) bool {
	expected := Sign(secret, attemptID, paymentID)
	return hmac.Equal([]byte(expected), []byte(signature))
}
