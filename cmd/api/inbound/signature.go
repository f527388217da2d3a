package inbound

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// verifySignature checks the Mailgun webhook signature: HMAC-SHA256 over
// timestamp+token with the shared signing key, hex encoded. It returns
// whether verification applies at all and whether it passed. When the key
// or any of the three parameters is absent the check is skipped entirely;
// this keeps unsigned environments working at the cost of a weaker trust
// boundary.
func verifySignature(key, timestamp, token, signature string) (applicable, ok bool) {
	if key == "" || timestamp == "" || token == "" || signature == "" {
		return false, false
	}
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(timestamp + token))
	expected := hex.EncodeToString(mac.Sum(nil))
	return true, expected == signature
}
