package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const (
	// SignatureHeaderName is the header Meta uses for payload signatures.
	SignatureHeaderName = "X-Hub-Signature-256"
	SignaturePrefix     = "sha256="
)

// SignPayload returns the lower-case hex HMAC-SHA256 of payload.
func SignPayload(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// SignatureHeader returns the header value for payload: "sha256=<hex>".
func SignatureHeader(secret string, payload []byte) string {
	return SignaturePrefix + SignPayload(secret, payload)
}

// VerifySignature checks header against the HMAC of payload. A leading
// "sha256=" is optional and hex case is ignored. A blank secret rejects
// every payload.
func VerifySignature(secret string, payload []byte, header string) error {
	if strings.TrimSpace(secret) == "" {
		return ErrMissingSecret
	}
	got := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(header), SignaturePrefix)))
	if got == "" {
		return ErrMissingSignature
	}
	want := SignPayload(secret, payload)
	if !hmac.Equal([]byte(got), []byte(want)) {
		return ErrInvalidSignature
	}
	return nil
}
