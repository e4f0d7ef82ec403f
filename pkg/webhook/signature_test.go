package webhook_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/chatbridge/pkg/webhook"
)

func TestSignPayload(t *testing.T) {
	t.Parallel()

	// HMAC-SHA256("key", "The quick brown fox jumps over the lazy dog")
	got := webhook.SignPayload("key", []byte("The quick brown fox jumps over the lazy dog"))
	assert.Equal(t, "f7bc83f430538424b13298e6aa6fb143ef4d59a14946175997479dbc2d1a3cd8", got)
}

func TestVerifySignature(t *testing.T) {
	t.Parallel()

	const secret = "app-secret"
	payload := []byte(`{"object":"whatsapp_business_account","entry":[]}`)
	header := webhook.SignatureHeader(secret, payload)

	t.Run("valid with prefix", func(t *testing.T) {
		t.Parallel()
		assert.NoError(t, webhook.VerifySignature(secret, payload, header))
	})

	t.Run("valid without prefix", func(t *testing.T) {
		t.Parallel()
		assert.NoError(t, webhook.VerifySignature(secret, payload, strings.TrimPrefix(header, webhook.SignaturePrefix)))
	})

	t.Run("upper case hex accepted", func(t *testing.T) {
		t.Parallel()
		upper := webhook.SignaturePrefix + strings.ToUpper(webhook.SignPayload(secret, payload))
		assert.NoError(t, webhook.VerifySignature(secret, payload, upper))
	})

	t.Run("missing", func(t *testing.T) {
		t.Parallel()
		assert.ErrorIs(t, webhook.VerifySignature(secret, payload, ""), webhook.ErrMissingSignature)
		assert.ErrorIs(t, webhook.VerifySignature(secret, payload, "sha256="), webhook.ErrMissingSignature)
	})

	t.Run("blank secret rejects", func(t *testing.T) {
		t.Parallel()
		forged := webhook.SignatureHeader("", payload)
		assert.ErrorIs(t, webhook.VerifySignature("", payload, forged), webhook.ErrMissingSecret)
		assert.ErrorIs(t, webhook.VerifySignature("  ", payload, forged), webhook.ErrMissingSecret)
	})

	t.Run("single bit flip in body", func(t *testing.T) {
		t.Parallel()
		tampered := append([]byte(nil), payload...)
		tampered[10] ^= 0x01
		assert.ErrorIs(t, webhook.VerifySignature(secret, tampered, header), webhook.ErrInvalidSignature)
	})

	t.Run("wrong secret", func(t *testing.T) {
		t.Parallel()
		assert.ErrorIs(t, webhook.VerifySignature("other", payload, header), webhook.ErrInvalidSignature)
	})
}
