package market

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomRequestID(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 10; i++ {
		id, err := randomRequestID()
		require.NoError(t, err)
		assert.Len(t, id, 18)
		assert.False(t, seen[id], "duplicate request id %s", id)
		seen[id] = true
	}
}

func TestHmac256(t *testing.T) {
	key := []byte("test-key")
	body := []byte(`{"holdingId":"holding-1"}`)

	sig := Hmac256(body, key)
	assert.Equal(t, sig, Hmac256(body, key))
	assert.NotEqual(t, sig, Hmac256(body, []byte("other-key")))
	assert.NotEqual(t, sig, Hmac256([]byte(`{}`), key))
}

func TestWebhookSecretRoundTrip(t *testing.T) {
	hash, err := HashWebhookSecret("shared-secret")
	require.NoError(t, err)

	assert.True(t, VerifyWebhookSecret(hash, "shared-secret"))
	assert.False(t, VerifyWebhookSecret(hash, "wrong-secret"))
	assert.False(t, VerifyWebhookSecret("not-a-hash", "shared-secret"))
}

func TestVerifyWebhookSignature(t *testing.T) {
	body := []byte(`{"holdingId":"holding-1","status":"sold"}`)

	sig := Hmac256(body, []byte("webhook-key"))
	assert.True(t, VerifyWebhookSignature(body, "webhook-key", sig))
	assert.False(t, VerifyWebhookSignature(body, "webhook-key", "deadbeef"))
	assert.False(t, VerifyWebhookSignature([]byte(`{}`), "webhook-key", sig))
}
