package market

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

func randomRequestID() (string, error) {
	min := big.NewInt(100000000000000000)
	max := big.NewInt(999999999999999999)
	n, err := rand.Int(rand.Reader, new(big.Int).Sub(max, min))
	if err != nil {
		return "", err
	}

	n.Add(n, min)
	return n.String(), nil
}

// Hmac256 signs a request body with the partner HMAC key.
func Hmac256(body, key []byte) string {
	hash := hmac.New(sha256.New, key)
	hash.Write(body)
	return hex.EncodeToString(hash.Sum(nil))
}

// HashWebhookSecret hashes the shared webhook secret for storage.
func HashWebhookSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyWebhookSecret checks a presented webhook secret against its
// stored bcrypt hash.
func VerifyWebhookSecret(hash, secret string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}

// VerifyWebhookSignature checks the HMAC signature on a webhook body.
func VerifyWebhookSignature(body []byte, key, receivedHMAC string) bool {
	expected := Hmac256(body, []byte(key))
	return hmac.Equal([]byte(receivedHMAC), []byte(expected))
}
