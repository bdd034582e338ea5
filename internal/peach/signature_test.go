package peach

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSign_SortsKeysAndConcatenates(t *testing.T) {
	secret := "test-secret"
	params := map[string]string{
		"currency":              "ZAR",
		"amount":                "99.00",
		"merchantTransactionId": "TXN_1",
	}

	// Ключи в алфавитном порядке: amount, currency, merchantTransactionId
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte("amount99.00currencyZARmerchantTransactionIdTXN_1"))
	expected := hex.EncodeToString(mac.Sum(nil))

	assert.Equal(t, expected, Sign(params, secret))
}

func TestSign_ExcludesSignatureParam(t *testing.T) {
	secret := "test-secret"
	params := map[string]string{
		"amount":   "10.00",
		"currency": "ZAR",
	}

	withSignature := map[string]string{
		"amount":    "10.00",
		"currency":  "ZAR",
		"signature": "deadbeef",
	}

	assert.Equal(t, Sign(params, secret), Sign(withSignature, secret))
}

func TestSign_DependsOnSecret(t *testing.T) {
	params := map[string]string{"amount": "10.00"}

	assert.NotEqual(t, Sign(params, "secret-a"), Sign(params, "secret-b"))
}

func TestValidateWebhookSignature(t *testing.T) {
	client := &peachClient{secretKey: "webhook-secret"}

	params := map[string]string{
		"id":                    "peach-pay-1",
		"merchantTransactionId": "TXN_abc",
		"result.code":           "000.000.000",
	}
	valid := Sign(params, "webhook-secret")

	assert.True(t, client.ValidateWebhookSignature(params, valid))
	assert.False(t, client.ValidateWebhookSignature(params, "bogus"))
	assert.False(t, client.ValidateWebhookSignature(params, ""))
}

func TestValidateWebhookSignature_IgnoresSignatureKeyInParams(t *testing.T) {
	client := &peachClient{secretKey: "webhook-secret"}

	params := map[string]string{
		"merchantTransactionId": "TXN_abc",
		"result.code":           "000.000.000",
	}
	valid := Sign(params, "webhook-secret")

	// Параметр signature обычно приходит вместе с остальными полями формы
	params["signature"] = valid
	assert.True(t, client.ValidateWebhookSignature(params, valid))
}
