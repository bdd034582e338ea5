package peach

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// Sign вычисляет HMAC-SHA256 подпись в формате Peach Payments:
// параметры сортируются по ключу, конкатенируются как ключ+значение
// без разделителей, сам параметр signature исключается.
func Sign(params map[string]string, secretKey string) string {
	keys := make([]string, 0, len(params))
	for key := range params {
		if key == "signature" {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var payload strings.Builder
	for _, key := range keys {
		payload.WriteString(key)
		payload.WriteString(params[key])
	}

	mac := hmac.New(sha256.New, []byte(secretKey))
	mac.Write([]byte(payload.String()))
	return hex.EncodeToString(mac.Sum(nil))
}

// hmacEqual сравнивает подписи за постоянное время
func hmacEqual(expected, provided string) bool {
	return hmac.Equal([]byte(expected), []byte(provided))
}
