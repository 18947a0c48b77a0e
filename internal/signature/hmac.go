// Package signature содержит чистые функции подписи и проверки для
// каждого платёжного шлюза. Никакого I/O: только канонизация полей и HMAC.
//
// Порядок полей и разделители обязаны совпадать с алгоритмом шлюза байт в байт,
// иначе легитимные колбэки перестанут проходить проверку.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"hash"
	"strings"
)

// Field - пара ключ/значение в фиксированном порядке.
type Field struct {
	Key   string
	Value string
}

// RawSigner отдаёт строку, над которой считается HMAC.
type RawSigner interface {
	RawSignature() string
}

func hmacHex(newHash func() hash.Hash, secret, message string) string {
	mac := hmac.New(newHash, []byte(secret))
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

func hmacSHA256(secret, message string) string {
	return hmacHex(sha256.New, secret, message)
}

func hmacSHA512(secret, message string) string {
	return hmacHex(sha512.New, secret, message)
}

// equalHex сравнивает ожидаемую и полученную подписи за постоянное время.
// Регистр hex не важен; невалидный hex никогда не совпадает.
func equalHex(expected, received string) bool {
	want, err := hex.DecodeString(expected)
	if err != nil {
		return false
	}
	got, err := hex.DecodeString(strings.TrimSpace(received))
	if err != nil || len(got) == 0 {
		return false
	}
	return hmac.Equal(want, got)
}

// joinPairs собирает "k1=v1&k2=v2" в заданном порядке без экранирования.
func joinPairs(fields []Field) string {
	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(f.Key)
		b.WriteByte('=')
		b.WriteString(f.Value)
	}
	return b.String()
}
