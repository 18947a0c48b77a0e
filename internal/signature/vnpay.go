package signature

import (
	"net/url"
	"sort"
	"strings"
)

const (
	VNPaySecureHashKey     = "vnp_SecureHash"
	VNPaySecureHashTypeKey = "vnp_SecureHashType"
)

// VNPayCanonical сортирует ключи лексикографически и собирает
// query-строку key=value через '&'. Поля подписи в канонизацию не входят.
func VNPayCanonical(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if k == VNPaySecureHashKey || k == VNPaySecureHashTypeKey {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(fields[k]))
	}
	return b.String()
}

// SignVNPay - HMAC-SHA512 над канонической строкой.
func SignVNPay(fields map[string]string, hashSecret string) string {
	return hmacSHA512(hashSecret, VNPayCanonical(fields))
}

func VerifyVNPay(fields map[string]string, secureHash, hashSecret string) bool {
	return equalHex(SignVNPay(fields, hashSecret), secureHash)
}

// VNPayQuery возвращает каноническую строку с добавленной подписью,
// готовую для редиректа.
func VNPayQuery(fields map[string]string, hashSecret string) string {
	canonical := VNPayCanonical(fields)
	return canonical + "&" + VNPaySecureHashKey + "=" + hmacSHA512(hashSecret, canonical)
}
