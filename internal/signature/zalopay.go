package signature

import "strings"

// ZaloPayOrderFields - поля MAC исходящего заказа, порядок фиксирован.
type ZaloPayOrderFields struct {
	AppID      string
	AppTransID string
	AppUser    string
	Amount     string
	AppTime    string
	EmbedData  string
	Item       string
}

func (f ZaloPayOrderFields) RawSignature() string {
	return strings.Join([]string{
		f.AppID,
		f.AppTransID,
		f.AppUser,
		f.Amount,
		f.AppTime,
		f.EmbedData,
		f.Item,
	}, "|")
}

// SignZaloPayOrder подписывает заказ ключом key1.
func SignZaloPayOrder(fields RawSigner, key1 string) string {
	return hmacSHA256(key1, fields.RawSignature())
}

func VerifyZaloPayOrder(fields RawSigner, mac, key1 string) bool {
	return equalHex(SignZaloPayOrder(fields, key1), mac)
}

// SignZaloPayCallback считает MAC над строкой data колбэка ключом key2.
func SignZaloPayCallback(data, key2 string) string {
	return hmacSHA256(key2, data)
}

// VerifyZaloPayCallback проверяет MAC колбэка. key1 здесь не подходит.
func VerifyZaloPayCallback(data, mac, key2 string) bool {
	return equalHex(SignZaloPayCallback(data, key2), mac)
}
