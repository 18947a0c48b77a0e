package signature

// MoMoCreateFields - поля подписи запроса на создание заказа.
type MoMoCreateFields struct {
	AccessKey   string
	Amount      string
	ExtraData   string
	IpnURL      string
	OrderID     string
	OrderInfo   string
	PartnerCode string
	RedirectURL string
	RequestID   string
	RequestType string
}

func (f MoMoCreateFields) RawSignature() string {
	return joinPairs([]Field{
		{"accessKey", f.AccessKey},
		{"amount", f.Amount},
		{"extraData", f.ExtraData},
		{"ipnUrl", f.IpnURL},
		{"orderId", f.OrderID},
		{"orderInfo", f.OrderInfo},
		{"partnerCode", f.PartnerCode},
		{"redirectUrl", f.RedirectURL},
		{"requestId", f.RequestID},
		{"requestType", f.RequestType},
	})
}

// MoMoIPNFields - поля подписи IPN-уведомления.
type MoMoIPNFields struct {
	AccessKey    string
	Amount       string
	ExtraData    string
	Message      string
	OrderID      string
	OrderInfo    string
	OrderType    string
	PartnerCode  string
	PayType      string
	RequestID    string
	ResponseTime string
	ResultCode   string
	TransID      string
}

func (f MoMoIPNFields) RawSignature() string {
	return joinPairs([]Field{
		{"accessKey", f.AccessKey},
		{"amount", f.Amount},
		{"extraData", f.ExtraData},
		{"message", f.Message},
		{"orderId", f.OrderID},
		{"orderInfo", f.OrderInfo},
		{"orderType", f.OrderType},
		{"partnerCode", f.PartnerCode},
		{"payType", f.PayType},
		{"requestId", f.RequestID},
		{"responseTime", f.ResponseTime},
		{"resultCode", f.ResultCode},
		{"transId", f.TransID},
	})
}

// SignMoMo - HMAC-SHA256 с secretKey партнёра.
func SignMoMo(fields RawSigner, secretKey string) string {
	return hmacSHA256(secretKey, fields.RawSignature())
}

func VerifyMoMo(fields RawSigner, signature, secretKey string) bool {
	return equalHex(SignMoMo(fields, secretKey), signature)
}
