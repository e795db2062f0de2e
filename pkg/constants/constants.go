package constants

const (
	GatewayPaystack    = "paystack"
	GatewayFlutterwave = "flutterwave"

	DefaultCurrency = "NGN"
)
