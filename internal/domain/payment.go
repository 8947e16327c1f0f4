package domain

type PaymentMethod string

const (
	PaymentMethodCOD PaymentMethod = "cod"
	// PaymentMethodRazorpay is recognised but disabled until the gateway
	// integration exists.
	PaymentMethodRazorpay PaymentMethod = "razorpay"
)

// SupportedPaymentMethods are the methods checkout accepts today.
var SupportedPaymentMethods = []PaymentMethod{PaymentMethodCOD}

func (m PaymentMethod) Supported() bool {
	for _, s := range SupportedPaymentMethods {
		if s == m {
			return true
		}
	}
	return false
}

func (m PaymentMethod) String() string {
	return string(m)
}
