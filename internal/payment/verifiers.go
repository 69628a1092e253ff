package payment

import (
	"crypto/hmac"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"github.com/nimasrn/sms-verify/internal/model"
)

const (
	PaystackSignatureHeader    = "x-paystack-signature"
	FlutterwaveSignatureHeader = "x-flutterwave-signature"
)

// PaystackVerifier checks the HMAC-SHA512 of the raw body when a secret is configured.
// Without one only the presence of the header is required.
type PaystackVerifier struct {
	Secret string
}

func (PaystackVerifier) Provider() model.PaymentMethod { return model.PaymentMethodPaystack }

func (PaystackVerifier) SignatureHeader() string { return PaystackSignatureHeader }

func (v PaystackVerifier) Verify(signature string, body []byte) error {
	if signature == "" {
		return ErrUnverifiedWebhook
	}
	if v.Secret == "" {
		return nil
	}
	expected := SignPaystack(v.Secret, body)
	if !hmac.Equal([]byte(strings.ToLower(signature)), []byte(expected)) {
		return ErrUnverifiedWebhook
	}
	return nil
}

func (v PaystackVerifier) Decode(body []byte) (*Event, error) {
	return decodeCharge(v.Provider(), body)
}

// FlutterwaveVerifier compares the header with the secret hash set on the dashboard.
type FlutterwaveVerifier struct {
	SecretHash string
}

func (FlutterwaveVerifier) Provider() model.PaymentMethod { return model.PaymentMethodFlutterwave }

func (FlutterwaveVerifier) SignatureHeader() string { return FlutterwaveSignatureHeader }

func (v FlutterwaveVerifier) Verify(signature string, _ []byte) error {
	if signature == "" {
		return ErrUnverifiedWebhook
	}
	if v.SecretHash == "" {
		return nil
	}
	if subtle.ConstantTimeCompare([]byte(signature), []byte(v.SecretHash)) != 1 {
		return ErrUnverifiedWebhook
	}
	return nil
}

func (v FlutterwaveVerifier) Decode(body []byte) (*Event, error) {
	return decodeCharge(v.Provider(), body)
}

// SignPaystack returns the signature Paystack would send for body.
func SignPaystack(secret string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
