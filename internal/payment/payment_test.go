package payment

import (
	"testing"

	"github.com/nimasrn/sms-verify/internal/model"
	"github.com/nimasrn/sms-verify/pkg/validate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const paystackCharge = `{"event":"charge.success","data":{"reference":"ref-123","amount":1000,"customer":{"email":"Jane@Example.com"}}}`

func TestRegistry_Resolve(t *testing.T) {
	reg := NewRegistry(PaystackVerifier{}, FlutterwaveVerifier{})

	t.Run("no signature header", func(t *testing.T) {
		_, _, err := reg.Resolve(Webhook{Headers: map[string]string{"content-type": "application/json"}})
		assert.ErrorIs(t, err, ErrUnverifiedWebhook)
	})

	t.Run("paystack header wins when both are present", func(t *testing.T) {
		v, sig, err := reg.Resolve(Webhook{Headers: map[string]string{
			"X-Flutterwave-Signature": "b",
			"X-Paystack-Signature":    "a",
		}})
		require.NoError(t, err)
		assert.Equal(t, model.PaymentMethodPaystack, v.Provider())
		assert.Equal(t, "a", sig)
	})

	t.Run("flutterwave header", func(t *testing.T) {
		v, _, err := reg.Resolve(Webhook{Headers: map[string]string{FlutterwaveSignatureHeader: "h"}})
		require.NoError(t, err)
		assert.Equal(t, model.PaymentMethodFlutterwave, v.Provider())
	})
}

func TestRegistry_RegisterReplaces(t *testing.T) {
	reg := NewRegistry(PaystackVerifier{})
	reg.Register(PaystackVerifier{Secret: "s"})

	v, ok := reg.Get(model.PaymentMethodPaystack)
	require.True(t, ok)
	assert.Equal(t, "s", v.(PaystackVerifier).Secret)
	assert.Len(t, reg.order, 1)

	_, ok = reg.Get(model.PaymentMethodFlutterwave)
	assert.False(t, ok)
}

func TestPaystackVerifier(t *testing.T) {
	body := []byte(paystackCharge)

	t.Run("valid hmac", func(t *testing.T) {
		v := PaystackVerifier{Secret: "sk_test"}
		assert.NoError(t, v.Verify(SignPaystack("sk_test", body), body))
	})

	t.Run("tampered body", func(t *testing.T) {
		v := PaystackVerifier{Secret: "sk_test"}
		sig := SignPaystack("sk_test", body)
		assert.ErrorIs(t, v.Verify(sig, append(body, ' ')), ErrUnverifiedWebhook)
	})

	t.Run("no secret only needs the header", func(t *testing.T) {
		v := PaystackVerifier{}
		assert.NoError(t, v.Verify("anything", body))
		assert.ErrorIs(t, v.Verify("", body), ErrUnverifiedWebhook)
	})
}

func TestFlutterwaveVerifier(t *testing.T) {
	v := FlutterwaveVerifier{SecretHash: "hash-1"}
	assert.NoError(t, v.Verify("hash-1", nil))
	assert.ErrorIs(t, v.Verify("hash-2", nil), ErrUnverifiedWebhook)
}

func TestRegistry_Parse(t *testing.T) {
	reg := NewRegistry(PaystackVerifier{Secret: "sk"}, FlutterwaveVerifier{})

	t.Run("paystack charge", func(t *testing.T) {
		body := []byte(paystackCharge)
		ev, err := reg.Parse(Webhook{
			Headers: map[string]string{PaystackSignatureHeader: SignPaystack("sk", body)},
			Body:    body,
		})
		require.NoError(t, err)
		assert.Equal(t, model.PaymentMethodPaystack, ev.Provider)
		assert.Equal(t, "ref-123", ev.Reference)
		assert.Equal(t, int64(1000), ev.AmountMinor)
		assert.Equal(t, "jane@example.com", ev.CustomerEmail)
		assert.True(t, ev.Successful())
		assert.NoError(t, ev.Validate())
		assert.Equal(t, "payment:paystack:ref-123", ev.IdempotencyKey())
		assert.Equal(t, "paystack:ref-123", ev.LedgerReference())
	})

	t.Run("flutterwave uses customer_email and tx_ref fallbacks", func(t *testing.T) {
		body := []byte(`{"event":"transaction.completed","data":{"tx_ref":"fw-9","amount":"2500.75","customer_email":"a@b.co"}}`)
		ev, err := reg.Parse(Webhook{Headers: map[string]string{FlutterwaveSignatureHeader: "x"}, Body: body})
		require.NoError(t, err)
		assert.Equal(t, "fw-9", ev.Reference)
		assert.Equal(t, int64(2500), ev.AmountMinor)
		assert.Equal(t, "a@b.co", ev.CustomerEmail)
	})

	t.Run("bad signature is rejected before decoding", func(t *testing.T) {
		_, err := reg.Parse(Webhook{
			Headers: map[string]string{PaystackSignatureHeader: "deadbeef"},
			Body:    []byte("not json"),
		})
		assert.ErrorIs(t, err, ErrUnverifiedWebhook)
	})

	t.Run("malformed body", func(t *testing.T) {
		_, err := reg.Parse(Webhook{Headers: map[string]string{FlutterwaveSignatureHeader: "x"}, Body: []byte("{")})
		assert.ErrorIs(t, err, ErrInvalidPayload)
	})
}

func TestEvent_Validate(t *testing.T) {
	ev := &Event{Provider: model.PaymentMethodPaystack, Event: "charge.success"}
	err := ev.Validate()
	require.Error(t, err)

	fields := validate.ProcessValidationErrors(err)
	assert.Equal(t, "required", fields["reference"])
	assert.Equal(t, "gt", fields["amount"])
	assert.Equal(t, "required", fields["customer_email"])

	assert.False(t, (&Event{Event: "charge.failed"}).Successful())
}
