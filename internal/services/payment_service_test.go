package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	gateway "github.com/nimasrn/sms-verify/internal/gateways"
	"github.com/nimasrn/sms-verify/internal/model"
	"github.com/nimasrn/sms-verify/internal/payment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func paystackWebhook(event, reference string, amount int64, email string) payment.Webhook {
	body := []byte(fmt.Sprintf(`{"event":%q,"data":{"reference":%q,"amount":%d,"customer":{"email":%q}}}`, event, reference, amount, email))
	return payment.Webhook{
		Headers: map[string]string{"X-Paystack-Signature": payment.SignPaystack(testPaystackSecret, body)},
		Body:    body,
	}
}

func TestPaymentService_Credits(t *testing.T) {
	env := newTestEnv(t)
	assert.Equal(t, int64(20), env.payment.Credits(1000))
	assert.Equal(t, int64(20), env.payment.Credits(1099))
	assert.Equal(t, int64(0), env.payment.Credits(99))
}

func TestPaymentService_ProcessPayment_OnlyOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "payer@example.com", 3)
	w := paystackWebhook("charge.success", "ref-123", 1000, "Payer@Example.com")

	res, err := env.payment.ProcessPayment(ctx, w)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, int64(20), res.CreditsAdded)
	assert.Equal(t, int64(23), res.NewBalance)

	again, err := env.payment.ProcessPayment(ctx, w)
	require.NoError(t, err)
	assert.True(t, again.AlreadyProcessed)
	assert.Equal(t, "Transaction already processed", again.Message)

	// without the redis marker the reference lookup still catches it
	env.mr.FlushAll()
	third, err := env.payment.ProcessPayment(ctx, w)
	require.NoError(t, err)
	assert.True(t, third.AlreadyProcessed)

	assert.Equal(t, int64(23), env.balance(t, user.ID))
	txn, err := env.transactions.GetByReference(ctx, "paystack:ref-123")
	require.NoError(t, err)
	require.NotNil(t, txn)
	assert.Equal(t, model.TransactionStatusCompleted, txn.Status)
	assert.Equal(t, model.PaymentMethodPaystack, *txn.PaymentMethod)
	assert.Equal(t, int64(20), env.completedSum(t, user.ID))

	assert.Len(t, env.eventsOf(t, user.ID, model.EventPaymentProcessed), 1)
	assert.Len(t, env.eventsOf(t, user.ID, model.EventCreditAddition), 1)
}

func TestPaymentService_ProcessPayment_Flutterwave(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "flw@example.com", 0)
	body := []byte(`{"event":"transaction.completed","data":{"tx_ref":"flw-1","amount":"500.00","customer_email":"flw@example.com"}}`)

	res, err := env.payment.ProcessPayment(context.Background(), payment.Webhook{
		Headers: map[string]string{"x-flutterwave-signature": "anything"},
		Body:    body,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(10), res.CreditsAdded)
	assert.Equal(t, int64(10), env.balance(t, user.ID))
}

func TestPaymentService_ProcessPayment_Rejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createUser(t, "known@example.com", 0)

	t.Run("missing signature", func(t *testing.T) {
		_, err := env.payment.ProcessPayment(ctx, payment.Webhook{Body: []byte(`{}`)})
		assert.ErrorIs(t, err, payment.ErrUnverifiedWebhook)
	})

	t.Run("bad signature", func(t *testing.T) {
		w := paystackWebhook("charge.success", "r1", 1000, "known@example.com")
		w.Headers["X-Paystack-Signature"] = "deadbeef"
		_, err := env.payment.ProcessPayment(ctx, w)
		assert.ErrorIs(t, err, payment.ErrUnverifiedWebhook)
	})

	t.Run("ignored event", func(t *testing.T) {
		res, err := env.payment.ProcessPayment(ctx, paystackWebhook("charge.failed", "r2", 1000, "known@example.com"))
		require.NoError(t, err)
		assert.True(t, res.Ignored)
		assert.Equal(t, "Event not processed", res.Message)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := env.payment.ProcessPayment(ctx, paystackWebhook("charge.success", "r3", 1000, "ghost@example.com"))
		assert.ErrorIs(t, err, ErrUserNotFound)
	})

	t.Run("amount below one unit", func(t *testing.T) {
		_, err := env.payment.ProcessPayment(ctx, paystackWebhook("charge.success", "r4", 50, "known@example.com"))
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})

	t.Run("invalid payload", func(t *testing.T) {
		_, err := env.payment.ProcessPayment(ctx, paystackWebhook("charge.success", "", 1000, "known@example.com"))
		assert.ErrorIs(t, err, payment.ErrInvalidPayload)
	})
}

func TestPaymentService_ProcessPayment_ConcurrentDuplicateIsBusy(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.createUser(t, "race@example.com", 0)

	_, err := env.idempotency.AcquireProcessingLock(ctx, "payment:paystack:ref-race")
	require.NoError(t, err)

	_, err = env.payment.ProcessPayment(ctx, paystackWebhook("charge.success", "ref-race", 1000, "race@example.com"))
	assert.ErrorIs(t, err, ErrLockBusy)
}

func TestPaymentService_ProcessPayment_CreditFailureIsCompensated(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "fail@example.com", 0)

	broken := &failingUsers{UserRepository: env.users, err: errBoom}
	svc := NewPaymentService(
		payment.NewRegistry(payment.PaystackVerifier{Secret: testPaystackSecret}),
		env.users, env.transactions, NewLedgerService(env.db, broken, env.transactions), env.idempotency, env.audit,
		PaymentConfig{MinorPerUnit: 100, CreditsPerUnit: 2},
	)

	_, err := svc.ProcessPayment(ctx, paystackWebhook("charge.success", "ref-fail", 1000, "fail@example.com"))
	assert.ErrorIs(t, err, ErrBalanceUpdateFailed)
	assert.Equal(t, int64(0), env.balance(t, user.ID))

	// the reference stays free so the provider's retry can succeed
	txn, err := env.transactions.GetByReference(ctx, "paystack:ref-fail")
	require.NoError(t, err)
	assert.Nil(t, txn)

	status := model.TransactionStatusFailed
	failed, err := env.transactions.List(ctx, repositoryFilter(user.ID, &status))
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, int64(20), failed[0].Amount)

	res, err := env.payment.ProcessPayment(ctx, paystackWebhook("charge.success", "ref-fail", 1000, "fail@example.com"))
	require.NoError(t, err)
	assert.Equal(t, int64(20), res.NewBalance)
}

func TestPaymentService_ProcessPayment_RecoversAfterRepeatedFailures(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "outage@example.com", 0)

	broken := NewPaymentService(
		payment.NewRegistry(payment.PaystackVerifier{Secret: testPaystackSecret}),
		env.users, env.transactions, NewLedgerService(env.db, &failingUsers{UserRepository: env.users, err: errBoom}, env.transactions),
		env.idempotency, env.audit,
		PaymentConfig{MinorPerUnit: 100, CreditsPerUnit: 2},
	)
	w := paystackWebhook("charge.success", "ref-outage", 1000, "outage@example.com")

	for i := 0; i < 5; i++ {
		_, err := broken.ProcessPayment(ctx, w)
		require.ErrorIs(t, err, ErrBalanceUpdateFailed)
	}

	res, err := env.payment.ProcessPayment(ctx, w)
	require.NoError(t, err)
	assert.Equal(t, int64(20), res.CreditsAdded)
	assert.Equal(t, int64(20), env.balance(t, user.ID))

	again, err := env.payment.ProcessPayment(ctx, w)
	require.NoError(t, err)
	assert.True(t, again.AlreadyProcessed)
	assert.Equal(t, int64(20), env.balance(t, user.ID))
}

func TestPaymentService_ProcessPayment_ReferenceCannotTakeSessionKeys(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.enableRefunds(t, true)
	user := env.createUser(t, "collide@example.com", 8)
	svc := env.createService(t, "wa", 2, true)
	session := env.createSession(t, user, svc, 3, time.Now().Add(10*time.Minute))

	res, err := env.payment.ProcessPayment(ctx, paystackWebhook("charge.success", model.SessionRefundReference(session.ID), 1000, "collide@example.com"))
	require.NoError(t, err)
	assert.Equal(t, int64(28), res.NewBalance)

	credit, err := env.transactions.GetByReference(ctx, "paystack:"+model.SessionRefundReference(session.ID))
	require.NoError(t, err)
	require.NotNil(t, credit)
	assert.Equal(t, model.TransactionTypeCredit, credit.Type)

	env.upstream.On("PollDelivery", mock.Anything, model.ServerOne, session.RequestID).
		Return(&gateway.PollResult{Received: false}, nil).Once()

	checked, err := env.delivery.CheckDelivery(ctx, userAuth(user), session.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionStatusFailed, checked.Status)
	assert.Equal(t, int64(2), checked.RefundAmount)
	assert.Equal(t, int64(30), env.balance(t, user.ID))
}

func TestPaymentService_ProcessPayment_LockStoreDown(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "nolock@example.com", 0)
	w := paystackWebhook("charge.success", "ref-nolock", 1000, "nolock@example.com")

	env.mr.SetError("ERR redis unavailable")
	res, err := env.payment.ProcessPayment(ctx, w)
	require.NoError(t, err)
	assert.Equal(t, int64(20), res.NewBalance)

	// the unique reference still blocks a replay
	again, err := env.payment.ProcessPayment(ctx, w)
	env.mr.SetError("")
	require.NoError(t, err)
	assert.True(t, again.AlreadyProcessed)
	assert.Equal(t, int64(20), env.balance(t, user.ID))
}
