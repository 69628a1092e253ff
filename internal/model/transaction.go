package model

import "time"

type TransactionType string

const (
	TransactionTypeDebit  TransactionType = "debit"
	TransactionTypeCredit TransactionType = "credit"
	TransactionTypeRefund TransactionType = "refund"
)

type PaymentMethod string

const (
	PaymentMethodPaystack     PaymentMethod = "paystack"
	PaymentMethodFlutterwave  PaymentMethod = "flutterwave"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodAdminCredit  PaymentMethod = "admin_credit"
)

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
	TransactionStatusRefunded  TransactionStatus = "refunded"
)

// Transaction is one ledger row. Amount is signed: credits are positive, debits negative.
type Transaction struct {
	ID            string            `json:"id"`
	UserID        string            `json:"user_id"`
	Amount        int64             `json:"amount"`
	Type          TransactionType   `json:"type"`
	PaymentMethod *PaymentMethod    `json:"payment_method"`
	Reference     *string           `json:"reference"`
	SessionID     *string           `json:"session_id"`
	Status        TransactionStatus `json:"status"`
	Description   string            `json:"description"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// LedgerEntry is a balance change together with the transaction row recording it.
type LedgerEntry struct {
	UserID        string
	Delta         int64
	Type          TransactionType
	PaymentMethod *PaymentMethod
	Reference     *string
	SessionID     *string
	Description   string
}

func SessionDebitReference(sessionID string) string  { return "session:" + sessionID + ":debit" }
func SessionRefundReference(sessionID string) string { return "session:" + sessionID + ":refund" }
