package payment

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/nimasrn/sms-verify/internal/model"
	"github.com/nimasrn/sms-verify/pkg/validate"
	"github.com/shopspring/decimal"
)

var (
	ErrUnverifiedWebhook = errors.New("missing or invalid webhook signature")
	ErrInvalidPayload    = errors.New("invalid webhook payload")
)

var successEvents = map[string]struct{}{
	"charge.success":        {},
	"transaction.completed": {},
}

// Webhook is a raw inbound delivery. Header names are matched case-insensitively.
type Webhook struct {
	Headers map[string]string
	Body    []byte
}

func (w Webhook) Header(name string) string {
	if v, ok := w.Headers[name]; ok {
		return v
	}
	for k, v := range w.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// Event is a provider payload reduced to what crediting needs.
type Event struct {
	Provider      model.PaymentMethod `json:"provider"       validate:"required"`
	Event         string              `json:"event"`
	Reference     string              `json:"reference"      validate:"required,max=255"`
	AmountMinor   int64               `json:"amount"         validate:"gt=0"`
	CustomerEmail string              `json:"customer_email" validate:"required,email"`
}

func (e *Event) Successful() bool {
	_, ok := successEvents[e.Event]
	return ok
}

func (e *Event) Validate() error {
	return validate.Struct(e)
}

// IdempotencyKey scopes a reference to its provider.
func (e *Event) IdempotencyKey() string {
	return "payment:" + e.LedgerReference()
}

// LedgerReference is the transaction reference stored for the charge. The
// provider prefix keeps gateway references apart from internal session keys.
func (e *Event) LedgerReference() string {
	return string(e.Provider) + ":" + e.Reference
}

// Verifier authenticates and decodes the webhooks of one provider.
type Verifier interface {
	Provider() model.PaymentMethod
	SignatureHeader() string
	Verify(signature string, body []byte) error
	Decode(body []byte) (*Event, error)
}

type Registry struct {
	mu        sync.RWMutex
	verifiers map[model.PaymentMethod]Verifier
	order     []model.PaymentMethod
}

func NewRegistry(verifiers ...Verifier) *Registry {
	r := &Registry{verifiers: make(map[model.PaymentMethod]Verifier)}
	for _, v := range verifiers {
		r.Register(v)
	}
	return r
}

// Register adds or replaces the verifier for its provider. Resolution follows
// first registration order.
func (r *Registry) Register(v Verifier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.verifiers[v.Provider()]; !ok {
		r.order = append(r.order, v.Provider())
	}
	r.verifiers[v.Provider()] = v
}

func (r *Registry) Get(provider model.PaymentMethod) (Verifier, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.verifiers[provider]
	return v, ok
}

// Resolve picks the verifier whose signature header is present on w.
func (r *Registry) Resolve(w Webhook) (Verifier, string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.order {
		v := r.verifiers[p]
		if sig := w.Header(v.SignatureHeader()); sig != "" {
			return v, sig, nil
		}
	}
	return nil, "", ErrUnverifiedWebhook
}

// Parse resolves, verifies and decodes w. The returned event is not validated,
// callers skip validation for events they ignore.
func (r *Registry) Parse(w Webhook) (*Event, error) {
	v, sig, err := r.Resolve(w)
	if err != nil {
		return nil, err
	}
	if err := v.Verify(sig, w.Body); err != nil {
		return nil, err
	}
	return v.Decode(w.Body)
}

// chargePayload is the envelope shared by the supported gateways.
type chargePayload struct {
	Event string `json:"event"`
	Data  struct {
		Reference     string          `json:"reference"`
		TxRef         string          `json:"tx_ref"`
		Amount        decimal.Decimal `json:"amount"`
		CustomerEmail string          `json:"customer_email"`
		Customer      *struct {
			Email string `json:"email"`
		} `json:"customer"`
	} `json:"data"`
}

func decodeCharge(provider model.PaymentMethod, body []byte) (*Event, error) {
	var p chargePayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	email := p.Data.CustomerEmail
	if p.Data.Customer != nil && p.Data.Customer.Email != "" {
		email = p.Data.Customer.Email
	}
	ref := p.Data.Reference
	if ref == "" {
		ref = p.Data.TxRef
	}

	return &Event{
		Provider:      provider,
		Event:         p.Event,
		Reference:     strings.TrimSpace(ref),
		AmountMinor:   p.Data.Amount.Floor().IntPart(),
		CustomerEmail: strings.ToLower(strings.TrimSpace(email)),
	}, nil
}
