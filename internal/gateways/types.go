package gateway

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/ttacon/libphonenumber"
)

var (
	ErrProvider            = errors.New("upstream provider rejected the request")
	ErrUpstreamTimeout     = errors.New("upstream provider timed out")
	ErrUpstreamTransport   = errors.New("upstream provider unreachable")
	ErrProviderUnavailable = errors.New("upstream provider circuit is open")
	ErrUnknownServer       = errors.New("unknown upstream server")
)

// ProviderError is a well-formed rejection from the provider, e.g. no numbers left.
type ProviderError struct {
	Server  string
	Code    string
	Message string
}

func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Server, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Server, e.Message)
}

func (e *ProviderError) Is(target error) bool { return target == ErrProvider }

type AcquireRequest struct {
	ServiceCode string
	Country     string
	MaxPrice    int64
}

type AcquireResult struct {
	PhoneNumber string
	RequestID   string
}

type PollResult struct {
	Received bool
	Code     string
	Text     string
}

// UpstreamService is one entry of a provider's service list, priced in the provider's currency.
type UpstreamService struct {
	Code  string
	Name  string
	Cost  decimal.Decimal
	Count int
}

// flexString accepts both JSON strings and numbers; providers are inconsistent about ids.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// envelope carries the error fields every endpoint may answer with.
type envelope struct {
	Success   *bool  `json:"success"`
	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`
}

func (e envelope) failed() bool {
	return e.ErrorCode != "" || e.ErrorMsg != "" || (e.Success != nil && !*e.Success)
}

type getNumberResponse struct {
	envelope
	RequestID flexString `json:"request_id"`
	Number    flexString `json:"number"`
}

type getSmsResponse struct {
	envelope
	RequestID flexString `json:"request_id"`
	SmsCode   string     `json:"sms_code"`
	SmsText   string     `json:"sms_text"`
}

type setStatusResponse struct {
	envelope
}

type serviceItem struct {
	Code  string          `json:"code"`
	Name  string          `json:"name"`
	Cost  decimal.Decimal `json:"cost"`
	Count int             `json:"count"`
}

type getServicesResponse struct {
	envelope
	Services []serviceItem `json:"services"`
}

// waitingCode is what the provider answers while no SMS has arrived yet.
const waitingCode = "wait_sms"

// normalizePhone returns the E.164 form of raw when it parses, raw otherwise.
// Providers often omit the leading plus, so that form is tried first.
func normalizePhone(raw, region string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return raw
	}
	candidates := []string{raw}
	if !strings.HasPrefix(raw, "+") {
		candidates = []string{"+" + raw, raw}
	}
	for _, c := range candidates {
		num, err := libphonenumber.Parse(c, region)
		if err != nil || !libphonenumber.IsValidNumber(num) {
			continue
		}
		return libphonenumber.Format(num, libphonenumber.E164)
	}
	return raw
}
