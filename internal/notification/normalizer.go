// Package notification turns the payment network's inbound callback shapes
// into a single canonical domain.Notification.
package notification

import (
	"bytes"
	"encoding/json"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/vanshika/paybridge/internal/domain"
)

var (
	idKeys        = []string{"transactionId", "transaction_id", "txId", "order_id", "orderId"}
	statusKeys    = []string{"status", "transaction_status", "paymentStatus"}
	referenceKeys = []string{"notificationId", "reference"}
)

var statusAliases = map[string]domain.ReportedStatus{
	"success":    domain.ReportedSuccess,
	"succeeded":  domain.ReportedSuccess,
	"paid":       domain.ReportedSuccess,
	"settlement": domain.ReportedSuccess,
	"settled":    domain.ReportedSuccess,
	"completed":  domain.ReportedSuccess,
	"capture":    domain.ReportedSuccess,
	"failed":     domain.ReportedFailed,
	"failure":    domain.ReportedFailed,
	"fail":       domain.ReportedFailed,
	"expired":    domain.ReportedFailed,
	"expire":     domain.ReportedFailed,
	"cancel":     domain.ReportedFailed,
	"cancelled":  domain.ReportedFailed,
	"canceled":   domain.ReportedFailed,
	"deny":       domain.ReportedFailed,
	"denied":     domain.ReportedFailed,
	"rejected":   domain.ReportedFailed,
}

// Normalizer converts raw transport input into canonical notifications. It
// has no side effects and is safe for concurrent use.
type Normalizer struct {
	nowFn func() time.Time
	idFn  func() string
}

// NewNormalizer constructs a Normalizer using the wall clock and random ids.
func NewNormalizer() *Normalizer {
	return &Normalizer{
		nowFn: time.Now,
		idFn:  uuid.NewString,
	}
}

// WithClock overrides the time provider (used primarily in tests).
func (n *Normalizer) WithClock(nowFn func() time.Time) *Normalizer {
	if nowFn != nil {
		n.nowFn = nowFn
	}
	return n
}

// WithIDGenerator overrides the fallback notification id generator.
func (n *Normalizer) WithIDGenerator(idFn func() string) *Normalizer {
	if idFn != nil {
		n.idFn = idFn
	}
	return n
}

// FromJSON normalizes a POST callback body. Unknown fields are ignored.
func (n *Normalizer) FromJSON(body []byte) (domain.Notification, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return domain.Notification{}, &domain.MalformedError{Field: "body", Reason: "is empty"}
	}

	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()
	var fields map[string]any
	if err := decoder.Decode(&fields); err != nil || fields == nil {
		return domain.Notification{}, &domain.MalformedError{Field: "body", Reason: "must be a JSON object"}
	}

	lookup := func(key string) (string, error) {
		raw, ok := fields[key]
		if !ok || raw == nil {
			return "", nil
		}
		switch v := raw.(type) {
		case string:
			return strings.TrimSpace(v), nil
		case json.Number:
			return v.String(), nil
		default:
			return "", &domain.MalformedError{Field: key, Reason: "must be a string"}
		}
	}
	return n.normalize(lookup, domain.TransportPost)
}

// FromQuery normalizes a GET callback's query parameters.
func (n *Normalizer) FromQuery(values url.Values) (domain.Notification, error) {
	lookup := func(key string) (string, error) {
		return strings.TrimSpace(values.Get(key)), nil
	}
	return n.normalize(lookup, domain.TransportGet)
}

// ParseStatus maps a provider status value onto a reported verdict.
func ParseStatus(raw string) (domain.ReportedStatus, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	if value == "" {
		return "", &domain.MalformedError{Field: "status", Reason: "is required"}
	}
	status, ok := statusAliases[value]
	if !ok {
		return "", &domain.MalformedError{Field: "status", Reason: "value " + quote(raw) + " is not recognised"}
	}
	return status, nil
}

func (n *Normalizer) normalize(lookup func(string) (string, error), source domain.Transport) (domain.Notification, error) {
	txID, err := firstValue(lookup, idKeys)
	if err != nil {
		return domain.Notification{}, err
	}
	if txID == "" {
		return domain.Notification{}, &domain.MalformedError{Field: "transactionId", Reason: "is required"}
	}

	rawStatus, err := firstValue(lookup, statusKeys)
	if err != nil {
		return domain.Notification{}, err
	}
	status, err := ParseStatus(rawStatus)
	if err != nil {
		return domain.Notification{}, err
	}

	ref := optionalValue(lookup, referenceKeys)
	if ref == "" {
		ref = n.idFn()
	}

	return domain.Notification{
		ID:            ref,
		TransactionID: txID,
		Status:        status,
		ReceivedAt:    n.nowFn().UTC(),
		Source:        source,
	}, nil
}

func firstValue(lookup func(string) (string, error), keys []string) (string, error) {
	for _, key := range keys {
		v, err := lookup(key)
		if err != nil {
			return "", err
		}
		if v != "" {
			return v, nil
		}
	}
	return "", nil
}

// optionalValue is firstValue for informational fields: a value of an
// unusable type is skipped rather than rejecting the notification.
func optionalValue(lookup func(string) (string, error), keys []string) string {
	for _, key := range keys {
		if v, err := lookup(key); err == nil && v != "" {
			return v
		}
	}
	return ""
}

const maxQuoted = 64

func quote(s string) string {
	if len(s) > maxQuoted {
		cut := maxQuoted
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut] + "..."
	}
	return `"` + s + `"`
}
