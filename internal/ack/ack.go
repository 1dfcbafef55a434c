// Package ack builds the responses returned to the payment network for
// inbound callbacks. POST callbacks get a JSON acknowledgment; only a 500 asks
// the network to redeliver. GET callbacks come from a payer's browser
// and are redirected to the status page unless the request itself is unusable.
package ack

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/vanshika/paybridge/internal/config"
	"github.com/vanshika/paybridge/internal/domain"
	"github.com/vanshika/paybridge/internal/reconcile"
)

// Kind classifies a reconciliation result for acknowledgment purposes.
type Kind int

const (
	KindApplied Kind = iota
	KindDuplicate
	KindUnknown
	KindMalformed
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindApplied:
		return "applied"
	case KindDuplicate:
		return "duplicate"
	case KindUnknown:
		return "unknown_transaction"
	case KindMalformed:
		return "malformed_notification"
	default:
		return "internal_error"
	}
}

// Error codes surfaced in acknowledgment bodies.
const (
	CodeMalformed = "MALFORMED_NOTIFICATION"
	CodeUnknown   = "UNKNOWN_TRANSACTION"
	CodeInternal  = "INTERNAL_ERROR"
)

// Classify maps an engine result onto a Kind.
func Classify(out reconcile.Outcome, err error) Kind {
	switch {
	case err == nil && out.StateChanged:
		return KindApplied
	case err == nil:
		return KindDuplicate
	case errors.Is(err, domain.ErrMalformedNotification):
		return KindMalformed
	case errors.Is(err, domain.ErrUnknownTransaction):
		return KindUnknown
	default:
		return KindInternal
	}
}

// Body is the JSON acknowledgment payload.
type Body struct {
	Success       bool   `json:"success"`
	Message       string `json:"message,omitempty"`
	Code          string `json:"code,omitempty"`
	TransactionID string `json:"transactionId,omitempty"`
	State         string `json:"state,omitempty"`
}

// Acknowledgment is a fully decided response: either a JSON body or a redirect.
type Acknowledgment struct {
	Kind     Kind
	Status   int
	Body     *Body
	Location string
}

// Acknowledger builds acknowledgments and status page URLs.
type Acknowledger struct {
	statusPagePath string
	queryKey       string
	baseURL        string
}

// New constructs an Acknowledger from callback configuration.
func New(cfg config.CallbackConfig) *Acknowledger {
	return &Acknowledger{
		statusPagePath: cfg.StatusPagePath,
		queryKey:       cfg.StatusQueryKey,
		baseURL:        strings.TrimRight(cfg.PublicBaseURL, "/"),
	}
}

// ForPost acknowledges a JSON-body callback.
func (a *Acknowledger) ForPost(out reconcile.Outcome, err error) Acknowledgment {
	kind := Classify(out, err)
	switch kind {
	case KindApplied, KindDuplicate:
		msg := "notification applied"
		if kind == KindDuplicate {
			msg = "notification already reconciled"
		}
		return Acknowledgment{Kind: kind, Status: http.StatusOK, Body: &Body{
			Success:       true,
			Message:       msg,
			TransactionID: out.Transaction.ID,
			State:         string(out.Transaction.State),
		}}
	// Malformed and unknown callbacks are final: redelivery cannot change the
	// result, so they are accepted with success:false instead of a 4xx the
	// network would retry.
	case KindMalformed:
		return Acknowledgment{Kind: kind, Status: http.StatusOK, Body: &Body{
			Message: err.Error(),
			Code:    CodeMalformed,
		}}
	case KindUnknown:
		return Acknowledgment{Kind: kind, Status: http.StatusOK, Body: &Body{
			Message: "no transaction with this id was initiated",
			Code:    CodeUnknown,
		}}
	default:
		return Acknowledgment{Kind: kind, Status: http.StatusInternalServerError, Body: &Body{
			Message: "notification could not be processed",
			Code:    CodeInternal,
		}}
	}
}

// ForGet acknowledges a query-parameter callback. Only a malformed request
// produces an error body; every other outcome redirects to the status page.
func (a *Acknowledger) ForGet(transactionID string, out reconcile.Outcome, err error) Acknowledgment {
	kind := Classify(out, err)
	if kind == KindMalformed || transactionID == "" {
		msg := "transactionId is required"
		if err != nil {
			msg = err.Error()
		}
		return Acknowledgment{Kind: KindMalformed, Status: http.StatusBadRequest, Body: &Body{
			Message: msg,
			Code:    CodeMalformed,
		}}
	}
	return Acknowledgment{Kind: kind, Status: http.StatusFound, Location: a.StatusPageURL(transactionID)}
}

// StatusPageURL returns the page a payer can poll for transactionID.
func (a *Acknowledger) StatusPageURL(transactionID string) string {
	q := url.Values{}
	q.Set(a.queryKey, transactionID)
	return a.baseURL + a.statusPagePath + "?" + q.Encode()
}

// Write sends ack on w.
func Write(w http.ResponseWriter, r *http.Request, a Acknowledgment) {
	if a.Location != "" {
		http.Redirect(w, r, a.Location, a.Status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(a.Status)
	if a.Body != nil {
		_ = json.NewEncoder(w).Encode(a.Body)
	}
}
