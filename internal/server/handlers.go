package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/vanshika/paybridge/internal/ack"
	"github.com/vanshika/paybridge/internal/domain"
	"github.com/vanshika/paybridge/internal/notification"
	"github.com/vanshika/paybridge/internal/reconcile"
	"github.com/vanshika/paybridge/internal/service"
)

const maxBodyBytes = 1 << 20

// Reconciler applies canonical notifications.
type Reconciler interface {
	Apply(ctx context.Context, n domain.Notification) (reconcile.Outcome, error)
}

// Payments covers initiation and the status query.
type Payments interface {
	Initiate(ctx context.Context, in service.InitiateInput) (domain.Transaction, error)
	Status(ctx context.Context, id string) (domain.Transaction, error)
}

// APIHandlers exposes HTTP handlers for the callback and transaction API.
type APIHandlers struct {
	logger     *slog.Logger
	normalizer *notification.Normalizer
	engine     Reconciler
	payments   Payments
	acks       *ack.Acknowledger
}

// NewAPIHandlers constructs an APIHandlers instance.
func NewAPIHandlers(logger *slog.Logger, normalizer *notification.Normalizer, engine Reconciler, payments Payments, acks *ack.Acknowledger) *APIHandlers {
	return &APIHandlers{
		logger:     logger,
		normalizer: normalizer,
		engine:     engine,
		payments:   payments,
		acks:       acks,
	}
}

func (h *APIHandlers) handleCallbackPost(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		h.writeAck(w, r, h.acks.ForPost(reconcile.Outcome{}, &domain.MalformedError{Field: "body", Reason: err.Error()}))
		return
	}

	n, err := h.normalizer.FromJSON(body)
	if err != nil {
		h.logger.Warn("malformed callback", "error", err, "transport", domain.TransportPost, "requestId", requestID(r.Context()))
		h.writeAck(w, r, h.acks.ForPost(reconcile.Outcome{}, err))
		return
	}

	out, err := h.engine.Apply(r.Context(), n)
	h.writeAck(w, r, h.acks.ForPost(out, err))
}

func (h *APIHandlers) handleCallbackGet(w http.ResponseWriter, r *http.Request) {
	n, err := h.normalizer.FromQuery(r.URL.Query())
	if err != nil {
		h.logger.Warn("malformed callback", "error", err, "transport", domain.TransportGet, "requestId", requestID(r.Context()))
		h.writeAck(w, r, h.acks.ForGet(n.TransactionID, reconcile.Outcome{}, err))
		return
	}

	out, err := h.engine.Apply(r.Context(), n)
	h.writeAck(w, r, h.acks.ForGet(n.TransactionID, out, err))
}

func (h *APIHandlers) handleStatus(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(mux.Vars(r)["transactionId"])
	tx, err := h.payments.Status(r.Context(), id)
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, toTransactionResponse(tx))
	case errors.Is(err, domain.ErrUnknownTransaction):
		writeCodedError(w, http.StatusNotFound, ack.CodeUnknown, "no transaction with this id was initiated")
	default:
		h.logger.Error("status query failed", "error", err, "transactionId", id)
		writeCodedError(w, http.StatusInternalServerError, ack.CodeInternal, "failed to fetch transaction")
	}
}

func (h *APIHandlers) handleInitiate(w http.ResponseWriter, r *http.Request) {
	var req initiateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload: "+err.Error())
		return
	}

	tx, err := h.payments.Initiate(r.Context(), service.InitiateInput{
		TransactionID: req.TransactionID,
		Amount:        req.Amount,
		Currency:      req.Currency,
	})
	switch {
	case err == nil:
		respondJSON(w, http.StatusCreated, toTransactionResponse(tx))
	case errors.Is(err, domain.ErrInvalidTransaction):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrTransactionExists):
		writeError(w, http.StatusConflict, "transaction already exists")
	default:
		writeError(w, http.StatusInternalServerError, "failed to initiate transaction")
	}
}

func (h *APIHandlers) writeAck(w http.ResponseWriter, r *http.Request, a ack.Acknowledgment) {
	h.logger.Debug("callback acknowledged",
		"kind", a.Kind.String(),
		"status", a.Status,
		"requestId", requestID(r.Context()),
	)
	ack.Write(w, r, a)
}

type initiateRequest struct {
	TransactionID string          `json:"transactionId"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
}

type transactionResponse struct {
	TransactionID      string `json:"transactionId"`
	State              string `json:"state"`
	Amount             string `json:"amount"`
	Currency           string `json:"currency"`
	CreatedAt          string `json:"createdAt"`
	UpdatedAt          string `json:"updatedAt"`
	LastNotificationAt string `json:"lastNotificationAt,omitempty"`
	NotificationCount  int64  `json:"notificationCount"`
	LastReportedStatus string `json:"lastReportedStatus,omitempty"`
	ClaimUnlocked      bool   `json:"claimUnlocked"`
}

func toTransactionResponse(tx domain.Transaction) transactionResponse {
	return transactionResponse{
		TransactionID:      tx.ID,
		State:              string(tx.State),
		Amount:             tx.Amount.String(),
		Currency:           tx.Currency,
		CreatedAt:          formatTime(tx.CreatedAt),
		UpdatedAt:          formatTime(tx.UpdatedAt),
		LastNotificationAt: formatTimePtr(tx.LastNotificationAt),
		NotificationCount:  tx.NotificationCount,
		LastReportedStatus: string(tx.LastReportedStatus),
		ClaimUnlocked:      tx.ClaimUnlocked,
	}
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, errors.New("is required")
	}
	defer r.Body.Close()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, errors.New("exceeds 1 MiB")
		}
		return nil, errors.New("could not be read")
	}
	return body, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.Body == nil {
		return errors.New("request body is required")
	}
	defer r.Body.Close()

	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return err
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(ts *time.Time) string {
	if ts == nil || ts.IsZero() {
		return ""
	}
	return ts.UTC().Format(time.RFC3339Nano)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{
		"error": msg,
	})
}

func writeCodedError(w http.ResponseWriter, status int, code, msg string) {
	respondJSON(w, status, map[string]any{
		"success": false,
		"code":    code,
		"message": msg,
	})
}
