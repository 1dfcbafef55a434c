package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanshika/paybridge/internal/ack"
	"github.com/vanshika/paybridge/internal/config"
	"github.com/vanshika/paybridge/internal/domain"
	"github.com/vanshika/paybridge/internal/logging"
	"github.com/vanshika/paybridge/internal/notification"
	"github.com/vanshika/paybridge/internal/reconcile"
	"github.com/vanshika/paybridge/internal/repository"
	"github.com/vanshika/paybridge/internal/service"
)

type countingTrigger struct {
	mu    sync.Mutex
	calls []string
}

func (c *countingTrigger) ClaimUnlocked(_ context.Context, tx domain.Transaction) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, tx.ID)
	return nil
}

func (c *countingTrigger) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

// brokenUpdates serves reads but fails every reconciliation write.
type brokenUpdates struct {
	*repository.MemoryStore
}

func (b brokenUpdates) Update(context.Context, string, repository.UpdateFunc) (domain.Transaction, error) {
	return domain.Transaction{}, errors.New("store unavailable")
}

type harness struct {
	handler http.Handler
	store   *repository.MemoryStore
	trigger *countingTrigger
}

func newHarness(t *testing.T, seed ...string) *harness {
	t.Helper()
	store := repository.NewMemoryStore()
	return newHarnessWithStore(t, store, store, seed...)
}

func newHarnessWithStore(t *testing.T, mem *repository.MemoryStore, updater reconcile.Store, seed ...string) *harness {
	t.Helper()
	logger := logging.Discard()
	for _, id := range seed {
		tx, err := domain.NewTransaction(id, decimal.NewFromInt(100), "INR", time.Now())
		require.NoError(t, err)
		require.NoError(t, mem.Create(context.Background(), tx))
	}

	trig := &countingTrigger{}
	engine := reconcile.NewEngine(updater, trig, logger)
	payments := service.NewPaymentService(mem, logger)
	acks := ack.New(config.CallbackConfig{StatusPagePath: "/payment/success", StatusQueryKey: "txId"})
	api := NewAPIHandlers(logger, notification.NewNormalizer(), engine, payments, acks)

	return &harness{
		handler: NewRouter(logger, RouterDependencies{Health: StoreHealthService{Store: mem}, API: api}),
		store:   mem,
		trigger: trig,
	}
}

func (h *harness) do(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func (h *harness) stored(t *testing.T, id string) domain.Transaction {
	t.Helper()
	tx, err := h.store.Get(context.Background(), id)
	require.NoError(t, err)
	return tx
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload
}

func TestPostCallbackSuccessThenDuplicate(t *testing.T) {
	h := newHarness(t, "tx-001")
	body := `{"transactionId":"tx-001","status":"success"}`

	first := h.do(http.MethodPost, "/api/payment/callback", body)
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, true, decodeBody(t, first)["success"])

	second := h.do(http.MethodPost, "/api/payment/callback", body)
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, true, decodeBody(t, second)["success"])

	tx := h.stored(t, "tx-001")
	assert.Equal(t, domain.StateSucceeded, tx.State)
	assert.True(t, tx.ClaimUnlocked)
	assert.EqualValues(t, 2, tx.NotificationCount)
	assert.Equal(t, 1, h.trigger.count())
}

func TestGetCallbackRedirects(t *testing.T) {
	h := newHarness(t, "tx-002")

	rec := h.do(http.MethodGet, "/api/payment/callback?transactionId=tx-002&status=failed", "")
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/payment/success?txId=tx-002", rec.Header().Get("Location"))

	tx := h.stored(t, "tx-002")
	assert.Equal(t, domain.StateFailed, tx.State)
	assert.False(t, tx.ClaimUnlocked)
	assert.Zero(t, h.trigger.count())
}

func TestGetCallbackMissingStatus(t *testing.T) {
	h := newHarness(t, "tx-003")

	rec := h.do(http.MethodGet, "/api/payment/callback?transactionId=tx-003", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, rec.Header().Get("Location"))
	assert.Equal(t, ack.CodeMalformed, decodeBody(t, rec)["code"])

	tx := h.stored(t, "tx-003")
	assert.Equal(t, domain.StatePending, tx.State)
	assert.Zero(t, tx.NotificationCount)
}

func TestPostCallbackUnknownTransaction(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodPost, "/api/payment/callback", `{"transactionId":"tx-999","status":"success"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	payload := decodeBody(t, rec)
	assert.Equal(t, false, payload["success"])
	assert.Equal(t, ack.CodeUnknown, payload["code"])
	assert.Zero(t, h.store.Len())
	assert.Zero(t, h.trigger.count())
}

func TestPostCallbackMalformed(t *testing.T) {
	h := newHarness(t, "tx-004")

	for _, body := range []string{`not json`, `[]`, `{"transactionId":"tx-004"}`, `{"transactionId":{"x":1},"status":"success"}`} {
		rec := h.do(http.MethodPost, "/api/payment/callback", body)
		assert.Equal(t, http.StatusOK, rec.Code, body)
		payload := decodeBody(t, rec)
		assert.Equal(t, false, payload["success"], body)
		assert.Equal(t, ack.CodeMalformed, payload["code"], body)
	}
	tx := h.stored(t, "tx-004")
	assert.Equal(t, domain.StatePending, tx.State)
	assert.Zero(t, tx.NotificationCount)
}

func TestPostCallbackIgnoresUnusableReference(t *testing.T) {
	h := newHarness(t, "tx-ref")

	rec := h.do(http.MethodPost, "/api/payment/callback", `{"transactionId":"tx-ref","status":"success","reference":{"bank":"x"}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["success"])
	assert.Equal(t, domain.StateSucceeded, h.stored(t, "tx-ref").State)
	assert.Equal(t, 1, h.trigger.count())
}

func TestPostCallbackBodyLimit(t *testing.T) {
	h := newHarness(t, "tx-big")
	padding := strings.Repeat("x", maxBodyBytes)
	rec := h.do(http.MethodPost, "/api/payment/callback", `{"transactionId":"tx-big","status":"success","pad":"`+padding+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ack.CodeMalformed, decodeBody(t, rec)["code"])
	assert.Equal(t, domain.StatePending, h.stored(t, "tx-big").State)
}

func TestTransportsAreEquivalent(t *testing.T) {
	post := newHarness(t, "tx-eq")
	get := newHarness(t, "tx-eq")

	post.do(http.MethodPost, "/api/payment/callback", `{"transactionId":"tx-eq","status":"success"}`)
	get.do(http.MethodGet, "/api/payment/callback?"+url.Values{"transactionId": {"tx-eq"}, "status": {"success"}}.Encode(), "")

	a, b := post.stored(t, "tx-eq"), get.stored(t, "tx-eq")
	assert.Equal(t, a.State, b.State)
	assert.Equal(t, a.ClaimUnlocked, b.ClaimUnlocked)
	assert.Equal(t, a.NotificationCount, b.NotificationCount)
	assert.Equal(t, a.LastReportedStatus, b.LastReportedStatus)
}

func TestStoreFailure(t *testing.T) {
	mem := repository.NewMemoryStore()
	h := newHarnessWithStore(t, mem, brokenUpdates{mem}, "tx-005")

	post := h.do(http.MethodPost, "/api/payment/callback", `{"transactionId":"tx-005","status":"success"}`)
	require.Equal(t, http.StatusInternalServerError, post.Code)
	payload := decodeBody(t, post)
	assert.Equal(t, false, payload["success"])
	assert.Equal(t, ack.CodeInternal, payload["code"])
	assert.NotContains(t, post.Body.String(), "store unavailable")

	get := h.do(http.MethodGet, "/api/payment/callback?transactionId=tx-005&status=success", "")
	require.Equal(t, http.StatusFound, get.Code)
	assert.Equal(t, "/payment/success?txId=tx-005", get.Header().Get("Location"))

	assert.Equal(t, domain.StatePending, h.stored(t, "tx-005").State)
	assert.Zero(t, h.trigger.count())
}

func TestStatusQuery(t *testing.T) {
	h := newHarness(t, "tx-006")
	h.do(http.MethodPost, "/api/payment/callback", `{"txId":"tx-006","transaction_status":"settlement"}`)

	rec := h.do(http.MethodGet, "/api/transactions/tx-006", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var payload transactionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "tx-006", payload.TransactionID)
	assert.Equal(t, "SUCCEEDED", payload.State)
	assert.Equal(t, "100", payload.Amount)
	assert.True(t, payload.ClaimUnlocked)
	assert.EqualValues(t, 1, payload.NotificationCount)
	assert.Equal(t, "success", payload.LastReportedStatus)
	assert.NotEmpty(t, payload.LastNotificationAt)

	missing := h.do(http.MethodGet, "/api/transactions/tx-unknown", "")
	require.Equal(t, http.StatusNotFound, missing.Code)
	assert.Equal(t, ack.CodeUnknown, decodeBody(t, missing)["code"])
	assert.Equal(t, 1, h.store.Len())
}

func TestInitiate(t *testing.T) {
	h := newHarness(t)

	created := h.do(http.MethodPost, "/api/transactions", `{"transactionId":"tx-new","amount":"499.50","currency":"inr"}`)
	require.Equal(t, http.StatusCreated, created.Code)
	var payload transactionResponse
	require.NoError(t, json.Unmarshal(created.Body.Bytes(), &payload))
	assert.Equal(t, "PENDING", payload.State)
	assert.Equal(t, "499.5", payload.Amount)
	assert.Equal(t, "INR", payload.Currency)
	assert.False(t, payload.ClaimUnlocked)

	dup := h.do(http.MethodPost, "/api/transactions", `{"transactionId":"tx-new","amount":1,"currency":"INR"}`)
	assert.Equal(t, http.StatusConflict, dup.Code)

	generated := h.do(http.MethodPost, "/api/transactions", `{"amount":12,"currency":"USD"}`)
	require.Equal(t, http.StatusCreated, generated.Code)
	assert.NotEmpty(t, decodeBody(t, generated)["transactionId"])

	for _, body := range []string{`{"amount":0,"currency":"INR"}`, `{"amount":5,"currency":"RUPEE"}`, `{"amount":5,"currency":"INR","extra":true}`, `oops`} {
		rec := h.do(http.MethodPost, "/api/transactions", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
	assert.Equal(t, 2, h.store.Len())
}

func TestConcurrentContradictoryCallbacks(t *testing.T) {
	h := newHarness(t, "tx-race")

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		status := "success"
		if i%2 == 1 {
			status = "failed"
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.do(http.MethodPost, "/api/payment/callback", `{"transactionId":"tx-race","status":"`+status+`"}`)
		}()
	}
	wg.Wait()

	tx := h.stored(t, "tx-race")
	assert.True(t, tx.State.Terminal())
	assert.EqualValues(t, 40, tx.NotificationCount)
	assert.Equal(t, tx.State == domain.StateSucceeded, tx.ClaimUnlocked)
	if tx.State == domain.StateSucceeded {
		assert.Equal(t, 1, h.trigger.count())
	} else {
		assert.Zero(t, h.trigger.count())
	}
}

func TestHealthzAndRouting(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody(t, rec)["status"])
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))

	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/nope", "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, h.do(http.MethodDelete, "/api/payment/callback", "").Code)

	wrongMethod := h.do(http.MethodPut, "/api/transactions/tx-1", "")
	require.Equal(t, http.StatusMethodNotAllowed, wrongMethod.Code)
	assert.Equal(t, "method not allowed", decodeBody(t, wrongMethod)["error"])
	assert.Equal(t, http.StatusMethodNotAllowed, h.do(http.MethodGet, "/api/transactions", "").Code)
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("graph unreachable") }

func TestHealthzDegraded(t *testing.T) {
	router := NewRouter(logging.Discard(), RouterDependencies{Health: StoreHealthService{Store: failingPinger{}}})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "degraded", decodeBody(t, rec)["status"])
}

func TestCORSPreflight(t *testing.T) {
	router := NewRouter(logging.Discard(), RouterDependencies{AllowedOrigins: []string{"https://pay.example"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/transactions/tx-1", nil)
	req.Header.Set("Origin", "https://pay.example")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://pay.example", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/api/transactions/tx-1", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestServerRunShutsDownOnCancel(t *testing.T) {
	srv := New(logging.Discard(), config.HTTPConfig{Host: "127.0.0.1", Port: 0, ShutdownTimeout: time.Second}, http.NotFoundHandler())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
