package handlers_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/storefront-labs/frontdesk/libs/auth"
	"github.com/storefront-labs/frontdesk/services/booking-service/internal/availability"
	"github.com/storefront-labs/frontdesk/services/booking-service/internal/booking"
	"github.com/storefront-labs/frontdesk/services/booking-service/internal/capacity"
	"github.com/storefront-labs/frontdesk/services/booking-service/internal/handlers"
	"github.com/storefront-labs/frontdesk/services/booking-service/internal/lifecycle"
	"github.com/storefront-labs/frontdesk/services/booking-service/internal/memstore"
	"github.com/storefront-labs/frontdesk/services/booking-service/internal/model"
	"github.com/storefront-labs/frontdesk/services/booking-service/internal/settlement"
	"github.com/storefront-labs/frontdesk/services/booking-service/internal/slots"
	"github.com/storefront-labs/frontdesk/services/booking-service/internal/wallet"
)

const secret = "test-secret"

var (
	cst = time.FixedZone("CST", 8*3600)
	now = time.Date(2026, 3, 1, 12, 0, 0, 0, cst)
)

type env struct {
	srv   *httptest.Server
	store *memstore.Store
}

func newEnv(t *testing.T) *env {
	t.Helper()
	grid, err := slots.NewGrid(cst, slots.DefaultStep, slots.DefaultWindows())
	if err != nil {
		t.Fatalf("NewGrid: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := func() time.Time { return now }
	store := memstore.New()

	registry := capacity.NewRegistry(store, grid, capacity.DefaultCapacity, nil, logger)
	api := handlers.NewAPI(handlers.Deps{
		Grid:         grid,
		Capacity:     registry,
		Availability: availability.NewCalculator(store, registry, grid).WithClock(clock),
		Booking:      booking.NewService(store, registry, grid, nil, logger).WithClock(clock),
		Lifecycle:    lifecycle.NewManager(store, nil, logger).WithClock(clock),
		Settlement:   settlement.NewEngine(store, nil, nil, logger).WithClock(clock),
		Wallet:       wallet.NewLedger(store, wallet.Policy{}, nil, logger),
		Appointments: store,
		Identity:     handlers.NewIdentity(secret, true),
		Logger:       logger,
		Now:          clock,
	})
	srv := httptest.NewServer(api.Routes())
	t.Cleanup(srv.Close)
	return &env{srv: srv, store: store}
}

type caller struct {
	id   string
	role model.Role
}

var (
	admin = caller{"admin-1", model.RoleAdmin}
	alice = caller{"alice", model.RoleCustomer}
	bob   = caller{"bob", model.RoleCustomer}
	carol = caller{"carol", model.RoleCustomer}
)

func (e *env) do(t *testing.T, who caller, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, rd)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if who.id != "" {
		req.Header.Set("X-User-Id", who.id)
		req.Header.Set("X-Role", string(who.role))
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	out := map[string]any{}
	if resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode, out
}

func errorCode(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func book(t *testing.T, e *env, who caller, label string) (int, map[string]any) {
	t.Helper()
	return e.do(t, who, http.MethodPost, "/api/v1/appointments", map[string]any{
		"service_name": "Facial",
		"date":         "2026-03-02",
		"slot_label":   label,
	})
}

func TestRequestsWithoutIdentityAreRejected(t *testing.T) {
	e := newEnv(t)
	status, body := e.do(t, caller{}, http.MethodGet, "/api/v1/slots?date=2026-03-02", nil)
	if status != http.StatusUnauthorized || errorCode(body) != "UNAUTHENTICATED" {
		t.Fatalf("status=%d body=%v", status, body)
	}
}

func TestBearerTokenIdentifiesCaller(t *testing.T) {
	e := newEnv(t)
	token, err := auth.SignHS256(auth.NewClaims("alice", auth.RoleCustomer, time.Hour), secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	req, _ := http.NewRequest(http.MethodGet, e.srv.URL+"/api/v1/slot-configs", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d", resp.StatusCode)
	}
}

func TestThirdBookingReturnsSlotFullWithCount(t *testing.T) {
	e := newEnv(t)
	for _, who := range []caller{alice, bob} {
		if status, body := book(t, e, who, "09:00"); status != http.StatusCreated {
			t.Fatalf("%s booking: status=%d body=%v", who.id, status, body)
		}
	}

	status, body := book(t, e, carol, "09:00")
	if status != http.StatusConflict || errorCode(body) != "SLOT_FULL" {
		t.Fatalf("status=%d body=%v", status, body)
	}
	if booked := body["error"].(map[string]any)["booked"]; booked != float64(2) {
		t.Fatalf("booked=%v want 2", booked)
	}

	status, body = e.do(t, alice, http.MethodGet, "/api/v1/slots/09:00/count?date=2026-03-02", nil)
	if status != http.StatusOK || body["booked"] != float64(2) {
		t.Fatalf("count status=%d body=%v", status, body)
	}
}

func TestClosedSlotRejectsBooking(t *testing.T) {
	e := newEnv(t)
	status, _ := e.do(t, admin, http.MethodPut, "/api/v1/slot-configs/10:00", map[string]any{"capacity": 0})
	if status != http.StatusOK {
		t.Fatalf("set capacity status=%d", status)
	}
	status, body := book(t, e, alice, "10:00")
	if status != http.StatusConflict || errorCode(body) != "SLOT_CLOSED" {
		t.Fatalf("status=%d body=%v", status, body)
	}
}

func TestCustomerCannotChangeCapacity(t *testing.T) {
	e := newEnv(t)
	status, body := e.do(t, alice, http.MethodPut, "/api/v1/slot-configs/10:00", map[string]any{"capacity": 5})
	if status != http.StatusForbidden || errorCode(body) != "FORBIDDEN" {
		t.Fatalf("status=%d body=%v", status, body)
	}
}

func TestCustomerCannotCancelAnotherCustomersAppointment(t *testing.T) {
	e := newEnv(t)
	_, created := book(t, e, alice, "09:30")
	id := created["id"].(string)

	status, body := e.do(t, bob, http.MethodPost, "/api/v1/appointments/"+id+"/cancel", nil)
	if status != http.StatusForbidden {
		t.Fatalf("status=%d body=%v", status, body)
	}
	status, body = e.do(t, alice, http.MethodPost, "/api/v1/appointments/"+id+"/cancel", nil)
	if status != http.StatusOK || body["status"] != "cancelled" {
		t.Fatalf("owner cancel status=%d body=%v", status, body)
	}
	status, body = e.do(t, alice, http.MethodPost, "/api/v1/appointments/"+id+"/cancel", nil)
	if status != http.StatusConflict || errorCode(body) != "INVALID_TRANSITION" {
		t.Fatalf("re-cancel status=%d body=%v", status, body)
	}
}

func TestCustomerListsOnlyOwnAppointments(t *testing.T) {
	e := newEnv(t)
	book(t, e, alice, "09:00")
	book(t, e, bob, "09:00")

	status, body := e.do(t, alice, http.MethodGet, "/api/v1/appointments", nil)
	if status != http.StatusOK {
		t.Fatalf("status=%d", status)
	}
	items := body["appointments"].([]any)
	if len(items) != 1 || items[0].(map[string]any)["customer_id"] != "alice" {
		t.Fatalf("items=%v", items)
	}

	status, body = e.do(t, admin, http.MethodGet, "/api/v1/appointments", nil)
	if status != http.StatusOK || len(body["appointments"].([]any)) != 2 {
		t.Fatalf("admin list status=%d body=%v", status, body)
	}
}

func TestSettlementFlow(t *testing.T) {
	e := newEnv(t)
	e.store.PutWallet(model.Wallet{CustomerID: "alice", Balance: decimal.NewFromInt(50)})
	_, created := book(t, e, alice, "15:00")
	id := created["id"].(string)
	base := "/api/v1/appointments/" + id

	if status, body := e.do(t, admin, http.MethodPost, base+"/confirm", nil); status != http.StatusOK {
		t.Fatalf("confirm status=%d body=%v", status, body)
	}

	status, body := e.do(t, admin, http.MethodPost, base+"/settle", map[string]any{"amount": "80"})
	if status != http.StatusPaymentRequired || errorCode(body) != "INSUFFICIENT_BALANCE" {
		t.Fatalf("settle status=%d body=%v", status, body)
	}
	if got := body["error"].(map[string]any)["available"]; got != "50.00" {
		t.Fatalf("available=%v", got)
	}

	if status, body := e.do(t, admin, http.MethodPost, "/api/v1/wallets/alice/recharge", map[string]any{"amount": 100}); status != http.StatusOK {
		t.Fatalf("recharge status=%d body=%v", status, body)
	}

	status, body = e.do(t, admin, http.MethodPost, base+"/settle", map[string]any{"amount": "80"})
	if status != http.StatusOK {
		t.Fatalf("settle status=%d body=%v", status, body)
	}
	if got := body["appointment"].(map[string]any)["status"]; got != "completed" {
		t.Fatalf("status=%v", got)
	}
	if got := body["wallet"].(map[string]any)["balance"]; got != "70" {
		t.Fatalf("balance=%v", got)
	}

	status, body = e.do(t, admin, http.MethodPost, base+"/settle", map[string]any{"amount": "80"})
	if status != http.StatusConflict || errorCode(body) != "INVALID_TRANSITION" {
		t.Fatalf("re-settle status=%d body=%v", status, body)
	}

	status, body = e.do(t, alice, http.MethodGet, "/api/v1/wallets/alice/transactions", nil)
	if status != http.StatusOK || len(body["transactions"].([]any)) != 2 {
		t.Fatalf("transactions status=%d body=%v", status, body)
	}
}

func TestBulkCancelReportsPartialFailure(t *testing.T) {
	e := newEnv(t)
	_, created := book(t, e, alice, "11:00")
	id := created["id"].(string)

	status, body := e.do(t, admin, http.MethodPost, "/api/v1/appointments/bulk-cancel", map[string]any{"ids": []string{id, "missing"}})
	if status != http.StatusOK {
		t.Fatalf("status=%d body=%v", status, body)
	}
	if len(body["succeeded"].([]any)) != 1 || len(body["failed"].([]any)) != 1 {
		t.Fatalf("body=%v", body)
	}
}

func TestDeleteIsAdminOnly(t *testing.T) {
	e := newEnv(t)
	_, created := book(t, e, alice, "11:30")
	id := created["id"].(string)

	if status, _ := e.do(t, alice, http.MethodDelete, "/api/v1/appointments/"+id, nil); status != http.StatusForbidden {
		t.Fatalf("customer delete status=%d", status)
	}
	if status, _ := e.do(t, admin, http.MethodDelete, "/api/v1/appointments/"+id, nil); status != http.StatusNoContent {
		t.Fatalf("admin delete status=%d", status)
	}
	if status, body := e.do(t, admin, http.MethodGet, "/api/v1/appointments/"+id, nil); status != http.StatusNotFound {
		t.Fatalf("get after delete status=%d body=%v", status, body)
	}
}
