package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"booking-platform/internal/audit"
	"booking-platform/internal/auth"
	"booking-platform/internal/booking"
	"booking-platform/internal/discount"
	"booking-platform/internal/payment"
	"booking-platform/internal/payout"
	"booking-platform/internal/rbac"
	"booking-platform/internal/wallet"
	"booking-platform/internal/workflow"
	"booking-platform/pkg/utils"

	"github.com/gin-gonic/gin"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestHandlers(t *testing.T) (Handlers, *wallet.Service) {
	t.Helper()
	clock := func() time.Time { return testNow }
	runner := &utils.SerialRunner{}

	bookings := booking.NewMemoryStore()
	wallets := wallet.NewService(wallet.NewMemoryRepo(), runner)
	discounts := discount.NewEngine(discount.NewMemoryCouponRepo(), discount.NewMemoryVoucherRepo()).WithClock(clock)
	audits := audit.NewService(audit.NewMemoryRepo())
	intents := payment.NewMemoryIntentStore().WithClock(clock)

	reconciler := payment.NewReconciler(bookings, wallets, audits, intents, nil, runner, time.Hour).
		WithClock(clock).WithSleep(func(time.Duration) {})

	payouts := payout.NewDispatcher(wallets, payout.NewMemoryStore(), payout.NewMemoryDirectory(), audits, runner).WithClock(clock)

	listings := workflow.NewMemoryListings()
	listings.Put(workflow.Listing{ID: "lst-1", HostID: "host-1", NightlyRateMinor: 1000, Currency: "USD", Active: true})

	wf := workflow.NewService(bookings, listings, discounts, reconciler, payouts, workflow.NopNotifier{}, runner).WithClock(clock)

	return Handlers{
		Workflow:  wf,
		Wallet:    wallets,
		Discounts: discounts,
		Payouts:   payouts,
		Audit:     audits,
	}, wallets
}

// asUser injects an identity the way the auth middleware would.
func asUser(userID, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request = c.Request.WithContext(auth.WithIdentity(c.Request.Context(), userID, role))
		c.Next()
	}
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestCreateBookingEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h, wallets := newTestHandlers(t)

	if _, _, err := wallets.Credit(context.Background(), "guest-1", wallet.CreditRequest{
		AmountMinor: 10000, Currency: "USD", Type: wallet.TypeRefund,
		IdempotencyKey: "seed", Description: "top up",
	}); err != nil {
		t.Fatalf("seed credit: %v", err)
	}

	r := gin.New()
	r.POST("/bookings", asUser("guest-1", rbac.RoleGuest), h.CreateBooking)

	w := doJSON(t, r, http.MethodPost, "/bookings", workflow.CreateRequest{
		ListingID: "lst-1", Nights: 2,
		PaymentMethod: booking.MethodWallet, PaymentTiming: booking.TimingNow,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}

	var res workflow.CreateResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if res.Booking.TotalMinor != 2100 {
		t.Fatalf("total = %d, want 2100", res.Booking.TotalMinor)
	}
	if res.Booking.PaymentStatus != booking.PaymentCompleted {
		t.Fatalf("payment status = %q", res.Booking.PaymentStatus)
	}
}

func TestCreateBookingRequiresIdentity(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h, _ := newTestHandlers(t)

	r := gin.New()
	r.POST("/bookings", h.CreateBooking)

	w := doJSON(t, r, http.MethodPost, "/bookings", workflow.CreateRequest{ListingID: "lst-1", Nights: 1})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestErrorMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h, _ := newTestHandlers(t)

	r := gin.New()
	r.POST("/bookings", asUser("guest-1", rbac.RoleGuest), h.CreateBooking)
	r.POST("/bookings/:booking_id/approve", asUser("host-2", rbac.RoleHost), h.ApproveBooking)
	r.GET("/bookings/:booking_id", asUser("guest-1", rbac.RoleGuest), h.GetBooking)

	// Unknown listing: 404.
	w := doJSON(t, r, http.MethodPost, "/bookings", workflow.CreateRequest{
		ListingID: "lst-nope", Nights: 1,
		PaymentMethod: booking.MethodWallet, PaymentTiming: booking.TimingLater,
	})
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown listing status = %d, want 404", w.Code)
	}

	// Insufficient funds: 422.
	w = doJSON(t, r, http.MethodPost, "/bookings", workflow.CreateRequest{
		ListingID: "lst-1", Nights: 1,
		PaymentMethod: booking.MethodWallet, PaymentTiming: booking.TimingNow,
	})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("insufficient funds status = %d, want 422", w.Code)
	}

	// Foreign host approval: 403.
	w = doJSON(t, r, http.MethodPost, "/bookings", workflow.CreateRequest{
		ListingID: "lst-1", Nights: 1,
		PaymentMethod: booking.MethodWallet, PaymentTiming: booking.TimingLater,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d body = %s", w.Code, w.Body.String())
	}
	var res workflow.CreateResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	w = doJSON(t, r, http.MethodPost, "/bookings/"+res.Booking.ID+"/approve", nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("foreign approve status = %d, want 403", w.Code)
	}

	// Unknown booking: 404.
	w = doJSON(t, r, http.MethodGet, "/bookings/bkg-nope", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown booking status = %d, want 404", w.Code)
	}
}

func TestWalletEndpoints(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h, _ := newTestHandlers(t)

	r := gin.New()
	r.GET("/wallet/balance", asUser("guest-1", rbac.RoleGuest), h.GetWalletBalance)
	r.GET("/wallet/transactions", asUser("guest-1", rbac.RoleGuest), h.ListWalletTransactions)
	r.POST("/admin/wallet/credit", asUser("ops-1", rbac.RoleAdmin), h.AdminCredit)

	w := doJSON(t, r, http.MethodPost, "/admin/wallet/credit", adminCreditRequest{
		OwnerID: "guest-1", AmountMinor: 5000, Currency: "USD",
		IdempotencyKey: "ops-credit-1", Reason: "goodwill",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("admin credit status = %d body = %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodGet, "/wallet/balance", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("balance status = %d", w.Code)
	}
	var bal struct {
		BalanceMinor int64 `json:"balance_minor"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &bal); err != nil {
		t.Fatalf("decode balance: %v", err)
	}
	if bal.BalanceMinor != 5000 {
		t.Fatalf("balance = %d, want 5000", bal.BalanceMinor)
	}

	w = doJSON(t, r, http.MethodGet, "/wallet/transactions", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("transactions status = %d", w.Code)
	}
	var hist struct {
		Transactions []wallet.Transaction `json:"transactions"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &hist); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(hist.Transactions) != 1 {
		t.Fatalf("transactions = %d, want 1", len(hist.Transactions))
	}
}

func TestSettlePayoutsWithoutProvider(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h, _ := newTestHandlers(t)

	r := gin.New()
	r.POST("/admin/payouts/settle", asUser("ops-1", rbac.RoleAdmin), h.SettlePayouts)

	w := doJSON(t, r, http.MethodPost, "/admin/payouts/settle", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
}
