package httpapi

import (
	"errors"
	"io"
	"net/http"
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

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.

type Handlers struct {
	Auth      *auth.Manager
	Workflow  *workflow.Service
	Wallet    *wallet.Service
	Discounts *discount.Engine
	Payouts   *payout.Dispatcher
	Audit     *audit.Service

	// PayoutProvider is optional; the settle endpoint answers 503 until a
	// downstream provider is wired.
	PayoutProvider payout.Provider

	// StripeWebhookSecret verifies gateway callbacks.
	StripeWebhookSecret string
}

// writeError maps the service error taxonomy onto HTTP statuses.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, booking.ErrNotFound),
		errors.Is(err, wallet.ErrNotFound),
		errors.Is(err, payout.ErrNotFound),
		errors.Is(err, discount.ErrNotFound),
		errors.Is(err, payment.ErrNotFound),
		errors.Is(err, workflow.ErrListingNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, workflow.ErrForbidden):
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, booking.ErrStaleState),
		errors.Is(err, booking.ErrInvalidTransition),
		errors.Is(err, discount.ErrAlreadyClaimed),
		errors.Is(err, payout.ErrAlreadySettled),
		errors.Is(err, payment.ErrMismatch),
		errors.Is(err, payment.ErrDuplicateCapture):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, wallet.ErrInsufficientFunds),
		errors.Is(err, workflow.ErrPaymentRequired),
		errors.Is(err, discount.ErrUsageExceeded),
		errors.Is(err, discount.ErrNotApplicable),
		errors.Is(err, discount.ErrNotClaimed),
		errors.Is(err, discount.ErrConflictingCodes):
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, booking.ErrInvalidArgument),
		errors.Is(err, wallet.ErrInvalidArgument),
		errors.Is(err, payment.ErrInvalidArgument),
		errors.Is(err, payout.ErrInvalidArgument),
		errors.Is(err, discount.ErrInvalidArgument),
		errors.Is(err, workflow.ErrInvalidArgument):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, payment.ErrExternalService):
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func identity(c *gin.Context) (string, string, bool) {
	userID, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "identity required"})
		return "", "", false
	}
	role, _ := auth.Role(c.Request.Context())
	return userID, role, true
}

// --- Auth ---

type loginRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// Login issues a JWT token.
//
// NOTE: This is a skeleton-only endpoint. Real systems must validate credentials.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" || req.Role == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id, role required"})
		return
	}
	token, err := h.Auth.Issue(time.Now(), req.UserID, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": token})
}

// --- Bookings (guest) ---

func (h Handlers) CreateBooking(c *gin.Context) {
	guestID, _, ok := identity(c)
	if !ok {
		return
	}
	var req workflow.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	res, err := h.Workflow.Create(c.Request.Context(), guestID, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h Handlers) PayBooking(c *gin.Context) {
	guestID, _, ok := identity(c)
	if !ok {
		return
	}
	res, err := h.Workflow.Pay(c.Request.Context(), guestID, c.Param("booking_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h Handlers) GetBooking(c *gin.Context) {
	userID, role, ok := identity(c)
	if !ok {
		return
	}
	b, err := h.Workflow.Get(c.Request.Context(), userID, rbac.IsAdmin(role), c.Param("booking_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h Handlers) ListGuestBookings(c *gin.Context) {
	guestID, _, ok := identity(c)
	if !ok {
		return
	}
	out, err := h.Workflow.ListForGuest(c.Request.Context(), guestID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": out})
}

func (h Handlers) RequestCancellation(c *gin.Context) {
	guestID, _, ok := identity(c)
	if !ok {
		return
	}
	b, err := h.Workflow.RequestCancellation(c.Request.Context(), guestID, c.Param("booking_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// --- Bookings (host) ---

func (h Handlers) ListHostBookings(c *gin.Context) {
	hostID, _, ok := identity(c)
	if !ok {
		return
	}
	out, err := h.Workflow.ListForHost(c.Request.Context(), hostID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": out})
}

func (h Handlers) ApproveBooking(c *gin.Context) {
	hostID, _, ok := identity(c)
	if !ok {
		return
	}
	b, err := h.Workflow.Approve(c.Request.Context(), hostID, c.Param("booking_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (h Handlers) RejectBooking(c *gin.Context) {
	hostID, _, ok := identity(c)
	if !ok {
		return
	}
	var req rejectRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	b, err := h.Workflow.Reject(c.Request.Context(), hostID, c.Param("booking_id"), req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h Handlers) ApproveCancellation(c *gin.Context) {
	hostID, _, ok := identity(c)
	if !ok {
		return
	}
	b, err := h.Workflow.ApproveCancellation(c.Request.Context(), hostID, c.Param("booking_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h Handlers) RejectCancellation(c *gin.Context) {
	hostID, _, ok := identity(c)
	if !ok {
		return
	}
	b, err := h.Workflow.RejectCancellation(c.Request.Context(), hostID, c.Param("booking_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// --- Wallet ---

func (h Handlers) GetWalletBalance(c *gin.Context) {
	userID, _, ok := identity(c)
	if !ok {
		return
	}
	balance, err := h.Wallet.Balance(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"owner_id": userID, "balance_minor": balance})
}

func (h Handlers) ListWalletTransactions(c *gin.Context) {
	userID, _, ok := identity(c)
	if !ok {
		return
	}
	history, err := h.Wallet.History(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": history})
}

// --- Vouchers ---

type claimVoucherRequest struct {
	Code string `json:"code"`
}

func (h Handlers) ClaimVoucher(c *gin.Context) {
	guestID, _, ok := identity(c)
	if !ok {
		return
	}
	var req claimVoucherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	v, err := h.Discounts.Claim(c.Request.Context(), req.Code, guestID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// --- Webhooks ---

// StripeWebhook receives gateway capture callbacks. Signature verification is
// the only authentication on this route.
func (h Handlers) StripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.Status(http.StatusServiceUnavailable)
		return
	}
	cap, ok, err := payment.ParseWebhookCapture(payload, c.GetHeader("Stripe-Signature"), h.StripeWebhookSecret)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid webhook"})
		return
	}
	if !ok {
		// Event types the engine does not act on are acknowledged, not errored,
		// or the gateway keeps redelivering them.
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}
	if _, err := h.Workflow.HandleCapture(c.Request.Context(), cap); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// --- Admin ---

type adminCreditRequest struct {
	OwnerID        string `json:"owner_id"`
	AmountMinor    int64  `json:"amount_minor"`
	Currency       string `json:"currency"`
	BookingID      string `json:"booking_id,omitempty"`
	IdempotencyKey string `json:"idempotency_key"`
	Reason         string `json:"reason"`
}

// AdminCredit is the operator lever for reimbursements. There is no automatic
// refund path; money returns to guests only through this endpoint.
func (h Handlers) AdminCredit(c *gin.Context) {
	actorID, actorRole, ok := identity(c)
	if !ok {
		return
	}
	var req adminCreditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.OwnerID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "owner_id required"})
		return
	}
	tx, balance, err := h.Wallet.Credit(c.Request.Context(), req.OwnerID, wallet.CreditRequest{
		AmountMinor:    req.AmountMinor,
		Currency:       req.Currency,
		Type:           wallet.TypeRefund,
		BookingID:      req.BookingID,
		IdempotencyKey: req.IdempotencyKey,
		Description:    req.Reason,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	if h.Audit != nil {
		_ = h.Audit.LogAdminAction(c.Request.Context(), actorID, actorRole, c.ClientIP(),
			"manual wallet credit: "+req.Reason, req.BookingID, req.OwnerID, "")
	}
	c.JSON(http.StatusOK, gin.H{"transaction": tx, "balance_minor": balance})
}

func (h Handlers) ListBookingsNeedingReview(c *gin.Context) {
	out, err := h.Workflow.ListNeedingReview(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bookings": out})
}

func (h Handlers) CompleteStay(c *gin.Context) {
	b, err := h.Workflow.CompleteStay(c.Request.Context(), c.Param("booking_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h Handlers) SettlePayouts(c *gin.Context) {
	if h.PayoutProvider == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "payout provider not configured"})
		return
	}
	settled, err := h.Payouts.SettlePending(c.Request.Context(), h.PayoutProvider)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"settled": settled})
}
