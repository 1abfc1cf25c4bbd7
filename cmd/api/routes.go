package main

import (
	"database/sql"
	"net/http"
	"time"

	"booking-platform/internal/httpapi"
	"booking-platform/internal/rbac"
	"booking-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, authMW gin.HandlerFunc, db *sql.DB, rdb *redis.Client) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		if err := utils.HealthCheck(c.Request.Context(), db, 2*time.Second); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "postgres": err.Error()})
			return
		}
		if err := rdb.Ping(c.Request.Context()).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "redis": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Gateway capture callbacks (public; authenticated by webhook signature).
	r.POST("/webhooks/stripe", h.StripeWebhook)

	// AUTH routes (token issuance).
	// NOTE: This is a placeholder login route; real credential validation is not implemented.
	r.POST("/v1/auth/login", h.Login)

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(authMW)
	{
		// BOOKING routes (guest side)
		bookings := v1.Group("/bookings")
		bookings.Use(rbac.RequireAnyRole(rbac.RoleGuest, rbac.RoleHost))
		{
			bookings.POST("", h.CreateBooking)
			bookings.GET("", h.ListGuestBookings)
			bookings.GET("/:booking_id", h.GetBooking)
			bookings.POST("/:booking_id/pay", h.PayBooking)
			bookings.POST("/:booking_id/cancellation", h.RequestCancellation)
		}

		// HOST routes
		host := v1.Group("/host")
		host.Use(rbac.RequireAnyRole(rbac.RoleHost))
		{
			host.GET("/bookings", h.ListHostBookings)
			host.POST("/bookings/:booking_id/approve", h.ApproveBooking)
			host.POST("/bookings/:booking_id/reject", h.RejectBooking)
			host.POST("/bookings/:booking_id/cancellation/approve", h.ApproveCancellation)
			host.POST("/bookings/:booking_id/cancellation/reject", h.RejectCancellation)
		}

		// WALLET routes
		walletGroup := v1.Group("/wallet")
		{
			walletGroup.GET("/balance", h.GetWalletBalance)
			walletGroup.GET("/transactions", h.ListWalletTransactions)
		}

		// VOUCHER routes
		vouchers := v1.Group("/vouchers")
		vouchers.Use(rbac.RequireAnyRole(rbac.RoleGuest))
		{
			vouchers.POST("/claim", h.ClaimVoucher)
		}

		// ADMIN routes
		admin := v1.Group("/admin")
		admin.Use(rbac.RequireAnyRole(rbac.RoleAdmin))
		{
			admin.POST("/wallet/credit", h.AdminCredit)
			admin.GET("/bookings/review", h.ListBookingsNeedingReview)
			admin.POST("/bookings/:booking_id/complete", h.CompleteStay)
			admin.POST("/payouts/settle", h.SettlePayouts)
		}
	}
}
