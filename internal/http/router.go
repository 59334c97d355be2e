// README: HTTP router registration.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"freightly/internal/http/handlers"
	"freightly/internal/http/middleware"
	"freightly/internal/modules/booking"
	"freightly/internal/modules/dispute"
	"freightly/internal/modules/payments"
	"freightly/internal/modules/subscription"
)

type RouterDeps struct {
	Bookings      *booking.Service
	Disputes      *dispute.Service
	Processor     *payments.Processor
	Subscriptions *subscription.Service
	Logger        *zap.Logger
}

func NewRouter(deps RouterDeps) http.Handler {
	r := gin.New()
	r.Use(middleware.Recovery(deps.Logger), middleware.Logging(deps.Logger))

	bookingHandler := handlers.NewBookingHandler(deps.Bookings)
	disputeHandler := handlers.NewDisputeHandler(deps.Disputes)
	webhookHandler := handlers.NewWebhookHandler(deps.Processor)
	subHandler := handlers.NewSubscriptionHandler(deps.Subscriptions)

	api := r.Group("/api", middleware.RequireActor())
	{
		api.POST("/jobs", bookingHandler.CreateJob)
		api.GET("/jobs/:id", bookingHandler.GetJob)
		api.GET("/jobs/:id/bookings", bookingHandler.ListByJob)
		api.POST("/jobs/:id/apply", bookingHandler.Apply)

		api.GET("/bookings/:id", bookingHandler.Get)
		api.POST("/bookings/:id/accept", bookingHandler.Accept)
		api.POST("/bookings/:id/start", bookingHandler.Start)
		api.POST("/bookings/:id/delivered", bookingHandler.MarkDelivered)
		api.POST("/bookings/:id/validate", bookingHandler.ValidateCompletion)
		api.POST("/bookings/:id/cancel", bookingHandler.Cancel)
		api.POST("/bookings/:id/no-show", bookingHandler.ReportNoShow)
		api.POST("/bookings/:id/no-show/confirm", bookingHandler.ConfirmNoShow)
		api.POST("/bookings/:id/dispute", bookingHandler.OpenDispute)
		api.POST("/bookings/:id/dispute/resolve", disputeHandler.Resolve)

		api.GET("/subscriptions/usage", subHandler.Usage)
	}

	// The provider authenticates with its signature, not actor headers.
	r.POST("/webhooks/payments", webhookHandler.Handle)

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	return r
}
