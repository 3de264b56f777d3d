package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/lifeshare/bloodlink-api/internal/middleware"
	"github.com/lifeshare/bloodlink-api/internal/realtime"
	"github.com/lifeshare/bloodlink-api/internal/service"
)

// Handlers bundles every HTTP handler the router mounts.
type Handlers struct {
	Auth         *AuthHandler
	User         *UserHandler
	Request      *RequestHandler
	Donation     *DonationHandler
	Notification *NotificationHandler
	Realtime     *realtime.Handler
	Metrics      *service.MetricsService
	AuthService  *service.AuthService
}

// RegisterRoutes mounts all API routes under the given prefix. Everything
// except registration, login and the websocket upgrade sits behind the JWT
// guard; the websocket authenticates via query token inside its own handler.
func RegisterRoutes(r *gin.Engine, prefix string, h Handlers) {
	r.GET("/metrics", gin.WrapH(h.Metrics.Handler()))
	r.GET("/ws", h.Realtime.Connect)

	api := r.Group(prefix)

	auth := api.Group("/auth")
	{
		auth.POST("/register", h.Auth.Register)
		auth.POST("/login", h.Auth.Login)
	}

	secured := api.Group("")
	secured.Use(middleware.JWT(h.AuthService))
	{
		secured.GET("/profile", h.User.Get)
		secured.PUT("/profile", h.User.Update)
		secured.PUT("/profile/location", h.User.UpdateLocation)

		secured.GET("/requests", h.Request.List)
		secured.POST("/requests", h.Request.Create)
		secured.GET("/requests/eligible", h.Request.Eligible)
		secured.GET("/requests/:id", h.Request.Get)
		secured.POST("/requests/:id/cancel", h.Request.Cancel)
		secured.DELETE("/requests/:id", h.Request.Delete)
		secured.GET("/requests/:id/donations", h.Request.ListDonations)

		secured.POST("/donations", h.Donation.Offer)
		secured.GET("/donations", h.Donation.ListMine)
		secured.GET("/donations/export", h.Donation.Export)
		secured.POST("/donations/:id/complete", h.Donation.Complete)
		secured.POST("/donations/:id/reject", h.Donation.Reject)
		secured.POST("/donations/:id/withdraw", h.Donation.Withdraw)

		secured.GET("/notifications", h.Notification.List)
		secured.POST("/notifications/:id/read", h.Notification.MarkRead)
	}
}
