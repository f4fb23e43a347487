// Package server builds the HTTP router and its middleware chain.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"crm-auth-service/internal/auth/handler"
)

// NewRouter returns the gin engine with the auth routes mounted. devRoutes
// additionally mounts GET /dev/otp for local testing; never enable it in
// production.
func NewRouter(h *handler.HTTPHandler, tracer trace.Tracer, meter metric.Meter, devRoutes bool) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), ClientIPMiddleware(), Tracing(tracer), Metrics(meter))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	a := r.Group("/auth")
	a.POST("/login", h.Login)
	a.POST("/verify-otp", h.VerifyOTP)
	a.POST("/resend-otp", h.ResendOTP)
	a.POST("/logout", h.Logout)
	a.GET("/me", h.Me)

	if devRoutes {
		r.GET("/dev/otp", h.DevOTP)
	}
	return r
}
