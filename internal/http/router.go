package http

import (
	"context"
	"log/slog"
	"time"

	"github.com/geocoder89/resumeforge/internal/auth"
	"github.com/geocoder89/resumeforge/internal/billing"
	"github.com/geocoder89/resumeforge/internal/domain/user"
	"github.com/geocoder89/resumeforge/internal/http/handlers"
	"github.com/geocoder89/resumeforge/internal/http/middlewares"
	"github.com/geocoder89/resumeforge/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const (
	defaultMaxBodyBytes = 1 << 20
	webhookMaxBodyBytes = 512 << 10
)

// Deps is everything the API router needs. A nil Ping reports always ready and
// a nil RateLimitStore falls back to an in-process window. Generate limits
// apply per user across generate-summary and generate-pdf.
type Deps struct {
	Log  *slog.Logger
	Prom *observability.Prom
	Env  string

	Auth      *auth.Service
	JWT       *auth.Manager
	Users     UserStore
	Resumes   handlers.ResumeStore
	Summarize handlers.Summarizer
	Renderer  handlers.PDFRenderer

	Checkout handlers.CheckoutCreator
	Prices   billing.PriceTable
	Verifier handlers.EventVerifier
	Billing  handlers.BillingEventHandler

	RateLimitStore middlewares.WindowStore
	AuthRateLimit  int
	AuthRateWindow time.Duration

	GenerateRateLimit  int
	GenerateRateWindow time.Duration

	CORSOrigins  []string
	SecureCookie bool
	Ping         func(ctx context.Context) error
}

type UserStore interface {
	handlers.UserDirectory
	SetStripeCustomerID(ctx context.Context, userID, customerID string) error
}

func NewRouter(d Deps) *gin.Engine {
	if d.Env != "dev" && d.Env != "test" {
		gin.SetMode(gin.ReleaseMode)
	}
	if d.Log == nil {
		d.Log = slog.Default()
	}
	if d.RateLimitStore == nil {
		d.RateLimitStore = middlewares.NewMemoryWindowStore()
	}
	if d.AuthRateLimit <= 0 {
		d.AuthRateLimit = 20
	}
	if d.AuthRateWindow <= 0 {
		d.AuthRateWindow = time.Minute
	}
	if d.GenerateRateLimit <= 0 {
		d.GenerateRateLimit = 10
	}
	if d.GenerateRateWindow <= 0 {
		d.GenerateRateWindow = time.Minute
	}

	r := gin.New()

	// middleware
	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	r.Use(otelgin.Middleware("resumeforge-api"))
	if d.Prom != nil {
		r.Use(d.Prom.GinHandleMiddleware())
	}
	r.Use(middlewares.RequestLogger(d.Log))
	r.Use(middlewares.SecurityHeaders(d.Env == "prod"))
	r.Use(middlewares.CORSMiddleware(d.CORSOrigins))

	// health and docs
	health := handlers.NewHealthHandler(d.Ping)
	r.GET("/healthz", health.Healthz)
	r.GET("/readyz", health.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/docs", handlers.SwaggerUI)
	r.GET("/docs/openapi.yaml", handlers.OpenAPISpec)

	api := r.Group("/api")

	// webhook verifies the raw body, so it skips the JSON gate
	webhook := handlers.NewWebhookHandler(d.Verifier, d.Billing, promOrNil(d.Prom), d.Log)
	api.POST("/webhook/stripe-webhook", middlewares.MaxBodyBytes(webhookMaxBodyBytes), webhook.Stripe)

	jsonAPI := api.Group("")
	jsonAPI.Use(middlewares.MaxBodyBytes(defaultMaxBodyBytes), middlewares.RequireJSON())

	authLimiter := middlewares.NewRateLimiter(d.RateLimitStore, "auth:", d.AuthRateLimit, d.AuthRateWindow, d.Log)
	authHandler := handlers.NewAuthHandler(d.Auth, handlers.CookieConfig{Secure: d.SecureCookie})

	authGroup := jsonAPI.Group("/auth")
	authGroup.Use(authLimiter.RateLimiterMiddleware(middlewares.KeyByIP))
	authGroup.POST("/signup", authHandler.SignUp)
	authGroup.POST("/signin", authHandler.Login)
	authGroup.POST("/login", authHandler.Login)
	authGroup.POST("/refresh", authHandler.Refresh)
	authGroup.POST("/logout", authHandler.Logout)

	authMW := middlewares.NewAuthMiddleware(d.JWT)
	protected := jsonAPI.Group("")
	protected.Use(authMW.RequireAuth())

	usersHandler := handlers.NewUsersHandler(d.Users)
	protected.GET("/users/details", usersHandler.Details)

	admin := protected.Group("/users")
	admin.Use(authMW.RequireRole(user.RoleAdmin))
	admin.GET("", usersHandler.List)
	admin.GET("/:id", usersHandler.GetByID)

	resumes := handlers.NewResumesHandler(d.Resumes, d.Summarize, d.Renderer)
	protected.GET("/resumes", resumes.List)
	protected.POST("/resumes", resumes.Create)

	// outbound completion and rendering calls are limited per user
	generateLimiter := middlewares.NewRateLimiter(d.RateLimitStore, "generate:", d.GenerateRateLimit, d.GenerateRateWindow, d.Log)
	generate := protected.Group("/resumes")
	generate.Use(generateLimiter.RateLimiterMiddleware(middlewares.KeyByUserOrIP))
	generate.POST("/generate-summary", resumes.GenerateSummary)
	generate.POST("/generate-pdf", resumes.GeneratePDF)

	protected.GET("/resumes/:id", resumes.Get)
	protected.PUT("/resumes/:id", resumes.Update)
	protected.DELETE("/resumes/:id", resumes.Delete)

	payment := handlers.NewPaymentHandler(d.Checkout, d.Users, d.Prices, d.Log)
	protected.POST("/payment/create-checkout-session", payment.CreateCheckoutSession)

	return r
}

func promOrNil(p *observability.Prom) handlers.WebhookObserver {
	if p == nil {
		return nil
	}
	return p
}
