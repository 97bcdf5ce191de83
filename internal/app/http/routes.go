package routes

import (
	"net/http"

	adminapi "travel-marketplace/internal/api/admin"
	authapi "travel-marketplace/internal/api/auth"
	creditsapi "travel-marketplace/internal/api/credits"
	ordersapi "travel-marketplace/internal/api/orders"
	packagesapi "travel-marketplace/internal/api/packages"
	purchasesapi "travel-marketplace/internal/api/purchases"
	stripewebhooks "travel-marketplace/internal/api/stripewebhook"
	usersapi "travel-marketplace/internal/api/users"
	"travel-marketplace/internal/app/http/middleware"
	"travel-marketplace/internal/auth/tokens"
	"travel-marketplace/internal/domain/access"
	"travel-marketplace/internal/domain/users"
	"travel-marketplace/internal/ledger"
	"travel-marketplace/internal/reconcile"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type Deps struct {
	DB            *gorm.DB
	Tokens        *tokens.Issuer
	Ledger        *ledger.Ledger
	Reconciler    *reconcile.Reconciler
	Gate          middleware.Authorizer
	WebhookSecret string
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	authH := authapi.NewHandler(d.DB, d.Tokens)
	creditsH := creditsapi.NewHandler(d.Ledger)
	purchasesH := purchasesapi.NewHandler(d.DB, d.Reconciler, d.Tokens)
	ordersH := ordersapi.NewHandler(d.Reconciler)
	webhookH := stripewebhooks.NewHandler(d.Reconciler, d.WebhookSecret)
	adminH := adminapi.NewHandler(d.Reconciler)

	// Signature verification needs the raw body, so no sanitizer here.
	r.POST("/webhook/stripe", webhookH.StripeWebhook)
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	public := r.Group("/")
	public.Use(middleware.SanitizeAndCleanInputMiddleware())

	public.POST("/register", authH.Register)
	public.POST("/login", authH.Login)
	public.POST("/token/refresh", authH.Refresh)
	public.GET("/auth/google", authH.GoogleStart)
	public.GET("/auth/google/callback", authH.GoogleCallback)
	public.GET("/credit-packages", packagesapi.ListPackages(d.DB))

	// The provider redirects here without a bearer token.
	public.GET("/purchases/return", purchasesH.Return)

	// Authenticated
	auth := r.Group("/")
	auth.Use(middleware.AuthMiddleware(d.Tokens), middleware.SanitizeAndCleanInputMiddleware())
	auth.GET("/me", usersapi.GetCurrentUser(d.DB, d.Ledger))
	auth.GET("/credits/balance", creditsH.Balance)
	auth.GET("/credits/transactions", creditsH.Transactions)
	auth.POST("/credits/consume", middleware.RequireAction(d.Gate, access.ActionConsumeCredits), creditsH.Consume)
	auth.POST("/purchases", purchasesH.Create)
	auth.GET("/orders", ordersH.List)
	auth.GET("/orders/:id", ordersH.Get)

	// Admin routes
	admin := r.Group("/admin")
	admin.Use(middleware.AuthMiddleware(d.Tokens), middleware.RequireRole(users.RoleAdmin))
	admin.POST("/orders/:id/reconcile", adminH.ReconcileOrder)
	admin.POST("/sweep", adminH.Sweep)
}
