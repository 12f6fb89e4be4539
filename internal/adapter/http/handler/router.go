package handler

import (
	"time"

	"wallet-settlement-core/internal/adapter/http/middleware"
	"wallet-settlement-core/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	AuthSvc        ports.AuthService
	LedgerSvc      ports.LedgerService
	SubmissionSvc  ports.SubmissionService
	Gate           ports.AccountGate
	TokenSvc       ports.TokenService
	SigSvc         ports.SignatureService
	NonceStore     ports.NonceStore
	MonitorSecret  string
	MonitorTTL     time.Duration
	HealthCheckers []ports.HealthChecker
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Health check (deep — verifies PostgreSQL + Redis)
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	// API v1 routes
	v1 := r.Group("/api/v1")

	// --- Public routes (no auth) ---
	authHandler := NewAuthHandler(deps.AuthSvc)
	auth := v1.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
	}

	// --- JWT-authenticated routes (account holders) ---
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	walletHandler := NewWalletHandler(deps.LedgerSvc, deps.Gate)
	submissionHandler := NewSubmissionHandler(deps.SubmissionSvc)

	wallet := v1.Group("/wallet", jwtAuth)
	{
		wallet.GET("/balance", walletHandler.GetBalance)
		wallet.GET("/transactions", walletHandler.ListTransactions)
		wallet.GET("/gate/:action", walletHandler.GateCheck)
		wallet.POST("/withdrawals", walletHandler.Withdraw)
		wallet.POST("/purchases", walletHandler.Purchase)
	}

	submissions := v1.Group("/submissions", jwtAuth)
	{
		submissions.POST("", submissionHandler.Submit)
		submissions.GET("", submissionHandler.List)
		submissions.POST("/kyc/resubmit", submissionHandler.Resubmit)
	}

	// --- Adjudication routes (JWT identifies, gate authorizes) ---
	adminHandler := NewAdminHandler(deps.SubmissionSvc, deps.LedgerSvc, deps.Gate)
	admin := v1.Group("/admin", jwtAuth)
	{
		admin.GET("/submissions", adminHandler.ListPending)
		admin.POST("/submissions/:id/approve", adminHandler.Approve)
		admin.POST("/submissions/:id/reject", adminHandler.Reject)
		admin.GET("/reconcile/:account_id", adminHandler.Reconcile)
	}

	// --- HMAC-authenticated routes (deposit monitor webhook) ---
	monitorAuth := middleware.MonitorAuth(deps.MonitorSecret, deps.SigSvc, deps.NonceStore, deps.MonitorTTL, deps.Logger)
	monitorHandler := NewMonitorHandler(deps.LedgerSvc)
	monitor := v1.Group("/monitor", monitorAuth)
	{
		monitor.POST("/deposits", monitorHandler.RecordDeposit)
	}

	return r
}
