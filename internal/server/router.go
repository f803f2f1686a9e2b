package server

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/victorcuaresmadev/MicroTrust-sub000/internal/auth"
	"github.com/victorcuaresmadev/MicroTrust-sub000/internal/config"
	"github.com/victorcuaresmadev/MicroTrust-sub000/internal/http/handlers"
	"github.com/victorcuaresmadev/MicroTrust-sub000/internal/http/middleware"
	"github.com/victorcuaresmadev/MicroTrust-sub000/internal/version"
	"github.com/victorcuaresmadev/MicroTrust-sub000/internal/ws"
)

const maxRequestBodyBytes = 1 << 20

type Dependencies struct {
	HealthHandler *handlers.HealthHandler
	AuthHandler   *handlers.AuthHandler
	LoanHandler   *handlers.LoanHandler
	WSHandler     *ws.Handler
	JWTManager    *auth.JWTManager
}

func NewRouter(cfg config.Config, logger *slog.Logger, deps Dependencies) *gin.Engine {
	if cfg.Env == "prod" || cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestBodyLimit(maxRequestBodyBytes))
	r.Use(func(c *gin.Context) {
		logger.Info("request", "method", c.Request.Method, "path", c.Request.URL.Path)
		c.Next()
	})

	meta := handlers.NewMetaHandler(cfg.Env, version.Version)
	rateHandler := handlers.NewRateHandler()

	r.GET("/health", deps.HealthHandler.Health)
	r.GET("/ready", deps.HealthHandler.Ready)
	r.GET("/v1/meta", meta.GetMeta)
	r.GET("/v1/rates/quote", rateHandler.Quote)

	if deps.AuthHandler != nil {
		r.POST("/v1/auth/session", deps.AuthHandler.CreateSession)
	}

	if deps.LoanHandler != nil && deps.JWTManager != nil {
		loans := r.Group("/v1")
		loans.Use(middleware.RequireWallet(deps.JWTManager))
		loans.POST("/loans", deps.LoanHandler.CreateLoan)
		loans.GET("/loans", deps.LoanHandler.ListLoans)
		loans.GET("/loans/:loanId", deps.LoanHandler.GetLoan)
		loans.GET("/loans/borrower/:address", deps.LoanHandler.ListByBorrower)
		loans.POST("/loans/:loanId/approve", deps.LoanHandler.ApproveLoan)
		loans.POST("/loans/:loanId/reject", deps.LoanHandler.RejectLoan)
		loans.POST("/loans/:loanId/repay", deps.LoanHandler.RepayLoan)
		loans.GET("/settlement/readiness", deps.LoanHandler.SettlementReadiness)

		admin := r.Group("/admin")
		admin.Use(middleware.RequireWallet(deps.JWTManager))
		admin.POST("/verification", deps.LoanHandler.VerifyBusiness)
		admin.DELETE("/loans", deps.LoanHandler.ClearLoans)
	}

	if deps.WSHandler != nil {
		r.GET("/ws", deps.WSHandler.HandleWebSocket)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	})

	return r
}
