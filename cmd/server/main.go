package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/windingtree/simard/internal/auth"
	"github.com/windingtree/simard/internal/balance"
	"github.com/windingtree/simard/internal/config"
	"github.com/windingtree/simard/internal/database"
	"github.com/windingtree/simard/internal/fx"
	"github.com/windingtree/simard/internal/guarantee"
	"github.com/windingtree/simard/internal/issuing"
	"github.com/windingtree/simard/internal/ledger"
	"github.com/windingtree/simard/internal/quote"
	"github.com/windingtree/simard/internal/settlement"
	"github.com/windingtree/simard/internal/transfer"
	"github.com/windingtree/simard/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// Development credentials seeded in non-production environments. The two
// organizations act as a typical buyer and supplier pair.
const (
	testBuyerAPIKey     = "buyer-api-key"
	testBuyerAPISecret  = "buyer-api-secret"
	testSellerAPIKey    = "seller-api-key"
	testSellerAPISecret = "seller-api-secret"
)

// init configures the application logging based on environment settings
// In development mode, it enables pretty printing with timestamps
// Debug logging can be enabled via DEBUG environment variable
func init() {
	// Configure pretty logging for development
	if os.Getenv("ENV") != "production" {
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		zlog.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	// Set global log level
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

// main initializes and runs the ledger API server with graceful shutdown
// support. It sets up all required services, database connections, and
// API routes.
func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize database
	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize database")
	}

	// Initialize router
	router := gin.Default()

	// Initialize services and handlers
	authService := auth.NewService(cfg.Server.JWTSecret)
	authHandlers := auth.NewGinHandlers(authService)
	if os.Getenv("ENV") != "production" {
		seedDevCredentials(authService, cfg)
	}

	balanceService := balance.NewService(db)
	guaranteeService := guarantee.NewService(db, balanceService)
	settlementService := settlement.NewService(db, transferVerifier())
	quoteService := quote.NewService(db, fxProvider(cfg))

	orchestrator := ledger.NewOrchestrator(
		balanceService,
		guaranteeService,
		settlementService,
		quoteService,
		cardIssuer(cfg),
		cfg,
	)
	ledgerHandlers := ledger.NewGinHandlers(orchestrator)

	// Create and start expiry monitor
	expiryMonitor := guarantee.NewMonitor(guaranteeService.DB())
	monitorCtx, monitorCancel := context.WithCancel(context.Background())
	defer monitorCancel()

	go expiryMonitor.Start(monitorCtx)

	// Setup middleware
	router.Use(middleware.RateLimit())

	// Setup API routes
	setupRoutes(router, authService, authHandlers, ledgerHandlers)

	// Create server
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	// Graceful shutdown setup
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("listen")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info().Msg("Shutting down server...")

	// Give outstanding operations 5 seconds to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	zlog.Info().Msg("Server exiting")
}

// fxProvider selects the configured pricing backend. The simulated
// provider is seeded with a pair of fixed development rates.
func fxProvider(cfg *config.Config) fx.Provider {
	if cfg.FX.Simulated {
		simulated := fx.NewSimulated(nil)
		simulated.SetRate("EUR", "USD", decimal.RequireFromString("0.92"))
		simulated.SetRate("USD", "EUR", decimal.RequireFromString("1.09"))
		return simulated
	}
	return fx.NewClient(cfg.FX.Endpoint, cfg.FX.Token, cfg.FX.ProfileID, cfg.FXTimeout())
}

// cardIssuer selects the configured card issuing backend.
func cardIssuer(cfg *config.Config) issuing.Provider {
	return issuing.NewSimulated(cfg.Issuing.CardDetails)
}

// transferVerifier returns the external transfer verification backend.
func transferVerifier() *transfer.Simulated {
	return transfer.NewSimulated()
}

// seedDevCredentials registers two development organizations so local
// runs can exercise the full guarantee flow out of the box.
func seedDevCredentials(authService *auth.Service, cfg *config.Config) {
	buyerOrg := "0x" + strings.Repeat("a", 64)
	sellerOrg := "0x" + strings.Repeat("b", 64)

	authService.RegisterAPICredentials(testBuyerAPIKey, testBuyerAPISecret, buyerOrg, "buyer-agent-key")
	authService.RegisterAPICredentials(testSellerAPIKey, testSellerAPISecret, sellerOrg, "seller-agent-key")

	if len(cfg.Platform.CardAllowList) == 0 {
		cfg.Platform.CardAllowList = []string{sellerOrg}
	}
}

// setupRoutes configures all API endpoints and their handlers.
// It groups routes by functionality and applies appropriate middleware:
// - Auth routes: Public endpoints for authentication
// - Balance, guarantee, quote and card routes: Protected by JWT authentication
// - Metrics: Prometheus scrape endpoint
func setupRoutes(
	router *gin.Engine,
	authService *auth.Service,
	authHandlers *auth.GinHandlers,
	ledgerHandlers *ledger.GinHandlers,
) {
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		// Auth routes
		authRoutes := v1.Group("/auth")
		{
			authRoutes.POST("/token", authHandlers.GenerateTokenHandler())
		}

		// Balance routes
		balances := v1.Group("/balances")
		balances.Use(middleware.JWTAuth(authService))
		{
			balances.GET("", ledgerHandlers.GetBalancesHandler())
			balances.GET("/:currency", ledgerHandlers.GetBalanceHandler())
			balances.POST("/deposits", ledgerHandlers.SimulateDepositHandler())
			balances.POST("/deposits/transfer", ledgerHandlers.TransferDepositHandler())
			balances.POST("/withdrawals", ledgerHandlers.WithdrawHandler())
			balances.POST("/swap", ledgerHandlers.SwapHandler())
		}

		// Guarantee routes
		guarantees := v1.Group("/guarantees")
		guarantees.Use(middleware.JWTAuth(authService))
		{
			guarantees.POST("", ledgerHandlers.CreateGuaranteeHandler())
			guarantees.GET("/:guarantee_id", ledgerHandlers.GetGuaranteeHandler())
			guarantees.POST("/:guarantee_id/claim", ledgerHandlers.ClaimGuaranteeHandler())
			guarantees.POST("/:guarantee_id/claimWithCard", ledgerHandlers.ClaimWithCardHandler())
			guarantees.DELETE("/:guarantee_id", ledgerHandlers.CancelGuaranteeHandler())
		}

		// Quote routes
		quotes := v1.Group("/quotes")
		quotes.Use(middleware.JWTAuth(authService))
		{
			quotes.POST("", ledgerHandlers.CreateQuoteHandler())
			quotes.GET("/:quote_id", ledgerHandlers.GetQuoteHandler())
		}

		// Card routes
		cards := v1.Group("/cards")
		cards.Use(middleware.JWTAuth(authService))
		{
			cards.POST("", ledgerHandlers.CreateCardHandler())
			cards.DELETE("/:guarantee_id", ledgerHandlers.CancelCardHandler())
		}
	}
}
