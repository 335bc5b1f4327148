package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
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
)

const (
	minGuarantees = 10
	maxGuarantees = 60
	numWorkers    = 4
	serverAddress = "http://localhost:8080"

	buyerAPIKey     = "sim-buyer-key"
	buyerAPISecret  = "sim-buyer-secret"
	sellerAPIKey    = "sim-seller-key"
	sellerAPISecret = "sim-seller-secret"

	depositAmount = "100000.00"
)

// init configures the logger for the simulation with pretty printing and timestamp
func init() {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// routeStats tracks performance statistics for an API endpoint
type routeStats struct {
	name       string
	durations  []time.Duration
	totalCalls int
	failures   int
}

// addDuration records a new duration measurement for the route
func (rs *routeStats) addDuration(d time.Duration) {
	rs.durations = append(rs.durations, d)
	rs.totalCalls++
}

// calculate computes performance statistics from recorded durations
func (rs *routeStats) calculate() (min, max, mean, median, p95 time.Duration) {
	if len(rs.durations) == 0 {
		return 0, 0, 0, 0, 0
	}

	sort.Slice(rs.durations, func(i, j int) bool {
		return rs.durations[i] < rs.durations[j]
	})

	min = rs.durations[0]
	max = rs.durations[len(rs.durations)-1]

	var sum time.Duration
	for _, d := range rs.durations {
		sum += d
	}
	mean = sum / time.Duration(len(rs.durations))
	median = rs.durations[len(rs.durations)/2]

	p95idx := int(math.Ceil(float64(len(rs.durations))*0.95)) - 1
	p95 = rs.durations[p95idx]

	return
}

// simulationClient handles HTTP communication with the ledger API on
// behalf of one organization.
type simulationClient struct {
	baseURL   string
	authToken string
	client    *http.Client
	stats     map[string]*routeStats
}

// newSimulationClient authenticates with the API and prepares
// performance tracking.
func newSimulationClient(apiKey, apiSecret string, stats map[string]*routeStats) (*simulationClient, error) {
	sc := &simulationClient{
		baseURL: serverAddress,
		client:  &http.Client{Timeout: 10 * time.Second},
		stats:   stats,
	}

	token, err := sc.authenticate(apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}
	sc.authToken = token

	return sc, nil
}

// authenticate performs API authentication and returns a JWT token
func (sc *simulationClient) authenticate(apiKey, apiSecret string) (string, error) {
	start := time.Now()
	defer func() {
		sc.stats["auth"].addDuration(time.Since(start))
	}()

	credentials := map[string]string{
		"api_key":    apiKey,
		"api_secret": apiSecret,
	}

	body, err := json.Marshal(credentials)
	if err != nil {
		return "", err
	}

	resp, err := sc.client.Post(
		fmt.Sprintf("%s/api/v1/auth/token", sc.baseURL),
		"application/json",
		bytes.NewBuffer(body),
	)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("authentication failed with status: %d", resp.StatusCode)
	}

	var result struct {
		Token string `json:"jwt_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}

	return result.Token, nil
}

// call issues an authenticated JSON request and decodes the envelope's
// data field into out.
func (sc *simulationClient) call(statKey, method, path string, payload, out interface{}) error {
	start := time.Now()
	defer func() {
		sc.stats[statKey].addDuration(time.Since(start))
	}()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewBuffer(raw)
	}

	req, err := http.NewRequest(method, sc.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", sc.authToken))
	req.Header.Set("Content-Type", "application/json")

	resp, err := sc.client.Do(req)
	if err != nil {
		sc.stats[statKey].failures++
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	log.Debug().Str("path", path).Str("response", string(respBody)).Msg("API response")

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		sc.stats[statKey].failures++
		return fmt.Errorf("%s %s failed with status %d: %s", method, path, resp.StatusCode, string(respBody))
	}

	if out == nil {
		return nil
	}
	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(respBody, &envelope); err != nil {
		return fmt.Errorf("failed to decode response: %w, body: %s", err, string(respBody))
	}
	return json.Unmarshal(envelope.Data, out)
}

type guaranteeResult struct {
	GuaranteeID string `json:"guarantee_id"`
	Amount      string `json:"amount"`
}

type settlementResult struct {
	SettlementID string `json:"settlement_id"`
}

type balanceResult struct {
	Currency  string `json:"currency"`
	Total     string `json:"total"`
	Reserved  string `json:"reserved"`
	Claimable string `json:"claimable"`
	Available string `json:"available"`
}

type quoteResult struct {
	QuoteID      string `json:"quote_id"`
	SourceAmount string `json:"source_amount"`
	TargetAmount string `json:"target_amount"`
	Rate         string `json:"rate"`
}

type swapResult struct {
	SourceSettlements []string `json:"source_settlements"`
	TargetSettlements []string `json:"target_settlements"`
}

type cardResult struct {
	GuaranteeID string `json:"guarantee_id"`
	Brand       string `json:"brand"`
}

// printPerformanceStats outputs formatted performance statistics for all API endpoints
func printPerformanceStats(stats map[string]*routeStats) {
	fmt.Println("\nAPI Performance Statistics")
	fmt.Println(strings.Repeat("-", 90))
	fmt.Printf("%-20s %8s %8s %10s %10s %10s %10s %10s\n",
		"Endpoint", "Calls", "Errors", "Min", "Max", "Mean", "Median", "P95")
	fmt.Println(strings.Repeat("-", 90))

	for _, rs := range stats {
		min, max, mean, median, p95 := rs.calculate()
		fmt.Printf("%-20s %8d %8d %10s %10s %10s %10s %10s\n",
			rs.name,
			rs.totalCalls,
			rs.failures,
			min.Round(time.Millisecond),
			max.Round(time.Millisecond),
			mean.Round(time.Millisecond),
			median.Round(time.Millisecond),
			p95.Round(time.Millisecond))
	}
	fmt.Println(strings.Repeat("-", 90))
}

// main runs the ledger simulation. It starts a local API server, funds a
// buyer organization, runs concurrent guarantee issuance workers, claims
// every guarantee as the seller, and finishes with a currency swap.
func main() {
	go func() {
		if err := startServer(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for server to start
	time.Sleep(2 * time.Second)

	stats := map[string]*routeStats{
		"auth":      {name: "Authentication"},
		"deposit":   {name: "Deposit"},
		"guarantee": {name: "Create Guarantee"},
		"claim":     {name: "Claim Guarantee"},
		"balances":  {name: "Get Balances"},
		"quote":     {name: "Create Quote"},
		"swap":      {name: "Swap"},
		"card":      {name: "Cards"},
	}

	buyer, err := newSimulationClient(buyerAPIKey, buyerAPISecret, stats)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize buyer client")
	}
	seller, err := newSimulationClient(sellerAPIKey, sellerAPISecret, stats)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize seller client")
	}

	// Fund the buyer
	if err := buyer.call("deposit", "POST", "/api/v1/balances/deposits", map[string]string{
		"currency": "EUR",
		"amount":   depositAmount,
	}, nil); err != nil {
		log.Fatal().Err(err).Msg("Failed to fund buyer")
	}
	log.Info().Str("amount", depositAmount).Str("currency", "EUR").Msg("Buyer funded")

	targetGuarantees := rand.Intn(maxGuarantees-minGuarantees) + minGuarantees
	log.Info().Int("target_guarantees", targetGuarantees).Msg("Starting simulation")

	guaranteesChan := make(chan string, targetGuarantees)
	var wg sync.WaitGroup

	startTime := time.Now()
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			createGuaranteesHTTP(workerID, targetGuarantees/numWorkers, buyer, guaranteesChan)
		}(i)
	}

	wg.Wait()
	close(guaranteesChan)

	var guaranteeIDs []string
	for id := range guaranteesChan {
		guaranteeIDs = append(guaranteeIDs, id)
	}
	log.Info().Int("guarantees_created", len(guaranteeIDs)).Msg("All guarantees created")

	// Claim every guarantee as the seller
	claimed := 0
	failedClaims := 0
	for _, id := range guaranteeIDs {
		var result settlementResult
		if err := seller.call("claim", "POST", "/api/v1/guarantees/"+id+"/claim", nil, &result); err != nil {
			log.Error().Err(err).Str("guarantee_id", id).Msg("Failed to claim guarantee")
			failedClaims++
			continue
		}
		claimed++
		log.Info().
			Str("guarantee_id", id).
			Str("settlement_id", result.SettlementID).
			Msg("Guarantee claimed")
	}

	// Convert part of the seller's earnings to USD
	var priced quoteResult
	if err := seller.call("quote", "POST", "/api/v1/quotes", map[string]string{
		"source_currency": "EUR",
		"target_currency": "USD",
		"source_amount":   "50.00",
	}, &priced); err != nil {
		log.Error().Err(err).Msg("Failed to create quote")
	} else {
		log.Info().
			Str("quote_id", priced.QuoteID).
			Str("rate", priced.Rate).
			Str("target_amount", priced.TargetAmount).
			Msg("Quote priced")

		var swapped swapResult
		if err := seller.call("swap", "POST", "/api/v1/balances/swap", map[string][]string{
			"quotes": {priced.QuoteID},
		}, &swapped); err != nil {
			log.Error().Err(err).Msg("Failed to swap")
		} else {
			log.Info().
				Int("source_settlements", len(swapped.SourceSettlements)).
				Int("target_settlements", len(swapped.TargetSettlements)).
				Msg("Swap executed")
		}
	}

	// Issue and immediately cancel a virtual card from the seller's
	// earnings.
	var card cardResult
	if err := seller.call("card", "POST", "/api/v1/cards", map[string]string{
		"currency":   "EUR",
		"amount":     "25.00",
		"expiration": time.Now().Add(30 * 24 * time.Hour).Format(time.RFC3339),
	}, &card); err != nil {
		log.Error().Err(err).Msg("Failed to issue card")
	} else {
		log.Info().
			Str("guarantee_id", card.GuaranteeID).
			Str("brand", card.Brand).
			Msg("Virtual card issued")

		if err := seller.call("card", "DELETE", "/api/v1/cards/"+card.GuaranteeID, nil, nil); err != nil {
			log.Error().Err(err).Msg("Failed to cancel card")
		} else {
			log.Info().Str("guarantee_id", card.GuaranteeID).Msg("Virtual card canceled")
		}
	}

	duration := time.Since(startTime)

	// Print summary
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("LEDGER SIMULATION SUMMARY")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf(`
Guarantee Statistics
--------------------
Created:       %d
Claimed:       %d
Failed Claims: %d
Duration:      %v
`, len(guaranteeIDs), claimed, failedClaims, duration.Round(time.Millisecond))

	printBalances("Buyer", buyer)
	printBalances("Seller", seller)

	successRate := 0.0
	if len(guaranteeIDs) > 0 {
		successRate = float64(claimed) / float64(len(guaranteeIDs)) * 100
	}
	log.Info().
		Float64("success_rate", successRate).
		Int("guarantees", len(guaranteeIDs)).
		Int("claimed", claimed).
		Dur("duration", duration).
		Msg("Simulation completed")

	printPerformanceStats(stats)
}

// printBalances fetches and prints every balance the organization holds.
func printBalances(label string, client *simulationClient) {
	var balances []balanceResult
	if err := client.call("balances", "GET", "/api/v1/balances", nil, &balances); err != nil {
		log.Error().Err(err).Str("org", label).Msg("Failed to fetch balances")
		return
	}

	fmt.Printf("\n%s Balances\n", label)
	fmt.Println(strings.Repeat("-", 60))
	for _, b := range balances {
		fmt.Printf("%-4s total=%-12s reserved=%-12s available=%s\n",
			b.Currency, b.Total, b.Reserved, b.Available)
	}
}

// createGuaranteesHTTP generates and submits random guarantees to the
// API. Runs as a worker goroutine, sending created guarantee IDs to
// guaranteesChan.
func createGuaranteesHTTP(workerID, numGuarantees int, buyer *simulationClient, guaranteesChan chan<- string) {
	sellerOrg := "0x" + strings.Repeat("b", 64)

	for i := 0; i < numGuarantees; i++ {
		amount := fmt.Sprintf("%d.%02d", rand.Intn(200)+1, rand.Intn(100))
		expiration := time.Now().Add(time.Duration(rand.Intn(48)+1) * time.Hour)

		var result guaranteeResult
		err := buyer.call("guarantee", "POST", "/api/v1/guarantees", map[string]string{
			"beneficiary": sellerOrg,
			"currency":    "EUR",
			"amount":      amount,
			"expiration":  expiration.Format(time.RFC3339),
		}, &result)
		if err != nil {
			log.Error().Err(err).
				Int("worker_id", workerID).
				Str("amount", amount).
				Msg("Failed to create guarantee")
			continue
		}

		guaranteesChan <- result.GuaranteeID
		log.Info().
			Int("worker_id", workerID).
			Str("guarantee_id", result.GuaranteeID).
			Str("amount", result.Amount).
			Msg("Guarantee created")

		// Random sleep between guarantees
		time.Sleep(time.Duration(rand.Intn(200)) * time.Millisecond)
	}
}

// startServer initializes and starts the ledger API server with
// simulated providers and an in-memory database.
func startServer() error {
	cfg := config.Default()
	cfg.Database.Path = "file:simulation?mode=memory&cache=shared"

	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	buyerOrg := "0x" + strings.Repeat("a", 64)
	sellerOrg := "0x" + strings.Repeat("b", 64)
	cfg.Platform.CardAllowList = []string{buyerOrg, sellerOrg}

	authService := auth.NewService(cfg.Server.JWTSecret)
	authService.RegisterAPICredentials(buyerAPIKey, buyerAPISecret, buyerOrg, "buyer-agent-key")
	authService.RegisterAPICredentials(sellerAPIKey, sellerAPISecret, sellerOrg, "seller-agent-key")

	pricing := fx.NewSimulated(nil)
	pricing.SetRate("EUR", "USD", decimal.RequireFromString("0.92"))

	balanceService := balance.NewService(db)
	guaranteeService := guarantee.NewService(db, balanceService)
	settlementService := settlement.NewService(db, transfer.NewSimulated())
	quoteService := quote.NewService(db, pricing)

	orchestrator := ledger.NewOrchestrator(
		balanceService,
		guaranteeService,
		settlementService,
		quoteService,
		issuing.NewSimulated(cfg.Issuing.CardDetails),
		cfg,
	)

	router := gin.Default()
	authHandlers := auth.NewGinHandlers(authService)
	ledgerHandlers := ledger.NewGinHandlers(orchestrator)

	setupRoutes(router, authService, authHandlers, ledgerHandlers)

	return router.Run(":8080")
}

// setupRoutes configures all API endpoints and their handlers
func setupRoutes(
	router *gin.Engine,
	authService *auth.Service,
	authHandlers *auth.GinHandlers,
	ledgerHandlers *ledger.GinHandlers,
) {
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
			balances.POST("/swap", ledgerHandlers.SwapHandler())
		}

		// Guarantee routes
		guarantees := v1.Group("/guarantees")
		guarantees.Use(middleware.JWTAuth(authService))
		{
			guarantees.POST("", ledgerHandlers.CreateGuaranteeHandler())
			guarantees.GET("/:guarantee_id", ledgerHandlers.GetGuaranteeHandler())
			guarantees.POST("/:guarantee_id/claim", ledgerHandlers.ClaimGuaranteeHandler())
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
