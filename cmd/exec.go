package cmd

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v5"
	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	pubnub "github.com/pubnub/go"
	"github.com/redis/go-redis/v9"

	"redemption-system/config"
	"redemption-system/handlers"
	"redemption-system/internal/clients/market"
	"redemption-system/internal/clock"
	"redemption-system/models"
	"redemption-system/monitoring"
	"redemption-system/security"
	"redemption-system/services"
	"redemption-system/utils"

	_ "redemption-system/migrations"
)

func Start() error {
	app := pocketbase.New()

	// Load configuration
	cfg := config.LoadConfig()

	// Initialize Redis
	redisClient := utils.NewRedisClient(cfg.RedisURL)
	defer redisClient.Close()

	// Initialize PubNub (user refresh channels)
	var pn *pubnub.PubNub
	if cfg.PubNubPublishKey != "" {
		pnConfig := pubnub.NewConfig()
		pnConfig.PublishKey = cfg.PubNubPublishKey
		pnConfig.SubscribeKey = cfg.PubNubSubscribeKey
		pnConfig.SecretKey = cfg.PubNubSecretKey

		pn = pubnub.NewPubNub(pnConfig)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to the market backend
	marketplace, err := market.New(ctx, &market.Config{
		BaseURL:           cfg.MarketBaseURL,
		PartnerID:         cfg.MarketPartnerID,
		ClientID:          cfg.MarketClientID,
		ClientKey:         cfg.MarketClientKey,
		HMACKey:           cfg.MarketHMACKey,
		WebhookSecretHash: cfg.MarketWebhookSecretHash,
		PNSubKey:          cfg.MarketPNSubKey,
		PNSubSecret:       cfg.MarketPNSubSecret,
		PNUUID:            cfg.MarketPNUUID,
		PNChannel:         cfg.MarketPNChannel,
	})
	if err != nil {
		return err
	}

	// Initialize services
	notifier := services.NewNotifier(pn)
	ledger := services.NewTicketLedger(redisClient)
	guard := services.NewInflightGuard(redisClient, cfg.InflightTTL)
	holdingsCache := services.NewHoldingsCache(redisClient)
	monitor := monitoring.NewMonitor(ctx, redisClient)
	systemClock := clock.NewSystem()

	controller := services.NewRedemptionController(
		guard, ledger, marketplace, marketplace, marketplace, notifier, systemClock, monitor,
	)

	// Forward marketplace resolutions as user refresh signals
	go forwardResolutions(ctx, marketplace, notifier, ledger)

	// Initialize handlers
	redemptionHandler := handlers.NewRedemptionHandler(app, controller, marketplace, systemClock)
	holdingsHandler := handlers.NewHoldingsHandler(app, marketplace, ledger, holdingsCache)
	webhookHandler := handlers.NewWebhookHandler(app, notifier, ledger, cfg.MarketHMACKey, cfg.MarketWebhookSecretHash)
	rateLimiter := security.NewRateLimiter(redisClient, cfg.RedemptionRateLimit, cfg.RedemptionRateWindow)

	// Enable migrations
	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: true,
	})

	// Metrics sidecar
	if cfg.EnableMetrics {
		go startMetricsServer(cfg.MetricsPort, redisClient)
	}

	// Setup graceful shutdown
	go handleShutdown(cancel)

	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		syncConsigningHoldings(app, redisClient)

		// Holdings endpoints
		e.Router.GET("/api/v1/holdings", holdingsHandler.ListHoldings)
		e.Router.GET("/api/v1/tickets/balance", holdingsHandler.GetTicketBalance)
		e.Router.GET("/api/v1/holdings/{holdingId}/eligibility", redemptionHandler.GetEligibility)
		e.Router.GET("/api/v1/holdings/{holdingId}/countdown", redemptionHandler.GetCountdown)

		// Redemption endpoints
		e.Router.POST("/api/v1/redemption/deliver", redemptionHandler.RequestDelivery).
			BindFunc(rateLimiter.RedemptionRateLimit())
		e.Router.POST("/api/v1/redemption/consign", redemptionHandler.RequestConsignment).
			BindFunc(rateLimiter.RedemptionRateLimit())

		// Marketplace callback
		e.Router.POST("/api/v1/market/webhook", webhookHandler.MarketResolution)

		// Health check
		e.Router.GET("/health", func(e *core.RequestEvent) error {
			if err := utils.RedisHealthCheck(redisClient); err != nil {
				return e.JSON(503, map[string]string{
					"status": "unhealthy",
					"error":  err.Error(),
				})
			}
			return e.JSON(200, map[string]string{"status": "healthy"})
		})

		log.Println("Server routes registered")

		setupHoldingHooks(app, redisClient)

		return e.Next()
	})

	// Start server
	if err := app.Start(); err != nil {
		log.Fatal(err)
	}
	return nil
}

// forwardResolutions turns marketplace resolution pushes into user
// refresh signals. The holding itself is never mutated here.
func forwardResolutions(ctx context.Context, marketplace *market.Marketplace, notifier *services.Notifier, ledger *services.TicketLedger) {
	ch := make(chan *market.ResolutionEvent, 16)
	marketplace.SetResolutionChannel(ch)

	for {
		select {
		case <-ctx.Done():
			return

		case event := <-ch:
			slog.Info("marketplace resolution received",
				"holding", event.HoldingID,
				"user", event.UserID,
				"status", event.Status,
			)

			if err := ledger.Invalidate(ctx, event.UserID); err != nil {
				slog.Error("ledger invalidate on resolution failed", "user", event.UserID, "error", err)
			}
			notifier.PublishRefresh(event.UserID, event.HoldingID, models.ActionConsign)
		}
	}
}

// syncConsigningHoldings seeds the redis mirror of in-flight listings
// from the local holdings snapshot on startup.
func syncConsigningHoldings(app *pocketbase.PocketBase, redisClient *redis.Client) {
	ctx := context.Background()

	var records []dbx.NullStringMap
	if err := app.DB().NewQuery(
		"SELECT id FROM holdings WHERE consignment_status IN ('pending_review', 'active')",
	).All(&records); err != nil {
		log.Printf("Error fetching consigning holdings: %v", err)
		return
	}

	redisClient.Del(ctx, "consigning_holdings")

	if len(records) > 0 {
		var holdingIDs []interface{}
		for _, record := range records {
			if id := record["id"].String; id != "" {
				holdingIDs = append(holdingIDs, id)
			}
		}

		if len(holdingIDs) > 0 {
			redisClient.SAdd(ctx, "consigning_holdings", holdingIDs...)
			log.Printf("Synced %d consigning holdings to Redis", len(holdingIDs))
		}
	}
}

// setupHoldingHooks keeps the redis mirror of in-flight listings in step
// with snapshot writes to the local holdings collection.
func setupHoldingHooks(app *pocketbase.PocketBase, redisClient *redis.Client) {
	update := func(e *core.RecordRequestEvent) error {
		ctx := e.Request.Context()

		holdingID := e.Record.Id
		consignment := e.Record.GetString("consignment_status")

		if consignment == string(models.ConsignmentPendingReview) || consignment == string(models.ConsignmentActive) {
			if err := redisClient.SAdd(ctx, "consigning_holdings", holdingID).Err(); err != nil {
				slog.Error("Failed to add consigning holding to Redis", "holdingID", holdingID, "error", err)
				return e.Next()
			}
			slog.Info("Holding marked consigning in Redis", "holdingID", holdingID)
		} else {
			if err := redisClient.SRem(ctx, "consigning_holdings", holdingID).Err(); err != nil {
				slog.Error("Failed to remove holding from consigning set", "holdingID", holdingID, "error", err)
				return e.Next()
			}
		}
		return e.Next()
	}

	app.OnRecordCreateRequest("holdings").BindFunc(update)
	app.OnRecordUpdateRequest("holdings").BindFunc(update)

	app.OnRecordDeleteRequest("holdings").BindFunc(func(e *core.RecordRequestEvent) error {
		ctx := e.Request.Context()

		if err := redisClient.SRem(ctx, "consigning_holdings", e.Record.Id).Err(); err != nil {
			slog.Error("Failed to remove deleted holding from Redis", "holdingID", e.Record.Id, "error", err)
		}
		return e.Next()
	})
}

// startMetricsServer serves prometheus metrics on a sidecar port.
func startMetricsServer(port string, redisClient *redis.Client) {
	e := echo.New()

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/health", func(c echo.Context) error {
		if err := utils.RedisHealthCheck(redisClient); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
	})

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: e,
	}

	log.Printf("Metrics server listening on :%s", port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Printf("Metrics server stopped: %v", err)
	}
}

// handleShutdown handles graceful shutdown
func handleShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	log.Println("Shutdown signal received, cleaning up...")
	cancel()
}
