package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	pubnub "github.com/pubnub/go/v7"
	"github.com/redis/go-redis/v9"

	"fiat-checkout/config"
	"fiat-checkout/ledger"
	"fiat-checkout/queue"
	"fiat-checkout/services"
	"fiat-checkout/store"
	"fiat-checkout/utils"
)

func main() {
	cfg := config.LoadConfig()
	logger := utils.NewLogger(cfg.LogLevel, "fiat-checkout", cfg.Environment)

	// Redis backs the distributed lock, the idempotency markers and the
	// spot-price cache.
	redisClient, err := utils.NewRedisClient(cfg.RedisURL, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Fatal(err)
	}
	defer redisClient.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dataStore, err := store.Connect(ctx, cfg.PostgresURI)
	if err != nil {
		log.Fatal(err)
	}
	defer dataStore.Close()

	ledgerClient, err := ledger.NewClient(ledger.Config{
		RPCURL:      cfg.LedgerRPCURL,
		OperatorKey: cfg.LedgerOperatorKey,
	})
	if err != nil {
		log.Fatal(err)
	}

	gateway, err := services.NewStripeGateway(services.StripeConfig{
		APIKey:         cfg.StripeKey,
		SubCallTimeout: cfg.GatewayTimeout,
		SuccessURL:     cfg.CheckoutSuccessURL,
		CancelURL:      cfg.CheckoutCancelURL,
	}, dataStore)
	if err != nil {
		log.Fatal(err)
	}

	pnConfig := pubnub.NewConfigWithUserId(pubnub.UserId("fiat-checkout"))
	pnConfig.PublishKey = cfg.PubNubPublishKey
	pnConfig.SubscribeKey = cfg.PubNubSubscribeKey
	pnConfig.SecretKey = cfg.PubNubSecretKey
	pn := pubnub.NewPubNub(pnConfig)

	resultProducer, err := queue.NewResultProducer(cfg.KafkaBrokers, cfg.ResultTopic, logger)
	if err != nil {
		log.Fatal(err)
	}
	defer resultProducer.Close()

	publisher := services.Fanout(resultProducer, services.NewSessionNotifier(pn))

	locker := utils.NewRedLocker(redisClient)
	priceFeed := services.NewPriceFeed(redisClient, cfg.NativeAsset)
	pricer := services.NewPriceCalculator(priceFeed, cfg.GatewayFeeBps, cfg.GatewayFeeFixed)
	reservations := services.NewReservationService(ledgerClient, cfg.SlotTime, utils.RetryPolicy{
		Attempts: cfg.ReserveAttempts,
		Delay:    cfg.ReserveDelay,
	}, logger)

	baseCfg := services.CoordinatorConfig{
		PipelineTimeout:         cfg.PipelineTimeout,
		PrecheckTimeout:         cfg.PrecheckTimeout,
		MarkerMargin:            cfg.MarkerMargin,
		PrimaryProtocolFeeBps:   cfg.PrimaryProtocolFeeBps,
		SecondaryProtocolFeeBps: cfg.SecondaryProtocolFeeBps,
		MintCostNative:          cfg.MintCostNative,
		FillCostNative:          cfg.FillCostNative,
	}

	paymentCfg := baseCfg
	paymentCfg.Mode = services.ModePaymentIntent
	paymentCfg.Window = cfg.PaymentWindow

	checkoutCfg := baseCfg
	checkoutCfg.Mode = services.ModeCheckoutSession
	checkoutCfg.Window = cfg.CheckoutWindow

	paymentCoordinator := services.NewCoordinator(
		paymentCfg, locker, redisClient, dataStore, reservations, gateway, pricer, publisher, logger)
	checkoutCoordinator := services.NewCoordinator(
		checkoutCfg, locker, redisClient, dataStore, reservations, gateway, pricer, publisher, logger)

	consumer, err := queue.NewConsumer(cfg.KafkaBrokers, cfg.KafkaGroupID, logger)
	if err != nil {
		log.Fatal(err)
	}
	defer consumer.Close()

	if cfg.EnableMetrics {
		go serveMetrics(cfg.MetricsPort, redisClient, logger)
	}

	// Setup graceful shutdown
	go handleShutdown(cancel)

	logger.Info("consuming purchase commands",
		"payment_topic", cfg.PaymentTopic, "checkout_topic", cfg.CheckoutTopic, "group", cfg.KafkaGroupID)

	err = consumer.Consume(ctx, map[string]queue.PurchaseHandler{
		cfg.PaymentTopic:  paymentCoordinator,
		cfg.CheckoutTopic: checkoutCoordinator,
	})
	if err != nil && err != context.Canceled {
		log.Fatal(err)
	}

	logger.Info("shutdown complete")
}

func serveMetrics(port string, redisClient *redis.Client, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		if err := utils.RedisHealthCheck(redisClient); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unhealthy"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	})

	if err := http.ListenAndServe(":"+port, mux); err != nil {
		logger.Error("metrics server stopped", "error", err)
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
