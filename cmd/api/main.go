package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kzarre/kzarre-backend/api/routes"
	"github.com/kzarre/kzarre-backend/internal/adminauth"
	"github.com/kzarre/kzarre-backend/internal/audit"
	"github.com/kzarre/kzarre-backend/internal/campaigns"
	"github.com/kzarre/kzarre-backend/internal/catalog"
	checkoutsvc "github.com/kzarre/kzarre-backend/internal/checkout"
	"github.com/kzarre/kzarre-backend/internal/cms"
	"github.com/kzarre/kzarre-backend/internal/inventory"
	"github.com/kzarre/kzarre-backend/internal/orders"
	"github.com/kzarre/kzarre-backend/internal/payments"
	"github.com/kzarre/kzarre-backend/internal/privacy"
	"github.com/kzarre/kzarre-backend/internal/rbac"
	"github.com/kzarre/kzarre-backend/internal/traffic"
	"github.com/kzarre/kzarre-backend/pkg/auth/session"
	"github.com/kzarre/kzarre-backend/pkg/bigquery"
	"github.com/kzarre/kzarre-backend/pkg/config"
	"github.com/kzarre/kzarre-backend/pkg/db"
	"github.com/kzarre/kzarre-backend/pkg/logger"
	"github.com/kzarre/kzarre-backend/pkg/mailer"
	"github.com/kzarre/kzarre-backend/pkg/metrics"
	"github.com/kzarre/kzarre-backend/pkg/migrate"
	"github.com/kzarre/kzarre-backend/pkg/outbox"
	"github.com/kzarre/kzarre-backend/pkg/paypal"
	"github.com/kzarre/kzarre-backend/pkg/redis"
	"github.com/kzarre/kzarre-backend/pkg/stripe"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	conn := dbClient.DB()
	outboxSvc := outbox.NewService(outbox.NewRepository(conn), logg)

	rolesRepo := rbac.NewRepository(conn)
	rolesSvc, err := rbac.NewService(rolesRepo)
	if err != nil {
		fatal(logg, "failed to create role service", err)
	}

	adminAuthSvc, err := adminauth.NewService(adminauth.ServiceParams{
		Repo:           adminauth.NewRepository(conn),
		Roles:          rolesRepo,
		SessionManager: sessionManager,
		JWT:            cfg.JWT,
		Password:       cfg.Password,
	})
	if err != nil {
		fatal(logg, "failed to create admin auth service", err)
	}

	catalogSvc, err := catalog.NewService(catalog.NewRepository(conn), dbClient)
	if err != nil {
		fatal(logg, "failed to create catalog service", err)
	}

	inventorySvc, err := inventory.NewService(inventory.NewRepository(conn))
	if err != nil {
		fatal(logg, "failed to create inventory service", err)
	}

	stripeClient, err := stripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		fatal(logg, "failed to bootstrap stripe", err)
	}
	stripeGateway, err := checkoutsvc.NewStripeGateway(stripe.NewCheckoutSessionClient(stripeClient), cfg.Stripe)
	if err != nil {
		fatal(logg, "failed to create stripe gateway", err)
	}

	paypalClient, err := paypal.NewClient(context.Background(), cfg.PayPal, logg)
	if err != nil {
		fatal(logg, "failed to bootstrap paypal", err)
	}

	checkoutSvc, err := checkoutsvc.NewService(
		checkoutsvc.NewRepository(conn), dbClient, outboxSvc, stripeGateway, paypalClient, cfg.Orders)
	if err != nil {
		fatal(logg, "failed to create checkout service", err)
	}

	ordersSvc, err := orders.NewService(
		orders.NewRepository(conn), dbClient, inventorySvc, outboxSvc, cfg.Orders, logg)
	if err != nil {
		fatal(logg, "failed to create orders service", err)
	}

	webhookGuard, err := payments.NewEventGuard(redisClient, cfg.Orders.WebhookEventTTL, "stripe")
	if err != nil {
		fatal(logg, "failed to create webhook guard", err)
	}
	paymentsSvc, err := payments.NewService(payments.ServiceParams{
		Repo:      payments.NewRepository(conn),
		Tx:        dbClient,
		Inventory: inventorySvc,
		Outbox:    outboxSvc,
		Guard:     webhookGuard,
		Metrics:   metrics.NewWebhookMetrics(prometheus.DefaultRegisterer),
		PayPal:    paypalClient,
		Orders:    cfg.Orders,
		Logger:    logg,
	})
	if err != nil {
		fatal(logg, "failed to create payments service", err)
	}

	cmsSvc, err := cms.NewService(cms.NewRepository(conn), logg)
	if err != nil {
		fatal(logg, "failed to create cms service", err)
	}

	smtp, err := mailer.NewSMTPMailer(cfg.Mail, logg)
	if err != nil {
		fatal(logg, "failed to create mailer", err)
	}
	campaignsSvc, err := campaigns.NewService(
		campaigns.NewRepository(conn), dbClient, smtp, outboxSvc, logg)
	if err != nil {
		fatal(logg, "failed to create campaign service", err)
	}

	trafficRepo := traffic.NewRepository(conn)
	var trafficSvc traffic.Service
	if cfg.GCP.ProjectID != "" {
		bqClient, err := bigquery.NewClient(context.Background(), cfg.GCP, cfg.BigQuery, logg)
		if err != nil {
			fatal(logg, "failed to bootstrap bigquery", err)
		}
		defer bqClient.Close()
		trafficSvc, err = traffic.NewService(trafficRepo, bqClient, cfg.Traffic, cfg.BigQuery, logg)
		if err != nil {
			fatal(logg, "failed to create traffic service", err)
		}
	} else {
		trafficSvc, err = traffic.NewService(trafficRepo, nil, cfg.Traffic, cfg.BigQuery, logg)
		if err != nil {
			fatal(logg, "failed to create traffic service", err)
		}
	}

	privacySvc, err := privacy.NewService(privacy.NewRepository(conn), dbClient, logg)
	if err != nil {
		fatal(logg, "failed to create privacy service", err)
	}

	auditSvc, err := audit.NewService(audit.NewRepository(conn), logg)
	if err != nil {
		fatal(logg, "failed to create audit service", err)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:    cfg,
			Logger:    logg,
			DB:        dbClient,
			Redis:     redisClient,
			Sessions:  sessionManager,
			AdminAuth: adminAuthSvc,
			Roles:     rolesSvc,
			Catalog:   catalogSvc,
			Checkout:  checkoutSvc,
			Orders:    ordersSvc,
			Payments:  paymentsSvc,
			CMS:       cmsSvc,
			Campaigns: campaignsSvc,
			Traffic:   trafficSvc,
			Privacy:   privacySvc,
			Audit:     auditSvc,
			Stripe:    stripeClient,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	go func() {
		<-shutdownCtx.Done()
		timeout, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(timeout); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "api server shut down")
}

func fatal(logg *logger.Logger, msg string, err error) {
	logg.Error(context.Background(), msg, err)
	os.Exit(1)
}
