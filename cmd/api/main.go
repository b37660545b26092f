package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/agendafacil/booking-platform/internal/api/router"
	"github.com/agendafacil/booking-platform/internal/appointments"
	"github.com/agendafacil/booking-platform/internal/catalog"
	appconfig "github.com/agendafacil/booking-platform/internal/config"
	"github.com/agendafacil/booking-platform/internal/notify"
	"github.com/agendafacil/booking-platform/internal/observability/metrics"
	"github.com/agendafacil/booking-platform/internal/schedule"
	"github.com/agendafacil/booking-platform/internal/whatsapp"
	"github.com/agendafacil/booking-platform/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting booking platform API",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create pgx pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// The business-hours store runs on database/sql; same database, separate
	// handle through the pgx stdlib driver.
	sqlDB, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open sql db", "error", err)
		os.Exit(1)
	}
	defer func() { _ = sqlDB.Close() }()

	redisOpts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOpts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	redisClient := redis.NewClient(redisOpts)
	defer func() { _ = redisClient.Close() }()

	bookingMetrics := metrics.NewBookingMetrics(nil)

	catalogRepo := catalog.NewPostgresRepository(pool)
	apptRepo := appointments.NewPostgresRepository(pool)
	hours := schedule.NewHoursStore(sqlDB)
	detector := schedule.NewConflictDetector(apptRepo)
	availability := schedule.NewAvailability(hours, catalog.ResolveService(catalogRepo), detector, cfg.ScheduleDefaultFillDays, logger).
		WithDefaultStep(cfg.SlotStepMinutes)

	notifier := notify.NewService(buildEmailSender(ctx, cfg, logger), catalogRepo, cfg.PublicBaseURL, logger)
	bookings := appointments.NewService(apptRepo, catalogRepo, notifier, cfg.BookingPastTolerance, logger)
	bookingHandler := appointments.NewHandler(availability, bookings, hours, bookingMetrics, logger)

	var webhook *whatsapp.WebhookHandler
	if len(cfg.WhatsAppNumberMap) > 0 {
		pending := whatsapp.NewRedisPendingSlotStore(redisClient, cfg.PendingSlotTTL, nil)

		var assistant whatsapp.Assistant
		if cfg.GeminiAPIKey != "" {
			gemini, err := whatsapp.NewGeminiAssistant(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, catalogRepo, availability, logger)
			if err != nil {
				logger.Error("failed to create gemini assistant", "error", err)
				os.Exit(1)
			}
			assistant = gemini
		} else {
			logger.Warn("GEMINI_API_KEY not set, using rule-based assistant")
			assistant = whatsapp.NewRuleBasedAssistant(catalogRepo, availability)
		}

		var sender whatsapp.TextSender = whatsapp.NopSender{}
		if cfg.TwilioAccountSID != "" && cfg.TwilioAuthToken != "" {
			sender = whatsapp.NewTwilioWhatsAppSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioWhatsAppNumber, logger)
		} else {
			logger.Warn("twilio credentials not set, whatsapp replies are dropped")
		}

		flow := whatsapp.NewConfirmationFlow(pending, bookings, assistant, sender, bookingMetrics, logger)
		webhook = whatsapp.NewWebhookHandler(flow,
			whatsapp.NewStaticBusinessResolver(cfg.WhatsAppNumberMap),
			cfg.TwilioAuthToken,
			cfg.WhatsAppWebhookURL,
			logger,
		)
	} else {
		logger.Info("WHATSAPP_NUMBER_MAP not set, whatsapp channel disabled")
	}

	r := router.New(&router.Config{
		Logger:             logger,
		BookingHandler:     bookingHandler,
		WhatsAppWebhook:    webhook,
		MetricsHandler:     promhttp.Handler(),
		AdminAuthSecret:    cfg.AdminJWTSecret,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

// buildEmailSender picks the configured provider, falling back to the
// logging stub so bookings never depend on email availability.
func buildEmailSender(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) notify.EmailSender {
	switch cfg.EmailProvider {
	case "ses":
		opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.AWSRegion)}
		if cfg.AWSAccessKeyID != "" && cfg.AWSSecretAccessKey != "" {
			opts = append(opts, awsconfig.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey, ""),
			))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			logger.Error("failed to load AWS config, email disabled", "error", err)
			return notify.NewStubEmailSender(logger)
		}
		if sender := notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger); sender != nil {
			return sender
		}
	case "sendgrid":
		if sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger); sender != nil {
			return sender
		}
		logger.Warn("SENDGRID_API_KEY not set, email disabled")
	}
	return notify.NewStubEmailSender(logger)
}
