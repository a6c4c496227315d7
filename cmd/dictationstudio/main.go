package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"

	"github.com/nasuf/dictation-studio-service/app/controllers"
	"github.com/nasuf/dictation-studio-service/app/repository"
	"github.com/nasuf/dictation-studio-service/internal/pkg/auth"
	"github.com/nasuf/dictation-studio-service/internal/pkg/entitlement"
	"github.com/nasuf/dictation-studio-service/internal/pkg/env"
	"github.com/nasuf/dictation-studio-service/internal/pkg/middleware"
	"github.com/nasuf/dictation-studio-service/internal/pkg/payment"
	"github.com/nasuf/dictation-studio-service/internal/pkg/router"
	"github.com/nasuf/dictation-studio-service/internal/pkg/store"
	"github.com/nasuf/dictation-studio-service/internal/pkg/transcript"
)

// planSweepInterval is how often lapsed plans are flipped to inactive.
const planSweepInterval = 5 * time.Minute

func main() {
	app := NewApplication()

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	go runPlanSweep(sweepCtx)

	go func() {
		addr := fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "0.0.0.0"), env.GetEnv("APP_PORT", "4001"))
		if err := app.Listen(addr); err != nil {
			logrus.Fatalf("server stopped: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("shutting down")
	stopSweep()
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logrus.Errorf("shutdown failed: %v", err)
	}
	store.Shutdown()
}

// NewApplication wires the stores, services, controllers and routes.
func NewApplication() *fiber.App {
	env.SetupEnvFile()
	setupLogging()
	store.Setup()

	repository.InitGlobalFactory(store.UserClient(), store.ResourceClient())

	entitlementSvc := entitlement.NewService(entitlement.NewRedisStore(store.UserClient()))

	httpClient := &http.Client{Timeout: transcript.DefaultStrategyTimeout}
	pipeline := transcript.NewPipeline(
		transcript.NewTimedTextStrategy(httpClient),
		transcript.NewWatchPageStrategy(httpClient),
	)
	transcriptCache := transcript.NewCache(
		transcript.NewRedisStore(store.ResourceClient()),
		pipeline,
		transcript.NewYouTubeTitleFetcher(httpClient),
	)

	blacklist := auth.NewBlacklist(store.TokenClient())
	controllers.SetupAuth(blacklist)
	controllers.Setup(controllers.Deps{
		Entitlements:  entitlementSvc,
		Transcripts:   transcriptCache,
		Stripe:        payment.NewStripeClient(),
		StripeWebhook: payment.NewWebhookDecoder(env.GetEnv("STRIPE_WEBHOOK_SECRET", "")),
		ZPay:          payment.NewZPayClient(),
		Orders:        payment.NewOrderStore(store.UserClient()),
		FailedUpdates: payment.NewFailedUpdateStore(store.UserClient()),
	})

	app := fiber.New(fiber.Config{
		AppName:      "dictation-studio-service",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})
	app.Use(recover.New(), logger.New())
	app.Use(cors.New(cors.Config{
		ExposeHeaders: middleware.RefreshHeader,
	}))

	router.InstallRouter(app, router.Deps{
		RequireAuth:  middleware.RequireAuth(blacklist),
		RequireAdmin: middleware.RequireAdmin(repository.GetGlobalFactory().GetUserRepository()),
	})

	return app
}

func setupLogging() {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if env.IsDev() {
		logrus.SetLevel(logrus.DebugLevel)
	}
}

// runPlanSweep periodically marks lapsed plans inactive until ctx is
// cancelled.
func runPlanSweep(ctx context.Context) {
	svc := entitlement.NewService(entitlement.NewRedisStore(store.UserClient()))
	ticker := time.NewTicker(planSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweepCtx, cancel := context.WithTimeout(ctx, time.Minute)
			if _, err := svc.MarkExpiredPlans(sweepCtx, time.Now().UTC()); err != nil {
				logrus.Errorf("plan expiry sweep failed: %v", err)
			}
			cancel()
		}
	}
}
