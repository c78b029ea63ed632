package main // Entry point package

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/pixelhue/pixel-mosaic/internal/config"
	"github.com/pixelhue/pixel-mosaic/internal/database"
	"github.com/pixelhue/pixel-mosaic/internal/handler"
	"github.com/pixelhue/pixel-mosaic/internal/middleware"
	"github.com/pixelhue/pixel-mosaic/internal/payment"
	"github.com/pixelhue/pixel-mosaic/internal/queue"
	"github.com/pixelhue/pixel-mosaic/internal/repository"
	"github.com/pixelhue/pixel-mosaic/internal/router"
	queue_publisher "github.com/pixelhue/pixel-mosaic/internal/service"
)

func main() {
	// Load .env when present; real deployments set the environment directly.
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	if err := database.EnsureSchema(context.Background(), db); err != nil {
		log.Fatalf("schema: %v", err)
	}

	claimRepo := repository.NewClaimRepo(db)
	gateway := payment.NewClient(
		cfg.GatewayURL, cfg.GatewayAPIKey,
		cfg.PublicBaseURL+"/claimed", cfg.PublicBaseURL+"/",
	)

	claims := handler.NewClaimHandler(claimRepo, gateway, cfg.ClaimPriceCents, cfg.ClaimCurrency, cfg.ReservationWindow)
	webhook := handler.NewWebhookHandler(claimRepo, cfg.WebhookSecret, cfg.SignatureTolerance, queue_publisher.PublishClaimCompleted)
	colors := handler.NewColorsHandler(claimRepo)
	personalize := handler.NewPersonalizeHandler(claimRepo)

	// Redis backs rate limiting and the /colors response cache.  A nil
	// client disables both; claim arbitration never depends on them.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis unavailable; rate limiting and response cache disabled")
	}
	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	cache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)

	e := echo.New()
	router.RegisterRoutes(e)
	router.RegisterAPI(e, claims, webhook, colors, personalize, limiter, cache)

	// Correctness does not need a scheduler: cleanup runs before every
	// reserve and every read.  The sweep is hygiene for quiet periods.
	if cfg.CleanupSweepInterval > 0 {
		go func() {
			t := time.NewTicker(cfg.CleanupSweepInterval)
			defer t.Stop()
			for range t.C {
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				if n, err := claimRepo.DeleteExpired(ctx); err != nil {
					log.Printf("sweep: %v", err)
				} else if n > 0 {
					log.Printf("sweep: removed %d expired reservations", n)
				}
				cancel()
			}
		}()
	}

	// Tail the claim.completed queue into logs/claims.log.
	go func() {
		if err := queue.StartClaimsConsumer(); err != nil {
			log.Printf("claims-consumer: %v", err)
		}
	}()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
