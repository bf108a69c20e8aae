package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/ubongpr7/music-booking/internal/auth"
	"github.com/ubongpr7/music-booking/internal/booking"
	"github.com/ubongpr7/music-booking/internal/booking/api"
	"github.com/ubongpr7/music-booking/internal/booking/db"
	"github.com/ubongpr7/music-booking/internal/booking/qr"
	"github.com/ubongpr7/music-booking/internal/config"
	"github.com/ubongpr7/music-booking/internal/database/migrations"
	"github.com/ubongpr7/music-booking/internal/kafka"
	"github.com/ubongpr7/music-booking/internal/logger"
	"github.com/ubongpr7/music-booking/internal/payment/storage"
	redislock "github.com/ubongpr7/music-booking/internal/redis"
	"github.com/ubongpr7/music-booking/internal/settlement"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.NewLogger()
	defer log.Close()

	ctx := context.Background()

	// --- PostgreSQL ---
	connector := pgdriver.NewConnector(pgdriver.WithDSN(cfg.Database.DSN))
	sqldb := sql.OpenDB(connector)
	sqldb.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.Database.MaxLifetime)
	defer sqldb.Close()

	if err := sqldb.Ping(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("failed to connect to Postgres: %v", err))
	}
	log.Info("DATABASE", "connected to Postgres")

	bunDB := bun.NewDB(sqldb, pgdialect.New())

	if cfg.Database.MigrationsDir != "" {
		runner := migrations.NewRunner(bunDB, migrations.MigrateOptions{
			MigrationsDir: cfg.Database.MigrationsDir,
			AutoMigrate:   cfg.Database.AutoMigrate,
		})
		if err := runner.Initialize(); err != nil {
			log.Fatal("DATABASE", fmt.Sprintf("migration setup failed: %v", err))
		}
		if cfg.Database.AutoMigrate {
			if err := runner.RunMigrations(); err != nil {
				log.Fatal("DATABASE", fmt.Sprintf("migrations failed: %v", err))
			}
		}
	} else if cfg.Database.AutoMigrate {
		if err := db.CreateSchema(ctx, bunDB); err != nil {
			log.Fatal("DATABASE", fmt.Sprintf("schema creation failed: %v", err))
		}
	}

	// --- Redis ---
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		// Section locks are advisory; the database row lock is the
		// correctness authority, so Redis being down is survivable.
		log.Warn("REDIS", fmt.Sprintf("failed to connect to Redis at %s: %v", cfg.Redis.Addr, err))
	} else {
		log.Info("REDIS", "connected to Redis")
	}
	defer redisClient.Close()

	// --- Kafka ---
	var (
		bookingEvents    booking.Publisher    = kafka.NoopProducer{}
		settlementEvents settlement.Publisher = kafka.NoopProducer{}
	)
	if cfg.Kafka.Enabled {
		topics := []string{
			cfg.Kafka.Topics.BookingConfirmed,
			cfg.Kafka.Topics.BookingCanceled,
			cfg.Kafka.Topics.GroupSettled,
		}
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, topics); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("topic setup failed: %v", err))
		}
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics)
		defer producer.Close()
		bookingEvents, settlementEvents = producer, producer
		log.Info("KAFKA", fmt.Sprintf("producer ready for brokers %v", cfg.Kafka.Brokers))
	} else {
		log.Info("KAFKA", "event streaming disabled")
	}

	// --- Services ---
	dbLayer := &db.DB{Bun: bunDB}
	sectionLocks := redislock.NewSectionLock(redisClient, cfg.Redis.SectionLockTTL)
	paymentStore := storage.NewPostgreSQLStoreWithDB(sqldb, log)
	gateway := settlement.NewStripeGateway(cfg.Stripe, log)

	bookingService := booking.NewService(dbLayer, sectionLocks, bookingEvents, qr.NewGenerator(), log)
	coordinator := settlement.NewCoordinator(dbLayer, gateway, settlementEvents, log)
	handler := api.NewHandler(bookingService, coordinator, paymentStore, gateway, log)

	// --- Router ---
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if err := paymentStore.HealthCheck(); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Webhooks authenticate with the processor's signature, not a user token.
	r.Post("/api/v1/webhooks/stripe", handler.StripeWebhook)

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.Auth.OIDCIssuer != "" {
			r.Use(auth.Middleware(cfg.Auth.OIDCIssuer))
		} else {
			r.Use(auth.ClaimsMiddleware)
		}
		handler.Routes(r)
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("SERVER", fmt.Sprintf("booking service listening on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("SERVER", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("SERVER", "shutdown signal received")

	ctxShutdown, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("SERVER", fmt.Sprintf("forced shutdown: %v", err))
	}
	log.Info("SERVER", "booking service stopped")
}
