package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/foodhub/internal/access"
	"github.com/vasiliy-maslov/foodhub/internal/config"
	"github.com/vasiliy-maslov/foodhub/internal/db"
	"github.com/vasiliy-maslov/foodhub/internal/employee"
	"github.com/vasiliy-maslov/foodhub/internal/handler"
	"github.com/vasiliy-maslov/foodhub/internal/menu"
	"github.com/vasiliy-maslov/foodhub/internal/order"
	"github.com/vasiliy-maslov/foodhub/internal/realtime"
	"github.com/vasiliy-maslov/foodhub/internal/restaurant"
	"github.com/vasiliy-maslov/foodhub/internal/review"
	"github.com/vasiliy-maslov/foodhub/internal/stats"
	"github.com/vasiliy-maslov/foodhub/internal/transport"
)

func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	setupLogger(cfg)

	log.Info().Msg("FoodHub starting...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pg, err := db.New(ctx, cfg.Postgres)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pg.Close()

	if err := pg.ApplyMigrations(); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply migrations")
	}

	sqlxDB := pg.SQLX()
	defer sqlxDB.Close()

	hub := realtime.NewHub(cfg.Realtime.Buffer)
	defer hub.Close()

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := redisClient.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			log.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("Failed to connect to Redis")
		}
		log.Info().Str("addr", cfg.Redis.Addr).Msg("Connected to Redis")
	}

	publishers := realtime.MultiPublisher{}
	switch cfg.Realtime.Backend {
	case config.BackendRedis:
		publishers = append(publishers, realtime.NewRedisPublisher(redisClient, cfg.Redis.Prefix))
		relay := realtime.NewRedisRelay(redisClient, cfg.Redis.Prefix, hub)
		go func() {
			if err := relay.Run(ctx, nil); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("Redis relay stopped")
			}
		}()
	default:
		publishers = append(publishers, hub)
	}

	if cfg.AMQP.URL != "" {
		conn, ch, err := realtime.DialAMQP(cfg.AMQP.URL, cfg.AMQP.Exchange)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to RabbitMQ")
		}
		defer closeAMQP(conn, ch)
		publishers = append(publishers, realtime.NewAMQPPublisher(ch, cfg.AMQP.Exchange))
		log.Info().Str("exchange", cfg.AMQP.Exchange).Msg("Mirroring order notifications to RabbitMQ")
	}

	var statsCache stats.Cache
	if redisClient != nil {
		statsCache = stats.NewRedisCache(redisClient, cfg.Redis.Prefix, cfg.Stats.CacheTTL)
	}

	restaurantRepo := restaurant.NewRepository(pg.Pool)
	menuReader := menu.NewReader(sqlxDB)
	orderRepo := order.NewRepository(pg.Pool)
	aggregator := stats.NewAggregator(orderRepo, statsCache, cfg.Location())

	orderSvc := order.NewService(orderRepo, menuReader, restaurantRepo, publishers, order.WithStatsInvalidator(aggregator))
	employeeSvc := employee.NewService(employee.NewRepository(pg.Pool))
	reviewSvc := review.NewService(review.NewRepository(pg.Pool), orderSvc)

	ws := realtime.NewWSServer()
	publicHandler := handler.NewPublicHandler(restaurantRepo, menuReader, orderSvc, reviewSvc, hub, ws)
	dashboardHandler := handler.NewDashboardHandler(orderSvc, aggregator, employeeSvc, reviewSvc, hub, ws)

	router := transport.NewRouter(publicHandler, dashboardHandler, access.NewPostgresResolver(pg.Pool))

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.App.Port).Str("realtime_backend", cfg.Realtime.Backend).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down...")

	// Closing the hub ends open WebSocket sessions, which Shutdown does not track.
	hub.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Shutdown failed")
	}
	log.Info().Msg("Server stopped")
}

func setupLogger(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.App.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if !cfg.IsProduction() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	log.Logger = log.With().Str("service", "foodhub").Logger()
}

func closeAMQP(conn *amqp.Connection, ch *amqp.Channel) {
	if err := ch.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close RabbitMQ channel")
	}
	if err := conn.Close(); err != nil {
		log.Warn().Err(err).Msg("Failed to close RabbitMQ connection")
	}
}
