package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"story-server/internal/authutils"
	"story-server/internal/config"
	"story-server/internal/database"
	"story-server/internal/handler"
	"story-server/internal/interfaces"
	"story-server/internal/logger"
	"story-server/internal/messaging"
	"story-server/internal/middleware"
	"story-server/internal/models"
	"story-server/internal/realtime"
	"story-server/internal/service"

	rateli "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	ginprometheus "github.com/zsais/go-gin-prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	serviceName       = "story-server"
	connectRetries    = 30
	connectRetryDelay = 3 * time.Second
	shutdownTimeout   = 5 * time.Second
)

func main() {
	// --- Configuration ---
	cfg, err := config.LoadConfig(".env")
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// --- Logger ---
	log, err := logger.New(logger.Config{Service: serviceName, Level: cfg.LogLevel, Encoding: cfg.LogFormat})
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)
	log.Info("Configuration loaded", zap.String("env", cfg.Env), zap.String("logLevel", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- External Connections ---
	pgPool, err := setupPostgres(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to connect to PostgreSQL", zap.Error(err))
	}
	defer pgPool.Close()

	if err := database.RunMigrations(pgPool, log); err != nil {
		log.Fatal("Failed to apply migrations", zap.Error(err))
	}

	redisClient, err := setupRedis(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()

	var publisher interfaces.StoryEventPublisher
	if cfg.RabbitMQURL != "" {
		mqConn, err := connectRabbitMQ(ctx, cfg.RabbitMQURL, log)
		if err != nil {
			log.Fatal("Failed to connect to RabbitMQ", zap.Error(err))
		}
		defer mqConn.Close()

		eventPublisher, err := messaging.NewRabbitStoryEventPublisher(mqConn, cfg.StoryEventsQueue, log)
		if err != nil {
			log.Fatal("Failed to create story event publisher", zap.Error(err))
		}
		defer eventPublisher.Close()
		publisher = eventPublisher
	} else {
		log.Info("RABBITMQ_URL is empty, story events will not be published")
	}

	// --- Dependency Injection ---
	verifier, err := authutils.NewJWTVerifier(cfg.JWTSecret, log)
	if err != nil {
		log.Fatal("Failed to create JWT verifier", zap.Error(err))
	}

	hub := realtime.NewHub(log)

	userRepo := database.NewPgUserRepository(pgPool, log)
	storyRepo := database.NewPgStoryRepository(pgPool, log)
	reviewRepo := database.NewPgReviewRepository(pgPool, log)
	likeRepo := database.NewPgLikeRepository(pgPool, log)
	tokenRepo := database.NewRedisTokenRepository(redisClient, log)

	authSvc := service.NewAuthService(userRepo, tokenRepo, verifier, cfg, log)
	services := handler.Services{
		Auth:       authSvc,
		Profile:    service.NewProfileService(userRepo, log),
		Publishing: service.NewPublishingService(storyRepo, publisher, hub, log),
		Browsing:   service.NewStoryBrowsingService(storyRepo, likeRepo, log),
		Reviews:    service.NewReviewService(reviewRepo, storyRepo, publisher, hub, log),
		Likes:      service.NewLikeService(likeRepo, storyRepo, hub, log),
	}
	apiHandler := handler.NewHandler(services, log)
	wsHandler := realtime.NewHandler(hub, authSvc, cfg.GetAllowedOrigins(), log)

	// --- HTTP Server Setup (Gin) ---
	gin.SetMode(gin.ReleaseMode)
	if cfg.Env == "development" {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(middleware.GinZapLogger(log))
	router.Use(gin.Recovery())

	p := ginprometheus.NewPrometheus("gin")

	corsConfig := cors.DefaultConfig()
	if origins := cfg.GetAllowedOrigins(); len(origins) > 0 {
		corsConfig.AllowOrigins = origins
	} else {
		corsConfig.AllowOrigins = []string{"http://localhost:3000"}
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	corsConfig.AllowCredentials = true
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	healthHandler := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
	router.GET("/health", healthHandler)
	router.HEAD("/health", healthHandler)
	router.GET("/ws", wsHandler.ServeWS)

	apiHandler.RegisterRoutes(router, authRateLimiter(redisClient, cfg.AuthRateLimit))

	// после регистрации роутов
	p.Use(router)

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gCtx)
		return nil
	})
	g.Go(func() error {
		log.Info("Starting HTTP server", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		log.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP Server forced to shutdown", zap.Error(err))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("Server stopped with error", zap.Error(err))
	}
	log.Info("Server exiting")
}

// authRateLimiter ограничивает /auth/* по IP, счетчики хранятся в Redis.
func authRateLimiter(client *redis.Client, perMinute int) gin.HandlerFunc {
	store := rateli.RedisStore(&rateli.RedisOptions{
		RedisClient: client,
		Rate:        time.Minute,
		Limit:       uint(perMinute),
	})
	return rateli.RateLimiter(store, &rateli.Options{
		ErrorHandler: func(c *gin.Context, info rateli.Info) {
			zap.L().Warn("Rate limit exceeded",
				zap.String("clientIP", c.ClientIP()),
				zap.Time("resetTime", info.ResetTime),
				zap.String("path", c.Request.URL.Path),
			)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, models.ErrorResponse{
				Code:    models.ErrCodeRateLimited,
				Message: "Too many requests. Try again in " + time.Until(info.ResetTime).Round(time.Second).String(),
			})
		},
		KeyFunc: func(c *gin.Context) string {
			return c.ClientIP()
		},
	})
}

// retry вызывает fn до connectRetries раз, пока она не вернет nil или не отменится ctx.
func retry(ctx context.Context, what string, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= connectRetries; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		lastErr = fn(attemptCtx)
		cancel()
		if lastErr == nil {
			zap.L().Info("Connected", zap.String("target", what), zap.Int("attempt", attempt))
			return nil
		}
		zap.L().Warn("Connection failed, retrying...",
			zap.String("target", what),
			zap.Int("attempt", attempt),
			zap.Int("max_retries", connectRetries),
			zap.Error(lastErr),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(connectRetryDelay):
		}
	}
	return fmt.Errorf("failed to connect to %s after %d attempts: %w", what, connectRetries, lastErr)
}

// setupPostgres создает пул соединений PostgreSQL с повторными попытками.
func setupPostgres(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("unable to parse postgres config: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.DBMaxConns)
	poolConfig.MaxConnIdleTime = cfg.DBIdleTimeout

	var pool *pgxpool.Pool
	err = retry(ctx, "postgres", func(ctx context.Context) error {
		p, err := pgxpool.NewWithConfig(ctx, poolConfig)
		if err != nil {
			return err
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			return err
		}
		pool = p
		return nil
	})
	return pool, err
}

// setupRedis создает клиент Redis с повторными попытками.
func setupRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	err := retry(ctx, "redis", func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// connectRabbitMQ подключается к RabbitMQ с повторными попытками и логирует
// неожиданное закрытие соединения.
func connectRabbitMQ(ctx context.Context, url string, log *zap.Logger) (*amqp091.Connection, error) {
	var conn *amqp091.Connection
	err := retry(ctx, "rabbitmq "+maskURL(url), func(context.Context) error {
		c, err := amqp091.Dial(url)
		if err != nil {
			return err
		}
		conn = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	go func() {
		closed := conn.NotifyClose(make(chan *amqp091.Error, 1))
		if err := <-closed; err != nil {
			log.Error("RabbitMQ connection closed unexpectedly", zap.Error(err))
		} else {
			log.Info("RabbitMQ connection closed gracefully")
		}
	}()
	return conn, nil
}

// maskURL скрывает пароль в URL для логов.
func maskURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}
	return u.Redacted()
}
