package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/example/taxipark/internal/auth"
	"github.com/example/taxipark/internal/taxipark/cache"
	"github.com/example/taxipark/internal/taxipark/domain"
	"github.com/example/taxipark/internal/taxipark/handler"
	"github.com/example/taxipark/internal/taxipark/repository"
	"github.com/example/taxipark/internal/taxipark/service"
	"github.com/example/taxipark/pkg/events"
	"github.com/example/taxipark/pkg/observability"
)

type appConfig struct {
	HTTPAddr    string
	PostgresDSN string
	RedisAddr   string
	NATSURL     string
	NATSSubject string
	ReportTTL   time.Duration
	AuthSecret  string
	LogLevel    string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := loadConfig()

	logger := observability.SetupLogger("taxipark-service", cfg.LogLevel)
	defer logger.Sync() //nolint:errcheck

	shutdown, err := observability.SetupTracer(ctx, "taxipark-service")
	if err != nil {
		logger.Warn("tracer setup failed", zap.Error(err))
	} else {
		defer shutdown(context.Background()) //nolint:errcheck
	}

	var reportCache domain.ReportCache = cache.NewMemoryCache()
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Fatal("redis ping", zap.Error(err))
		}
		defer redisClient.Close()
		reportCache = cache.NewRedisCache(redisClient, "", cfg.ReportTTL)
	}

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		if conn, err := nats.Connect(cfg.NATSURL, nats.Name("taxiparkservice")); err == nil {
			natsConn = conn
			defer conn.Drain() //nolint:errcheck
		} else {
			logger.Warn("nats connection failed", zap.Error(err))
		}
	}

	repo := repository.NewMemoryRepository()
	svc := service.New(repo, reportCache, events.NewPublisher(natsConn, cfg.NATSSubject), domain.SystemClock{}, logger.Named("service"))

	if cfg.PostgresDSN != "" {
		seedFromPostgres(ctx, logger, svc, cfg.PostgresDSN)
	}

	var middlewares []func(http.Handler) http.Handler
	if cfg.AuthSecret != "" {
		middlewares = append(middlewares, auth.Middleware(cfg.AuthSecret, auth.RoleAnalyst, auth.RoleAdmin))
	} else {
		logger.Warn("authentication disabled")
	}

	r := chi.NewRouter()
	r.Mount("/", handler.NewHTTP(svc).Router(middlewares...))
	r.Mount("/observability", observability.MetricsRouter())

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("taxipark service listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

// seedFromPostgres registers the dataset stored in Postgres as the first park.
func seedFromPostgres(ctx context.Context, logger *zap.Logger, svc *service.Service, dsn string) {
	db, err := repository.OpenPostgres(ctx, dsn)
	if err != nil {
		logger.Fatal("postgres connect", zap.Error(err))
	}
	defer db.Close()

	park, err := repository.NewPostgresSource(db).LoadPark(ctx)
	if err != nil {
		logger.Fatal("load taxi park", zap.Error(err))
	}
	id, err := svc.RegisterPark(ctx, park)
	if err != nil {
		logger.Fatal("register taxi park", zap.Error(err))
	}
	logger.Info("taxi park loaded from postgres", zap.Stringer("park_id", id))
}

func loadConfig() appConfig {
	return appConfig{
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),
		PostgresDSN: firstNonEmpty(os.Getenv("POSTGRES_DSN"), os.Getenv("DATABASE_URL")),
		RedisAddr:   os.Getenv("REDIS_ADDR"),
		NATSURL:     os.Getenv("NATS_URL"),
		NATSSubject: getenv("NATS_SUBJECT", events.DefaultSubject),
		ReportTTL:   time.Duration(parseIntEnv("REPORT_CACHE_TTL_SEC", 300)) * time.Second,
		AuthSecret:  os.Getenv("AUTH_SECRET"),
		LogLevel:    getenv("LOG_LEVEL", "info"),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func parseIntEnv(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}
