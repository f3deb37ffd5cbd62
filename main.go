package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/muhammadolammi/careercards/internal/config"
	"github.com/muhammadolammi/careercards/internal/database"
	"github.com/muhammadolammi/careercards/internal/inference"
	"github.com/muhammadolammi/careercards/internal/logging"
	"github.com/muhammadolammi/careercards/internal/metrics"
	"github.com/muhammadolammi/careercards/internal/pipeline"
	"github.com/muhammadolammi/careercards/internal/prompt"
	"github.com/muhammadolammi/careercards/internal/session"
	"github.com/redis/go-redis/v9"
	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		log.Fatal("error loading config. err: ", err)
	}

	logger, syncLogger, err := logging.New(logging.Options{
		Level: cfg.LogLevel,
		File:  cfg.LogFile,
		JSON:  cfg.LogJSON,
	})
	if err != nil {
		log.Fatal("error creating logger. err: ", err)
	}
	defer syncLogger()

	metricsManager := metrics.NewManager()

	var dbQueries *database.Queries
	if cfg.DBURL != "" {
		db, err := sql.Open("postgres", cfg.DBURL)
		if err != nil {
			logger.Fatal("error opening db", zap.Error(err))
		}
		defer db.Close()
		dbQueries = database.New(db)
	}

	sessionPort, closePort, err := newSessionPort(ctx, cfg, dbQueries)
	if err != nil {
		logger.Fatal("error creating session backend", zap.String("backend", cfg.SessionBackend), zap.Error(err))
	}
	defer closePort()

	transport, err := newTransport(ctx, cfg)
	if err != nil {
		logger.Fatal("error creating inference transport", zap.String("transport", cfg.InferenceTransport), zap.Error(err))
	}
	gateway := inference.New(transport,
		inference.WithMaxAttempts(cfg.InferenceMaxAttempts),
		inference.WithBaseDelay(cfg.BaseDelay()),
		inference.WithAttemptTimeout(cfg.AttemptTimeout()),
		inference.WithCoalescing(cfg.InferenceCoalesce),
		inference.WithLogger(logger.Named("inference")),
		inference.WithMetrics(metricsManager),
	)
	service, err := pipeline.NewService(gateway, prompt.NewRegistry(),
		pipeline.WithLogger(logger.Named("pipeline")),
		pipeline.WithMetrics(metricsManager),
	)
	if err != nil {
		logger.Fatal("error creating card service", zap.Error(err))
	}

	var r2Config *R2Config
	var awsConfig *aws.Config
	if cfg.HasR2() {
		r2Config = &R2Config{
			AccountID: cfg.R2AccountID,
			AccessKey: cfg.R2AccessKey,
			SecretKey: cfg.R2SecretKey,
			Bucket:    cfg.R2Bucket,
		}
		loaded, err := awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(r2Config.AccessKey, r2Config.SecretKey, "")),
			awsconfig.WithRegion("auto"),
		)
		if err != nil {
			logger.Fatal("error creating aws config", zap.Error(err))
		}
		awsConfig = &loaded
	}

	conn, err := amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		logger.Fatal("error connecting to RabbitMQ", zap.Error(err))
	}
	defer conn.Close()
	if err := declareUpdateExchange(conn); err != nil {
		logger.Fatal("error declaring update exchange", zap.Error(err))
	}

	if cfg.MetricsAddr != "" {
		srv := serveMetrics(cfg.MetricsAddr, metricsManager, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	workerConfig := WorkerConfig{
		DB:          dbQueries,
		R2:          r2Config,
		AwsConfig:   awsConfig,
		RabbitConn:  conn,
		RABBITMQUrl: cfg.RabbitMQURL,
		Service:     service,
		SessionPort: sessionPort,
		Logger:      logger,
		Metrics:     metricsManager,
	}

	logger.Info("starting consumer worker pool",
		zap.Int("workers", cfg.WorkerCount),
		zap.String("transport", cfg.InferenceTransport),
		zap.String("session_backend", cfg.SessionBackend))
	workerConfig.StartConsumerWorkerPool(ctx, cfg.WorkerCount)
	logger.Info("worker pool stopped")
}

// newSessionPort opens the session backend named by session_backend. The
// returned func releases it.
func newSessionPort(ctx context.Context, cfg *config.Config, db *database.Queries) (session.Port, func(), error) {
	switch cfg.SessionBackend {
	case "redis":
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to parse redis url: %w", err)
		}
		rdb := redis.NewClient(opt)
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return session.NewRedisPort(rdb), func() { _ = rdb.Close() }, nil

	case "postgres":
		if db == nil {
			return nil, nil, errors.New("postgres session backend needs db_url")
		}
		return session.NewPostgresPort(db), func() {}, nil

	default:
		return session.NewMemoryPort(), func() {}, nil
	}
}

func declareUpdateExchange(conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()
	return ch.ExchangeDeclare(
		updateExchange, // name
		"topic",        // kind
		true,           // durable
		false,          // auto-delete
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
}

func serveMetrics(addr string, m *metrics.Manager, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("serving metrics", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", zap.Error(err))
		}
	}()
	return srv
}
