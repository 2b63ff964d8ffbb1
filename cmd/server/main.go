package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/teresa-solution/tenant-payment-service/internal/api"
	"github.com/teresa-solution/tenant-payment-service/internal/auth"
	"github.com/teresa-solution/tenant-payment-service/internal/config"
	"github.com/teresa-solution/tenant-payment-service/internal/crypto"
	"github.com/teresa-solution/tenant-payment-service/internal/idempotency"
	"github.com/teresa-solution/tenant-payment-service/internal/monitoring"
	"github.com/teresa-solution/tenant-payment-service/internal/provider"
	"github.com/teresa-solution/tenant-payment-service/internal/service"
	"github.com/teresa-solution/tenant-payment-service/internal/store"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

func main() {
	cmd := &cobra.Command{
		Use:          "server",
		Short:        "Tenant payment authorization and fee-split service",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd)
			if err != nil {
				return err
			}
			return run(cfg)
		},
	}
	config.RegisterFlags(cmd)

	if err := cmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("Server failed")
	}
}

func configureLogging(cfg config.LogConfig) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.Format == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		log.Warn().Str("level", cfg.Level).Msg("Unknown log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}

func newVerifier(cfg config.AuthConfig) auth.Verifier {
	if cfg.Mode == config.AuthModeRemote {
		return auth.NewRemoteVerifier(cfg.URL, cfg.APIKey)
	}
	return auth.NewJWTVerifier(cfg.JWTSecret, cfg.Audience)
}

func run(cfg *config.Config) error {
	configureLogging(cfg.Log)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	db, err := store.Open(cfg.DSN())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	repo := store.New(db)
	defer repo.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Warn().Err(err).Msg("Redis unreachable, idempotency replay will fail until it recovers")
	}

	key, err := cfg.CryptoKey()
	if err != nil {
		return err
	}
	sealer, err := crypto.NewSealer(key)
	if err != nil {
		return err
	}
	replays := idempotency.NewStore(rdb, sealer, cfg.Idempotency.TTL)
	defer replays.Close()

	stripeProvider, err := provider.NewStripeProvider(provider.StripeConfig{SecretKey: cfg.Stripe.SecretKey})
	if err != nil {
		return err
	}

	paymentService := service.NewPaymentService(repo, stripeProvider, replays, service.Options{
		DefaultCurrency: cfg.Stripe.DefaultCurrency,
		DefaultCountry:  cfg.Stripe.DefaultCountry,
	})

	// Initialize metrics
	monitoring.InitMetrics()

	gin.SetMode(gin.ReleaseMode)
	apiServer := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.NewRouter(api.NewPaymentHandler(paymentService), newVerifier(cfg.Auth)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPC.Port))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := repo.Ping(ctx); err != nil {
			log.Error().Err(err).Msg("Health check failed")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("database unavailable"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	mux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:              cfg.Metrics.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Msgf("gRPC health server listening at %v", lis.Addr())
		if err := grpcServer.Serve(lis); err != nil {
			log.Fatal().Err(err).Msg("Failed to start gRPC server")
		}
	}()

	go func() {
		log.Info().Msgf("HTTP server for health checks and metrics started on %s", cfg.Metrics.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("Metrics server error")
		}
	}()

	go func() {
		log.Info().Msgf("Payment API listening on %s", cfg.HTTP.Addr)
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start payment API")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	healthServer.Shutdown()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Payment API forced to shutdown")
	}
	if err := metricsServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Metrics server forced to shutdown")
	}
	grpcServer.GracefulStop()

	log.Info().Msg("Server exiting")
	return nil
}
