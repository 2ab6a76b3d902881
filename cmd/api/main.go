package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/olympusx/crm/internal/agenda"
	"github.com/olympusx/crm/internal/auth"
	"github.com/olympusx/crm/internal/boleto"
	"github.com/olympusx/crm/internal/client"
	"github.com/olympusx/crm/internal/config"
	"github.com/olympusx/crm/internal/db"
	internalhttp "github.com/olympusx/crm/internal/http"
	"github.com/olympusx/crm/internal/metrics"
	"github.com/olympusx/crm/internal/repo"
	"github.com/olympusx/crm/internal/role"
	"github.com/olympusx/crm/internal/service"
	"github.com/olympusx/crm/internal/storage"
	"github.com/olympusx/crm/internal/task"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("api encerrada com erro")
	}
}

func run() error {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx := context.Background()

	pool, err := db.NewPool(ctx, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	defer pool.Close()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("redis parse: %w", err)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	repository := repo.New(pool)
	roleRepo := role.NewRepository(pool)
	clientRepo := client.NewRepository(pool)
	taskRepo := task.NewRepository(pool)

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTAccessTTL)
	authService := service.NewAuthService(repository, roleRepo, redisClient, jwtManager, cfg.JWTRefreshTTL)
	accessService := service.NewAccessService(repository, roleRepo)
	agendaService := agenda.NewService(clientRepo, taskRepo)

	m := metrics.New()
	syncService := boleto.NewService(clientRepo, taskRepo, boleto.Config{
		Enabled:      cfg.BoletoSync.Enabled,
		Interval:     cfg.BoletoSync.Interval,
		StartupDelay: cfg.BoletoSync.StartupDelay,
	}, log.Logger, m)

	var uploader storage.Uploader = storage.NoopUploader{}
	if cfg.Storage.Enabled() {
		s3, err := storage.NewS3Uploader(storage.S3Config{
			Endpoint:     cfg.Storage.Endpoint,
			Region:       cfg.Storage.Region,
			Bucket:       cfg.Storage.Bucket,
			AccessKey:    cfg.Storage.AccessKey,
			SecretKey:    cfg.Storage.SecretKey,
			PublicDomain: cfg.Storage.PublicDomain,
		})
		if err != nil {
			return fmt.Errorf("storage: %w", err)
		}
		uploader = s3
	}

	handler, err := internalhttp.NewRouter(internalhttp.Deps{
		Cfg:      cfg,
		Redis:    redisClient,
		Auth:     authService,
		Access:   accessService,
		Usuarios: repository,
		Clients:  clientRepo,
		Tasks:    taskRepo,
		Roles:    roleRepo,
		Agenda:   agendaService,
		Sync:     syncService,
		Metrics:  m,
		Storage:  uploader,
	})
	if err != nil {
		return fmt.Errorf("router: %w", err)
	}

	syncService.Start(ctx)
	defer syncService.Stop()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: handler,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Msgf("API ouvindo em :%d", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("encerrando...")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
