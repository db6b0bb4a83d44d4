package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mohamed2108268/Smart-Access/internal/access/authtoken"
	"github.com/mohamed2108268/Smart-Access/internal/access/biometric"
	"github.com/mohamed2108268/Smart-Access/internal/access/challenge"
	"github.com/mohamed2108268/Smart-Access/internal/access/password"
	"github.com/mohamed2108268/Smart-Access/internal/access/sealed"
	"github.com/mohamed2108268/Smart-Access/internal/access/service"
	"github.com/mohamed2108268/Smart-Access/internal/access/store"
	"github.com/mohamed2108268/Smart-Access/internal/access/store/memory"
	"github.com/mohamed2108268/Smart-Access/internal/access/store/redisstore"
	"github.com/mohamed2108268/Smart-Access/internal/access/store/sqlite"
	"github.com/mohamed2108268/Smart-Access/internal/config"
	"github.com/mohamed2108268/Smart-Access/internal/db"
	"github.com/mohamed2108268/Smart-Access/internal/doorbus"
	"github.com/mohamed2108268/Smart-Access/internal/httpapi"
	"github.com/mohamed2108268/Smart-Access/internal/logging"
)

// devJWTSecret signs access tokens in dev when no secret is configured.
const devJWTSecret = "smart-access-dev-secret-do-not-use-in-prod"

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "smart-access-server: %v\n", err)
		os.Exit(2)
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat, "smart-access-server")

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Storage
	sqlDB, err := db.Open(ctx, db.Config{Path: cfg.DBPath, Env: cfg.Env})
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	writer := db.NewWorker(sqlDB)
	defer writer.Close()

	if cfg.IsDev() {
		if err := seed(ctx, sqlDB, cfg.SeedFile); err != nil {
			return err
		}
		logger.Info("dev seed applied", "file", cfg.SeedFile)
	}

	accounts := sqlite.NewAccountStore(sqlDB, writer)
	rooms := sqlite.NewRoomStore(sqlDB, writer)
	logs := sqlite.NewAccessLogStore(sqlDB, writer)

	sessions, closeSessions, err := openSessions(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeSessions()

	// Collaborators
	tokens, err := authtoken.NewIssuer(jwtSecret(cfg, logger), cfg.TokenTTL)
	if err != nil {
		return err
	}

	var opener biometric.TemplateOpener
	var sealer service.Sealer
	if cfg.TemplateKeyPath != "" {
		vault, err := sealed.LoadVault(cfg.TemplateKeyPath)
		if err != nil {
			return err
		}
		opener, sealer = vault, vault
	} else {
		logger.Warn("no template key configured; templates are stored unsealed")
	}

	verifier, err := biometric.DialRemote(cfg.VerifierAddr)
	if err != nil {
		return err
	}
	defer verifier.Close()
	gateway := biometric.NewGateway(verifier, verifier, opener, cfg.VerifierTimeout)

	var challenges challenge.Source = challenge.DefaultCorpus
	if cfg.ChallengeURL != "" {
		challenges = challenge.NewRemote(cfg.ChallengeURL, 3*time.Second, challenge.DefaultCorpus, logger)
	}

	doors, closeDoors := openDoorBus(cfg, logger)
	defer closeDoors()

	// Services
	auth := service.NewAuthService(service.AuthDependencies{
		Accounts:   accounts,
		Rooms:      rooms,
		Grants:     rooms,
		Logs:       logs,
		Sessions:   sessions,
		Biometrics: gateway,
		Challenges: challenges,
		Tokens:     tokens,
		Doors:      doors,
		Logger:     logger,
	}, service.AuthConfig{
		Timer:      service.StepTimer{Face: cfg.FaceTimeout, Voice: cfg.VoiceTimeout},
		Lockout:    service.LockoutPolicy{Threshold: cfg.LockoutThreshold},
		SessionTTL: cfg.SessionTTL,
	})
	roomSvc := service.NewRoomService(rooms, logs, doors, cfg.UnlockGrace, logger)
	adminSvc := service.NewAdminService(accounts, rooms, logs, sealer, logger)

	reaper := service.NewRoomReaper(rooms, doors, service.ReaperConfig{
		Interval: cfg.ReaperInterval,
		Grace:    cfg.UnlockGrace,
	}, logger)
	reaper.Start(ctx)
	defer reaper.Stop()

	// HTTP
	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:   logger,
		Addr:     cfg.HTTPAddr,
		Auth:     auth,
		Rooms:    roomSvc,
		Admin:    adminSvc,
		Tokens:   tokens,
		AuthRate: httpapi.RateLimit{PerMinute: cfg.AuthRatePerMinute, Burst: cfg.AuthRateBurst},
	})

	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.HTTPAddr, "env", cfg.Env, "sessions", cfg.SessionStore)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errc:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func seed(ctx context.Context, sqlDB *sql.DB, file string) error {
	fixture := db.DefaultFixture
	if file != "" {
		f, err := db.LoadFixture(file)
		if err != nil {
			return err
		}
		fixture = f
	}
	return db.SeedDev(ctx, sqlDB, fixture, db.SeedOptions{HashPassword: password.Hash})
}

func openSessions(ctx context.Context, cfg config.Config) (store.SessionStore, func(), error) {
	if cfg.SessionStore != config.SessionStoreRedis {
		return memory.NewSessionStore(), func() {}, nil
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
	}
	return redisstore.NewSessionStore(rdb, cfg.RedisPrefix), func() { _ = rdb.Close() }, nil
}

func openDoorBus(cfg config.Config, logger *slog.Logger) (service.DoorNotifier, func()) {
	if cfg.MQTTBroker == "" {
		return doorbus.Nop{}, func() {}
	}
	pub, err := doorbus.Connect(doorbus.Config{
		BrokerURL:   cfg.MQTTBroker,
		ClientID:    cfg.MQTTClientID,
		Username:    cfg.MQTTUsername,
		Password:    cfg.MQTTPassword,
		TopicPrefix: cfg.MQTTTopicPrefix,
	})
	if err != nil {
		// Doors still poll; the bus only shortens their reaction time.
		logger.Warn("door bus unavailable, continuing without it", "broker", cfg.MQTTBroker, "error", err)
		return doorbus.Nop{}, func() {}
	}
	return pub, pub.Close
}

func jwtSecret(cfg config.Config, logger *slog.Logger) string {
	if cfg.JWTSecret != "" {
		return cfg.JWTSecret
	}
	logger.Warn("SMART_ACCESS_JWT_SECRET not set; using the dev secret")
	return devJWTSecret
}
