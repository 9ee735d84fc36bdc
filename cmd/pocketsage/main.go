package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/pocketsage/pocketsage/internal/api"
	"github.com/pocketsage/pocketsage/internal/chat"
	"github.com/pocketsage/pocketsage/internal/config"
	"github.com/pocketsage/pocketsage/internal/database"
	"github.com/pocketsage/pocketsage/internal/engine"
	"github.com/pocketsage/pocketsage/internal/engine/external"
	"github.com/pocketsage/pocketsage/internal/engine/mock"
	"github.com/pocketsage/pocketsage/internal/inventory"
	"github.com/pocketsage/pocketsage/internal/logger"
	"github.com/pocketsage/pocketsage/internal/model"
	"github.com/pocketsage/pocketsage/internal/scheduler"
	"github.com/pocketsage/pocketsage/internal/scheduler/tasks"
	"github.com/pocketsage/pocketsage/internal/websocket"
)

func main() {
	// Optional .env for local development; a missing file is fine.
	_ = godotenv.Load()

	configPath := flag.String("config", "", "Path to config file")
	rollback := flag.Bool("rollback", false, "Roll back the most recent database migration and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Path:   cfg.Logging.Path,
	})
	defer log.Close()

	log.Info().
		Str("logLevel", cfg.Logging.Level).
		Str("model", cfg.Model.Name).
		Msg("starting PocketSage")

	db, err := database.New(cfg.Database.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	if *rollback {
		if err := db.MigrateDown(); err != nil {
			log.Fatal().Err(err).Msg("failed to roll back migration")
		}
		version, err := db.Version(context.Background())
		if err != nil {
			log.Fatal().Err(err).Msg("failed to read schema version")
		}
		log.Info().Int64("schemaVersion", version).Msg("migration rolled back")
		return
	}

	log.Info().Msg("running database migrations")
	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}
	if version, err := db.Version(context.Background()); err == nil {
		log.Info().Int64("schemaVersion", version).Msg("database ready")
	}

	hub := websocket.NewHub()
	go hub.Run()

	desc := model.Descriptor{
		Name:       cfg.Model.Name,
		FileName:   cfg.Model.FileName,
		URL:        cfg.Model.URL,
		AuthToken:  cfg.Model.AuthToken,
		MinBytes:   cfg.Model.MinBytes,
		MaxBytes:   cfg.Model.MaxBytes,
		SHA256:     cfg.Model.SHA256,
		Candidates: append([]string{cfg.Model.StorageDir}, cfg.Model.CandidatePaths...),
	}
	if err := desc.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid model configuration")
	}

	verifier := model.NewVerifier(log.Logger)
	locator := model.NewLocator(verifier, log.Logger)

	dlCfg := model.DefaultDownloaderConfig()
	if cfg.Model.MaxAttempts > 0 {
		dlCfg.MaxAttempts = cfg.Model.MaxAttempts
	}
	downloader := model.NewDownloader(dlCfg, verifier, log.Logger)

	var factory engine.Factory
	if cfg.Engine.Mock {
		log.Warn().Msg("using mock inference engine")
		factory = mock.Factory(&mock.Engine{})
	} else {
		factory = external.Factory(external.Config{
			Command:   cfg.Engine.Command,
			ExtraArgs: cfg.Engine.ExtraArgs,
		}, log.Logger)
	}

	controller := model.NewController(desc, cfg.Model.StorageDir, locator, downloader, factory, log.Logger)
	defer controller.Close()

	unsubscribe := controller.Subscribe(api.NewHubObserver(hub, log.Logger))
	defer unsubscribe()

	invService := inventory.NewService(db, log.Logger)
	chatService := chat.NewService(db, controller, invService, log.Logger)

	sched, err := scheduler.New(log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create scheduler")
	}
	if err := tasks.RegisterPartialCleanupTask(sched, controller, cfg.Model.StorageDir, cfg.Model.FileName, log.Logger); err != nil {
		log.Fatal().Err(err).Msg("failed to register cleanup task")
	}
	if err := sched.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start scheduler")
	}
	defer sched.Stop()

	server := api.NewServer(cfg, hub, controller, chatService, invService, sched, log.Logger)

	go func() {
		if err := server.Start(cfg.Server.Address()); err != nil {
			log.Info().Msg("server stopped")
		}
	}()

	// Kick off the lifecycle: check local state, optionally start the
	// transfer when the asset is missing.
	go func() {
		state := controller.Start(context.Background())
		if state == model.StateMissing && cfg.Model.AutoDownload {
			if _, err := controller.StartDownload(context.Background()); err != nil {
				log.Error().Err(err).Msg("automatic download failed to start")
			}
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Info().Msg("received shutdown signal")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}

	log.Info().Msg("server stopped")
}
