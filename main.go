package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"popcorn/api"
	"popcorn/config"
	"popcorn/handlers"
	"popcorn/internal/database"
	"popcorn/services/durable"
	"popcorn/services/omdb"
	"popcorn/services/scheduler"
	"popcorn/services/session"
	"popcorn/services/watched"
	"popcorn/utils"

	"github.com/gorilla/mux"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	portOverride := flag.Int("port", 0, "override server port from config")
	flag.Parse()

	fmt.Println("🍿 popcorn backend starting...")

	configPath := os.Getenv("POPCORN_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("cache", "settings.json")
	}

	cfgManager := config.NewManager(configPath)
	settings, err := cfgManager.Load()
	if err != nil {
		log.Fatalf("failed to load settings: %v", err)
	}
	config.ApplyEnv(&settings)

	logger := setupLogging(settings.Log)

	if *portOverride > 0 {
		settings.Server.Port = *portOverride
	}

	settings.Server.PIN = strings.TrimSpace(settings.Server.PIN)
	if settings.Server.RequirePIN {
		if settings.Server.PIN == "" {
			pin, err := utils.GeneratePIN()
			if err != nil {
				log.Fatalf("failed to generate PIN: %v", err)
			}
			settings.Server.PIN = pin
			if err := cfgManager.Save(settings); err != nil {
				log.Fatalf("failed to persist generated PIN: %v", err)
			}
		}
		if !utils.ValidatePIN(settings.Server.PIN) {
			log.Fatalf("configured PIN must be 6 digits")
		}
		fmt.Printf("🔑 popcorn PIN: %s\n", settings.Server.PIN)
	}
	pin := ""
	if settings.Server.RequirePIN {
		pin = settings.Server.PIN
	}

	if settings.OMDb.APIKey == "" {
		logger.Warn("omdb api key not configured; searches will fail until OMDB_API_KEY is set")
	}

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	slot, closeSlot, err := openSlot(startupCtx, settings.Storage)
	startupCancel()
	if err != nil {
		log.Fatalf("failed to open %s storage: %v", settings.Storage.Backend, err)
	}
	logger.Info("watched list storage ready", "backend", slot.Name(), "key", settings.Storage.SlotKey)

	watchedService, err := watched.Open(context.Background(), slot, logger)
	if err != nil {
		log.Fatalf("failed to load watched list: %v", err)
	}

	omdbClient := omdb.NewClient(omdb.Config{
		BaseURL:           settings.OMDb.BaseURL,
		APIKey:            settings.OMDb.APIKey,
		Timeout:           time.Duration(settings.OMDb.TimeoutSeconds) * time.Second,
		RequestsPerSecond: settings.OMDb.RequestsPerSecond,
		Burst:             settings.OMDb.Burst,
		DetailRetries:     settings.OMDb.DetailRetries,
		Logger:            logger,
	})

	sessions := session.NewManager(omdbClient, omdbClient, watchedService, session.Config{
		AppTitle:       settings.App.Title,
		MaxRating:      settings.App.MaxRating,
		RatingMessages: settings.App.RatingMessages,
		Logger:         logger,
	})

	posterHandler := handlers.NewPosterHandler(nil, settings.Posters.CacheDirectory, settings.Posters.AllowedHosts)

	tasks := scheduler.NewService(time.Minute)
	registerTasks(tasks, sessions, posterHandler, settings)
	if err := tasks.Start(context.Background()); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}

	var r *mux.Router = utils.NewRouter()
	api.Register(r, pin,
		handlers.NewMoviesHandler(omdbClient),
		handlers.NewWatchedHandler(watchedService),
		handlers.NewSessionsHandler(sessions),
		posterHandler,
		handlers.NewTasksHandler(tasks),
	)

	addr := fmt.Sprintf("%s:%d", settings.Server.Host, settings.Server.Port)
	fmt.Printf("Server starting on %s\n", addr)

	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // event streams stay open
		IdleTimeout:  120 * time.Second,
	}

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-shutdownChan
	log.Println("🛑 Shutdown signal received, cleaning up...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := tasks.Stop(shutdownCtx); err != nil {
		log.Printf("Scheduler shutdown error: %v", err)
	}
	// Sessions first so open event streams end before the server waits on them.
	sessions.Close()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	if err := closeSlot(); err != nil {
		log.Printf("Storage close error: %v", err)
	}

	log.Println("✅ Shutdown complete")
}

// setupLogging sends both the standard logger and slog to stdout and the
// rotating log file.
func setupLogging(cfg config.LogConfig) *slog.Logger {
	var out io.Writer = os.Stdout
	if cfg.File != "" {
		logDir := filepath.Dir(cfg.File)
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			log.Printf("Warning: could not create log directory %s: %v", logDir, err)
		} else {
			out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
				Filename:   cfg.File,
				MaxSize:    cfg.MaxSize,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAge,
				Compress:   cfg.Compress,
			})
		}
	}
	log.SetOutput(out)
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	if cfg.File != "" {
		log.Printf("Logging to file: %s", cfg.File)
	}
	return logger
}

// openSlot opens the configured storage backend. The returned func releases it.
func openSlot(ctx context.Context, cfg config.StorageSettings) (durable.Slot, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Backend {
	case config.StorageBackendFile:
		slot, err := durable.NewFileSlot(nil, cfg.Directory, cfg.SlotKey)
		return slot, noop, err

	case config.StorageBackendSQLite:
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
			return nil, nil, err
		}
		db, err := database.NewDB(database.Config{DatabasePath: cfg.SQLitePath})
		if err != nil {
			return nil, nil, err
		}
		return durable.NewSQLiteSlot(db, cfg.SlotKey), db.Close, nil

	case config.StorageBackendRedis:
		slot, err := durable.NewRedisSlot(ctx, durable.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, cfg.SlotKey)
		if err != nil {
			return nil, nil, err
		}
		return slot, slot.Close, nil

	case config.StorageBackendBadger:
		slot, err := durable.OpenBadgerSlot(cfg.BadgerPath, cfg.SlotKey)
		if err != nil {
			return nil, nil, err
		}
		return slot, slot.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// registerTasks schedules idle session pruning and poster cache trimming.
func registerTasks(tasks *scheduler.Service, sessions *session.Manager, posters *handlers.PosterHandler, settings config.Settings) {
	maxIdle := time.Duration(settings.App.SessionIdleMinutes) * time.Minute
	tasks.Register(scheduler.Task{
		ID:       "prune-sessions",
		Name:     "Prune idle sessions",
		Interval: max(maxIdle/2, time.Minute),
		Run: func(context.Context) (int, error) {
			return sessions.PruneIdle(maxIdle), nil
		},
	})

	maxAge := time.Duration(settings.Posters.CacheMaxAgeDays) * 24 * time.Hour
	tasks.Register(scheduler.Task{
		ID:       "prune-posters",
		Name:     "Trim poster cache",
		Interval: 6 * time.Hour,
		Run: func(context.Context) (int, error) {
			return posters.PruneCache(maxAge)
		},
	})
}
