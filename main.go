package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"gopkg.in/natefinch/lumberjack.v2"

	"vistream/api"
	"vistream/config"
	"vistream/handlers"
	"vistream/internal/database"
	"vistream/internal/ratelimit"
	"vistream/services/family"
	"vistream/services/metadata"
	"vistream/services/resume"
	"vistream/services/scheduler"
	"vistream/services/users"
)

func main() {
	portOverride := flag.Int("port", 0, "override server port from config")
	flag.Parse()

	fmt.Println("vistream backend starting...")

	configPath := os.Getenv("VISTREAM_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("data", "settings.json")
	}

	cfgManager := config.NewManager(configPath)
	settings, err := cfgManager.Load()
	if err != nil {
		log.Fatalf("failed to load settings: %v", err)
	}

	// Set up file logging with rotation
	if settings.Log.File != "" {
		logDir := filepath.Dir(settings.Log.File)
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			log.Printf("warning: could not create log directory %s: %v", logDir, err)
		} else {
			fileWriter := &lumberjack.Logger{
				Filename:   settings.Log.File,
				MaxSize:    settings.Log.MaxSize,
				MaxBackups: settings.Log.MaxBackups,
				MaxAge:     settings.Log.MaxAge,
				Compress:   settings.Log.Compress,
			}
			log.SetOutput(io.MultiWriter(os.Stdout, fileWriter))
			log.SetFlags(log.LstdFlags | log.Lshortfile)
			log.Printf("logging to file: %s", settings.Log.File)
		}
	}

	if *portOverride > 0 {
		settings.Server.Port = *portOverride
	}

	db, err := database.Open(settings.Database.Path)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	userRepo := database.NewUserRepository(db.Connection())
	watchRepo := database.NewWatchRepository(db.Connection())
	familyRepo := database.NewFamilyRepository(db.Connection())

	metadataService := metadata.NewService(settings.Metadata.TMDBAPIKey, settings.Metadata.Language, settings.Metadata.TTLHours)
	resumeService := resume.NewService(watchRepo, metadataService)
	usersService := users.NewService(userRepo, time.Duration(settings.Plans.TrialDays)*24*time.Hour)
	familyService := family.NewService(familyRepo, userRepo, time.Duration(settings.Plans.InviteTTLHours)*time.Hour)

	limiter := ratelimit.New(settings.RateLimit.RequestsPerMinute, settings.RateLimit.Burst)

	schedulerService := scheduler.NewService(time.Duration(settings.Scheduler.CheckIntervalSeconds) * time.Second)
	schedulerService.Register(scheduler.Task{
		ID:       "expire-trials",
		Name:     "Expire lapsed plan trials",
		Interval: time.Duration(settings.Scheduler.TrialExpiryIntervalHours) * time.Hour,
		Run: func(ctx context.Context) (int, error) {
			return familyService.ExpireTrials(ctx, time.Now().UTC())
		},
	})
	schedulerService.Register(scheduler.Task{
		ID:       "expire-invites",
		Name:     "Expire lapsed family invites",
		Interval: time.Duration(settings.Scheduler.InviteExpiryIntervalHours) * time.Hour,
		Run: func(ctx context.Context) (int, error) {
			n, err := familyService.ExpireInvites(ctx, time.Now().UTC())
			return int(n), err
		},
	})
	schedulerService.Register(scheduler.Task{
		ID:       "sweep-rate-limits",
		Name:     "Sweep idle rate limit buckets",
		Interval: time.Hour,
		Run: func(ctx context.Context) (int, error) {
			return limiter.Sweep(time.Hour), nil
		},
	})
	schedulerService.Start(context.Background())

	r := mux.NewRouter()
	api.Register(
		r,
		handlers.NewUsersHandler(usersService),
		handlers.NewWatchHandler(resumeService, watchRepo, usersService),
		handlers.NewFamilyHandler(familyService),
		handlers.NewSchedulerHandler(schedulerService),
		limiter,
	)

	addr := fmt.Sprintf("%s:%d", settings.Server.Host, settings.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-shutdownChan
	log.Println("shutdown signal received, cleaning up...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	schedulerService.Stop(shutdownCtx)

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}
	log.Println("shutdown complete")
}
