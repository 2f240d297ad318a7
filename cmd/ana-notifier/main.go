package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ana-notifier/internal/app"
	"ana-notifier/internal/infra/config"
	idb "ana-notifier/internal/infra/database"
	"ana-notifier/internal/infra/email"
	"ana-notifier/internal/infra/httpapi"
	"ana-notifier/internal/infra/logger"
	"ana-notifier/internal/infra/scheduler"
	"ana-notifier/internal/infra/whatsapp"
)

func main() {
	fmt.Println("Ana anniversary notifier starting...")

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Could not load application configuration: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg)
	log := logger.Get()
	log.Infof("Configuration loaded. LogLevel: %s, Environment: %s, HTTP: %s", cfg.LogLevel, cfg.Environment, cfg.HTTPAddr)

	// Initialize Database Connection
	db, err := idb.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("FATAL: Could not connect to database: %v", err)
	}
	defer db.Close()
	log.Info("Database connection established successfully.")

	// Initialize Repositories
	annivRepo := idb.NewPostgresAnniversaryRepository(db)
	groupRepo := idb.NewPostgresGroupRepository(db)
	settingsRepo := idb.NewPostgresUserSettingsRepository(db)
	accountRepo := idb.NewPostgresAccountRepository(db)
	dispatchRepo := idb.NewPostgresDispatchRepository(db)
	log.Info("Repositories initialized.")

	// Initialize Transports
	emailSender := email.NewSendGridAdapter(cfg.SendGridKey, "Ana", cfg.FromEmail)
	waSender := whatsapp.NewTwilioAdapter(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.WhatsAppFrom, cfg.WhatsAppTemplateSID, cfg.SendTimeout)
	log.Info("Notification transports initialized.")

	// Initialize DailyTaskService
	dailyTask := app.NewDailyTaskServiceImpl(
		annivRepo,
		groupRepo,
		settingsRepo,
		accountRepo,
		dispatchRepo,
		emailSender,
		waSender,
		log,
		cfg.SendTimeout,
	)
	log.Info("Daily task service initialized.")

	// Initialize Scheduler
	dailyScheduler := scheduler.NewDailyTaskScheduler(dailyTask, log, cfg.CronSpecDaily)
	if err := dailyScheduler.Start(); err != nil {
		log.Fatalf("FATAL: Could not start daily task scheduler: %v", err)
	}

	// Initialize HTTP Server
	server := httpapi.NewServer(cfg.HTTPAddr, dailyTask, db, cfg.APIToken, log)
	go func() {
		if err := server.Start(); err != nil {
			log.Fatalf("FATAL: HTTP server failed: %v", err)
		}
	}()

	log.Info("Application setup complete. Scheduler and HTTP server are running.")

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit // Block until a signal is received

	log.Info("Shutting down application...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorf("HTTP server shutdown error: %v", err)
	}
	dailyScheduler.Stop()
	// db.Close() is handled by defer
	log.Info("Application shut down gracefully.")
}
