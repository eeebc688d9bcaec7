package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"hall_maintenance_service/internal/app"
	"hall_maintenance_service/internal/domain/delivery"
	"hall_maintenance_service/internal/domain/maintenance"
	"hall_maintenance_service/internal/infra/config"
	idb "hall_maintenance_service/internal/infra/database"
	"hall_maintenance_service/internal/infra/email"
	"hall_maintenance_service/internal/infra/logger"
	"hall_maintenance_service/internal/infra/scheduler"
	"hall_maintenance_service/internal/infra/sms"
	"hall_maintenance_service/internal/infra/telegram"

	"gopkg.in/telebot.v3"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatalf("FATAL: Could not load application configuration: %v", err)
	}
	logger.Init(cfg)
	log := logger.Get()
	log.Infof("Configuration loaded. LogLevel: %s, Environment: %s, SweepSpec: %s", cfg.LogLevel, cfg.Environment, cfg.CronSpecSweep)

	// Initialize Database Connection
	db, err := idb.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("FATAL: Could not connect to database: %v", err)
	}
	defer db.Close()
	log.Info("Database connection established successfully.")

	// Initialize Repositories
	hallRepo := idb.NewPostgresHallRepository(db)
	maintRepo := idb.NewPostgresMaintenanceRepository(db)
	log.Info("Repositories initialized.")

	// Channel adapters
	senders := map[maintenance.Channel]delivery.Sender{
		maintenance.ChannelEmail: email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom),
	}
	if cfg.SMSGatewayURL != "" {
		senders[maintenance.ChannelSMS] = sms.NewGatewaySender(cfg.SMSGatewayURL, cfg.SMSGatewayToken, cfg.SMSFrom)
		log.Info("SMS gateway sender enabled.")
	} else {
		log.Warn("SMS_GATEWAY_URL not set; sms notifications will fail until configured.")
	}

	// Engine services
	lifecycleService := app.NewLifecycleService(hallRepo, maintRepo, log)
	dispatchService := app.NewDispatchService(hallRepo, maintRepo, senders, app.DispatchConfig{
		LeadTime:    cfg.NotifyLeadTime,
		MaxRetries:  cfg.MaxSendAttempts,
		RetryBase:   cfg.SendRetryBase,
		SendTimeout: cfg.SendTimeout,
	}, log)
	sweepService := app.NewSweepService(hallRepo, maintRepo, lifecycleService, dispatchService, cfg.SweepWorkers, log)
	log.Info("Engine services initialized.")

	// Optional ops alerting over Telegram
	var alerter scheduler.SweepAlerter
	if cfg.TelegramToken != "" && cfg.OpsChatID != 0 {
		bot, err := telebot.NewBot(telebot.Settings{
			Token:  cfg.TelegramToken,
			Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
		})
		if err != nil {
			log.Fatalf("FATAL: Could not create Telegram bot for ops alerts: %v", err)
		}
		alerter = telegram.NewOpsAlerter(bot, cfg.OpsChatID)
		log.Infof("Ops alerter enabled for chat %d.", cfg.OpsChatID)
	}

	// Start the sweep scheduler
	sweepScheduler := scheduler.NewSweepScheduler(sweepService, alerter, log, cfg.CronSpecSweep)
	if err := sweepScheduler.Start(); err != nil {
		log.Fatalf("FATAL: Could not start sweep scheduler: %v", err)
	}

	log.Info("Application setup complete. Sweep scheduler is running.")

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit // Block until a signal is received

	log.Info("Shutting down application...")
	sweepScheduler.Stop()
	// db.Close() is handled by defer
	log.Info("Application shut down gracefully.")
}
