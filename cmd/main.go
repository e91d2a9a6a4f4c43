package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"coordination-service/internal/config"
	"coordination-service/internal/database/postgres"
	"coordination-service/internal/database/redis"
	"coordination-service/internal/event"
	"coordination-service/internal/handlers"
	"coordination-service/internal/ledger"
	"coordination-service/internal/middleware"
	"coordination-service/internal/models"
	"coordination-service/internal/repository"
	"coordination-service/internal/services"

	"github.com/gofiber/fiber/v3"
	"github.com/robfig/cron/v3"
)

func setupLogging() (*os.File, error) {
	logDir := filepath.Join("/agrisa", "log", "coordination_service")
	err := os.MkdirAll(logDir, 0755)
	if err != nil {
		return nil, fmt.Errorf("failed to create log directory: %v", err)
	}

	currentTime := time.Now()
	logFileName := fmt.Sprintf("log_%s.log", currentTime.Format("2006-01-02"))
	logFile := filepath.Join(logDir, logFileName)

	file, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %v", err)
	}

	log.SetOutput(file)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	slog.SetDefault(slog.New(slog.NewJSONHandler(file, nil)))

	return file, nil
}

func main() {
	logFile, err := setupLogging()
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer logFile.Close()

	cfg := config.New()
	identity := ledger.Identity{MSPID: cfg.OrgID}
	slog.Info("Starting coordination service", "org", cfg.OrgID, "port", cfg.Port)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Local reconciliation trail. The service still runs without it; the
	// trail endpoints report it as disabled.
	db, err := postgres.ConnectAndCreateDB(cfg.PostgresCfg)
	if err != nil {
		slog.Error("error connect to database", "error", err)
		go postgres.RetryConnectOnFailed(30*time.Second, &db, cfg.PostgresCfg)
	}

	gatewayClient := ledger.NewGatewayClient(cfg.LedgerCfg)

	approvalRepo := repository.NewApprovalRepository(gatewayClient, cfg.LedgerCfg)
	policyRepo := repository.NewPolicyRepository(gatewayClient, cfg.LedgerCfg)
	claimRepo := repository.NewClaimRepository(gatewayClient, cfg.LedgerCfg)
	poolRepo := repository.NewPoolRepository(gatewayClient, cfg.LedgerCfg)

	approvalService := services.NewApprovalService(approvalRepo, gatewayClient)
	approvalService.RegisterHook(models.RequestPolicyCreation, services.NewPremiumDepositHook(poolRepo))

	if cfg.PayoutCfg.EnableExecuteLocks {
		redisClient, err := redis.NewRedisClient(cfg.RedisCfg.Host, cfg.RedisCfg.Port, cfg.RedisCfg.Password, cfg.RedisCfg.DB)
		if err != nil {
			slog.Error("error connect to redis, execute locks disabled", "error", err)
		} else {
			defer redisClient.Close()
			approvalService.WithRequestLocker(redisClient, time.Duration(cfg.PayoutCfg.ExecuteLockTTLSec)*time.Second)
		}
	}

	payoutService := services.NewAutomaticPayoutService(policyRepo, claimRepo, poolRepo, identity, cfg.PayoutCfg.WorkerCount)

	var reconService *services.ReconciliationService
	if db != nil {
		reconRepo := repository.NewReconciliationRepository(db)
		payoutService.WithReconciliationTrail(reconRepo)
		reconService = services.NewReconciliationService(reconRepo)
	}

	rabbitConn, err := event.ConnectRabbitMQ(cfg.RabbitMQCfg)
	if err != nil {
		slog.Error("error connect to RabbitMQ, running without messaging", "error", err)
	} else {
		defer rabbitConn.Close()

		payoutService.WithRunNotifier(event.NewPayoutPublisher(rabbitConn))

		consumer := event.NewConsensusConsumer(rabbitConn, payoutService)
		if err := consumer.Start(ctx); err != nil {
			slog.Error("failed to start consensus consumer", "error", err)
		}
	}

	if reconService != nil {
		scheduler := cron.New()
		_, err := scheduler.AddFunc(cfg.PayoutCfg.ReconcileSchedule, func() {
			reconService.Sweep(context.Background())
		})
		if err != nil {
			slog.Error("failed to schedule reconciliation sweep", "schedule", cfg.PayoutCfg.ReconcileSchedule, "error", err)
		} else {
			scheduler.Start()
			defer scheduler.Stop()
		}
	}

	app := fiber.New()
	app.Get("/checkhealth", func(c fiber.Ctx) error {
		return c.Status(fiber.StatusOK).SendString("Coordination service is healthy")
	})

	api := app.Group("/coordination/api/v1", middleware.OrgIdentity(cfg.JWTSecret))
	handlers.NewApprovalHandler(approvalService).RegisterRoutes(api)
	handlers.NewPayoutHandler(payoutService, reconService).RegisterRoutes(api)

	go func() {
		<-ctx.Done()
		slog.Info("Shutdown signal received")
		if err := app.Shutdown(); err != nil {
			slog.Error("failed to shut down server", "error", err)
		}
	}()

	slog.Info("Coordination service listening", "port", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
