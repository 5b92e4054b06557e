package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"inventory-assistant-be/internal/bootstrap"
	"inventory-assistant-be/internal/config"
	"inventory-assistant-be/internal/pkg/logger"
	"inventory-assistant-be/internal/server"
	"inventory-assistant-be/internal/tracer"
	"inventory-assistant-be/pkg/database"
)

const shutdownGrace = 15 * time.Second

func main() {
	// 1. Load Configuration
	cfg := config.Load()
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. Tracing
	shutdownTracer := tracer.InitTracer(cfg.Otel, sysLogger)

	// 3. Initialize Database
	gormDB, err := database.NewGormDBFromDSN(cfg.Database.Connection, !cfg.IsProduction())
	if err != nil {
		log.Panicf("Unable to connect to GORM DB: %v", err)
	}

	// 4. Bootstrap Dependencies (Container)
	container, err := bootstrap.NewContainer(gormDB, cfg, sysLogger)
	if err != nil {
		log.Panicf("Unable to build container: %v", err)
	}

	// 5. Start Background Services
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	if err := container.Start(runCtx); err != nil {
		log.Panicf("Unable to start background services: %v", err)
	}

	// 6. Run Server
	srv := server.New(cfg, container)
	go func() {
		if err := srv.Run(); err != nil {
			sysLogger.Error("Main", "HTTP server stopped", map[string]interface{}{"error": err.Error()})
			stop()
		}
	}()

	<-ctx.Done()
	sysLogger.Info("Main", "Shutting down", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		sysLogger.Warn("Main", "HTTP server shutdown failed", map[string]interface{}{"error": err.Error()})
	}
	container.Shutdown(shutdownCtx, cfg.Maintenance.StopTimeout)
	cancelRun()

	if err := shutdownTracer(shutdownCtx); err != nil {
		sysLogger.Warn("Main", "Tracer shutdown failed", map[string]interface{}{"error": err.Error()})
	}
	sysLogger.Info("Main", "Stopped", nil)
}
