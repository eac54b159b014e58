package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"

	"indoormap/internal/common/config"
	"indoormap/internal/common/health"
	"indoormap/internal/common/logging"
	"indoormap/internal/common/middleware"
	"indoormap/internal/mapdata/handlers"
	"indoormap/internal/mapdata/repository"
	"indoormap/internal/mapdata/service"
)

// ============================================================
// MapData Service
// ============================================================

func main() {
	cfg := config.Load("mapdata")
	log := logging.Init(cfg.Service, cfg.Logging)

	db, err := repository.Open(cfg.Database)
	if err != nil {
		fatal(log, "open db", err)
	}
	defer db.Close()

	repo := repository.New(db, cfg.Database.Driver)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	err = repo.Migrate(ctx)
	cancel()
	if err != nil {
		fatal(log, "migrate", err)
	}

	svc, err := service.New(repo, service.NewObjectStore(cfg.Storage.Root, cfg.Storage.PublicURL))
	if err != nil {
		fatal(log, "init service", err)
	}
	defer svc.Close()

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
		BodyLimit:    32 * 1024 * 1024,
		AppName:      "MapData Service",
	})

	// ============================================================
	// Global Middleware
	// ============================================================

	app.Use(recover.New())
	app.Use(middleware.Logger(cfg.Service))

	// ============================================================
	// Routes
	// ============================================================

	health.Register(app, svc.Ping)
	handlers.New(svc).Register(app)

	// ============================================================
	// Server Start
	// ============================================================

	addr := fmt.Sprintf(":%s", cfg.Port)
	log.Info("starting mapdata service", "addr", addr, "env", cfg.Environment, "driver", cfg.Database.Driver)

	if err := app.Listen(addr); err != nil {
		fatal(log, "listen", err)
	}
}

func fatal(log *slog.Logger, msg string, err error) {
	log.Error(msg, "error", err)
	os.Exit(1)
}
