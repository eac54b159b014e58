package main

import (
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
	"indoormap/internal/converter/handlers"
	"indoormap/internal/palette"
)

// ============================================================
// Converter Service
// ============================================================

func main() {
	cfg := config.Load("converter")
	log := logging.Init(cfg.Service, cfg.Logging)

	cat, err := palette.Load(cfg.PalettePath)
	if err != nil {
		fatal(log, "load palette", err)
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
		BodyLimit:    16 * 1024 * 1024,
		AppName:      "Converter Service",
	})

	// ============================================================
	// Global Middleware
	// ============================================================

	app.Use(recover.New())
	app.Use(middleware.Logger(cfg.Service))

	// ============================================================
	// Routes
	// ============================================================

	health.Register(app)
	handlers.New(cfg.Editor.WallWidth, cfg.Editor.WallHeight, cat).Register(app)

	// ============================================================
	// Server Start
	// ============================================================

	addr := fmt.Sprintf(":%s", cfg.Port)
	log.Info("starting converter service", "addr", addr, "env", cfg.Environment)

	if err := app.Listen(addr); err != nil {
		fatal(log, "listen", err)
	}
}

func fatal(log *slog.Logger, msg string, err error) {
	log.Error(msg, "error", err)
	os.Exit(1)
}
