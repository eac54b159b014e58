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
	"indoormap/internal/gateway/handlers"
	"indoormap/internal/gateway/proxy"
)

// ============================================================
// API Gateway
// ============================================================

func main() {
	cfg := config.Load("gateway")
	log := logging.Init(cfg.Service, cfg.Logging)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
		BodyLimit:    32 * 1024 * 1024,
		AppName:      "API Gateway",
	})

	// ============================================================
	// Global Middleware
	// ============================================================

	app.Use(recover.New())
	app.Use(middleware.CORS(cfg.CORSOrigins...))
	app.Use(middleware.Logger(cfg.Service))

	// ============================================================
	// Routes
	// ============================================================

	p := proxy.New(time.Duration(cfg.WriteTimeout) * time.Second)
	health.Register(app,
		p.Check(cfg.Services.MapData),
		p.Check(cfg.Services.Editor),
		p.Check(cfg.Services.Converter),
	)
	handlers.Register(app)
	handlers.Routes(app.Group("/api/v1"), p, cfg.Services)

	// ============================================================
	// Server Start
	// ============================================================

	addr := fmt.Sprintf(":%s", cfg.Port)
	log.Info("starting api gateway", "addr", addr, "env", cfg.Environment,
		"mapdata", cfg.Services.MapData, "editor", cfg.Services.Editor, "converter", cfg.Services.Converter)

	if err := app.Listen(addr); err != nil {
		fatal(log, "listen", err)
	}
}

func fatal(log *slog.Logger, msg string, err error) {
	log.Error(msg, "error", err)
	os.Exit(1)
}
