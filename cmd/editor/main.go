package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"

	"indoormap/internal/common/config"
	"indoormap/internal/common/health"
	"indoormap/internal/common/logging"
	"indoormap/internal/common/middleware"
	"indoormap/internal/editor"
	"indoormap/internal/editor/handlers"
	"indoormap/internal/editor/remote"
	"indoormap/internal/editor/sessions"
	"indoormap/internal/editor/surface"
	"indoormap/internal/mapdata/models"
	"indoormap/internal/palette"
)

const (
	sessionIdle   = 30 * time.Minute
	expireEvery   = time.Minute
	paletteSettle = 200 * time.Millisecond
)

// ============================================================
// Editor Service
// ============================================================

func main() {
	cfg := config.Load("editor")
	log := logging.Init(cfg.Service, cfg.Logging)

	cat, err := palette.Load(cfg.PalettePath)
	if err != nil {
		fatal(log, "load palette", err)
	}
	if cfg.PalettePath != "" {
		w, err := palette.Watch(cat, cfg.PalettePath, paletteSettle, logging.WithComponent("palette"))
		if err != nil {
			log.Warn("palette hot reload disabled", "path", cfg.PalettePath, "error", err)
		} else {
			defer w.Close()
		}
	}

	edCfg := editor.ConfigFrom(cfg.Editor)
	rem := remote.NewHTTPRemote(cfg.Services.MapData, edCfg.RemoteTimeout)
	reg := sessions.NewRegistry(func(c *surface.Canvas) *editor.Editor {
		return editor.New(edCfg, c, rem, cat, logging.WithComponent("editor"))
	})

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
		BodyLimit:    16 * 1024 * 1024,
		AppName:      "Editor Service",
	})

	// ============================================================
	// Global Middleware
	// ============================================================

	app.Use(recover.New())
	app.Use(middleware.Logger(cfg.Service))

	// ============================================================
	// Routes
	// ============================================================

	health.Register(app, func(ctx context.Context) error {
		_, err := rem.List(ctx, models.TableBuildings)
		return err
	})
	handlers.New(reg, cat).Register(app)

	// ============================================================
	// Background
	// ============================================================

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		t := time.NewTicker(expireEvery)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if n := reg.Expire(ctx, sessionIdle); n > 0 {
					log.Info("expired idle sessions", "count", n)
				}
			}
		}
	}()

	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := reg.CloseAll(shutdown); err != nil {
			log.Warn("sessions closed with unsynced writes", "error", err)
		}
		_ = app.ShutdownWithContext(shutdown)
	}()

	// ============================================================
	// Server Start
	// ============================================================

	addr := fmt.Sprintf(":%s", cfg.Port)
	log.Info("starting editor service", "addr", addr, "env", cfg.Environment, "mapdata", cfg.Services.MapData)

	if err := app.Listen(addr); err != nil {
		fatal(log, "listen", err)
	}
}

func fatal(log *slog.Logger, msg string, err error) {
	log.Error(msg, "error", err)
	os.Exit(1)
}
