package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	arrowadapter "github.com/samirrijal/ogcview/internal/adapters/arrow"
	geojsonadapter "github.com/samirrijal/ogcview/internal/adapters/geojson"
	"github.com/samirrijal/ogcview/internal/adapters/http"
	"github.com/samirrijal/ogcview/internal/adapters/memory"
	natsadapter "github.com/samirrijal/ogcview/internal/adapters/nats"
	"github.com/samirrijal/ogcview/internal/adapters/ogcapi"
	"github.com/samirrijal/ogcview/internal/adapters/valkey"
	"github.com/samirrijal/ogcview/internal/core/domain"
	"github.com/samirrijal/ogcview/internal/core/ports"
	"github.com/samirrijal/ogcview/internal/core/usecases"
	"github.com/samirrijal/ogcview/internal/pkg/config"
	"github.com/samirrijal/ogcview/internal/pkg/logging"
	"github.com/samirrijal/ogcview/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("ogcview")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.OTLPAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	readiness := map[string]http.Pinger{"valkey": nil, "nats": nil}

	// Endpoint preferences: Valkey, or process memory when it is down.
	var store ports.KeyValueStore
	cache, err := valkey.New(cfg.Valkey.Addr)
	if err == nil {
		pingCtx, pingCancel := context.WithTimeout(ctx, 2*time.Second)
		err = cache.Ping(pingCtx)
		pingCancel()
		if err != nil {
			cache.Close()
		}
	}
	if err != nil {
		slog.Warn("valkey unavailable, keeping endpoint preferences in memory", "error", err)
		store = memory.NewStore()
	} else {
		defer cache.Close()
		store = cache
		readiness["valkey"] = cache
	}

	activity := usecases.NewActivityLog(usecases.DefaultActivitySize)

	deps := &http.Dependencies{
		Activity:    activity,
		Store:       store,
		EndpointTTL: cfg.Valkey.EndpointTTL,
		Readiness:   readiness,
	}

	if cfg.NATS.Enabled {
		pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats unavailable, activity stays local", "error", err)
		} else {
			defer pub.Close()
			deps.Events = pub
			deps.NATS = pub.Conn()
			readiness["nats"] = pub

			// Durable names may not contain dots.
			host, _ := os.Hostname()
			durable := "ogcview-activity-" + strings.ReplaceAll(host, ".", "-")
			sub, err := natsadapter.NewSubscriber(cfg.NATS.URL, durable)
			if err != nil {
				slog.Warn("nats subscriber unavailable", "error", err)
			} else {
				defer sub.Close()
				if err := activity.Follow(ctx, sub); err != nil {
					slog.Warn("activity subscription failed", "error", err)
				}
			}
		}
	}

	arrowOpts := arrowadapter.Options{
		DecodeGeometry: cfg.Columnar.DecodeGeometry,
		GeometryColumn: cfg.Columnar.GeometryColumn,
	}
	client := ogcapi.NewClient(ogcapi.Options{
		Timeout:     cfg.OGC.Timeout(),
		MaxRowLimit: cfg.OGC.MaxRowLimit,
		UserAgent:   "ogcview/1.0",
	}, geojsonadapter.New(), arrowadapter.New(arrowOpts))

	deps.Source = client
	deps.Catalog = usecases.NewCatalogService(client, cfg.OGC.DefaultEndpoint, cfg.OGC.RowLimit)
	deps.SessionDefaults = usecases.SessionConfig{
		DefaultEndpoint: cfg.OGC.DefaultEndpoint,
		RowLimit:        cfg.OGC.RowLimit,
		Debounce:        cfg.Refresh.Debounce(),
		Width:           cfg.Viewport.Width,
		Height:          cfg.Viewport.Height,
		InitialView: domain.ViewState{
			Longitude: cfg.Viewport.Longitude,
			Latitude:  cfg.Viewport.Latitude,
			Zoom:      cfg.Viewport.Zoom,
		},
		Format: domain.FormatGeoJSON,
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024,
		AppName:      "ogcview",
	})
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "*",
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, If-None-Match",
		ExposeHeaders:    "ETag, Link, X-Request-ID",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("ogcview server starting", "addr", addr, "default_endpoint", cfg.OGC.DefaultEndpoint)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}
