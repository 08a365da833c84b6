package main

import (
	"io"
	"log"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"aurelia/internal/config"
	"aurelia/internal/gateway"
	applog "aurelia/internal/log"
)

// catalogd owns the catalog partitions and the stock notification log. The
// storefront talks to it over HTTP and never touches its database directly.
func main() {
	cfg := config.LoadGateway()

	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			log.Printf("[warn] could not open log file %s: %v", cfg.LogFile, err)
		} else {
			mw := io.MultiWriter(os.Stdout, f)
			log.SetOutput(mw)
			applog.SetOutput(mw)
		}
	}

	store, err := gateway.Open(cfg.DBDSN)
	if err != nil {
		log.Fatal(err)
	}

	h := &gateway.Handler{Store: store}

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			applog.Error(c, "gateway.error", err, nil)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"error":   "internal error",
			})
		},
	})
	app.Server().MaxRequestBodySize = 1 << 20 // 1 MiB

	app.Use(requestid.New())
	app.Use(logger.New())

	api := app.Group("/api/v1")
	api.Get("/partition", h.GetPartition)
	api.Post("/partition", h.Restock)
	api.Post("/update-stock", h.UpdateStock)
	api.Get("/alerts", h.ListAlerts)
	api.Post("/alerts", h.PostAlerts)

	app.Get("/healthz", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"ok": true}) })

	log.Fatal(app.Listen(":" + cfg.Port))
}
