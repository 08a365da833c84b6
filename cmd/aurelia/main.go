package main

import (
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/csrf"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"

	"aurelia/internal/catalog"
	"aurelia/internal/config"
	"aurelia/internal/http/handlers"
	applog "aurelia/internal/log"
	"aurelia/internal/repos"
	"aurelia/internal/services"
)

func main() {
	cfg := config.Load()

	// Optional file logging
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

	db, err := repos.OpenDB(cfg.DBDSN)
	if err != nil {
		log.Fatal(err)
	}

	// Account stores live in Redis. A dead Redis at boot is not fatal:
	// authenticated list calls degrade to cached reads until it returns.
	rdb, err := repos.OpenRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Printf("[warn] %v", err)
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	}

	pm, err := catalog.LoadPartitions(cfg.PartitionsFile)
	if err != nil {
		log.Printf("[warn] %v, using built-in partition rules", err)
		pm = catalog.Builtin()
	}

	// Auth wiring
	userRepo := repos.NewUserRepo(db)
	authSvc := &services.AuthService{Users: userRepo}

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			applog.Error(c, "server.error", err, nil)
			// Avoid leaking internals
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"error":   "something went wrong, please try again",
			})
		},
	})
	// Global body size guard
	app.Server().MaxRequestBodySize = 1 << 20 // 1 MiB

	// ---------- Middlewares ----------
	app.Use(requestid.New())
	app.Use(logger.New())
	app.Use(helmet.New())
	// Attach user to context if logged in
	app.Use(func(c *fiber.Ctx) error {
		if sid := c.Cookies("sid"); sid != "" {
			if u, err := authSvc.CurrentUser(sid); err == nil && u != nil {
				c.Locals("user", u)
			}
		}
		return c.Next()
	})
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return strings.HasPrefix(string(c.Request().URI().Path()), "/healthz")
		},
	}))
	// GETs hand out the csrf_ cookie; mutating calls echo it back in the
	// X-Csrf-Token header.
	app.Use(csrf.New(csrf.Config{
		KeyLookup:      "header:X-Csrf-Token",
		CookieName:     "csrf_",
		CookieSameSite: "Lax",
		CookieSecure:   false, // set true behind HTTPS
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			applog.Security(c, "csrf.fail", nil)
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"success": false,
				"error":   "security check failed, refresh and try again",
			})
		},
	}))

	// ---------- App handlers ----------
	deps := handlers.NewDeps(db, rdb, pm, cfg, authSvc)

	api := app.Group("/api/v1")

	// Catalog browse (search throttled a little tighter)
	api.Get("/catalog", deps.CatalogHandler.All)
	api.Get("/catalog/search", limiter.New(limiter.Config{Max: 20, Expiration: time.Minute}), deps.CatalogHandler.Search)
	api.Get("/catalog/categories", deps.CatalogHandler.Categories)
	api.Get("/catalog/product/:id", deps.CatalogHandler.Product)
	api.Get("/catalog/:category", deps.CatalogHandler.Category)

	// Availability probe
	availLimiter := limiter.New(limiter.Config{
		Max:        15,
		Expiration: 30 * time.Second,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP() + "|avail"
		},
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, "rate.availability.hit", nil)
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate limit exceeded, retry soon"})
		},
	})
	api.Get("/availability", availLimiter, deps.AvailabilityHandler.Check)

	// Cart
	api.Get("/cart", deps.CartHandler.Items)
	api.Post("/cart/items", deps.CartHandler.Add)
	api.Put("/cart/items/:id", deps.CartHandler.UpdateQuantity)
	api.Post("/cart/items/:id/increment", deps.CartHandler.Increment)
	api.Post("/cart/items/:id/decrement", deps.CartHandler.Decrement)
	api.Delete("/cart/items/:id", deps.CartHandler.Remove)
	api.Delete("/cart", deps.CartHandler.Clear)

	// Wishlist
	api.Get("/wishlist", deps.WishlistHandler.Items)
	api.Post("/wishlist/items", deps.WishlistHandler.Add)
	api.Put("/wishlist/items/:id", deps.WishlistHandler.UpdateQuantity)
	api.Post("/wishlist/items/:id/increment", deps.WishlistHandler.Increment)
	api.Post("/wishlist/items/:id/decrement", deps.WishlistHandler.Decrement)
	api.Delete("/wishlist/items/:id", deps.WishlistHandler.Remove)
	api.Delete("/wishlist", deps.WishlistHandler.Clear)

	// Orders
	api.Post("/orders", deps.OrderHandler.Place)
	api.Get("/orders/:id", deps.OrderHandler.View)
	api.Get("/orders", handlers.RequireUser(authSvc), deps.OrderHandler.History)

	// Auth (login throttled)
	api.Get("/auth/me", deps.AuthHandler.Me)
	api.Post("/auth/login", limiter.New(limiter.Config{
		Max:        5,
		Expiration: 10 * time.Minute,
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, "rate.login.hit", nil)
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "too many attempts, try again later"})
		},
	}), deps.AuthHandler.Login)
	api.Post("/auth/logout", deps.AuthHandler.Logout)

	// Admin
	admin := api.Group("/admin", handlers.RequireAdmin(authSvc))
	admin.Get("/orders", deps.AdminHandler.Orders)
	admin.Post("/orders/:id/status", deps.AdminHandler.UpdateOrderStatus)
	admin.Get("/alerts", deps.AdminHandler.Alerts)
	admin.Post("/alerts/read-all", deps.AdminHandler.MarkAllAlertsRead)
	admin.Post("/alerts/:id/read", deps.AdminHandler.MarkAlertRead)
	admin.Post("/restock", deps.AdminHandler.Restock)
	admin.Get("/stock", deps.AdminHandler.Stock)
	admin.Get("/users", deps.AdminHandler.UsersList)
	admin.Post("/users/:id/delete", deps.AdminHandler.DeleteUser)

	// Health & 404
	app.Get("/healthz", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"ok": true}) })
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(404).JSON(fiber.Map{"success": false, "error": "not found"})
	})

	log.Fatal(app.Listen(":" + cfg.Port))
}
