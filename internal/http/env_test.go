package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/csrf"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"

	"aurelia/internal/catalog"
	"aurelia/internal/config"
	"aurelia/internal/domain"
	"aurelia/internal/http/handlers"
	applog "aurelia/internal/log"
	"aurelia/internal/repos"
	"aurelia/internal/services"
)

// gatewayStub stands in for catalogd during handler tests.
type gatewayStub struct {
	mu     sync.Mutex
	parts  map[string]*domain.PartitionDoc
	alerts []domain.StockAlert
}

func (g *gatewayStub) seed(category string, products ...domain.CatalogItem) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.parts[category] = &domain.PartitionDoc{Category: category, Products: products, Version: 1}
}

func (g *gatewayStub) stockOf(t *testing.T, category, id string) int {
	t.Helper()
	g.mu.Lock()
	defer g.mu.Unlock()
	doc, ok := g.parts[category]
	if !ok {
		t.Fatalf("no partition %s", category)
	}
	for _, p := range doc.Products {
		if p.ID == id {
			return p.Stock
		}
	}
	t.Fatalf("no product %s in %s", id, category)
	return 0
}

func (g *gatewayStub) alertLog() []domain.StockAlert {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]domain.StockAlert(nil), g.alerts...)
}

func (g *gatewayStub) partition(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if r.Method == http.MethodPost {
		var doc domain.PartitionDoc
		if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(domain.StockUpdateResponse{Error: "bad body"})
			return
		}
		version := int64(1)
		if cur, ok := g.parts[doc.Category]; ok {
			version = cur.Version + 1
		}
		doc.Version = version
		g.parts[doc.Category] = &doc
		json.NewEncoder(w).Encode(domain.StockUpdateResponse{Success: true})
		return
	}
	doc, ok := g.parts[r.URL.Query().Get("category")]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]any{"error": "partition not found"})
		return
	}
	json.NewEncoder(w).Encode(doc)
}

func (g *gatewayStub) updateStock(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var req domain.StockUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(domain.StockUpdateResponse{Error: "bad body"})
		return
	}
	doc, ok := g.parts[req.Category]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(domain.StockUpdateResponse{Error: "partition not found"})
		return
	}
	if req.Version != doc.Version {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(domain.StockUpdateResponse{Error: "version conflict"})
		return
	}
	doc.Products = req.Products
	doc.Version++
	json.NewEncoder(w).Encode(domain.StockUpdateResponse{Success: true})
}

func (g *gatewayStub) alertsEndpoint(w http.ResponseWriter, r *http.Request) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if r.Method == http.MethodGet {
		json.NewEncoder(w).Encode(g.alerts)
		return
	}
	var env struct {
		Action       string             `json:"action"`
		Notification *domain.StockAlert `json:"notification"`
		ID           string             `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(domain.StockUpdateResponse{Error: "bad envelope"})
		return
	}
	switch env.Action {
	case "add":
		if env.Notification == nil {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(domain.StockUpdateResponse{Error: "missing notification"})
			return
		}
		g.alerts = append([]domain.StockAlert{*env.Notification}, g.alerts...)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(domain.StockUpdateResponse{Success: true})
	case "markRead":
		for i := range g.alerts {
			if g.alerts[i].ID == env.ID {
				g.alerts[i].Read = true
				json.NewEncoder(w).Encode(domain.StockUpdateResponse{Success: true})
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(domain.StockUpdateResponse{Error: "unknown notification"})
	case "markAllRead":
		for i := range g.alerts {
			g.alerts[i].Read = true
		}
		json.NewEncoder(w).Encode(domain.StockUpdateResponse{Success: true})
	default:
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(domain.StockUpdateResponse{Error: "unknown action"})
	}
}

func newGatewayStub(t *testing.T) (*gatewayStub, string) {
	t.Helper()
	g := &gatewayStub{parts: map[string]*domain.PartitionDoc{}}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/partition", g.partition)
	mux.HandleFunc("/api/v1/update-stock", g.updateStock)
	mux.HandleFunc("/api/v1/alerts", g.alertsEndpoint)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return g, srv.URL
}

// apiEnv wires the storefront app the way main does, against in-memory
// SQLite, miniredis and the gateway stub.
type apiEnv struct {
	App     *fiber.App
	Users   *repos.UserRepo
	Orders  *repos.OrderRepo
	Auth    *services.AuthService
	Gateway *gatewayStub
	Cfg     config.Config

	csrfOnce sync.Once
	csrfTok  string
}

func newAPIApp(t *testing.T) *apiEnv {
	t.Helper()
	db, err := repos.OpenDB(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	gw, gwURL := newGatewayStub(t)

	cfg := config.Config{
		GatewayURL:     gwURL,
		GatewayTimeout: 2 * time.Second,
		RemoteTimeout:  time.Second,
		PaymentSecret:  "test-secret",
	}

	userRepo := repos.NewUserRepo(db)
	authSvc := &services.AuthService{Users: userRepo}

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			applog.Error(c, "server.error", err, nil)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"error":   "something went wrong, please try again",
			})
		},
	})
	app.Server().MaxRequestBodySize = 1 << 20
	app.Use(requestid.New())
	app.Use(func(c *fiber.Ctx) error {
		if sid := c.Cookies("sid"); sid != "" {
			if u, err := authSvc.CurrentUser(sid); err == nil && u != nil {
				c.Locals("user", u)
			}
		}
		return c.Next()
	})
	app.Use(limiter.New(limiter.Config{Max: 1000, Expiration: time.Minute}))
	app.Use(csrf.New(csrf.Config{
		KeyLookup:      "header:X-Csrf-Token",
		CookieName:     "csrf_",
		CookieSameSite: "Lax",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			applog.Security(c, "csrf.fail", nil)
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"success": false,
				"error":   "security check failed, refresh and try again",
			})
		},
	}))

	deps := handlers.NewDeps(db, rdb, catalog.Builtin(), cfg, authSvc)

	api := app.Group("/api/v1")
	api.Get("/catalog", deps.CatalogHandler.All)
	api.Get("/catalog/search", deps.CatalogHandler.Search)
	api.Get("/catalog/categories", deps.CatalogHandler.Categories)
	api.Get("/catalog/product/:id", deps.CatalogHandler.Product)
	api.Get("/catalog/:category", deps.CatalogHandler.Category)
	api.Get("/availability", deps.AvailabilityHandler.Check)

	api.Get("/cart", deps.CartHandler.Items)
	api.Post("/cart/items", deps.CartHandler.Add)
	api.Put("/cart/items/:id", deps.CartHandler.UpdateQuantity)
	api.Post("/cart/items/:id/increment", deps.CartHandler.Increment)
	api.Post("/cart/items/:id/decrement", deps.CartHandler.Decrement)
	api.Delete("/cart/items/:id", deps.CartHandler.Remove)
	api.Delete("/cart", deps.CartHandler.Clear)

	api.Get("/wishlist", deps.WishlistHandler.Items)
	api.Post("/wishlist/items", deps.WishlistHandler.Add)
	api.Delete("/wishlist/items/:id", deps.WishlistHandler.Remove)
	api.Delete("/wishlist", deps.WishlistHandler.Clear)

	api.Post("/orders", deps.OrderHandler.Place)
	api.Get("/orders/:id", deps.OrderHandler.View)
	api.Get("/orders", handlers.RequireUser(authSvc), deps.OrderHandler.History)

	api.Get("/auth/me", deps.AuthHandler.Me)
	api.Post("/auth/login", deps.AuthHandler.Login)
	api.Post("/auth/logout", deps.AuthHandler.Logout)

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

	app.Use(func(c *fiber.Ctx) error {
		return c.Status(404).JSON(fiber.Map{"success": false, "error": "not found"})
	})

	return &apiEnv{
		App:     app,
		Users:   userRepo,
		Orders:  repos.NewOrderRepo(db),
		Auth:    authSvc,
		Gateway: gw,
		Cfg:     cfg,
	}
}

func extractCookie(resp *http.Response, name string) string {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

// csrf fetches the anti-forgery token once per env.
func (e *apiEnv) csrf(t *testing.T) string {
	t.Helper()
	e.csrfOnce.Do(func() {
		resp, err := e.App.Test(httptest.NewRequest("GET", "/api/v1/auth/me", nil))
		if err != nil {
			t.Fatalf("fetch csrf: %v", err)
		}
		e.csrfTok = extractCookie(resp, "csrf_")
	})
	if e.csrfTok == "" {
		t.Fatal("csrf token missing")
	}
	return e.csrfTok
}

// do runs one request against the app. Mutating methods carry the csrf
// token; sid scopes the caller's session.
func (e *apiEnv) do(t *testing.T, method, target, sid string, body any) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method != http.MethodGet && method != http.MethodHead {
		tok := e.csrf(t)
		req.Header.Set("X-Csrf-Token", tok)
		req.AddCookie(&http.Cookie{Name: "csrf_", Value: tok})
	}
	if sid != "" {
		req.AddCookie(&http.Cookie{Name: "sid", Value: sid})
	}
	resp, err := e.App.Test(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, target, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode body: %v", err)
	}
}
