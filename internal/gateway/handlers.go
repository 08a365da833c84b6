package gateway

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"aurelia/internal/domain"
	applog "aurelia/internal/log"
	"aurelia/internal/validate"
)

// Handler exposes the gateway API consumed by the storefront.
type Handler struct {
	Store *Store
}

type alertEnvelope struct {
	Action       string             `json:"action"`
	Notification *domain.StockAlert `json:"notification"`
	ID           string             `json:"id"`
}

// GetPartition serves GET /api/v1/partition?category=<name>.
func (h *Handler) GetPartition(c *fiber.Ctx) error {
	category, ok := validate.Category(c.Query("category"))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid category"})
	}
	doc, err := h.Store.Partition(category)
	if err != nil {
		if errors.Is(err, domain.ErrPartitionNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "partition not found"})
		}
		applog.Error(c, "gateway.partition.read", err, map[string]any{"category": category})
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(doc)
}

// UpdateStock serves POST /api/v1/update-stock: the whole-partition rewrite
// with one product's stock mutated, guarded by the version the caller read.
func (h *Handler) UpdateStock(c *fiber.Ctx) error {
	var req domain.StockUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(domain.StockUpdateResponse{Error: "malformed body"})
	}
	if _, ok := validate.Category(req.Category); !ok {
		return c.Status(fiber.StatusBadRequest).JSON(domain.StockUpdateResponse{Error: "invalid category"})
	}

	if err := h.Store.ReplacePartition(req); err != nil {
		switch {
		case errors.Is(err, domain.ErrConflict):
			applog.Info(c, "gateway.stock.conflict", map[string]any{
				"category": req.Category, "product": req.ProductID, "version": req.Version,
			})
			return c.Status(fiber.StatusConflict).JSON(domain.StockUpdateResponse{Error: "version conflict"})
		case errors.Is(err, domain.ErrPartitionNotFound):
			return c.Status(fiber.StatusNotFound).JSON(domain.StockUpdateResponse{Error: "partition not found"})
		default:
			applog.Error(c, "gateway.stock.write", err, map[string]any{"category": req.Category})
			return c.Status(fiber.StatusInternalServerError).JSON(domain.StockUpdateResponse{Error: err.Error()})
		}
	}

	applog.Audit(c, "gateway.stock.update", map[string]any{
		"category": req.Category, "product": req.ProductID,
		"previous": req.PreviousStock, "new": req.NewStock, "reduced": req.QuantityReduced,
	})
	return c.JSON(domain.StockUpdateResponse{Success: true})
}

// ListAlerts serves GET /api/v1/alerts, newest first.
func (h *Handler) ListAlerts(c *fiber.Ctx) error {
	alerts, err := h.Store.Alerts()
	if err != nil {
		applog.Error(c, "gateway.alerts.read", err, nil)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(alerts)
}

// PostAlerts serves POST /api/v1/alerts with an action envelope:
// add, markRead, or markAllRead.
func (h *Handler) PostAlerts(c *fiber.Ctx) error {
	var env alertEnvelope
	if err := c.BodyParser(&env); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(domain.StockUpdateResponse{Error: "malformed body"})
	}

	switch env.Action {
	case "add":
		if env.Notification == nil {
			return c.Status(fiber.StatusBadRequest).JSON(domain.StockUpdateResponse{Error: "missing notification"})
		}
		if err := h.Store.AppendAlert(*env.Notification); err != nil {
			applog.Error(c, "gateway.alerts.append", err, nil)
			return c.Status(fiber.StatusInternalServerError).JSON(domain.StockUpdateResponse{Error: err.Error()})
		}
		applog.Audit(c, "gateway.alerts.add", map[string]any{
			"type": env.Notification.Type, "products": len(env.Notification.Products),
		})
		return c.Status(fiber.StatusCreated).JSON(domain.StockUpdateResponse{Success: true})

	case "markRead":
		if env.ID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(domain.StockUpdateResponse{Error: "missing id"})
		}
		found, err := h.Store.MarkRead(env.ID)
		if err != nil {
			applog.Error(c, "gateway.alerts.markread", err, nil)
			return c.Status(fiber.StatusInternalServerError).JSON(domain.StockUpdateResponse{Error: err.Error()})
		}
		if !found {
			return c.Status(fiber.StatusNotFound).JSON(domain.StockUpdateResponse{Error: "unknown notification"})
		}
		return c.JSON(domain.StockUpdateResponse{Success: true})

	case "markAllRead":
		if err := h.Store.MarkAllRead(); err != nil {
			applog.Error(c, "gateway.alerts.markallread", err, nil)
			return c.Status(fiber.StatusInternalServerError).JSON(domain.StockUpdateResponse{Error: err.Error()})
		}
		return c.JSON(domain.StockUpdateResponse{Success: true})

	default:
		return c.Status(fiber.StatusBadRequest).JSON(domain.StockUpdateResponse{Error: "unknown action"})
	}
}

// Restock serves POST /api/v1/partition: an unconditional partition rewrite
// for admin tooling.
func (h *Handler) Restock(c *fiber.Ctx) error {
	var doc domain.PartitionDoc
	if err := c.BodyParser(&doc); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "malformed body"})
	}
	category, ok := validate.Category(doc.Category)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid category"})
	}
	if err := h.Store.UpsertPartition(category, doc.Products); err != nil {
		applog.Error(c, "gateway.partition.upsert", err, map[string]any{"category": category})
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	applog.Audit(c, "gateway.partition.restock", map[string]any{"category": category, "products": len(doc.Products)})
	return c.JSON(domain.StockUpdateResponse{Success: true})
}
