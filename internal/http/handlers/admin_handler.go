package handlers

import (
	"errors"

	"aurelia/internal/catalog"
	"aurelia/internal/domain"
	applog "aurelia/internal/log"
	"aurelia/internal/repos"
	"aurelia/internal/validate"

	"github.com/gofiber/fiber/v2"
)

type AdminHandler struct {
	OrderRepo  *repos.OrderRepo
	Users      *repos.UserRepo
	Catalog    *catalog.Client
	Partitions *catalog.PartitionMap
}

// GET /api/v1/admin/orders
func (h *AdminHandler) Orders(c *fiber.Ctx) error {
	ords, err := h.OrderRepo.ListLatest(100)
	if err != nil {
		applog.Error(c, "admin.orders.list.fail", err, nil)
		return jsonError(c, 500, "could not load orders")
	}
	if ords == nil {
		ords = []domain.Order{}
	}
	return c.JSON(fiber.Map{"success": true, "orders": ords})
}

// POST /api/v1/admin/orders/:id/status
func (h *AdminHandler) UpdateOrderStatus(c *fiber.Ctx) error {
	id := c.Params("id")
	var req struct {
		Status string `json:"status"`
	}
	if err := c.BodyParser(&req); err != nil || id == "" || req.Status == "" {
		return jsonError(c, 400, "missing id or status")
	}
	if err := h.OrderRepo.UpdateStatus(id, req.Status); err != nil {
		applog.Error(c, "admin.orders.update.fail", err, map[string]any{"order_id": id})
		return jsonError(c, 400, "could not update status")
	}
	applog.Audit(c, "admin.orders.update", map[string]any{"order_id": id, "status": req.Status})
	return c.JSON(fiber.Map{"success": true})
}

// GET /api/v1/admin/alerts
func (h *AdminHandler) Alerts(c *fiber.Ctx) error {
	alerts, err := h.Catalog.Alerts(c.Context())
	if err != nil {
		applog.Error(c, "admin.alerts.list.fail", err, nil)
		return jsonError(c, fiber.StatusBadGateway, "could not load alerts")
	}
	if alerts == nil {
		alerts = []domain.StockAlert{}
	}
	return c.JSON(fiber.Map{"success": true, "alerts": alerts})
}

// POST /api/v1/admin/alerts/:id/read
func (h *AdminHandler) MarkAlertRead(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return jsonError(c, 400, "missing id")
	}
	if err := h.Catalog.MarkAlertRead(c.Context(), id); err != nil {
		applog.Error(c, "admin.alerts.read.fail", err, map[string]any{"alert_id": id})
		return jsonError(c, fiber.StatusBadGateway, "could not mark alert")
	}
	applog.Audit(c, "admin.alerts.read", map[string]any{"alert_id": id})
	return c.JSON(fiber.Map{"success": true})
}

// POST /api/v1/admin/alerts/read-all
func (h *AdminHandler) MarkAllAlertsRead(c *fiber.Ctx) error {
	if err := h.Catalog.MarkAllAlertsRead(c.Context()); err != nil {
		applog.Error(c, "admin.alerts.readall.fail", err, nil)
		return jsonError(c, fiber.StatusBadGateway, "could not mark alerts")
	}
	applog.Audit(c, "admin.alerts.readall", nil)
	return c.JSON(fiber.Map{"success": true})
}

// GET /api/v1/admin/stock dumps every partition for the stock overview.
func (h *AdminHandler) Stock(c *fiber.Ctx) error {
	out := fiber.Map{}
	for _, cat := range h.Partitions.Categories() {
		doc, err := h.Catalog.FetchPartition(c.Context(), cat)
		if errors.Is(err, domain.ErrPartitionNotFound) {
			continue
		}
		if err != nil {
			applog.Error(c, "admin.stock.fail", err, map[string]any{"category": cat})
			return jsonError(c, fiber.StatusBadGateway, "could not load stock")
		}
		out[cat] = fiber.Map{"products": doc.Products, "version": doc.Version}
	}
	return c.JSON(fiber.Map{"success": true, "stock": out})
}

// POST /api/v1/admin/restock replaces one partition document wholesale.
func (h *AdminHandler) Restock(c *fiber.Ctx) error {
	var doc domain.PartitionDoc
	if err := c.BodyParser(&doc); err != nil {
		return jsonError(c, 400, "invalid body")
	}
	cat, ok := validate.Category(doc.Category)
	if !ok {
		return jsonError(c, 400, "invalid category")
	}
	doc.Category = cat
	if err := h.Catalog.Restock(c.Context(), doc); err != nil {
		applog.Error(c, "admin.restock.fail", err, map[string]any{"category": cat})
		return jsonError(c, fiber.StatusBadGateway, "could not restock")
	}
	applog.Audit(c, "admin.restock", map[string]any{"category": cat, "products": len(doc.Products)})
	return c.JSON(fiber.Map{"success": true})
}

// Users lists users (excluding admins).
func (h *AdminHandler) UsersList(c *fiber.Ctx) error {
	var users []struct {
		ID    string `db:"id" json:"id"`
		Email string `db:"email" json:"email"`
		Name  string `db:"name" json:"name"`
		Role  string `db:"role" json:"role"`
	}
	if err := h.Users.DB.Select(&users, `SELECT id,email,name,role FROM users WHERE role != 'ADMIN' ORDER BY email`); err != nil {
		applog.Error(c, "admin.users.list.fail", err, nil)
		return jsonError(c, 500, "could not load users")
	}
	return c.JSON(fiber.Map{"success": true, "users": users})
}

// DeleteUser deletes a user and their sessions plus session-local lists.
func (h *AdminHandler) DeleteUser(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return jsonError(c, 400, "missing id")
	}
	if err := h.Users.DeleteUserCascade(id); err != nil {
		applog.Error(c, "admin.users.delete.fail", err, map[string]any{"user_id": id})
		return jsonError(c, 400, "could not delete user")
	}
	applog.Audit(c, "admin.users.delete", map[string]any{"user_id": id})
	return c.JSON(fiber.Map{"success": true})
}
