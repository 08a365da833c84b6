package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"aurelia/internal/domain"
	applog "aurelia/internal/log"
	"aurelia/internal/repos"
	"aurelia/internal/services"
	"aurelia/internal/validate"
)

type OrderHandler struct {
	Order *services.OrderService
	Repo  *repos.OrderRepo
}

type placeOrderReq struct {
	OrderRef  string `json:"orderRef"`
	PaymentID string `json:"paymentId"`
	Signature string `json:"signature"`
}

// POST /api/v1/orders
func (h *OrderHandler) Place(c *fiber.Ctx) error {
	sc := sessionFrom(c)

	var req placeOrderReq
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid body")
	}
	if _, ok := validate.ID(req.OrderRef); !ok {
		applog.Security(c, "validation.fail", map[string]any{"field": "orderRef"})
		return jsonError(c, fiber.StatusBadRequest, "invalid order reference")
	}

	placed, err := h.Order.Place(c.Context(), sc, services.PlaceRequest{
		OrderRef:  req.OrderRef,
		PaymentID: req.PaymentID,
		Signature: req.Signature,
	})
	switch {
	case errors.Is(err, services.ErrPaymentSignature):
		applog.Security(c, "order.place.fail", map[string]any{"reason": "signature", "order_ref": req.OrderRef})
		return jsonError(c, fiber.StatusBadRequest, "payment could not be verified")
	case errors.Is(err, services.ErrCartEmpty):
		return jsonError(c, fiber.StatusBadRequest, "cart is empty")
	case err != nil:
		applog.Error(c, "order.place.fail", err, nil)
		return jsonError(c, fiber.StatusInternalServerError, "could not place order")
	}

	applog.Audit(c, "order.place", map[string]any{
		"order_id": placed.OrderID,
		"status":   placed.Status,
		"total":    placed.Total,
	})
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success":  true,
		"orderId":  placed.OrderID,
		"status":   placed.Status,
		"total":    placed.Total,
		"outcomes": placed.Outcomes,
	})
}

// GET /api/v1/orders/:id
func (h *OrderHandler) View(c *fiber.Ctx) error {
	oid := c.Params("id")
	if oid == "" {
		return jsonError(c, fiber.StatusNotFound, "order not found")
	}

	o, items, err := h.Repo.Get(oid)
	if err != nil {
		return jsonError(c, fiber.StatusNotFound, "order not found")
	}

	// Ownership: same session, same user, or an admin. Denials read as 404
	// so order ids cannot be probed.
	sid := c.Cookies("sid")
	u, _ := c.Locals("user").(*domain.User)
	owner := (sid != "" && sid == o.SessionID) || (u != nil && u.ID == o.UserID)
	if !owner && (u == nil || u.Role != "ADMIN") {
		applog.Security(c, "access.denied.order", map[string]any{"order_id": oid})
		return jsonError(c, fiber.StatusNotFound, "order not found")
	}

	outcomes, err := h.Repo.Outcomes(oid)
	if err != nil {
		applog.Error(c, "order.view.fail", err, map[string]any{"order_id": oid})
		return jsonError(c, fiber.StatusInternalServerError, "could not load order")
	}
	return c.JSON(fiber.Map{
		"success":  true,
		"order":    o,
		"items":    items,
		"outcomes": outcomes,
	})
}

// GET /api/v1/orders lists history for the current logged-in user.
func (h *OrderHandler) History(c *fiber.Ctx) error {
	u, _ := c.Locals("user").(*domain.User)
	if u == nil {
		return jsonError(c, fiber.StatusUnauthorized, "login required")
	}
	orders, err := h.Repo.ListByUser(u.ID)
	if err != nil {
		applog.Error(c, "orders.history.fail", err, nil)
		return jsonError(c, fiber.StatusInternalServerError, "could not load orders")
	}
	// Fallback: show session orders if none linked to the user yet
	if len(orders) == 0 {
		if sid := c.Cookies("sid"); sid != "" {
			if sessOrders, err := h.Repo.ListBySession(sid); err == nil && len(sessOrders) > 0 {
				orders = sessOrders
			}
		}
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	return c.JSON(fiber.Map{"success": true, "orders": orders})
}
