package handlers

import (
	"github.com/gofiber/fiber/v2"

	applog "aurelia/internal/log"
	"aurelia/internal/services"
	"aurelia/internal/validate"
)

// AvailabilityHandler answers pre-checkout stock probes. The answer is a
// snapshot; the order pass re-reads stock when it actually decrements.
type AvailabilityHandler struct {
	Stock *services.StockService
}

// GET /api/v1/availability?productId=...&qty=...
func (h *AvailabilityHandler) Check(c *fiber.Ctx) error {
	pid, ok := validate.ID(c.Query("productId"))
	if !ok {
		applog.Security(c, "validation.fail", map[string]any{"field": "productId"})
		return jsonError(c, fiber.StatusBadRequest, "invalid productId")
	}
	qty := validate.Qty(c.Query("qty", "1"))

	av, err := h.Stock.CheckAvailability(c.Context(), pid, qty)
	if err != nil {
		applog.Error(c, "availability.check.fail", err, map[string]any{"product": pid})
		return jsonError(c, fiber.StatusBadGateway, "availability unavailable")
	}
	return c.JSON(fiber.Map{
		"success":   true,
		"productId": pid,
		"available": av.Available,
		"status":    av.Status,
		"stock":     av.Stock,
	})
}
