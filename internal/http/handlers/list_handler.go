package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"aurelia/internal/domain"
	applog "aurelia/internal/log"
	"aurelia/internal/services"
	"aurelia/internal/validate"
)

// ListHandler serves one item list over HTTP. The cart and the wishlist are
// two instances of it; the manager decides per call whether the session's
// local store or the account store is touched.
type ListHandler struct {
	Manager *services.ListManager
}

type listPayload struct {
	Success   bool              `json:"success"`
	Items     []domain.LineItem `json:"items"`
	Count     int               `json:"count"`
	Total     float64           `json:"total"`
	Offline   bool              `json:"offline,omitempty"`
	OpenPanel bool              `json:"openPanel,omitempty"`
}

// listBody shapes a manager result for the wire. The login and logout
// handlers reuse it for the synced lists they return.
func listBody(res services.OpResult, openPanel bool) listPayload {
	p := listPayload{Success: true, Items: res.Items, Offline: res.Offline, OpenPanel: openPanel}
	if p.Items == nil {
		p.Items = []domain.LineItem{}
	}
	for _, it := range p.Items {
		p.Count += it.Quantity
		p.Total += it.Price * float64(it.Quantity)
	}
	return p
}

func (h *ListHandler) fail(c *fiber.Ctx, action string, err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidItem):
		applog.Security(c, "validation.fail", map[string]any{"field": "id"})
		return jsonError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrConflict):
		return jsonError(c, fiber.StatusConflict, "list changed concurrently, please retry")
	case errors.Is(err, domain.ErrNotLoggedIn):
		return jsonError(c, fiber.StatusUnauthorized, "not logged in")
	}
	applog.Error(c, action, err, nil)
	return jsonError(c, fiber.StatusInternalServerError, "could not update list")
}

// GET /api/v1/{cart,wishlist}
func (h *ListHandler) Items(c *fiber.Ctx) error {
	res, err := h.Manager.Items(c.Context(), sessionFrom(c))
	if err != nil {
		return h.fail(c, "list.load.fail", err)
	}
	return c.JSON(listBody(res, false))
}

type addItemReq struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Image    string  `json:"image"`
	Quantity int     `json:"quantity"`
}

// POST /api/v1/{cart,wishlist}/items
func (h *ListHandler) Add(c *fiber.Ctx) error {
	var req addItemReq
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid body")
	}
	item := domain.LineItem{ID: req.ID, Name: req.Name, Price: req.Price, Image: req.Image}
	res, err := h.Manager.Add(c.Context(), sessionFrom(c), item, validate.QtyN(req.Quantity))
	if err != nil {
		return h.fail(c, "list.add.fail", err)
	}
	applog.Audit(c, "list.add", map[string]any{"kind": string(h.Manager.Kind), "item": req.ID})
	return c.JSON(listBody(res, h.Manager.Kind == domain.KindCart))
}

// DELETE /api/v1/{cart,wishlist}/items/:id
func (h *ListHandler) Remove(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		applog.Security(c, "validation.fail", map[string]any{"field": "id"})
		return jsonError(c, fiber.StatusBadRequest, "invalid item id")
	}
	res, err := h.Manager.Remove(c.Context(), sessionFrom(c), id)
	if err != nil {
		return h.fail(c, "list.remove.fail", err)
	}
	return c.JSON(listBody(res, false))
}

// PUT /api/v1/{cart,wishlist}/items/:id
func (h *ListHandler) UpdateQuantity(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		applog.Security(c, "validation.fail", map[string]any{"field": "id"})
		return jsonError(c, fiber.StatusBadRequest, "invalid item id")
	}
	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid body")
	}
	res, err := h.Manager.UpdateQuantity(c.Context(), sessionFrom(c), id, req.Quantity)
	if err != nil {
		return h.fail(c, "list.quantity.fail", err)
	}
	return c.JSON(listBody(res, false))
}

// POST /api/v1/{cart,wishlist}/items/:id/increment
func (h *ListHandler) Increment(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return jsonError(c, fiber.StatusBadRequest, "invalid item id")
	}
	res, err := h.Manager.Increment(c.Context(), sessionFrom(c), id)
	if err != nil {
		return h.fail(c, "list.increment.fail", err)
	}
	return c.JSON(listBody(res, false))
}

// POST /api/v1/{cart,wishlist}/items/:id/decrement
func (h *ListHandler) Decrement(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return jsonError(c, fiber.StatusBadRequest, "invalid item id")
	}
	res, err := h.Manager.Decrement(c.Context(), sessionFrom(c), id)
	if err != nil {
		return h.fail(c, "list.decrement.fail", err)
	}
	return c.JSON(listBody(res, false))
}

// DELETE /api/v1/{cart,wishlist}
func (h *ListHandler) Clear(c *fiber.Ctx) error {
	res, err := h.Manager.Clear(c.Context(), sessionFrom(c))
	if err != nil {
		return h.fail(c, "list.clear.fail", err)
	}
	applog.Audit(c, "list.clear", map[string]any{"kind": string(h.Manager.Kind)})
	return c.JSON(listBody(res, false))
}
