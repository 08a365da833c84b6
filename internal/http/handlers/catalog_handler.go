package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"aurelia/internal/catalog"
	"aurelia/internal/domain"
	applog "aurelia/internal/log"
	"aurelia/internal/validate"
)

// CatalogHandler serves the browse surface from the gateway's partition
// documents.
type CatalogHandler struct {
	Catalog    *catalog.Client
	Partitions *catalog.PartitionMap
}

// GET /api/v1/catalog
func (h *CatalogHandler) All(c *fiber.Ctx) error {
	out := fiber.Map{}
	for _, cat := range h.Partitions.Categories() {
		doc, err := h.Catalog.FetchPartition(c.Context(), cat)
		if errors.Is(err, domain.ErrPartitionNotFound) {
			continue
		}
		if err != nil {
			applog.Error(c, "catalog.load.fail", err, map[string]any{"category": cat})
			return jsonError(c, fiber.StatusBadGateway, "catalog unavailable")
		}
		out[cat] = doc.Products
	}
	return c.JSON(fiber.Map{"success": true, "categories": out})
}

// GET /api/v1/catalog/categories
func (h *CatalogHandler) Categories(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"success": true, "categories": h.Partitions.Categories()})
}

// GET /api/v1/catalog/:category
func (h *CatalogHandler) Category(c *fiber.Ctx) error {
	cat, ok := validate.Category(c.Params("category"))
	if !ok {
		return jsonError(c, fiber.StatusBadRequest, "invalid category")
	}
	doc, err := h.Catalog.FetchPartition(c.Context(), cat)
	if errors.Is(err, domain.ErrPartitionNotFound) {
		return jsonError(c, fiber.StatusNotFound, "category not found")
	}
	if err != nil {
		applog.Error(c, "catalog.load.fail", err, map[string]any{"category": cat})
		return jsonError(c, fiber.StatusBadGateway, "catalog unavailable")
	}
	return c.JSON(fiber.Map{"success": true, "category": cat, "products": doc.Products})
}

// GET /api/v1/catalog/product/:id
func (h *CatalogHandler) Product(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return jsonError(c, fiber.StatusBadRequest, "invalid product id")
	}
	cat, _ := h.Partitions.Resolve(id)
	doc, err := h.Catalog.FetchPartition(c.Context(), cat)
	if errors.Is(err, domain.ErrPartitionNotFound) {
		return jsonError(c, fiber.StatusNotFound, "product not found")
	}
	if err != nil {
		applog.Error(c, "catalog.load.fail", err, map[string]any{"category": cat})
		return jsonError(c, fiber.StatusBadGateway, "catalog unavailable")
	}
	for _, p := range doc.Products {
		if p.ID == id {
			return c.JSON(fiber.Map{"success": true, "product": p})
		}
	}
	return jsonError(c, fiber.StatusNotFound, "product not found")
}

// GET /api/v1/catalog/search?q=...&category=...
func (h *CatalogHandler) Search(c *fiber.Ctx) error {
	q, ok := validate.Q(c.Query("q"))
	if !ok {
		applog.Security(c, "validation.fail", map[string]any{"field": "q", "value": c.Query("q")})
		return jsonError(c, fiber.StatusBadRequest, "enter a valid keyword (letters/numbers only)")
	}
	q = strings.ToLower(q)

	cats := h.Partitions.Categories()
	if raw := strings.TrimSpace(c.Query("category")); raw != "" {
		cat, ok := validate.Category(raw)
		if !ok {
			applog.Security(c, "validation.fail", map[string]any{"field": "category"})
			return jsonError(c, fiber.StatusBadRequest, "invalid category")
		}
		cats = []string{cat}
	}

	hits := []domain.CatalogItem{}
	for _, cat := range cats {
		doc, err := h.Catalog.FetchPartition(c.Context(), cat)
		if errors.Is(err, domain.ErrPartitionNotFound) {
			continue
		}
		if err != nil {
			applog.Error(c, "catalog.search.fail", err, map[string]any{"category": cat})
			return jsonError(c, fiber.StatusBadGateway, "catalog unavailable")
		}
		for _, p := range doc.Products {
			if strings.Contains(strings.ToLower(p.Name), q) || strings.Contains(strings.ToLower(p.ID), q) {
				hits = append(hits, p)
			}
		}
	}
	return c.JSON(fiber.Map{"success": true, "q": q, "products": hits, "count": len(hits)})
}
