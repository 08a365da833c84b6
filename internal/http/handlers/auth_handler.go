package handlers

import (
	"aurelia/internal/domain"
	"aurelia/internal/log"
	"aurelia/internal/services"
	"aurelia/internal/validate"

	"github.com/gofiber/fiber/v2"
)

// AuthHandler owns login and logout, including the list handoff between the
// session-local stores and the account stores.
type AuthHandler struct {
	Auth     *services.AuthService
	Cart     *services.ListManager
	Wishlist *services.ListManager
}

type credentialsReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	sid := ensureSID(c)

	var req credentialsReq
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid body")
	}

	email, ok := validate.Email(req.Email)
	if !ok {
		log.Security(c, "auth.login.fail", map[string]any{"email": req.Email, "reason": "bad_format"})
		return jsonError(c, fiber.StatusUnauthorized, "invalid email or password")
	}
	if !validate.Password(req.Password) {
		log.Security(c, "auth.login.fail", map[string]any{"email": email, "reason": "bad_password_format"})
		return jsonError(c, fiber.StatusUnauthorized, "invalid email or password")
	}

	u, err := h.Auth.Login(sid, email, req.Password)
	if err != nil {
		log.Security(c, "auth.login.fail", map[string]any{"email": email})
		return jsonError(c, fiber.StatusUnauthorized, "invalid email or password")
	}

	// The session just became authenticated, so both lists merge into the
	// account stores and the local copies are released.
	sc := domain.SessionContext{SessionID: sid, UserID: u.ID}
	cart, cerr := h.Cart.SyncOnLogin(c.Context(), sc)
	if cerr != nil {
		log.Error(c, "auth.login.sync.cart", cerr, nil)
	}
	wish, werr := h.Wishlist.SyncOnLogin(c.Context(), sc)
	if werr != nil {
		log.Error(c, "auth.login.sync.wishlist", werr, nil)
	}

	log.Audit(c, "auth.login.success", map[string]any{"email": email})
	return c.JSON(fiber.Map{
		"success": true,
		"user": fiber.Map{
			"id":    u.ID,
			"email": u.Email,
			"name":  u.Name,
			"role":  u.Role,
		},
		"cart":     listBody(cart, false),
		"wishlist": listBody(wish, false),
	})
}

// POST /api/v1/auth/logout
//
// The sid cookie stays. It scopes the session-local stores, which keep
// serving the browser after logout the way device storage would.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	sid := ensureSID(c)
	_ = h.Auth.Logout(sid)

	// Post-logout the context is anonymous again and the managers fall
	// back to the local stores without touching the account copies.
	sc := domain.SessionContext{SessionID: sid}
	cart, _ := h.Cart.SyncOnLogout(c.Context(), sc)
	wish, _ := h.Wishlist.SyncOnLogout(c.Context(), sc)

	log.Audit(c, "auth.logout", map[string]any{"sid": sid})
	return c.JSON(fiber.Map{
		"success":  true,
		"cart":     listBody(cart, false),
		"wishlist": listBody(wish, false),
	})
}

// GET /api/v1/auth/me
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	u, _ := c.Locals("user").(*domain.User)
	if u == nil {
		return c.JSON(fiber.Map{"success": true, "user": nil})
	}
	return c.JSON(fiber.Map{
		"success": true,
		"user": fiber.Map{
			"id":    u.ID,
			"email": u.Email,
			"name":  u.Name,
			"role":  u.Role,
		},
	})
}
