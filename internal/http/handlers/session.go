package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"aurelia/internal/domain"
)

// ensureSID returns the caller's session id, minting the cookie when absent.
// The sid doubles as the scope key for the session-local item stores, so it
// survives logout the way a browser's local storage would.
func ensureSID(c *fiber.Ctx) string {
	sid := c.Cookies("sid")
	if sid == "" {
		sid = uuid.NewString()
		c.Cookie(&fiber.Cookie{
			Name:     "sid",
			Value:    sid,
			Path:     "/",
			HTTPOnly: true,
			SameSite: fiber.CookieSameSiteLaxMode,
			Secure:   false, // enable true behind TLS
		})
	}
	return sid
}

// sessionFrom builds the session context every list and order call runs
// under. The user id is set only when the attach middleware resolved the sid
// to a bound account.
func sessionFrom(c *fiber.Ctx) domain.SessionContext {
	sc := domain.SessionContext{SessionID: ensureSID(c)}
	if u, ok := c.Locals("user").(*domain.User); ok && u != nil {
		sc.UserID = u.ID
	}
	return sc
}
