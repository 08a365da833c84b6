package handlers

import "github.com/gofiber/fiber/v2"

// jsonError writes the error envelope shared by every endpoint.
func jsonError(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{"success": false, "error": msg})
}
