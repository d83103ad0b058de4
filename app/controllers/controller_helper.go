package controllers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// clientIP returns the caller's address, honoring the proxy header the edge
// sets in production.
func clientIP(c *fiber.Ctx) string {
	if fwd := strings.TrimSpace(c.Get("X-Forwarded-For")); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	return c.IP()
}
