package utils

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// ClientIP resolves the request's client address: first hop of
// X-Forwarded-For, else X-Real-IP, else "unknown".
func ClientIP(c *fiber.Ctx) string {
	if forwarded := c.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if ip := strings.TrimSpace(parts[0]); ip != "" {
			return ip
		}
	}

	if realIP := c.Get("X-Real-IP"); realIP != "" {
		return realIP
	}

	return "unknown"
}
