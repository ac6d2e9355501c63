package middleware

import (
	"strings"

	"leadintake/utils"

	"github.com/gofiber/fiber/v2"
)

// ServiceAuth admits collaborator services holding a JWT signed with secret
// that carries scope. The caller's subject is stored in Locals("service").
func ServiceAuth(secret, scope string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Authorization required", nil)
		}

		tokenParts := strings.Split(authHeader, " ")
		if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
			return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid authorization format", nil)
		}

		claims, err := utils.ParseServiceToken(secret, tokenParts[1])
		if err != nil {
			return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid or expired token", nil)
		}
		if !claims.HasScope(scope) {
			utils.LogEvent("scope_denied", map[string]interface{}{
				"service": claims.Subject,
				"scope":   scope,
				"path":    c.Path(),
			})
			return utils.ErrorResponse(c, fiber.StatusForbidden, "Missing scope "+scope, nil)
		}

		c.Locals("service", claims.Subject)
		return c.Next()
	}
}
