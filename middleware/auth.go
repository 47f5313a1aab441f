// Package middleware wires the access control gate into fiber routes.
package middleware

import (
	"github.com/gofiber/fiber/v2"

	marketplace "github.com/workisready/marketplace"
)

// RequireAuth authenticates the request against the gate and stores the
// resolved principal in the request locals and context.
func RequireAuth(gate *marketplace.Gate, logger marketplace.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, err := gate.Authenticate(c.UserContext(), c.Get(fiber.HeaderAuthorization))
		if err != nil {
			return marketplace.WriteError(c, logger, err)
		}

		c.Locals(marketplace.PrincipalLocalKey, principal)
		c.SetUserContext(marketplace.WithPrincipalContext(c.UserContext(), principal))

		return c.Next()
	}
}

// RequireAdmin allows only administrators through. It expects RequireAuth to
// have run earlier in the chain.
func RequireAdmin(gate *marketplace.Gate, logger marketplace.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := c.Locals(marketplace.PrincipalLocalKey).(*marketplace.Principal)
		if !ok || principal == nil {
			return marketplace.WriteError(c, logger, marketplace.ErrNoToken)
		}

		if err := gate.RequireRole(principal, marketplace.RoleAdmin); err != nil {
			return marketplace.WriteError(c, logger, err)
		}

		return c.Next()
	}
}
