package auth

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/auth-gateway/internal/domain"
)

const authContextKey = "auth_context"

type authContextCtxKey struct{}

// WithAuthContext returns a copy of ctx carrying the request identity.
func WithAuthContext(ctx context.Context, ac domain.AuthContext) context.Context {
	return context.WithValue(ctx, authContextCtxKey{}, ac)
}

// FromContext retrieves the request identity attached by the gate.
func FromContext(ctx context.Context) (domain.AuthContext, bool) {
	ac, ok := ctx.Value(authContextCtxKey{}).(domain.AuthContext)
	return ac, ok
}

// AuthContextFromFiber retrieves the request identity from fiber locals.
func AuthContextFromFiber(c *fiber.Ctx) (domain.AuthContext, bool) {
	val := c.Locals(authContextKey)
	if val == nil {
		return domain.AuthContext{}, false
	}
	ac, ok := val.(domain.AuthContext)
	return ac, ok
}

func attachAuthContext(c *fiber.Ctx, ac domain.AuthContext) {
	c.Locals(authContextKey, ac)
	c.SetUserContext(WithAuthContext(c.UserContext(), ac))
}
