package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/symptomcheck/symptom-service/internal/domain"
	apperrors "github.com/symptomcheck/symptom-service/pkg/util"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller.
type Principal struct {
	User  *domain.User
	Token string
}

// Identifier resolves a bearer token to its user.
type Identifier interface {
	Identify(ctx context.Context, token string) (*domain.User, error)
}

// AuthMiddleware validates bearer tokens and loads principals.
type AuthMiddleware struct {
	identifier Identifier
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(identifier Identifier) *AuthMiddleware {
	return &AuthMiddleware{identifier: identifier}
}

// Handle enforces authentication for protected routes. Every token problem
// produces the same response body.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	token, ok := BearerToken(c.Get(fiber.HeaderAuthorization))
	if !ok {
		return apperrors.NewUnauthorized()
	}

	user, err := m.identifier.Identify(c.UserContext(), token)
	if err != nil {
		if errors.Is(err, domain.ErrStorageUnavailable) {
			return err
		}
		return apperrors.NewUnauthorized()
	}

	c.Locals(principalKey, &Principal{User: user, Token: token})
	return c.Next()
}

// BearerToken extracts the credential from an Authorization header value.
func BearerToken(header string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok && principal.User != nil
}
