package serverutils

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const (
	LocalSubject = "subject"
	LocalRole    = "role"

	// RoleGateway marks a chat platform bridge. Gateways may submit events for
	// any user and receive every reply over the websocket.
	RoleGateway = "gateway"
)

var ErrInvalidToken = errors.New("invalid token")

type Claims struct {
	Subject string
	Role    string
}

// ParseToken validates an HS256 token signed with secret and returns the
// subject (the "user_id" claim, falling back to "sub") and role.
func ParseToken(tokenStr, secret string) (Claims, error) {
	if secret == "" {
		return Claims{}, ErrInvalidToken
	}
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return Claims{}, ErrInvalidToken
	}

	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, ErrInvalidToken
	}
	var c Claims
	c.Subject, _ = mc["user_id"].(string)
	if c.Subject == "" {
		c.Subject, _ = mc["sub"].(string)
	}
	c.Role, _ = mc["role"].(string)
	if c.Subject == "" && c.Role != RoleGateway {
		return Claims{}, ErrInvalidToken
	}
	return c, nil
}

// BearerToken reads the Authorization header, then the "token" query
// parameter used by browser websocket clients.
func BearerToken(ctx *fiber.Ctx) string {
	if h := ctx.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(h[len("Bearer "):])
	}
	return ctx.Query("token")
}

func JwtMiddleware(secret string) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		tokenStr := BearerToken(ctx)
		if tokenStr == "" {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(fiber.StatusUnauthorized, "Missing token"))
		}
		claims, err := ParseToken(tokenStr, secret)
		if err != nil {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(fiber.StatusUnauthorized, "Invalid token"))
		}
		ctx.Locals(LocalSubject, claims.Subject)
		ctx.Locals(LocalRole, claims.Role)
		return ctx.Next()
	}
}

// IsGateway reports whether the authenticated caller is a gateway.
func IsGateway(ctx *fiber.Ctx) bool {
	role, _ := ctx.Locals(LocalRole).(string)
	return role == RoleGateway
}

// Subject returns the authenticated user id.
func Subject(ctx *fiber.Ctx) string {
	s, _ := ctx.Locals(LocalSubject).(string)
	return s
}
