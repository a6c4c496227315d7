package middleware

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/nasuf/dictation-studio-service/internal/pkg/auth"
	"github.com/nasuf/dictation-studio-service/internal/pkg/constants"
)

// Locals keys populated by RequireAuth for downstream handlers.
const (
	KeyUserEmail = "userEmail"
	KeyTokenID   = "tokenID"
	KeyClaims    = "authClaims"
)

// RefreshHeader carries a replacement access token when the presented one is
// close to expiring. Clients swap to it transparently.
const RefreshHeader = "x-ds-access-token"

// RoleLookup resolves a user's role for admin gating.
type RoleLookup interface {
	GetRole(ctx context.Context, email string) (string, error)
}

// RequireAuth authenticates the bearer token, rejects revoked tokens and
// transparently re-issues tokens that are about to expire.
func RequireAuth(blacklist *auth.Blacklist) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := extractBearerToken(c)
		if tokenString == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Missing access token"})
		}

		claims, err := auth.ParseToken(tokenString)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Token is invalid or expired"})
		}

		revoked, err := blacklist.IsRevoked(c.Context(), claims.ID)
		if err != nil {
			logrus.Errorf("blacklist lookup failed: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Token verification failed"})
		}
		if revoked {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Token has been revoked"})
		}

		c.Locals(KeyUserEmail, claims.Subject)
		c.Locals(KeyTokenID, claims.ID)
		c.Locals(KeyClaims, claims)

		refreshed := ""
		if claims.NeedsRefresh(time.Now()) {
			if t, err := auth.IssueToken(claims.Subject, time.Now()); err != nil {
				logrus.Warnf("token refresh failed for user %s: %v", claims.Subject, err)
			} else {
				refreshed = t
				logrus.Infof("token refreshed for user %s", claims.Subject)
			}
		}

		err = c.Next()
		if refreshed != "" {
			c.Set(RefreshHeader, refreshed)
		}
		return err
	}
}

// RequireAdmin allows only users whose role resolves to Admin. Must run
// after RequireAuth.
func RequireAdmin(roles RoleLookup) fiber.Handler {
	return func(c *fiber.Ctx) error {
		email, _ := c.Locals(KeyUserEmail).(string)
		if email == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Login required"})
		}

		role, err := roles.GetRole(c.Context(), email)
		if err != nil {
			logrus.Errorf("role lookup failed for user %s: %v", email, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": "Role verification failed"})
		}
		if role != constants.RoleAdmin {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden", "message": "Admin access required"})
		}
		return c.Next()
	}
}

// UserEmail returns the authenticated user's email set by RequireAuth.
func UserEmail(c *fiber.Ctx) string {
	email, _ := c.Locals(KeyUserEmail).(string)
	return email
}

// TokenClaims returns the validated claims set by RequireAuth.
func TokenClaims(c *fiber.Ctx) *auth.Claims {
	claims, _ := c.Locals(KeyClaims).(*auth.Claims)
	return claims
}

func extractBearerToken(c *fiber.Ctx) string {
	h := c.Get(fiber.HeaderAuthorization)
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}
