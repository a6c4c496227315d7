package controllers

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/nasuf/dictation-studio-service/internal/pkg/entitlement"
	"github.com/nasuf/dictation-studio-service/internal/pkg/middleware"
	"github.com/nasuf/dictation-studio-service/internal/pkg/payment"
	"github.com/nasuf/dictation-studio-service/internal/pkg/transcript"
)

// Deps are the services the controllers operate on, wired once at startup.
type Deps struct {
	Entitlements  *entitlement.Service
	Transcripts   *transcript.Cache
	Stripe        *payment.StripeClient
	StripeWebhook *payment.WebhookDecoder
	ZPay          *payment.ZPayClient
	Orders        *payment.OrderStore
	FailedUpdates *payment.FailedUpdateStore
}

var (
	deps     Deps
	validate = validator.New()
)

// Setup injects the controller dependencies.
func Setup(d Deps) {
	deps = d
}

// currentUser returns the authenticated user's email from the request
// context.
func currentUser(c *fiber.Ctx) string {
	return middleware.UserEmail(c)
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": msg})
}

func notFound(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": msg})
}

func internalError(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": msg})
}
