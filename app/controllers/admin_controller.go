package controllers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/nasuf/dictation-studio-service/app/repository"
	"github.com/nasuf/dictation-studio-service/internal/pkg/constants"
	"github.com/nasuf/dictation-studio-service/internal/pkg/entitlement"
)

type updateRoleRequest struct {
	Emails []string `json:"emails" validate:"required,min=1,dive,email"`
	Role   string   `json:"role" validate:"required,oneof=User Admin"`
}

type updatePlanRequest struct {
	Emails      []string `json:"emails" validate:"required,min=1,dive,email"`
	Plan        string   `json:"plan" validate:"required,oneof=Free Basic Pro Premium"`
	Duration    int      `json:"duration" validate:"required,min=1"`
	IsRecurring bool     `json:"isRecurring"`
}

// HandleAdminListUsers returns all registered users.
func HandleAdminListUsers(c *fiber.Ctx) error {
	users, err := repository.GetGlobalFactory().GetUserRepository().List(c.Context())
	if err != nil {
		logrus.Errorf("admin user listing failed: %v", err)
		return internalError(c, "Failed to list users")
	}
	return c.JSON(fiber.Map{"users": users, "count": len(users)})
}

// HandleAdminUpdateRole assigns a role to a batch of users.
func HandleAdminUpdateRole(c *fiber.Ctx) error {
	var req updateRoleRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return badRequest(c, err.Error())
	}

	repo := repository.GetGlobalFactory().GetUserRepository()
	updated := make([]string, 0, len(req.Emails))
	failed := map[string]string{}
	for _, email := range req.Emails {
		if err := repo.SetRole(c.Context(), email, req.Role); err != nil {
			failed[email] = err.Error()
			continue
		}
		updated = append(updated, email)
	}

	logrus.Infof("admin set role %s for %d user(s)", req.Role, len(updated))
	return c.JSON(fiber.Map{"updated": updated, "failed": failed})
}

// HandleAdminUpdatePlan applies a plan to a batch of users through the
// entitlement engine, so expiration stacking and quota removal follow the
// same rules as paid upgrades.
func HandleAdminUpdatePlan(c *fiber.Ctx) error {
	var req updatePlanRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return badRequest(c, err.Error())
	}

	updated := make([]string, 0, len(req.Emails))
	failed := map[string]string{}
	for _, email := range req.Emails {
		_, err := deps.Entitlements.ApplyPayment(c.Context(), entitlement.PaymentEvent{
			UserEmail:    email,
			PlanName:     req.Plan,
			DurationDays: req.Duration,
			IsRecurring:  req.IsRecurring,
		}, time.Now().UTC())
		if err != nil {
			failed[email] = err.Error()
			continue
		}
		updated = append(updated, email)
	}

	logrus.Infof("admin applied plan %s (%d days) to %d user(s)", req.Plan, req.Duration, len(updated))
	return c.JSON(fiber.Map{"updated": updated, "failed": failed})
}

// HandleAdminDeleteUser removes a user account.
func HandleAdminDeleteUser(c *fiber.Ctx) error {
	email := c.Params("email")
	if email == "" {
		return badRequest(c, "email is required")
	}
	if err := repository.GetGlobalFactory().GetUserRepository().Delete(c.Context(), email); err != nil {
		logrus.Errorf("admin user deletion failed: %v", err)
		return internalError(c, "Failed to delete user")
	}
	logrus.Infof("admin deleted user %s", email)
	return c.JSON(fiber.Map{"message": "User deleted"})
}

// HandleAdminListChannels returns every channel regardless of visibility.
func HandleAdminListChannels(c *fiber.Ctx) error {
	channels, err := repository.GetGlobalFactory().GetChannelRepository().List(c.Context(), constants.VisibilityAll, constants.LanguageAll)
	if err != nil {
		logrus.Errorf("admin channel listing failed: %v", err)
		return internalError(c, "Failed to list channels")
	}
	return c.JSON(fiber.Map{"channels": channels, "count": len(channels)})
}
