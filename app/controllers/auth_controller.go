package controllers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/nasuf/dictation-studio-service/app/models"
	"github.com/nasuf/dictation-studio-service/app/repository"
	"github.com/nasuf/dictation-studio-service/internal/pkg/auth"
	"github.com/nasuf/dictation-studio-service/internal/pkg/constants"
	"github.com/nasuf/dictation-studio-service/internal/pkg/middleware"
)

type registerRequest struct {
	Username string `json:"username" validate:"required,min=2,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Avatar   string `json:"avatar"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Blacklist used by logout. Wired at startup.
var tokenBlacklist *auth.Blacklist

// SetupAuth injects the auth controller dependencies.
func SetupAuth(blacklist *auth.Blacklist) {
	tokenBlacklist = blacklist
}

// HandleRegister creates a new account and logs it in.
func HandleRegister(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return badRequest(c, err.Error())
	}

	repo := repository.GetGlobalFactory().GetUserRepository()
	exists, err := repo.Exists(c.Context(), req.Email)
	if err != nil {
		logrus.Errorf("register lookup failed: %v", err)
		return internalError(c, "Registration failed")
	}
	if exists {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": "User with this email already exists"})
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		logrus.Errorf("password hashing failed: %v", err)
		return internalError(c, "Registration failed")
	}

	user := &models.User{
		Username: req.Username,
		Email:    req.Email,
		Password: hash,
		Avatar:   req.Avatar,
		Role:     constants.RoleUser,
		Language: "en",
	}
	if err := repo.Create(c.Context(), user); err != nil {
		logrus.Errorf("user creation failed: %v", err)
		return internalError(c, "Registration failed")
	}

	token, err := auth.IssueToken(req.Email, time.Now())
	if err != nil {
		logrus.Errorf("token issuance failed: %v", err)
		return internalError(c, "Registration failed")
	}

	logrus.Infof("registered user %s", req.Email)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"user":        user,
		"accessToken": token,
	})
}

// HandleLogin verifies credentials and issues an access token.
func HandleLogin(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return badRequest(c, err.Error())
	}

	repo := repository.GetGlobalFactory().GetUserRepository()
	hash, err := repo.GetPasswordHash(c.Context(), req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Invalid email or password"})
		}
		logrus.Errorf("login lookup failed: %v", err)
		return internalError(c, "Login failed")
	}

	ok, err := auth.VerifyPassword(hash, req.Password)
	if err != nil || !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Invalid email or password"})
	}

	user, err := repo.GetByEmail(c.Context(), req.Email)
	if err != nil {
		logrus.Errorf("login user load failed: %v", err)
		return internalError(c, "Login failed")
	}

	token, err := auth.IssueToken(req.Email, time.Now())
	if err != nil {
		logrus.Errorf("token issuance failed: %v", err)
		return internalError(c, "Login failed")
	}

	logrus.Infof("user %s logged in", req.Email)
	return c.JSON(fiber.Map{
		"user":        user,
		"accessToken": token,
	})
}

// HandleLogout revokes the presented token.
func HandleLogout(c *fiber.Ctx) error {
	claims := middleware.TokenClaims(c)
	if claims == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Login required"})
	}

	if err := tokenBlacklist.Revoke(c.Context(), claims.ID, claims.ExpiresAt.Time, time.Now()); err != nil {
		logrus.Errorf("token revocation failed: %v", err)
		return internalError(c, "Logout failed")
	}
	logrus.Infof("user %s logged out", claims.Subject)
	return c.JSON(fiber.Map{"message": "Successfully logged out"})
}

// HandleRefreshToken exchanges a still-valid token for a fresh one. The
// presented token is revoked so it cannot be replayed alongside its
// replacement.
func HandleRefreshToken(c *fiber.Ctx) error {
	claims := middleware.TokenClaims(c)
	if claims == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Login required"})
	}

	token, err := auth.IssueToken(claims.Subject, time.Now())
	if err != nil {
		logrus.Errorf("token issuance failed: %v", err)
		return internalError(c, "Token refresh failed")
	}
	if err := tokenBlacklist.Revoke(c.Context(), claims.ID, claims.ExpiresAt.Time, time.Now()); err != nil {
		logrus.Warnf("old token revocation failed: %v", err)
	}
	return c.JSON(fiber.Map{"accessToken": token})
}

// HandleCheckEmail reports whether an email is already registered.
func HandleCheckEmail(c *fiber.Ctx) error {
	email := c.Query("email")
	if email == "" {
		return badRequest(c, "email query parameter is required")
	}

	exists, err := repository.GetGlobalFactory().GetUserRepository().Exists(c.Context(), email)
	if err != nil {
		logrus.Errorf("email check failed: %v", err)
		return internalError(c, "Email check failed")
	}
	return c.JSON(fiber.Map{"exists": exists})
}

type userInfoRequest struct {
	Username string `json:"username" validate:"required,min=1,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Avatar   string `json:"avatar"`
}

// HandleUpsertUserInfo creates or refreshes an account from an identity the
// frontend already verified with its OAuth provider, then issues a token.
// Such accounts carry no password and cannot use password login.
func HandleUpsertUserInfo(c *fiber.Ctx) error {
	var req userInfoRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return badRequest(c, err.Error())
	}

	repo := repository.GetGlobalFactory().GetUserRepository()
	exists, err := repo.Exists(c.Context(), req.Email)
	if err != nil {
		logrus.Errorf("userinfo lookup failed: %v", err)
		return internalError(c, "Login failed")
	}

	if exists {
		updates := map[string]interface{}{"username": req.Username}
		if req.Avatar != "" {
			updates["avatar"] = req.Avatar
		}
		if err := repo.UpdateConfig(c.Context(), req.Email, updates); err != nil {
			logrus.Errorf("userinfo update failed: %v", err)
			return internalError(c, "Login failed")
		}
	} else {
		user := &models.User{
			Username: req.Username,
			Email:    req.Email,
			Avatar:   req.Avatar,
			Role:     constants.RoleUser,
			Language: "en",
		}
		if err := repo.Create(c.Context(), user); err != nil {
			logrus.Errorf("userinfo creation failed: %v", err)
			return internalError(c, "Login failed")
		}
		logrus.Infof("created user %s from external identity", req.Email)
	}

	token, err := auth.IssueToken(req.Email, time.Now())
	if err != nil {
		logrus.Errorf("token issuance failed: %v", err)
		return internalError(c, "Login failed")
	}

	config, err := repo.GetConfig(c.Context(), req.Email)
	if err != nil {
		logrus.Errorf("userinfo load failed: %v", err)
		return internalError(c, "Login failed")
	}
	return c.JSON(fiber.Map{
		"user":        config,
		"accessToken": token,
	})
}

// HandleUserInfo returns the authenticated user's profile and settings,
// password excluded.
func HandleUserInfo(c *fiber.Ctx) error {
	email := currentUser(c)
	config, err := repository.GetGlobalFactory().GetUserRepository().GetConfig(c.Context(), email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return notFound(c, "User not found")
		}
		logrus.Errorf("user info load failed: %v", err)
		return internalError(c, "Failed to load user info")
	}
	return c.JSON(config)
}
