package controllers

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/nasuf/dictation-studio-service/app/models"
	"github.com/nasuf/dictation-studio-service/app/repository"
)

type progressRequest struct {
	ChannelID         string          `json:"channelId" validate:"required"`
	VideoID           string          `json:"videoId" validate:"required"`
	UserInput         json.RawMessage `json:"userInput"`
	CurrentTime       int64           `json:"currentTime"`
	OverallCompletion int             `json:"overallCompletion"`
	Duration          int64           `json:"duration"`
}

type missedWordsRequest struct {
	Words []string `json:"words" validate:"required"`
}

// HandleSaveProgress stores dictation progress for one video and folds the
// practice-time increment into the user's duration aggregates.
func HandleSaveProgress(c *fiber.Ctx) error {
	var req progressRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return badRequest(c, err.Error())
	}

	email := currentUser(c)
	repo := repository.GetGlobalFactory().GetUserRepository()

	err := repo.SaveProgress(c.Context(), email, req.ChannelID, req.VideoID, &models.DictationProgress{
		UserInput:         req.UserInput,
		CurrentTime:       req.CurrentTime,
		OverallCompletion: req.OverallCompletion,
		Duration:          req.Duration,
	})
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return notFound(c, "User not found")
		}
		logrus.Errorf("progress save failed for user %s: %v", email, err)
		return internalError(c, "Failed to save progress")
	}

	day := time.Now().UTC().Format("2006-01-02")
	duration, err := repo.AddDuration(c.Context(), email, req.ChannelID, req.VideoID, day, req.Duration)
	if err != nil {
		logrus.Errorf("duration update failed for user %s: %v", email, err)
		return internalError(c, "Failed to update duration")
	}

	ch := duration.Channels[req.ChannelID]
	return c.JSON(fiber.Map{
		"message":              "Progress saved",
		"videoDuration":        ch.Videos[req.VideoID],
		"channelTotalDuration": ch.Duration,
		"totalDuration":        duration.Duration,
		"dailyDuration":        duration.Date[day],
	})
}

// HandleGetProgress returns the saved progress for one video.
func HandleGetProgress(c *fiber.Ctx) error {
	channelID := c.Query("channelId")
	videoID := c.Query("videoId")
	if channelID == "" || videoID == "" {
		return badRequest(c, "channelId and videoId are required")
	}

	email := currentUser(c)
	progress, err := repository.GetGlobalFactory().GetUserRepository().GetProgress(c.Context(), email)
	if err != nil {
		logrus.Errorf("progress load failed for user %s: %v", email, err)
		return internalError(c, "Failed to load progress")
	}

	p, ok := progress[channelID+":"+videoID]
	if !ok {
		return c.JSON(fiber.Map{"channelId": channelID, "videoId": videoID, "progress": nil})
	}
	return c.JSON(fiber.Map{"channelId": channelID, "videoId": videoID, "progress": p})
}

// HandleGetAllProgress returns the user's full progress map.
func HandleGetAllProgress(c *fiber.Ctx) error {
	email := currentUser(c)
	progress, err := repository.GetGlobalFactory().GetUserRepository().GetProgress(c.Context(), email)
	if err != nil {
		logrus.Errorf("progress load failed for user %s: %v", email, err)
		return internalError(c, "Failed to load progress")
	}
	return c.JSON(fiber.Map{"progress": progress})
}

// HandleGetChannelProgress returns per-video completion for one channel.
func HandleGetChannelProgress(c *fiber.Ctx) error {
	channelID := c.Params("channelId")
	email := currentUser(c)

	progress, err := repository.GetGlobalFactory().GetUserRepository().GetProgress(c.Context(), email)
	if err != nil {
		logrus.Errorf("progress load failed for user %s: %v", email, err)
		return internalError(c, "Failed to load progress")
	}

	prefix := channelID + ":"
	byVideo := map[string]int{}
	for key, p := range progress {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix {
			byVideo[key[len(prefix):]] = p.OverallCompletion
		}
	}
	return c.JSON(fiber.Map{"channelId": channelID, "progress": byVideo})
}

// HandleGetDuration returns the user's practice-time aggregates.
func HandleGetDuration(c *fiber.Ctx) error {
	email := currentUser(c)
	duration, err := repository.GetGlobalFactory().GetUserRepository().GetDuration(c.Context(), email)
	if err != nil {
		logrus.Errorf("duration load failed for user %s: %v", email, err)
		return internalError(c, "Failed to load duration")
	}
	return c.JSON(fiber.Map{
		"totalDuration":  duration.Duration,
		"dailyDurations": duration.Date,
		"channels":       duration.Channels,
	})
}

// HandleGetConfig returns the user's configuration.
func HandleGetConfig(c *fiber.Ctx) error {
	email := currentUser(c)
	config, err := repository.GetGlobalFactory().GetUserRepository().GetConfig(c.Context(), email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return notFound(c, "User not found")
		}
		logrus.Errorf("config load failed for user %s: %v", email, err)
		return internalError(c, "Failed to load configuration")
	}
	return c.JSON(config)
}

// HandleUpdateConfig merges arbitrary configuration fields into the user's
// record.
func HandleUpdateConfig(c *fiber.Ctx) error {
	var fields map[string]interface{}
	if err := c.BodyParser(&fields); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if len(fields) == 0 {
		return badRequest(c, "No configuration fields provided")
	}

	email := currentUser(c)
	repo := repository.GetGlobalFactory().GetUserRepository()
	if err := repo.UpdateConfig(c.Context(), email, fields); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return notFound(c, "User not found")
		}
		return badRequest(c, err.Error())
	}

	config, err := repo.GetConfig(c.Context(), email)
	if err != nil {
		logrus.Errorf("config reload failed for user %s: %v", email, err)
		return internalError(c, "Failed to load configuration")
	}
	return c.JSON(fiber.Map{"message": "User configuration updated successfully", "config": config})
}

// HandleGetMissedWords returns the user's missed-word list.
func HandleGetMissedWords(c *fiber.Ctx) error {
	email := currentUser(c)
	words, err := repository.GetGlobalFactory().GetUserRepository().GetMissedWords(c.Context(), email)
	if err != nil {
		logrus.Errorf("missed words load failed for user %s: %v", email, err)
		return internalError(c, "Failed to load missed words")
	}
	return c.JSON(fiber.Map{"words": words})
}

// HandleAddMissedWords merges new words into the user's missed-word list.
func HandleAddMissedWords(c *fiber.Ctx) error {
	var req missedWordsRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	email := currentUser(c)
	repo := repository.GetGlobalFactory().GetUserRepository()
	existing, err := repo.GetMissedWords(c.Context(), email)
	if err != nil {
		logrus.Errorf("missed words load failed for user %s: %v", email, err)
		return internalError(c, "Failed to update missed words")
	}

	if err := repo.SetMissedWords(c.Context(), email, append(existing, req.Words...)); err != nil {
		logrus.Errorf("missed words save failed for user %s: %v", email, err)
		return internalError(c, "Failed to update missed words")
	}

	words, err := repo.GetMissedWords(c.Context(), email)
	if err != nil {
		return internalError(c, "Failed to load missed words")
	}
	return c.JSON(fiber.Map{"words": words})
}

// HandleDeleteMissedWords removes the given words from the list.
func HandleDeleteMissedWords(c *fiber.Ctx) error {
	var req missedWordsRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	email := currentUser(c)
	repo := repository.GetGlobalFactory().GetUserRepository()
	existing, err := repo.GetMissedWords(c.Context(), email)
	if err != nil {
		logrus.Errorf("missed words load failed for user %s: %v", email, err)
		return internalError(c, "Failed to update missed words")
	}

	remove := make(map[string]struct{}, len(req.Words))
	for _, w := range req.Words {
		remove[w] = struct{}{}
	}
	kept := make([]string, 0, len(existing))
	for _, w := range existing {
		if _, ok := remove[w]; !ok {
			kept = append(kept, w)
		}
	}

	if err := repo.SetMissedWords(c.Context(), email, kept); err != nil {
		logrus.Errorf("missed words save failed for user %s: %v", email, err)
		return internalError(c, "Failed to update missed words")
	}
	return c.JSON(fiber.Map{"words": kept})
}

// HandleQuotaStatus reports the user's free-tier allowance for the current
// cycle.
func HandleQuotaStatus(c *fiber.Ctx) error {
	email := currentUser(c)
	status, err := deps.Entitlements.Evaluate(c.Context(), email, time.Now().UTC())
	if err != nil {
		logrus.Errorf("quota evaluation failed for user %s: %v", email, err)
		return internalError(c, "Failed to evaluate quota")
	}
	return c.JSON(status)
}
