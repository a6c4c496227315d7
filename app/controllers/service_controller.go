package controllers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/nasuf/dictation-studio-service/app/models"
	"github.com/nasuf/dictation-studio-service/app/repository"
	"github.com/nasuf/dictation-studio-service/internal/pkg/constants"
	"github.com/nasuf/dictation-studio-service/internal/pkg/entitlement"
	"github.com/nasuf/dictation-studio-service/internal/pkg/transcript"
)

type saveChannelsRequest struct {
	Channels []*models.Channel `json:"channels" validate:"required,min=1"`
}

type saveVideosRequest struct {
	ChannelID string `json:"channel_id" validate:"required"`
	Videos    []struct {
		Link       string               `json:"link" validate:"required"`
		Title      string               `json:"title"`
		Visibility string               `json:"visibility"`
		Segments   []transcript.Segment `json:"segments"`
	} `json:"videos" validate:"required,min=1"`
}

type segmentUpdateRequest struct {
	Index int     `json:"index"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"transcript" validate:"required"`
}

type fullTranscriptRequest struct {
	Segments []transcript.Segment `json:"transcript" validate:"required,min=1"`
}

// HandleSaveChannels creates or updates channels in bulk. Admin only.
func HandleSaveChannels(c *fiber.Ctx) error {
	var req saveChannelsRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return badRequest(c, err.Error())
	}
	for _, ch := range req.Channels {
		if ch.ID == "" || ch.Name == "" {
			return badRequest(c, "Each channel requires id and name")
		}
	}

	if err := repository.GetGlobalFactory().GetChannelRepository().Upsert(c.Context(), req.Channels); err != nil {
		logrus.Errorf("channel upsert failed: %v", err)
		return internalError(c, "Failed to save channels")
	}
	logrus.Infof("saved %d channel(s)", len(req.Channels))
	return c.JSON(fiber.Map{"message": "Channels saved", "count": len(req.Channels)})
}

// HandleListChannels returns channels filtered by visibility and language.
func HandleListChannels(c *fiber.Ctx) error {
	visibility := c.Query("visibility", constants.VisibilityPublic)
	language := c.Query("language", constants.LanguageAll)

	channels, err := repository.GetGlobalFactory().GetChannelRepository().List(c.Context(), visibility, language)
	if err != nil {
		logrus.Errorf("channel listing failed: %v", err)
		return internalError(c, "Failed to list channels")
	}
	return c.JSON(fiber.Map{"channels": channels, "count": len(channels)})
}

// HandleGetChannel returns one channel.
func HandleGetChannel(c *fiber.Ctx) error {
	channel, err := repository.GetGlobalFactory().GetChannelRepository().Get(c.Context(), c.Params("channelId"))
	if err != nil {
		if errors.Is(err, repository.ErrChannelNotFound) {
			return notFound(c, "Channel not found")
		}
		logrus.Errorf("channel load failed: %v", err)
		return internalError(c, "Failed to load channel")
	}
	return c.JSON(channel)
}

// HandleUpdateChannel patches channel fields. Admin only.
func HandleUpdateChannel(c *fiber.Ctx) error {
	var fields map[string]string
	if err := c.BodyParser(&fields); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if len(fields) == 0 {
		return badRequest(c, "No fields provided")
	}
	delete(fields, "id")

	err := repository.GetGlobalFactory().GetChannelRepository().Update(c.Context(), c.Params("channelId"), fields)
	if err != nil {
		if errors.Is(err, repository.ErrChannelNotFound) {
			return notFound(c, "Channel not found")
		}
		logrus.Errorf("channel update failed: %v", err)
		return internalError(c, "Failed to update channel")
	}
	return c.JSON(fiber.Map{"message": "Channel updated"})
}

// HandleDeleteChannel removes a channel. Its videos stay addressable only
// by direct key and are cleaned up separately. Admin only.
func HandleDeleteChannel(c *fiber.Ctx) error {
	err := repository.GetGlobalFactory().GetChannelRepository().Delete(c.Context(), c.Params("channelId"))
	if err != nil {
		if errors.Is(err, repository.ErrChannelNotFound) {
			return notFound(c, "Channel not found")
		}
		logrus.Errorf("channel deletion failed: %v", err)
		return internalError(c, "Failed to delete channel")
	}
	return c.JSON(fiber.Map{"message": "Channel deleted"})
}

// HandleSaveVideos registers videos in a channel. A video arriving without
// segments is stored bare; its transcript is acquired on first request.
// Admin only.
func HandleSaveVideos(c *fiber.Ctx) error {
	var req saveVideosRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return badRequest(c, err.Error())
	}

	factory := repository.GetGlobalFactory()
	if _, err := factory.GetChannelRepository().Get(c.Context(), req.ChannelID); err != nil {
		if errors.Is(err, repository.ErrChannelNotFound) {
			return notFound(c, "Channel not found")
		}
		logrus.Errorf("channel load failed: %v", err)
		return internalError(c, "Failed to save videos")
	}

	videoRepo := factory.GetVideoRepository()
	results := make([]fiber.Map, 0, len(req.Videos))
	for _, v := range req.Videos {
		videoID := transcript.ExtractVideoID(v.Link)
		if videoID == "" {
			results = append(results, fiber.Map{"error": "Invalid video URL: " + v.Link})
			continue
		}

		exists, err := videoRepo.Exists(c.Context(), req.ChannelID, videoID)
		if err != nil {
			logrus.Errorf("video existence check failed: %v", err)
			return internalError(c, "Failed to save videos")
		}
		if exists {
			results = append(results, fiber.Map{"duplicate": videoID})
			continue
		}

		visibility := v.Visibility
		if visibility == "" {
			visibility = constants.VisibilityHidden
		}
		err = videoRepo.Save(c.Context(), &models.Video{
			VideoID:    videoID,
			ChannelID:  req.ChannelID,
			Link:       v.Link,
			Title:      v.Title,
			Visibility: visibility,
			Segments:   v.Segments,
		})
		if err != nil {
			logrus.Errorf("video save failed: %v", err)
			return internalError(c, "Failed to save videos")
		}
		results = append(results, fiber.Map{"saved": videoID})
	}

	return c.JSON(fiber.Map{"results": results})
}

// HandleListVideos returns a channel's videos filtered by visibility.
func HandleListVideos(c *fiber.Ctx) error {
	channelID := c.Params("channelId")
	visibility := c.Query("visibility", constants.VisibilityAll)

	videos, err := repository.GetGlobalFactory().GetVideoRepository().ListByChannel(c.Context(), channelID, visibility)
	if err != nil {
		logrus.Errorf("video listing failed for channel %s: %v", channelID, err)
		return internalError(c, "Failed to list videos")
	}
	return c.JSON(fiber.Map{"channel_id": channelID, "videos": videos, "count": len(videos)})
}

// HandleGetTranscript returns a video's transcript, charging the request
// against the free-tier quota and falling back to the acquisition pipeline
// on a cache miss. A charge whose transcript cannot be delivered is
// refunded.
func HandleGetTranscript(c *fiber.Ctx) error {
	channelID := c.Params("channelId")
	videoID := c.Params("videoId")
	email := currentUser(c)
	itemID := channelID + ":" + videoID

	status, err := deps.Entitlements.RecordConsumption(c.Context(), email, itemID, time.Now().UTC())
	if err != nil {
		if errors.Is(err, entitlement.ErrQuotaExceeded) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error":   "quota_exceeded",
				"message": "Free tier quota exceeded for the current cycle",
				"quota":   status,
			})
		}
		if errors.Is(err, entitlement.ErrConflict) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "conflict", "message": "Concurrent update, please retry"})
		}
		logrus.Errorf("quota consumption failed for user %s: %v", email, err)
		return internalError(c, "Failed to check quota")
	}

	segments, err := deps.Transcripts.GetOrFetch(c.Context(), channelID, videoID)
	if err != nil {
		// The charge paid for a transcript that was never delivered; give
		// the slot back.
		if rerr := deps.Entitlements.ReleaseConsumption(c.Context(), email, itemID); rerr != nil {
			logrus.Warnf("quota release failed for user %s item %s: %v", email, itemID, rerr)
		}
		if errors.Is(err, transcript.ErrUnavailable) {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error":   "unavailable",
				"message": "Transcript is currently unavailable from all sources",
			})
		}
		logrus.Errorf("transcript acquisition failed for %s:%s: %v", channelID, videoID, err)
		return internalError(c, "Failed to load transcript")
	}

	title := ""
	if v, err := repository.GetGlobalFactory().GetVideoRepository().Get(c.Context(), channelID, videoID); err == nil {
		title = v.Title
	}

	return c.JSON(fiber.Map{
		"channel_id": channelID,
		"video_id":   videoID,
		"title":      title,
		"transcript": segments,
		"quota":      status,
	})
}

// HandleUpdateSegment replaces a single transcript line. Admin only.
func HandleUpdateSegment(c *fiber.Ctx) error {
	var req segmentUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return badRequest(c, err.Error())
	}

	err := repository.GetGlobalFactory().GetVideoRepository().UpdateSegment(
		c.Context(), c.Params("channelId"), c.Params("videoId"), req.Index,
		transcript.Segment{Start: req.Start, End: req.End, Text: req.Text},
	)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrVideoNotFound):
			return notFound(c, "Video not found")
		case errors.Is(err, repository.ErrSegmentIndex):
			return badRequest(c, "Invalid transcript index")
		default:
			logrus.Errorf("segment update failed: %v", err)
			return internalError(c, "Failed to update transcript")
		}
	}
	return c.JSON(fiber.Map{"message": "Transcript item updated successfully"})
}

// HandleUpdateFullTranscript replaces the whole transcript, backing up the
// previous version on first edit. Admin only.
func HandleUpdateFullTranscript(c *fiber.Ctx) error {
	var req fullTranscriptRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return badRequest(c, err.Error())
	}

	err := repository.GetGlobalFactory().GetVideoRepository().UpdateSegments(
		c.Context(), c.Params("channelId"), c.Params("videoId"), req.Segments)
	if err != nil {
		if errors.Is(err, repository.ErrVideoNotFound) {
			return notFound(c, "Video not found")
		}
		logrus.Errorf("full transcript update failed: %v", err)
		return internalError(c, "Failed to update transcript")
	}
	return c.JSON(fiber.Map{"message": "Full transcript updated successfully"})
}

// HandleRestoreTranscript reverts an edited transcript to the backed-up
// original. Admin only.
func HandleRestoreTranscript(c *fiber.Ctx) error {
	segments, err := repository.GetGlobalFactory().GetVideoRepository().RestoreOriginalSegments(
		c.Context(), c.Params("channelId"), c.Params("videoId"))
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrVideoNotFound):
			return notFound(c, "Video not found")
		case errors.Is(err, repository.ErrNoOriginalSegments):
			return badRequest(c, "Transcript has never been edited")
		default:
			logrus.Errorf("transcript restore failed: %v", err)
			return internalError(c, "Failed to restore transcript")
		}
	}
	return c.JSON(fiber.Map{"message": "Transcript restored", "transcript": segments})
}

// HandleUpdateVideoVisibility changes a video's visibility. Admin only.
func HandleUpdateVideoVisibility(c *fiber.Ctx) error {
	var req struct {
		Visibility string `json:"visibility" validate:"required,oneof=public hidden"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return badRequest(c, err.Error())
	}

	err := repository.GetGlobalFactory().GetVideoRepository().UpdateVisibility(
		c.Context(), c.Params("channelId"), c.Params("videoId"), req.Visibility)
	if err != nil {
		if errors.Is(err, repository.ErrVideoNotFound) {
			return notFound(c, "Video not found")
		}
		logrus.Errorf("visibility update failed: %v", err)
		return internalError(c, "Failed to update visibility")
	}
	return c.JSON(fiber.Map{"message": "Visibility updated"})
}

// HandleDeleteVideo removes a video and prunes it from every user's saved
// progress. Admin only.
func HandleDeleteVideo(c *fiber.Ctx) error {
	channelID := c.Params("channelId")
	videoID := c.Params("videoId")

	factory := repository.GetGlobalFactory()
	if err := factory.GetVideoRepository().Delete(c.Context(), channelID, videoID); err != nil {
		if errors.Is(err, repository.ErrVideoNotFound) {
			return notFound(c, "Video not found")
		}
		logrus.Errorf("video deletion failed: %v", err)
		return internalError(c, "Failed to delete video")
	}

	// Best-effort progress cleanup across all users.
	userRepo := factory.GetUserRepository()
	users, err := userRepo.List(c.Context())
	if err != nil {
		logrus.Warnf("progress cleanup skipped after deleting %s:%s: %v", channelID, videoID, err)
	} else {
		key := channelID + ":" + videoID
		for _, u := range users {
			if err := userRepo.DeleteProgress(c.Context(), u.Email, []string{key}); err != nil {
				logrus.Warnf("progress cleanup failed for user %s: %v", u.Email, err)
			}
		}
	}

	logrus.Infof("deleted video %s:%s", channelID, videoID)
	return c.JSON(fiber.Map{"message": "Video deleted"})
}
