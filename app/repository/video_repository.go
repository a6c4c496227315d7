package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nasuf/dictation-studio-service/app/models"
	"github.com/nasuf/dictation-studio-service/internal/pkg/constants"
	"github.com/nasuf/dictation-studio-service/internal/pkg/transcript"
)

var (
	// ErrVideoNotFound is returned for operations on a missing video.
	ErrVideoNotFound = errors.New("video not found")

	// ErrNoOriginalSegments is returned when a restore is requested but the
	// transcript was never edited.
	ErrNoOriginalSegments = errors.New("no original transcript backup")

	// ErrSegmentIndex is returned for an out-of-range segment update.
	ErrSegmentIndex = errors.New("segment index out of range")
)

// Video hash fields. The segments field is shared with the transcript
// cache store.
const (
	videoFieldLink       = "link"
	videoFieldVideoID    = "video_id"
	videoFieldTitle      = "title"
	videoFieldVisibility = "visibility"
	videoFieldSegments   = "segments"
	videoFieldOriginal   = "original_segments"
	videoFieldCreatedAt  = "created_at"
	videoFieldUpdatedAt  = "updated_at"
)

// videoRepository implements the VideoRepository interface
type videoRepository struct {
	rdb *redis.Client
}

// NewVideoRepository creates a new video repository instance
func NewVideoRepository(rdb *redis.Client) VideoRepository {
	return &videoRepository{rdb: rdb}
}

func videoKey(channelID, videoID string) string {
	return constants.ContentPrefix + channelID + ":" + videoID
}

func (r *videoRepository) Save(ctx context.Context, video *models.Video) error {
	now := time.Now().UnixMilli()
	if video.CreatedAt == 0 {
		video.CreatedAt = now
	}
	video.UpdatedAt = now

	fields := map[string]interface{}{
		videoFieldLink:       video.Link,
		videoFieldVideoID:    video.VideoID,
		videoFieldTitle:      video.Title,
		videoFieldVisibility: video.Visibility,
		videoFieldCreatedAt:  video.CreatedAt,
		videoFieldUpdatedAt:  video.UpdatedAt,
	}
	if video.Segments != nil {
		b, err := json.Marshal(video.Segments)
		if err != nil {
			return err
		}
		fields[videoFieldSegments] = b
	}
	return r.rdb.HSet(ctx, videoKey(video.ChannelID, video.VideoID), fields).Err()
}

func (r *videoRepository) Get(ctx context.Context, channelID, videoID string) (*models.Video, error) {
	data, err := r.rdb.HGetAll(ctx, videoKey(channelID, videoID)).Result()
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, ErrVideoNotFound
	}
	return videoFromHash(channelID, videoID, data)
}

func (r *videoRepository) Exists(ctx context.Context, channelID, videoID string) (bool, error) {
	n, err := r.rdb.Exists(ctx, videoKey(channelID, videoID)).Result()
	return n > 0, err
}

func (r *videoRepository) ListByChannel(ctx context.Context, channelID, visibility string) ([]*models.Video, error) {
	var videos []*models.Video
	iter := r.rdb.Scan(ctx, 0, constants.ContentPrefix+channelID+":*", 100).Iterator()
	for iter.Next(ctx) {
		data, err := r.rdb.HGetAll(ctx, iter.Val()).Result()
		if err != nil {
			return nil, err
		}
		if len(data) == 0 {
			continue
		}
		if visibility != constants.VisibilityAll && data[videoFieldVisibility] != visibility {
			continue
		}
		v, err := videoFromHash(channelID, data[videoFieldVideoID], data)
		if err != nil {
			return nil, err
		}
		videos = append(videos, v)
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}

	sort.Slice(videos, func(i, j int) bool { return videos[i].CreatedAt > videos[j].CreatedAt })
	return videos, nil
}

func (r *videoRepository) Delete(ctx context.Context, channelID, videoID string) error {
	n, err := r.rdb.Del(ctx, videoKey(channelID, videoID)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrVideoNotFound
	}
	return nil
}

// UpdateSegment replaces one transcript line in place.
func (r *videoRepository) UpdateSegment(ctx context.Context, channelID, videoID string, index int, seg transcript.Segment) error {
	key := videoKey(channelID, videoID)
	raw, err := r.rdb.HGet(ctx, key, videoFieldSegments).Result()
	if err == redis.Nil {
		return ErrVideoNotFound
	}
	if err != nil {
		return err
	}

	var segments []transcript.Segment
	if err := json.Unmarshal([]byte(raw), &segments); err != nil {
		return fmt.Errorf("decode stored transcript: %w", err)
	}
	if index < 0 || index >= len(segments) {
		return ErrSegmentIndex
	}
	segments[index] = seg

	b, err := json.Marshal(segments)
	if err != nil {
		return err
	}
	return r.rdb.HSet(ctx, key, videoFieldSegments, b, videoFieldUpdatedAt, time.Now().UnixMilli()).Err()
}

// UpdateSegments replaces the whole transcript. The first full rewrite
// backs up the previous transcript so it can be restored later.
func (r *videoRepository) UpdateSegments(ctx context.Context, channelID, videoID string, segments []transcript.Segment) error {
	key := videoKey(channelID, videoID)
	data, err := r.rdb.HMGet(ctx, key, videoFieldSegments, videoFieldOriginal).Result()
	if err != nil {
		return err
	}
	current, _ := data[0].(string)
	original, _ := data[1].(string)
	if current == "" {
		n, err := r.rdb.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrVideoNotFound
		}
	}

	fields := map[string]interface{}{videoFieldUpdatedAt: time.Now().UnixMilli()}
	if original == "" && current != "" {
		fields[videoFieldOriginal] = current
	}
	b, err := json.Marshal(segments)
	if err != nil {
		return err
	}
	fields[videoFieldSegments] = b
	return r.rdb.HSet(ctx, key, fields).Err()
}

// RestoreOriginalSegments copies the backup transcript over the current
// one and returns the restored segments.
func (r *videoRepository) RestoreOriginalSegments(ctx context.Context, channelID, videoID string) ([]transcript.Segment, error) {
	key := videoKey(channelID, videoID)
	raw, err := r.rdb.HGet(ctx, key, videoFieldOriginal).Result()
	if err == redis.Nil {
		n, err := r.rdb.Exists(ctx, key).Result()
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, ErrVideoNotFound
		}
		return nil, ErrNoOriginalSegments
	}
	if err != nil {
		return nil, err
	}

	var segments []transcript.Segment
	if err := json.Unmarshal([]byte(raw), &segments); err != nil {
		return nil, fmt.Errorf("decode transcript backup: %w", err)
	}
	if err := r.rdb.HSet(ctx, key, videoFieldSegments, raw, videoFieldUpdatedAt, time.Now().UnixMilli()).Err(); err != nil {
		return nil, err
	}
	return segments, nil
}

func (r *videoRepository) UpdateVisibility(ctx context.Context, channelID, videoID, visibility string) error {
	exists, err := r.Exists(ctx, channelID, videoID)
	if err != nil {
		return err
	}
	if !exists {
		return ErrVideoNotFound
	}
	return r.rdb.HSet(ctx, videoKey(channelID, videoID), videoFieldVisibility, visibility, videoFieldUpdatedAt, time.Now().UnixMilli()).Err()
}

func videoFromHash(channelID, videoID string, data map[string]string) (*models.Video, error) {
	v := &models.Video{
		VideoID:    videoID,
		ChannelID:  channelID,
		Link:       data[videoFieldLink],
		Title:      data[videoFieldTitle],
		Visibility: data[videoFieldVisibility],
	}
	if v.VideoID == "" {
		v.VideoID = data[videoFieldVideoID]
	}
	fmt.Sscanf(data[videoFieldCreatedAt], "%d", &v.CreatedAt)
	fmt.Sscanf(data[videoFieldUpdatedAt], "%d", &v.UpdatedAt)

	if raw := data[videoFieldSegments]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &v.Segments); err != nil {
			return nil, fmt.Errorf("decode transcript for %s:%s: %w", channelID, videoID, err)
		}
	}
	if raw := data[videoFieldOriginal]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &v.OriginalSegments); err != nil {
			return nil, fmt.Errorf("decode transcript backup for %s:%s: %w", channelID, videoID, err)
		}
	}
	return v, nil
}
