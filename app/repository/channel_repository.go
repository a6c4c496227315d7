package repository

import (
	"context"
	"errors"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/nasuf/dictation-studio-service/app/models"
	"github.com/nasuf/dictation-studio-service/internal/pkg/constants"
)

// ErrChannelNotFound is returned for operations on a missing channel.
var ErrChannelNotFound = errors.New("channel not found")

// channelRepository implements the ChannelRepository interface
type channelRepository struct {
	rdb *redis.Client
}

// NewChannelRepository creates a new channel repository instance
func NewChannelRepository(rdb *redis.Client) ChannelRepository {
	return &channelRepository{rdb: rdb}
}

func channelKey(id string) string {
	return constants.ChannelPrefix + id
}

func (r *channelRepository) Upsert(ctx context.Context, channels []*models.Channel) error {
	for _, ch := range channels {
		if ch.Visibility == "" {
			ch.Visibility = constants.VisibilityPublic
		}
		if ch.Language == "" {
			ch.Language = "en"
		}
		if err := r.rdb.HSet(ctx, channelKey(ch.ID), map[string]interface{}{
			"id":         ch.ID,
			"name":       ch.Name,
			"image_url":  ch.ImageURL,
			"visibility": ch.Visibility,
			"language":   ch.Language,
			"link":       ch.Link,
		}).Err(); err != nil {
			return err
		}
	}
	return nil
}

func (r *channelRepository) Get(ctx context.Context, id string) (*models.Channel, error) {
	data, err := r.rdb.HGetAll(ctx, channelKey(id)).Result()
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, ErrChannelNotFound
	}
	return channelFromHash(data), nil
}

func (r *channelRepository) List(ctx context.Context, visibility, language string) ([]*models.Channel, error) {
	var channels []*models.Channel
	iter := r.rdb.Scan(ctx, 0, constants.ChannelPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		data, err := r.rdb.HGetAll(ctx, iter.Val()).Result()
		if err != nil {
			return nil, err
		}
		if len(data) == 0 {
			continue
		}
		ch := channelFromHash(data)
		if visibility != constants.VisibilityAll && ch.Visibility != visibility {
			continue
		}
		if language != constants.LanguageAll && language != "" && ch.Language != language {
			continue
		}
		channels = append(channels, ch)
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}

	sort.Slice(channels, func(i, j int) bool { return channels[i].Name < channels[j].Name })
	return channels, nil
}

func (r *channelRepository) Update(ctx context.Context, id string, fields map[string]string) error {
	n, err := r.rdb.Exists(ctx, channelKey(id)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrChannelNotFound
	}

	hashFields := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		hashFields[k] = v
	}
	return r.rdb.HSet(ctx, channelKey(id), hashFields).Err()
}

func (r *channelRepository) Delete(ctx context.Context, id string) error {
	n, err := r.rdb.Del(ctx, channelKey(id)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrChannelNotFound
	}
	return nil
}

func channelFromHash(data map[string]string) *models.Channel {
	return &models.Channel{
		ID:         data["id"],
		Name:       data["name"],
		ImageURL:   data["image_url"],
		Visibility: data["visibility"],
		Language:   data["language"],
		Link:       data["link"],
	}
}
