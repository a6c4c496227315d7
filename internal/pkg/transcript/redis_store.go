package transcript

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/nasuf/dictation-studio-service/internal/pkg/constants"
)

const (
	segmentsField = "segments"
	titleField    = "title"
)

type redisStore struct {
	rdb *redis.Client
}

// NewRedisStore creates a transcript store on the resource database. Entries
// live in the content hash alongside the video's catalog fields.
func NewRedisStore(rdb *redis.Client) ContentStore {
	return &redisStore{rdb: rdb}
}

func contentKey(channelID, videoID string) string {
	return constants.ContentPrefix + channelID + ":" + videoID
}

func (s *redisStore) GetSegments(ctx context.Context, channelID, videoID string) ([]Segment, bool, error) {
	raw, err := s.rdb.HGet(ctx, contentKey(channelID, videoID), segmentsField).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if raw == "" {
		return nil, false, nil
	}

	var segments []Segment
	if err := json.Unmarshal([]byte(raw), &segments); err != nil {
		// Treated as a miss so the pipeline can repopulate the entry.
		logrus.Warnf("malformed cached transcript for %s:%s, refetching: %v", channelID, videoID, err)
		return nil, false, nil
	}
	if len(segments) == 0 {
		return nil, false, nil
	}
	return segments, true, nil
}

func (s *redisStore) PutSegments(ctx context.Context, channelID, videoID string, segments []Segment, title string) error {
	b, err := json.Marshal(segments)
	if err != nil {
		return err
	}
	fields := map[string]interface{}{segmentsField: b}
	if title != "" {
		fields[titleField] = title
	}
	return s.rdb.HSet(ctx, contentKey(channelID, videoID), fields).Err()
}
