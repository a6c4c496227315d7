package transcript

import (
	"context"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// ContentStore persists acquired transcripts, keyed by channel and video.
type ContentStore interface {
	// GetSegments returns the cached transcript, or ok=false on a miss.
	GetSegments(ctx context.Context, channelID, videoID string) (segments []Segment, ok bool, err error)

	// PutSegments stores a transcript and its title. Title may be empty.
	PutSegments(ctx context.Context, channelID, videoID string, segments []Segment, title string) error
}

// Fetcher acquires a transcript from external sources.
type Fetcher interface {
	Fetch(ctx context.Context, videoID string) ([]Segment, error)
}

// TitleFetcher resolves a video's display title. Best effort only.
type TitleFetcher interface {
	FetchTitle(ctx context.Context, videoID string) (string, error)
}

// Cache is the read-through transcript cache: a hit is served from the
// store, a miss runs the acquisition pipeline and persists the result
// before returning it. Failures are never cached.
type Cache struct {
	store  ContentStore
	fetch  Fetcher
	titles TitleFetcher
	group  singleflight.Group
}

// NewCache creates a transcript cache. titles may be nil, in which case
// cached entries carry no title.
func NewCache(store ContentStore, fetch Fetcher, titles TitleFetcher) *Cache {
	return &Cache{store: store, fetch: fetch, titles: titles}
}

// GetOrFetch returns the transcript for a video, consulting the store first
// and falling back to the acquisition pipeline. Concurrent misses for the
// same video are collapsed into a single pipeline run.
func (c *Cache) GetOrFetch(ctx context.Context, channelID, videoID string) ([]Segment, error) {
	segments, ok, err := c.store.GetSegments(ctx, channelID, videoID)
	if err != nil {
		return nil, err
	}
	if ok {
		return segments, nil
	}

	v, err, _ := c.group.Do(channelID+":"+videoID, func() (interface{}, error) {
		// Re-check: another flight may have populated the store while we
		// were queued behind it.
		segments, ok, err := c.store.GetSegments(ctx, channelID, videoID)
		if err == nil && ok {
			return segments, nil
		}

		segments, err = c.fetch.Fetch(ctx, videoID)
		if err != nil {
			return nil, err
		}

		title := ""
		if c.titles != nil {
			if t, err := c.titles.FetchTitle(ctx, videoID); err != nil {
				logrus.Warnf("title lookup failed for video %s: %v", videoID, err)
			} else {
				title = t
			}
		}

		// The result is stored before it is returned so the next request
		// hits the cache even if this response is never delivered.
		if err := c.store.PutSegments(ctx, channelID, videoID, segments, title); err != nil {
			return nil, err
		}
		return segments, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Segment), nil
}
