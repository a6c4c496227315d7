package transcript

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu       sync.Mutex
	segments map[string][]Segment
	titles   map[string]string
	gets     int
	puts     int
}

func newMemStore() *memStore {
	return &memStore{segments: make(map[string][]Segment), titles: make(map[string]string)}
}

func (s *memStore) GetSegments(_ context.Context, channelID, videoID string) ([]Segment, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	segs, ok := s.segments[channelID+":"+videoID]
	return segs, ok, nil
}

func (s *memStore) PutSegments(_ context.Context, channelID, videoID string, segs []Segment, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts++
	s.segments[channelID+":"+videoID] = segs
	if title != "" {
		s.titles[channelID+":"+videoID] = title
	}
	return nil
}

type countingFetcher struct {
	mu       sync.Mutex
	segments []Segment
	err      error
	calls    int
}

func (f *countingFetcher) Fetch(context.Context, string) ([]Segment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.segments, f.err
}

type stubTitles struct{ title string }

func (s stubTitles) FetchTitle(context.Context, string) (string, error) { return s.title, nil }

func TestCacheHitSkipsPipeline(t *testing.T) {
	store := newMemStore()
	store.segments["ch:vid"] = sampleSegments
	fetcher := &countingFetcher{}
	cache := NewCache(store, fetcher, nil)

	got, err := cache.GetOrFetch(context.Background(), "ch", "vid")
	require.NoError(t, err)
	assert.Equal(t, sampleSegments, got)
	assert.Equal(t, 0, fetcher.calls, "a cache hit must not touch external sources")
}

func TestCacheMissPopulatesStore(t *testing.T) {
	store := newMemStore()
	fetcher := &countingFetcher{segments: sampleSegments}
	cache := NewCache(store, fetcher, stubTitles{title: "Some Video"})

	got, err := cache.GetOrFetch(context.Background(), "ch", "vid")
	require.NoError(t, err)
	assert.Equal(t, sampleSegments, got)
	assert.Equal(t, 1, fetcher.calls)
	assert.Equal(t, sampleSegments, store.segments["ch:vid"])
	assert.Equal(t, "Some Video", store.titles["ch:vid"])

	// Second request is a pure hit.
	_, err = cache.GetOrFetch(context.Background(), "ch", "vid")
	require.NoError(t, err)
	assert.Equal(t, 1, fetcher.calls)
}

func TestCacheNoNegativeCaching(t *testing.T) {
	store := newMemStore()
	fetcher := &countingFetcher{err: errors.New("upstream down")}
	cache := NewCache(store, fetcher, nil)
	ctx := context.Background()

	_, err := cache.GetOrFetch(ctx, "ch", "vid")
	require.Error(t, err)
	assert.Equal(t, 0, store.puts, "failures must not be written to the store")

	// The failure was not cached: the next request retries the pipeline
	// and succeeds once the source recovers.
	fetcher.mu.Lock()
	fetcher.err = nil
	fetcher.segments = sampleSegments
	fetcher.mu.Unlock()

	got, err := cache.GetOrFetch(ctx, "ch", "vid")
	require.NoError(t, err)
	assert.Equal(t, sampleSegments, got)
	assert.Equal(t, 2, fetcher.calls)
}

func TestCacheCollapsesConcurrentMisses(t *testing.T) {
	store := newMemStore()
	fetcher := &countingFetcher{segments: sampleSegments}
	cache := NewCache(store, fetcher, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := cache.GetOrFetch(context.Background(), "ch", "vid")
			assert.NoError(t, err)
			assert.Equal(t, sampleSegments, got)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, fetcher.calls, 2, "concurrent misses should collapse into few pipeline runs")
}
