package transcript

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubStrategy struct {
	name     string
	segments []Segment
	err      error
	delay    time.Duration
	calls    int
}

func (s *stubStrategy) Name() string { return s.name }

func (s *stubStrategy) Fetch(ctx context.Context, _ string) ([]Segment, error) {
	s.calls++
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.segments, s.err
}

var sampleSegments = []Segment{
	{Start: 0, End: 2.5, Text: "hello"},
	{Start: 2.5, End: 5.1, Text: "world"},
}

func TestPipelinePrimarySucceeds(t *testing.T) {
	primary := &stubStrategy{name: "primary", segments: sampleSegments}
	fallback := &stubStrategy{name: "fallback"}

	got, err := NewPipeline(primary, fallback).Fetch(context.Background(), "vid")
	require.NoError(t, err)
	assert.Equal(t, sampleSegments, got)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 0, fallback.calls, "fallback must not run when primary succeeds")
}

func TestPipelineFallsBackInOrder(t *testing.T) {
	primary := &stubStrategy{name: "primary", err: errors.New("blocked")}
	fallback := &stubStrategy{name: "fallback", segments: sampleSegments}

	got, err := NewPipeline(primary, fallback).Fetch(context.Background(), "vid")
	require.NoError(t, err)
	assert.Equal(t, sampleSegments, got)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, fallback.calls)
}

func TestPipelineEmptyResultTriggersFallback(t *testing.T) {
	primary := &stubStrategy{name: "primary", segments: []Segment{}}
	fallback := &stubStrategy{name: "fallback", segments: sampleSegments}

	got, err := NewPipeline(primary, fallback).Fetch(context.Background(), "vid")
	require.NoError(t, err)
	assert.Equal(t, sampleSegments, got)
}

func TestPipelineAllFail(t *testing.T) {
	primary := &stubStrategy{name: "primary", err: errors.New("blocked")}
	fallback := &stubStrategy{name: "fallback", err: errors.New("also blocked")}

	_, err := NewPipeline(primary, fallback).Fetch(context.Background(), "vid")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, fallback.calls)
}

func TestPipelineStrategyTimeoutBounded(t *testing.T) {
	slow := &stubStrategy{name: "slow", delay: time.Second, segments: sampleSegments}
	fast := &stubStrategy{name: "fast", segments: sampleSegments}

	p := NewPipeline(slow, fast).WithStrategyTimeout(10 * time.Millisecond)
	got, err := p.Fetch(context.Background(), "vid")
	require.NoError(t, err)
	assert.Equal(t, sampleSegments, got)
	assert.Equal(t, 1, fast.calls, "timed-out strategy must yield to the next one")
}

func TestPipelineCancelledContextStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	primary := &stubStrategy{name: "primary", delay: time.Second}
	fallback := &stubStrategy{name: "fallback", segments: sampleSegments}

	_, err := NewPipeline(primary, fallback).Fetch(ctx, "vid")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, fallback.calls)
}
