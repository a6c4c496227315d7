package transcript

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultStrategyTimeout bounds each individual acquisition attempt so a
// hanging source cannot stall the whole pipeline.
const DefaultStrategyTimeout = 15 * time.Second

// Strategy is one way of acquiring a transcript from an external source.
type Strategy interface {
	Name() string
	Fetch(ctx context.Context, videoID string) ([]Segment, error)
}

// Pipeline tries an ordered list of strategies until one yields a non-empty
// transcript.
type Pipeline struct {
	strategies []Strategy
	timeout    time.Duration
}

// NewPipeline creates a pipeline over the given strategies, tried in order.
func NewPipeline(strategies ...Strategy) *Pipeline {
	return &Pipeline{strategies: strategies, timeout: DefaultStrategyTimeout}
}

// WithStrategyTimeout overrides the per-strategy timeout.
func (p *Pipeline) WithStrategyTimeout(d time.Duration) *Pipeline {
	p.timeout = d
	return p
}

// Fetch runs the strategies in order and returns the first successful
// transcript. A strategy failure is logged and the next strategy is tried;
// when all fail the pipeline returns ErrUnavailable.
func (p *Pipeline) Fetch(ctx context.Context, videoID string) ([]Segment, error) {
	for _, s := range p.strategies {
		sctx, cancel := context.WithTimeout(ctx, p.timeout)
		segments, err := s.Fetch(sctx, videoID)
		cancel()

		if err != nil {
			logrus.Warnf("transcript strategy %s failed for video %s: %v", s.Name(), videoID, err)
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		if len(segments) == 0 {
			logrus.Warnf("transcript strategy %s returned no segments for video %s", s.Name(), videoID)
			continue
		}
		logrus.Infof("transcript for video %s acquired via %s (%d segments)", videoID, s.Name(), len(segments))
		return segments, nil
	}
	return nil, ErrUnavailable
}
