package transcript

import (
	"errors"
	"math"
)

// ErrUnavailable is returned when every acquisition strategy failed for a
// video. Failures are never cached, so a later request retries the full
// pipeline.
var ErrUnavailable = errors.New("transcript unavailable")

// Segment is one timed line of a transcript. Start and End are seconds from
// the beginning of the video, rounded to two decimals.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"transcript"`
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
