package models

import "github.com/nasuf/dictation-studio-service/internal/pkg/transcript"

// Video is one content item in a channel. Segments hold the current
// transcript; OriginalSegments backs up the pre-edit transcript the first
// time an editor rewrites it.
type Video struct {
	VideoID          string               `json:"video_id"`
	ChannelID        string               `json:"channel_id"`
	Link             string               `json:"link"`
	Title            string               `json:"title"`
	Visibility       string               `json:"visibility"`
	Segments         []transcript.Segment `json:"segments,omitempty"`
	OriginalSegments []transcript.Segment `json:"original_segments,omitempty"`
	CreatedAt        int64                `json:"created_at,omitempty"`
	UpdatedAt        int64                `json:"updated_at,omitempty"`
}
