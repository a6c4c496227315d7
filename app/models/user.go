package models

import "encoding/json"

// User is the account record stored in the user database. Plan and quota
// live in the same hash but are owned by the entitlement engine and never
// touched through this model.
type User struct {
	Username  string `json:"username" validate:"required,min=2,max=100"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"-"`
	Avatar    string `json:"avatar"`
	Role      string `json:"role"`
	Language  string `json:"language"`
	CreatedAt int64  `json:"createdAt,omitempty"`
	UpdatedAt int64  `json:"updatedAt,omitempty"`
}

// DictationProgress is one video's saved dictation state, keyed by
// "{channelId}:{videoId}" in the user's progress map.
type DictationProgress struct {
	UserInput         json.RawMessage `json:"userInput"`
	CurrentTime       int64           `json:"currentTime"`
	OverallCompletion int             `json:"overallCompletion"`
	Duration          int64           `json:"duration"`
}

// ChannelDuration aggregates practice time within one channel.
type ChannelDuration struct {
	Duration int64            `json:"duration"`
	Videos   map[string]int64 `json:"videos"`
}

// DurationData aggregates a user's total practice time, per channel and
// per calendar day.
type DurationData struct {
	Duration int64                       `json:"duration"`
	Channels map[string]*ChannelDuration `json:"channels"`
	Date     map[string]int64            `json:"date"`
}

// NewDurationData returns an empty, fully initialized duration record.
func NewDurationData() *DurationData {
	return &DurationData{
		Channels: make(map[string]*ChannelDuration),
		Date:     make(map[string]int64),
	}
}

// Add records a practice-time increment for one video.
func (d *DurationData) Add(channelID, videoID, day string, increment int64) {
	d.Duration += increment

	if d.Channels == nil {
		d.Channels = make(map[string]*ChannelDuration)
	}
	ch := d.Channels[channelID]
	if ch == nil {
		ch = &ChannelDuration{Videos: make(map[string]int64)}
		d.Channels[channelID] = ch
	}
	ch.Duration += increment
	ch.Videos[videoID] += increment

	if d.Date == nil {
		d.Date = make(map[string]int64)
	}
	d.Date[day] += increment
}
