package repository

import (
	"context"

	"github.com/nasuf/dictation-studio-service/app/models"
	"github.com/nasuf/dictation-studio-service/internal/pkg/transcript"
)

// UserRepository defines user account operations on the user database.
// Entitlement fields (plan, quota) in the same hash are owned by the
// entitlement store and deliberately absent here.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Exists(ctx context.Context, email string) (bool, error)
	GetPasswordHash(ctx context.Context, email string) (string, error)
	List(ctx context.Context) ([]*models.User, error)
	Delete(ctx context.Context, email string) error

	GetRole(ctx context.Context, email string) (string, error)
	SetRole(ctx context.Context, email, role string) error

	GetProgress(ctx context.Context, email string) (map[string]*models.DictationProgress, error)
	SaveProgress(ctx context.Context, email, channelID, videoID string, p *models.DictationProgress) error
	DeleteProgress(ctx context.Context, email string, keys []string) error

	GetDuration(ctx context.Context, email string) (*models.DurationData, error)
	AddDuration(ctx context.Context, email, channelID, videoID, day string, increment int64) (*models.DurationData, error)

	GetConfig(ctx context.Context, email string) (map[string]interface{}, error)
	UpdateConfig(ctx context.Context, email string, fields map[string]interface{}) error

	GetMissedWords(ctx context.Context, email string) ([]string, error)
	SetMissedWords(ctx context.Context, email string, words []string) error
}

// ChannelRepository defines channel catalog operations on the resource
// database.
type ChannelRepository interface {
	Upsert(ctx context.Context, channels []*models.Channel) error
	Get(ctx context.Context, id string) (*models.Channel, error)
	List(ctx context.Context, visibility, language string) ([]*models.Channel, error)
	Update(ctx context.Context, id string, fields map[string]string) error
	Delete(ctx context.Context, id string) error
}

// VideoRepository defines content item operations on the resource
// database. The segments field doubles as the transcript cache, so the
// acquisition pipeline and the editor operate on the same data.
type VideoRepository interface {
	Save(ctx context.Context, video *models.Video) error
	Get(ctx context.Context, channelID, videoID string) (*models.Video, error)
	Exists(ctx context.Context, channelID, videoID string) (bool, error)
	ListByChannel(ctx context.Context, channelID, visibility string) ([]*models.Video, error)
	Delete(ctx context.Context, channelID, videoID string) error

	UpdateSegment(ctx context.Context, channelID, videoID string, index int, seg transcript.Segment) error
	UpdateSegments(ctx context.Context, channelID, videoID string, segments []transcript.Segment) error
	RestoreOriginalSegments(ctx context.Context, channelID, videoID string) ([]transcript.Segment, error)
	UpdateVisibility(ctx context.Context, channelID, videoID, visibility string) error
}
