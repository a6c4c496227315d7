package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nasuf/dictation-studio-service/app/models"
	"github.com/nasuf/dictation-studio-service/internal/pkg/constants"
)

// ErrUserNotFound is returned for operations that require an existing user.
var ErrUserNotFound = errors.New("user not found")

// User hash fields managed by this repository.
const (
	fieldUsername     = "username"
	fieldEmail        = "email"
	fieldPassword     = "password"
	fieldAvatar       = "avatar"
	fieldRole         = "role"
	fieldLanguage     = "language"
	fieldCreatedAt    = "created_at"
	fieldUpdatedAt    = "updated_at"
	fieldProgress     = "dictation_progress"
	fieldDuration     = "duration_data"
	fieldMissedWords  = "missed_words"
	fieldPlanReserved = "plan"
)

// userRepository implements the UserRepository interface over the user
// database hash-per-user layout.
type userRepository struct {
	rdb *redis.Client
}

// NewUserRepository creates a new user repository instance
func NewUserRepository(rdb *redis.Client) UserRepository {
	return &userRepository{rdb: rdb}
}

func userKey(email string) string {
	return constants.UserPrefix + email
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	now := time.Now().UnixMilli()
	user.CreatedAt = now
	user.UpdatedAt = now
	return r.rdb.HSet(ctx, userKey(user.Email), map[string]interface{}{
		fieldUsername:  user.Username,
		fieldEmail:     user.Email,
		fieldPassword:  user.Password,
		fieldAvatar:    user.Avatar,
		fieldRole:      user.Role,
		fieldLanguage:  user.Language,
		fieldCreatedAt: now,
		fieldUpdatedAt: now,
	}).Err()
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	data, err := r.rdb.HGetAll(ctx, userKey(email)).Result()
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, ErrUserNotFound
	}
	return userFromHash(data), nil
}

func (r *userRepository) Exists(ctx context.Context, email string) (bool, error) {
	n, err := r.rdb.Exists(ctx, userKey(email)).Result()
	return n > 0, err
}

func (r *userRepository) GetPasswordHash(ctx context.Context, email string) (string, error) {
	hash, err := r.rdb.HGet(ctx, userKey(email), fieldPassword).Result()
	if err == redis.Nil {
		return "", ErrUserNotFound
	}
	return hash, err
}

func (r *userRepository) List(ctx context.Context) ([]*models.User, error) {
	var users []*models.User
	iter := r.rdb.Scan(ctx, 0, constants.UserPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		data, err := r.rdb.HGetAll(ctx, iter.Val()).Result()
		if err != nil {
			return nil, err
		}
		if len(data) > 0 {
			users = append(users, userFromHash(data))
		}
	}
	return users, iter.Err()
}

func (r *userRepository) Delete(ctx context.Context, email string) error {
	return r.rdb.Del(ctx, userKey(email)).Err()
}

func (r *userRepository) GetRole(ctx context.Context, email string) (string, error) {
	role, err := r.rdb.HGet(ctx, userKey(email), fieldRole).Result()
	if err == redis.Nil {
		return "", ErrUserNotFound
	}
	return role, err
}

func (r *userRepository) SetRole(ctx context.Context, email, role string) error {
	exists, err := r.Exists(ctx, email)
	if err != nil {
		return err
	}
	if !exists {
		return ErrUserNotFound
	}
	return r.rdb.HSet(ctx, userKey(email), fieldRole, role, fieldUpdatedAt, time.Now().UnixMilli()).Err()
}

func (r *userRepository) GetProgress(ctx context.Context, email string) (map[string]*models.DictationProgress, error) {
	progress := make(map[string]*models.DictationProgress)
	if err := r.getJSONField(ctx, email, fieldProgress, &progress); err != nil {
		return nil, err
	}
	return progress, nil
}

func (r *userRepository) SaveProgress(ctx context.Context, email, channelID, videoID string, p *models.DictationProgress) error {
	exists, err := r.Exists(ctx, email)
	if err != nil {
		return err
	}
	if !exists {
		return ErrUserNotFound
	}

	progress, err := r.GetProgress(ctx, email)
	if err != nil {
		return err
	}
	progress[channelID+":"+videoID] = p
	return r.setJSONField(ctx, email, fieldProgress, progress)
}

func (r *userRepository) DeleteProgress(ctx context.Context, email string, keys []string) error {
	progress, err := r.GetProgress(ctx, email)
	if err != nil {
		return err
	}
	changed := false
	for _, k := range keys {
		if _, ok := progress[k]; ok {
			delete(progress, k)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return r.setJSONField(ctx, email, fieldProgress, progress)
}

func (r *userRepository) GetDuration(ctx context.Context, email string) (*models.DurationData, error) {
	d := models.NewDurationData()
	if err := r.getJSONField(ctx, email, fieldDuration, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (r *userRepository) AddDuration(ctx context.Context, email, channelID, videoID, day string, increment int64) (*models.DurationData, error) {
	d, err := r.GetDuration(ctx, email)
	if err != nil {
		return nil, err
	}
	d.Add(channelID, videoID, day, increment)
	if err := r.setJSONField(ctx, email, fieldDuration, d); err != nil {
		return nil, err
	}
	return d, nil
}

// GetConfig returns every user hash field except the password, with JSON
// fields decoded.
func (r *userRepository) GetConfig(ctx context.Context, email string) (map[string]interface{}, error) {
	data, err := r.rdb.HGetAll(ctx, userKey(email)).Result()
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, ErrUserNotFound
	}

	config := make(map[string]interface{}, len(data))
	for k, v := range data {
		if k == fieldPassword {
			continue
		}
		var decoded interface{}
		if err := json.Unmarshal([]byte(v), &decoded); err == nil {
			config[k] = decoded
		} else {
			config[k] = v
		}
	}
	return config, nil
}

// UpdateConfig writes arbitrary configuration fields into the user hash.
// Structured values are stored as JSON, scalars as strings. The password
// and entitlement fields are off limits.
func (r *userRepository) UpdateConfig(ctx context.Context, email string, fields map[string]interface{}) error {
	exists, err := r.Exists(ctx, email)
	if err != nil {
		return err
	}
	if !exists {
		return ErrUserNotFound
	}

	hashFields := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		if k == fieldPassword || k == fieldPlanReserved || k == "quota" {
			return fmt.Errorf("field %s cannot be updated through config", k)
		}
		switch v.(type) {
		case map[string]interface{}, []interface{}:
			b, err := json.Marshal(v)
			if err != nil {
				return err
			}
			hashFields[k] = b
		default:
			hashFields[k] = fmt.Sprintf("%v", v)
		}
	}
	hashFields[fieldUpdatedAt] = time.Now().UnixMilli()
	return r.rdb.HSet(ctx, userKey(email), hashFields).Err()
}

func (r *userRepository) GetMissedWords(ctx context.Context, email string) ([]string, error) {
	words := []string{}
	if err := r.getJSONField(ctx, email, fieldMissedWords, &words); err != nil {
		return nil, err
	}
	return words, nil
}

func (r *userRepository) SetMissedWords(ctx context.Context, email string, words []string) error {
	// Dedupe while preserving first-seen order.
	seen := make(map[string]struct{}, len(words))
	unique := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.TrimSpace(strings.ToLower(w))
		if w == "" {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		unique = append(unique, w)
	}
	return r.setJSONField(ctx, email, fieldMissedWords, unique)
}

func (r *userRepository) getJSONField(ctx context.Context, email, field string, out interface{}) error {
	raw, err := r.rdb.HGet(ctx, userKey(email), field).Result()
	if err == redis.Nil || raw == "" {
		return nil
	}
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(raw), out)
}

func (r *userRepository) setJSONField(ctx context.Context, email, field string, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return r.rdb.HSet(ctx, userKey(email), field, b).Err()
}

func userFromHash(data map[string]string) *models.User {
	u := &models.User{
		Username: data[fieldUsername],
		Email:    data[fieldEmail],
		Password: data[fieldPassword],
		Avatar:   data[fieldAvatar],
		Role:     data[fieldRole],
		Language: data[fieldLanguage],
	}
	fmt.Sscanf(data[fieldCreatedAt], "%d", &u.CreatedAt)
	fmt.Sscanf(data[fieldUpdatedAt], "%d", &u.UpdatedAt)
	return u
}
