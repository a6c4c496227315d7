package payment

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/nasuf/dictation-studio-service/internal/pkg/constants"
	"github.com/nasuf/dictation-studio-service/internal/pkg/entitlement"
)

const (
	MaxRetryAttempts = 5

	failedUpdateTTL = 24 * time.Hour
)

// retryDelay is a variable so tests can shrink it.
var retryDelay = 5 * time.Second

// FailedUpdate records a payment whose plan application failed after the
// money moved. It is retried in the background until it sticks or the
// attempts run out.
type FailedUpdate struct {
	SessionID  string                   `json:"session_id"`
	Event      entitlement.PaymentEvent `json:"event"`
	Error      string                   `json:"error"`
	RetryCount int                      `json:"retry_count"`
	Timestamp  time.Time                `json:"timestamp"`
	NextRetry  time.Time                `json:"next_retry"`
}

// FailedUpdates records and clears parked plan applications.
type FailedUpdates interface {
	Save(ctx context.Context, f *FailedUpdate) error
	Delete(ctx context.Context, sessionID string) error
}

// FailedUpdateStore keeps failed plan applications in the user database,
// keyed by payment session.
type FailedUpdateStore struct {
	rdb *redis.Client
}

func NewFailedUpdateStore(rdb *redis.Client) *FailedUpdateStore {
	return &FailedUpdateStore{rdb: rdb}
}

func (s *FailedUpdateStore) Save(ctx context.Context, f *FailedUpdate) error {
	b, err := json.Marshal(f)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, constants.FailedUpdatePrefix+f.SessionID, b, failedUpdateTTL).Err()
}

func (s *FailedUpdateStore) Get(ctx context.Context, sessionID string) (*FailedUpdate, error) {
	raw, err := s.rdb.Get(ctx, constants.FailedUpdatePrefix+sessionID).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var f FailedUpdate
	if err := json.Unmarshal([]byte(raw), &f); err != nil {
		return nil, err
	}
	return &f, nil
}

func (s *FailedUpdateStore) Delete(ctx context.Context, sessionID string) error {
	return s.rdb.Del(ctx, constants.FailedUpdatePrefix+sessionID).Err()
}

// PlanApplier applies a confirmed payment to a user's plan.
type PlanApplier interface {
	ApplyPayment(ctx context.Context, ev entitlement.PaymentEvent, now time.Time) (*entitlement.Plan, error)
}

// ApplyWithRetry applies a payment event, retrying transient failures with
// a fixed delay. When all attempts fail the event is parked as a failed
// update for the background retrier and the last error is returned.
func ApplyWithRetry(ctx context.Context, applier PlanApplier, failed FailedUpdates, sessionID string, ev entitlement.PaymentEvent) error {
	var lastErr error
attempts:
	for attempt := 1; attempt <= MaxRetryAttempts; attempt++ {
		if _, lastErr = applier.ApplyPayment(ctx, ev, time.Now().UTC()); lastErr == nil {
			if err := failed.Delete(ctx, sessionID); err != nil {
				logrus.Warnf("failed to clear retry record for session %s: %v", sessionID, err)
			}
			return nil
		}
		logrus.Warnf("plan application attempt %d failed for session %s: %v", attempt, sessionID, lastErr)

		if attempt < MaxRetryAttempts {
			select {
			case <-time.After(retryDelay):
			case <-ctx.Done():
				lastErr = ctx.Err()
				break attempts
			}
		}
	}

	now := time.Now().UTC()
	rec := &FailedUpdate{
		SessionID:  sessionID,
		Event:      ev,
		Error:      lastErr.Error(),
		RetryCount: MaxRetryAttempts,
		Timestamp:  now,
		NextRetry:  now.Add(retryDelay),
	}
	if err := failed.Save(ctx, rec); err != nil {
		logrus.Errorf("failed to store retry record for session %s: %v", sessionID, err)
	}
	return lastErr
}
