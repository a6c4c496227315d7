package entitlement

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/nasuf/dictation-studio-service/internal/pkg/constants"
)

const (
	planField  = "plan"
	quotaField = "quota"

	maxUpdateAttempts = 5
)

// Record is a user's decoded entitlement state. Either field may be nil when
// the stored hash has no such sub-record (or it is malformed).
type Record struct {
	Plan  *Plan
	Quota *Quota
}

// Mutation describes the writes an update callback wants applied. The zero
// value applies nothing.
type Mutation struct {
	SetPlan     *Plan
	SetQuota    *Quota
	DeleteQuota bool
}

func (m Mutation) isZero() bool {
	return m.SetPlan == nil && m.SetQuota == nil && !m.DeleteQuota
}

// Store provides access to per-user entitlement records.
type Store interface {
	// Get reads the current record without any locking.
	Get(ctx context.Context, email string) (Record, error)

	// Update runs fn inside a per-user optimistic transaction: fn sees the
	// current record and returns the mutation to apply. When a concurrent
	// writer invalidates the read, the whole read-modify-write is retried
	// (bounded attempts, then ErrConflict). An error returned by fn aborts
	// the update without writing.
	Update(ctx context.Context, email string, fn func(Record) (Mutation, error)) error

	// ListUsers returns the identities of all stored users.
	ListUsers(ctx context.Context) ([]string, error)
}

type redisStore struct {
	rdb *redis.Client
}

// NewRedisStore creates an entitlement store backed by the user database.
func NewRedisStore(rdb *redis.Client) Store {
	return &redisStore{rdb: rdb}
}

func (s *redisStore) Get(ctx context.Context, email string) (Record, error) {
	vals, err := s.rdb.HMGet(ctx, constants.UserPrefix+email, planField, quotaField).Result()
	if err != nil {
		return Record{}, err
	}
	return decodeRecord(email, vals), nil
}

func (s *redisStore) Update(ctx context.Context, email string, fn func(Record) (Mutation, error)) error {
	key := constants.UserPrefix + email
	return runOptimistic(func() error {
		return s.rdb.Watch(ctx, func(tx *redis.Tx) error {
			vals, err := tx.HMGet(ctx, key, planField, quotaField).Result()
			if err != nil {
				return err
			}
			m, err := fn(decodeRecord(email, vals))
			if err != nil {
				return err
			}
			if m.isZero() {
				return nil
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				if m.SetPlan != nil {
					b, err := json.Marshal(m.SetPlan)
					if err != nil {
						return err
					}
					pipe.HSet(ctx, key, planField, b)
				}
				if m.SetQuota != nil {
					b, err := json.Marshal(m.SetQuota)
					if err != nil {
						return err
					}
					pipe.HSet(ctx, key, quotaField, b)
				}
				if m.DeleteQuota {
					pipe.HDel(ctx, key, quotaField)
				}
				return nil
			})
			return err
		}, key)
	})
}

// runOptimistic retries attempt while it keeps losing the optimistic race
// (redis.TxFailedErr), bounded at maxUpdateAttempts. Any other outcome,
// success or failure, is returned as is.
func runOptimistic(attempt func() error) error {
	for i := 0; i < maxUpdateAttempts; i++ {
		err := attempt()
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return ErrConflict
}

func (s *redisStore) ListUsers(ctx context.Context) ([]string, error) {
	var emails []string
	iter := s.rdb.Scan(ctx, 0, constants.UserPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		emails = append(emails, strings.TrimPrefix(iter.Val(), constants.UserPrefix))
	}
	return emails, iter.Err()
}

// decodeRecord turns the raw plan/quota hash fields into a Record. A
// malformed sub-record is logged as a data-integrity warning and treated as
// absent; it never aborts processing.
func decodeRecord(email string, vals []interface{}) Record {
	var rec Record
	if raw := fieldString(vals, 0); raw != "" {
		var p Plan
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			logrus.Warnf("malformed plan record for user %s, treating as absent: %v", email, err)
		} else {
			rec.Plan = &p
		}
	}
	if raw := fieldString(vals, 1); raw != "" {
		var q Quota
		if err := json.Unmarshal([]byte(raw), &q); err != nil {
			logrus.Warnf("malformed quota record for user %s, treating as absent: %v", email, err)
		} else {
			rec.Quota = &q
		}
	}
	return rec
}

func fieldString(vals []interface{}, i int) string {
	if i >= len(vals) || vals[i] == nil {
		return ""
	}
	s, _ := vals[i].(string)
	return s
}
