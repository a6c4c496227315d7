package entitlement

import (
	"context"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// conflictStore simulates concurrent writers against the in-memory store:
// the first `conflicts` update attempts lose the optimistic race after
// interfere lands its write, the way a WATCH invalidation would. The retry
// discipline itself is the production runOptimistic.
type conflictStore struct {
	*fakeStore
	conflicts int
	interfere func(*fakeStore)
	attempts  int
}

func (s *conflictStore) Update(ctx context.Context, email string, fn func(Record) (Mutation, error)) error {
	return runOptimistic(func() error {
		s.attempts++
		rec, err := s.fakeStore.Get(ctx, email)
		if err != nil {
			return err
		}
		m, err := fn(rec)
		if err != nil {
			return err
		}
		if s.conflicts > 0 {
			s.conflicts--
			if s.interfere != nil {
				s.interfere(s.fakeStore)
			}
			return redis.TxFailedErr
		}
		if m.isZero() {
			return nil
		}
		s.apply(email, m)
		return nil
	})
}

func TestRunOptimisticRetriesLostRaces(t *testing.T) {
	calls := 0
	err := runOptimistic(func() error {
		calls++
		if calls < 3 {
			return redis.TxFailedErr
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRunOptimisticExhaustionIsConflict(t *testing.T) {
	calls := 0
	err := runOptimistic(func() error {
		calls++
		return redis.TxFailedErr
	})
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, maxUpdateAttempts, calls)
}

func TestRunOptimisticPassesOtherErrorsThrough(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := runOptimistic(func() error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestUpdateRetrySeesFreshState(t *testing.T) {
	// A concurrent writer consumes three items while our first attempt is
	// in flight. The retried callback must count against that state, not
	// the stale read.
	store := &conflictStore{
		fakeStore: newFakeStore(),
		conflicts: 1,
		interfere: func(s *fakeStore) {
			s.setQuota("user@test.com", &Quota{
				ConsumedItems: []string{"a", "b", "c"},
				CycleStart:    testNow,
			})
		},
	}
	svc := NewService(store)

	status, err := svc.RecordConsumption(context.Background(), "user@test.com", "d", testNow)
	require.NoError(t, err)
	assert.Equal(t, 2, store.attempts)
	assert.Equal(t, 4, status.Used)

	rec, err := store.Get(context.Background(), "user@test.com")
	require.NoError(t, err)
	require.NotNil(t, rec.Quota)
	assert.ElementsMatch(t, []string{"a", "b", "c", "d"}, rec.Quota.ConsumedItems)
}

func TestUpdateConflictExhaustionSurfaces(t *testing.T) {
	store := &conflictStore{fakeStore: newFakeStore(), conflicts: maxUpdateAttempts}
	svc := NewService(store)

	_, err := svc.RecordConsumption(context.Background(), "user@test.com", "a", testNow)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, maxUpdateAttempts, store.attempts)
	assert.Equal(t, 0, store.writes)
}
