package entitlement

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestRecordConsumptionFreeTierLimit(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store)
	ctx := context.Background()

	for i, item := range []string{"video-1", "video-2", "video-3", "video-4"} {
		status, err := svc.RecordConsumption(ctx, "user@test.com", item, testNow)
		require.NoError(t, err)
		assert.True(t, status.Limited)
		assert.Equal(t, i+1, status.Used)
		assert.Equal(t, FreeQuotaLimit, status.Limit)
	}

	// Fifth distinct item is denied without writing.
	writesBefore := store.writes
	status, err := svc.RecordConsumption(ctx, "user@test.com", "video-5", testNow)
	assert.ErrorIs(t, err, ErrQuotaExceeded)
	assert.Equal(t, 4, status.Used)
	assert.False(t, status.CanProceed)
	assert.Equal(t, writesBefore, store.writes)
}

func TestRecordConsumptionIdempotent(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store)
	ctx := context.Background()

	_, err := svc.RecordConsumption(ctx, "user@test.com", "video-1", testNow)
	require.NoError(t, err)

	// Re-consuming the same item succeeds, counts nothing, writes nothing.
	writesBefore := store.writes
	status, err := svc.RecordConsumption(ctx, "user@test.com", "video-1", testNow.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, status.Used)
	assert.True(t, status.CanProceed)
	assert.Equal(t, writesBefore, store.writes)
}

func TestRecordConsumptionCycleReset(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store)
	ctx := context.Background()

	for _, item := range []string{"a", "b", "c", "d"} {
		_, err := svc.RecordConsumption(ctx, "user@test.com", item, testNow)
		require.NoError(t, err)
	}
	_, err := svc.RecordConsumption(ctx, "user@test.com", "e", testNow)
	require.ErrorIs(t, err, ErrQuotaExceeded)

	// Exactly 30 days later the boundary counts as expired: the cycle
	// resets and the denied item goes through with a fresh window.
	boundary := testNow.Add(QuotaCycle)
	status, err := svc.RecordConsumption(ctx, "user@test.com", "e", boundary)
	require.NoError(t, err)
	assert.Equal(t, 1, status.Used)
	assert.Equal(t, boundary, status.CycleStart)

	// A previously consumed item also counts again in the new cycle.
	status, err = svc.RecordConsumption(ctx, "user@test.com", "a", boundary)
	require.NoError(t, err)
	assert.Equal(t, 2, status.Used)
}

func TestReleaseConsumptionReturnsSlot(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store)
	ctx := context.Background()

	for _, item := range []string{"a", "b", "c", "d"} {
		_, err := svc.RecordConsumption(ctx, "user@test.com", item, testNow)
		require.NoError(t, err)
	}

	// Delivery of "d" failed; the refunded slot is usable again.
	require.NoError(t, svc.ReleaseConsumption(ctx, "user@test.com", "d"))

	status, err := svc.Evaluate(ctx, "user@test.com", testNow)
	require.NoError(t, err)
	assert.Equal(t, 3, status.Used)
	assert.True(t, status.CanProceed)

	status, err = svc.RecordConsumption(ctx, "user@test.com", "e", testNow)
	require.NoError(t, err)
	assert.Equal(t, 4, status.Used)
}

func TestReleaseConsumptionUnknownItemNoWrite(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store)
	ctx := context.Background()

	_, err := svc.RecordConsumption(ctx, "user@test.com", "a", testNow)
	require.NoError(t, err)

	writesBefore := store.writes
	require.NoError(t, svc.ReleaseConsumption(ctx, "user@test.com", "never-consumed"))
	assert.Equal(t, writesBefore, store.writes)
}

func TestReleaseConsumptionPaidPlanNoWrite(t *testing.T) {
	store := newFakeStore()
	store.setPlan("pro@test.com", &Plan{Name: "Pro", Status: StatusActive})
	svc := NewService(store)

	require.NoError(t, svc.ReleaseConsumption(context.Background(), "pro@test.com", "video"))
	assert.Equal(t, 0, store.writes)
}

func TestRecordConsumptionPaidPlanUnlimited(t *testing.T) {
	store := newFakeStore()
	store.setPlan("pro@test.com", &Plan{Name: "Pro", Status: StatusActive})
	svc := NewService(store)

	for i := 0; i < 20; i++ {
		status, err := svc.RecordConsumption(context.Background(), "pro@test.com", "video", testNow)
		require.NoError(t, err)
		assert.False(t, status.Limited)
		assert.True(t, status.CanProceed)
	}
	assert.Equal(t, 0, store.writes)
}

func TestEvaluateAbsentQuotaUnlimited(t *testing.T) {
	svc := NewService(newFakeStore())

	status, err := svc.Evaluate(context.Background(), "new@test.com", testNow)
	require.NoError(t, err)
	assert.False(t, status.Limited)
	assert.True(t, status.CanProceed)
}

func TestEvaluateActiveCycle(t *testing.T) {
	store := newFakeStore()
	store.setQuota("user@test.com", &Quota{
		ConsumedItems: []string{"a", "b"},
		CycleStart:    testNow,
	})
	svc := NewService(store)

	status, err := svc.Evaluate(context.Background(), "user@test.com", testNow.Add(10*24*time.Hour))
	require.NoError(t, err)
	assert.True(t, status.Limited)
	assert.Equal(t, 2, status.Used)
	assert.True(t, status.CanProceed)
	assert.Equal(t, testNow, status.CycleStart)
	assert.Equal(t, testNow.Add(QuotaCycle), status.CycleEnd)
}

func TestEvaluateExpiredCyclePersistsReset(t *testing.T) {
	store := newFakeStore()
	store.setQuota("user@test.com", &Quota{
		ConsumedItems: []string{"a", "b", "c", "d"},
		CycleStart:    testNow,
	})
	svc := NewService(store)
	ctx := context.Background()

	// 2024-01-01 cycle evaluated on 2024-02-01: 31 days elapsed, reset.
	later := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	status, err := svc.Evaluate(ctx, "user@test.com", later)
	require.NoError(t, err)
	assert.Equal(t, 0, status.Used)
	assert.Equal(t, later, status.CycleStart)

	// The reset was written, not just reported.
	rec, err := store.Get(ctx, "user@test.com")
	require.NoError(t, err)
	require.NotNil(t, rec.Quota)
	assert.Empty(t, rec.Quota.ConsumedItems)
	assert.Equal(t, later, rec.Quota.CycleStart)
}

func TestEvaluateBackwardClockDoesNotReset(t *testing.T) {
	store := newFakeStore()
	store.setQuota("user@test.com", &Quota{
		ConsumedItems: []string{"a"},
		CycleStart:    testNow,
	})
	svc := NewService(store)

	status, err := svc.Evaluate(context.Background(), "user@test.com", testNow.Add(-48*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, status.Used)
	assert.Equal(t, testNow, status.CycleStart)
}
