package entitlement

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyPaymentNewUser(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store)

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	plan, err := svc.ApplyPayment(context.Background(), PaymentEvent{
		UserEmail:    "user@test.com",
		PlanName:     "Premium",
		DurationDays: 30,
	}, now)
	require.NoError(t, err)

	assert.Equal(t, "Premium", plan.Name)
	assert.Equal(t, StatusActive, plan.Status)
	require.NotNil(t, plan.ExpireTime)
	assert.Equal(t, time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC), *plan.ExpireTime)
	assert.Nil(t, plan.NextChargeTime)
}

func TestApplyPaymentExtendsFutureExpiration(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store)
	ctx := context.Background()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := svc.ApplyPayment(ctx, PaymentEvent{
		UserEmail: "user@test.com", PlanName: "Pro", DurationDays: 30,
	}, now)
	require.NoError(t, err)

	// Buying again ten days in extends from the current expiration, not
	// from now: the remaining 20 days are not lost.
	plan, err := svc.ApplyPayment(ctx, PaymentEvent{
		UserEmail: "user@test.com", PlanName: "Pro", DurationDays: 30,
	}, now.Add(10*24*time.Hour))
	require.NoError(t, err)
	require.NotNil(t, plan.ExpireTime)
	assert.Equal(t, now.Add(60*24*time.Hour), *plan.ExpireTime)
}

func TestApplyPaymentLapsedPlanRestartsFromNow(t *testing.T) {
	store := newFakeStore()
	expired := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store.setPlan("user@test.com", &Plan{
		Name: "Pro", ExpireTime: &expired, Status: StatusInactive,
	})
	svc := NewService(store)

	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	plan, err := svc.ApplyPayment(context.Background(), PaymentEvent{
		UserEmail: "user@test.com", PlanName: "Pro", DurationDays: 30,
	}, now)
	require.NoError(t, err)
	require.NotNil(t, plan.ExpireTime)
	assert.Equal(t, now.Add(30*24*time.Hour), *plan.ExpireTime)
	assert.Equal(t, StatusActive, plan.Status)
}

func TestApplyPaymentRecurringSetsNextCharge(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store)

	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	plan, err := svc.ApplyPayment(context.Background(), PaymentEvent{
		UserEmail: "user@test.com", PlanName: "Basic", DurationDays: 30, IsRecurring: true,
	}, now)
	require.NoError(t, err)

	assert.True(t, plan.IsRecurring)
	assert.Nil(t, plan.ExpireTime)
	require.NotNil(t, plan.NextChargeTime)
	assert.Equal(t, now.Add(30*24*time.Hour), *plan.NextChargeTime)
}

func TestApplyPaymentRemovesFreeQuota(t *testing.T) {
	store := newFakeStore()
	store.setQuota("user@test.com", &Quota{
		ConsumedItems: []string{"a", "b"},
		CycleStart:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	svc := NewService(store)
	ctx := context.Background()

	_, err := svc.ApplyPayment(ctx, PaymentEvent{
		UserEmail: "user@test.com", PlanName: "Premium", DurationDays: 30,
	}, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	rec, err := store.Get(ctx, "user@test.com")
	require.NoError(t, err)
	assert.Nil(t, rec.Quota)

	status, err := svc.Evaluate(ctx, "user@test.com", time.Date(2024, 2, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.False(t, status.Limited)
}

func TestMarkExpiredPlans(t *testing.T) {
	store := newFakeStore()
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	store.setPlan("lapsed@test.com", &Plan{Name: "Pro", ExpireTime: &past, Status: StatusActive})
	store.setPlan("current@test.com", &Plan{Name: "Pro", ExpireTime: &future, Status: StatusActive})
	store.setPlan("recurring@test.com", &Plan{Name: "Basic", NextChargeTime: &past, IsRecurring: true, Status: StatusActive})
	store.setPlan("free@test.com", nil)

	svc := NewService(store)
	n, err := svc.MarkExpiredPlans(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	rec, _ := store.Get(context.Background(), "lapsed@test.com")
	assert.Equal(t, StatusInactive, rec.Plan.Status)
	rec, _ = store.Get(context.Background(), "current@test.com")
	assert.Equal(t, StatusActive, rec.Plan.Status)
	rec, _ = store.Get(context.Background(), "recurring@test.com")
	assert.Equal(t, StatusInactive, rec.Plan.Status)
}

func TestMarkExpiredPlansCountsRetriedUserOnce(t *testing.T) {
	fake := newFakeStore()
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	fake.setPlan("lapsed@test.com", &Plan{Name: "Pro", ExpireTime: &past, Status: StatusActive})

	// The first update attempt loses the optimistic race, so the callback
	// runs twice; the user must still be counted once.
	store := &conflictStore{fakeStore: fake, conflicts: 1}
	svc := NewService(store)

	n, err := svc.MarkExpiredPlans(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	rec, _ := store.Get(context.Background(), "lapsed@test.com")
	assert.Equal(t, StatusInactive, rec.Plan.Status)
}
