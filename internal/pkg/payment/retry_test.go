package payment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nasuf/dictation-studio-service/internal/pkg/entitlement"
)

type fakeApplier struct {
	failUntil int
	calls     int
}

func (a *fakeApplier) ApplyPayment(_ context.Context, _ entitlement.PaymentEvent, _ time.Time) (*entitlement.Plan, error) {
	a.calls++
	if a.calls <= a.failUntil {
		return nil, errors.New("store unavailable")
	}
	return &entitlement.Plan{Name: "Pro", Status: entitlement.StatusActive}, nil
}

type fakeFailedUpdates struct {
	saved   *FailedUpdate
	deleted []string
}

func (f *fakeFailedUpdates) Save(_ context.Context, rec *FailedUpdate) error {
	f.saved = rec
	return nil
}

func (f *fakeFailedUpdates) Delete(_ context.Context, sessionID string) error {
	f.deleted = append(f.deleted, sessionID)
	return nil
}

func withShortRetryDelay(t *testing.T) {
	t.Helper()
	prev := retryDelay
	retryDelay = time.Millisecond
	t.Cleanup(func() { retryDelay = prev })
}

var testEvent = entitlement.PaymentEvent{
	UserEmail: "user@test.com", PlanName: "Pro", DurationDays: 30,
}

func TestApplyWithRetryFirstAttemptSucceeds(t *testing.T) {
	withShortRetryDelay(t)
	applier := &fakeApplier{}
	failed := &fakeFailedUpdates{}

	err := ApplyWithRetry(context.Background(), applier, failed, "sess-1", testEvent)
	require.NoError(t, err)
	assert.Equal(t, 1, applier.calls)
	assert.Equal(t, []string{"sess-1"}, failed.deleted)
	assert.Nil(t, failed.saved)
}

func TestApplyWithRetryRecoversAfterTransientFailure(t *testing.T) {
	withShortRetryDelay(t)
	applier := &fakeApplier{failUntil: 2}
	failed := &fakeFailedUpdates{}

	err := ApplyWithRetry(context.Background(), applier, failed, "sess-2", testEvent)
	require.NoError(t, err)
	assert.Equal(t, 3, applier.calls)
	assert.Nil(t, failed.saved)
}

func TestApplyWithRetryParksAfterExhaustion(t *testing.T) {
	withShortRetryDelay(t)
	applier := &fakeApplier{failUntil: MaxRetryAttempts + 1}
	failed := &fakeFailedUpdates{}

	err := ApplyWithRetry(context.Background(), applier, failed, "sess-3", testEvent)
	require.Error(t, err)
	assert.Equal(t, MaxRetryAttempts, applier.calls)
	require.NotNil(t, failed.saved)
	assert.Equal(t, "sess-3", failed.saved.SessionID)
	assert.Equal(t, testEvent, failed.saved.Event)
	assert.Equal(t, MaxRetryAttempts, failed.saved.RetryCount)
}
