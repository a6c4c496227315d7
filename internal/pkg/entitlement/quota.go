package entitlement

import (
	"context"
	"time"
)

// Free-tier allowance: distinct content items per rolling cycle.
const (
	FreeQuotaLimit = 4
	QuotaCycle     = 30 * 24 * time.Hour
)

// cycleExpired reports whether the cycle starting at q.CycleStart is over at
// now. The boundary itself counts as expired (>=). A wall clock that moved
// backwards yields a negative elapsed time and therefore "not expired".
func cycleExpired(q *Quota, now time.Time) bool {
	return now.Sub(q.CycleStart) >= QuotaCycle
}

func statusFor(q *Quota, used int) QuotaStatus {
	return QuotaStatus{
		Limited:    true,
		Used:       used,
		Limit:      FreeQuotaLimit,
		CanProceed: used < FreeQuotaLimit,
		CycleStart: q.CycleStart,
		CycleEnd:   q.CycleStart.Add(QuotaCycle),
	}
}

// Evaluate returns the user's quota status at now. Paid plans and users
// without a quota record are unlimited. A cycle that has run out is reset
// and the reset is persisted before the status is computed.
func (s *Service) Evaluate(ctx context.Context, email string, now time.Time) (QuotaStatus, error) {
	rec, err := s.store.Get(ctx, email)
	if err != nil {
		return QuotaStatus{}, err
	}
	if !rec.Plan.IsFree() || rec.Quota == nil {
		return QuotaStatus{Limited: false, CanProceed: true}, nil
	}
	if !cycleExpired(rec.Quota, now) {
		return statusFor(rec.Quota, len(rec.Quota.ConsumedItems)), nil
	}

	// Reset due: re-read under the optimistic transaction and persist.
	var status QuotaStatus
	err = s.store.Update(ctx, email, func(cur Record) (Mutation, error) {
		if !cur.Plan.IsFree() || cur.Quota == nil {
			status = QuotaStatus{Limited: false, CanProceed: true}
			return Mutation{}, nil
		}
		if !cycleExpired(cur.Quota, now) {
			status = statusFor(cur.Quota, len(cur.Quota.ConsumedItems))
			return Mutation{}, nil
		}
		fresh := &Quota{ConsumedItems: []string{}, CycleStart: now}
		status = statusFor(fresh, 0)
		return Mutation{SetQuota: fresh}, nil
	})
	return status, err
}

// RecordConsumption counts itemID against the user's free-tier allowance at
// now. Re-consuming an item already counted in the current cycle is a no-op
// success. When the allowance is exhausted it returns ErrQuotaExceeded
// together with the usage snapshot and writes nothing.
func (s *Service) RecordConsumption(ctx context.Context, email, itemID string, now time.Time) (QuotaStatus, error) {
	var status QuotaStatus
	err := s.store.Update(ctx, email, func(cur Record) (Mutation, error) {
		if !cur.Plan.IsFree() {
			status = QuotaStatus{Limited: false, CanProceed: true}
			return Mutation{}, nil
		}

		q := cur.Quota
		reset := false
		if q == nil || cycleExpired(q, now) {
			q = &Quota{ConsumedItems: []string{}, CycleStart: now}
			reset = true
		} else {
			q = q.clone()
		}

		if q.contains(itemID) {
			status = statusFor(q, len(q.ConsumedItems))
			if reset {
				return Mutation{SetQuota: q}, nil
			}
			return Mutation{}, nil
		}
		if len(q.ConsumedItems) >= FreeQuotaLimit {
			status = statusFor(q, len(q.ConsumedItems))
			return Mutation{}, ErrQuotaExceeded
		}

		q.ConsumedItems = append(q.ConsumedItems, itemID)
		status = statusFor(q, len(q.ConsumedItems))
		return Mutation{SetQuota: q}, nil
	})
	return status, err
}

// ReleaseConsumption gives a consumed slot back, used when the content a
// charge paid for could not be delivered. Items not counted in the current
// cycle and non-free plans are no-ops.
func (s *Service) ReleaseConsumption(ctx context.Context, email, itemID string) error {
	return s.store.Update(ctx, email, func(cur Record) (Mutation, error) {
		if !cur.Plan.IsFree() || cur.Quota == nil || !cur.Quota.contains(itemID) {
			return Mutation{}, nil
		}
		q := cur.Quota.clone()
		kept := make([]string, 0, len(q.ConsumedItems))
		for _, id := range q.ConsumedItems {
			if id != itemID {
				kept = append(kept, id)
			}
		}
		q.ConsumedItems = kept
		return Mutation{SetQuota: q}, nil
	})
}
