package entitlement

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nasuf/dictation-studio-service/internal/pkg/constants"
)

// ApplyPayment applies a confirmed payment to the user's plan. The new
// expiration extends from whichever is later, now or the plan's current
// renewal anchor, so stacked purchases accumulate and lapsed plans restart
// from now. Upgrading off the free tier removes any quota record.
func (s *Service) ApplyPayment(ctx context.Context, ev PaymentEvent, now time.Time) (*Plan, error) {
	var applied *Plan
	err := s.store.Update(ctx, ev.UserEmail, func(cur Record) (Mutation, error) {
		base := now
		if anchor := cur.Plan.renewalAnchor(); anchor != nil && anchor.After(base) {
			base = *anchor
		}
		ts := base.Add(time.Duration(ev.DurationDays) * 24 * time.Hour).UTC()

		p := &Plan{
			Name:        ev.PlanName,
			IsRecurring: ev.IsRecurring,
			Status:      StatusActive,
		}
		if ev.IsRecurring {
			p.NextChargeTime = &ts
		} else {
			p.ExpireTime = &ts
		}
		applied = p

		m := Mutation{SetPlan: p}
		if ev.PlanName != constants.PlanFree {
			m.DeleteQuota = true
		}
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	logrus.Infof("applied plan %s for user %s (recurring=%t, %d days)",
		ev.PlanName, ev.UserEmail, ev.IsRecurring, ev.DurationDays)
	return applied, nil
}

// MarkExpiredPlans sweeps all users and flips lapsed active plans to
// inactive. Errors on individual users are logged and skipped so one bad
// record cannot stall the sweep.
func (s *Service) MarkExpiredPlans(ctx context.Context, now time.Time) (int, error) {
	emails, err := s.store.ListUsers(ctx)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, email := range emails {
		// The callback may re-run on a lost optimistic race, so the flip is
		// counted only once the update has committed.
		flipped := false
		err := s.store.Update(ctx, email, func(cur Record) (Mutation, error) {
			flipped = false
			p := cur.Plan
			if p.IsFree() || p.Status != StatusActive {
				return Mutation{}, nil
			}
			anchor := p.renewalAnchor()
			if anchor == nil || anchor.After(now) {
				return Mutation{}, nil
			}
			updated := *p
			updated.Status = StatusInactive
			flipped = true
			return Mutation{SetPlan: &updated}, nil
		})
		if err != nil {
			logrus.Warnf("expiry sweep skipped user %s: %v", email, err)
			continue
		}
		if flipped {
			expired++
		}
	}
	if expired > 0 {
		logrus.Infof("expiry sweep marked %d plan(s) inactive", expired)
	}
	return expired, nil
}
