package entitlement

import (
	"errors"
	"time"

	"github.com/nasuf/dictation-studio-service/internal/pkg/constants"
)

// Plan statuses.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

var (
	// ErrQuotaExceeded is returned when a free-tier user has used up the
	// allowance for the current cycle. The QuotaStatus returned alongside
	// carries the usage metadata for the denial response.
	ErrQuotaExceeded = errors.New("free tier quota exceeded")

	// ErrConflict is returned after bounded retries when concurrent writers
	// keep invalidating the optimistic read-modify-write for one user.
	ErrConflict = errors.New("concurrent entitlement update conflict")
)

// Plan is a user's paid (or free) plan state. Exactly one of ExpireTime and
// NextChargeTime is set, chosen by IsRecurring: one-off purchases expire,
// recurring subscriptions have a next charge date.
type Plan struct {
	Name           string     `json:"name"`
	ExpireTime     *time.Time `json:"expireTime,omitempty"`
	NextChargeTime *time.Time `json:"nextChargeTime,omitempty"`
	IsRecurring    bool       `json:"isRecurring"`
	Status         string     `json:"status"`
}

// renewalAnchor returns the timestamp a renewal extends from, regardless of
// which of the two fields the plan uses.
func (p *Plan) renewalAnchor() *time.Time {
	if p == nil {
		return nil
	}
	if p.IsRecurring {
		return p.NextChargeTime
	}
	return p.ExpireTime
}

// IsFree reports whether the plan is the free tier. A missing plan record
// counts as free.
func (p *Plan) IsFree() bool {
	return p == nil || p.Name == "" || p.Name == constants.PlanFree
}

// Quota is the free-tier usage record. Present only while the plan is free;
// paid plans carry no quota at all.
type Quota struct {
	ConsumedItems []string  `json:"consumedItems"`
	CycleStart    time.Time `json:"cycleStart"`
}

func (q *Quota) clone() *Quota {
	c := &Quota{CycleStart: q.CycleStart}
	c.ConsumedItems = append(c.ConsumedItems, q.ConsumedItems...)
	return c
}

func (q *Quota) contains(itemID string) bool {
	for _, id := range q.ConsumedItems {
		if id == itemID {
			return true
		}
	}
	return false
}

// QuotaStatus is the result of evaluating a user's free-tier allowance.
type QuotaStatus struct {
	Limited    bool      `json:"limited"`
	Used       int       `json:"used,omitempty"`
	Limit      int       `json:"limit,omitempty"`
	CanProceed bool      `json:"canProceed"`
	CycleStart time.Time `json:"cycleStart,omitempty"`
	CycleEnd   time.Time `json:"cycleEnd,omitempty"`
}

// PaymentEvent is a confirmed payment, supplied by a webhook handler after
// signature verification. The engine trusts it unconditionally and consumes
// it exactly once.
type PaymentEvent struct {
	UserEmail    string
	PlanName     string
	DurationDays int
	IsRecurring  bool
}
