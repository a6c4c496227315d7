package entitlement

import (
	"context"
	"sync"
)

// fakeStore is an in-memory Store for tests. It applies mutations under a
// mutex, which is enough to exercise the engines' callback logic; the
// optimistic-retry behavior of the Redis store is covered separately via
// conflictStore in store_test.go.
type fakeStore struct {
	mu      sync.Mutex
	records map[string]Record
	writes  int
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[string]Record)}
}

func (s *fakeStore) Get(_ context.Context, email string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[email], nil
}

func (s *fakeStore) Update(_ context.Context, email string, fn func(Record) (Mutation, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := fn(s.records[email])
	if err != nil {
		return err
	}
	if m.isZero() {
		return nil
	}
	s.applyLocked(email, m)
	return nil
}

func (s *fakeStore) apply(email string, m Mutation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyLocked(email, m)
}

func (s *fakeStore) applyLocked(email string, m Mutation) {
	rec := s.records[email]
	if m.SetPlan != nil {
		rec.Plan = m.SetPlan
	}
	if m.SetQuota != nil {
		rec.Quota = m.SetQuota
	}
	if m.DeleteQuota {
		rec.Quota = nil
	}
	s.records[email] = rec
	s.writes++
}

func (s *fakeStore) ListUsers(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	emails := make([]string, 0, len(s.records))
	for email := range s.records {
		emails = append(emails, email)
	}
	return emails, nil
}

func (s *fakeStore) setPlan(email string, p *Plan) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.records[email]
	rec.Plan = p
	s.records[email] = rec
}

func (s *fakeStore) setQuota(email string, q *Quota) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.records[email]
	rec.Quota = q
	s.records[email] = rec
}
