package entitlement

// Service bundles the quota cycle engine and the plan lifecycle engine.
// Both operate on the same per-user entitlement record through an injected
// store; all time arithmetic is done on caller-supplied UTC timestamps so
// the engines stay deterministic under test.
type Service struct {
	store Store
}

// NewService creates an entitlement service from an injected store.
func NewService(store Store) *Service {
	return &Service{store: store}
}
