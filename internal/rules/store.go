package rules

import "context"

// Store persists rule versions. Implementations return sentinel errors
// (sentinel.ErrNotFound, sentinel.ErrConflict); the service translates them.
type Store interface {
	// Put inserts a new rule version. Fails with sentinel.ErrConflict if the
	// (rule_id, version) pair already exists: versions are immutable.
	Put(ctx context.Context, rule Rule) error

	// Get fetches one exact version.
	Get(ctx context.Context, tenantID, ruleID string, version int) (Rule, error)

	// ListVersions returns every version of one rule, version-ascending.
	ListVersions(ctx context.Context, tenantID, ruleID string) ([]Rule, error)

	// ListLive returns all versions in production, canary, or shadow for the
	// tenant, ordered by rule_id then version.
	ListLive(ctx context.Context, tenantID string) ([]Rule, error)

	// UpdateState moves one version to a new lifecycle state. State is the
	// only mutable field of a stored rule.
	UpdateState(ctx context.Context, tenantID, ruleID string, version int, state LifecycleState) error
}
