// Package controls models the sanctions/controls source as immutable,
// versioned snapshots. Evaluation holds one snapshot for its whole run so a
// concurrent list update can never split an order across two list versions.
package controls

import (
	"context"
	"fmt"
	"time"

	"licenseiq/pkg/platform/sentinel"
)

// Snapshot is one published version of the control lists. Read-only after
// construction; safe for unlimited concurrent readers.
type Snapshot struct {
	Version   string
	ValidFrom time.Time
	ExpiresAt time.Time

	// lists maps destination country to the set of controlled origin
	// countries for that destination.
	lists map[string]map[string]bool
}

// NewSnapshot builds an immutable snapshot from destination -> origins lists.
func NewSnapshot(version string, validFrom, expiresAt time.Time, lists map[string][]string) *Snapshot {
	built := make(map[string]map[string]bool, len(lists))
	for destination, origins := range lists {
		set := make(map[string]bool, len(origins))
		for _, origin := range origins {
			set[origin] = true
		}
		built[destination] = set
	}
	return &Snapshot{
		Version:   version,
		ValidFrom: validFrom,
		ExpiresAt: expiresAt,
		lists:     built,
	}
}

// ControlledOrigins returns the controlled-origin set for a destination.
// Nil when the destination has no active list.
func (s *Snapshot) ControlledOrigins(destination string) map[string]bool {
	if s == nil {
		return nil
	}
	return s.lists[destination]
}

// ValidAt reports whether the snapshot covers the given as-of instant.
// A zero ExpiresAt means the snapshot does not expire.
func (s *Snapshot) ValidAt(asOf time.Time) bool {
	if s == nil {
		return false
	}
	if asOf.Before(s.ValidFrom) {
		return false
	}
	return s.ExpiresAt.IsZero() || asOf.Before(s.ExpiresAt)
}

// Source supplies the snapshot in force at a given instant.
type Source interface {
	Snapshot(ctx context.Context, asOf time.Time) (*Snapshot, error)
}

// StaticSource serves a fixed snapshot; used in tests and single-tenant dev
// setups where lists are loaded at startup.
type StaticSource struct {
	Current *Snapshot
}

func (s StaticSource) Snapshot(_ context.Context, asOf time.Time) (*Snapshot, error) {
	if s.Current == nil {
		return nil, sentinel.ErrNotFound
	}
	if !s.Current.ValidAt(asOf) {
		return nil, fmt.Errorf("control list %s not in force at %s: %w",
			s.Current.Version, asOf.Format(time.RFC3339), sentinel.ErrExpired)
	}
	return s.Current, nil
}
