package controls

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"licenseiq/pkg/platform/sentinel"
)

func TestStaticSource_ServesSnapshotInForce(t *testing.T) {
	asOf := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	snapshot := NewSnapshot("2026-q1", asOf.Add(-time.Hour), asOf.Add(time.Hour), map[string][]string{
		"IR": {"US"},
	})
	source := StaticSource{Current: snapshot}

	got, err := source.Snapshot(context.Background(), asOf)
	require.NoError(t, err)
	assert.Equal(t, "2026-q1", got.Version)
}

func TestStaticSource_ExpiredSnapshot(t *testing.T) {
	asOf := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	snapshot := NewSnapshot("2025-q4", asOf.Add(-48*time.Hour), asOf.Add(-time.Hour), nil)
	source := StaticSource{Current: snapshot}

	_, err := source.Snapshot(context.Background(), asOf)
	assert.ErrorIs(t, err, sentinel.ErrExpired)
}

func TestStaticSource_NotYetValidSnapshot(t *testing.T) {
	asOf := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	snapshot := NewSnapshot("2026-q2", asOf.Add(time.Hour), time.Time{}, nil)
	source := StaticSource{Current: snapshot}

	_, err := source.Snapshot(context.Background(), asOf)
	assert.ErrorIs(t, err, sentinel.ErrExpired)
}

func TestStaticSource_NoSnapshotLoaded(t *testing.T) {
	_, err := StaticSource{}.Snapshot(context.Background(), time.Now())
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}
