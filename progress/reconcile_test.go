package progress

import (
	"testing"
	"time"

	"lms/models/course"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func targetIndex(unitKeys ...string) CourseIndex {
	index := CourseIndex{CourseID: 1}
	for _, key := range unitKeys {
		index.Leaves = append(index.Leaves, LeafRef{ModuleKey: "c1-m1", UnitKey: key})
	}
	index.TotalUnits = len(index.Leaves)
	index.TotalModules = 1
	return index
}

func activeEntry(id uint, unitKey string, completed bool) course.ProgressEntry {
	e := course.ProgressEntry{
		Model:     gorm.Model{ID: id},
		ModuleKey: "c1-m1",
		UnitKey:   unitKey,
		Completed: completed,
	}
	if completed {
		done := time.Now().Add(-time.Hour)
		e.CompletedAt = &done
	}
	return e
}

func TestComputeAggregates(t *testing.T) {
	tests := []struct {
		name        string
		totalUnits  int
		completed   int
		wantPercent int
	}{
		{"empty course", 0, 0, 0},
		{"nothing done", 4, 0, 0},
		{"quarter done", 4, 1, 25},
		{"third rounds down", 3, 1, 33},
		{"two thirds rounds up", 3, 2, 67},
		{"all done", 4, 4, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var entries []course.ProgressEntry
			for i := 0; i < tt.completed; i++ {
				entries = append(entries, activeEntry(uint(i+1), UnitKey(1, 1, i+1), true))
			}

			agg := ComputeAggregates(tt.totalUnits, entries)

			assert.Equal(t, tt.totalUnits, agg.TotalUnits)
			assert.Equal(t, tt.completed, agg.CompletedUnits)
			assert.Equal(t, tt.wantPercent, agg.ProgressPercent)
			assert.GreaterOrEqual(t, agg.ProgressPercent, 0)
			assert.LessOrEqual(t, agg.ProgressPercent, 100)
		})
	}
}

func TestComputeAggregatesExcludesArchived(t *testing.T) {
	archived := activeEntry(1, "gone", true)
	archived.Archived = true

	agg := ComputeAggregates(2, []course.ProgressEntry{
		archived,
		activeEntry(2, "a", true),
		activeEntry(3, "b", false),
	})

	assert.Equal(t, 1, agg.CompletedUnits)
	assert.Equal(t, 50, agg.ProgressPercent)
}

func TestComputeAggregatesClampsAheadOfLaggingIndex(t *testing.T) {
	// A defensively created completion can outrun a stale total
	agg := ComputeAggregates(1, []course.ProgressEntry{
		activeEntry(1, "a", true),
		activeEntry(2, "b", true),
	})

	assert.Equal(t, 1, agg.CompletedUnits)
	assert.Equal(t, 100, agg.ProgressPercent)
}

func TestComputeAggregatesClampsOnEmptyCourse(t *testing.T) {
	agg := ComputeAggregates(0, []course.ProgressEntry{
		activeEntry(1, "a", true),
	})

	assert.Equal(t, 0, agg.TotalUnits)
	assert.Equal(t, 0, agg.CompletedUnits)
	assert.Equal(t, 0, agg.ProgressPercent)
}

func TestReconcileEntriesRetainsExisting(t *testing.T) {
	target := targetIndex("a", "b")
	entries := []course.ProgressEntry{
		activeEntry(1, "a", true),
		activeEntry(2, "b", false),
	}

	result := ReconcileEntries(target, entries, time.Now())

	assert.Zero(t, result.Created)
	assert.Zero(t, result.Archived)
	assert.Zero(t, result.Dropped)
	assert.Len(t, result.Entries, 2)
	assert.Equal(t, 1, result.Aggregates.CompletedUnits)
	assert.Equal(t, 50, result.Aggregates.ProgressPercent)
}

func TestReconcileEntriesCreatesMissing(t *testing.T) {
	target := targetIndex("a", "b", "c")
	entries := []course.ProgressEntry{
		activeEntry(1, "a", true),
	}

	result := ReconcileEntries(target, entries, time.Now())

	assert.Equal(t, 2, result.Created)
	require.Len(t, result.NewEntries, 2)
	assert.Equal(t, "b", result.NewEntries[0].UnitKey)
	assert.Equal(t, "c", result.NewEntries[1].UnitKey)
	assert.False(t, result.NewEntries[0].Completed)
	assert.Equal(t, 3, result.Aggregates.TotalUnits)
	assert.Equal(t, 33, result.Aggregates.ProgressPercent)
}

func TestReconcileEntriesDropsStaleIncomplete(t *testing.T) {
	target := targetIndex("a")
	entries := []course.ProgressEntry{
		activeEntry(1, "a", false),
		activeEntry(2, "removed", false),
	}

	result := ReconcileEntries(target, entries, time.Now())

	assert.Equal(t, 1, result.Dropped)
	assert.Zero(t, result.Archived)
	assert.Equal(t, []uint{2}, result.DroppedIDs)
	assert.Len(t, result.Entries, 1)
}

func TestReconcileEntriesArchivesStaleCompleted(t *testing.T) {
	now := time.Now()
	target := targetIndex("a")
	entries := []course.ProgressEntry{
		activeEntry(1, "a", false),
		activeEntry(2, "removed", true),
	}

	result := ReconcileEntries(target, entries, now)

	assert.Equal(t, 1, result.Archived)
	require.Len(t, result.ArchivedNow, 1)
	archived := result.ArchivedNow[0]
	assert.True(t, archived.Archived)
	require.NotNil(t, archived.ArchivedAt)
	assert.Equal(t, now, *archived.ArchivedAt)
	assert.True(t, archived.Completed)

	// Archived work no longer counts toward the live aggregates
	assert.Equal(t, 1, result.Aggregates.TotalUnits)
	assert.Equal(t, 0, result.Aggregates.CompletedUnits)
}

func TestReconcileEntriesKeepsPreviouslyArchived(t *testing.T) {
	archived := activeEntry(5, "long-gone", true)
	archived.Archived = true
	archivedAt := time.Now().Add(-24 * time.Hour)
	archived.ArchivedAt = &archivedAt

	target := targetIndex("a")
	result := ReconcileEntries(target, []course.ProgressEntry{archived}, time.Now())

	// Untouched pass-through plus one fresh entry for "a"
	assert.Equal(t, 1, result.Created)
	assert.Zero(t, result.Archived)
	require.Len(t, result.Entries, 2)
	assert.Equal(t, archivedAt, *result.Entries[0].ArchivedAt)
}

func TestReconcileEntriesIsIdempotent(t *testing.T) {
	target := targetIndex("a", "b")
	entries := []course.ProgressEntry{
		activeEntry(1, "a", true),
		activeEntry(2, "removed", true),
		activeEntry(3, "stale", false),
	}

	first := ReconcileEntries(target, entries, time.Now())
	second := ReconcileEntries(target, first.Entries, time.Now())

	// A second pass over the already-aligned set is a no-op
	assert.Zero(t, second.Created+second.Archived+second.Dropped)
	assert.False(t, second.Changed(first.Aggregates))
	assert.Equal(t, first.Aggregates, second.Aggregates)
}

func TestReconcileEntriesActiveSetMatchesTarget(t *testing.T) {
	target := targetIndex("a", "b", "c")
	entries := []course.ProgressEntry{
		activeEntry(1, "b", true),
		activeEntry(2, "x", true),
		activeEntry(3, "y", false),
	}

	result := ReconcileEntries(target, entries, time.Now())

	activeKeys := make(map[string]int)
	for _, e := range result.Entries {
		if !e.Archived {
			activeKeys[e.UnitKey]++
		}
	}

	require.Len(t, activeKeys, 3)
	for _, leaf := range target.Leaves {
		assert.Equal(t, 1, activeKeys[leaf.UnitKey], "exactly one active entry per target unit")
	}
}

func TestReconcileEntriesEmptyTarget(t *testing.T) {
	target := targetIndex()
	entries := []course.ProgressEntry{
		activeEntry(1, "a", true),
		activeEntry(2, "b", false),
	}

	result := ReconcileEntries(target, entries, time.Now())

	assert.Equal(t, 1, result.Archived)
	assert.Equal(t, 1, result.Dropped)
	assert.Equal(t, Aggregates{}, result.Aggregates)
}
