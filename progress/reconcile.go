package progress

import (
	"math"
	"time"

	"lms/models/course"
)

// Aggregates are the derived progress numbers stored on an Enrollment.
type Aggregates struct {
	TotalUnits      int `json:"total_units"`
	CompletedUnits  int `json:"completed_units"`
	ProgressPercent int `json:"progress_percent"`
}

// ReconcileResult is the minimal edit that brings one user's entry set into
// alignment with a target index. Entries is the full resulting set; the
// NewEntries/ArchivedNow/DroppedIDs slices are the subsets a persistence layer
// has to write or delete.
type ReconcileResult struct {
	Entries     []course.ProgressEntry // final set: retained, archived and fresh entries
	NewEntries  []course.ProgressEntry // fresh incomplete entries for units new to the user
	ArchivedNow []course.ProgressEntry // completed entries archived by this pass
	DroppedIDs  []uint                 // stale incomplete entries to delete
	Aggregates  Aggregates
	Created     int
	Archived    int
	Dropped     int
}

// Changed reports whether the reconciliation is a no-op. Repair runs on an
// unedited hierarchy must leave the stored record byte-identical.
func (r ReconcileResult) Changed(current Aggregates) bool {
	return r.Created > 0 || r.Archived > 0 || r.Dropped > 0 || r.Aggregates != current
}

// ComputeAggregates derives the enrollment aggregates from the active entry
// set. CompletedUnits never exceeds TotalUnits even while a defensively
// created entry is ahead of a lagging index.
func ComputeAggregates(totalUnits int, entries []course.ProgressEntry) Aggregates {
	completed := 0
	for _, e := range entries {
		if !e.Archived && e.Completed {
			completed++
		}
	}
	if completed > totalUnits {
		completed = totalUnits
	}

	percent := 0
	if totalUnits > 0 {
		percent = int(math.Round(float64(completed) / float64(totalUnits) * 100))
		if percent > 100 {
			percent = 100
		}
		if percent < 0 {
			percent = 0
		}
	}

	return Aggregates{
		TotalUnits:      totalUnits,
		CompletedUnits:  completed,
		ProgressPercent: percent,
	}
}

// ReconcileEntries computes the edit that migrates one user's progress entries
// to a target index. It is relative only to the target, never to a separately
// captured "old" index, so re-running it after any number of intervening edits
// converges on the same result:
//
//   - active entries whose unit is still in the target are retained untouched
//   - stale completed entries are archived at now, keeping their history
//   - stale incomplete entries are dropped
//   - target units with no active entry get a fresh incomplete one
//
// Previously archived entries pass through unchanged. Pure function; callers
// persist the result.
func ReconcileEntries(target CourseIndex, entries []course.ProgressEntry, now time.Time) ReconcileResult {
	var result ReconcileResult

	activeByKey := make(map[string]bool)
	for _, e := range entries {
		if e.Archived {
			result.Entries = append(result.Entries, e)
			continue
		}

		if target.HasLeaf(e.UnitKey) {
			activeByKey[e.UnitKey] = true
			result.Entries = append(result.Entries, e)
			continue
		}

		// Unit left the hierarchy.
		if e.Completed {
			archivedAt := now
			e.Archived = true
			e.ArchivedAt = &archivedAt
			result.Entries = append(result.Entries, e)
			result.ArchivedNow = append(result.ArchivedNow, e)
			result.Archived++
		} else {
			if e.ID != 0 {
				result.DroppedIDs = append(result.DroppedIDs, e.ID)
			}
			result.Dropped++
		}
	}

	for _, leaf := range target.Leaves {
		if activeByKey[leaf.UnitKey] {
			continue
		}
		fresh := course.ProgressEntry{
			ModuleKey: leaf.ModuleKey,
			UnitKey:   leaf.UnitKey,
		}
		result.Entries = append(result.Entries, fresh)
		result.NewEntries = append(result.NewEntries, fresh)
		result.Created++
	}

	result.Aggregates = ComputeAggregates(target.TotalUnits, result.Entries)
	return result
}
