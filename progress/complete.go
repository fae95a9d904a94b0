package progress

import (
	"errors"
	"time"

	"lms/models/course"

	"gorm.io/gorm"
)

// conflictRetries bounds the read-modify-write retry loop on a version
// mismatch. A completion racing a repair pass retries against the fresh copy.
const conflictRetries = 3

// MarkUnitComplete records completion of one sub-module for one user and
// returns the refreshed aggregates. Completing an already-completed unit is
// idempotent: only LastVisitedAt moves. An entry missing from the enrollment
// (the index may be lagging a recent edit) is created rather than rejected.
func MarkUnitComplete(db *gorm.DB, userID, courseID uint, moduleKey, unitKey string) (Aggregates, error) {
	var lastErr error
	for attempt := 0; attempt < conflictRetries; attempt++ {
		agg, err := markUnitCompleteOnce(db, userID, courseID, moduleKey, unitKey)
		if errors.Is(err, ErrConflict) {
			lastErr = err
			continue
		}
		return agg, err
	}
	return Aggregates{}, lastErr
}

func markUnitCompleteOnce(db *gorm.DB, userID, courseID uint, moduleKey, unitKey string) (Aggregates, error) {
	// Read the freshest copy immediately before mutating.
	var enrollment course.Enrollment
	if err := db.Where("user_id = ? AND course_id = ? AND is_deleted = ?", userID, courseID, false).
		First(&enrollment).Error; err != nil {
		return Aggregates{}, ErrNotEnrolled
	}

	var entries []course.ProgressEntry
	if err := db.Where("enrollment_id = ? AND archived = ?", enrollment.ID, false).
		Find(&entries).Error; err != nil {
		return Aggregates{}, err
	}

	now := time.Now()

	var entry *course.ProgressEntry
	for i := range entries {
		if entries[i].UnitKey == unitKey {
			entry = &entries[i]
			break
		}
	}
	if entry == nil {
		entries = append(entries, course.ProgressEntry{
			EnrollmentID: enrollment.ID,
			ModuleKey:    moduleKey,
			UnitKey:      unitKey,
		})
		entry = &entries[len(entries)-1]
	}

	if !entry.Completed {
		entry.Completed = true
		entry.CompletedAt = &now
	}
	entry.LastVisitedAt = &now

	agg := ComputeAggregates(enrollment.TotalUnits, entries)

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(entry).Error; err != nil {
			return err
		}
		return applyAggregates(tx, &enrollment, agg, &now)
	})
	if err != nil {
		return Aggregates{}, err
	}
	return agg, nil
}

// applyAggregates writes the derived numbers to the enrollment row, guarded by
// the version counter. touchedAt is set for learner activity and left nil for
// reconciliation passes. Returns ErrConflict when a concurrent writer got
// there first.
func applyAggregates(tx *gorm.DB, enrollment *course.Enrollment, agg Aggregates, touchedAt *time.Time) error {
	updates := map[string]interface{}{
		"total_units":      agg.TotalUnits,
		"completed_units":  agg.CompletedUnits,
		"progress_percent": agg.ProgressPercent,
		"version":          enrollment.Version + 1,
	}
	if touchedAt != nil {
		updates["last_accessed_at"] = *touchedAt
	}

	switch {
	case agg.TotalUnits > 0 && agg.ProgressPercent >= 100:
		updates["status"] = "COMPLETED"
		if enrollment.CompletedAt == nil {
			updates["completed_at"] = time.Now()
		}
	case agg.CompletedUnits > 0:
		updates["status"] = "IN_PROGRESS"
		updates["completed_at"] = nil
	default:
		updates["status"] = "ENROLLED"
		updates["completed_at"] = nil
	}

	res := tx.Model(&course.Enrollment{}).
		Where("id = ? AND version = ?", enrollment.ID, enrollment.Version).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}
