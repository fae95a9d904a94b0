package progress

import (
	"context"
	"errors"
	"sync"
	"time"

	"lms/models/course"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// repairWorkers bounds the per-user reconciliation fan-out.
const repairWorkers = 8

// RepairFailure names one user whose record could not be updated in a batch
// pass. The failure is data for a later retry, never a reason to abort the run.
type RepairFailure struct {
	UserID uint   `json:"user_id"`
	Error  string `json:"error"`
}

// RepairSummary is the outcome of one reconciliation batch over a course.
type RepairSummary struct {
	CourseID     uint            `json:"course_id"`
	TotalUnits   int             `json:"total_units"`
	UsersUpdated int             `json:"users_updated"`
	UsersFailed  int             `json:"users_failed"`
	Failures     []RepairFailure `json:"failures,omitempty"`
}

// RepairCourse re-indexes the course and reconciles every enrolled user
// against the fresh index. Each user is an independent unit of work; failures
// are collected, not propagated. Because reconciliation is target-relative the
// operation is idempotent and doubles as the self-healing entry point for
// drift from partial failures or stale indices. Cancelling ctx stops
// dispatching further users; already-applied updates stand.
func RepairCourse(ctx context.Context, db *gorm.DB, courseID uint) (RepairSummary, error) {
	summary := RepairSummary{CourseID: courseID}

	index, assignments, err := LoadCourseIndex(db, courseID)
	if err != nil {
		return summary, err
	}
	if err := SaveKeyAssignments(db, assignments); err != nil {
		return summary, err
	}
	summary.TotalUnits = index.TotalUnits

	var enrollments []course.Enrollment
	if err := db.Where("course_id = ? AND is_deleted = ?", courseID, false).
		Order("id asc").Find(&enrollments).Error; err != nil {
		return summary, err
	}

	var mu sync.Mutex
	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(repairWorkers)

	for _, enr := range enrollments {
		enr := enr
		if ctx.Err() != nil {
			break
		}
		group.Go(func() error {
			err := reconcileEnrollment(db, index, enr.ID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				summary.UsersFailed++
				summary.Failures = append(summary.Failures, RepairFailure{UserID: enr.UserID, Error: err.Error()})
				return nil
			}
			summary.UsersUpdated++
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return summary, err
	}
	return summary, nil
}

// reconcileEnrollment aligns one user's record with the target index,
// retrying the read-modify-write cycle on a version conflict.
func reconcileEnrollment(db *gorm.DB, target CourseIndex, enrollmentID uint) error {
	var lastErr error
	for attempt := 0; attempt < conflictRetries; attempt++ {
		err := reconcileEnrollmentOnce(db, target, enrollmentID)
		if errors.Is(err, ErrConflict) {
			lastErr = err
			continue
		}
		return err
	}
	return lastErr
}

func reconcileEnrollmentOnce(db *gorm.DB, target CourseIndex, enrollmentID uint) error {
	var enrollment course.Enrollment
	if err := db.First(&enrollment, enrollmentID).Error; err != nil {
		return err
	}

	var entries []course.ProgressEntry
	if err := db.Where("enrollment_id = ?", enrollment.ID).Find(&entries).Error; err != nil {
		return err
	}

	result := ReconcileEntries(target, entries, time.Now())

	current := Aggregates{
		TotalUnits:      enrollment.TotalUnits,
		CompletedUnits:  enrollment.CompletedUnits,
		ProgressPercent: enrollment.ProgressPercent,
	}
	if !result.Changed(current) {
		// Nothing to write; a repeated repair leaves the record untouched.
		return nil
	}

	return db.Transaction(func(tx *gorm.DB) error {
		if len(result.DroppedIDs) > 0 {
			if err := tx.Unscoped().Where("id IN ?", result.DroppedIDs).
				Delete(&course.ProgressEntry{}).Error; err != nil {
				return err
			}
		}
		for i := range result.ArchivedNow {
			if err := tx.Save(&result.ArchivedNow[i]).Error; err != nil {
				return err
			}
		}
		if len(result.NewEntries) > 0 {
			fresh := make([]course.ProgressEntry, len(result.NewEntries))
			copy(fresh, result.NewEntries)
			for i := range fresh {
				fresh[i].EnrollmentID = enrollment.ID
			}
			if err := tx.Create(&fresh).Error; err != nil {
				return err
			}
		}
		return applyAggregates(tx, &enrollment, result.Aggregates, nil)
	})
}
