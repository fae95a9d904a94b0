package progress

import (
	"time"

	"lms/models"
	"lms/models/course"

	"gorm.io/gorm"
)

// EnrollResult reports the enrollment for a (user, course) pair. Enrolling
// twice is not an error; the second call returns the existing record with
// AlreadyEnrolled set.
type EnrollResult struct {
	Enrollment      course.Enrollment `json:"enrollment"`
	AlreadyEnrolled bool              `json:"already_enrolled"`
}

// Enroll creates a seeded enrollment for the user: total units from the
// course's current index and one incomplete progress entry per unit.
func Enroll(db *gorm.DB, userID, courseID uint) (EnrollResult, error) {
	var user models.User
	if err := db.Where("id = ? AND is_deleted = ?", userID, false).First(&user).Error; err != nil {
		return EnrollResult{}, ErrUserNotFound
	}

	var existing course.Enrollment
	if err := db.Where("user_id = ? AND course_id = ? AND is_deleted = ?", userID, courseID, false).
		First(&existing).Error; err == nil {
		return EnrollResult{Enrollment: existing, AlreadyEnrolled: true}, nil
	}

	index, assignments, err := LoadCourseIndex(db, courseID)
	if err != nil {
		return EnrollResult{}, err
	}
	if err := SaveKeyAssignments(db, assignments); err != nil {
		return EnrollResult{}, err
	}

	now := time.Now()
	enrollment := course.Enrollment{
		UserID:     userID,
		CourseID:   courseID,
		Status:     "ENROLLED",
		TotalUnits: index.TotalUnits,
		EnrolledAt: now,
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&enrollment).Error; err != nil {
			return err
		}
		if len(index.Leaves) == 0 {
			return nil
		}
		entries := make([]course.ProgressEntry, 0, len(index.Leaves))
		for _, leaf := range index.Leaves {
			entries = append(entries, course.ProgressEntry{
				EnrollmentID: enrollment.ID,
				ModuleKey:    leaf.ModuleKey,
				UnitKey:      leaf.UnitKey,
			})
		}
		return tx.Create(&entries).Error
	})
	if err != nil {
		return EnrollResult{}, err
	}

	return EnrollResult{Enrollment: enrollment}, nil
}
