package progress

import (
	"log"

	"lms/models/course"

	"gorm.io/gorm"
)

// PurgeCourseEnrollments removes the enrollment for a deleted course from
// every user holding one, entries included. Enrollments for a deleted course
// are destroyed outright, not archived. Each removal is its own unit of work:
// a failure for one user leaves the others' removals standing, and readers
// filter the leftover stale references until a retry finishes the job.
func PurgeCourseEnrollments(db *gorm.DB, courseID uint) (int, error) {
	var enrollments []course.Enrollment
	if err := db.Where("course_id = ?", courseID).Find(&enrollments).Error; err != nil {
		return 0, err
	}

	usersUpdated := 0
	for _, enr := range enrollments {
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Unscoped().Where("enrollment_id = ?", enr.ID).
				Delete(&course.ProgressEntry{}).Error; err != nil {
				return err
			}
			return tx.Unscoped().Delete(&course.Enrollment{}, enr.ID).Error
		})
		if err != nil {
			log.Printf("[PROGRESS] purge: enrollment %d (user %d) not removed: %v", enr.ID, enr.UserID, err)
			continue
		}
		usersUpdated++
	}

	return usersUpdated, nil
}
