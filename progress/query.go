package progress

import (
	"errors"
	"sort"
	"time"

	"lms/models/course"

	"gorm.io/gorm"
)

// recentActivityLimit caps the recent-activity list in a progress view.
const recentActivityLimit = 10

// ProgressView is the read model for a user's progress in one course.
type ProgressView struct {
	Enrolled        bool                   `json:"enrolled"`
	CourseID        uint                   `json:"course_id"`
	Status          string                 `json:"status,omitempty"`
	TotalUnits      int                    `json:"total_units"`
	CompletedUnits  int                    `json:"completed_units"`
	ProgressPercent int                    `json:"progress_percent"`
	EnrolledAt      *time.Time             `json:"enrolled_at,omitempty"`
	LastAccessedAt  *time.Time             `json:"last_accessed_at,omitempty"`
	Entries         []course.ProgressEntry `json:"entries,omitempty"`
	RecentActivity  []course.ProgressEntry `json:"recent_activity,omitempty"`
}

// GetProgress reads back aggregate state and recent activity for a user and
// course. A missing enrollment is a defined state, not an error. An enrollment
// whose course has since been deleted is stale and reported as not enrolled.
func GetProgress(db *gorm.DB, userID, courseID uint) (ProgressView, error) {
	view := ProgressView{CourseID: courseID}

	var enrollment course.Enrollment
	if err := db.Where("user_id = ? AND course_id = ? AND is_deleted = ?", userID, courseID, false).
		First(&enrollment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return view, nil
		}
		return view, err
	}

	var crs course.Course
	if err := db.Where("id = ? AND is_deleted = ?", courseID, false).First(&crs).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return view, nil
		}
		return view, err
	}

	var entries []course.ProgressEntry
	if err := db.Where("enrollment_id = ? AND archived = ?", enrollment.ID, false).
		Order("unit_key asc").Find(&entries).Error; err != nil {
		return view, err
	}

	visited := make([]course.ProgressEntry, 0, len(entries))
	for _, e := range entries {
		if e.LastVisitedAt != nil {
			visited = append(visited, e)
		}
	}
	sort.SliceStable(visited, func(i, j int) bool {
		return visited[i].LastVisitedAt.After(*visited[j].LastVisitedAt)
	})
	if len(visited) > recentActivityLimit {
		visited = visited[:recentActivityLimit]
	}

	enrolledAt := enrollment.EnrolledAt
	view.Enrolled = true
	view.Status = enrollment.Status
	view.TotalUnits = enrollment.TotalUnits
	view.CompletedUnits = enrollment.CompletedUnits
	view.ProgressPercent = enrollment.ProgressPercent
	view.EnrolledAt = &enrolledAt
	view.LastAccessedAt = enrollment.LastAccessedAt
	view.Entries = entries
	view.RecentActivity = visited
	return view, nil
}
