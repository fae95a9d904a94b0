package course

import (
	"time"

	"gorm.io/gorm"
)

// Enrollment tracks a user's enrollment in a course with progress aggregates.
// Version guards concurrent read-modify-write cycles: a completion racing a
// repair pass must not overwrite the other's update.
type Enrollment struct {
	gorm.Model
	UserID          uint       `json:"user_id" gorm:"index;not null"`
	CourseID        uint       `json:"course_id" gorm:"index;not null"`
	Status          string     `json:"status" gorm:"default:'ENROLLED'"` // ENROLLED, IN_PROGRESS, COMPLETED
	TotalUnits      int        `json:"total_units" gorm:"default:0"`
	CompletedUnits  int        `json:"completed_units" gorm:"default:0"`
	ProgressPercent int        `json:"progress_percent" gorm:"default:0"` // 0-100
	EnrolledAt      time.Time  `json:"enrolled_at"`
	LastAccessedAt  *time.Time `json:"last_accessed_at"`
	CompletedAt     *time.Time `json:"completed_at"`
	Version         uint       `json:"-" gorm:"default:0"`
	IsDeleted       bool       `gorm:"default:false"`
}

// ProgressEntry records a user's state on one sub-module. Entries are owned by
// an Enrollment and keyed by (ModuleKey, UnitKey). An archived entry is kept
// for history after its unit left the course; only entries that were completed
// at removal time are archived, the rest are deleted outright.
type ProgressEntry struct {
	gorm.Model
	EnrollmentID  uint       `json:"enrollment_id" gorm:"index;not null"`
	ModuleKey     string     `json:"module_key" gorm:"not null"`
	UnitKey       string     `json:"unit_key" gorm:"index;not null"`
	Completed     bool       `json:"completed" gorm:"default:false"`
	CompletedAt   *time.Time `json:"completed_at"`
	LastVisitedAt *time.Time `json:"last_visited_at"`
	Archived      bool       `json:"archived" gorm:"default:false"`
	ArchivedAt    *time.Time `json:"archived_at"`
}
