package progress

import "errors"

var (
	// ErrCourseNotFound is returned when the referenced course does not exist or is deleted.
	ErrCourseNotFound = errors.New("course not found")

	// ErrUserNotFound is returned when the referenced user does not exist or is deleted.
	ErrUserNotFound = errors.New("user not found")

	// ErrNotEnrolled is returned by operations that require an existing enrollment.
	ErrNotEnrolled = errors.New("user not enrolled in this course")

	// ErrConflict is returned when an optimistic write lost its race and retries
	// were exhausted. The operation is safe to retry from the caller.
	ErrConflict = errors.New("enrollment was modified concurrently")

	// ErrDuplicateKey is returned by the indexer when two hierarchy nodes carry
	// the same tracking key within one pass.
	ErrDuplicateKey = errors.New("duplicate tracking key in course hierarchy")
)
