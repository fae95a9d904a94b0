package progress

import "fmt"

// Tracking keys are position-derived: a unit moved to a different slot gets a
// new identity even if its content is unchanged. Authors who want identity to
// survive reordering pin a key on the node instead, and these helpers are
// never called for such nodes. Ordinals are 1-based.

// ModuleKey builds the tracking key for the n-th module of a course.
func ModuleKey(courseID uint, moduleOrdinal int) string {
	return fmt.Sprintf("c%d-m%d", courseID, moduleOrdinal)
}

// UnitKey builds the tracking key for the n-th sub-module of the n-th module.
func UnitKey(courseID uint, moduleOrdinal, unitOrdinal int) string {
	return fmt.Sprintf("c%d-m%d-u%d", courseID, moduleOrdinal, unitOrdinal)
}
