package progress

import (
	"fmt"
	"sort"

	"lms/models/course"

	"gorm.io/gorm"
)

// LeafRef describes one trackable unit in a course index.
type LeafRef struct {
	ModuleID    uint   `json:"module_id"`
	SubModuleID uint   `json:"sub_module_id"`
	ModuleKey   string `json:"module_key"`
	UnitKey     string `json:"unit_key"`
}

// CourseIndex is the tracking snapshot of a course's current hierarchy:
// ordered leaves plus counts. All progress operations are relative to it.
type CourseIndex struct {
	CourseID     uint      `json:"course_id"`
	TotalModules int       `json:"total_modules"`
	TotalUnits   int       `json:"total_units"`
	Leaves       []LeafRef `json:"leaves"`
}

// KeyAssignment records a tracking key the indexer chose for a node that had
// none. Assignments are persisted as a separate explicit step; BuildCourseIndex
// itself never mutates its inputs.
type KeyAssignment struct {
	ModuleID    uint // set when the key belongs to a module
	SubModuleID uint // set when the key belongs to a sub-module
	Key         string
}

// HasLeaf reports whether the index contains a unit with the given key.
func (ci CourseIndex) HasLeaf(unitKey string) bool {
	for _, leaf := range ci.Leaves {
		if leaf.UnitKey == unitKey {
			return true
		}
	}
	return false
}

// BuildCourseIndex walks the module/sub-module hierarchy in order and produces
// the course's tracking index. Nodes missing a key get a position-derived one;
// pinned keys and explicit ordering are preserved. Indexing the same hierarchy
// twice yields identical output.
func BuildCourseIndex(courseID uint, modules []course.Module, units []course.SubModule) (CourseIndex, []KeyAssignment, error) {
	ordered := make([]course.Module, len(modules))
	copy(ordered, modules)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].OrderIndex != ordered[j].OrderIndex {
			return ordered[i].OrderIndex < ordered[j].OrderIndex
		}
		return ordered[i].ID < ordered[j].ID
	})

	unitsByModule := make(map[uint][]course.SubModule)
	for _, u := range units {
		unitsByModule[u.ModuleID] = append(unitsByModule[u.ModuleID], u)
	}
	for id := range unitsByModule {
		list := unitsByModule[id]
		sort.SliceStable(list, func(i, j int) bool {
			if list[i].OrderIndex != list[j].OrderIndex {
				return list[i].OrderIndex < list[j].OrderIndex
			}
			return list[i].ID < list[j].ID
		})
		unitsByModule[id] = list
	}

	index := CourseIndex{CourseID: courseID}
	var assignments []KeyAssignment
	seen := make(map[string]bool)

	for mi, mod := range ordered {
		moduleKey := mod.Key
		if moduleKey == "" {
			moduleKey = ModuleKey(courseID, mi+1)
			assignments = append(assignments, KeyAssignment{ModuleID: mod.ID, Key: moduleKey})
		}

		for ui, unit := range unitsByModule[mod.ID] {
			unitKey := unit.Key
			if unitKey == "" {
				unitKey = UnitKey(courseID, mi+1, ui+1)
				assignments = append(assignments, KeyAssignment{SubModuleID: unit.ID, Key: unitKey})
			}
			if seen[unitKey] {
				return CourseIndex{}, nil, fmt.Errorf("%w: %q", ErrDuplicateKey, unitKey)
			}
			seen[unitKey] = true

			index.Leaves = append(index.Leaves, LeafRef{
				ModuleID:    mod.ID,
				SubModuleID: unit.ID,
				ModuleKey:   moduleKey,
				UnitKey:     unitKey,
			})
		}
	}

	index.TotalModules = len(ordered)
	index.TotalUnits = len(index.Leaves)
	return index, assignments, nil
}

// LoadCourseIndex reads the course's current hierarchy and builds its index.
// Unpublished and deleted units are not trackable and do not count.
func LoadCourseIndex(db *gorm.DB, courseID uint) (CourseIndex, []KeyAssignment, error) {
	var crs course.Course
	if err := db.Where("id = ? AND is_deleted = ?", courseID, false).First(&crs).Error; err != nil {
		return CourseIndex{}, nil, ErrCourseNotFound
	}

	var modules []course.Module
	if err := db.Where("course_id = ? AND is_deleted = ?", courseID, false).
		Order("order_index asc, id asc").Find(&modules).Error; err != nil {
		return CourseIndex{}, nil, err
	}

	var units []course.SubModule
	if err := db.Where("course_id = ? AND is_deleted = ? AND is_published = ?", courseID, false, true).
		Order("order_index asc, id asc").Find(&units).Error; err != nil {
		return CourseIndex{}, nil, err
	}

	return BuildCourseIndex(courseID, modules, units)
}

// SaveKeyAssignments writes indexer-assigned keys back to the hierarchy rows.
// Kept separate from index construction so read paths stay side-effect free.
func SaveKeyAssignments(db *gorm.DB, assignments []KeyAssignment) error {
	for _, a := range assignments {
		var err error
		switch {
		case a.ModuleID != 0:
			err = db.Model(&course.Module{}).Where("id = ?", a.ModuleID).Update("key", a.Key).Error
		case a.SubModuleID != 0:
			err = db.Model(&course.SubModule{}).Where("id = ?", a.SubModuleID).Update("key", a.Key).Error
		}
		if err != nil {
			return err
		}
	}
	return nil
}
