package progress

import (
	"testing"

	"lms/models/course"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func testModule(id uint, courseID uint, key string, order int) course.Module {
	return course.Module{
		Model:      gorm.Model{ID: id},
		CourseID:   courseID,
		Key:        key,
		OrderIndex: order,
	}
}

func testUnit(id uint, courseID, moduleID uint, key string, order int) course.SubModule {
	return course.SubModule{
		Model:      gorm.Model{ID: id},
		CourseID:   courseID,
		ModuleID:   moduleID,
		Key:        key,
		OrderIndex: order,
	}
}

func TestModuleKeyAndUnitKey(t *testing.T) {
	assert.Equal(t, "c7-m1", ModuleKey(7, 1))
	assert.Equal(t, "c7-m2-u3", UnitKey(7, 2, 3))
}

func TestBuildCourseIndexAssignsPositionalKeys(t *testing.T) {
	modules := []course.Module{
		testModule(11, 1, "", 2),
		testModule(10, 1, "", 1),
	}
	units := []course.SubModule{
		testUnit(101, 1, 10, "", 2),
		testUnit(100, 1, 10, "", 1),
		testUnit(102, 1, 11, "", 1),
	}

	index, assignments, err := BuildCourseIndex(1, modules, units)
	require.NoError(t, err)

	assert.Equal(t, 2, index.TotalModules)
	assert.Equal(t, 3, index.TotalUnits)
	require.Len(t, index.Leaves, 3)

	// Depth-first: module order, then unit order within the module
	assert.Equal(t, "c1-m1-u1", index.Leaves[0].UnitKey)
	assert.Equal(t, "c1-m1-u2", index.Leaves[1].UnitKey)
	assert.Equal(t, "c1-m2-u1", index.Leaves[2].UnitKey)
	assert.Equal(t, uint(100), index.Leaves[0].SubModuleID)
	assert.Equal(t, uint(101), index.Leaves[1].SubModuleID)

	// One assignment per keyless node
	assert.Len(t, assignments, 5)
}

func TestBuildCourseIndexPreservesPinnedKeys(t *testing.T) {
	modules := []course.Module{
		testModule(10, 1, "intro", 1),
	}
	units := []course.SubModule{
		testUnit(100, 1, 10, "intro-welcome", 1),
		testUnit(101, 1, 10, "", 2),
	}

	index, assignments, err := BuildCourseIndex(1, modules, units)
	require.NoError(t, err)

	assert.Equal(t, "intro-welcome", index.Leaves[0].UnitKey)
	assert.Equal(t, "intro", index.Leaves[0].ModuleKey)
	assert.Equal(t, "c1-m1-u2", index.Leaves[1].UnitKey)

	// Only the keyless unit needs an assignment
	require.Len(t, assignments, 1)
	assert.Equal(t, uint(101), assignments[0].SubModuleID)
}

func TestBuildCourseIndexIsDeterministic(t *testing.T) {
	modules := []course.Module{
		testModule(10, 3, "", 1),
		testModule(11, 3, "pinned", 2),
	}
	units := []course.SubModule{
		testUnit(100, 3, 10, "", 1),
		testUnit(101, 3, 11, "u-pinned", 1),
		testUnit(102, 3, 11, "", 2),
	}

	first, firstAssign, err := BuildCourseIndex(3, modules, units)
	require.NoError(t, err)
	second, secondAssign, err := BuildCourseIndex(3, modules, units)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, firstAssign, secondAssign)
}

func TestBuildCourseIndexRejectsDuplicateKeys(t *testing.T) {
	modules := []course.Module{
		testModule(10, 1, "m", 1),
	}
	units := []course.SubModule{
		testUnit(100, 1, 10, "same", 1),
		testUnit(101, 1, 10, "same", 2),
	}

	_, _, err := BuildCourseIndex(1, modules, units)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateKey)
}

func TestBuildCourseIndexEmptyCourse(t *testing.T) {
	index, assignments, err := BuildCourseIndex(9, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, 0, index.TotalModules)
	assert.Equal(t, 0, index.TotalUnits)
	assert.Empty(t, index.Leaves)
	assert.Empty(t, assignments)
}

func TestHasLeaf(t *testing.T) {
	index := CourseIndex{
		Leaves: []LeafRef{
			{ModuleKey: "c1-m1", UnitKey: "c1-m1-u1"},
		},
	}

	assert.True(t, index.HasLeaf("c1-m1-u1"))
	assert.False(t, index.HasLeaf("c1-m1-u2"))
}
