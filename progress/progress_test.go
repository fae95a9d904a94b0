package progress

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"lms/database"
	"lms/models"
	"lms/models/course"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB opens a per-test in-memory database. A single connection keeps
// the shared cache coherent under the repair worker pool.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	database.RunMigrations(db)
	return db
}

func seedUser(t *testing.T, db *gorm.DB, email string) models.User {
	t.Helper()
	user := models.User{
		Name:     "Test Learner",
		Email:    email,
		Password: "hashed",
	}
	require.NoError(t, db.Create(&user).Error)
	return user
}

// seedCourse creates a published course with one module per entry in
// unitsPerModule, each holding that many published units.
func seedCourse(t *testing.T, db *gorm.DB, unitsPerModule ...int) course.Course {
	t.Helper()

	crs := course.Course{
		Title:       "Go Fundamentals",
		Author:      "staff",
		Status:      "ACTIVE",
		IsPublished: true,
	}
	require.NoError(t, db.Create(&crs).Error)

	for mi, count := range unitsPerModule {
		mod := course.Module{
			CourseID:   crs.ID,
			Title:      fmt.Sprintf("Module %d", mi+1),
			OrderIndex: mi + 1,
		}
		require.NoError(t, db.Create(&mod).Error)

		for ui := 0; ui < count; ui++ {
			unit := course.SubModule{
				CourseID:    crs.ID,
				ModuleID:    mod.ID,
				Title:       fmt.Sprintf("Unit %d.%d", mi+1, ui+1),
				ContentType: "TEXT",
				OrderIndex:  ui + 1,
				IsPublished: true,
			}
			require.NoError(t, db.Create(&unit).Error)
		}
	}

	return crs
}

func loadEnrollment(t *testing.T, db *gorm.DB, userID, courseID uint) course.Enrollment {
	t.Helper()
	var enrollment course.Enrollment
	require.NoError(t, db.Where("user_id = ? AND course_id = ?", userID, courseID).
		First(&enrollment).Error)
	return enrollment
}

func countEntries(t *testing.T, db *gorm.DB, enrollmentID uint, archived bool) int {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&course.ProgressEntry{}).
		Where("enrollment_id = ? AND archived = ?", enrollmentID, archived).
		Count(&n).Error)
	return int(n)
}

func softDeleteModule(t *testing.T, db *gorm.DB, moduleID uint) {
	t.Helper()
	require.NoError(t, db.Model(&course.Module{}).Where("id = ?", moduleID).
		Update("is_deleted", true).Error)
}

func moduleByOrder(t *testing.T, db *gorm.DB, courseID uint, orderIndex int) course.Module {
	t.Helper()
	var mod course.Module
	require.NoError(t, db.Where("course_id = ? AND order_index = ?", courseID, orderIndex).
		First(&mod).Error)
	return mod
}

func TestEnrollSeedsProgress(t *testing.T) {
	db := setupTestDB(t)
	user := seedUser(t, db, "learner@example.com")
	crs := seedCourse(t, db, 2, 2)

	result, err := Enroll(db, user.ID, crs.ID)
	require.NoError(t, err)
	assert.False(t, result.AlreadyEnrolled)
	assert.Equal(t, "ENROLLED", result.Enrollment.Status)
	assert.Equal(t, 4, result.Enrollment.TotalUnits)
	assert.Zero(t, result.Enrollment.CompletedUnits)
	assert.Zero(t, result.Enrollment.ProgressPercent)

	assert.Equal(t, 4, countEntries(t, db, result.Enrollment.ID, false))

	var entry course.ProgressEntry
	require.NoError(t, db.Where("enrollment_id = ? AND unit_key = ?",
		result.Enrollment.ID, UnitKey(crs.ID, 1, 1)).First(&entry).Error)
	assert.False(t, entry.Completed)
	assert.Equal(t, ModuleKey(crs.ID, 1), entry.ModuleKey)
}

func TestEnrollIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	user := seedUser(t, db, "learner@example.com")
	crs := seedCourse(t, db, 2, 2)

	first, err := Enroll(db, user.ID, crs.ID)
	require.NoError(t, err)

	second, err := Enroll(db, user.ID, crs.ID)
	require.NoError(t, err)
	assert.True(t, second.AlreadyEnrolled)
	assert.Equal(t, first.Enrollment.ID, second.Enrollment.ID)

	assert.Equal(t, 4, countEntries(t, db, first.Enrollment.ID, false))
}

func TestEnrollUnknownUserOrCourse(t *testing.T) {
	db := setupTestDB(t)
	user := seedUser(t, db, "learner@example.com")

	_, err := Enroll(db, 999, 1)
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = Enroll(db, user.ID, 999)
	assert.ErrorIs(t, err, ErrCourseNotFound)
}

func TestEnrollSkipsUnpublishedUnits(t *testing.T) {
	db := setupTestDB(t)
	user := seedUser(t, db, "learner@example.com")
	crs := seedCourse(t, db, 2)

	mod := moduleByOrder(t, db, crs.ID, 1)
	draft := course.SubModule{
		CourseID:   crs.ID,
		ModuleID:   mod.ID,
		Title:      "Draft Unit",
		OrderIndex: 3,
	}
	require.NoError(t, db.Create(&draft).Error)

	result, err := Enroll(db, user.ID, crs.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Enrollment.TotalUnits)
}

func TestMarkUnitComplete(t *testing.T) {
	db := setupTestDB(t)
	user := seedUser(t, db, "learner@example.com")
	crs := seedCourse(t, db, 2, 2)

	_, err := Enroll(db, user.ID, crs.ID)
	require.NoError(t, err)

	agg, err := MarkUnitComplete(db, user.ID, crs.ID, ModuleKey(crs.ID, 1), UnitKey(crs.ID, 1, 1))
	require.NoError(t, err)
	assert.Equal(t, 4, agg.TotalUnits)
	assert.Equal(t, 1, agg.CompletedUnits)
	assert.Equal(t, 25, agg.ProgressPercent)

	enrollment := loadEnrollment(t, db, user.ID, crs.ID)
	assert.Equal(t, "IN_PROGRESS", enrollment.Status)
	assert.Equal(t, 1, enrollment.CompletedUnits)
	assert.Equal(t, 25, enrollment.ProgressPercent)
	require.NotNil(t, enrollment.LastAccessedAt)
}

func TestMarkUnitCompleteIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	user := seedUser(t, db, "learner@example.com")
	crs := seedCourse(t, db, 2, 2)

	_, err := Enroll(db, user.ID, crs.ID)
	require.NoError(t, err)

	unitKey := UnitKey(crs.ID, 1, 1)
	first, err := MarkUnitComplete(db, user.ID, crs.ID, ModuleKey(crs.ID, 1), unitKey)
	require.NoError(t, err)

	enrollment := loadEnrollment(t, db, user.ID, crs.ID)
	var before course.ProgressEntry
	require.NoError(t, db.Where("enrollment_id = ? AND unit_key = ?", enrollment.ID, unitKey).
		First(&before).Error)

	second, err := MarkUnitComplete(db, user.ID, crs.ID, ModuleKey(crs.ID, 1), unitKey)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	var after course.ProgressEntry
	require.NoError(t, db.Where("enrollment_id = ? AND unit_key = ?", enrollment.ID, unitKey).
		First(&after).Error)
	assert.True(t, after.Completed)
	require.NotNil(t, after.CompletedAt)
	assert.True(t, before.CompletedAt.Equal(*after.CompletedAt), "completion time must not move")
	assert.Equal(t, 4, countEntries(t, db, enrollment.ID, false))
}

func TestMarkUnitCompleteRequiresEnrollment(t *testing.T) {
	db := setupTestDB(t)
	user := seedUser(t, db, "learner@example.com")
	crs := seedCourse(t, db, 2)

	_, err := MarkUnitComplete(db, user.ID, crs.ID, ModuleKey(crs.ID, 1), UnitKey(crs.ID, 1, 1))
	assert.ErrorIs(t, err, ErrNotEnrolled)
}

func TestMarkUnitCompleteCreatesMissingEntry(t *testing.T) {
	db := setupTestDB(t)
	user := seedUser(t, db, "learner@example.com")
	crs := seedCourse(t, db, 2, 2)

	_, err := Enroll(db, user.ID, crs.ID)
	require.NoError(t, err)

	// A unit the enrollment does not know about yet, as after an edit the
	// index has not caught up with.
	agg, err := MarkUnitComplete(db, user.ID, crs.ID, ModuleKey(crs.ID, 3), UnitKey(crs.ID, 3, 1))
	require.NoError(t, err)
	assert.Equal(t, 1, agg.CompletedUnits)
	assert.Equal(t, 25, agg.ProgressPercent)

	enrollment := loadEnrollment(t, db, user.ID, crs.ID)
	assert.Equal(t, 5, countEntries(t, db, enrollment.ID, false))
}

func TestMarkUnitCompleteOnEmptyCourseKeepsAggregatesBounded(t *testing.T) {
	db := setupTestDB(t)
	user := seedUser(t, db, "learner@example.com")
	crs := seedCourse(t, db)

	result, err := Enroll(db, user.ID, crs.ID)
	require.NoError(t, err)
	assert.Zero(t, result.Enrollment.TotalUnits)

	agg, err := MarkUnitComplete(db, user.ID, crs.ID, ModuleKey(crs.ID, 1), UnitKey(crs.ID, 1, 1))
	require.NoError(t, err)
	assert.Zero(t, agg.TotalUnits)
	assert.Zero(t, agg.CompletedUnits)
	assert.Zero(t, agg.ProgressPercent)

	enrollment := loadEnrollment(t, db, user.ID, crs.ID)
	assert.LessOrEqual(t, enrollment.CompletedUnits, enrollment.TotalUnits)
	assert.Equal(t, "ENROLLED", enrollment.Status)
}

func TestMarkUnitCompleteFinishesCourse(t *testing.T) {
	db := setupTestDB(t)
	user := seedUser(t, db, "learner@example.com")
	crs := seedCourse(t, db, 1, 1)

	_, err := Enroll(db, user.ID, crs.ID)
	require.NoError(t, err)

	_, err = MarkUnitComplete(db, user.ID, crs.ID, ModuleKey(crs.ID, 1), UnitKey(crs.ID, 1, 1))
	require.NoError(t, err)

	agg, err := MarkUnitComplete(db, user.ID, crs.ID, ModuleKey(crs.ID, 2), UnitKey(crs.ID, 2, 1))
	require.NoError(t, err)
	assert.Equal(t, 100, agg.ProgressPercent)

	enrollment := loadEnrollment(t, db, user.ID, crs.ID)
	assert.Equal(t, "COMPLETED", enrollment.Status)
	require.NotNil(t, enrollment.CompletedAt)
}

// Removing a module with no completed work shrinks the denominator and drops
// the orphaned incomplete entries.
func TestRepairAfterRemovingUntouchedModule(t *testing.T) {
	db := setupTestDB(t)
	user := seedUser(t, db, "learner@example.com")
	crs := seedCourse(t, db, 2, 2)

	_, err := Enroll(db, user.ID, crs.ID)
	require.NoError(t, err)
	_, err = MarkUnitComplete(db, user.ID, crs.ID, ModuleKey(crs.ID, 1), UnitKey(crs.ID, 1, 1))
	require.NoError(t, err)

	softDeleteModule(t, db, moduleByOrder(t, db, crs.ID, 2).ID)

	summary, err := RepairCourse(context.Background(), db, crs.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.TotalUnits)
	assert.Equal(t, 1, summary.UsersUpdated)
	assert.Zero(t, summary.UsersFailed)

	enrollment := loadEnrollment(t, db, user.ID, crs.ID)
	assert.Equal(t, 2, enrollment.TotalUnits)
	assert.Equal(t, 1, enrollment.CompletedUnits)
	assert.Equal(t, 50, enrollment.ProgressPercent)
	assert.Equal(t, 2, countEntries(t, db, enrollment.ID, false))
	assert.Zero(t, countEntries(t, db, enrollment.ID, true))
}

// Removing a module the user had finished work in keeps that work as archived
// history while excluding it from the live aggregates.
func TestRepairArchivesCompletedWorkInRemovedModule(t *testing.T) {
	db := setupTestDB(t)
	user := seedUser(t, db, "learner@example.com")
	crs := seedCourse(t, db, 2, 2)

	_, err := Enroll(db, user.ID, crs.ID)
	require.NoError(t, err)
	archivedKey := UnitKey(crs.ID, 2, 1)
	_, err = MarkUnitComplete(db, user.ID, crs.ID, ModuleKey(crs.ID, 2), archivedKey)
	require.NoError(t, err)

	softDeleteModule(t, db, moduleByOrder(t, db, crs.ID, 2).ID)

	_, err = RepairCourse(context.Background(), db, crs.ID)
	require.NoError(t, err)

	enrollment := loadEnrollment(t, db, user.ID, crs.ID)
	assert.Equal(t, 2, enrollment.TotalUnits)
	assert.Zero(t, enrollment.CompletedUnits)
	assert.Zero(t, enrollment.ProgressPercent)
	assert.Equal(t, "ENROLLED", enrollment.Status)

	var archived course.ProgressEntry
	require.NoError(t, db.Where("enrollment_id = ? AND archived = ?", enrollment.ID, true).
		First(&archived).Error)
	assert.Equal(t, archivedKey, archived.UnitKey)
	assert.True(t, archived.Completed)
	require.NotNil(t, archived.ArchivedAt)
}

func TestRepairCreatesEntriesForNewModule(t *testing.T) {
	db := setupTestDB(t)
	user := seedUser(t, db, "learner@example.com")
	crs := seedCourse(t, db, 2)

	_, err := Enroll(db, user.ID, crs.ID)
	require.NoError(t, err)

	mod := course.Module{CourseID: crs.ID, Title: "Module 2", OrderIndex: 2}
	require.NoError(t, db.Create(&mod).Error)
	unit := course.SubModule{
		CourseID:    crs.ID,
		ModuleID:    mod.ID,
		Title:       "Unit 2.1",
		OrderIndex:  1,
		IsPublished: true,
	}
	require.NoError(t, db.Create(&unit).Error)

	_, err = RepairCourse(context.Background(), db, crs.ID)
	require.NoError(t, err)

	enrollment := loadEnrollment(t, db, user.ID, crs.ID)
	assert.Equal(t, 3, enrollment.TotalUnits)
	assert.Equal(t, 3, countEntries(t, db, enrollment.ID, false))

	var entry course.ProgressEntry
	require.NoError(t, db.Where("enrollment_id = ? AND unit_key = ?",
		enrollment.ID, UnitKey(crs.ID, 2, 1)).First(&entry).Error)
	assert.False(t, entry.Completed)
}

// A second repair of an already-aligned course must not touch any row.
func TestRepairIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	user := seedUser(t, db, "learner@example.com")
	crs := seedCourse(t, db, 2, 2)

	_, err := Enroll(db, user.ID, crs.ID)
	require.NoError(t, err)
	_, err = MarkUnitComplete(db, user.ID, crs.ID, ModuleKey(crs.ID, 1), UnitKey(crs.ID, 1, 1))
	require.NoError(t, err)

	softDeleteModule(t, db, moduleByOrder(t, db, crs.ID, 2).ID)

	_, err = RepairCourse(context.Background(), db, crs.ID)
	require.NoError(t, err)
	before := loadEnrollment(t, db, user.ID, crs.ID)

	_, err = RepairCourse(context.Background(), db, crs.ID)
	require.NoError(t, err)
	after := loadEnrollment(t, db, user.ID, crs.ID)

	assert.Equal(t, before.Version, after.Version)
	assert.True(t, before.UpdatedAt.Equal(after.UpdatedAt))
	assert.Equal(t, before.CompletedUnits, after.CompletedUnits)
	assert.Equal(t, before.ProgressPercent, after.ProgressPercent)
}

func TestRepairCoversAllEnrolledUsers(t *testing.T) {
	db := setupTestDB(t)
	crs := seedCourse(t, db, 2, 2)

	for i := 0; i < 20; i++ {
		user := seedUser(t, db, fmt.Sprintf("learner%d@example.com", i))
		_, err := Enroll(db, user.ID, crs.ID)
		require.NoError(t, err)
	}

	softDeleteModule(t, db, moduleByOrder(t, db, crs.ID, 2).ID)

	summary, err := RepairCourse(context.Background(), db, crs.ID)
	require.NoError(t, err)
	assert.Equal(t, 20, summary.UsersUpdated)
	assert.Zero(t, summary.UsersFailed)
	assert.Empty(t, summary.Failures)

	var enrollments []course.Enrollment
	require.NoError(t, db.Where("course_id = ?", crs.ID).Find(&enrollments).Error)
	for _, enr := range enrollments {
		assert.Equal(t, 2, enr.TotalUnits)
	}
}

func TestRepairUnknownCourse(t *testing.T) {
	db := setupTestDB(t)

	_, err := RepairCourse(context.Background(), db, 42)
	assert.ErrorIs(t, err, ErrCourseNotFound)
}

func TestPurgeCourseEnrollments(t *testing.T) {
	db := setupTestDB(t)
	user := seedUser(t, db, "learner@example.com")
	crs := seedCourse(t, db, 2, 2)

	result, err := Enroll(db, user.ID, crs.ID)
	require.NoError(t, err)
	_, err = MarkUnitComplete(db, user.ID, crs.ID, ModuleKey(crs.ID, 1), UnitKey(crs.ID, 1, 1))
	require.NoError(t, err)

	require.NoError(t, db.Model(&course.Course{}).Where("id = ?", crs.ID).
		Update("is_deleted", true).Error)

	usersUpdated, err := PurgeCourseEnrollments(db, crs.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, usersUpdated)

	var n int64
	require.NoError(t, db.Model(&course.Enrollment{}).Where("course_id = ?", crs.ID).Count(&n).Error)
	assert.Zero(t, n)
	require.NoError(t, db.Model(&course.ProgressEntry{}).
		Where("enrollment_id = ?", result.Enrollment.ID).Count(&n).Error)
	assert.Zero(t, n)

	view, err := GetProgress(db, user.ID, crs.ID)
	require.NoError(t, err)
	assert.False(t, view.Enrolled)
}

func TestGetProgress(t *testing.T) {
	db := setupTestDB(t)
	user := seedUser(t, db, "learner@example.com")
	crs := seedCourse(t, db, 2, 2)

	_, err := Enroll(db, user.ID, crs.ID)
	require.NoError(t, err)
	_, err = MarkUnitComplete(db, user.ID, crs.ID, ModuleKey(crs.ID, 1), UnitKey(crs.ID, 1, 2))
	require.NoError(t, err)
	_, err = MarkUnitComplete(db, user.ID, crs.ID, ModuleKey(crs.ID, 2), UnitKey(crs.ID, 2, 1))
	require.NoError(t, err)

	view, err := GetProgress(db, user.ID, crs.ID)
	require.NoError(t, err)
	assert.True(t, view.Enrolled)
	assert.Equal(t, "IN_PROGRESS", view.Status)
	assert.Equal(t, 4, view.TotalUnits)
	assert.Equal(t, 2, view.CompletedUnits)
	assert.Equal(t, 50, view.ProgressPercent)
	require.NotNil(t, view.EnrolledAt)
	require.NotNil(t, view.LastAccessedAt)
	assert.Len(t, view.Entries, 4)

	require.Len(t, view.RecentActivity, 2)
	assert.Equal(t, UnitKey(crs.ID, 2, 1), view.RecentActivity[0].UnitKey, "most recent first")
	assert.Equal(t, UnitKey(crs.ID, 1, 2), view.RecentActivity[1].UnitKey)
}

func TestGetProgressNotEnrolled(t *testing.T) {
	db := setupTestDB(t)
	user := seedUser(t, db, "learner@example.com")
	crs := seedCourse(t, db, 2)

	view, err := GetProgress(db, user.ID, crs.ID)
	require.NoError(t, err)
	assert.False(t, view.Enrolled)
	assert.Equal(t, crs.ID, view.CourseID)
	assert.Empty(t, view.Entries)
}

// A failed lookup must surface as an error, not as a "not enrolled" view.
func TestGetProgressPropagatesLookupErrors(t *testing.T) {
	db := setupTestDB(t)
	user := seedUser(t, db, "learner@example.com")
	crs := seedCourse(t, db, 2)

	_, err := Enroll(db, user.ID, crs.ID)
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	_, err = GetProgress(db, user.ID, crs.ID)
	assert.Error(t, err)
}

func TestGetProgressOmitsArchivedEntries(t *testing.T) {
	db := setupTestDB(t)
	user := seedUser(t, db, "learner@example.com")
	crs := seedCourse(t, db, 2, 1)

	_, err := Enroll(db, user.ID, crs.ID)
	require.NoError(t, err)
	_, err = MarkUnitComplete(db, user.ID, crs.ID, ModuleKey(crs.ID, 2), UnitKey(crs.ID, 2, 1))
	require.NoError(t, err)

	softDeleteModule(t, db, moduleByOrder(t, db, crs.ID, 2).ID)
	_, err = RepairCourse(context.Background(), db, crs.ID)
	require.NoError(t, err)

	view, err := GetProgress(db, user.ID, crs.ID)
	require.NoError(t, err)
	assert.Len(t, view.Entries, 2)
	for _, e := range view.Entries {
		assert.False(t, e.Archived)
	}
}

func TestLoadCourseIndexAssignsAndPersistsKeys(t *testing.T) {
	db := setupTestDB(t)
	crs := seedCourse(t, db, 2, 1)

	index, assignments, err := LoadCourseIndex(db, crs.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, index.TotalModules)
	assert.Equal(t, 3, index.TotalUnits)
	assert.Len(t, assignments, 5)

	require.NoError(t, SaveKeyAssignments(db, assignments))

	// Keys are now pinned on the rows; a reload assigns nothing new.
	again, assignments, err := LoadCourseIndex(db, crs.ID)
	require.NoError(t, err)
	assert.Empty(t, assignments)
	assert.Equal(t, index, again)
}

// Reordering modules after keys were persisted must not reassign identity.
func TestPersistedKeysSurviveReordering(t *testing.T) {
	db := setupTestDB(t)
	user := seedUser(t, db, "learner@example.com")
	crs := seedCourse(t, db, 1, 1)

	_, err := Enroll(db, user.ID, crs.ID)
	require.NoError(t, err)
	_, err = MarkUnitComplete(db, user.ID, crs.ID, ModuleKey(crs.ID, 1), UnitKey(crs.ID, 1, 1))
	require.NoError(t, err)

	// Swap the two modules.
	require.NoError(t, db.Model(&course.Module{}).
		Where("course_id = ? AND order_index = ?", crs.ID, 1).
		Update("order_index", 3).Error)

	_, err = RepairCourse(context.Background(), db, crs.ID)
	require.NoError(t, err)

	// The completed unit kept its key, so the work survived the move.
	enrollment := loadEnrollment(t, db, user.ID, crs.ID)
	assert.Equal(t, 2, enrollment.TotalUnits)
	assert.Equal(t, 1, enrollment.CompletedUnits)
	assert.Equal(t, 50, enrollment.ProgressPercent)
}
