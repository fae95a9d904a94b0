package controllers

import (
	"errors"
	"time"

	"lms/database"
	"lms/middleware"
	"lms/models"
	courseModels "lms/models/course"
	"lms/progress"
	"lms/utils"

	"github.com/gofiber/fiber/v2"
)

// MarkUnitComplete records completion of one sub-module for the user
func MarkUnitComplete(c *fiber.Ctx) error {
	userID, ok := c.Locals("userId").(uint)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Unauthorized!", nil)
	}

	var user models.User
	if err := database.Database.Db.Where("id = ? AND is_deleted = ?", userID, false).First(&user).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "User not found!", nil)
	}

	courseID := c.Locals("courseID").(int)
	moduleKey := c.Locals("moduleKey").(string)
	unitKey := c.Locals("unitKey").(string)

	var course courseModels.Course
	if err := database.Database.Db.Where("id = ? AND is_deleted = ? AND is_published = ?", courseID, false, true).First(&course).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Course not found or not published!", nil)
	}

	agg, err := progress.MarkUnitComplete(database.Database.Db, userID, uint(courseID), moduleKey, unitKey)
	if err != nil {
		switch {
		case errors.Is(err, progress.ErrNotEnrolled):
			return middleware.JsonResponse(c, fiber.StatusForbidden, false, "Please enroll in this course first!", nil)
		case errors.Is(err, progress.ErrConflict):
			return middleware.JsonResponse(c, fiber.StatusConflict, false, "Progress update conflicted, please retry!", nil)
		default:
			return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to mark unit as completed!", nil)
		}
	}

	if agg.ProgressPercent >= 100 && agg.TotalUnits > 0 {
		utils.NotifyCourseCompleted(utils.CompletionEvent{
			UserID:          userID,
			CourseID:        uint(courseID),
			CourseTitle:     course.Title,
			ProgressPercent: agg.ProgressPercent,
			CompletedAt:     time.Now(),
		})
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Unit marked as completed successfully!", agg)
}

// GetUserProgress returns the user's progress view for a course
func GetUserProgress(c *fiber.Ctx) error {
	userID, ok := c.Locals("userId").(uint)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Unauthorized!", nil)
	}

	var user models.User
	if err := database.Database.Db.Where("id = ? AND is_deleted = ?", userID, false).First(&user).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "User not found!", nil)
	}

	courseID := c.Locals("courseID").(int)

	view, err := progress.GetProgress(database.Database.Db, userID, uint(courseID))
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to fetch progress!", nil)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Progress fetched successfully!", view)
}

// GetCourseUnits lists a course's sub-modules with the user's completion flags
func GetCourseUnits(c *fiber.Ctx) error {
	userID, ok := c.Locals("userId").(uint)
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Unauthorized!", nil)
	}

	var user models.User
	if err := database.Database.Db.Where("id = ? AND is_deleted = ?", userID, false).First(&user).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "User not found!", nil)
	}

	courseID := c.Locals("courseID").(int)

	var course courseModels.Course
	if err := database.Database.Db.Where("id = ? AND is_deleted = ? AND is_published = ?", courseID, false, true).First(&course).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Course not found!", nil)
	}

	// Check enrollment
	var enrollment courseModels.Enrollment
	if err := database.Database.Db.Where("user_id = ? AND course_id = ? AND is_deleted = ?", userID, courseID, false).First(&enrollment).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusForbidden, false, "Please enroll in this course first!", nil)
	}

	var units []courseModels.SubModule
	if err := database.Database.Db.Where("course_id = ? AND is_deleted = ? AND is_published = ?", courseID, false, true).
		Order("module_id asc, order_index asc, id asc").Find(&units).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to fetch units!", nil)
	}

	completedKeys := make(map[string]bool)
	var entries []courseModels.ProgressEntry
	database.Database.Db.Where("enrollment_id = ? AND archived = ? AND completed = ?", enrollment.ID, false, true).Find(&entries)
	for _, e := range entries {
		completedKeys[e.UnitKey] = true
	}

	type UnitWithStatus struct {
		courseModels.SubModule
		IsCompleted bool `json:"is_completed"`
	}

	result := make([]UnitWithStatus, len(units))
	for i, unit := range units {
		result[i] = UnitWithStatus{
			SubModule:   unit,
			IsCompleted: completedKeys[unit.Key],
		}
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Units fetched successfully!", fiber.Map{
		"units": result,
	})
}
