package controllers

import (
	"lms/database"
	"lms/middleware"
	"lms/models"
	courseModels "lms/models/course"

	"github.com/gofiber/fiber/v2"
	"github.com/jinzhu/now"
)

// AdminDashboard returns platform-wide learning activity stats
func AdminDashboard(c *fiber.Ctx) error {
	db := database.Database.Db

	var totalUsers int64
	db.Model(&models.User{}).Where("is_deleted = ?", false).Count(&totalUsers)

	var totalCourses int64
	db.Model(&courseModels.Course{}).Where("is_deleted = ?", false).Count(&totalCourses)

	var publishedCourses int64
	db.Model(&courseModels.Course{}).Where("is_deleted = ? AND is_published = ?", false, true).Count(&publishedCourses)

	var totalEnrollments int64
	db.Model(&courseModels.Enrollment{}).Where("is_deleted = ?", false).Count(&totalEnrollments)

	var completedEnrollments int64
	db.Model(&courseModels.Enrollment{}).Where("is_deleted = ? AND status = ?", false, "COMPLETED").Count(&completedEnrollments)

	var certificatesIssued int64
	db.Model(&courseModels.Certificate{}).Where("is_deleted = ?", false).Count(&certificatesIssued)

	weekStart := now.BeginningOfWeek()
	monthStart := now.BeginningOfMonth()

	var enrollmentsThisWeek int64
	db.Model(&courseModels.Enrollment{}).Where("is_deleted = ? AND enrolled_at >= ?", false, weekStart).Count(&enrollmentsThisWeek)

	var enrollmentsThisMonth int64
	db.Model(&courseModels.Enrollment{}).Where("is_deleted = ? AND enrolled_at >= ?", false, monthStart).Count(&enrollmentsThisMonth)

	var completionsThisWeek int64
	db.Model(&courseModels.Enrollment{}).Where("is_deleted = ? AND completed_at >= ?", false, weekStart).Count(&completionsThisWeek)

	var completionsThisMonth int64
	db.Model(&courseModels.Enrollment{}).Where("is_deleted = ? AND completed_at >= ?", false, monthStart).Count(&completionsThisMonth)

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Dashboard stats fetched successfully!", fiber.Map{
		"totals": fiber.Map{
			"users":                 totalUsers,
			"courses":               totalCourses,
			"published_courses":     publishedCourses,
			"enrollments":           totalEnrollments,
			"completed_enrollments": completedEnrollments,
			"certificates_issued":   certificatesIssued,
		},
		"this_week": fiber.Map{
			"enrollments": enrollmentsThisWeek,
			"completions": completionsThisWeek,
		},
		"this_month": fiber.Map{
			"enrollments": enrollmentsThisMonth,
			"completions": completionsThisMonth,
		},
	})
}
