package courseRoutes

import (
	controllers "lms/controllers/course"
	"lms/middleware"
	validators "lms/validators/course"

	"github.com/gofiber/fiber/v2"
)

// SetupCourseRoutes sets up all user-facing course routes
func SetupCourseRoutes(app *fiber.App) {
	userGroup := app.Group("/course")

	// Course listing and details (published courses)
	userGroup.Get("/list", middleware.JWTMiddleware, controllers.GetAllCourses)
	userGroup.Get("/:id", middleware.JWTMiddleware, validators.GetCourseDetail(), controllers.GetCourseDetails)

	// Enrollment
	userGroup.Post("/:id/enroll", middleware.JWTMiddleware, validators.EnrollCourse(), controllers.EnrollInCourse)

	// Unit listing with completion flags (for enrolled users)
	userGroup.Get("/:id/units", middleware.JWTMiddleware, validators.GetCourseUnits(), controllers.GetCourseUnits)

	// Unit completion
	userGroup.Post("/:course_id/module/:module_key/unit/:unit_key/complete",
		middleware.JWTMiddleware, validators.MarkUnitComplete(), controllers.MarkUnitComplete)

	// Progress tracking
	userGroup.Get("/:id/progress", middleware.JWTMiddleware, validators.GetCourseProgress(), controllers.GetUserProgress)

	// Certificate request
	userGroup.Post("/:id/certificate", middleware.JWTMiddleware, validators.RequestCertificate(), controllers.RequestCertificate)

	// User enrollments and certificates
	userEnrollGroup := app.Group("/user")
	userEnrollGroup.Get("/enrollments", middleware.JWTMiddleware, controllers.GetEnrollments)
	userEnrollGroup.Get("/certificates", middleware.JWTMiddleware, controllers.GetUserCertificates)
}
