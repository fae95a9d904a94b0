package adminRoutes

import (
	controllers "lms/controllers/admin"
	"lms/middleware"
	validators "lms/validators/admin"

	"github.com/gofiber/fiber/v2"
)

// SetupAdminRoutes sets up all course authoring routes
func SetupAdminRoutes(app *fiber.App) {
	adminGroup := app.Group("/admin", middleware.JWTMiddleware, middleware.AdminOnly)

	// Course management
	adminGroup.Get("/course/list", controllers.AdminListCourses)
	adminGroup.Post("/course", validators.CreateCourse(), controllers.AdminCreateCourse)
	adminGroup.Put("/course/:id", validators.UpdateCourse(), controllers.AdminUpdateCourse)
	adminGroup.Delete("/course/:id", validators.CourseID(), controllers.AdminDeleteCourse)

	// Progress repair
	adminGroup.Post("/course/:id/repair", validators.CourseID(), controllers.AdminRepairCourse)

	// Module management
	adminGroup.Get("/course/:id/modules", validators.CourseID(), controllers.AdminListModules)
	adminGroup.Post("/course/:id/module", validators.CreateModule(), controllers.AdminCreateModule)
	adminGroup.Put("/course/:course_id/module/:module_id", validators.UpdateModule(), controllers.AdminUpdateModule)
	adminGroup.Delete("/course/:course_id/module/:module_id", validators.ModuleID(), controllers.AdminDeleteModule)

	// Unit management
	adminGroup.Get("/course/:course_id/module/:module_id/units", validators.ModuleID(), controllers.AdminListUnits)
	adminGroup.Post("/course/:course_id/module/:module_id/unit", validators.CreateUnit(), controllers.AdminCreateUnit)
	adminGroup.Put("/course/:course_id/unit/:unit_id", validators.UpdateUnit(), controllers.AdminUpdateUnit)
	adminGroup.Delete("/course/:course_id/unit/:unit_id", validators.UnitID(), controllers.AdminDeleteUnit)

	// Dashboard
	adminGroup.Get("/dashboard", controllers.AdminDashboard)
}
