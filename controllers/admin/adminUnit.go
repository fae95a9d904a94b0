package controllers

import (
	"lms/database"
	"lms/middleware"
	courseModels "lms/models/course"

	"github.com/gofiber/fiber/v2"
)

// AdminCreateUnit creates a new sub-module within a module
func AdminCreateUnit(c *fiber.Ctx) error {
	courseID := c.Locals("courseID").(int)
	moduleID := c.Locals("moduleID").(int)

	var module courseModels.Module
	if err := database.Database.Db.Where("id = ? AND course_id = ? AND is_deleted = ?", moduleID, courseID, false).First(&module).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Module not found!", nil)
	}

	reqData, ok := c.Locals("validatedUnit").(*struct {
		Title       string `json:"title" validate:"required,min=2"`
		Key         string `json:"key"`
		ContentType string `json:"content_type" validate:"omitempty,oneof=TEXT VIDEO IMAGE"`
		TextContent string `json:"text_content"`
		VideoURL    string `json:"video_url"`
		ImageURL    string `json:"image_url"`
		OrderIndex  int    `json:"order_index"`
		IsPublished bool   `json:"is_published"`
	})
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}

	orderIndex := reqData.OrderIndex
	if orderIndex == 0 {
		var maxOrder int
		database.Database.Db.Model(&courseModels.SubModule{}).Where("module_id = ? AND is_deleted = ?", moduleID, false).
			Select("COALESCE(MAX(order_index), 0)").Scan(&maxOrder)
		orderIndex = maxOrder + 1
	}

	contentType := reqData.ContentType
	if contentType == "" {
		contentType = "TEXT"
	}

	unit := courseModels.SubModule{
		CourseID:    uint(courseID),
		ModuleID:    uint(moduleID),
		Key:         reqData.Key,
		Title:       reqData.Title,
		ContentType: contentType,
		TextContent: reqData.TextContent,
		VideoURL:    reqData.VideoURL,
		ImageURL:    reqData.ImageURL,
		OrderIndex:  orderIndex,
		IsPublished: reqData.IsPublished,
	}

	if err := database.Database.Db.Create(&unit).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to create unit!", nil)
	}

	var repair interface{}
	if unit.IsPublished {
		repair = repairAfterEdit(uint(courseID))
	}

	return middleware.JsonResponse(c, fiber.StatusCreated, true, "Unit created successfully!", fiber.Map{
		"unit":   unit,
		"repair": repair,
	})
}

// AdminUpdateUnit updates a sub-module. Reordering or publish toggles change
// the tracking index and trigger reconciliation; content edits do not.
func AdminUpdateUnit(c *fiber.Ctx) error {
	courseID := c.Locals("courseID").(int)
	unitID := c.Locals("unitID").(int)

	var unit courseModels.SubModule
	if err := database.Database.Db.Where("id = ? AND course_id = ? AND is_deleted = ?", unitID, courseID, false).First(&unit).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Unit not found!", nil)
	}

	reqData, ok := c.Locals("validatedUnitUpdate").(*struct {
		Title       string `json:"title"`
		TextContent string `json:"text_content"`
		VideoURL    string `json:"video_url"`
		ImageURL    string `json:"image_url"`
		OrderIndex  int    `json:"order_index"`
		IsPublished *bool  `json:"is_published"`
	})
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}

	structural := false
	if reqData.Title != "" {
		unit.Title = reqData.Title
	}
	if reqData.TextContent != "" {
		unit.TextContent = reqData.TextContent
	}
	if reqData.VideoURL != "" {
		unit.VideoURL = reqData.VideoURL
	}
	if reqData.ImageURL != "" {
		unit.ImageURL = reqData.ImageURL
	}
	if reqData.OrderIndex > 0 && reqData.OrderIndex != unit.OrderIndex {
		unit.OrderIndex = reqData.OrderIndex
		structural = true
	}
	if reqData.IsPublished != nil && *reqData.IsPublished != unit.IsPublished {
		unit.IsPublished = *reqData.IsPublished
		structural = true
	}

	if err := database.Database.Db.Save(&unit).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to update unit!", nil)
	}

	response := fiber.Map{"unit": unit}
	if structural {
		response["repair"] = repairAfterEdit(uint(courseID))
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Unit updated successfully!", response)
}

// AdminDeleteUnit soft deletes a sub-module and reconciles enrolled users.
// Users who had completed the unit keep it as archived history; incomplete
// entries for it are dropped.
func AdminDeleteUnit(c *fiber.Ctx) error {
	courseID := c.Locals("courseID").(int)
	unitID := c.Locals("unitID").(int)

	var unit courseModels.SubModule
	if err := database.Database.Db.Where("id = ? AND course_id = ? AND is_deleted = ?", unitID, courseID, false).First(&unit).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Unit not found!", nil)
	}

	unit.IsDeleted = true
	if err := database.Database.Db.Save(&unit).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to delete unit!", nil)
	}

	repair := repairAfterEdit(uint(courseID))

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Unit deleted successfully!", fiber.Map{
		"repair": repair,
	})
}

// AdminListUnits lists all sub-modules of a module
func AdminListUnits(c *fiber.Ctx) error {
	courseID := c.Locals("courseID").(int)
	moduleID := c.Locals("moduleID").(int)

	var module courseModels.Module
	if err := database.Database.Db.Where("id = ? AND course_id = ? AND is_deleted = ?", moduleID, courseID, false).First(&module).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Module not found!", nil)
	}

	var units []courseModels.SubModule
	if err := database.Database.Db.Where("module_id = ? AND is_deleted = ?", moduleID, false).
		Order("order_index asc, id asc").Find(&units).Error; err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to fetch units!", nil)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Units fetched successfully!", fiber.Map{
		"module": module,
		"units":  units,
	})
}
