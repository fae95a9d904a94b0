package main

import (
	"encoding/csv"
	"log"
	"os"
	"strconv"
	"strings"

	"lms/config"
	"lms/database"
	"lms/models/course"
)

// Bulk-imports a course catalog from CourseCatalog.csv. One row per unit:
// course_title,author,module_title,unit_title,content_type,is_published
// Courses and modules are created on first sight, in file order.
func main() {
	config.LoadConfig()
	database.ConnectDb()

	file, err := os.Open("CourseCatalog.csv")
	if err != nil {
		log.Fatalf("Failed to open CSV file: %v", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	records, err := reader.ReadAll()
	if err != nil {
		log.Fatalf("Failed to read CSV: %v", err)
	}

	if len(records) < 2 {
		log.Fatal("CSV file is empty or has only headers")
	}

	db := database.Database.Db

	courses := make(map[string]*course.Course)
	modules := make(map[string]*course.Module)
	moduleOrder := make(map[string]int)
	unitOrder := make(map[uint]int)
	imported := 0

	// Skip header row
	for i, record := range records[1:] {
		if len(record) < 6 {
			log.Printf("Skipping row %d: expected 6 columns, got %d", i+2, len(record))
			continue
		}

		courseTitle := strings.TrimSpace(record[0])
		author := strings.TrimSpace(record[1])
		moduleTitle := strings.TrimSpace(record[2])
		unitTitle := strings.TrimSpace(record[3])
		contentType := strings.ToUpper(strings.TrimSpace(record[4]))
		isPublished, _ := strconv.ParseBool(strings.TrimSpace(record[5]))

		if courseTitle == "" || moduleTitle == "" || unitTitle == "" {
			log.Printf("Skipping row %d: missing title", i+2)
			continue
		}
		if contentType != "TEXT" && contentType != "VIDEO" && contentType != "IMAGE" {
			contentType = "TEXT"
		}

		crs, ok := courses[courseTitle]
		if !ok {
			crs = &course.Course{
				Title:  courseTitle,
				Author: author,
				Status: "DRAFT",
			}
			if err := db.Create(crs).Error; err != nil {
				log.Fatalf("Failed to create course %q: %v", courseTitle, err)
			}
			courses[courseTitle] = crs
		}

		moduleKey := courseTitle + "/" + moduleTitle
		mod, ok := modules[moduleKey]
		if !ok {
			moduleOrder[courseTitle]++
			mod = &course.Module{
				CourseID:   crs.ID,
				Title:      moduleTitle,
				OrderIndex: moduleOrder[courseTitle],
			}
			if err := db.Create(mod).Error; err != nil {
				log.Fatalf("Failed to create module %q: %v", moduleTitle, err)
			}
			modules[moduleKey] = mod
		}

		unitOrder[mod.ID]++
		unit := course.SubModule{
			CourseID:    crs.ID,
			ModuleID:    mod.ID,
			Title:       unitTitle,
			ContentType: contentType,
			OrderIndex:  unitOrder[mod.ID],
			IsPublished: isPublished,
		}
		if err := db.Create(&unit).Error; err != nil {
			log.Fatalf("Failed to create unit %q: %v", unitTitle, err)
		}
		imported++
	}

	log.Printf("Import complete: %d courses, %d modules, %d units", len(courses), len(modules), imported)
}
