package utils

import (
	"context"
	"log"
	"time"

	"lms/database"
	"lms/models/course"
	"lms/progress"

	"github.com/robfig/cron/v3"
)

// logRepair logs repair sweep events with timestamp
func logRepair(message string) {
	log.Printf("[REPAIR-SCHEDULER %s] %s", time.Now().Format(time.RFC3339), message)
}

// runRepairSweep reconciles every enrolled user of every live course against
// the course's current hierarchy. Drift from partial batch failures or manual
// data edits self-heals here even when no structural edit was recorded.
func runRepairSweep() {
	db := database.Database.Db

	var courses []course.Course
	if err := db.Where("is_deleted = ?", false).Find(&courses).Error; err != nil {
		logRepair("Error fetching courses: " + err.Error())
		return
	}

	for _, crs := range courses {
		summary, err := progress.RepairCourse(context.Background(), db, crs.ID)
		if err != nil {
			logRepair("Course " + crs.Title + " repair failed: " + err.Error())
			continue
		}
		if summary.UsersFailed > 0 {
			logRepair(crs.Title + ": some users failed and will be retried on the next sweep")
		}
		log.Printf("[REPAIR-SCHEDULER] course %d: %d users updated, %d failed", crs.ID, summary.UsersUpdated, summary.UsersFailed)
	}
}

// StartRepairScheduler starts the nightly progress repair sweep
func StartRepairScheduler() {
	c := cron.New()

	// Every day at 03:00
	if _, err := c.AddFunc("0 3 * * *", runRepairSweep); err != nil {
		logRepair("Failed to register repair sweep: " + err.Error())
		return
	}

	c.Start()
	logRepair("Nightly repair sweep scheduled")
}
