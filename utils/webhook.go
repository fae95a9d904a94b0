package utils

import (
	"log"
	"time"

	"lms/config"

	"github.com/go-resty/resty/v2"
)

// CompletionEvent is the payload POSTed to the configured webhook when a
// learner reaches 100% on a course.
type CompletionEvent struct {
	UserID          uint      `json:"user_id"`
	CourseID        uint      `json:"course_id"`
	CourseTitle     string    `json:"course_title"`
	ProgressPercent int       `json:"progress_percent"`
	CompletedAt     time.Time `json:"completed_at"`
}

// NotifyCourseCompleted fires the completion webhook. Best-effort: failures
// are logged, never surfaced to the learner's request.
func NotifyCourseCompleted(event CompletionEvent) {
	url := config.AppConfig.CompletionWebhookURL
	if url == "" {
		return
	}

	go func() {
		client := resty.New().SetTimeout(10 * time.Second)
		resp, err := client.R().
			SetHeader("Content-Type", "application/json").
			SetBody(event).
			Post(url)
		if err != nil {
			log.Printf("[WEBHOOK] completion event for user %d course %d failed: %v", event.UserID, event.CourseID, err)
			return
		}
		if resp.IsError() {
			log.Printf("[WEBHOOK] completion event for user %d course %d got status %d", event.UserID, event.CourseID, resp.StatusCode())
		}
	}()
}
