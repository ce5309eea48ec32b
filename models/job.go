package models

import (
	"time"

	"github.com/google/uuid"
)

type JobType string

const (
	JobTypeManual    JobType = "manual"
	JobTypeScheduled JobType = "scheduled"
)

// Job is a saved search configuration. Scheduled jobs carry up to two daily
// trigger times in "HH:MM:SS" form; the scheduler owns their lifecycle, the
// pipeline only reads SearchURL and attributes executions to the job.
type Job struct {
	ID            uuid.UUID `json:"id" db:"id"`
	Name          string    `json:"name" db:"name"`
	SearchURL     string    `json:"search_url" db:"search_url"`
	JobType       JobType   `json:"job_type" db:"job_type"`
	ScheduleTime1 string    `json:"schedule_time1" db:"schedule_time1"`
	ScheduleTime2 string    `json:"schedule_time2" db:"schedule_time2"`
	IsActive      bool      `json:"is_active" db:"is_active"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// ScheduleTimes returns the non-empty trigger times.
func (j *Job) ScheduleTimes() []string {
	var times []string
	if j.ScheduleTime1 != "" {
		times = append(times, j.ScheduleTime1)
	}
	if j.ScheduleTime2 != "" {
		times = append(times, j.ScheduleTime2)
	}
	return times
}
