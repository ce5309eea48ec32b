package scheduler

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"suumo_watcher/models"
	"suumo_watcher/scraper"
)

// Runner executes one scrape. Satisfied by scraper.Pipeline; replaced in
// tests with a recorder.
type Runner interface {
	Run(ctx context.Context, req scraper.RunRequest) (*scraper.RunResult, error)
}

// JobSource is the slice of the store the scheduler reads.
type JobSource interface {
	ListActiveScheduledJobs(ctx context.Context) ([]models.Job, error)
	JobsScheduledAt(ctx context.Context, scheduleTime string) ([]models.Job, error)
}

// Scheduler maps job schedule times onto cron entries. Each active scheduled
// job gets one entry per schedule time, keyed "jobID:HH:MM:SS" so re-applying
// a job is idempotent.
type Scheduler struct {
	runner Runner
	jobs   JobSource
	cron   *cron.Cron

	mu      sync.Mutex
	entries map[string]cron.EntryID
}

func New(runner Runner, jobs JobSource) *Scheduler {
	return &Scheduler{
		runner:  runner,
		jobs:    jobs,
		cron:    cron.New(cron.WithSeconds()),
		entries: make(map[string]cron.EntryID),
	}
}

// Bootstrap registers every active scheduled job. Invalid schedule times are
// logged and skipped; they never prevent other jobs from registering.
func (s *Scheduler) Bootstrap(ctx context.Context) error {
	jobs, err := s.jobs.ListActiveScheduledJobs(ctx)
	if err != nil {
		return fmt.Errorf("list scheduled jobs: %w", err)
	}

	for i := range jobs {
		s.UpdateJobSchedule(ctx, &jobs[i])
	}
	log.Printf("Scheduler bootstrapped with %d jobs", len(jobs))
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the cron loop. Runs already in flight keep going.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}

// UpdateJobSchedule reconciles the cron entries for one job: existing entries
// for the job are dropped and fresh ones added for its current schedule
// times. Deactivated jobs simply end up with no entries.
func (s *Scheduler) UpdateJobSchedule(ctx context.Context, job *models.Job) {
	s.RemoveJobSchedules(job.ID)

	if !job.IsActive || job.JobType != models.JobTypeScheduled {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, scheduleTime := range job.ScheduleTimes() {
		spec, err := timeToCronSpec(scheduleTime)
		if err != nil {
			log.Printf("Job %s: invalid schedule time %q: %v", job.ID, scheduleTime, err)
			continue
		}

		jobID := job.ID
		searchURL := job.SearchURL
		entryID, err := s.cron.AddFunc(spec, func() {
			s.runScheduled(ctx, jobID, searchURL)
		})
		if err != nil {
			log.Printf("Job %s: cron registration failed for %q: %v", job.ID, scheduleTime, err)
			continue
		}

		s.entries[entryKey(job.ID, scheduleTime)] = entryID
		log.Printf("Job %s scheduled at %s (%s)", job.ID, scheduleTime, spec)
	}
}

// RemoveJobSchedules drops every cron entry belonging to the job.
func (s *Scheduler) RemoveJobSchedules(jobID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prefix := jobID.String() + ":"
	for key, entryID := range s.entries {
		if strings.HasPrefix(key, prefix) {
			s.cron.Remove(entryID)
			delete(s.entries, key)
		}
	}
}

// RunJobsForTime runs every active scheduled job registered for the given
// time, sequentially. Used by the manual trigger path.
func (s *Scheduler) RunJobsForTime(ctx context.Context, scheduleTime string) error {
	jobs, err := s.jobs.JobsScheduledAt(ctx, scheduleTime)
	if err != nil {
		return fmt.Errorf("list jobs for %s: %w", scheduleTime, err)
	}
	if len(jobs) == 0 {
		log.Printf("No active jobs scheduled at %s", scheduleTime)
		return nil
	}

	for i := range jobs {
		s.runScheduled(ctx, jobs[i].ID, jobs[i].SearchURL)
	}
	return nil
}

func (s *Scheduler) runScheduled(ctx context.Context, jobID uuid.UUID, searchURL string) {
	id := jobID
	_, err := s.runner.Run(ctx, scraper.RunRequest{
		SearchURL:     searchURL,
		JobID:         &id,
		ExecutionType: models.ExecutionTypeScheduled,
	})
	if err != nil {
		log.Printf("Scheduled run error for job %s: %v", jobID, err)
	}
}

func entryKey(jobID uuid.UUID, scheduleTime string) string {
	return jobID.String() + ":" + scheduleTime
}

// timeToCronSpec converts an "HH:MM:SS" wall-clock time into a six-field cron
// spec firing once a day at that time.
func timeToCronSpec(scheduleTime string) (string, error) {
	var h, m, sec int
	if _, err := fmt.Sscanf(scheduleTime, "%d:%d:%d", &h, &m, &sec); err != nil {
		return "", fmt.Errorf("expected HH:MM:SS: %w", err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 || sec < 0 || sec > 59 {
		return "", fmt.Errorf("time %q out of range", scheduleTime)
	}
	return fmt.Sprintf("%d %d %d * * *", sec, m, h), nil
}
