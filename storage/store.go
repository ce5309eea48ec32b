package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"suumo_watcher/models"
)

// Store is the full persistence surface. PostgresStore serves deployments
// with a DATABASE_URL; SQLiteStore covers local and single-box use. Consumers
// (pipeline, scheduler, dedupe, janitor) each declare the narrow subset they
// need and both implementations satisfy all of them.
type Store interface {
	CreateJob(ctx context.Context, job *models.Job) error
	UpsertJobByName(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error)
	ListJobs(ctx context.Context) ([]models.Job, error)
	ListActiveScheduledJobs(ctx context.Context) ([]models.Job, error)
	JobsScheduledAt(ctx context.Context, scheduleTime string) ([]models.Job, error)

	CreateExecution(ctx context.Context, exec *models.Execution) error
	MarkExecutionCompleted(ctx context.Context, id uuid.UUID, totalScraped, newProperties int) error
	MarkExecutionFailed(ctx context.Context, id uuid.UUID, errorMessage string) error
	FailStuckExecutions(ctx context.Context, olderThan time.Duration) (int, error)
	ExecutionIDs(ctx context.Context, jobID *uuid.UUID, scheduledOnly bool, since *time.Time) ([]uuid.UUID, error)

	SaveProperties(ctx context.Context, executionID uuid.UUID, properties []models.Property) (int, error)
	ExecutionProperties(ctx context.Context, executionID uuid.UUID) ([]models.Property, error)
	KnownPropertyCodes(ctx context.Context, executionIDs []uuid.UUID, codes []string) ([]string, error)

	Close()
}
