package models

import (
	"time"

	"github.com/google/uuid"
)

type ExecutionStatus string

const (
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
)

type ExecutionType string

const (
	ExecutionTypeManual    ExecutionType = "manual"
	ExecutionTypeScheduled ExecutionType = "scheduled"
)

// Execution is one invocation of the scrape pipeline. It is created with
// status running before any browser work starts and finalized exactly once.
type Execution struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	JobID         *uuid.UUID      `json:"job_id" db:"job_id"`
	Status        ExecutionStatus `json:"status" db:"status"`
	ExecutionType ExecutionType   `json:"execution_type" db:"execution_type"`
	TotalScraped  int             `json:"total_scraped" db:"total_scraped"`
	NewProperties int             `json:"new_properties" db:"new_properties"`
	ErrorMessage  string          `json:"error_message" db:"error_message"`
	ExecutedAt    time.Time       `json:"executed_at" db:"executed_at"`
}
