package services

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"suumo_watcher/models"
)

// History is the slice of the store the duplicate filter reads. Passing nil
// executionIDs to KnownPropertyCodes means "across all executions".
type History interface {
	ExecutionIDs(ctx context.Context, jobID *uuid.UUID, scheduledOnly bool, since *time.Time) ([]uuid.UUID, error)
	KnownPropertyCodes(ctx context.Context, executionIDs []uuid.UUID, codes []string) ([]string, error)
}

// FilterOptions selects which prior executions qualify for comparison.
// LookbackDays > 0 restricts to executions within that window; with
// AllScheduledJobs it spans every scheduled job, otherwise JobID scopes it.
// LookbackDays == 0 with a JobID compares against that job's whole history.
type FilterOptions struct {
	JobID            *uuid.UUID
	LookbackDays     int
	AllScheduledJobs bool
}

// DedupeService classifies freshly scraped records as novel or duplicate by
// property code. It only ever narrows the result set: on any storage error it
// reports everything as novel rather than dropping records or failing the run.
type DedupeService struct {
	history History
}

func NewDedupeService(history History) *DedupeService {
	return &DedupeService{history: history}
}

// Filter returns the novel records and the count of duplicates. Records
// without a property code cannot be matched against history and are always
// novel.
func (s *DedupeService) Filter(ctx context.Context, properties []models.Property, opts FilterOptions) ([]models.Property, int) {
	codes := make([]string, 0, len(properties))
	seen := make(map[string]struct{})
	for _, p := range properties {
		if p.PropertyCode == "" {
			continue
		}
		if _, dup := seen[p.PropertyCode]; dup {
			continue
		}
		seen[p.PropertyCode] = struct{}{}
		codes = append(codes, p.PropertyCode)
	}
	if len(codes) == 0 {
		return properties, 0
	}

	executionIDs, constrained, ok := s.qualifyingExecutions(ctx, opts)
	if !ok {
		// No qualifying prior runs: nothing to compare against.
		return properties, 0
	}
	if constrained && len(executionIDs) == 0 {
		return properties, 0
	}

	known, err := s.history.KnownPropertyCodes(ctx, executionIDs, codes)
	if err != nil {
		log.Printf("Dedupe lookup error, treating all records as novel: %v", err)
		return properties, 0
	}

	knownSet := make(map[string]struct{}, len(known))
	for _, code := range known {
		knownSet[code] = struct{}{}
	}

	var fresh []models.Property
	for _, p := range properties {
		if p.PropertyCode == "" {
			fresh = append(fresh, p)
			continue
		}
		if _, dup := knownSet[p.PropertyCode]; !dup {
			fresh = append(fresh, p)
		}
	}
	return fresh, len(properties) - len(fresh)
}

// qualifyingExecutions resolves the prior executions to compare against.
// The cutoff is inclusive: an execution at exactly now minus the lookback
// still qualifies. Returns ok=false when the scope yields no prior runs or
// the lookup failed, in which case the caller treats everything as novel.
func (s *DedupeService) qualifyingExecutions(ctx context.Context, opts FilterOptions) (ids []uuid.UUID, constrained, ok bool) {
	switch {
	case opts.LookbackDays > 0:
		cutoff := time.Now().AddDate(0, 0, -opts.LookbackDays)
		var (
			jobID         *uuid.UUID
			scheduledOnly bool
		)
		if opts.AllScheduledJobs {
			scheduledOnly = true
		} else if opts.JobID != nil {
			jobID = opts.JobID
		} else {
			// Lookback without a scope cannot narrow anything; compare
			// against the full history.
			return nil, false, true
		}

		ids, err := s.history.ExecutionIDs(ctx, jobID, scheduledOnly, &cutoff)
		if err != nil {
			log.Printf("Execution history lookup error, treating all records as novel: %v", err)
			return nil, true, false
		}
		if len(ids) == 0 {
			log.Printf("No qualifying executions in the last %d days", opts.LookbackDays)
			return nil, true, false
		}
		return ids, true, true

	case opts.JobID != nil:
		ids, err := s.history.ExecutionIDs(ctx, opts.JobID, false, nil)
		if err != nil {
			log.Printf("Execution history lookup error, treating all records as novel: %v", err)
			return nil, true, false
		}
		if len(ids) == 0 {
			return nil, true, false
		}
		return ids, true, true

	default:
		return nil, false, true
	}
}
