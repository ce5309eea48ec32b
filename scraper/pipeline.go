package scraper

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"suumo_watcher/config"
	"suumo_watcher/models"
	"suumo_watcher/notify"
	"suumo_watcher/services"
)

// Selector that confirms the search results actually rendered.
const listingMarkerSelector = `.cassetteitem, .property, a[href*="/chintai/jnc"]`

// Store is the persistence surface the pipeline needs. Both the Postgres and
// the SQLite store satisfy it.
type Store interface {
	GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error)
	CreateExecution(ctx context.Context, exec *models.Execution) error
	MarkExecutionCompleted(ctx context.Context, id uuid.UUID, totalScraped, newProperties int) error
	MarkExecutionFailed(ctx context.Context, id uuid.UUID, errorMessage string) error
	SaveProperties(ctx context.Context, executionID uuid.UUID, properties []models.Property) (int, error)
}

// Deduper filters a fresh scrape against prior execution history.
type Deduper interface {
	Filter(ctx context.Context, properties []models.Property, opts services.FilterOptions) ([]models.Property, int)
}

// Notifier delivers a run summary. Delivery is fire-and-forget: the pipeline
// only logs its errors.
type Notifier interface {
	Send(text string) error
}

// Archiver exports a completed run's records to long-term storage.
type Archiver interface {
	ArchiveRun(ctx context.Context, exec *models.Execution, properties []models.Property) error
}

type RunRequest struct {
	SearchURL     string
	JobID         *uuid.UUID
	ExecutionType models.ExecutionType
}

type RunResult struct {
	ExecutionID    uuid.UUID
	Properties     []models.Property
	TotalScraped   int
	DuplicateCount int
}

// Scheduled runs dedupe against this many days of prior scheduled history.
const scheduledLookbackDays = 14

// Pipeline coordinates one scrape invocation end to end: execution record,
// browser session, URL collection, batched extraction, dedupe, persistence
// and notification.
type Pipeline struct {
	cfg      *config.Config
	store    Store
	dedupe   Deduper
	notifier Notifier
	archiver Archiver

	// launch is replaced in tests to avoid a real browser. The returned
	// shutdown func must be safe to call on every exit path.
	launch func() (Session, func(), error)
}

func NewPipeline(cfg *config.Config, store Store, dedupe Deduper) *Pipeline {
	p := &Pipeline{cfg: cfg, store: store, dedupe: dedupe}
	p.launch = func() (Session, func(), error) {
		browser, err := Launch(&cfg.Scraper)
		if err != nil {
			return nil, nil, err
		}
		session, err := browser.NewSession()
		if err != nil {
			browser.Close()
			return nil, nil, err
		}
		return session, browser.Close, nil
	}
	return p
}

func (p *Pipeline) SetNotifier(n Notifier) {
	p.notifier = n
}

func (p *Pipeline) SetArchiver(a Archiver) {
	p.archiver = a
}

// Run executes one scrape. The execution record is persisted with status
// running before any browser work starts, so a hard crash still leaves a
// discoverable trace. It is finalized exactly once: completed with counts, or
// failed with the error message.
func (p *Pipeline) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	if req.SearchURL == "" {
		return nil, errors.New("search url is required")
	}
	if req.ExecutionType == "" {
		req.ExecutionType = models.ExecutionTypeManual
	}

	var job *models.Job
	if req.JobID != nil {
		var err error
		job, err = p.store.GetJob(ctx, *req.JobID)
		if err != nil {
			return nil, fmt.Errorf("load job: %w", err)
		}
		if job == nil {
			return nil, fmt.Errorf("job %s not found", *req.JobID)
		}
	}

	exec := &models.Execution{
		JobID:         req.JobID,
		Status:        models.ExecutionStatusRunning,
		ExecutionType: req.ExecutionType,
		ExecutedAt:    time.Now(),
	}
	if err := p.store.CreateExecution(ctx, exec); err != nil {
		return nil, fmt.Errorf("create execution: %w", err)
	}

	log.Printf("Run %s started (%s): %s", exec.ID, req.ExecutionType, req.SearchURL)

	result, err := p.execute(ctx, req, exec, job)
	if err != nil {
		log.Printf("Run %s failed: %v", exec.ID, err)
		// Don't mask the original failure with a bookkeeping error.
		if uerr := p.store.MarkExecutionFailed(ctx, exec.ID, err.Error()); uerr != nil {
			log.Printf("Run %s: failed to record failure: %v", exec.ID, uerr)
		}
		return nil, err
	}

	log.Printf("Run %s completed: %d scraped, %d new, %d duplicates",
		exec.ID, result.TotalScraped, len(result.Properties), result.DuplicateCount)
	return result, nil
}

func (p *Pipeline) execute(ctx context.Context, req RunRequest, exec *models.Execution, job *models.Job) (*RunResult, error) {
	session, shutdown, err := p.launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	defer shutdown()

	scraped, err := p.scrapeSearch(ctx, session, req.SearchURL)
	if err != nil {
		return nil, err
	}

	newProperties := scraped
	duplicateCount := 0
	if req.ExecutionType == models.ExecutionTypeScheduled && p.dedupe != nil {
		newProperties, duplicateCount = p.dedupe.Filter(ctx, scraped, services.FilterOptions{
			JobID:            req.JobID,
			LookbackDays:     scheduledLookbackDays,
			AllScheduledJobs: true,
		})
		log.Printf("Dedupe: %d new, %d duplicates (last %d days of scheduled runs)",
			len(newProperties), duplicateCount, scheduledLookbackDays)
	}

	if _, err := p.store.SaveProperties(ctx, exec.ID, newProperties); err != nil {
		return nil, fmt.Errorf("save properties: %w", err)
	}
	if err := p.store.MarkExecutionCompleted(ctx, exec.ID, len(scraped), len(newProperties)); err != nil {
		return nil, fmt.Errorf("update execution: %w", err)
	}

	if req.ExecutionType == models.ExecutionTypeScheduled && p.notifier != nil {
		go p.sendNotification(job, req.SearchURL, exec.ID, len(newProperties))
	}

	if p.archiver != nil && len(newProperties) > 0 {
		if err := p.archiver.ArchiveRun(ctx, exec, newProperties); err != nil {
			log.Printf("Run %s: archive error: %v", exec.ID, err)
		}
	}

	return &RunResult{
		ExecutionID:    exec.ID,
		Properties:     newProperties,
		TotalScraped:   len(scraped),
		DuplicateCount: duplicateCount,
	}, nil
}

// scrapeSearch loads the search results page, verifies it is not an error
// page, and runs the batched detail fetch over the collected URLs.
func (p *Pipeline) scrapeSearch(ctx context.Context, session Session, searchURL string) ([]models.Property, error) {
	page, err := session.NewPage()
	if err != nil {
		return nil, fmt.Errorf("open search page: %w", err)
	}
	defer page.Close()

	status, err := page.Goto(searchURL, p.cfg.Scraper.SearchTimeout)
	if err != nil {
		return nil, fmt.Errorf("load search page: %w", err)
	}
	if status >= 400 {
		return nil, fmt.Errorf("search page returned HTTP %d: %s", status, searchURL)
	}

	if err := page.WaitForSelector(listingMarkerSelector, p.cfg.Scraper.SelectorTimeout); err != nil {
		log.Printf("Listing markers not visible yet, continuing: %v", err)
	}
	page.WaitFor(p.cfg.Scraper.SettleWait)

	html, err := page.Content()
	if err != nil {
		return nil, fmt.Errorf("read search page: %w", err)
	}

	title, _ := page.Title()
	if isErrorPage(title, html) {
		return nil, fmt.Errorf("search page not found: %s", searchURL)
	}

	urls := CollectListingURLs(html)

	fetcher := &BatchFetcher{
		MaxItems:  p.cfg.Scraper.MaxItems,
		BatchSize: p.cfg.Scraper.BatchSize,
		Pause:     p.cfg.Scraper.BatchPause,
		Timeout:   p.cfg.Scraper.DetailTimeout,
		Settle:    p.cfg.Scraper.DetailSettle,
	}
	return fetcher.Fetch(ctx, session, urls), nil
}

// isErrorPage flags a not-found page. A "not found" title alone is not enough:
// listings mentioning the phrase would trip it, so the listing markers must
// also be absent.
func isErrorPage(title, html string) bool {
	hasErrorTitle := strings.Contains(title, "見つかりません") ||
		strings.Contains(title, "404") ||
		strings.Contains(title, "Not Found")
	hasListings := strings.Contains(html, "cassetteitem") ||
		strings.Contains(html, "property") ||
		strings.Contains(html, "物件情報")
	return hasErrorTitle && !hasListings
}

func (p *Pipeline) sendNotification(job *models.Job, searchURL string, executionID uuid.UUID, newCount int) {
	jobName := ""
	if job != nil {
		jobName = job.Name
	}
	resultURL := fmt.Sprintf("%s/results/%s", p.cfg.BaseURL, executionID)
	message := notify.BuildRunSummary(jobName, searchURL, resultURL, newCount)
	if err := p.notifier.Send(message); err != nil {
		log.Printf("Notification error for run %s: %v", executionID, err)
		return
	}
	log.Printf("Notification sent for run %s", executionID)
}
