package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"suumo_watcher/models"
)

// SQLiteStore is the zero-infrastructure store for local and single-box use.
// UUIDs are stored as their string form.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) Close() {
	if err := s.db.Close(); err != nil {
		log.Printf("SQLite close error: %v", err)
	}
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS scraping_jobs (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		search_url TEXT NOT NULL,
		job_type TEXT NOT NULL DEFAULT 'manual',
		schedule_time1 TEXT NOT NULL DEFAULT '',
		schedule_time2 TEXT NOT NULL DEFAULT '',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS scraping_executions (
		id TEXT PRIMARY KEY,
		job_id TEXT REFERENCES scraping_jobs(id) ON DELETE SET NULL,
		status TEXT NOT NULL DEFAULT 'running',
		execution_type TEXT NOT NULL DEFAULT 'manual',
		total_scraped INTEGER NOT NULL DEFAULT 0,
		new_properties INTEGER NOT NULL DEFAULT 0,
		error_message TEXT NOT NULL DEFAULT '',
		executed_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS properties (
		id INTEGER PRIMARY KEY,
		execution_id TEXT NOT NULL REFERENCES scraping_executions(id) ON DELETE CASCADE,
		property_code TEXT NOT NULL DEFAULT '',
		url TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		address TEXT NOT NULL DEFAULT '',
		station_walk TEXT NOT NULL DEFAULT '',
		floor TEXT NOT NULL DEFAULT '',
		rent TEXT NOT NULL DEFAULT '',
		management_fee TEXT NOT NULL DEFAULT '',
		deposit TEXT NOT NULL DEFAULT '',
		key_money TEXT NOT NULL DEFAULT '',
		layout TEXT NOT NULL DEFAULT '',
		area TEXT NOT NULL DEFAULT '',
		property_type TEXT NOT NULL DEFAULT '',
		posted_date TEXT NOT NULL DEFAULT '',
		scraped_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_executions_type_time ON scraping_executions(execution_type, executed_at);
	CREATE INDEX IF NOT EXISTS idx_executions_job ON scraping_executions(job_id, executed_at);
	CREATE INDEX IF NOT EXISTS idx_properties_execution ON properties(execution_id);
	CREATE INDEX IF NOT EXISTS idx_properties_code ON properties(property_code);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// Jobs
// =============================================================================

func (s *SQLiteStore) CreateJob(ctx context.Context, job *models.Job) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scraping_jobs (id, name, search_url, job_type, schedule_time1, schedule_time2, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID.String(), job.Name, job.SearchURL, job.JobType, job.ScheduleTime1, job.ScheduleTime2, job.IsActive, job.CreatedAt)
	return err
}

func (s *SQLiteStore) UpsertJobByName(ctx context.Context, job *models.Job) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scraping_jobs (id, name, search_url, job_type, schedule_time1, schedule_time2, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			search_url = excluded.search_url,
			job_type = excluded.job_type,
			schedule_time1 = excluded.schedule_time1,
			schedule_time2 = excluded.schedule_time2,
			is_active = excluded.is_active`,
		job.ID.String(), job.Name, job.SearchURL, job.JobType, job.ScheduleTime1, job.ScheduleTime2, job.IsActive, job.CreatedAt)
	if err != nil {
		return err
	}

	// The conflict path keeps the existing row id; read it back.
	var idStr string
	if err := s.db.QueryRowContext(ctx, `SELECT id FROM scraping_jobs WHERE name = ?`, job.Name).Scan(&idStr); err != nil {
		return err
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return fmt.Errorf("parse job id: %w", err)
	}
	job.ID = id
	return nil
}

func (s *SQLiteStore) GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, search_url, job_type, schedule_time1, schedule_time2, is_active, created_at
		FROM scraping_jobs WHERE id = ?`, id.String())

	j, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return j, nil
}

func (s *SQLiteStore) ListJobs(ctx context.Context) ([]models.Job, error) {
	return s.queryJobs(ctx, `
		SELECT id, name, search_url, job_type, schedule_time1, schedule_time2, is_active, created_at
		FROM scraping_jobs ORDER BY created_at`)
}

func (s *SQLiteStore) ListActiveScheduledJobs(ctx context.Context) ([]models.Job, error) {
	return s.queryJobs(ctx, `
		SELECT id, name, search_url, job_type, schedule_time1, schedule_time2, is_active, created_at
		FROM scraping_jobs
		WHERE is_active = TRUE AND job_type = 'scheduled'
		ORDER BY created_at`)
}

func (s *SQLiteStore) JobsScheduledAt(ctx context.Context, scheduleTime string) ([]models.Job, error) {
	return s.queryJobs(ctx, `
		SELECT id, name, search_url, job_type, schedule_time1, schedule_time2, is_active, created_at
		FROM scraping_jobs
		WHERE is_active = TRUE AND job_type = 'scheduled'
			AND (schedule_time1 = ? OR schedule_time2 = ?)
		ORDER BY created_at`, scheduleTime, scheduleTime)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*models.Job, error) {
	var j models.Job
	var idStr string
	if err := row.Scan(&idStr, &j.Name, &j.SearchURL, &j.JobType, &j.ScheduleTime1, &j.ScheduleTime2, &j.IsActive, &j.CreatedAt); err != nil {
		return nil, err
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("parse job id: %w", err)
	}
	j.ID = id
	return &j, nil
}

func (s *SQLiteStore) queryJobs(ctx context.Context, query string, args ...interface{}) ([]models.Job, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []models.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *j)
	}
	return jobs, rows.Err()
}

// =============================================================================
// Executions
// =============================================================================

func (s *SQLiteStore) CreateExecution(ctx context.Context, exec *models.Execution) error {
	if exec.ID == uuid.Nil {
		exec.ID = uuid.New()
	}
	if exec.ExecutedAt.IsZero() {
		exec.ExecutedAt = time.Now()
	}

	var jobID interface{}
	if exec.JobID != nil {
		jobID = exec.JobID.String()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scraping_executions (id, job_id, status, execution_type, total_scraped, new_properties, error_message, executed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		exec.ID.String(), jobID, exec.Status, exec.ExecutionType, exec.TotalScraped, exec.NewProperties, exec.ErrorMessage, exec.ExecutedAt)
	return err
}

func (s *SQLiteStore) MarkExecutionCompleted(ctx context.Context, id uuid.UUID, totalScraped, newProperties int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE scraping_executions SET status = ?, total_scraped = ?, new_properties = ?
		WHERE id = ?`,
		models.ExecutionStatusCompleted, totalScraped, newProperties, id.String())
	return err
}

func (s *SQLiteStore) MarkExecutionFailed(ctx context.Context, id uuid.UUID, errorMessage string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE scraping_executions SET status = ?, error_message = ?
		WHERE id = ?`,
		models.ExecutionStatusFailed, errorMessage, id.String())
	return err
}

func (s *SQLiteStore) FailStuckExecutions(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)
	result, err := s.db.ExecContext(ctx, `
		UPDATE scraping_executions
		SET status = ?, error_message = 'execution timed out'
		WHERE status = ? AND executed_at < ?`,
		models.ExecutionStatusFailed, models.ExecutionStatusRunning, cutoff)
	if err != nil {
		return 0, err
	}
	n, err := result.RowsAffected()
	return int(n), err
}

func (s *SQLiteStore) ExecutionIDs(ctx context.Context, jobID *uuid.UUID, scheduledOnly bool, since *time.Time) ([]uuid.UUID, error) {
	query := `SELECT id FROM scraping_executions WHERE 1=1`
	var args []interface{}

	if jobID != nil {
		query += ` AND job_id = ?`
		args = append(args, jobID.String())
	}
	if scheduledOnly {
		query += ` AND execution_type = ?`
		args = append(args, models.ExecutionTypeScheduled)
	}
	if since != nil {
		query += ` AND executed_at >= ?`
		args = append(args, *since)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var idStr string
		if err := rows.Scan(&idStr); err != nil {
			return nil, err
		}
		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, fmt.Errorf("parse execution id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// =============================================================================
// Properties
// =============================================================================

func (s *SQLiteStore) SaveProperties(ctx context.Context, executionID uuid.UUID, properties []models.Property) (int, error) {
	if len(properties) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO properties (
			execution_id, property_code, url, title, address, station_walk, floor,
			rent, management_fee, deposit, key_money, layout, area, property_type,
			posted_date, scraped_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	saved := 0
	for _, p := range properties {
		scrapedAt := p.ScrapedAt
		if scrapedAt.IsZero() {
			scrapedAt = time.Now()
		}
		if _, err := stmt.ExecContext(ctx,
			executionID.String(), p.PropertyCode, p.URL, p.Title, p.Address, p.StationWalk, p.Floor,
			p.Rent, p.ManagementFee, p.Deposit, p.KeyMoney, p.Layout, p.Area, p.PropertyType,
			p.PostedDate, scrapedAt,
		); err != nil {
			return 0, err
		}
		saved++
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return saved, nil
}

func (s *SQLiteStore) ExecutionProperties(ctx context.Context, executionID uuid.UUID) ([]models.Property, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, execution_id, property_code, url, title, address, station_walk, floor,
			rent, management_fee, deposit, key_money, layout, area, property_type,
			posted_date, scraped_at
		FROM properties WHERE execution_id = ? ORDER BY id`, executionID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var props []models.Property
	for rows.Next() {
		var p models.Property
		if err := rows.Scan(
			&p.ID, &p.ExecutionID, &p.PropertyCode, &p.URL, &p.Title, &p.Address, &p.StationWalk, &p.Floor,
			&p.Rent, &p.ManagementFee, &p.Deposit, &p.KeyMoney, &p.Layout, &p.Area, &p.PropertyType,
			&p.PostedDate, &p.ScrapedAt,
		); err != nil {
			return nil, err
		}
		props = append(props, p)
	}
	return props, rows.Err()
}

func (s *SQLiteStore) KnownPropertyCodes(ctx context.Context, executionIDs []uuid.UUID, codes []string) ([]string, error) {
	if len(codes) == 0 {
		return nil, nil
	}

	var args []interface{}
	query := `SELECT DISTINCT property_code FROM properties WHERE property_code IN (` + placeholders(len(codes)) + `)`
	for _, code := range codes {
		args = append(args, code)
	}

	if executionIDs != nil {
		if len(executionIDs) == 0 {
			return nil, nil
		}
		query += ` AND execution_id IN (` + placeholders(len(executionIDs)) + `)`
		for _, id := range executionIDs {
			args = append(args, id.String())
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var known []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		known = append(known, code)
	}
	return known, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
