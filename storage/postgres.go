package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"suumo_watcher/models"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	store := &PostgresStore{pool: pool}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return store, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Pool() *pgxpool.Pool {
	return s.pool
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS scraping_jobs (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		search_url TEXT NOT NULL,
		job_type TEXT NOT NULL DEFAULT 'manual',
		schedule_time1 TEXT NOT NULL DEFAULT '',
		schedule_time2 TEXT NOT NULL DEFAULT '',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS scraping_executions (
		id UUID PRIMARY KEY,
		job_id UUID REFERENCES scraping_jobs(id) ON DELETE SET NULL,
		status TEXT NOT NULL DEFAULT 'running',
		execution_type TEXT NOT NULL DEFAULT 'manual',
		total_scraped INTEGER NOT NULL DEFAULT 0,
		new_properties INTEGER NOT NULL DEFAULT 0,
		error_message TEXT NOT NULL DEFAULT '',
		executed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS properties (
		id BIGSERIAL PRIMARY KEY,
		execution_id UUID NOT NULL REFERENCES scraping_executions(id) ON DELETE CASCADE,
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
		scraped_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_executions_type_time ON scraping_executions(execution_type, executed_at);
	CREATE INDEX IF NOT EXISTS idx_executions_job ON scraping_executions(job_id, executed_at);
	CREATE INDEX IF NOT EXISTS idx_properties_execution ON properties(execution_id);
	CREATE INDEX IF NOT EXISTS idx_properties_code ON properties(property_code);
	`
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// =============================================================================
// Jobs
// =============================================================================

func (s *PostgresStore) CreateJob(ctx context.Context, job *models.Job) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO scraping_jobs (id, name, search_url, job_type, schedule_time1, schedule_time2, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.pool.Exec(ctx, query,
		job.ID, job.Name, job.SearchURL, job.JobType, job.ScheduleTime1, job.ScheduleTime2, job.IsActive, job.CreatedAt,
	)
	return err
}

func (s *PostgresStore) UpsertJobByName(ctx context.Context, job *models.Job) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO scraping_jobs (id, name, search_url, job_type, schedule_time1, schedule_time2, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (name) DO UPDATE SET
			search_url = EXCLUDED.search_url,
			job_type = EXCLUDED.job_type,
			schedule_time1 = EXCLUDED.schedule_time1,
			schedule_time2 = EXCLUDED.schedule_time2,
			is_active = EXCLUDED.is_active
		RETURNING id`

	return s.pool.QueryRow(ctx, query,
		job.ID, job.Name, job.SearchURL, job.JobType, job.ScheduleTime1, job.ScheduleTime2, job.IsActive, job.CreatedAt,
	).Scan(&job.ID)
}

func (s *PostgresStore) GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	query := `
		SELECT id, name, search_url, job_type, schedule_time1, schedule_time2, is_active, created_at
		FROM scraping_jobs WHERE id = $1`

	var j models.Job
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&j.ID, &j.Name, &j.SearchURL, &j.JobType, &j.ScheduleTime1, &j.ScheduleTime2, &j.IsActive, &j.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func (s *PostgresStore) ListJobs(ctx context.Context) ([]models.Job, error) {
	query := `
		SELECT id, name, search_url, job_type, schedule_time1, schedule_time2, is_active, created_at
		FROM scraping_jobs ORDER BY created_at`

	return s.queryJobs(ctx, query)
}

func (s *PostgresStore) ListActiveScheduledJobs(ctx context.Context) ([]models.Job, error) {
	query := `
		SELECT id, name, search_url, job_type, schedule_time1, schedule_time2, is_active, created_at
		FROM scraping_jobs
		WHERE is_active = TRUE AND job_type = 'scheduled'
		ORDER BY created_at`

	return s.queryJobs(ctx, query)
}

func (s *PostgresStore) JobsScheduledAt(ctx context.Context, scheduleTime string) ([]models.Job, error) {
	query := `
		SELECT id, name, search_url, job_type, schedule_time1, schedule_time2, is_active, created_at
		FROM scraping_jobs
		WHERE is_active = TRUE AND job_type = 'scheduled'
			AND (schedule_time1 = $1 OR schedule_time2 = $1)
		ORDER BY created_at`

	return s.queryJobs(ctx, query, scheduleTime)
}

func (s *PostgresStore) queryJobs(ctx context.Context, query string, args ...interface{}) ([]models.Job, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []models.Job
	for rows.Next() {
		var j models.Job
		if err := rows.Scan(
			&j.ID, &j.Name, &j.SearchURL, &j.JobType, &j.ScheduleTime1, &j.ScheduleTime2, &j.IsActive, &j.CreatedAt,
		); err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// =============================================================================
// Executions
// =============================================================================

func (s *PostgresStore) CreateExecution(ctx context.Context, exec *models.Execution) error {
	if exec.ID == uuid.Nil {
		exec.ID = uuid.New()
	}
	if exec.ExecutedAt.IsZero() {
		exec.ExecutedAt = time.Now()
	}

	query := `
		INSERT INTO scraping_executions (id, job_id, status, execution_type, total_scraped, new_properties, error_message, executed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.pool.Exec(ctx, query,
		exec.ID, exec.JobID, exec.Status, exec.ExecutionType, exec.TotalScraped, exec.NewProperties, exec.ErrorMessage, exec.ExecutedAt,
	)
	return err
}

func (s *PostgresStore) MarkExecutionCompleted(ctx context.Context, id uuid.UUID, totalScraped, newProperties int) error {
	query := `
		UPDATE scraping_executions
		SET status = $2, total_scraped = $3, new_properties = $4
		WHERE id = $1`

	_, err := s.pool.Exec(ctx, query, id, models.ExecutionStatusCompleted, totalScraped, newProperties)
	return err
}

func (s *PostgresStore) MarkExecutionFailed(ctx context.Context, id uuid.UUID, errorMessage string) error {
	query := `
		UPDATE scraping_executions
		SET status = $2, error_message = $3
		WHERE id = $1`

	_, err := s.pool.Exec(ctx, query, id, models.ExecutionStatusFailed, errorMessage)
	return err
}

// FailStuckExecutions marks runs still reported as running past the given age
// as failed. A crashed process cannot finalize its own execution record.
func (s *PostgresStore) FailStuckExecutions(ctx context.Context, olderThan time.Duration) (int, error) {
	query := `
		UPDATE scraping_executions
		SET status = $1, error_message = 'execution timed out'
		WHERE status = $2 AND executed_at < $3`

	cutoff := time.Now().Add(-olderThan)
	tag, err := s.pool.Exec(ctx, query, models.ExecutionStatusFailed, models.ExecutionStatusRunning, cutoff)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// ExecutionIDs returns prior execution ids, optionally scoped to a job, to
// scheduled runs only, and to a window starting at since (inclusive).
func (s *PostgresStore) ExecutionIDs(ctx context.Context, jobID *uuid.UUID, scheduledOnly bool, since *time.Time) ([]uuid.UUID, error) {
	query := `SELECT id FROM scraping_executions WHERE 1=1`
	var args []interface{}

	if jobID != nil {
		args = append(args, *jobID)
		query += fmt.Sprintf(" AND job_id = $%d", len(args))
	}
	if scheduledOnly {
		args = append(args, models.ExecutionTypeScheduled)
		query += fmt.Sprintf(" AND execution_type = $%d", len(args))
	}
	if since != nil {
		args = append(args, *since)
		query += fmt.Sprintf(" AND executed_at >= $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// =============================================================================
// Properties
// =============================================================================

func (s *PostgresStore) SaveProperties(ctx context.Context, executionID uuid.UUID, properties []models.Property) (int, error) {
	if len(properties) == 0 {
		return 0, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO properties (
			execution_id, property_code, url, title, address, station_walk, floor,
			rent, management_fee, deposit, key_money, layout, area, property_type,
			posted_date, scraped_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	saved := 0
	for _, p := range properties {
		scrapedAt := p.ScrapedAt
		if scrapedAt.IsZero() {
			scrapedAt = time.Now()
		}
		if _, err := tx.Exec(ctx, query,
			executionID, p.PropertyCode, p.URL, p.Title, p.Address, p.StationWalk, p.Floor,
			p.Rent, p.ManagementFee, p.Deposit, p.KeyMoney, p.Layout, p.Area, p.PropertyType,
			p.PostedDate, scrapedAt,
		); err != nil {
			return 0, err
		}
		saved++
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return saved, nil
}

func (s *PostgresStore) ExecutionProperties(ctx context.Context, executionID uuid.UUID) ([]models.Property, error) {
	query := `
		SELECT id, execution_id, property_code, url, title, address, station_walk, floor,
			rent, management_fee, deposit, key_money, layout, area, property_type,
			posted_date, scraped_at
		FROM properties WHERE execution_id = $1 ORDER BY id`

	rows, err := s.pool.Query(ctx, query, executionID)
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

// KnownPropertyCodes returns the subset of codes already stored under the
// given executions. A nil executionIDs slice searches the whole table.
func (s *PostgresStore) KnownPropertyCodes(ctx context.Context, executionIDs []uuid.UUID, codes []string) ([]string, error) {
	if len(codes) == 0 {
		return nil, nil
	}

	query := `SELECT DISTINCT property_code FROM properties WHERE property_code = ANY($1)`
	args := []interface{}{codes}

	if executionIDs != nil {
		query += ` AND execution_id = ANY($2)`
		args = append(args, executionIDs)
	}

	rows, err := s.pool.Query(ctx, query, args...)
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
