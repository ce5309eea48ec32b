package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"suumo_watcher/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(store.Close)
	return store
}

func TestSQLiteStore_JobLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job := &models.Job{
		Name:          "目黒1LDK",
		SearchURL:     "https://suumo.jp/jj/chintai/ichiran/FR301FC001/?ar=030",
		JobType:       models.JobTypeScheduled,
		ScheduleTime1: "09:00:00",
		ScheduleTime2: "21:00:00",
		IsActive:      true,
	}
	if err := store.UpsertJobByName(ctx, job); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	firstID := job.ID

	// Upserting the same name again updates in place and keeps the id.
	job2 := &models.Job{
		Name:          "目黒1LDK",
		SearchURL:     "https://suumo.jp/jj/chintai/ichiran/FR301FC001/?ar=030&ct=15.0",
		JobType:       models.JobTypeScheduled,
		ScheduleTime1: "08:00:00",
		IsActive:      true,
	}
	if err := store.UpsertJobByName(ctx, job2); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if job2.ID != firstID {
		t.Fatalf("upsert must keep the existing id: %s vs %s", job2.ID, firstID)
	}

	got, err := store.GetJob(ctx, firstID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatal("expected the job back")
	}
	if got.ScheduleTime1 != "08:00:00" {
		t.Fatalf("upsert did not update the schedule, got %q", got.ScheduleTime1)
	}

	if missing, err := store.GetJob(ctx, uuid.New()); err != nil || missing != nil {
		t.Fatalf("unknown id should yield nil, nil; got %v, %v", missing, err)
	}

	all, err := store.ListJobs(ctx)
	if err != nil {
		t.Fatalf("list jobs: %v", err)
	}
	if len(all) != 1 || all[0].ID != firstID {
		t.Fatalf("expected the single upserted job, got %v", all)
	}

	scheduled, err := store.JobsScheduledAt(ctx, "08:00:00")
	if err != nil {
		t.Fatalf("jobs scheduled at: %v", err)
	}
	if len(scheduled) != 1 {
		t.Fatalf("expected 1 job at 08:00:00, got %d", len(scheduled))
	}
	if none, err := store.JobsScheduledAt(ctx, "09:00:00"); err != nil || len(none) != 0 {
		t.Fatalf("stale schedule time must not match, got %d jobs (%v)", len(none), err)
	}
}

func TestSQLiteStore_ExecutionAndProperties(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	exec := &models.Execution{
		Status:        models.ExecutionStatusRunning,
		ExecutionType: models.ExecutionTypeScheduled,
	}
	if err := store.CreateExecution(ctx, exec); err != nil {
		t.Fatalf("create execution: %v", err)
	}

	props := []models.Property{
		{URL: "https://suumo.jp/chintai/jnc_000011111111/", Title: "物件A", PropertyCode: "a", Rent: "8万円"},
		{URL: "https://suumo.jp/chintai/jnc_000022222222/", Title: "物件B", PropertyCode: "b", Rent: "9万円"},
		{URL: "https://suumo.jp/chintai/jnc_000033333333/", Title: "物件C", Rent: "10万円"},
	}
	saved, err := store.SaveProperties(ctx, exec.ID, props)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if saved != 3 {
		t.Fatalf("expected 3 saved, got %d", saved)
	}

	stored, err := store.ExecutionProperties(ctx, exec.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(stored) != 3 {
		t.Fatalf("expected 3 records, got %d", len(stored))
	}
	if stored[0].Title != "物件A" || stored[0].Rent != "8万円" {
		t.Fatalf("unexpected first record %+v", stored[0])
	}

	if err := store.MarkExecutionCompleted(ctx, exec.ID, 3, 3); err != nil {
		t.Fatalf("complete: %v", err)
	}

	known, err := store.KnownPropertyCodes(ctx, []uuid.UUID{exec.ID}, []string{"a", "b", "z"})
	if err != nil {
		t.Fatalf("known codes: %v", err)
	}
	if len(known) != 2 {
		t.Fatalf("expected 2 known codes, got %v", known)
	}

	// Scoping to a different execution finds nothing.
	if known, err = store.KnownPropertyCodes(ctx, []uuid.UUID{uuid.New()}, []string{"a"}); err != nil || len(known) != 0 {
		t.Fatalf("foreign execution scope should be empty, got %v (%v)", known, err)
	}
}

func TestSQLiteStore_ExecutionIDScopes(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job := &models.Job{Name: "j", SearchURL: "https://suumo.jp/", JobType: models.JobTypeScheduled, IsActive: true}
	if err := store.CreateJob(ctx, job); err != nil {
		t.Fatalf("create job: %v", err)
	}

	old := &models.Execution{
		JobID:         &job.ID,
		Status:        models.ExecutionStatusCompleted,
		ExecutionType: models.ExecutionTypeScheduled,
		ExecutedAt:    time.Now().AddDate(0, 0, -30),
	}
	recent := &models.Execution{
		JobID:         &job.ID,
		Status:        models.ExecutionStatusCompleted,
		ExecutionType: models.ExecutionTypeScheduled,
	}
	manual := &models.Execution{
		Status:        models.ExecutionStatusCompleted,
		ExecutionType: models.ExecutionTypeManual,
	}
	for _, e := range []*models.Execution{old, recent, manual} {
		if err := store.CreateExecution(ctx, e); err != nil {
			t.Fatalf("create execution: %v", err)
		}
	}

	cutoff := time.Now().AddDate(0, 0, -14)
	ids, err := store.ExecutionIDs(ctx, nil, true, &cutoff)
	if err != nil {
		t.Fatalf("execution ids: %v", err)
	}
	if len(ids) != 1 || ids[0] != recent.ID {
		t.Fatalf("expected only the recent scheduled execution, got %v", ids)
	}

	ids, err = store.ExecutionIDs(ctx, &job.ID, false, nil)
	if err != nil {
		t.Fatalf("execution ids by job: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected both of the job's executions, got %v", ids)
	}
}

func TestSQLiteStore_LookbackCutoffIsInclusive(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	cutoff := time.Now().AddDate(0, 0, -14).Truncate(time.Second)

	justOutside := &models.Execution{
		Status:        models.ExecutionStatusCompleted,
		ExecutionType: models.ExecutionTypeScheduled,
		ExecutedAt:    cutoff.Add(-time.Second),
	}
	atCutoff := &models.Execution{
		Status:        models.ExecutionStatusCompleted,
		ExecutionType: models.ExecutionTypeScheduled,
		ExecutedAt:    cutoff,
	}
	justInside := &models.Execution{
		Status:        models.ExecutionStatusCompleted,
		ExecutionType: models.ExecutionTypeScheduled,
		ExecutedAt:    cutoff.Add(time.Second),
	}
	for _, e := range []*models.Execution{justOutside, atCutoff, justInside} {
		if err := store.CreateExecution(ctx, e); err != nil {
			t.Fatalf("create execution: %v", err)
		}
	}

	ids, err := store.ExecutionIDs(ctx, nil, true, &cutoff)
	if err != nil {
		t.Fatalf("execution ids: %v", err)
	}

	got := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		got[id] = true
	}
	if got[justOutside.ID] {
		t.Fatal("execution one second before the cutoff must be excluded")
	}
	if !got[atCutoff.ID] {
		t.Fatal("execution exactly at the cutoff must be included")
	}
	if !got[justInside.ID] {
		t.Fatal("execution one second after the cutoff must be included")
	}
	if len(ids) != 2 {
		t.Fatalf("expected exactly 2 executions in the window, got %v", ids)
	}
}

func TestSQLiteStore_FailStuckExecutions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	stuck := &models.Execution{
		Status:        models.ExecutionStatusRunning,
		ExecutionType: models.ExecutionTypeScheduled,
		ExecutedAt:    time.Now().Add(-3 * time.Hour),
	}
	fresh := &models.Execution{
		Status:        models.ExecutionStatusRunning,
		ExecutionType: models.ExecutionTypeScheduled,
	}
	for _, e := range []*models.Execution{stuck, fresh} {
		if err := store.CreateExecution(ctx, e); err != nil {
			t.Fatalf("create execution: %v", err)
		}
	}

	n, err := store.FailStuckExecutions(ctx, 2*time.Hour)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 stuck execution, got %d", n)
	}

	// The fresh run must still count as running, so a second sweep is a no-op.
	if n, err = store.FailStuckExecutions(ctx, 2*time.Hour); err != nil || n != 0 {
		t.Fatalf("second sweep should be a no-op, got %d (%v)", n, err)
	}
}
