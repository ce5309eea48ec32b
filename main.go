package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"suumo_watcher/config"
	"suumo_watcher/httputil"
	"suumo_watcher/logging"
	"suumo_watcher/models"
	"suumo_watcher/notify"
	"suumo_watcher/scheduler"
	"suumo_watcher/scraper"
	"suumo_watcher/services"
	"suumo_watcher/storage"
	"suumo_watcher/workers"
)

var (
	scrapeURL = flag.String("scrape", "", "Run one manual scrape of the given search URL and exit")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logFile, err := logging.Setup("daemon.log", cfg.LogMaxSize)
	if err != nil {
		log.Printf("Warning: could not set up file logging: %v", err)
	} else {
		defer logFile.Close()
	}

	log.Println("Starting suumo_watcher...")

	ctx := context.Background()

	store, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	dedupe := services.NewDedupeService(store)
	pipeline := scraper.NewPipeline(cfg, store, dedupe)

	clients := httputil.NewClients()
	if cfg.Line.ChannelAccessToken != "" {
		pipeline.SetNotifier(notify.NewLineClient(
			cfg.Line.ChannelAccessToken, cfg.Line.UserID, cfg.Line.UseBroadcast, clients.API))
		log.Println("LINE notifications enabled")
	} else {
		log.Println("LINE notifications disabled (no channel access token)")
	}

	if cfg.ArchiveEnabled() {
		archiver, err := storage.NewS3Archiver(ctx, storage.S3Config{
			Bucket:          cfg.Archive.Bucket,
			Region:          cfg.Archive.Region,
			Endpoint:        cfg.Archive.Endpoint,
			AccessKeyID:     cfg.Archive.AccessKeyID,
			SecretAccessKey: cfg.Archive.SecretAccessKey,
		})
		if err != nil {
			log.Fatalf("Failed to set up S3 archiver: %v", err)
		}
		pipeline.SetArchiver(archiver)
		log.Printf("Run archiving enabled: s3://%s", cfg.Archive.Bucket)
	}

	// One-shot manual mode: no dedupe against history, no notification.
	if *scrapeURL != "" {
		result, err := pipeline.Run(ctx, scraper.RunRequest{
			SearchURL:     *scrapeURL,
			ExecutionType: models.ExecutionTypeManual,
		})
		if err != nil {
			log.Fatalf("Scrape failed: %v", err)
		}
		log.Printf("Scrape complete: %d records (execution %s)", result.TotalScraped, result.ExecutionID)
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	seedJobs(ctx, cfg, store)

	if jobs, err := store.ListJobs(ctx); err != nil {
		log.Printf("List jobs error: %v", err)
	} else {
		log.Printf("%d job(s) in database", len(jobs))
		for _, job := range jobs {
			log.Printf("  %s: active=%t times=%s/%s", job.Name, job.IsActive, job.ScheduleTime1, job.ScheduleTime2)
		}
	}

	sched := scheduler.New(pipeline, store)
	if err := sched.Bootstrap(ctx); err != nil {
		log.Fatalf("Failed to bootstrap scheduler: %v", err)
	}
	sched.Start()

	janitor := workers.NewJanitor(store, cfg.Janitor.StuckAfter)
	go janitor.Run(ctx, cfg.Janitor.CheckInterval)

	log.Println("Daemon running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	sched.Stop()
	log.Println("Goodbye!")
}

func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	if cfg.DatabaseURL != "" {
		store, err := storage.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		log.Println("Connected to Postgres")
		return store, nil
	}

	store, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	log.Printf("SQLite database: %s", cfg.DBPath)
	return store, nil
}

// seedJobs upserts job definitions from config/jobs/*.yaml so a fresh
// database comes up with schedules. Seed errors are logged, not fatal.
func seedJobs(ctx context.Context, cfg *config.Config, store storage.Store) {
	for _, seed := range cfg.SeedJobs {
		jobType := models.JobType(seed.JobType)
		if jobType == "" {
			jobType = models.JobTypeScheduled
		}
		isActive := true
		if seed.IsActive != nil {
			isActive = *seed.IsActive
		}

		job := &models.Job{
			Name:          seed.Name,
			SearchURL:     seed.SearchURL,
			JobType:       jobType,
			ScheduleTime1: seed.ScheduleTime1,
			ScheduleTime2: seed.ScheduleTime2,
			IsActive:      isActive,
		}
		if err := store.UpsertJobByName(ctx, job); err != nil {
			log.Printf("Seed job %q error: %v", seed.Name, err)
			continue
		}
		log.Printf("Seed job %q ready (%s)", job.Name, job.ID)
	}
}
