package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"suumo_watcher/logging"
)

type Config struct {
	DatabaseURL string
	DBPath      string
	BaseURL     string
	LogLevel    string
	LogMaxSize  int64

	Scraper ScraperConfig
	Line    LineConfig
	Archive ArchiveConfig
	Janitor JanitorConfig

	SeedJobs []SeedJob
}

type ScraperConfig struct {
	UserAgent       string
	MaxItems        int
	BatchSize       int
	BatchPause      time.Duration
	SearchTimeout   time.Duration
	DetailTimeout   time.Duration
	SelectorTimeout time.Duration
	SettleWait      time.Duration
	DetailSettle    time.Duration
}

type LineConfig struct {
	ChannelAccessToken string
	UserID             string
	UseBroadcast       bool
}

type ArchiveConfig struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

type JanitorConfig struct {
	StuckAfter    time.Duration
	CheckInterval time.Duration
}

// SeedJob is a job definition loaded from config/jobs/*.yaml. Seeds are
// upserted by name on startup so a fresh database comes up with schedules.
type SeedJob struct {
	Name          string `yaml:"name"`
	SearchURL     string `yaml:"search_url"`
	JobType       string `yaml:"job_type"`
	ScheduleTime1 string `yaml:"schedule_time1"`
	ScheduleTime2 string `yaml:"schedule_time2"`
	IsActive      *bool  `yaml:"is_active"`
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		DBPath:      getEnv("DB_PATH", "watcher.db"),
		BaseURL:     getEnv("BASE_URL", "http://localhost:3000"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogMaxSize:  int64(getEnvInt("LOG_MAX_SIZE", logging.DefaultMaxSize)),
		Scraper: ScraperConfig{
			UserAgent:       getEnv("SCRAPE_USER_AGENT", defaultUserAgent),
			MaxItems:        getEnvInt("SCRAPE_MAX_ITEMS", 50),
			BatchSize:       getEnvInt("SCRAPE_BATCH_SIZE", 10),
			BatchPause:      getEnvDuration("SCRAPE_BATCH_PAUSE", 500*time.Millisecond),
			SearchTimeout:   getEnvDuration("SCRAPE_SEARCH_TIMEOUT", 60*time.Second),
			DetailTimeout:   getEnvDuration("SCRAPE_DETAIL_TIMEOUT", 30*time.Second),
			SelectorTimeout: getEnvDuration("SCRAPE_SELECTOR_TIMEOUT", 15*time.Second),
			SettleWait:      getEnvDuration("SCRAPE_SETTLE_WAIT", 5*time.Second),
			DetailSettle:    getEnvDuration("SCRAPE_DETAIL_SETTLE", 1500*time.Millisecond),
		},
		Line: LineConfig{
			ChannelAccessToken: os.Getenv("LINE_CHANNEL_ACCESS_TOKEN"),
			UserID:             os.Getenv("LINE_USER_ID"),
			UseBroadcast:       getEnv("LINE_USE_BROADCAST", "true") == "true",
		},
		Archive: ArchiveConfig{
			Bucket:          os.Getenv("ARCHIVE_S3_BUCKET"),
			Region:          getEnv("ARCHIVE_S3_REGION", "ap-northeast-1"),
			Endpoint:        os.Getenv("ARCHIVE_S3_ENDPOINT"),
			AccessKeyID:     os.Getenv("ARCHIVE_S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("ARCHIVE_S3_SECRET_ACCESS_KEY"),
		},
		Janitor: JanitorConfig{
			StuckAfter:    getEnvDuration("JANITOR_STUCK_AFTER", 2*time.Hour),
			CheckInterval: getEnvDuration("JANITOR_CHECK_INTERVAL", 15*time.Minute),
		},
	}

	if err := cfg.loadSeedJobs(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadSeedJobs() error {
	jobsDir := "config/jobs"
	entries, err := os.ReadDir(jobsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}

		data, err := os.ReadFile(filepath.Join(jobsDir, entry.Name()))
		if err != nil {
			return err
		}

		var seed SeedJob
		if err := yaml.Unmarshal(data, &seed); err != nil {
			return err
		}
		if seed.Name == "" || seed.SearchURL == "" {
			continue
		}
		c.SeedJobs = append(c.SeedJobs, seed)
	}

	return nil
}

// ArchiveEnabled reports whether completed runs should be exported to S3.
func (c *Config) ArchiveEnabled() bool {
	return c.Archive.Bucket != ""
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
