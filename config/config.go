package config

import (
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	SubjectCode string
	BaseURL     string
	CatalogURL  string
	OutputDir   string

	RateLimitMs      int
	RequestTimeoutMs int
	MaxRetries       int
	MaxFetches       int

	CookieFile     string
	BrowserProfile string
	ChromeBin      string
	LoginTimeoutMs int
	Headless       bool

	MirrorDriver     string
	MirrorDSN        string
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	LogLevel string

	// DotEnvLoaded is false when no .env file was found.
	DotEnvLoaded bool
}

// Load reads the .env file, if any, and returns a populated Config struct.
// Variables already set in the environment win over the file.
func Load() *Config {
	loaded := godotenv.Load() == nil

	home, _ := os.UserHomeDir()
	defaultCookies := filepath.Join(home, ".config", "subject-eval-scraper", "cookies.json")

	return &Config{
		SubjectCode: getEnv("SUBJECT_CODE", "2"),
		BaseURL:     getEnv("BASE_URL", "https://eduapps.mit.edu/ose-rpt/"),
		CatalogURL:  getEnv("CATALOG_URL", "http://student.mit.edu/catalog/"),
		OutputDir:   getEnv("OUTPUT_DIR", "./course_csv_data"),

		RateLimitMs:      getEnvInt("RATE_LIMIT_MS", 2000),
		RequestTimeoutMs: getEnvInt("REQUEST_TIMEOUT_MS", 30000),
		MaxRetries:       getEnvInt("MAX_RETRIES", 5),
		MaxFetches:       getEnvInt("MAX_FETCHES", 0),

		CookieFile:     getEnv("COOKIE_FILE", defaultCookies),
		BrowserProfile: getEnv("BROWSER_PROFILE", ""),
		ChromeBin:      getEnv("CHROME_BIN", ""),
		LoginTimeoutMs: getEnvInt("LOGIN_TIMEOUT_MS", 120000),
		Headless:       getEnvBool("BROWSER_HEADLESS", false),

		MirrorDriver:     getEnv("MIRROR_DRIVER", ""),
		MirrorDSN:        getEnv("MIRROR_DSN", ""),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "scraper"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "scraper123"),
		PostgresDB:       getEnv("POSTGRES_DB", "subject_evals"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		LogLevel: getEnv("LOG_LEVEL", "info"),

		DotEnvLoaded: loaded,
	}
}

// Validate checks the settings a scrape cannot run without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.SubjectCode) == "" {
		return eris.New("config: SUBJECT_CODE is required")
	}
	if u, err := url.Parse(c.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return eris.Errorf("config: BASE_URL %q is not an absolute URL", c.BaseURL)
	}
	if c.RateLimitMs < 0 {
		return eris.Errorf("config: RATE_LIMIT_MS must not be negative, got %d", c.RateLimitMs)
	}
	switch c.MirrorDriver {
	case "", "postgres", "sqlite":
	default:
		return eris.Errorf("config: MIRROR_DRIVER must be postgres or sqlite, got %q", c.MirrorDriver)
	}
	return nil
}

// SearchURL is the evaluation search listing every report of the subject.
func (c *Config) SearchURL() string {
	return withSlash(c.BaseURL) + "subjectEvaluationSearch.htm?termId=&departmentId=+++" +
		url.QueryEscape(c.SubjectCode) + "&subjectCode=&instructorName=&search=Search"
}

// CatalogPageURL is the catalog page of the subject, or "" when no catalog
// base is configured.
func (c *Config) CatalogPageURL() string {
	if c.CatalogURL == "" {
		return ""
	}
	return withSlash(c.CatalogURL) + "m" + c.SubjectCode + "a.html"
}

// DSN returns the mirror connection string. For postgres without an
// explicit MIRROR_DSN it is assembled from the POSTGRES_* variables.
func (c *Config) DSN() string {
	if c.MirrorDSN != "" || c.MirrorDriver != "postgres" {
		return c.MirrorDSN
	}
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

func (c *Config) RateLimit() time.Duration {
	return time.Duration(c.RateLimitMs) * time.Millisecond
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMs) * time.Millisecond
}

func (c *Config) LoginTimeout() time.Duration {
	return time.Duration(c.LoginTimeoutMs) * time.Millisecond
}

func withSlash(s string) string {
	if strings.HasSuffix(s, "/") {
		return s
	}
	return s + "/"
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}
