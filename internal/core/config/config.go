package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type GoogleSheetsConfig struct {
	CredentialsJSON       string
	ManifestSpreadsheetID string
	ManifestRange         string
}

func (g GoogleSheetsConfig) Enabled() bool {
	return g.CredentialsJSON != "" && g.ManifestSpreadsheetID != ""
}

type JiraConfig struct {
	BaseURL       string
	Email         string
	Token         string
	ServiceDeskID string
	RequestTypeID string
}

func (j JiraConfig) Enabled() bool {
	return j.BaseURL != "" && j.Token != "" && j.ServiceDeskID != ""
}

type Config struct {
	AppHost              string
	AppEnv               string
	DatabaseURLs         map[string]string
	DefaultDBEnvironment string
	JWTSecret            string
	MigrationsDir        string
	RequestTimeout       time.Duration
	BatchCreateLimit     int
	BatchCreateWindow    time.Duration
	ShortCodePrefix      string
	GoogleSheets         GoogleSheetsConfig
	Jira                 JiraConfig
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// Load reads .env (without overriding the process environment) and then
// the environment itself.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	return LoadFrom(v)
}

func LoadFrom(v *viper.Viper) (*Config, error) {
	v.SetDefault("APP_HOST", ":8080")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("DEFAULT_DB_ENVIRONMENT", "production")
	v.SetDefault("MIGRATIONS_DIR", "./migrations")
	v.SetDefault("REQUEST_TIMEOUT", "15s")
	v.SetDefault("BATCH_CREATE_LIMIT", 20)
	v.SetDefault("BATCH_CREATE_WINDOW", "1m")
	v.SetDefault("SHORT_CODE_PREFIX", "FF")
	v.SetDefault("GOOGLE_SHEETS_MANIFEST_RANGE", "Manifest!A1")

	cfg := &Config{
		AppHost:              v.GetString("APP_HOST"),
		AppEnv:               strings.ToLower(v.GetString("APP_ENV")),
		DefaultDBEnvironment: strings.ToLower(v.GetString("DEFAULT_DB_ENVIRONMENT")),
		JWTSecret:            v.GetString("JWT_SECRET"),
		MigrationsDir:        v.GetString("MIGRATIONS_DIR"),
		RequestTimeout:       v.GetDuration("REQUEST_TIMEOUT"),
		BatchCreateLimit:     v.GetInt("BATCH_CREATE_LIMIT"),
		BatchCreateWindow:    v.GetDuration("BATCH_CREATE_WINDOW"),
		ShortCodePrefix:      v.GetString("SHORT_CODE_PREFIX"),
		GoogleSheets: GoogleSheetsConfig{
			CredentialsJSON:       v.GetString("GOOGLE_SHEETS_CREDENTIALS_JSON"),
			ManifestSpreadsheetID: v.GetString("GOOGLE_SHEETS_MANIFEST_SPREADSHEET_ID"),
			ManifestRange:         v.GetString("GOOGLE_SHEETS_MANIFEST_RANGE"),
		},
		Jira: JiraConfig{
			BaseURL:       strings.TrimRight(v.GetString("JIRA_BASE_URL"), "/"),
			Email:         v.GetString("JIRA_EMAIL"),
			Token:         v.GetString("JIRA_API_TOKEN"),
			ServiceDeskID: v.GetString("JIRA_SERVICE_DESK_ID"),
			RequestTypeID: v.GetString("JIRA_REQUEST_TYPE_ID"),
		},
	}

	urls, err := parseDatabaseURLs(v.GetString("DATABASE_URLS"))
	if err != nil {
		return nil, err
	}
	if dsn := v.GetString("DATABASE_URL"); dsn != "" {
		if _, ok := urls[cfg.DefaultDBEnvironment]; !ok {
			urls[cfg.DefaultDBEnvironment] = dsn
		}
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("DATABASE_URL or DATABASE_URLS environment variable is not set")
	}
	if _, ok := urls[cfg.DefaultDBEnvironment]; !ok {
		return nil, fmt.Errorf("no database configured for default environment %q", cfg.DefaultDBEnvironment)
	}
	cfg.DatabaseURLs = urls

	if cfg.BatchCreateLimit <= 0 {
		return nil, fmt.Errorf("BATCH_CREATE_LIMIT must be positive, got %d", cfg.BatchCreateLimit)
	}

	return cfg, nil
}

// parseDatabaseURLs reads "env=dsn,env=dsn".
func parseDatabaseURLs(raw string) (map[string]string, error) {
	urls := make(map[string]string)
	if strings.TrimSpace(raw) == "" {
		return urls, nil
	}

	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		env, dsn, ok := strings.Cut(pair, "=")
		env = strings.ToLower(strings.TrimSpace(env))
		if !ok || env == "" || strings.TrimSpace(dsn) == "" {
			return nil, fmt.Errorf("invalid DATABASE_URLS entry %q, expected env=dsn", pair)
		}
		urls[env] = strings.TrimSpace(dsn)
	}
	return urls, nil
}
