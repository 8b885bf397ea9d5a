package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFrom_Defaults(t *testing.T) {
	v := viper.New()
	v.Set("DATABASE_URL", "postgres://localhost/farmfleet")

	cfg, err := LoadFrom(v)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.AppHost)
	assert.Equal(t, "production", cfg.DefaultDBEnvironment)
	assert.Equal(t, map[string]string{"production": "postgres://localhost/farmfleet"}, cfg.DatabaseURLs)
	assert.Equal(t, 15*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 20, cfg.BatchCreateLimit)
	assert.Equal(t, time.Minute, cfg.BatchCreateWindow)
	assert.Equal(t, "FF", cfg.ShortCodePrefix)
	assert.False(t, cfg.GoogleSheets.Enabled())
	assert.False(t, cfg.Jira.Enabled())
}

func TestLoadFrom_MultipleEnvironments(t *testing.T) {
	v := viper.New()
	v.Set("DATABASE_URLS", "production=postgres://prod/db, Staging=postgres://staging/db")
	v.Set("DATABASE_URL", "postgres://ignored/db")
	v.Set("JIRA_BASE_URL", "https://farm.atlassian.net/")
	v.Set("JIRA_API_TOKEN", "token")
	v.Set("JIRA_SERVICE_DESK_ID", "3")

	cfg, err := LoadFrom(v)
	require.NoError(t, err)

	assert.Equal(t, "postgres://prod/db", cfg.DatabaseURLs["production"])
	assert.Equal(t, "postgres://staging/db", cfg.DatabaseURLs["staging"])
	assert.Equal(t, "https://farm.atlassian.net", cfg.Jira.BaseURL)
	assert.True(t, cfg.Jira.Enabled())
}

func TestLoadFrom_Errors(t *testing.T) {
	_, err := LoadFrom(viper.New())
	assert.Error(t, err)

	v := viper.New()
	v.Set("DATABASE_URLS", "staging")
	_, err = LoadFrom(v)
	assert.Error(t, err)

	v = viper.New()
	v.Set("DATABASE_URLS", "staging=postgres://staging/db")
	_, err = LoadFrom(v)
	assert.ErrorContains(t, err, "default environment")
}
