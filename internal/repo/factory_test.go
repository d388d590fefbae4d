package repo

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"samplewatch/internal/config"
)

func TestFactoryCSVMode(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.DataSource = config.SourceCSV
	cfg.Paths.DataDir = dir

	repos, err := New(cfg)
	require.NoError(t, err)
	defer repos.Close()

	assert.IsType(t, &CSVCustomerRepository{}, repos.Customers)
	assert.IsType(t, &CSVTaskRepository{}, repos.Tasks)
	assert.NoError(t, repos.Close())
}

func TestFactoryCSVModeMissingDataDir(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DataSource = config.SourceCSV
	cfg.Paths.DataDir = filepath.Join(t.TempDir(), "does-not-exist")

	_, err := New(cfg)
	assert.Error(t, err)
}

func TestFactorySQLiteMode(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DataSource = config.SourceSQLite
	cfg.Paths.DatabasePath = filepath.Join(t.TempDir(), "app.db")

	repos, err := New(cfg)
	require.NoError(t, err)
	defer repos.Close()

	assert.IsType(t, &SQLCustomerRepository{}, repos.Customers)
	assert.IsType(t, &SQLMailLogRepository{}, repos.MailLogs)
}

func TestFactoryUnknownSource(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.DataSource = "mssql"

	_, err := New(cfg)
	assert.Error(t, err)
}
