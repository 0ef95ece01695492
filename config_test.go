package terreno

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingsValidateDefaults(t *testing.T) {
	s := &Settings{Database: DBSettings{URL: "mongodb://localhost:27017", DB: "app"}}
	require.NoError(t, s.Validate())
	assert.Equal(t, 30*time.Second, s.Database.WriteTimeout)
	assert.Equal(t, DefaultPageLimit, s.API.DefaultLimit)
	assert.Equal(t, MaxPageLimit, s.API.MaxLimit)
}

func TestSettingsValidateRequiredFields(t *testing.T) {
	s := &Settings{}
	err := s.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database url")

	s.Database.URL = "mongodb://localhost:27017"
	err = s.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database name")
}

func TestSettingsValidateLimitOrdering(t *testing.T) {
	s := &Settings{
		Database: DBSettings{URL: "mongodb://localhost:27017", DB: "app"},
		API:      APISettings{DefaultLimit: 200, MaxLimit: 100},
	}
	assert.Error(t, s.Validate())
}

func TestNewSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yml")
	content := []byte(`
database:
  url: mongodb://localhost:27017
  db: app
api:
  default_limit: 25
realtime:
  ignored_collections:
    - audit_log
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	s, err := NewSettings(path)
	require.NoError(t, err)
	assert.Equal(t, "app", s.Database.DB)
	assert.Equal(t, 25, s.API.DefaultLimit)
	assert.Equal(t, []string{"audit_log"}, s.Realtime.IgnoredCollections)

	_, err = NewSettings(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}

func TestNewSettingsEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yml")
	content := []byte("database:\n  url: mongodb://configured:27017\n  db: app\n")
	require.NoError(t, os.WriteFile(path, content, 0o600))

	t.Setenv("MONGODB_URL", "mongodb://override:27017")
	s, err := NewSettings(path)
	require.NoError(t, err)
	assert.Equal(t, "mongodb://override:27017", s.Database.URL)
}
