// Package testutil bootstraps the shared test environment. Integration
// tests talk to a real mongod, reachable at MONGODB_URL or localhost; they
// skip themselves when no database is available.
package testutil

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	terreno "github.com/FlourishHealth/terreno-sub002"
)

const testDBName = "terreno_test"

var (
	envOnce sync.Once
	envErr  error
)

// TestSettings returns settings pointing at the local test database.
func TestSettings() *terreno.Settings {
	url := os.Getenv("MONGODB_URL")
	if url == "" {
		url = "mongodb://localhost:27017"
	}
	return &terreno.Settings{
		Database: terreno.DBSettings{
			URL:          url,
			DB:           testDBName,
			WriteTimeout: 10 * time.Second,
		},
	}
}

// RequireEnvironment installs the global test environment once per test
// binary, skipping the calling test when the database is unreachable.
func RequireEnvironment(t *testing.T) {
	envOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		env, err := terreno.NewEnvironment(ctx, TestSettings())
		if err != nil {
			envErr = err
			return
		}
		terreno.SetEnvironment(env)
	})
	if envErr != nil {
		t.Skipf("test requires a local database: %v", envErr)
	}
}
