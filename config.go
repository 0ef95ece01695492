package terreno

import (
	"os"
	"time"

	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"
)

// Settings holds the process configuration. It is loaded once at startup and
// treated as read-only afterwards.
type Settings struct {
	Database DBSettings       `yaml:"database"`
	API      APISettings      `yaml:"api"`
	Realtime RealtimeSettings `yaml:"realtime"`
}

type DBSettings struct {
	URL          string        `yaml:"url"`
	DB           string        `yaml:"db"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type APISettings struct {
	// DefaultLimit and MaxLimit apply to any model that does not configure
	// its own page limits.
	DefaultLimit int `yaml:"default_limit"`
	MaxLimit     int `yaml:"max_limit"`
}

type RealtimeSettings struct {
	Disabled bool `yaml:"disabled"`
	// IgnoredCollections are excluded from the change stream server-side.
	IgnoredCollections []string `yaml:"ignored_collections"`
	// IgnoredOperations are change stream operation types that are never
	// fanned out (e.g. "drop", "invalidate").
	IgnoredOperations []string `yaml:"ignored_operations"`
}

// NewSettings reads a yaml settings file. The MONGODB_URL environment
// variable, when set, overrides the configured database URL.
func NewSettings(filename string) (*Settings, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "reading settings file '%s'", filename)
	}
	settings := &Settings{}
	if err := yaml.Unmarshal(data, settings); err != nil {
		return nil, errors.Wrapf(err, "parsing settings file '%s'", filename)
	}
	if url := os.Getenv("MONGODB_URL"); url != "" {
		settings.Database.URL = url
	}
	if err := settings.Validate(); err != nil {
		return nil, errors.Wrap(err, "validating settings")
	}
	return settings, nil
}

// Validate checks required fields and fills defaults.
func (s *Settings) Validate() error {
	if s.Database.URL == "" {
		return errors.New("database url must be set")
	}
	if s.Database.DB == "" {
		return errors.New("database name must be set")
	}
	if s.Database.WriteTimeout == 0 {
		s.Database.WriteTimeout = 30 * time.Second
	}
	if s.API.DefaultLimit <= 0 {
		s.API.DefaultLimit = DefaultPageLimit
	}
	if s.API.MaxLimit <= 0 {
		s.API.MaxLimit = MaxPageLimit
	}
	if s.API.DefaultLimit > s.API.MaxLimit {
		return errors.Errorf("default limit %d exceeds max limit %d", s.API.DefaultLimit, s.API.MaxLimit)
	}
	return nil
}
