package testutil

import (
	"context"

	terreno "github.com/FlourishHealth/terreno-sub002"
	"github.com/mongodb/grip/send"
	"go.mongodb.org/mongo-driver/mongo"
)

// MockEnvironment satisfies terreno.Environment for tests that need
// settings or a sender but no live database connection.
type MockEnvironment struct {
	MockSettings *terreno.Settings
	Sender       send.Sender
}

func (e *MockEnvironment) Settings() *terreno.Settings {
	if e.MockSettings != nil {
		return e.MockSettings
	}
	return TestSettings()
}

func (e *MockEnvironment) Client() *mongo.Client { return nil }

func (e *MockEnvironment) DB() *mongo.Database { return nil }

func (e *MockEnvironment) ErrorSender() send.Sender { return e.Sender }

func (e *MockEnvironment) RegisterCloser(string, func(context.Context) error) {}

func (e *MockEnvironment) Close(context.Context) error { return nil }
