package terreno

import (
	"context"
	"sync"
	"time"

	"github.com/mongodb/grip"
	"github.com/mongodb/grip/message"
	"github.com/mongodb/grip/send"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

var (
	globalEnv     Environment
	globalEnvLock *sync.RWMutex
)

func init() { globalEnvLock = &sync.RWMutex{} }

// GetEnvironment returns the global application environment. Model
// registration and environment setup happen before traffic, so reads do not
// take the lock.
func GetEnvironment() Environment {
	return globalEnv
}

func SetEnvironment(env Environment) {
	globalEnvLock.Lock()
	defer globalEnvLock.Unlock()

	globalEnv = env
}

// Environment provides access to the shared process resources: settings, the
// mongo connection, and the sender used to report out-of-band errors (change
// stream processing failures and other async work).
type Environment interface {
	// Settings returns the process settings. Read-only after startup.
	Settings() *Settings

	Client() *mongo.Client
	DB() *mongo.Database

	// ErrorSender is the telemetry sender for errors that have no HTTP
	// caller to propagate to.
	ErrorSender() send.Sender

	// RegisterCloser adds a cleanup function run during Close, in
	// reverse registration order.
	RegisterCloser(name string, closer func(context.Context) error)
	Close(context.Context) error
}

type closerOp struct {
	name   string
	closer func(context.Context) error
}

type envState struct {
	settings    *Settings
	client      *mongo.Client
	errorSender send.Sender

	mu      sync.Mutex
	closers []closerOp
}

// NewEnvironment connects to the database described by the settings and
// returns an environment ready to be installed with SetEnvironment.
func NewEnvironment(ctx context.Context, settings *Settings) (Environment, error) {
	if settings == nil {
		return nil, errors.New("settings cannot be nil")
	}
	if err := settings.Validate(); err != nil {
		return nil, errors.Wrap(err, "validating settings")
	}

	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().
		ApplyURI(settings.Database.URL).
		SetWriteConcern(writeconcern.Majority()).
		SetReadConcern(readconcern.Majority()).
		SetConnectTimeout(5*time.Second))
	if err != nil {
		return nil, errors.Wrap(err, "connecting to database")
	}
	if err = client.Ping(connectCtx, nil); err != nil {
		return nil, errors.Wrapf(err, "pinging database at '%s'", settings.Database.URL)
	}

	e := &envState{
		settings:    settings,
		client:      client,
		errorSender: grip.GetSender(),
	}
	e.RegisterCloser("mongo-client", func(ctx context.Context) error {
		return errors.Wrap(client.Disconnect(ctx), "disconnecting mongo client")
	})

	return e, nil
}

func (e *envState) Settings() *Settings { return e.settings }

func (e *envState) Client() *mongo.Client { return e.client }

func (e *envState) DB() *mongo.Database {
	return e.client.Database(e.settings.Database.DB)
}

func (e *envState) ErrorSender() send.Sender { return e.errorSender }

func (e *envState) RegisterCloser(name string, closer func(context.Context) error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.closers = append(e.closers, closerOp{name: name, closer: closer})
}

func (e *envState) Close(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	catcher := grip.NewBasicCatcher()
	for i := len(e.closers) - 1; i >= 0; i-- {
		op := e.closers[i]
		grip.Info(message.Fields{
			"message": "running closer",
			"name":    op.name,
		})
		catcher.Add(op.closer(ctx))
	}

	return catcher.Resolve()
}
