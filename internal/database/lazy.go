package database

import (
	"context"
	"sync"
	"time"

	"github.com/farmtrack/farmtrack/backend/go-services/pkg/logger"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/singleflight"
)

// ConnectFunc dials Mongo; ConnectMongo in production.
type ConnectFunc func(ctx context.Context, uri string, timeout time.Duration) (*mongo.Client, error)

// Lazy owns the process-wide Mongo client. The first caller connects;
// concurrent callers share that attempt and later callers reuse the client.
// A failed attempt is not cached, so the next request dials again.
type Lazy struct {
	uri     string
	dbName  string
	timeout time.Duration
	connect ConnectFunc

	group  singleflight.Group
	mu     sync.RWMutex
	client *mongo.Client
}

func NewLazy(uri, dbName string, timeout time.Duration) *Lazy {
	return NewLazyWith(uri, dbName, timeout, ConnectMongo)
}

func NewLazyWith(uri, dbName string, timeout time.Duration, connect ConnectFunc) *Lazy {
	return &Lazy{uri: uri, dbName: DatabaseName(uri, dbName), timeout: timeout, connect: connect}
}

// Client returns the shared client, connecting on first use.
func (l *Lazy) Client(ctx context.Context) (*mongo.Client, error) {
	l.mu.RLock()
	c := l.client
	l.mu.RUnlock()
	if c != nil {
		return c, nil
	}
	v, err, _ := l.group.Do("connect", func() (interface{}, error) {
		l.mu.RLock()
		existing := l.client
		l.mu.RUnlock()
		if existing != nil {
			return existing, nil
		}
		logger.Infof("connecting to MongoDB database %q", l.dbName)
		// every waiter shares this dial; it must outlive the first caller
		dctx := context.WithoutCancel(ctx)
		if l.timeout > 0 {
			var cancel context.CancelFunc
			dctx, cancel = context.WithTimeout(dctx, l.timeout)
			defer cancel()
		}
		client, err := l.connect(dctx, l.uri, l.timeout)
		if err != nil {
			return nil, err
		}
		l.mu.Lock()
		l.client = client
		l.mu.Unlock()
		return client, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*mongo.Client), nil
}

// Collection resolves a collection in the configured database.
func (l *Lazy) Collection(ctx context.Context, name string) (*mongo.Collection, error) {
	c, err := l.Client(ctx)
	if err != nil {
		return nil, err
	}
	return c.Database(l.dbName).Collection(name), nil
}

// Ping checks the server, connecting first if needed.
func (l *Lazy) Ping(ctx context.Context) error {
	c, err := l.Client(ctx)
	if err != nil {
		return err
	}
	return c.Ping(ctx, nil)
}

// Connected reports whether a client has been established.
func (l *Lazy) Connected() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.client != nil
}

func (l *Lazy) DatabaseName() string { return l.dbName }

// Close disconnects the shared client if one was opened.
func (l *Lazy) Close(ctx context.Context) error {
	l.mu.Lock()
	c := l.client
	l.client = nil
	l.mu.Unlock()
	if c == nil {
		return nil
	}
	return c.Disconnect(ctx)
}

// CollectionSource hands out collections; *Lazy is the production source.
type CollectionSource interface {
	Collection(ctx context.Context, name string) (*mongo.Collection, error)
}
