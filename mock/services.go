// Package mock holds the components the container tests wire together.
package mock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/centraunit/digo"
)

// Tracker records lifecycle events in the order they happen.
type Tracker struct {
	mu     sync.Mutex
	events []string
}

func (t *Tracker) Record(event string) {
	t.mu.Lock()
	t.events = append(t.events, event)
	t.mu.Unlock()
}

func (t *Tracker) Events() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.events...)
}

// Core interfaces
type Database interface {
	Connect() error
	IsConnected() bool
	Name() string
}

type Cache interface {
	Get(key string) interface{}
	DB() Database
}

// MockDB is a Disposable database handle.
type MockDB struct {
	ID        string
	Tracker   *Tracker
	connected atomic.Bool
}

func (m *MockDB) Connect() error {
	m.connected.Store(true)
	return nil
}

func (m *MockDB) IsConnected() bool { return m.connected.Load() }

func (m *MockDB) Name() string { return m.ID }

func (m *MockDB) Dispose() error {
	m.connected.Store(false)
	if m.Tracker != nil {
		m.Tracker.Record("dispose:" + m.ID)
	}
	return nil
}

// NewMockDB returns a factory for connected databases named id.
func NewMockDB(id string, tracker *Tracker) func(digo.ComponentContext, digo.Parameters) (Database, error) {
	return func(digo.ComponentContext, digo.Parameters) (Database, error) {
		db := &MockDB{ID: id, Tracker: tracker}
		return db, db.Connect()
	}
}

type MockCache struct {
	db      Database
	Tracker *Tracker
}

func (m *MockCache) Get(key string) interface{} { return nil }

func (m *MockCache) DB() Database { return m.db }

func (m *MockCache) Close() error {
	if m.Tracker != nil {
		m.Tracker.Record("dispose:cache")
	}
	return nil
}

// NewMockCache resolves its Database from c.
func NewMockCache(tracker *Tracker) func(digo.ComponentContext, digo.Parameters) (Cache, error) {
	return func(c digo.ComponentContext, _ digo.Parameters) (Cache, error) {
		db, err := digo.Resolve[Database](c)
		if err != nil {
			return nil, err
		}
		return &MockCache{db: db, Tracker: tracker}, nil
	}
}

// Circular dependency test types
type CircularService1 interface {
	GetService2() CircularService2
}

type CircularService2 interface {
	GetService1() CircularService1
}

type CircularImpl1 struct {
	svc2 CircularService2
}

func (i *CircularImpl1) GetService2() CircularService2 { return i.svc2 }

type CircularImpl2 struct {
	svc1 CircularService1
}

func (i *CircularImpl2) GetService1() CircularService1 { return i.svc1 }

func NewCircular1(c digo.ComponentContext, _ digo.Parameters) (CircularService1, error) {
	svc2, err := digo.Resolve[CircularService2](c)
	if err != nil {
		return nil, err
	}
	return &CircularImpl1{svc2: svc2}, nil
}

func NewCircular2(c digo.ComponentContext, _ digo.Parameters) (CircularService2, error) {
	svc1, err := digo.Resolve[CircularService1](c)
	if err != nil {
		return nil, err
	}
	return &CircularImpl2{svc1: svc1}, nil
}

// SetService1 wires the back-reference after activation.
func (i *CircularImpl2) SetService1(svc CircularService1) { i.svc1 = svc }

// ErrBoot is returned by FailingDB.
var ErrBoot = errors.New("simulated boot failure")

// NewFailingDB returns a factory that always fails.
func NewFailingDB(digo.ComponentContext, digo.Parameters) (Database, error) {
	return nil, ErrBoot
}

type DeepService3 interface {
	GetValue() string
}

type DeepService2 interface {
	GetService3() DeepService3
}

type DeepService1 interface {
	GetService2() DeepService2
}

type DeepImpl3 struct {
	Value string
}

func (d *DeepImpl3) GetValue() string { return d.Value }

type DeepImpl2 struct {
	svc3 DeepService3
}

func (d *DeepImpl2) GetService3() DeepService3 { return d.svc3 }

type DeepImpl1 struct {
	svc2 DeepService2
}

func (d *DeepImpl1) GetService2() DeepService2 { return d.svc2 }

func NewDeep3(digo.ComponentContext, digo.Parameters) (DeepService3, error) {
	return &DeepImpl3{Value: "deep"}, nil
}

func NewDeep2(c digo.ComponentContext, _ digo.Parameters) (DeepService2, error) {
	svc3, err := digo.Resolve[DeepService3](c)
	if err != nil {
		return nil, err
	}
	return &DeepImpl2{svc3: svc3}, nil
}

func NewDeep1(c digo.ComponentContext, _ digo.Parameters) (DeepService1, error) {
	svc2, err := digo.Resolve[DeepService2](c)
	if err != nil {
		return nil, err
	}
	return &DeepImpl1{svc2: svc2}, nil
}

// Worker is Startable and shuts down with its scope.
type Worker struct {
	Tracker *Tracker
	started atomic.Bool
}

func (w *Worker) Start(ctx context.Context) error {
	w.started.Store(true)
	w.Tracker.Record("start:worker")
	return nil
}

func (w *Worker) Shutdown(ctx context.Context) error {
	w.started.Store(false)
	w.Tracker.Record("shutdown:worker")
	return nil
}

func (w *Worker) Started() bool { return w.started.Load() }

// FailingCloser fails to close.
type FailingCloser struct {
	Err error
}

func (f *FailingCloser) Close() error { return f.Err }

type ComplexServiceInterface interface {
	Describe() string
}

type ComplexService struct {
	DB    Database
	Cache Cache
}

func (c *ComplexService) Describe() string { return c.DB.Name() }

func NewComplexService(c digo.ComponentContext, _ digo.Parameters) (ComplexServiceInterface, error) {
	db, err := digo.Resolve[Database](c)
	if err != nil {
		return nil, err
	}
	cache, err := digo.Resolve[Cache](c)
	if err != nil {
		return nil, err
	}
	return &ComplexService{DB: db, Cache: cache}, nil
}
