package digo_test

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/centraunit/digo"
	"github.com/centraunit/digo/mock"
)

type ConcurrentTestSuite struct {
	suite.Suite
}

func (s *ConcurrentTestSuite) TestSingleInstanceCreatedOnce() {
	var activations atomic.Int32
	b := digo.NewContainerBuilder()
	digo.Register(b, func(c digo.ComponentContext, p digo.Parameters) (mock.Database, error) {
		activations.Add(1)
		return &mock.MockDB{ID: "single"}, nil
	}).SingleInstance()
	c, err := b.Build()
	s.Require().NoError(err)

	const workers = 32
	var wg sync.WaitGroup
	results := make([]mock.Database, workers)
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			db, err := digo.Resolve[mock.Database](c)
			if err != nil {
				errs <- err
				return
			}
			results[id] = db
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		s.NoError(err)
	}
	s.EqualValues(1, activations.Load())
	for _, db := range results[1:] {
		s.Same(results[0], db)
	}
}

func (s *ConcurrentTestSuite) TestConcurrentScopes() {
	tracker := &mock.Tracker{}
	b := digo.NewContainerBuilder()
	digo.Register(b, mock.NewMockDB("shared", tracker)).SingleInstance()
	digo.Register(b, mock.NewMockCache(tracker)).InstancePerLifetimeScope()
	c, err := b.Build()
	s.Require().NoError(err)

	const workers = 16
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	caches := make(chan mock.Cache, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			scope, err := c.BeginLifetimeScope()
			if err != nil {
				errs <- err
				return
			}
			defer func() { _ = scope.Dispose() }()

			first, err := digo.Resolve[mock.Cache](scope)
			if err != nil {
				errs <- err
				return
			}
			second, err := digo.Resolve[mock.Cache](scope)
			if err != nil {
				errs <- err
				return
			}
			if first != second {
				errs <- assertionError("scope returned two caches")
				return
			}
			caches <- first
		}()
	}
	wg.Wait()
	close(errs)
	close(caches)

	for err := range errs {
		s.NoError(err)
	}
	seen := make(map[mock.Cache]struct{})
	var db mock.Database
	for cache := range caches {
		seen[cache] = struct{}{}
		if db == nil {
			db = cache.DB()
		}
		s.Same(db, cache.DB())
	}
	s.Len(seen, workers)
	s.Len(tracker.Events(), workers, "every scope disposed its cache")
}

func (s *ConcurrentTestSuite) TestConcurrentRegistryInitialization() {
	b := digo.NewContainerBuilder()
	tracker := &mock.Tracker{}
	digo.Register(b, mock.NewDeep3)
	digo.Register(b, mock.NewDeep2)
	digo.Register(b, mock.NewDeep1)
	digo.Register(b, mock.NewMockDB("db", tracker))
	c, err := b.Build()
	s.Require().NoError(err)

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for i := 0; i < 16; i++ {
		wg.Add(4)
		go func() {
			defer wg.Done()
			if _, err := digo.Resolve[[]mock.Database](c); err != nil {
				errs <- err
			}
		}()
		go func() {
			defer wg.Done()
			if _, err := digo.Resolve[*digo.Lazy[mock.DeepService1]](c); err != nil {
				errs <- err
			}
		}()
		go func() {
			defer wg.Done()
			if _, err := digo.Resolve[func() (mock.DeepService2, error)](c); err != nil {
				errs <- err
			}
		}()
		go func() {
			defer wg.Done()
			if _, err := digo.Resolve[mock.DeepService1](c); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		s.NoError(err)
	}
	s.Len(c.ComponentRegistry().RegistrationsFor(digo.Typed[*digo.Lazy[mock.DeepService1]]()), 1)
}

func (s *ConcurrentTestSuite) TestCrossOperationCycleFails() {
	// Both factories are held until the other one is being created too, so
	// each operation ends up waiting on the slot the other one owns.
	var arrived atomic.Int32
	ready := make(chan struct{})
	rendezvous := func() {
		if arrived.Add(1) == 2 {
			close(ready)
		}
		<-ready
	}

	b := digo.NewContainerBuilder()
	newCache := mock.NewMockCache(nil)
	digo.Register(b, func(c digo.ComponentContext, p digo.Parameters) (mock.Database, error) {
		rendezvous()
		if _, err := digo.Resolve[mock.Cache](c); err != nil {
			return nil, err
		}
		return &mock.MockDB{ID: "db"}, nil
	}).SingleInstance()
	digo.Register(b, func(c digo.ComponentContext, p digo.Parameters) (mock.Cache, error) {
		rendezvous()
		return newCache(c, p)
	}).SingleInstance()
	c, err := b.Build()
	s.Require().NoError(err)

	errs := make(chan error, 2)
	go func() {
		_, err := digo.Resolve[mock.Database](c)
		errs <- err
	}()
	go func() {
		_, err := digo.Resolve[mock.Cache](c)
		errs <- err
	}()

	for i := 0; i < 2; i++ {
		select {
		case err := <-errs:
			s.Require().Error(err)
			s.True(errors.Is(err, digo.ErrCircularDependency), "unexpected error: %v", err)
		case <-time.After(5 * time.Second):
			s.FailNow("resolve operations blocked on each other")
		}
	}
}

type assertionError string

func (e assertionError) Error() string { return string(e) }

func TestConcurrentSuite(t *testing.T) {
	suite.Run(t, new(ConcurrentTestSuite))
}
