package digo_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/centraunit/digo"
	"github.com/centraunit/digo/mock"
)

type CircularTestSuite struct {
	suite.Suite
	builder *digo.ContainerBuilder
}

func (s *CircularTestSuite) SetupTest() {
	s.builder = digo.NewContainerBuilder()
}

func (s *CircularTestSuite) TestCircularDependency() {
	digo.Register(s.builder, mock.NewCircular1)
	digo.Register(s.builder, mock.NewCircular2)
	c, err := s.builder.Build()
	s.Require().NoError(err)

	_, err = digo.Resolve[mock.CircularService1](c)
	s.Require().Error(err)
	s.True(errors.Is(err, digo.ErrCircularDependency))
	s.Contains(err.Error(), "->")
	s.Contains(err.Error(), "mock.CircularService1")
	s.Contains(err.Error(), "mock.CircularService2")
}

func (s *CircularTestSuite) TestCircularSingletons() {
	digo.Register(s.builder, mock.NewCircular1).SingleInstance()
	digo.Register(s.builder, mock.NewCircular2).SingleInstance()
	c, err := s.builder.Build()
	s.Require().NoError(err)

	_, err = digo.Resolve[mock.CircularService2](c)
	s.ErrorIs(err, digo.ErrCircularDependency)

	// The failed creation released its slot.
	_, err = digo.Resolve[mock.CircularService2](c)
	s.ErrorIs(err, digo.ErrCircularDependency)
}

func (s *CircularTestSuite) TestDiamondIsNotCircular() {
	tracker := &mock.Tracker{}
	digo.Register(s.builder, mock.NewMockDB("shared", tracker))
	digo.Register(s.builder, mock.NewMockCache(tracker))
	digo.Register(s.builder, mock.NewComplexService)
	c, err := s.builder.Build()
	s.Require().NoError(err)

	_, err = digo.Resolve[mock.ComplexServiceInterface](c)
	s.NoError(err)
}

func (s *CircularTestSuite) TestMaxResolveDepth() {
	b := digo.NewContainerBuilder(digo.WithMaxResolveDepth(2))
	digo.Register(b, mock.NewDeep3)
	digo.Register(b, mock.NewDeep2)
	digo.Register(b, mock.NewDeep1)
	c, err := b.Build()
	s.Require().NoError(err)

	_, err = digo.Resolve[mock.DeepService2](c)
	s.NoError(err)

	_, err = digo.Resolve[mock.DeepService1](c)
	s.ErrorIs(err, digo.ErrMaxResolveDepth)
}

func (s *CircularTestSuite) TestPropertyInjectionAllowsCircular() {
	digo.Register(s.builder, mock.NewCircular1).InstancePerLifetimeScope()
	digo.Register(s.builder, func(digo.ComponentContext, digo.Parameters) (mock.CircularService2, error) {
		return &mock.CircularImpl2{}, nil
	}).InstancePerLifetimeScope().WithPropertyInjector(func(c digo.ComponentContext, instance any) error {
		svc1, err := digo.Resolve[mock.CircularService1](c)
		if err != nil {
			return err
		}
		instance.(*mock.CircularImpl2).SetService1(svc1)
		return nil
	}, true)
	c, err := s.builder.Build()
	s.Require().NoError(err)

	svc1, err := digo.Resolve[mock.CircularService1](c)
	s.Require().NoError(err)
	s.Same(svc1, svc1.GetService2().GetService1())
}

func (s *CircularTestSuite) TestActivatedHandlersRunDependenciesFirst() {
	tracker := &mock.Tracker{}
	digo.Register(s.builder, mock.NewMockDB("db", tracker)).OnActivated(func(e *digo.ActivatedEvent) error {
		tracker.Record("activated:db")
		return nil
	})
	digo.Register(s.builder, mock.NewMockCache(tracker)).OnActivated(func(e *digo.ActivatedEvent) error {
		tracker.Record("activated:cache")
		return nil
	})
	c, err := s.builder.Build()
	s.Require().NoError(err)

	_, err = digo.Resolve[mock.Cache](c)
	s.Require().NoError(err)
	s.Equal([]string{"activated:db", "activated:cache"}, tracker.Events())
}

func (s *CircularTestSuite) TestActivatedHandlerResolvingAnotherComponent() {
	tracker := &mock.Tracker{}
	digo.Register(s.builder, mock.NewMockDB("b", tracker)).OnActivated(func(e *digo.ActivatedEvent) error {
		tracker.Record("activated:b")
		return nil
	})
	digo.Register(s.builder, func(digo.ComponentContext, digo.Parameters) (mock.ComplexServiceInterface, error) {
		return &mock.ComplexService{}, nil
	}).OnActivated(func(e *digo.ActivatedEvent) error {
		db, err := digo.Resolve[mock.Database](e.Context)
		if err != nil {
			return err
		}
		e.Instance.(*mock.ComplexService).DB = db
		tracker.Record("activated:a")
		return nil
	})
	c, err := s.builder.Build()
	s.Require().NoError(err)

	svc, err := digo.Resolve[mock.ComplexServiceInterface](c)
	s.Require().NoError(err)
	s.Equal([]string{"activated:b", "activated:a"}, tracker.Events())
	s.Equal("b", svc.Describe())
}

func TestCircularSuite(t *testing.T) {
	suite.Run(t, new(CircularTestSuite))
}
