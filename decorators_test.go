package digo_test

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/centraunit/digo"
	"github.com/centraunit/digo/mock"
)

type taggedDB struct {
	mock.Database
	tag string
}

func (t *taggedDB) Name() string { return t.tag + "(" + t.Database.Name() + ")" }

func tagWith(tag string) func(digo.ComponentContext, digo.Parameters, mock.Database) (mock.Database, error) {
	return func(_ digo.ComponentContext, _ digo.Parameters, inner mock.Database) (mock.Database, error) {
		return &taggedDB{Database: inner, tag: tag}, nil
	}
}

type DecoratorTestSuite struct {
	suite.Suite
	builder *digo.ContainerBuilder
	tracker *mock.Tracker
}

func (s *DecoratorTestSuite) SetupTest() {
	s.builder = digo.NewContainerBuilder()
	s.tracker = &mock.Tracker{}
}

func (s *DecoratorTestSuite) build() *digo.Container {
	c, err := s.builder.Build()
	s.Require().NoError(err)
	return c
}

func (s *DecoratorTestSuite) TestDecoratorsApplyInRegistrationOrder() {
	digo.Register(s.builder, mock.NewMockDB("db", s.tracker))
	digo.RegisterDecorator(s.builder, tagWith("retry"))
	digo.RegisterDecorator(s.builder, tagWith("metrics"))
	c := s.build()

	s.Equal("metrics(retry(db))", digo.MustResolve[mock.Database](c).Name())
}

func (s *DecoratorTestSuite) TestDecoratorContext() {
	var seen *digo.DecoratorContext
	digo.Register(s.builder, mock.NewMockDB("db", s.tracker))
	digo.RegisterDecorator(s.builder, tagWith("first"))
	digo.RegisterDecorator(s.builder, func(_ digo.ComponentContext, p digo.Parameters, inner mock.Database) (mock.Database, error) {
		seen, _ = digo.DecoratorContextFrom(p)
		return inner, nil
	})
	c := s.build()

	_ = digo.MustResolve[mock.Database](c)
	s.Require().NotNil(seen)
	s.Equal(digo.TypeOf[mock.Database](), seen.ServiceType)
	s.Equal(digo.TypeOf[mock.Database](), seen.ImplementationType)
	s.Len(seen.AppliedDecorators, 1)
	s.Equal("first(db)", seen.CurrentInstance.(mock.Database).Name())
}

func (s *DecoratorTestSuite) TestConditionalDecorator() {
	digo.Register(s.builder, mock.NewMockDB("plain", s.tracker)).Named("plain")
	digo.Register(s.builder, mock.NewMockDB("audited", s.tracker)).Named("audited")
	digo.RegisterDecorator(s.builder, tagWith("audit")).When(func(dc *digo.DecoratorContext) bool {
		return dc.CurrentInstance.(mock.Database).Name() == "audited"
	})
	c := s.build()

	plain, err := digo.ResolveNamed[mock.Database](c, "plain")
	s.Require().NoError(err)
	s.Equal("plain", plain.Name())

	audited, err := digo.ResolveNamed[mock.Database](c, "audited")
	s.Require().NoError(err)
	s.Equal("audit(audited)", audited.Name())
}

func (s *DecoratorTestSuite) TestDisableDecoration() {
	digo.Register(s.builder, mock.NewMockDB("raw", s.tracker)).DisableDecoration()
	digo.RegisterDecorator(s.builder, tagWith("wrapped"))
	c := s.build()

	s.Equal("raw", digo.MustResolve[mock.Database](c).Name())
}

func (s *DecoratorTestSuite) TestSharedInstanceIsDecoratedOnce() {
	calls := 0
	digo.Register(s.builder, mock.NewMockDB("single", s.tracker)).SingleInstance()
	digo.RegisterDecorator(s.builder, func(c digo.ComponentContext, p digo.Parameters, inner mock.Database) (mock.Database, error) {
		calls++
		return tagWith("once")(c, p, inner)
	})
	c := s.build()

	first := digo.MustResolve[mock.Database](c)
	second := digo.MustResolve[mock.Database](c)
	s.Same(first, second)
	s.Equal("once(single)", first.Name())
	s.Equal(1, calls)
}

func (s *DecoratorTestSuite) TestCollectionElementsAreDecorated() {
	digo.Register(s.builder, mock.NewMockDB("a", s.tracker))
	digo.Register(s.builder, mock.NewMockDB("b", s.tracker))
	digo.RegisterDecorator(s.builder, tagWith("d"))
	c := s.build()

	all, err := digo.Resolve[[]mock.Database](c)
	s.Require().NoError(err)
	s.Require().Len(all, 2)
	s.Equal("d(a)", all[0].Name())
	s.Equal("d(b)", all[1].Name())
}

func (s *DecoratorTestSuite) TestDecoratorsAreNotResolvableServices() {
	digo.RegisterDecorator(s.builder, tagWith("orphan"))
	c := s.build()

	s.False(digo.IsRegistered[mock.Database](c))
	s.Len(c.ComponentRegistry().DecoratorsFor(digo.TypeOf[mock.Database]()), 1)
}

func TestDecoratorSuite(t *testing.T) {
	suite.Run(t, new(DecoratorTestSuite))
}
