package digo

import (
	"fmt"
	"reflect"

	"github.com/google/uuid"
)

// Service identifies what is being asked for. Implementations are comparable
// values so they can key the registry directly.
type Service interface {
	Description() string
}

// ServiceWithType is a service that carries a Go type and can be rebuilt for a
// different type with the same qualifier.
type ServiceWithType interface {
	Service
	ServiceType() reflect.Type
	ChangeType(t reflect.Type) Service
}

// TypedService is a service identified only by its type.
type TypedService struct {
	Type reflect.Type
}

func (s TypedService) Description() string { return typeName(s.Type) }

func (s TypedService) ServiceType() reflect.Type { return s.Type }

func (s TypedService) ChangeType(t reflect.Type) Service { return TypedService{Type: t} }

// NamedService is a service identified by type and name.
type NamedService struct {
	Name string
	Type reflect.Type
}

func (s NamedService) Description() string {
	return fmt.Sprintf("%s (%s)", s.Name, typeName(s.Type))
}

func (s NamedService) ServiceType() reflect.Type { return s.Type }

func (s NamedService) ChangeType(t reflect.Type) Service { return NamedService{Name: s.Name, Type: t} }

// KeyedService is a service identified by type and an arbitrary comparable key.
type KeyedService struct {
	Key  any
	Type reflect.Type
}

func (s KeyedService) Description() string {
	return fmt.Sprintf("%v (%s)", s.Key, typeName(s.Type))
}

func (s KeyedService) ServiceType() reflect.Type { return s.Type }

func (s KeyedService) ChangeType(t reflect.Type) Service { return KeyedService{Key: s.Key, Type: t} }

// UniqueService is an anonymous service used as the target of registrations
// that should only be reachable by reference.
type UniqueService struct {
	ID uuid.UUID
}

// NewUniqueService returns a service nobody else can collide with.
func NewUniqueService() UniqueService {
	return UniqueService{ID: uuid.New()}
}

func (s UniqueService) Description() string { return s.ID.String() }

// DecoratorService is the service decorator registrations provide. Decorators
// are keyed by the type they decorate so they never show up as ordinary
// implementations of that type.
type DecoratorService struct {
	Type reflect.Type
}

func (s DecoratorService) Description() string {
	return "Decorator (" + typeName(s.Type) + ")"
}

func (s DecoratorService) ServiceType() reflect.Type { return s.Type }

func (s DecoratorService) ChangeType(t reflect.Type) Service { return DecoratorService{Type: t} }

// TypeOf returns the reflect.Type of T, interfaces included.
func TypeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Typed returns the typed service for T.
func Typed[T any]() TypedService {
	return TypedService{Type: TypeOf[T]()}
}

// Named returns the named service for T.
func Named[T any](name string) NamedService {
	return NamedService{Name: name, Type: TypeOf[T]()}
}

// Keyed returns the keyed service for T. The key must be comparable, otherwise
// it could not be used as a registry key and Keyed panics with an ArgumentError.
func Keyed[T any](key any) KeyedService {
	s, err := NewKeyedService(key, TypeOf[T]())
	if err != nil {
		panic(err)
	}
	return s
}

// NewKeyedService validates key and builds a keyed service for t.
func NewKeyedService(key any, t reflect.Type) (KeyedService, error) {
	if key == nil {
		return KeyedService{}, &ArgumentError{Param: "key", Message: "service key must not be nil"}
	}
	if t == nil {
		return KeyedService{}, &ArgumentError{Param: "type", Message: "service type must not be nil"}
	}
	if !reflect.TypeOf(key).Comparable() {
		return KeyedService{}, &ArgumentError{
			Param:   "key",
			Message: fmt.Sprintf("service key of type %T is not comparable", key),
		}
	}
	return KeyedService{Key: key, Type: t}, nil
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}
