package digo

import (
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
)

// OwnedTag tags the private scope an Owned instance is resolved in.
type OwnedTag struct {
	Service Service
}

// Lazy defers resolving T until Value is first called. Resolve *Lazy[T] to
// get one.
type Lazy[T any] struct {
	once    sync.Once
	factory func() (any, error)
	value   T
	err     error
	created atomic.Bool
}

// NewLazy wraps factory.
func NewLazy[T any](factory func() (T, error)) *Lazy[T] {
	return &Lazy[T]{factory: func() (any, error) { return factory() }}
}

// Value resolves T on first use and returns the same result afterwards.
func (l *Lazy[T]) Value() (T, error) {
	l.once.Do(func() {
		v, err := l.factory()
		if err != nil {
			l.err = err
			return
		}
		typed, ok := v.(T)
		if !ok {
			l.err = &TypeMismatchError{Expected: typeName(TypeOf[T]()), Got: fmt.Sprintf("%T", v)}
			return
		}
		l.value = typed
		l.created.Store(true)
	})
	return l.value, l.err
}

// IsValueCreated reports whether Value already produced an instance.
func (l *Lazy[T]) IsValueCreated() bool {
	return l.created.Load()
}

func (l *Lazy[T]) elementType() reflect.Type { return TypeOf[T]() }

func (l *Lazy[T]) setFactory(f func() (any, error)) { l.factory = f }

// Owned holds an instance resolved in its own nested scope. Disposing the
// Owned disposes that scope and everything created in it.
type Owned[T any] struct {
	value T
	scope *LifetimeScope
}

func (o *Owned[T]) Value() T { return o.value }

func (o *Owned[T]) Dispose() error {
	if o.scope == nil {
		return nil
	}
	return o.scope.Dispose()
}

func (o *Owned[T]) elementType() reflect.Type { return TypeOf[T]() }

func (o *Owned[T]) bind(instance any, scope *LifetimeScope) error {
	typed, ok := instance.(T)
	if !ok {
		return &TypeMismatchError{Expected: typeName(TypeOf[T]()), Got: fmt.Sprintf("%T", instance)}
	}
	o.value = typed
	o.scope = scope
	return nil
}

// Meta pairs an instance with the metadata of the registration that made it.
type Meta[T any] struct {
	value    T
	metadata map[string]any
}

func (m *Meta[T]) Value() T { return m.value }

// Metadata returns the registration metadata captured at resolve time.
func (m *Meta[T]) Metadata() map[string]any { return m.metadata }

func (m *Meta[T]) MetadataValue(key string) (any, bool) {
	v, ok := m.metadata[key]
	return v, ok
}

func (m *Meta[T]) elementType() reflect.Type { return TypeOf[T]() }

func (m *Meta[T]) bind(instance any, metadata map[string]any) error {
	typed, ok := instance.(T)
	if !ok {
		return &TypeMismatchError{Expected: typeName(TypeOf[T]()), Got: fmt.Sprintf("%T", instance)}
	}
	m.value = typed
	m.metadata = metadata
	return nil
}

type lazyValue interface {
	elementType() reflect.Type
	setFactory(func() (any, error))
}

type ownedValue interface {
	elementType() reflect.Type
	bind(instance any, scope *LifetimeScope) error
}

type metaValue interface {
	elementType() reflect.Type
	bind(instance any, metadata map[string]any) error
}

var (
	lazyValueType  = reflect.TypeOf((*lazyValue)(nil)).Elem()
	ownedValueType = reflect.TypeOf((*ownedValue)(nil)).Elem()
	metaValueType  = reflect.TypeOf((*metaValue)(nil)).Elem()
)

// newWrapper allocates a fresh *Lazy[T], *Owned[T] or *Meta[T] for t when t
// is one of those pointer types.
func newWrapper(t reflect.Type, marker reflect.Type) (any, bool) {
	if t == nil || t.Kind() != reflect.Ptr || !t.Implements(marker) {
		return nil, false
	}
	return reflect.New(t.Elem()).Interface(), true
}
