package digo

import "fmt"

// ResolveService resolves the default registration of s.
func ResolveService(c ComponentContext, s Service, params ...Parameter) (any, error) {
	instance, ok, err := TryResolveService(c, s, params...)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &ComponentNotRegisteredError{Service: s}
	}
	return instance, nil
}

// TryResolveService is ResolveService with absence reported as ok == false.
func TryResolveService(c ComponentContext, s Service, params ...Parameter) (any, bool, error) {
	reg, ok := c.ComponentRegistry().TryGetRegistration(s)
	if !ok {
		return nil, false, nil
	}
	instance, err := c.ResolveComponent(ResolveRequest{Service: s, Registration: reg, Parameters: params})
	if err != nil {
		return nil, true, err
	}
	return instance, true, nil
}

// Resolve returns the default T.
func Resolve[T any](c ComponentContext, params ...Parameter) (T, error) {
	return resolveAs[T](c, Typed[T](), params)
}

// ResolveNamed returns the T registered under name.
func ResolveNamed[T any](c ComponentContext, name string, params ...Parameter) (T, error) {
	return resolveAs[T](c, Named[T](name), params)
}

// ResolveKeyed returns the T registered under key.
func ResolveKeyed[T any](c ComponentContext, key any, params ...Parameter) (T, error) {
	s, err := NewKeyedService(key, TypeOf[T]())
	if err != nil {
		var zero T
		return zero, err
	}
	return resolveAs[T](c, s, params)
}

// ResolveOptional returns the default T, or ok == false when nothing
// provides T.
func ResolveOptional[T any](c ComponentContext, params ...Parameter) (T, bool, error) {
	var zero T
	instance, ok, err := TryResolveService(c, Typed[T](), params...)
	if err != nil || !ok {
		return zero, ok, err
	}
	typed, err := cast[T](instance)
	if err != nil {
		return zero, true, err
	}
	return typed, true, nil
}

// MustResolve is Resolve for wiring code that cannot continue without T.
func MustResolve[T any](c ComponentContext, params ...Parameter) T {
	v, err := Resolve[T](c, params...)
	if err != nil {
		panic(err)
	}
	return v
}

// IsRegistered reports whether T can be resolved from c.
func IsRegistered[T any](c ComponentContext) bool {
	return c.ComponentRegistry().IsRegistered(Typed[T]())
}

func resolveAs[T any](c ComponentContext, s Service, params Parameters) (T, error) {
	var zero T
	instance, err := ResolveService(c, s, params...)
	if err != nil {
		return zero, err
	}
	return cast[T](instance)
}

func cast[T any](instance any) (T, error) {
	typed, ok := instance.(T)
	if !ok {
		var zero T
		return zero, &TypeMismatchError{Expected: typeName(TypeOf[T]()), Got: fmt.Sprintf("%T", instance)}
	}
	return typed, nil
}
