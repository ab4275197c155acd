package digo

import "reflect"

// Parameter is a value supplied alongside a resolve request. Activators decide
// which parameters they consume.
type Parameter interface {
	parameter()
}

// NamedParameter supplies a value by name.
type NamedParameter struct {
	Name  string
	Value any
}

// TypedParameter supplies a value for a type.
type TypedParameter struct {
	Type  reflect.Type
	Value any
}

// PositionalParameter supplies a value by position.
type PositionalParameter struct {
	Position int
	Value    any
}

func (NamedParameter) parameter()      {}
func (TypedParameter) parameter()      {}
func (PositionalParameter) parameter() {}

// TypedValue builds a TypedParameter keyed by the static type of v.
func TypedValue[T any](v T) TypedParameter {
	return TypedParameter{Type: TypeOf[T](), Value: v}
}

// Parameters is the ordered parameter set flowing through a pipeline.
type Parameters []Parameter

// Named returns the last named parameter called name.
func (p Parameters) Named(name string) (any, bool) {
	for i := len(p) - 1; i >= 0; i-- {
		if np, ok := p[i].(NamedParameter); ok && np.Name == name {
			return np.Value, true
		}
	}
	return nil, false
}

// Typed returns the last typed parameter for t.
func (p Parameters) Typed(t reflect.Type) (any, bool) {
	for i := len(p) - 1; i >= 0; i-- {
		if tp, ok := p[i].(TypedParameter); ok && tp.Type == t {
			return tp.Value, true
		}
	}
	return nil, false
}

// Positional returns the last positional parameter at position.
func (p Parameters) Positional(position int) (any, bool) {
	for i := len(p) - 1; i >= 0; i-- {
		if pp, ok := p[i].(PositionalParameter); ok && pp.Position == position {
			return pp.Value, true
		}
	}
	return nil, false
}

// With returns a copy of p with extra appended.
func (p Parameters) With(extra ...Parameter) Parameters {
	out := make(Parameters, 0, len(p)+len(extra))
	out = append(out, p...)
	return append(out, extra...)
}

// ParameterAs returns the typed parameter for T, falling back to zero.
func ParameterAs[T any](p Parameters) (T, bool) {
	var zero T
	v, ok := p.Typed(TypeOf[T]())
	if !ok {
		return zero, false
	}
	typed, ok := v.(T)
	return typed, ok
}

// NamedParameterAs returns the named parameter cast to T.
func NamedParameterAs[T any](p Parameters, name string) (T, bool) {
	var zero T
	v, ok := p.Named(name)
	if !ok {
		return zero, false
	}
	typed, ok := v.(T)
	return typed, ok
}
