package digo

import (
	"fmt"
	"reflect"
)

// Activator produces instances for a registration. Reflection-based
// constructor discovery is left to other strategies; any type implementing
// Activator can be used.
type Activator interface {
	// LimitType is the most specific type the activator is known to produce.
	LimitType() reflect.Type
	Activate(ctx *ResolveRequestContext, params Parameters) (any, error)
	String() string
}

// ActivatorFunc is the factory signature DelegateActivator wraps.
type ActivatorFunc func(c ComponentContext, p Parameters) (any, error)

// DelegateActivator produces instances by calling a factory function.
type DelegateActivator struct {
	limit reflect.Type
	fn    ActivatorFunc
}

// NewDelegateActivator wraps fn. The instances fn returns must be assignable
// to limit.
func NewDelegateActivator(limit reflect.Type, fn ActivatorFunc) *DelegateActivator {
	return &DelegateActivator{limit: limit, fn: fn}
}

func (a *DelegateActivator) LimitType() reflect.Type { return a.limit }

func (a *DelegateActivator) Activate(ctx *ResolveRequestContext, params Parameters) (any, error) {
	if a.fn == nil {
		return nil, fmt.Errorf("no factory provided for %s", typeName(a.limit))
	}
	return a.fn(ctx, params)
}

func (a *DelegateActivator) String() string {
	return "Delegate(" + typeName(a.limit) + ")"
}

// ProvidedInstanceActivator hands out a pre-built instance.
type ProvidedInstanceActivator struct {
	limit    reflect.Type
	instance any
}

// NewProvidedInstanceActivator wraps instance; limit defaults to its dynamic
// type.
func NewProvidedInstanceActivator(instance any, limit reflect.Type) *ProvidedInstanceActivator {
	if limit == nil && instance != nil {
		limit = reflect.TypeOf(instance)
	}
	return &ProvidedInstanceActivator{limit: limit, instance: instance}
}

func (a *ProvidedInstanceActivator) LimitType() reflect.Type { return a.limit }

func (a *ProvidedInstanceActivator) Activate(*ResolveRequestContext, Parameters) (any, error) {
	return a.instance, nil
}

func (a *ProvidedInstanceActivator) String() string {
	return "ProvidedInstance(" + typeName(a.limit) + ")"
}
