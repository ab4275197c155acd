package digo

import (
	"fmt"
	"reflect"
)

// DecoratorContext describes the decoration in progress for one instance.
type DecoratorContext struct {
	// ImplementationType is the limit type of the decorated registration.
	ImplementationType reflect.Type
	// ServiceType is the type being decorated.
	ServiceType reflect.Type
	// AppliedDecorators holds the instances produced so far, innermost first.
	AppliedDecorators []any
	// DecoratorTypes holds the limit types of the decorators applied so far.
	DecoratorTypes []reflect.Type
	// CurrentInstance is the instance the next decorator wraps.
	CurrentInstance any
}

func (c *DecoratorContext) apply(decoratorType reflect.Type, instance any) *DecoratorContext {
	return &DecoratorContext{
		ImplementationType: c.ImplementationType,
		ServiceType:        c.ServiceType,
		AppliedDecorators:  append(append([]any(nil), c.AppliedDecorators...), instance),
		DecoratorTypes:     append(append([]reflect.Type(nil), c.DecoratorTypes...), decoratorType),
		CurrentInstance:    instance,
	}
}

type decoratedParameter struct {
	context *DecoratorContext
}

func (decoratedParameter) parameter() {}

// DecoratorContextFrom returns the decorator context passed to a decorator's
// activator.
func DecoratorContextFrom(p Parameters) (*DecoratorContext, bool) {
	for i := len(p) - 1; i >= 0; i-- {
		if dp, ok := p[i].(decoratedParameter); ok {
			return dp.context, true
		}
	}
	return nil, false
}

// DecoratorBuilder configures a decorator registration.
type DecoratorBuilder struct {
	rb *RegistrationBuilder
}

// When applies the decorator only while cond holds for the instance being
// decorated.
func (d *DecoratorBuilder) When(cond func(*DecoratorContext) bool) *DecoratorBuilder {
	d.rb.decoratorCondition = cond
	return d
}

// Registration returns the underlying registration builder.
func (d *DecoratorBuilder) Registration() *RegistrationBuilder { return d.rb }

// RegisterDecorator wraps every resolved T with fn. Decorators apply in the
// order they were registered; each receives the instance produced so far.
func RegisterDecorator[T any](b *ContainerBuilder, fn func(c ComponentContext, p Parameters, inner T) (T, error)) *DecoratorBuilder {
	t := TypeOf[T]()
	act := NewDelegateActivator(t, func(c ComponentContext, p Parameters) (any, error) {
		dc, ok := DecoratorContextFrom(p)
		if !ok {
			return nil, fmt.Errorf("decorator for %s resolved without an instance to decorate", typeName(t))
		}
		inner, ok := dc.CurrentInstance.(T)
		if !ok {
			return nil, &TypeMismatchError{Expected: typeName(t), Got: fmt.Sprintf("%T", dc.CurrentInstance)}
		}
		return fn(c, p, inner)
	})
	rb := NewRegistrationBuilder(act).As(DecoratorService{Type: t}).InstancePerDependency()
	if b != nil {
		b.Register(rb)
	}
	return &DecoratorBuilder{rb: rb}
}
