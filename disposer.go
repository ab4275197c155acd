package digo

import (
	"context"
	"fmt"
	"io"
	"reflect"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type disposeItem struct {
	name string
	fn   func(ctx context.Context) error
}

// Disposer releases the instances a scope owns, most recently added first.
type Disposer struct {
	logger *zap.Logger

	mu       sync.Mutex
	items    []disposeItem
	disposed bool
}

func newDisposer(logger *zap.Logger) *Disposer {
	return &Disposer{logger: logger}
}

// AddInstanceForDisposal tracks instance if it implements Shutdowner,
// Disposable or io.Closer, checked in that order. Other values are ignored.
func (d *Disposer) AddInstanceForDisposal(instance any) {
	var fn func(ctx context.Context) error
	switch v := instance.(type) {
	case Shutdowner:
		fn = v.Shutdown
	case Disposable:
		fn = func(context.Context) error { return v.Dispose() }
	case io.Closer:
		fn = func(context.Context) error { return v.Close() }
	default:
		return
	}
	d.add(disposeItem{name: reflect.TypeOf(instance).String(), fn: fn})
}

// AddDisposeFunc tracks an arbitrary release action.
func (d *Disposer) AddDisposeFunc(name string, fn func(ctx context.Context) error) {
	if fn == nil {
		return
	}
	d.add(disposeItem{name: name, fn: fn})
}

func (d *Disposer) add(item disposeItem) {
	d.mu.Lock()
	if !d.disposed {
		d.items = append(d.items, item)
		d.mu.Unlock()
		return
	}
	d.mu.Unlock()

	// The scope ended while the instance was being created.
	d.logger.Warn("disposing instance created after its scope ended", zap.String("type", item.name))
	if err := runDispose(context.Background(), item); err != nil {
		d.logger.Warn("dispose failed", zap.Error(err))
	}
}

// Len returns the number of tracked items.
func (d *Disposer) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.items)
}

// DisposeContext releases every tracked item in reverse order. A failing item
// does not stop the rest; all failures are returned together.
func (d *Disposer) DisposeContext(ctx context.Context) error {
	d.mu.Lock()
	items := d.items
	d.items = nil
	d.disposed = true
	d.mu.Unlock()

	var errs error
	for i := len(items) - 1; i >= 0; i-- {
		if err := runDispose(ctx, items[i]); err != nil {
			d.logger.Warn("dispose failed", zap.String("type", items[i].name), zap.Error(err))
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

func runDispose(ctx context.Context, item disposeItem) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &DisposalError{Type: item.name, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	if err := item.fn(ctx); err != nil {
		return &DisposalError{Type: item.name, Err: err}
	}
	return nil
}
