package digo

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// ScopeOption configures a child scope.
type ScopeOption func(*scopeOptions)

type scopeOptions struct {
	tag       any
	hasTag    bool
	configure func(*ContainerBuilder)
	ctx       context.Context
}

// WithTag tags the child scope so matching-scope lifetimes can find it. The
// tag must be comparable. Untagged scopes are tagged with their id.
func WithTag(tag any) ScopeOption {
	return func(o *scopeOptions) {
		o.tag = tag
		o.hasTag = true
	}
}

// WithConfiguration gives the child scope its own registrations. Components
// of the parent stay resolvable from the child.
func WithConfiguration(fn func(*ContainerBuilder)) ScopeOption {
	return func(o *scopeOptions) { o.configure = fn }
}

// WithScopeContext replaces the context the child scope hands to handlers,
// Startable components and Shutdowner instances.
func WithScopeContext(ctx context.Context) ScopeOption {
	return func(o *scopeOptions) { o.ctx = ctx }
}

// LifetimeScope owns shared instances and disposes what it created when it
// ends. Scopes form a tree rooted at the container.
type LifetimeScope struct {
	id       uuid.UUID
	tag      any
	parent   *LifetimeScope
	root     *LifetimeScope
	registry *ComponentRegistry
	ctx      context.Context
	logger   *zap.Logger
	maxDepth int
	disposer *Disposer

	sharedMu sync.RWMutex
	shared   map[sharedKey]*sharedEntry

	mu       sync.Mutex
	children []*LifetimeScope
	ending   []func(*LifetimeScope)
	disposed atomic.Bool
}

// sharedEntry is the slot for one shared instance. done is closed once the
// creating operation finished.
type sharedEntry struct {
	done  chan struct{}
	owner *resolveOperation
	value any
	err   error
}

func newRootScope(registry *ComponentRegistry, opts buildOptions) *LifetimeScope {
	s := &LifetimeScope{
		id:       uuid.New(),
		tag:      RootTag,
		registry: registry,
		ctx:      opts.ctx,
		logger:   opts.logger,
		maxDepth: opts.maxDepth,
		shared:   make(map[sharedKey]*sharedEntry),
	}
	s.root = s
	s.disposer = newDisposer(s.logger)
	return s
}

// BeginLifetimeScope starts a child scope.
func (s *LifetimeScope) BeginLifetimeScope(opts ...ScopeOption) (*LifetimeScope, error) {
	var o scopeOptions
	for _, opt := range opts {
		opt(&o)
	}

	id := uuid.New()
	tag := any(id)
	if o.hasTag {
		if o.tag == nil || !reflect.TypeOf(o.tag).Comparable() {
			return nil, &ArgumentError{Param: "tag", Message: fmt.Sprintf("scope tag %v is not comparable", o.tag)}
		}
		tag = o.tag
	}
	ctx := o.ctx
	if ctx == nil {
		ctx = s.ctx
	}

	child := &LifetimeScope{
		id:       id,
		tag:      tag,
		parent:   s,
		root:     s.root,
		registry: s.registry,
		ctx:      ctx,
		logger:   s.logger.With(zap.Any("scope", tag)),
		maxDepth: s.maxDepth,
		shared:   make(map[sharedKey]*sharedEntry),
	}
	child.disposer = newDisposer(child.logger)

	var cb *ContainerBuilder
	if o.configure != nil {
		cb = NewContainerBuilder(WithLogger(s.logger), WithMaxResolveDepth(s.maxDepth), WithContext(ctx))
		o.configure(cb)
		registry, err := cb.buildChildRegistry(s.registry, child)
		if err != nil {
			return nil, err
		}
		child.registry = registry
	}

	s.mu.Lock()
	if s.disposed.Load() {
		s.mu.Unlock()
		return nil, fmt.Errorf("begin lifetime scope: %w", ErrScopeDisposed)
	}
	s.children = append(s.children, child)
	s.mu.Unlock()

	if cb != nil {
		if err := cb.activate(child); err != nil {
			return nil, multierr.Append(err, child.Dispose())
		}
	}
	child.logger.Debug("lifetime scope started", zap.Bool("configured", cb != nil))
	return child, nil
}

// ResolveComponent runs req as a new resolve operation rooted at s.
func (s *LifetimeScope) ResolveComponent(req ResolveRequest) (any, error) {
	return newResolveOperation(s).execute(req)
}

// ComponentRegistry returns the registry the scope resolves from.
func (s *LifetimeScope) ComponentRegistry() *ComponentRegistry { return s.registry }

func (s *LifetimeScope) ID() uuid.UUID { return s.id }

func (s *LifetimeScope) Tag() any { return s.tag }

// Parent returns nil for the root scope.
func (s *LifetimeScope) Parent() *LifetimeScope { return s.parent }

func (s *LifetimeScope) RootScope() *LifetimeScope { return s.root }

func (s *LifetimeScope) Context() context.Context { return s.ctx }

func (s *LifetimeScope) Logger() *zap.Logger { return s.logger }

// Disposer returns the scope's disposer, for handlers that take ownership of
// instances themselves.
func (s *LifetimeScope) Disposer() *Disposer { return s.disposer }

func (s *LifetimeScope) IsDisposed() bool { return s.disposed.Load() }

// OnEnding registers fn to run when the scope starts disposing, before any
// instance it owns is released.
func (s *LifetimeScope) OnEnding(fn func(*LifetimeScope)) {
	s.mu.Lock()
	s.ending = append(s.ending, fn)
	s.mu.Unlock()
}

// Dispose ends the scope using its own context.
func (s *LifetimeScope) Dispose() error {
	return s.DisposeContext(s.ctx)
}

// DisposeContext ends the scope: ending handlers run, child scopes are
// disposed newest first, then owned instances are released in reverse
// creation order. Disposing twice is a no-op.
func (s *LifetimeScope) DisposeContext(ctx context.Context) error {
	s.mu.Lock()
	if !s.disposed.CompareAndSwap(false, true) {
		s.mu.Unlock()
		return nil
	}
	handlers := s.ending
	children := s.children
	s.ending = nil
	s.children = nil
	s.mu.Unlock()

	var errs error
	for _, h := range handlers {
		errs = multierr.Append(errs, runEnding(h, s))
	}
	for i := len(children) - 1; i >= 0; i-- {
		errs = multierr.Append(errs, children[i].DisposeContext(ctx))
	}
	errs = multierr.Append(errs, s.disposer.DisposeContext(ctx))

	s.sharedMu.Lock()
	s.shared = nil
	s.sharedMu.Unlock()

	if s.parent != nil {
		s.parent.removeChild(s)
	}
	if errs != nil {
		s.logger.Warn("lifetime scope disposed with errors", zap.Error(errs))
	} else {
		s.logger.Debug("lifetime scope disposed")
	}
	return errs
}

func runEnding(h func(*LifetimeScope), s *LifetimeScope) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scope ending handler panicked: %v", r)
		}
	}()
	h(s)
	return nil
}

func (s *LifetimeScope) removeChild(child *LifetimeScope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range s.children {
		if c == child {
			s.children = append(s.children[:i], s.children[i+1:]...)
			return
		}
	}
}

// sharedInstance returns the instance cached under key, creating it with
// create when absent. Concurrent callers wait for the first creator so at
// most one instance exists per key and scope.
func (s *LifetimeScope) sharedInstance(op *resolveOperation, key sharedKey, service Service, create func() (any, error)) (any, error) {
	for {
		s.sharedMu.RLock()
		entry, ok := s.shared[key]
		s.sharedMu.RUnlock()
		if ok && entry.settled() {
			if entry.err == nil {
				return entry.value, nil
			}
		}

		s.sharedMu.Lock()
		if s.shared == nil {
			s.sharedMu.Unlock()
			return nil, &DependencyResolutionError{
				Service: service,
				Message: "cannot share an instance in a disposed lifetime scope",
				Err:     ErrScopeDisposed,
			}
		}
		entry, ok = s.shared[key]
		if !ok {
			entry = &sharedEntry{done: make(chan struct{}), owner: op}
			s.shared[key] = entry
			s.sharedMu.Unlock()
			return s.createShared(key, entry, create)
		}
		s.sharedMu.Unlock()

		if !entry.settled() && (entry.owner == op || op.waitCloses(entry)) {
			return nil, &DependencyResolutionError{
				Service: service,
				Message: "circular component dependency detected: " + op.chain(service),
				Err:     ErrCircularDependency,
			}
		}
		<-entry.done
		op.waitingOn.Store(nil)
		if entry.err == nil {
			return entry.value, nil
		}
		// The creator failed and released the slot; try again.
	}
}

func (s *LifetimeScope) createShared(key sharedKey, entry *sharedEntry, create func() (any, error)) (value any, err error) {
	finished := false
	defer func() {
		if !finished {
			entry.err = fmt.Errorf("shared instance creation aborted")
			s.releaseShared(key, entry)
		}
	}()
	value, err = create()
	finished = true
	if err != nil {
		entry.err = err
		s.releaseShared(key, entry)
		return nil, err
	}
	entry.value = value
	close(entry.done)
	return value, nil
}

func (s *LifetimeScope) releaseShared(key sharedKey, entry *sharedEntry) {
	s.sharedMu.Lock()
	if s.shared != nil && s.shared[key] == entry {
		delete(s.shared, key)
	}
	s.sharedMu.Unlock()
	close(entry.done)
}

func (e *sharedEntry) settled() bool {
	select {
	case <-e.done:
		return true
	default:
		return false
	}
}
