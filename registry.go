package digo

import (
	"reflect"
	"slices"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type middlewareUse struct {
	middleware ResolveMiddleware
	mode       InsertionMode
}

// ComponentRegistry maps services to registrations. Settled services are read
// without locking; initializing a service takes the registry lock and queries
// every registration source that has not yet seen it.
//
// Registration sources are queried with the lock held. They must reach the
// registry only through the lookup they are handed.
type ComponentRegistry struct {
	logger *zap.Logger

	mu            sync.Mutex
	infos         map[Service]*serviceInfo
	sources       []*sourceEntry
	registrations []*ComponentRegistration
	ids           map[uuid.UUID]struct{}
	middleware    []middlewareUse

	registeredHandlers []func(*ComponentRegistration)
	sourceHandlers     []func(RegistrationSource)

	// published holds settled infos for the lock-free read path.
	published sync.Map
}

// NewComponentRegistry returns an empty registry.
func NewComponentRegistry(logger *zap.Logger) *ComponentRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ComponentRegistry{
		logger: logger,
		infos:  make(map[Service]*serviceInfo),
		ids:    make(map[uuid.UUID]struct{}),
	}
}

// Register adds reg as the new default for each of its services.
func (r *ComponentRegistry) Register(reg *ComponentRegistration) error {
	return r.register(reg, false)
}

// RegisterPreserveDefaults adds reg without displacing existing defaults.
func (r *ComponentRegistry) RegisterPreserveDefaults(reg *ComponentRegistration) error {
	return r.register(reg, true)
}

func (r *ComponentRegistry) register(reg *ComponentRegistration, preserveDefaults bool) error {
	if reg == nil {
		return &ArgumentError{Param: "registration", Message: "registration must not be nil"}
	}
	if !reg.claim(r) {
		return &ArgumentError{Param: "registration", Message: "registration belongs to another registry"}
	}

	r.mu.Lock()
	if _, dup := r.ids[reg.ID()]; dup {
		r.mu.Unlock()
		return &ArgumentError{Param: "registration", Message: "registration " + reg.ID().String() + " is already registered"}
	}
	r.ids[reg.ID()] = struct{}{}
	r.registrations = append(r.registrations, reg)
	for _, s := range reg.services {
		info := r.mutableInfoLocked(s)
		info.add(reg, preserveDefaults, false)
		r.storeLocked(info)
	}
	handlers := slices.Clone(r.registeredHandlers)
	r.mu.Unlock()

	r.logger.Debug("registered component",
		zap.Stringer("id", reg.ID()),
		zap.String("registration", reg.String()),
		zap.Bool("preserve_defaults", preserveDefaults))
	for _, h := range handlers {
		h(reg)
	}
	return nil
}

// AddRegistrationSource adds src. Services already settled are re-opened so
// the next lookup also consults src.
func (r *ComponentRegistry) AddRegistrationSource(src RegistrationSource) error {
	if src == nil {
		return &ArgumentError{Param: "source", Message: "registration source must not be nil"}
	}
	entry := &sourceEntry{source: src}

	r.mu.Lock()
	r.sources = append(r.sources, entry)
	for s, info := range r.infos {
		if info.state == uninitialized {
			continue
		}
		reopened := info.clone()
		reopened.state = initializing
		reopened.sourcesToQuery = append(reopened.sourcesToQuery, entry)
		r.infos[s] = reopened
		r.published.Delete(s)
	}
	handlers := slices.Clone(r.sourceHandlers)
	r.mu.Unlock()

	r.logger.Debug("added registration source",
		zap.String("source", sourceName(src)),
		zap.Bool("adapter", src.IsAdapterForIndividualComponents()))
	for _, h := range handlers {
		h(src)
	}
	return nil
}

// TryGetRegistration returns the default registration for s: the newest
// plain registration, else the first sourced one, else the first one
// registered while preserving defaults.
func (r *ComponentRegistry) TryGetRegistration(s Service) (*ComponentRegistration, bool) {
	return r.serviceInfo(s).defaultRegistration()
}

// IsRegistered reports whether any registration or source provides s.
func (r *ComponentRegistry) IsRegistered(s Service) bool {
	return r.serviceInfo(s).isRegistered()
}

// RegistrationsFor returns every implementation of s.
func (r *ComponentRegistry) RegistrationsFor(s Service) []*ComponentRegistration {
	return r.serviceInfo(s).implementations()
}

// DecoratorsFor returns the decorators of t in registration order.
func (r *ComponentRegistry) DecoratorsFor(t reflect.Type) []*ComponentRegistration {
	decorators := r.RegistrationsFor(DecoratorService{Type: t})
	sortByRegistrationOrder(decorators)
	return decorators
}

// Registrations returns every registration known so far, sourced ones
// included, in the order they were added.
func (r *ComponentRegistry) Registrations() []*ComponentRegistration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*ComponentRegistration(nil), r.registrations...)
}

// Sources returns the registration sources in the order they were added.
func (r *ComponentRegistry) Sources() []RegistrationSource {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RegistrationSource, len(r.sources))
	for i, e := range r.sources {
		out[i] = e.source
	}
	return out
}

// OnRegistered calls fn for every registration added so far and then for
// each one added later.
func (r *ComponentRegistry) OnRegistered(fn func(*ComponentRegistration)) {
	r.mu.Lock()
	r.registeredHandlers = append(r.registeredHandlers, fn)
	past := append([]*ComponentRegistration(nil), r.registrations...)
	r.mu.Unlock()
	for _, reg := range past {
		fn(reg)
	}
}

// OnRegistrationSourceAdded calls fn for every source added so far and then
// for each one added later.
func (r *ComponentRegistry) OnRegistrationSourceAdded(fn func(RegistrationSource)) {
	r.mu.Lock()
	r.sourceHandlers = append(r.sourceHandlers, fn)
	past := make([]RegistrationSource, len(r.sources))
	for i, e := range r.sources {
		past[i] = e.source
	}
	r.mu.Unlock()
	for _, src := range past {
		fn(src)
	}
}

// UseMiddleware adds mw to the pipeline of every registration owned by the
// registry whose pipeline has not been built yet.
func (r *ComponentRegistry) UseMiddleware(mw ResolveMiddleware, mode InsertionMode) {
	r.mu.Lock()
	r.middleware = append(r.middleware, middlewareUse{middleware: mw, mode: mode})
	r.mu.Unlock()
}

func (r *ComponentRegistry) pipelineMiddleware() []middlewareUse {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]middlewareUse(nil), r.middleware...)
}

func (r *ComponentRegistry) serviceInfo(s Service) *serviceInfo {
	if v, ok := r.published.Load(s); ok {
		return v.(*serviceInfo)
	}

	r.mu.Lock()
	sb := &sandbox{
		infos:      make(map[Service]*serviceInfo),
		inProgress: make(map[Service]bool),
	}
	info := r.initializeLocked(s, sb)
	for _, working := range sb.infos {
		r.storeLocked(working)
	}
	handlers := slices.Clone(r.registeredHandlers)
	r.mu.Unlock()

	for _, reg := range sb.added {
		r.logger.Debug("registration source provided component",
			zap.Stringer("id", reg.ID()),
			zap.String("registration", reg.String()))
		for _, h := range handlers {
			h(reg)
		}
	}
	return info
}

// sandbox holds the working copies touched while one service is initialized.
// Nothing is visible to readers until the whole pass is merged.
type sandbox struct {
	infos      map[Service]*serviceInfo
	inProgress map[Service]bool
	added      []*ComponentRegistration
}

func (r *ComponentRegistry) sandboxInfo(s Service, sb *sandbox) *serviceInfo {
	if info, ok := sb.infos[s]; ok {
		return info
	}
	var info *serviceInfo
	if existing, ok := r.infos[s]; ok {
		info = existing.clone()
	} else {
		info = newServiceInfo(s)
	}
	sb.infos[s] = info
	return info
}

func (r *ComponentRegistry) initializeLocked(s Service, sb *sandbox) *serviceInfo {
	if existing, ok := r.infos[s]; ok && existing.state == initialized {
		if _, touched := sb.infos[s]; !touched {
			return existing
		}
	}
	info := r.sandboxInfo(s, sb)
	if info.state == initialized || sb.inProgress[s] {
		return info
	}
	if info.state == uninitialized {
		info.beginInitialization(r.sources)
	}

	sb.inProgress[s] = true
	lookup := func(other Service) []*ComponentRegistration {
		return r.initializeLocked(other, sb).implementations()
	}
	for len(info.sourcesToQuery) > 0 {
		next := info.sourcesToQuery[0]
		info.sourcesToQuery = info.sourcesToQuery[1:]

		for _, reg := range next.source.RegistrationsFor(s, lookup) {
			r.addSourcedLocked(reg, s, next, sb)
		}
	}
	info.state = initialized
	delete(sb.inProgress, s)
	return info
}

func (r *ComponentRegistry) addSourcedLocked(reg *ComponentRegistration, requested Service, from *sourceEntry, sb *sandbox) {
	if reg == nil {
		return
	}
	// Registrations of a parent registry keep their owner.
	reg.claim(r)
	if _, dup := r.ids[reg.ID()]; dup {
		return
	}
	r.ids[reg.ID()] = struct{}{}
	r.registrations = append(r.registrations, reg)
	sb.added = append(sb.added, reg)

	for _, s := range reg.services {
		info := r.sandboxInfo(s, sb)
		if s != requested {
			switch info.state {
			case uninitialized:
				info.beginInitialization(r.sources)
				info.skipSource(from)
			case initializing:
				info.skipSource(from)
			}
		}
		if !info.contains(reg) {
			info.add(reg, false, true)
		}
	}
}

// mutableInfoLocked returns a private copy of the info for s.
func (r *ComponentRegistry) mutableInfoLocked(s Service) *serviceInfo {
	if existing, ok := r.infos[s]; ok {
		return existing.clone()
	}
	return newServiceInfo(s)
}

func (r *ComponentRegistry) storeLocked(info *serviceInfo) {
	r.infos[info.service] = info
	if info.state == initialized {
		r.published.Store(info.service, info)
	} else {
		r.published.Delete(info.service)
	}
}

func sortByRegistrationOrder(regs []*ComponentRegistration) {
	sort.SliceStable(regs, func(i, j int) bool {
		return regs[i].RegistrationOrder() < regs[j].RegistrationOrder()
	})
}

func sourceName(src RegistrationSource) string {
	if s, ok := src.(interface{ String() string }); ok {
		return s.String()
	}
	return reflect.TypeOf(src).String()
}
