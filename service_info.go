package digo

type initState int

const (
	uninitialized initState = iota
	initializing
	initialized
)

// sourceEntry gives each added source a stable identity. Sources are often
// function types, which cannot be compared.
type sourceEntry struct {
	source RegistrationSource
}

// serviceInfo tracks the implementations known for one service. Published
// infos are never mutated; writers clone first.
type serviceInfo struct {
	service   Service
	defaults  []*ComponentRegistration
	sourced   []*ComponentRegistration
	preserved []*ComponentRegistration

	state          initState
	sourcesToQuery []*sourceEntry
}

func newServiceInfo(s Service) *serviceInfo {
	return &serviceInfo{service: s}
}

func (i *serviceInfo) clone() *serviceInfo {
	return &serviceInfo{
		service:        i.service,
		defaults:       append([]*ComponentRegistration(nil), i.defaults...),
		sourced:        append([]*ComponentRegistration(nil), i.sourced...),
		preserved:      append([]*ComponentRegistration(nil), i.preserved...),
		state:          i.state,
		sourcesToQuery: append([]*sourceEntry(nil), i.sourcesToQuery...),
	}
}

func (i *serviceInfo) add(reg *ComponentRegistration, preserveDefaults, fromSource bool) {
	switch {
	case fromSource:
		i.sourced = append(i.sourced, reg)
	case preserveDefaults:
		i.preserved = append(i.preserved, reg)
	default:
		i.defaults = append(i.defaults, reg)
	}
}

func (i *serviceInfo) contains(reg *ComponentRegistration) bool {
	for _, list := range [][]*ComponentRegistration{i.defaults, i.sourced, i.preserved} {
		for _, r := range list {
			if r == reg {
				return true
			}
		}
	}
	return false
}

// beginInitialization queues sources for a service seen for the first time.
func (i *serviceInfo) beginInitialization(sources []*sourceEntry) {
	i.state = initializing
	i.sourcesToQuery = append([]*sourceEntry(nil), sources...)
}

func (i *serviceInfo) skipSource(e *sourceEntry) {
	for idx, queued := range i.sourcesToQuery {
		if queued == e {
			i.sourcesToQuery = append(i.sourcesToQuery[:idx:idx], i.sourcesToQuery[idx+1:]...)
			return
		}
	}
}

// implementations lists plain registrations newest first, then sourced ones,
// then the ones registered while preserving defaults.
func (i *serviceInfo) implementations() []*ComponentRegistration {
	out := make([]*ComponentRegistration, 0, len(i.defaults)+len(i.sourced)+len(i.preserved))
	for idx := len(i.defaults) - 1; idx >= 0; idx-- {
		out = append(out, i.defaults[idx])
	}
	out = append(out, i.sourced...)
	return append(out, i.preserved...)
}

func (i *serviceInfo) defaultRegistration() (*ComponentRegistration, bool) {
	switch {
	case len(i.defaults) > 0:
		return i.defaults[len(i.defaults)-1], true
	case len(i.sourced) > 0:
		return i.sourced[0], true
	case len(i.preserved) > 0:
		return i.preserved[0], true
	}
	return nil, false
}

func (i *serviceInfo) isRegistered() bool {
	return len(i.defaults)+len(i.sourced)+len(i.preserved) > 0
}
