package digo

import (
	"fmt"
	"strings"
)

// PipelinePhase groups middleware. Phases nest in declaration order: each
// phase wraps the ones after it, so Decoration sees the instance Activation
// produced and Sharing caches the decorated result.
type PipelinePhase int

const (
	// PhaseRequestStart runs first for every request, cache hits included.
	PhaseRequestStart PipelinePhase = iota
	// PhaseParameterSelection may rewrite the request parameters.
	PhaseParameterSelection
	// PhaseSharing selects the owning scope and short-circuits on cache hits.
	PhaseSharing
	// PhaseDecoration applies decorators once the instance exists.
	PhaseDecoration
	// PhaseActivation builds the raw instance.
	PhaseActivation
)

func (p PipelinePhase) String() string {
	switch p {
	case PhaseRequestStart:
		return "RequestStart"
	case PhaseParameterSelection:
		return "ParameterSelection"
	case PhaseSharing:
		return "Sharing"
	case PhaseDecoration:
		return "Decoration"
	case PhaseActivation:
		return "Activation"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// InsertionMode says where inside its phase a middleware is placed.
type InsertionMode int

const (
	// InsertEndOfPhase appends after the middleware already in the phase.
	InsertEndOfPhase InsertionMode = iota
	// InsertStartOfPhase places the middleware before the ones already in the phase.
	InsertStartOfPhase
)

// ResolveMiddleware is a single pipeline stage. Execute may work before
// calling next, after it, or both.
type ResolveMiddleware interface {
	Phase() PipelinePhase
	Execute(ctx *ResolveRequestContext, next func(*ResolveRequestContext) error) error
	String() string
}

// MiddlewareFunc is the function form of a middleware stage.
type MiddlewareFunc func(ctx *ResolveRequestContext, next func(*ResolveRequestContext) error) error

type middleware struct {
	name  string
	phase PipelinePhase
	fn    MiddlewareFunc
}

// NewMiddleware wraps fn as a middleware stage named name.
func NewMiddleware(name string, phase PipelinePhase, fn MiddlewareFunc) ResolveMiddleware {
	return &middleware{name: name, phase: phase, fn: fn}
}

func (m *middleware) Phase() PipelinePhase { return m.phase }

func (m *middleware) Execute(ctx *ResolveRequestContext, next func(*ResolveRequestContext) error) error {
	return m.fn(ctx, next)
}

func (m *middleware) String() string { return m.name }

// PipelineBuilder accumulates middleware in phase order.
type PipelineBuilder struct {
	stages []ResolveMiddleware
}

// NewPipelineBuilder returns an empty builder.
func NewPipelineBuilder() *PipelineBuilder {
	return &PipelineBuilder{}
}

// Use inserts mw into its phase according to mode. Repeated end-of-phase
// inserts keep call order; repeated start-of-phase inserts end up in reverse
// call order.
func (b *PipelineBuilder) Use(mw ResolveMiddleware, mode InsertionMode) *PipelineBuilder {
	idx := len(b.stages)
	switch mode {
	case InsertStartOfPhase:
		for i, existing := range b.stages {
			if existing.Phase() >= mw.Phase() {
				idx = i
				break
			}
		}
	default:
		for i, existing := range b.stages {
			if existing.Phase() > mw.Phase() {
				idx = i
				break
			}
		}
	}
	b.stages = append(b.stages, nil)
	copy(b.stages[idx+1:], b.stages[idx:])
	b.stages[idx] = mw
	return b
}

// UseFunc is shorthand for Use(NewMiddleware(name, phase, fn), mode).
func (b *PipelineBuilder) UseFunc(name string, phase PipelinePhase, mode InsertionMode, fn MiddlewareFunc) *PipelineBuilder {
	return b.Use(NewMiddleware(name, phase, fn), mode)
}

// Clone returns an independent copy of the builder.
func (b *PipelineBuilder) Clone() *PipelineBuilder {
	out := &PipelineBuilder{stages: make([]ResolveMiddleware, len(b.stages))}
	copy(out.stages, b.stages)
	return out
}

// Middleware returns the stages in execution order.
func (b *PipelineBuilder) Middleware() []ResolveMiddleware {
	out := make([]ResolveMiddleware, len(b.stages))
	copy(out, b.stages)
	return out
}

// Build freezes the builder into an executable pipeline.
func (b *PipelineBuilder) Build() *ResolvePipeline {
	stages := b.Middleware()
	entry := func(*ResolveRequestContext) error { return nil }
	for i := len(stages) - 1; i >= 0; i-- {
		stage := stages[i]
		next := entry
		entry = func(ctx *ResolveRequestContext) error {
			ctx.phase = stage.Phase()
			return stage.Execute(ctx, next)
		}
	}
	return &ResolvePipeline{stages: stages, entry: entry}
}

// ResolvePipeline is an immutable middleware chain.
type ResolvePipeline struct {
	stages []ResolveMiddleware
	entry  func(*ResolveRequestContext) error
}

// Invoke runs the chain against ctx.
func (p *ResolvePipeline) Invoke(ctx *ResolveRequestContext) error {
	return p.entry(ctx)
}

// Middleware returns the stages in execution order.
func (p *ResolvePipeline) Middleware() []ResolveMiddleware {
	out := make([]ResolveMiddleware, len(p.stages))
	copy(out, p.stages)
	return out
}

func (p *ResolvePipeline) String() string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.String()
	}
	return strings.Join(names, " -> ")
}
