package digo

import (
	"fmt"
	"strings"
)

// RootTag is the tag carried by every container's root scope.
const RootTag = "root"

// Lifetime decides which scope owns a shared instance.
type Lifetime interface {
	FindScope(mostNested *LifetimeScope) (*LifetimeScope, error)
	String() string
}

// RootScopeLifetime places instances in the outermost scope.
type RootScopeLifetime struct{}

func (RootScopeLifetime) FindScope(mostNested *LifetimeScope) (*LifetimeScope, error) {
	return mostNested.RootScope(), nil
}

func (RootScopeLifetime) String() string { return "root" }

// CurrentScopeLifetime places instances in the resolving scope.
type CurrentScopeLifetime struct{}

func (CurrentScopeLifetime) FindScope(mostNested *LifetimeScope) (*LifetimeScope, error) {
	return mostNested, nil
}

func (CurrentScopeLifetime) String() string { return "current" }

// scopeRestrictedLifetime replaces RootScopeLifetime on the registrations a
// configured child scope adds itself, so its single instances live and die
// with that child.
type scopeRestrictedLifetime struct {
	scope *LifetimeScope
}

func (l scopeRestrictedLifetime) FindScope(mostNested *LifetimeScope) (*LifetimeScope, error) {
	for next := mostNested; next != nil; next = next.parent {
		if next == l.scope {
			return next, nil
		}
	}
	return nil, &DependencyResolutionError{
		Message: "the instance is restricted to a lifetime scope that is not visible from the requesting scope",
		Err:     ErrNoMatchingScope,
	}
}

func (l scopeRestrictedLifetime) String() string { return "restricted" }

// MatchingScopeLifetime places instances in the nearest scope carrying one of
// Tags.
type MatchingScopeLifetime struct {
	Tags []any
}

func (l MatchingScopeLifetime) FindScope(mostNested *LifetimeScope) (*LifetimeScope, error) {
	for next := mostNested; next != nil; next = next.parent {
		for _, tag := range l.Tags {
			if next.tag == tag {
				return next, nil
			}
		}
	}
	return nil, &DependencyResolutionError{
		Message: fmt.Sprintf("no scope with a tag matching %s is visible from the scope in which the instance was requested", l.tagList()),
		Err:     ErrNoMatchingScope,
	}
}

func (l MatchingScopeLifetime) String() string { return "matching" + l.tagList() }

func (l MatchingScopeLifetime) tagList() string {
	parts := make([]string, len(l.Tags))
	for i, t := range l.Tags {
		parts[i] = fmt.Sprintf("'%v'", t)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Sharing says whether instances are cached.
type Sharing int

const (
	// SharingNone creates a new instance for every request.
	SharingNone Sharing = iota
	// SharingShared caches one instance per owning scope.
	SharingShared
)

func (s Sharing) String() string {
	if s == SharingShared {
		return "shared"
	}
	return "none"
}

// Ownership says whether the container disposes the instances it creates.
type Ownership int

const (
	// OwnedByLifetimeScope instances are disposed with their owning scope.
	OwnedByLifetimeScope Ownership = iota
	// ExternallyOwned instances are never disposed by the container.
	ExternallyOwned
)

func (o Ownership) String() string {
	if o == ExternallyOwned {
		return "external"
	}
	return "scope"
}
