// Package resolve maps declared dependency references onto concrete project
// ids. A reference as written in a manifest may be an explicit project id,
// an alias (from the project's own manifest or the workspace config), or a
// workspace-relative source path; resolution decides which project it names
// without ever guessing.
package resolve

import (
	"errors"
	"fmt"
	"path"

	"github.com/papapumpkin/pulsar/internal/project"
)

// ErrUnresolved indicates a dependency reference that matched no known
// project id, alias, or source path.
var ErrUnresolved = errors.New("unresolved dependency reference")

// UnresolvedError reports which project wrote a reference that resolves to
// nothing. Both sides are named so the failing manifest can be fixed
// without a search.
type UnresolvedError struct {
	Referrer  string
	Reference string
}

// Error names the referring project and the reference that failed.
func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("project %s depends on %q which does not match any project id, alias, or source path", e.Referrer, e.Reference)
}

// Unwrap returns ErrUnresolved for use with errors.Is.
func (e *UnresolvedError) Unwrap() error { return ErrUnresolved }

// Resolver resolves reference strings against an indexed set of projects.
// Lookup precedence is id, then alias, then source path; an alias that
// collides with a project id is shadowed by the id.
type Resolver struct {
	ids     map[string]bool
	aliases map[string]string
	byPath  map[string]string
}

// NewResolver indexes every project in the store together with the
// workspace alias table. Manifest aliases and workspace aliases share one
// namespace; two aliases naming different projects is a configuration
// error, as resolution would depend on declaration order.
func NewResolver(store *project.Store, workspaceAliases map[string]string) (*Resolver, error) {
	r := &Resolver{
		ids:     make(map[string]bool, store.Len()),
		aliases: make(map[string]string),
		byPath:  make(map[string]string, store.Len()),
	}

	for _, p := range store.All() {
		r.ids[p.ID] = true
		if p.SourceRoot != "" {
			r.byPath[path.Clean(p.SourceRoot)] = p.ID
		}
		if p.Alias != "" {
			if err := r.addAlias(p.Alias, p.ID); err != nil {
				return nil, err
			}
		}
	}

	for alias, target := range workspaceAliases {
		if !r.ids[target] {
			return nil, fmt.Errorf("workspace alias %q points to unknown project %q", alias, target)
		}
		if err := r.addAlias(alias, target); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Resolver) addAlias(alias, id string) error {
	if existing, ok := r.aliases[alias]; ok && existing != id {
		return fmt.Errorf("alias %q is ambiguous: names both %s and %s", alias, existing, id)
	}
	r.aliases[alias] = id
	return nil
}

// Resolve maps one reference string to a project id.
func (r *Resolver) Resolve(ref string) (string, bool) {
	if r.ids[ref] {
		return ref, true
	}
	if id, ok := r.aliases[ref]; ok {
		return id, true
	}
	if id, ok := r.byPath[path.Clean(ref)]; ok {
		return id, true
	}
	return "", false
}

// Dependency resolves one declared reference for referrer. Failure wraps
// ErrUnresolved and carries both the referrer and the reference text.
func (r *Resolver) Dependency(referrer string, ref project.DepRef) (string, error) {
	id, ok := r.Resolve(ref.Ref)
	if !ok {
		return "", &UnresolvedError{Referrer: referrer, Reference: ref.Ref}
	}
	return id, nil
}
