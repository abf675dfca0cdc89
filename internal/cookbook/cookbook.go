// SPDX-License-Identifier: MPL-2.0

package cookbook

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/spf13/pflag"
)

var (
	// ErrUnknownCookbook is returned when a name is not in the registry.
	ErrUnknownCookbook = errors.New("unknown cookbook")
	// ErrDuplicateCookbook is returned when a name is registered twice.
	ErrDuplicateCookbook = errors.New("cookbook already registered")
)

type (
	// Cookbook is one automation procedure.
	Cookbook interface {
		// Name is the dotted registry name, e.g. "wmcs.ceph.health".
		Name() string
		// Summary is a one-line description for listings.
		Summary() string
		// BindFlags declares the cookbook arguments.
		BindFlags(fs *pflag.FlagSet)
		// Run performs the procedure. Every remote call must go through rt.Exec.
		Run(ctx context.Context, rt *Runtime) error
	}

	// Factory returns a fresh cookbook instance, so flag values never leak
	// between runs.
	Factory func() Cookbook

	// Info describes a registered cookbook.
	Info struct {
		Name    string
		Summary string
	}

	// Registry is the static table of known cookbooks.
	Registry struct {
		mu        sync.RWMutex
		factories map[string]Factory
	}
)

// NewRegistry returns a registry holding the given factories.
func NewRegistry(factories ...Factory) (*Registry, error) {
	r := &Registry{factories: make(map[string]Factory)}
	for _, f := range factories {
		if err := r.Register(f); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a cookbook under the name it reports.
func (r *Registry) Register(f Factory) error {
	name := f().Name()
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateCookbook, name)
	}
	r.factories[name] = f
	return nil
}

// New returns a fresh instance of the named cookbook.
func (r *Registry) New(name string) (Cookbook, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCookbook, name)
	}
	return f(), nil
}

// List returns every registered cookbook sorted by name.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	infos := make([]Info, 0, len(r.factories))
	for _, f := range r.factories {
		cb := f()
		infos = append(infos, Info{Name: cb.Name(), Summary: cb.Summary()})
	}
	slices.SortFunc(infos, func(a, b Info) int { return cmp.Compare(a.Name, b.Name) })
	return infos
}
