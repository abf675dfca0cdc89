// SPDX-License-Identifier: MPL-2.0

package remote

import (
	"context"
	"sync"
)

// Router sends requests that only name the local host to Local and every other
// request to the executor built by Remote. Remote is built on first use, so a
// run that never leaves the local host needs no SSH credentials.
type Router struct {
	Local  Executor
	Remote func() (Executor, error)

	once      sync.Once
	remote    Executor
	remoteErr error
}

// NewRouter returns a router over local and a lazily built remote executor.
func NewRouter(local Executor, remote func() (Executor, error)) *Router {
	return &Router{Local: local, Remote: remote}
}

// Run implements Executor.
func (r *Router) Run(ctx context.Context, req Request) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	if allLocal(req.Targets) && r.Local != nil {
		return r.Local.Run(ctx, req)
	}

	r.once.Do(func() {
		if r.Remote == nil {
			r.remoteErr = ErrNonLocalTarget
			return
		}
		r.remote, r.remoteErr = r.Remote()
	})
	if r.remoteErr != nil {
		return "", r.remoteErr
	}
	return r.remote.Run(ctx, req)
}

func allLocal(targets []string) bool {
	for _, t := range targets {
		if !IsLocalTarget(t) {
			return false
		}
	}
	return len(targets) > 0
}
