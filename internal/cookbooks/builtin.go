// SPDX-License-Identifier: MPL-2.0

// Package cookbooks holds the built-in WMCS cookbooks.
package cookbooks

import "github.com/wikimedia/cloud-wmcs-cookbooks/internal/cookbook"

// Builtin returns the factories of every built-in cookbook.
func Builtin() []cookbook.Factory {
	return []cookbook.Factory{
		NewCephHealth,
		NewK8sWorkerDrain,
	}
}

// NewRegistry returns a registry holding the built-in cookbooks.
func NewRegistry() (*cookbook.Registry, error) {
	return cookbook.NewRegistry(Builtin()...)
}
