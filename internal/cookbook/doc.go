// SPDX-License-Identifier: MPL-2.0

// Package cookbook is the small framework that runs cookbooks: a static
// registry, a Runner that opens one record/replay session per top-level run,
// and the Runtime handed to each cookbook.
package cookbook
