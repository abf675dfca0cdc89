// SPDX-License-Identifier: MPL-2.0

// Package testutil holds test helpers: environment and working directory
// changes with restore functions (MustSetenv, MustUnsetenv, MustChdir),
// resource cleanup (MustClose, MustStop), a controllable clock and a limit
// on concurrent container tests.
package testutil
