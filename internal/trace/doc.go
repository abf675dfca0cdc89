// SPDX-License-Identifier: MPL-2.0

// Package trace holds the persisted call trace of a cookbook run: the record
// model, the YAML trace file store, and the replay cursor that walks a loaded
// trace.
//
// A trace is matched purely by order. Record params are kept for people reading
// the file and are never used to pick which record answers a call.
package trace
