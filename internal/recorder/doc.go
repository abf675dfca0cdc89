// SPDX-License-Identifier: MPL-2.0

// Package recorder records and replays the remote command calls of a cookbook
// run.
//
// The mode (record, replay, or neither) is resolved once per process into a
// ModeConfig. A Session then picks one executor strategy for the whole run:
// the real executor untouched, a Recorder that saves every call to the trace
// file as it happens, or a Replayer that answers calls from the trace file and
// never reaches real infrastructure.
package recorder
