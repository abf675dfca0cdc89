// SPDX-License-Identifier: MPL-2.0

// Package remote defines the single "execute a command against remote targets"
// capability that cookbooks use to touch infrastructure, together with its
// transports.
//
// Every side-effecting call a cookbook makes goes through an Executor. The
// recorder package decorates an Executor to capture or replay those calls, so
// code in this package must stay free of record/replay concerns.
package remote
