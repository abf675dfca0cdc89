// SPDX-License-Identifier: MPL-2.0

// Package sshtarget provides a token-authenticated SSH server that runs every
// command in the embedded shell interpreter. It gives the SSH executor a real
// host to talk to when producing recordings on a workstation or in tests,
// without reaching production infrastructure.
package sshtarget
