// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable errors and a catalog of Markdown issue
// pages rendered when a cookbook run fails in a known way.
package issue
