// Package watch runs one change-detection cycle: load the saved address,
// resolve the current one, and on a difference notify and persist it.
//
// A cycle is meant to be started by a scheduler. Overlapping cycles against
// the same state file are not coordinated.
package watch
