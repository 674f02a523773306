// Package monitors turns raw overlap and position signals from the world into
// clean begin/end notifications: contacts, grasps, reaches, pick-and-place
// phases, container manipulations and slices.
//
// Every monitor follows the same lifecycle. Init validates the setup and
// returns a sentinel error when the monitor cannot run. Start subscribes to
// the world and begins emitting. Finish flushes everything still pending and
// is safe to call more than once. All callbacks run on the single goroutine
// that drives the scheduler.
package monitors
