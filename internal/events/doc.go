// Package events turns monitor signals into timed semantic events.
//
// A Handler subscribes to one monitor, pairs begin and end notifications and
// hands finished events to a Sink. Handlers drop events that are too short
// to be meaningful; the thresholds live in Options.
package events
