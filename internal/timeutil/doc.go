// Package timeutil owns simulation time and its pacing.
//
// Loop is the single-threaded host event loop: a float-seconds clock and a
// timer queue behind the Scheduler interface the monitors use for delayed
// commits and polling. Clock is the wall clock that paces a Loop when a
// replay runs in real time.
package timeutil
