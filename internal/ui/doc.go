// Package ui renders the live view of one bulk job.
//
// The view is a Bubble Tea program that never talks to the backend. It reads
// state.Snapshot copies from a shared store on a fixed tick while the poller
// fills that store from another goroutine. It shows the job's current queue
// state as a colored badge, the last modification token, the handled record
// count, the time spent in each state, and the final metadata or error once
// the poll ends.
//
// Keys: q or ctrl+c quits, ? toggles the full help, T cycles the color theme.
// The chosen theme is persisted through the prefs package when a prefs path
// is configured.
package ui
