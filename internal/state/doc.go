// Package state shares the progress of one bulk job between the poller and
// the terminal view.
//
// # Overview
//
// The poller pushes every status it fetches into a Store through Observe and
// reports the final outcome through Finish. The UI reads copies with
// Snapshot on its own refresh tick:
//
//	Producer (poller):                 Consumer (UI):
//	┌──────────────────┐              ┌──────────────────┐
//	│ GetBulkState()   │              │                  │
//	│       ↓          │              │                  │
//	│ store.Observe()  │─────────────→│ store.Snapshot() │
//	│       ↓          │   (mutex)    │       ↓          │
//	│ store.Finish()   │              │   render view    │
//	└──────────────────┘              └──────────────────┘
//
// # Concurrency Model
//
// Store uses a readers-writer lock. Observe and Finish take the write lock,
// Snapshot takes the read lock. The lock is never held during network I/O or
// rendering.
//
// # History
//
// Each change of queue state is appended to Snapshot.History with the time it
// was first seen, so the view can show how long the job spent in each
// phase. Repeated observations of the same state only refresh Status and
// LastUpdated.
//
// # Copying
//
// Snapshot returns History as a fresh slice and wraps Err in a new error
// value, so callers may keep or mutate what they receive.
//
// # Zero Value
//
// A zero Store is usable. NewStore additionally records the correlation id
// and the start time used by Snapshot.Elapsed.
package state
