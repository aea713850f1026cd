// Package app wires the bulk poller, the shared state store and the terminal
// view into the watch command.
//
// # Data Flow
//
//	┌──────────────┐
//	│   Watch()    │
//	└──────┬───────┘
//	       │
//	       ├─────> prefs.Load()       Theme and exit preference
//	       ├─────> state.NewStore()   Shared snapshot container
//	       ├─────> startPoll()        Poller goroutine, observer feeds the store
//	       └─────> ui.Run()           Terminal view (blocks)
//
// When the view returns, Watch cancels the poll and waits for the poller
// goroutine before returning the poll's outcome. Closing the view before
// the job finishes therefore reports context.Canceled instead of leaking a
// goroutine.
//
// Watch takes a melinda.BulkSource rather than a concrete client so the
// composition can be exercised without a backend.
package app
