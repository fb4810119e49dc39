// Package state provides thread-safe snapshots shared between pollers and the UI.
//
// # Overview
//
// A Store holds the last known value of one polled resource together with its
// load status. The poller is the single writer; the UI and CLI read copies.
//
//	Producer (poll.Subscription):      Consumer (UI / CLI):
//	  Reset()   on key change             Snapshot()
//	  Commit()  on success                  ↓
//	  Fail()    on error                  render
//
// # Update Semantics
//
//	store.Reset()        → Data = zero, Loaded = false, Err = nil
//	store.Commit(data)   → Data = data, Loaded = true, Err = nil
//	store.Fail(err)      → Data unchanged, Loaded = true, Err = err
//
// Refreshes never set Loaded back to false; only Reset does. A failed refresh
// keeps the most recent good data on screen next to the error.
//
// # Defensive Copying
//
// NewStore takes a clone function applied on Commit and on Snapshot so that
// callers never share slices with the store. Errors are re-wrapped on read.
package state
