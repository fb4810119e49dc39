// Package poll keeps remote resources fresh with explicit subscription objects.
//
// A Subscription moves through these states:
//
//	idle ──Start(key)──▶ loading ──fetch ok──▶ loaded
//	                        │                    │
//	                        └──fetch err──▶ error ◀┘ (data kept)
//
// While active it re-fetches every interval. Refreshes never flip Loaded back
// to false. Start with a new key or Stop cancels the ticker and the in-flight
// request, and the generation counter guarantees a late response for an old
// key is never committed. Keys the empty predicate rejects resolve
// immediately to a loaded zero value with no network call.
//
// Subscriptions share nothing: two subscriptions on the same key each own a
// Store and a goroutine.
package poll
