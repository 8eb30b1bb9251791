// Package stores holds the UI-visible client state for each resource type.
//
// Stores are explicit containers built by the application and passed to whatever renders them;
// nothing in this package is a package-level singleton. Each store:
//
//   - guards its state with a mutex and hands out copies through Snapshot
//   - notifies subscribers after every state change, outside the lock
//   - returns an error from every action instead of panicking
//
// # Lists
//
// Collection loads follow idle → loading → success | failure. A second axis, LoadingMore, gates
// pagination: an overlapping LoadMore is rejected with [shared.ErrLoadInFlight] and a successful
// one only appends.
//
// # Cancellation
//
// An action whose context is cancelled before its response arrives leaves the state as it was
// before the action started. Responses superseded by a newer load of the same list are dropped.
//
// # Reactions
//
// Like and dislike are two-phase. Phase one records a [PendingReaction] and shows the optimistic
// counts. Phase two either overwrites the counts with the server's numbers or restores the snapshot
// taken in phase one.
package stores
