// Package services translates client intents into REST calls for each resource type.
//
// # Services
//
//   - [AuthService] : registration, login, token refresh and account recovery
//   - [VideoService] : video reads, uploads, reactions, stream and thumbnail URLs
//   - [PlaylistService] : playlist CRUD, membership, reordering and the favorites / watch-later lists
//
// # Validation
//
// Create and update operations are validated before any request is built. A failure is an
// [api.Error] of kind validation with per-field messages and never reaches the network.
//
// # Caching
//
// Safe reads (list, detail, search, trending, categories, history) go through [cache.Fetch] with a
// key derived from their complete parameter set and a TTL chosen by [cache.Tier]. A hit returns
// without calling the client.
//
// Every successful mutation synchronously drops the affected namespaces before returning:
// video mutations clear [cache.Videos] and [cache.History], playlist mutations clear [cache.Playlists].
package services
