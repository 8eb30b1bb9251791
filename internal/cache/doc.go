// Package cache is the short-lived response cache consulted by the domain services.
//
// Entries are addressed by a structured [Key] of (namespace, resource id, parameter hash)
// rather than a flat request string, so a mutation can drop every entry of a resource class
// with [Store.InvalidateNamespace] without scanning key prefixes.
//
// Two backends implement [Store]:
//   - [Memory] : a mutex-guarded map with lazy expiry (the default)
//   - [Redis] : go-redis, sharing one cache between several vidx processes
//
// Expiry is always lazy: an entry past its deadline is reported as a miss even if it is still
// physically present. [Fetch] layers typed read-through caching on top of any [Store].
package cache
