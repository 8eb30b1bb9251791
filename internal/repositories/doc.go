// Package repositories implements SQLite persistence for the little client state that survives a restart.
//
// Key Implementations:
//   - [SessionRepository] : the persisted session slice (user identity and auth flag, never tokens)
//   - [TokenRepository] : the access/refresh pair, implementing [api.TokenStore]
//   - [SearchHistoryRepository] : most-recent-first, de-duplicated, capped search terms
//
// Each table holds at most one logical record per key; writes are upserts.
package repositories
