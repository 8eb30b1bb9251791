// Package api is the single choke point between vidx and the REST backend.
//
// [Client] builds requests against the configured base URL, attaches the bearer token held in a
// [TokenStore], unwraps the {data, error} envelope and normalizes every failure into an [*Error]
// carrying a [Kind]. Callers never see a raw transport error or a panic.
//
// Token recovery: a 401 on an authenticated request triggers one refresh through
// POST /auth/refresh, shared by all concurrent callers, followed by exactly one retry of the
// original request. When the refresh is rejected the stored tokens are cleared and the
// session-ended hook fires. An access token whose decoded exp claim is already past is refreshed
// before sending, since the request is certain to fail.
//
// [Retry] repeats idempotent reads with linear backoff for transient kinds only, and
// [Client.Upload] streams multipart bodies while reporting monotonic progress.
package api
