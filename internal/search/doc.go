// Package search runs debounced video and playlist searches and keeps a persisted history.
//
// A [Searcher] fires at most one search per quiet period. Terms shorter than the minimum length
// clear the results without a request. Video and playlist queries run concurrently and a newer
// search cancels the previous one; results that arrive for a superseded search are dropped.
//
// [Params] converts to and from [url.Values] so a search can be restored from a link or a
// command line.
package search
