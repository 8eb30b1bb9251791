// Package tasks runs long playlist operations with non-blocking progress reporting.
//
// # Operations
//
//  1. [Engine.BulkExport] : export many playlists to files
//     - Workers fetch and write playlists concurrently, sharing one rate limiter
//     - One failed playlist does not stop the others
//     - A JSON manifest summarizing every result is written to the output directory
//
//  2. [Engine.BulkAdd] : add many videos to one playlist
//     - Videos are added in the given order so positions follow the input
//     - Each add is rate limited and reported individually
//
// # Progress Reporting
//
// Operations accept a send-only channel of [ProgressUpdate]. Sends use select with default,
// so a slow or absent reader never blocks the operation. A nil channel disables reporting.
package tasks
