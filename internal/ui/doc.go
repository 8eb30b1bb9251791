// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI is a thin view over the domain stores:
//  1. [VideosView] : trending videos with like/dislike, favorites and watch-later toggles
//  2. [SearchView] : debounced search across videos and playlists
//  3. [PlaylistsView] : the signed-in user's playlists, also the drop zone for move-to-playlist drags
//  4. [PlaylistView] : entries of one playlist with keyboard drag-and-drop reordering
//  5. [UploadsView] : active uploads with progress
//
// Stores notify through Subscribe; the model turns every notification into a [storeChangedMsg]
// and re-renders from store snapshots. Store actions run as [tea.Cmd]s and report back with [actionDoneMsg].
//
// Keyboard navigation uses vim-style bindings with contextual help displayed via charmbracelet/bubbles/help.
package ui
