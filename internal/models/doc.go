// Package models defines the client-side shapes of the entities served by the video backend.
//
// The types fall into three groups:
//
// 1. Identity: what the auth endpoints return and what survives a restart
//   - [User] : account identity and flags
//   - [Session] : current user, auth flag and derived [Permissions]
//   - [AuthResponse] : {user, accessToken, refreshToken} payload
//
// 2. Content: videos and playlists as the stores hold them
//   - [Video] : metadata, engagement counters and the caller's own [Reaction]
//   - [Playlist] : ordered [PlaylistVideo] entries carrying dense positions
//   - [Page] : a list payload with its [Pagination] cursor
//
// 3. Client bookkeeping
//   - [UploadTask] : progress and status of one upload
//
// JSON tags follow the backend's camelCase envelope.
package models
