package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Authentication errors
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrSessionExpired   = fmt.Errorf("session expired")
	ErrNoRefreshToken   = fmt.Errorf("no refresh token available")

	// Store errors
	ErrLoadInFlight      = fmt.Errorf("load already in progress")
	ErrActionInFlight    = fmt.Errorf("action already in progress")
	ErrNoMorePages       = fmt.Errorf("no more pages")
	ErrNoDropTarget      = fmt.Errorf("no drop target")
	ErrInvalidTransition = fmt.Errorf("invalid state transition")
	ErrUploadNotFound    = fmt.Errorf("upload not found")
	ErrPlaylistNotLoaded = fmt.Errorf("playlist not loaded")
	ErrReorderMismatch   = fmt.Errorf("reordered list does not match playlist membership")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
