package ui

// storeChangedMsg is sent whenever a subscribed store notifies.
type storeChangedMsg struct{}

// actionDoneMsg reports the end of a store action started by a key press.
type actionDoneMsg struct {
	action string
	err    error
	// open switches to the playlist view once the playlist has loaded.
	open bool
}
