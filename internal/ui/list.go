package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"

	"github.com/desertthunder/vidx/internal/models"
	"github.com/desertthunder/vidx/internal/search"
	"github.com/desertthunder/vidx/internal/shared"
)

var (
	_ list.Item = videoItem{}
	_ list.Item = playlistItem{}
	_ list.Item = entryItem{}
	_ list.Item = resultItem{}
)

// videoItem wraps [models.Video] to implement [list.Item].
type videoItem struct {
	video      models.Video
	favorite   bool
	watchLater bool
}

func (i videoItem) FilterValue() string { return i.video.Title }
func (i videoItem) Title() string {
	title := i.video.Title
	if i.favorite {
		title += " ★"
	}
	if i.watchLater {
		title += " ⏲"
	}
	return title
}
func (i videoItem) Description() string { return videoLine(i.video) }

func videoLine(v models.Video) string {
	reaction := ""
	switch v.UserReaction {
	case models.ReactionLike:
		reaction = " • liked"
	case models.ReactionDislike:
		reaction = " • disliked"
	}
	return fmt.Sprintf("%s • %s views • 👍 %s 👎 %s%s",
		shared.FormatDuration(v.Duration), shared.FormatCount(v.Views),
		shared.FormatCount(v.Likes), shared.FormatCount(v.Dislikes), reaction)
}

// playlistItem wraps [models.Playlist] to implement [list.Item].
type playlistItem struct {
	playlist models.Playlist
}

func (i playlistItem) FilterValue() string { return i.playlist.Title }
func (i playlistItem) Title() string       { return i.playlist.Title }
func (i playlistItem) Description() string {
	desc := fmt.Sprintf("%d videos • %s", i.playlist.VideoCount, shared.VisibilityString(i.playlist.IsPrivate))
	if i.playlist.Description != "" {
		desc = fmt.Sprintf("%s • %s", desc, i.playlist.Description)
	}
	return desc
}

// entryItem is one playlist entry; dragging marks the grabbed entry, target the slot it would land in.
type entryItem struct {
	entry    models.PlaylistVideo
	dragging bool
	target   bool
}

func (i entryItem) FilterValue() string { return i.entry.Video.Title }
func (i entryItem) Title() string {
	prefix := fmt.Sprintf("%d. ", i.entry.Position+1)
	switch {
	case i.dragging:
		prefix = "⇅ " + prefix
	case i.target:
		prefix = "→ " + prefix
	}
	return prefix + i.entry.Video.Title
}
func (i entryItem) Description() string { return videoLine(i.entry.Video) }

// resultItem wraps a [search.Item].
type resultItem struct {
	item search.Item
}

func (i resultItem) FilterValue() string { return i.item.Title() }
func (i resultItem) Title() string {
	if i.item.Playlist != nil {
		return "[playlist] " + i.item.Title()
	}
	return i.item.Title()
}
func (i resultItem) Description() string {
	if i.item.Video != nil {
		return videoLine(*i.item.Video)
	}
	return playlistItem{playlist: *i.item.Playlist}.Description()
}

// newList builds a list with its own quit, filter and help handling turned off; the model owns those keys.
func newList(title string) list.Model {
	l := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	l.Title = title
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)
	l.KeyMap.Quit.SetEnabled(false)
	return l
}
