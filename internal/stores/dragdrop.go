package stores

import (
	"context"
	"fmt"
	"sync"

	"github.com/desertthunder/vidx/internal/shared"
)

// DragType selects what a drop does.
type DragType string

const (
	DragMoveToPlaylist    DragType = "move-to-playlist"
	DragReorderInPlaylist DragType = "reorder-in-playlist"
)

// DragPhase is the state of a [DragMachine].
type DragPhase string

const (
	DragIdle     DragPhase = "idle"
	DragDragging DragPhase = "dragging"
)

// DragItem is the video being dragged. PlaylistID and Index locate it when it came from a playlist.
type DragItem struct {
	VideoID    string
	PlaylistID string
	Index      int
}

// DropTarget is a playlist, plus a slot when reordering.
type DropTarget struct {
	PlaylistID string
	Index      int
}

// DragState is a copy of the machine's state.
type DragState struct {
	Phase  DragPhase
	Type   DragType
	Item   DragItem
	Target *DropTarget
}

// DropActions performs the action a drop resolves to.
type DropActions interface {
	AddVideo(ctx context.Context, playlistID, videoID string) error
	Move(ctx context.Context, playlistID string, from, to int) error
}

// DragMachine implements idle → dragging → [target]* → dropped | cancelled.
// Any other transition returns [shared.ErrInvalidTransition].
type DragMachine struct {
	mu      sync.Mutex
	state   DragState
	actions DropActions
	changed func()
}

func NewDragMachine(actions DropActions, changed func()) *DragMachine {
	if changed == nil {
		changed = func() {}
	}
	return &DragMachine{state: DragState{Phase: DragIdle}, actions: actions, changed: changed}
}

func (m *DragMachine) State() DragState {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.state
	if m.state.Target != nil {
		t := *m.state.Target
		out.Target = &t
	}
	return out
}

// Begin starts dragging item.
func (m *DragMachine) Begin(item DragItem, t DragType) error {
	if t != DragMoveToPlaylist && t != DragReorderInPlaylist {
		return fmt.Errorf("%w: unknown drag type %q", shared.ErrInvalidTransition, t)
	}
	if t == DragReorderInPlaylist && item.PlaylistID == "" {
		return fmt.Errorf("%w: reorder needs a source playlist", shared.ErrInvalidTransition)
	}
	m.mu.Lock()
	if m.state.Phase != DragIdle {
		m.mu.Unlock()
		return fmt.Errorf("%w: already dragging", shared.ErrInvalidTransition)
	}
	m.state = DragState{Phase: DragDragging, Type: t, Item: item}
	m.mu.Unlock()
	m.changed()
	return nil
}

// SetTarget points the drag at target. It may be called any number of times while dragging.
func (m *DragMachine) SetTarget(target DropTarget) error {
	m.mu.Lock()
	if m.state.Phase != DragDragging {
		m.mu.Unlock()
		return fmt.Errorf("%w: not dragging", shared.ErrInvalidTransition)
	}
	if m.state.Type == DragReorderInPlaylist && target.PlaylistID != m.state.Item.PlaylistID {
		m.mu.Unlock()
		return fmt.Errorf("%w: reorder target must be the source playlist", shared.ErrInvalidTransition)
	}
	m.state.Target = &target
	m.mu.Unlock()
	m.changed()
	return nil
}

// Cancel abandons the drag.
func (m *DragMachine) Cancel() error {
	m.mu.Lock()
	if m.state.Phase != DragDragging {
		m.mu.Unlock()
		return fmt.Errorf("%w: not dragging", shared.ErrInvalidTransition)
	}
	m.state = DragState{Phase: DragIdle}
	m.mu.Unlock()
	m.changed()
	return nil
}

// Drop runs the action for the current drag type and returns to idle.
// Without a target it changes nothing and returns [shared.ErrNoDropTarget].
func (m *DragMachine) Drop(ctx context.Context) error {
	m.mu.Lock()
	if m.state.Phase != DragDragging {
		m.mu.Unlock()
		return fmt.Errorf("%w: not dragging", shared.ErrInvalidTransition)
	}
	if m.state.Target == nil {
		m.mu.Unlock()
		return shared.ErrNoDropTarget
	}
	st := m.state
	target := *st.Target
	m.state = DragState{Phase: DragIdle}
	m.mu.Unlock()
	m.changed()

	switch st.Type {
	case DragMoveToPlaylist:
		return m.actions.AddVideo(ctx, target.PlaylistID, st.Item.VideoID)
	default:
		if target.Index == st.Item.Index {
			return nil
		}
		return m.actions.Move(ctx, target.PlaylistID, st.Item.Index, target.Index)
	}
}
