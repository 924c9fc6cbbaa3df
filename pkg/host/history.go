package host

import (
	"errors"
	"fmt"
)

var (
	ErrNothingToUndo = errors.New("host: nothing to undo")
	ErrNothingToRedo = errors.New("host: nothing to redo")
)

// Action is an applied, reversible change to the scene.
type Action interface {
	Name() string
	Undo() error
	Redo() error
}

// History is a linear undo/redo stack. Pushing a new action discards the
// redo branch. History is not safe for concurrent use.
type History struct {
	done   []Action
	undone []Action
}

// Push records an action that has already been applied.
func (h *History) Push(a Action) {
	h.done = append(h.done, a)
	h.undone = nil
}

// Undo reverses the most recent action. On failure the action stays on the
// undo stack.
func (h *History) Undo() (Action, error) {
	if len(h.done) == 0 {
		return nil, ErrNothingToUndo
	}
	a := h.done[len(h.done)-1]
	if err := a.Undo(); err != nil {
		return nil, fmt.Errorf("undo %s: %w", a.Name(), err)
	}
	h.done = h.done[:len(h.done)-1]
	h.undone = append(h.undone, a)
	return a, nil
}

// Redo re-applies the most recently undone action.
func (h *History) Redo() (Action, error) {
	if len(h.undone) == 0 {
		return nil, ErrNothingToRedo
	}
	a := h.undone[len(h.undone)-1]
	if err := a.Redo(); err != nil {
		return nil, fmt.Errorf("redo %s: %w", a.Name(), err)
	}
	h.undone = h.undone[:len(h.undone)-1]
	h.done = append(h.done, a)
	return a, nil
}

// CanUndo reports whether Undo has something to do.
func (h *History) CanUndo() bool { return len(h.done) > 0 }

// CanRedo reports whether Redo has something to do.
func (h *History) CanRedo() bool { return len(h.undone) > 0 }
