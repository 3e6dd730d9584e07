// Package workflow validates order lifecycle transitions.
package workflow

import (
	"slices"

	"github.com/go-faster/errors"

	"github.com/xenking/commerce-order/internal/domain/order"
)

// ErrInvalidTransition is returned when a transition is unknown or not
// allowed from the current state.
var ErrInvalidTransition = errors.New("invalid transition")

// Transition moves an order from any of From to To.
type Transition struct {
	Name  string
	Label string
	From  []order.State
	To    order.State
}

// Workflow is a fixed set of named transitions.
type Workflow struct {
	id          string
	transitions []Transition
}

var _ order.Workflow = (*Workflow)(nil)

// New returns a workflow with the given transitions.
func New(id string, transitions ...Transition) *Workflow {
	return &Workflow{id: id, transitions: transitions}
}

// Default is the standard order workflow:
//
//	draft --place--> placed --fulfill--> completed
//	draft|placed --cancel--> canceled
func Default() *Workflow {
	return New("order_default",
		Transition{Name: "place", Label: "Place order", From: []order.State{order.StateDraft}, To: order.StatePlaced},
		Transition{Name: "fulfill", Label: "Fulfill order", From: []order.State{order.StatePlaced}, To: order.StateCompleted},
		Transition{Name: "cancel", Label: "Cancel order", From: []order.State{order.StateDraft, order.StatePlaced}, To: order.StateCanceled},
	)
}

// ID returns the workflow identifier.
func (w *Workflow) ID() string { return w.id }

// Apply returns the state reached by taking transition from the given state.
func (w *Workflow) Apply(from order.State, transition string) (order.State, error) {
	for _, t := range w.transitions {
		if t.Name != transition {
			continue
		}
		if !slices.Contains(t.From, from) {
			return "", errors.Wrapf(ErrInvalidTransition, "%q from %q", transition, from)
		}
		return t.To, nil
	}
	return "", errors.Wrapf(ErrInvalidTransition, "unknown transition %q", transition)
}

// Transitions lists the transitions allowed from the given state.
func (w *Workflow) Transitions(from order.State) []Transition {
	var out []Transition
	for _, t := range w.transitions {
		if slices.Contains(t.From, from) {
			out = append(out, t)
		}
	}
	return out
}
