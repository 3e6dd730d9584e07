package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/commerce-order/internal/domain/order"
)

func TestDefault_Apply(t *testing.T) {
	tests := []struct {
		name       string
		from       order.State
		transition string
		want       order.State
		wantErr    bool
	}{
		{name: "place draft", from: order.StateDraft, transition: "place", want: order.StatePlaced},
		{name: "fulfill placed", from: order.StatePlaced, transition: "fulfill", want: order.StateCompleted},
		{name: "cancel draft", from: order.StateDraft, transition: "cancel", want: order.StateCanceled},
		{name: "cancel placed", from: order.StatePlaced, transition: "cancel", want: order.StateCanceled},
		{name: "fulfill draft", from: order.StateDraft, transition: "fulfill", wantErr: true},
		{name: "cancel completed", from: order.StateCompleted, transition: "cancel", wantErr: true},
		{name: "place canceled", from: order.StateCanceled, transition: "place", wantErr: true},
		{name: "unknown transition", from: order.StateDraft, transition: "ship", wantErr: true},
	}

	w := Default()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := w.Apply(tt.from, tt.transition)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidTransition)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDefault_Transitions(t *testing.T) {
	w := Default()

	names := func(ts []Transition) []string {
		var out []string
		for _, t := range ts {
			out = append(out, t.Name)
		}
		return out
	}

	assert.Equal(t, []string{"place", "cancel"}, names(w.Transitions(order.StateDraft)))
	assert.Equal(t, []string{"fulfill", "cancel"}, names(w.Transitions(order.StatePlaced)))
	assert.Empty(t, w.Transitions(order.StateCompleted))
	assert.Equal(t, "order_default", w.ID())
}
