package stream

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestEventQueue_EmptyPollReturnsImmediately(t *testing.T) {
	q := newEventQueue()

	ev, ok := q.pop()
	assert.False(t, ok)
	assert.Equal(t, StreamEvent{}, ev)
	assert.Equal(t, 0, q.pending())
}

func TestEventQueue_ClosedKeepsQueuedEvents(t *testing.T) {
	q := newEventQueue()
	require.True(t, q.push(StreamEvent{Type: "a"}))

	q.close()
	assert.False(t, q.push(StreamEvent{Type: "b"}), "push after close should be refused")

	ev, ok := q.pop()
	require.True(t, ok)
	assert.Equal(t, "a", ev.Type)

	assert.NotPanics(t, func() {
		_, ok = q.pop()
	})
	assert.False(t, ok)
}

func TestEventQueue_CompactsLongBacklog(t *testing.T) {
	q := newEventQueue()

	for i := 0; i < 3000; i++ {
		require.True(t, q.push(StreamEvent{Type: strconv.Itoa(i)}))
	}
	for i := 0; i < 2000; i++ {
		ev, ok := q.pop()
		require.True(t, ok)
		require.Equal(t, strconv.Itoa(i), ev.Type)
	}

	require.True(t, q.push(StreamEvent{Type: "3000"}))
	assert.Equal(t, 1001, q.pending())

	for i := 2000; i <= 3000; i++ {
		ev, ok := q.pop()
		require.True(t, ok)
		require.Equal(t, strconv.Itoa(i), ev.Type)
	}
	_, ok := q.pop()
	assert.False(t, ok)
}

// TestEventQueue_Property_FIFO interleaves pushes and pops and checks the
// queue against a slice model.
func TestEventQueue_Property_FIFO(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		q := newEventQueue()
		var model []string
		next := 0

		ops := rapid.SliceOfN(rapid.Bool(), 1, 300).Draw(t, "ops")
		for _, push := range ops {
			if push {
				id := strconv.Itoa(next)
				next++
				require.True(t, q.push(StreamEvent{Type: id}))
				model = append(model, id)
				continue
			}

			ev, ok := q.pop()
			if len(model) == 0 {
				require.False(t, ok, "pop on empty queue must report false")
				continue
			}
			require.True(t, ok)
			require.Equal(t, model[0], ev.Type)
			model = model[1:]
		}

		require.Equal(t, len(model), q.pending())
	})
}
