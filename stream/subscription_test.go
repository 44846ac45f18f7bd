package stream

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/kleeedolinux/stream.go/stream/transport"
)

func TestChannelIDs_Format(t *testing.T) {
	at := time.Unix(1700000000, 123)
	ids := channelIDs{prefix: "ch", now: func() time.Time { return at }}

	assert.Equal(t, "ch1700000000000000123", ids.next())
}

func TestChannelIDs_SameInstantCollides(t *testing.T) {
	at := time.Unix(1700000000, 0)
	ids := channelIDs{prefix: "ch", now: func() time.Time { return at }}

	assert.Equal(t, ids.next(), ids.next(), "ids are only as unique as the clock")
}

// steppingClock returns a strictly increasing time on every call.
type steppingClock struct {
	at    time.Time
	steps []time.Duration
	i     int
}

func (c *steppingClock) now() time.Time {
	c.at = c.at.Add(c.steps[c.i%len(c.steps)])
	c.i++
	return c.at
}

type outboundControl struct {
	Type string `json:"type"`
	Body struct {
		Channel string `json:"channel"`
		ID      string `json:"id"`
	} `json:"body"`
}

// TestSubscribe_Property_OneFramePerCallDistinctIDs checks that every
// Subscribe call queues exactly one connect frame and that ids differ while
// the clock keeps moving.
func TestSubscribe_Property_OneFramePerCallDistinctIDs(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		names := rapid.SliceOfN(rapid.SampledFrom([]string{"main", "homeTimeline", "localTimeline", "hybridTimeline", "globalTimeline"}), 1, 40).Draw(t, "channels")
		steps := rapid.SliceOfN(rapid.Int64Range(1, int64(time.Second)), 1, 8).Draw(t, "steps")

		clock := &steppingClock{at: time.Unix(1700000000, 0)}
		for _, s := range steps {
			clock.steps = append(clock.steps, time.Duration(s))
		}

		c, _, _ := newTestClient()
		c.ids.now = clock.now
		s := attachSession(c, newFakeConn())

		returned := make([]string, 0, len(names))
		for _, name := range names {
			id, err := c.Subscribe(name)
			require.NoError(t, err)
			returned = append(returned, id)
		}

		require.Equal(t, len(names), s.out.pending(), "one frame per subscribe call")

		seen := make(map[string]bool, len(names))
		for i, name := range names {
			f, ok := s.out.pop()
			require.True(t, ok)
			require.Equal(t, transport.TextMessage, f.Type)

			var msg outboundControl
			require.NoError(t, json.Unmarshal(f.Data, &msg))
			require.Equal(t, "connect", msg.Type)
			require.Equal(t, name, msg.Body.Channel)
			require.Equal(t, returned[i], msg.Body.ID)
			require.False(t, seen[msg.Body.ID], "duplicate id %s", msg.Body.ID)
			seen[msg.Body.ID] = true
		}
	})
}

func TestSubscribeWithID_UsesCallerID(t *testing.T) {
	c, _, _ := newTestClient()
	s := attachSession(c, newFakeConn())

	var streamer Streamer = c
	require.NoError(t, streamer.SubscribeWithID("main", "my-id"))

	f, ok := s.out.pop()
	require.True(t, ok)
	assert.JSONEq(t, `{"type":"connect","body":{"channel":"main","id":"my-id"}}`, string(f.Data))
}
