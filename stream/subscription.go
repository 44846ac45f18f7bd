package stream

import (
	"strconv"
	"time"
)

// channelIDs builds subscription ids from a prefix and the current time.
// Two calls within the same clock reading collide; that is not corrected.
type channelIDs struct {
	prefix string
	now    func() time.Time
}

func (g channelIDs) next() string {
	return g.prefix + strconv.FormatInt(g.now().UnixNano(), 10)
}
