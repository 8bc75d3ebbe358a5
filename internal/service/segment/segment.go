// Package segment provides segment ID generation. IDs are sequential within
// a call so consumers can order segments without comparing timestamps.
package segment

import (
	"fmt"
	"sync/atomic"

	"voice-translation-bridge/internal/models"
)

// Generator produces ordered segment IDs for one channel of one call.
type Generator struct {
	callID  string
	channel models.Channel
	counter atomic.Uint64
}

// New creates a Generator scoped to one call and channel.
func New(callID string, ch models.Channel) *Generator {
	return &Generator{callID: callID, channel: ch}
}

// Next returns the next segment ID.
func (g *Generator) Next() string {
	n := g.counter.Add(1)
	return fmt.Sprintf("%s-%s-seg-%d", g.callID, g.channel, n)
}
