package engine

import (
	"sync/atomic"
	"time"

	"github.com/ShayCichocki/quarry/pkg/models"
)

// Observer receives progress events. Round events are delivered from the
// goroutine running the engine; resolution events are delivered from round
// workers after the entry is stored, so observers must be safe for
// concurrent use.
type Observer func(models.Event)

// Recorder receives run counters.
type Recorder interface {
	RoundFinished(admitted, dropped int)
	QuestionResolved(source models.Source)
	ProviderFailure(provider string)
	RunFinished(stats models.Stats, elapsed time.Duration)
}

// Provider names used for failure accounting of expansion calls.
const (
	ProviderDecomposer = "decomposer"
	ProviderFollowups  = "followups"
)

// Emitter fans engine events into a buffered channel, dropping events when
// the reader falls behind rather than stalling a round.
type Emitter struct {
	events  chan models.Event
	dropped atomic.Int64
}

// NewEmitter creates an Emitter with the given buffer size.
func NewEmitter(bufferSize int) *Emitter {
	return &Emitter{events: make(chan models.Event, bufferSize)}
}

// Observe is an Observer that forwards to the channel.
func (e *Emitter) Observe(ev models.Event) {
	select {
	case e.events <- ev:
		return
	default:
	}

	select {
	case e.events <- ev:
	case <-time.After(100 * time.Millisecond):
		e.dropped.Add(1)
	}
}

// Events returns the read side of the channel.
func (e *Emitter) Events() <-chan models.Event {
	return e.events
}

// Dropped returns how many events were discarded.
func (e *Emitter) Dropped() int64 {
	return e.dropped.Load()
}

// Close closes the channel. Call once the run has returned.
func (e *Emitter) Close() {
	close(e.events)
}
