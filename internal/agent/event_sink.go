package agent

import "github.com/nexuscore/agentcore/pkg/models"

// EventSink receives one run's AgentEvent stream. Emit must preserve
// issue order and must not drop events under backpressure (spec.md §5):
// a slow consumer blocks the run's emitting goroutine rather than losing
// events, unlike the teacher's channel sinks which drop once their
// buffer fills.
type EventSink interface {
	Emit(e models.AgentEvent)
}

// ChannelSink is the default EventSink: a Go channel the loop writes to
// and the host reads from. buffer of 0 gives a fully synchronous
// handoff; a positive buffer only smooths bursts, it never becomes a
// license to drop.
type ChannelSink struct {
	ch chan models.AgentEvent
}

// NewChannelSink returns a ChannelSink backed by a channel of the given
// buffer size (0 is valid and means unbuffered).
func NewChannelSink(buffer int) *ChannelSink {
	if buffer < 0 {
		buffer = 0
	}
	return &ChannelSink{ch: make(chan models.AgentEvent, buffer)}
}

// Emit blocks until the event is delivered to the channel's buffer or
// an idle reader. It never drops.
func (s *ChannelSink) Emit(e models.AgentEvent) {
	s.ch <- e
}

// Events returns the read side of the sink's channel.
func (s *ChannelSink) Events() <-chan models.AgentEvent {
	return s.ch
}

// Close closes the underlying channel. The loop calls this exactly once,
// after its terminal event has been emitted.
func (s *ChannelSink) Close() {
	close(s.ch)
}
