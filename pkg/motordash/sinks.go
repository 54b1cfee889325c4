package motordash

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrChannelSinkClosed is returned when a channel sink is written to after being closed.
	ErrChannelSinkClosed = errors.New("motordash: channel sink closed")
	// ErrChannelSinkFull is returned when the reader is behind; the sample is dropped.
	ErrChannelSinkFull = errors.New("motordash: channel sink full")
)

// SampleSink receives every new sample polled by the runtime. WriteSample is
// called from the poll loop and must not block.
type SampleSink interface {
	WriteSample(s Sample) error
	Name() string
}

// SampleFunc handles one sample.
type SampleFunc func(s Sample) error

// NewCallbackSink adapts a SampleFunc into a SampleSink so callers can plug
// arbitrary functions without defining structs.
func NewCallbackSink(name string, fn SampleFunc) SampleSink {
	if name == "" {
		name = "callback"
	}
	return &callbackSink{name: name, fn: fn}
}

// NewChannelSink exposes samples via a channel; it returns the sink, the
// read-only channel, and a close function that the caller should invoke
// during shutdown. Samples are dropped, not queued, once buffer is full.
func NewChannelSink(name string, buffer int) (SampleSink, <-chan Sample, func()) {
	if name == "" {
		name = "channel"
	}
	if buffer < 1 {
		buffer = 1
	}
	s := &channelSink{name: name, ch: make(chan Sample, buffer)}
	return s, s.ch, s.close
}

type callbackSink struct {
	name string
	fn   SampleFunc
}

func (s *callbackSink) WriteSample(sample Sample) error {
	if s.fn == nil {
		return fmt.Errorf("callback sink %q: nil handler", s.name)
	}
	return s.fn(sample)
}

func (s *callbackSink) Name() string { return s.name }

type channelSink struct {
	name string

	mu     sync.RWMutex
	ch     chan Sample
	closed bool
}

func (s *channelSink) WriteSample(sample Sample) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrChannelSinkClosed
	}
	select {
	case s.ch <- sample:
		return nil
	default:
		return ErrChannelSinkFull
	}
}

func (s *channelSink) Name() string { return s.name }

func (s *channelSink) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}
