package motordash

import (
	"errors"
	"testing"
	"time"

	"github.com/ght123247/UIproj/internal/app/poller"
)

func TestNewCallbackSink(t *testing.T) {
	var received []Sample
	sink := NewCallbackSink("cb", func(s Sample) error {
		received = append(received, s)
		return nil
	})

	input := Sample{RPM: 2400, Torque: 1.5, HasMotor: true, ReceivedAt: time.Unix(1, 0)}
	if err := sink.WriteSample(input); err != nil {
		t.Fatalf("WriteSample returned error: %v", err)
	}
	if len(received) != 1 || received[0].RPM != 2400 || received[0].TorqueDisplay() != 1500 {
		t.Fatalf("unexpected samples %+v", received)
	}
	if sink.Name() != "cb" {
		t.Fatalf("unexpected name %q", sink.Name())
	}
}

func TestNewCallbackSinkNilHandler(t *testing.T) {
	sink := NewCallbackSink("", nil)
	if err := sink.WriteSample(Sample{}); err == nil {
		t.Fatalf("expected error when callback is nil")
	}
	if sink.Name() != "callback" {
		t.Fatalf("expected default name, got %q", sink.Name())
	}
}

func TestNewChannelSink(t *testing.T) {
	sink, ch, closeFn := NewChannelSink("chan", 1)
	defer closeFn()

	if err := sink.WriteSample(Sample{RPM: 1}); err != nil {
		t.Fatalf("WriteSample returned error: %v", err)
	}
	if err := sink.WriteSample(Sample{RPM: 2}); !errors.Is(err, ErrChannelSinkFull) {
		t.Fatalf("expected ErrChannelSinkFull, got %v", err)
	}
	if got := <-ch; got.RPM != 1 {
		t.Fatalf("expected the first sample to be kept, got %+v", got)
	}

	closeFn()
	if err := sink.WriteSample(Sample{RPM: 3}); !errors.Is(err, ErrChannelSinkClosed) {
		t.Fatalf("expected ErrChannelSinkClosed, got %v", err)
	}
	if _, ok := <-ch; ok {
		t.Fatalf("expected channel to be closed")
	}
}

func TestDeliverSkipsRepeatedState(t *testing.T) {
	var got []float64
	rt := &Runtime{
		obs: &stubObservability{},
		sinks: []SampleSink{
			NewCallbackSink("cb", func(s Sample) error {
				got = append(got, s.RPM)
				return nil
			}),
			NewCallbackSink("broken", func(Sample) error { return errors.New("boom") }),
		},
	}

	first := Sample{RPM: 100}
	second := Sample{RPM: 200}
	rt.deliver(poller.State{})
	rt.deliver(poller.State{Sample: &first, Seq: 1})
	// A failed poll re-publishes the retained sample with the same Seq.
	rt.deliver(poller.State{Sample: &first, Seq: 1})
	rt.deliver(poller.State{Sample: &second, Seq: 2})

	if len(got) != 2 || got[0] != 100 || got[1] != 200 {
		t.Fatalf("expected each sample once, got %v", got)
	}
}
