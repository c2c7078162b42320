package services

import (
	"context"
	"errors"
	"testing"

	"github.com/desertthunder/renderkit/internal/shared"
	tu "github.com/desertthunder/renderkit/internal/testing"
)

func TestMQTTService(t *testing.T) {
	cfg := shared.MQTTConfig{Broker: "tcp://127.0.0.1:1883", TopicBase: "home/audio", ClientID: "test"}

	t.Run("Topics", func(t *testing.T) {
		if got := StateTopic("home/audio/", "r1"); got != "home/audio/r1/state" {
			t.Errorf("StateTopic() = %s", got)
		}
		if got := QueueTopic("home/audio", "+"); got != "home/audio/+/queue" {
			t.Errorf("QueueTopic() = %s", got)
		}
	})

	t.Run("HandleMessage", func(t *testing.T) {
		t.Run("State", func(t *testing.T) {
			sink := &tu.PushRecorder{}
			svc := NewMQTTService(cfg, sink, nil)

			if err := svc.HandleMessage("home/audio/r1/state", []byte(`{"name":"Kitchen","volume":12}`)); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(sink.States) != 1 || sink.States[0].ID != "r1" || sink.States[0].Volume != 12 {
				t.Errorf("unexpected states: %+v", sink.States)
			}
		})

		t.Run("Queue", func(t *testing.T) {
			sink := &tu.PushRecorder{}
			svc := NewMQTTService(cfg, sink, nil)

			if err := svc.HandleMessage("home/audio/r1/queue", []byte(`[{"id":"e1","title":"So What"}]`)); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := sink.Queues["r1"]; len(got) != 1 || got[0].ID != "e1" {
				t.Errorf("unexpected queue: %+v", got)
			}

			if err := svc.HandleMessage("home/audio/r2/queue", []byte(`null`)); err != nil {
				t.Fatal(err)
			}
			if got := sink.Queues["r2"]; got == nil || len(got) != 0 {
				t.Errorf("expected empty queue, got %+v", got)
			}
		})

		t.Run("Mismatched Renderer", func(t *testing.T) {
			svc := NewMQTTService(cfg, &tu.PushRecorder{}, nil)
			err := svc.HandleMessage("home/audio/r1/state", []byte(`{"id":"r2"}`))
			if !errors.Is(err, shared.ErrMalformedResponse) {
				t.Errorf("expected ErrMalformedResponse, got %v", err)
			}
		})

		t.Run("Bad Payload", func(t *testing.T) {
			svc := NewMQTTService(cfg, &tu.PushRecorder{}, nil)
			if err := svc.HandleMessage("home/audio/r1/state", []byte(`{`)); !errors.Is(err, shared.ErrMalformedResponse) {
				t.Errorf("expected ErrMalformedResponse, got %v", err)
			}
		})

		t.Run("Foreign Topics", func(t *testing.T) {
			svc := NewMQTTService(cfg, &tu.PushRecorder{}, nil)
			for _, topic := range []string{"other/r1/state", "home/audio/r1/volume", "home/audio//state"} {
				if err := svc.HandleMessage(topic, []byte(`{}`)); !errors.Is(err, shared.ErrInvalidInput) {
					t.Errorf("%s: expected ErrInvalidInput, got %v", topic, err)
				}
			}
		})

		t.Run("Sink Errors Propagate", func(t *testing.T) {
			sink := &tu.PushRecorder{Err: shared.ErrRendererNotFound}
			svc := NewMQTTService(cfg, sink, nil)
			if err := svc.HandleMessage("home/audio/r9/state", []byte(`{}`)); !errors.Is(err, shared.ErrRendererNotFound) {
				t.Errorf("expected ErrRendererNotFound, got %v", err)
			}
		})
	})

	t.Run("Connect Requires Broker", func(t *testing.T) {
		svc := NewMQTTService(shared.MQTTConfig{}, nil, nil)
		if err := svc.Connect(context.Background()); !errors.Is(err, shared.ErrMissingConfig) {
			t.Errorf("expected ErrMissingConfig, got %v", err)
		}
	})

	t.Run("Publish Requires Connection", func(t *testing.T) {
		svc := NewMQTTService(cfg, nil, nil)
		if err := svc.PublishQueue("r1", nil); !errors.Is(err, shared.ErrSourceUnavailable) {
			t.Errorf("expected ErrSourceUnavailable, got %v", err)
		}
	})
}
