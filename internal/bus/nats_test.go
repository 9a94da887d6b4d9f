package bus

import (
	"errors"
	"testing"
)

func TestPublisherWithoutConnection(t *testing.T) {
	var p *Publisher
	if err := p.Publish(SubjectConfigSaved, map[string]any{"table": "BathData"}); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
	if err := (&Publisher{}).Publish(SubjectConfigSaved, nil); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
}

func TestNop(t *testing.T) {
	var n Notifier = Nop{}
	if err := n.Publish(SubjectSchemaInferred, struct{}{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
