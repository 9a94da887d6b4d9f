// Package bus publishes dashboard events to NATS.
package bus

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	SubjectConfigSaved    = "linedash.config.saved"
	SubjectConfigCleared  = "linedash.config.cleared"
	SubjectSchemaInferred = "linedash.schema.inferred"
)

var ErrNotConnected = errors.New("nats publisher is not connected")

type Notifier interface {
	Publish(subject string, payload any) error
}

type Publisher struct {
	Conn *nats.Conn
}

func NewPublisher(url string) (*Publisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("linedash-backend"),
		nats.Timeout(2*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, err
	}
	return &Publisher{Conn: conn}, nil
}

func (p *Publisher) Close() {
	if p.Conn != nil {
		p.Conn.Drain()
		p.Conn.Close()
	}
}

func (p *Publisher) Publish(subject string, payload any) error {
	if p == nil || p.Conn == nil {
		return ErrNotConnected
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return p.Conn.Publish(subject, data)
}

// Nop drops every event. It is used when no NATS URL is configured.
type Nop struct{}

func (Nop) Publish(string, any) error { return nil }
