package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
)

// DefaultSubject is where finished games are published.
const DefaultSubject = "gomoku.games.finished"

// NATSPublisher publishes every finished game as a JSON HistoryRecord.
type NATSPublisher struct {
	nc      *nats.Conn
	subject string
}

func NewNATSPublisher(url, subject string) (*NATSPublisher, error) {
	if subject == "" {
		subject = DefaultSubject
	}
	nc, err := nats.Connect(url, nats.Name("gomoku-server"), nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &NATSPublisher{nc: nc, subject: subject}, nil
}

func (p *NATSPublisher) GameFinished(_ context.Context, rec HistoryRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return p.nc.Publish(p.subject, data)
}

func (p *NATSPublisher) Ping(context.Context) error {
	if !p.nc.IsConnected() {
		return errors.New("nats disconnected")
	}
	return nil
}

func (p *NATSPublisher) Close() error { return p.nc.Drain() }
