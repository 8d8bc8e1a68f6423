// Package fanout replicates room broadcasts to every gateway instance.
// Each instance tags what it publishes with its own id and ignores the
// echo, so a frame reaches each connection exactly once.
package fanout

import (
	"context"
	"encoding/json"
)

// Envelope is a room broadcast in transit between instances.
type Envelope struct {
	Room    string          `json:"room"`
	Event   string          `json:"event"`
	Data    json.RawMessage `json:"data,omitempty"`
	Exclude string          `json:"exclude,omitempty"`
	Origin  string          `json:"origin_instance_id"`
}

// Handler consumes envelopes published by other instances.
type Handler func(*Envelope)

// Adapter publishes envelopes to the other gateway instances.
type Adapter interface {
	Publish(ctx context.Context, env *Envelope) error
	Close() error
}

// Noop drops every envelope. Used for single-instance deployments and
// in tests.
type Noop struct{}

func (Noop) Publish(context.Context, *Envelope) error { return nil }
func (Noop) Close() error                             { return nil }
