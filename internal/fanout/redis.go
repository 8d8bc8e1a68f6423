package fanout

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/eduline/chat-gateway/pkg/log"
)

// Redis carries broadcasts between gateway instances over a single
// pub/sub channel. Every instance subscribes; envelopes carrying this
// instance's own id are dropped on receipt.
type Redis struct {
	client     *redis.Client
	channel    string
	instanceID string
	doneCh     chan struct{}
}

func NewRedis(client *redis.Client, channel, instanceID string) *Redis {
	if channel == "" {
		channel = "chat:fanout"
	}
	return &Redis{
		client:     client,
		channel:    channel,
		instanceID: instanceID,
		doneCh:     make(chan struct{}),
	}
}

// Publish sends an envelope to the other instances. The envelope is
// stamped with this instance's id so the echo can be discarded.
func (r *Redis) Publish(ctx context.Context, env *Envelope) error {
	env.Origin = r.instanceID
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, r.channel, string(data)).Err()
}

func (r *Redis) Close() error {
	return nil
}

// Done returns a channel that is closed when Run() exits.
func (r *Redis) Done() <-chan struct{} { return r.doneCh }

// Run subscribes to the fanout channel and hands remote envelopes to
// the handler until ctx is done. Reconnects on receive errors.
func (r *Redis) Run(ctx context.Context, handler Handler) {
	defer close(r.doneCh)
	l := log.Component("fanout")

	for {
		select {
		case <-ctx.Done():
			return
		default:
			if err := r.runSubscription(ctx, handler); err != nil && ctx.Err() == nil {
				l.Warn().Err(err).Msg("fanout subscription error, reconnecting in 2s")
				select {
				case <-ctx.Done():
					return
				case <-time.After(2 * time.Second):
					continue
				}
			}
			return
		}
	}
}

func (r *Redis) runSubscription(ctx context.Context, handler Handler) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	// Wait for subscription to be active
	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}

	return r.consume(ctx, pubsub.Channel(), handler)
}

// consume drains the subscription until ctx is done. A channel that
// closes while ctx is still live is a broken subscription and is
// reported as an error so the caller resubscribes.
func (r *Redis) consume(ctx context.Context, ch <-chan *redis.Message, handler Handler) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return errors.New("subscription channel closed")
			}
			r.handleMessage(msg.Payload, handler)
		}
	}
}

func (r *Redis) handleMessage(payload string, handler Handler) {
	l := log.Component("fanout")

	var env Envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		l.Warn().Err(err).Msg("fanout: invalid payload")
		return
	}
	if env.Origin == r.instanceID {
		return
	}
	if env.Event == "" {
		return
	}
	handler(&env)
}
