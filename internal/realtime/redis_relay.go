package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"snapify/pkg/logger"
)

// RedisRelay shares envelopes between instances over a Redis pub/sub channel.
type RedisRelay struct {
	rdb     *redis.Client
	channel string
	hub     *Hub
	log     *logger.Logger
}

// NewRedisRelay connects to url (redis://host:6379/0) and attaches to hub.
func NewRedisRelay(ctx context.Context, url, prefix string, hub *Hub) (*RedisRelay, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return newRedisRelay(rdb, prefix, hub), nil
}

func newRedisRelay(rdb *redis.Client, prefix string, hub *Hub) *RedisRelay {
	if prefix == "" {
		prefix = "snapify"
	}
	r := &RedisRelay{
		rdb:     rdb,
		channel: prefix + ":events",
		hub:     hub,
		log:     logger.Named("relay"),
	}
	hub.SetRelay(r)
	return r
}

func (r *RedisRelay) Forward(ctx context.Context, env Envelope) error {
	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return r.rdb.Publish(ctx, r.channel, b).Err()
}

// Run delivers envelopes published by other instances until ctx is done.
func (r *RedisRelay) Run(ctx context.Context) {
	pubsub := r.rdb.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	r.log.Info("listening on %s", r.channel)
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				r.log.Warn("subscription to %s closed", r.channel)
				return
			}
			r.handle(msg.Payload)
		}
	}
}

func (r *RedisRelay) handle(payload string) {
	var env Envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		r.log.Warn("bad envelope on %s: %v", r.channel, err)
		return
	}
	// Our own publishes were already delivered locally.
	if env.Origin == r.hub.Instance() {
		return
	}
	r.hub.Deliver(env)
}

func (r *RedisRelay) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

func (r *RedisRelay) Close() error {
	return r.rdb.Close()
}
