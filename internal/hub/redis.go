package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"worshiplive/internal/logging"
	"worshiplive/internal/models"
)

const (
	redisChannelPrefix = "worshiplive:topic:"
	redisRetryDelay    = 2 * time.Second
)

// RedisBroker relays envelopes between hub instances over Redis pub/sub,
// one Redis channel per topic.
type RedisBroker struct {
	client *redis.Client
	log    zerolog.Logger
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func NewRedisBroker(ctx context.Context, cfg RedisConfig) (*RedisBroker, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return NewRedisBrokerFromClient(client), nil
}

func NewRedisBrokerFromClient(client *redis.Client) *RedisBroker {
	return &RedisBroker{client: client, log: logging.Component("hub.redis")}
}

func redisChannel(topic string) string {
	return redisChannelPrefix + topic
}

func (b *RedisBroker) Publish(ctx context.Context, env *models.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encoding envelope: %w", err)
	}
	if err := b.client.Publish(ctx, redisChannel(env.Topic), data).Err(); err != nil {
		return fmt.Errorf("publishing to redis: %w", err)
	}
	return nil
}

// Run subscribes to every topic channel and resubscribes after errors until
// ctx is done.
func (b *RedisBroker) Run(ctx context.Context, deliver func(*models.Envelope)) error {
	for {
		err := b.runSubscription(ctx, deliver)
		if ctx.Err() != nil {
			return nil
		}
		b.log.Warn().Err(err).Dur("retry_in", redisRetryDelay).Msg("redis subscription lost")
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(redisRetryDelay):
		}
	}
}

func (b *RedisBroker) runSubscription(ctx context.Context, deliver func(*models.Envelope)) error {
	sub := b.client.PSubscribe(ctx, redisChannelPrefix+"*")
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	b.log.Info().Msg("subscribed to redis topics")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("redis channel closed")
			}
			b.handleMessage(msg, deliver)
		}
	}
}

func (b *RedisBroker) handleMessage(msg *redis.Message, deliver func(*models.Envelope)) {
	var env models.Envelope
	if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
		b.log.Warn().Err(err).Str("channel", msg.Channel).Msg("invalid envelope from redis")
		return
	}
	topic := strings.TrimPrefix(msg.Channel, redisChannelPrefix)
	if env.Topic != topic {
		b.log.Warn().Str("channel", msg.Channel).Str(logging.FieldTopic, env.Topic).Msg("envelope topic does not match channel")
		return
	}
	deliver(&env)
}

func (b *RedisBroker) Close() error {
	return b.client.Close()
}
