package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const changeChannelPrefix = "storage:"

// RedisStorage provides durable key-value storage on Redis.
// Keys are written without expiry.
type RedisStorage struct {
	client *redis.Client
}

// NewRedisStorage creates a new RedisStorage instance
func NewRedisStorage(redisURL string) (*RedisStorage, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	// 只记录地址，不记录完整 URL（可能包含密码）
	log.Info().Str("addr", opt.Addr).Msg("✅ Redis connected")

	return &RedisStorage{client: client}, nil
}

// Client exposes the underlying client so metrics can share the connection
func (s *RedisStorage) Client() *redis.Client {
	return s.client
}

// Get retrieves a value
func (s *RedisStorage) Get(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("redis get error: %w", err)
	}
	return val, nil
}

// Set stores a value
func (s *RedisStorage) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("redis set error: %w", err)
	}
	return nil
}

// Delete removes a value
func (s *RedisStorage) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del error: %w", err)
	}
	return nil
}

// Publish announces a change of key to every subscriber
func (s *RedisStorage) Publish(ctx context.Context, key, payload string) error {
	if err := s.client.Publish(ctx, changeChannelPrefix+key, payload).Err(); err != nil {
		return fmt.Errorf("redis publish error: %w", err)
	}
	return nil
}

// Subscribe returns the change announcements for key until ctx ends
func (s *RedisStorage) Subscribe(ctx context.Context, key string) (<-chan string, error) {
	sub := s.client.Subscribe(ctx, changeChannelPrefix+key)
	// wait for the subscription to be confirmed
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("redis subscribe error: %w", err)
	}

	out := make(chan string)
	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- msg.Payload:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Close closes the Redis connection
func (s *RedisStorage) Close() error {
	return s.client.Close()
}
