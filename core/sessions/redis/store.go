// Package redis stores chat session ids in Redis.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/koscakluka/ema-tutor/core/sessions"
)

const DefaultPrefix = "ema:chat-session:"

type Store struct {
	client *goredis.Client
	prefix string
	ttl    time.Duration
}

type StoreOption func(*Store)

func WithPrefix(prefix string) StoreOption {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// WithTTL expires stored sessions. Zero keeps them forever.
func WithTTL(ttl time.Duration) StoreOption {
	return func(s *Store) {
		s.ttl = ttl
	}
}

func NewStore(client *goredis.Client, opts ...StoreOption) *Store {
	s := &Store{client: client, prefix: DefaultPrefix}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dial connects to addr and verifies the connection.
func Dial(ctx context.Context, addr string, password string, db int, opts ...StoreOption) (*Store, error) {
	client := goredis.NewClient(&goredis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis PING %s: %w", addr, err)
	}
	return NewStore(client, opts...), nil
}

func (s *Store) Load(ctx context.Context, key string) (string, error) {
	redisKey := s.prefix + key
	sessionID, err := s.client.Get(ctx, redisKey).Result()
	if errors.Is(err, goredis.Nil) {
		return "", sessions.ErrNotFound
	} else if err != nil {
		return "", fmt.Errorf("redis GET %s: %w", redisKey, err)
	}
	return sessionID, nil
}

func (s *Store) Save(ctx context.Context, key string, sessionID string) error {
	redisKey := s.prefix + key
	if err := s.client.Set(ctx, redisKey, sessionID, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis SET %s: %w", redisKey, err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}
