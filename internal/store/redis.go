package store

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net"
	"strings"

	"github.com/redis/go-redis/v9"

	"redirect-agent-backend/internal/config"
	"redirect-agent-backend/internal/conversation"
)

// RedisStore keeps each session as a Redis list of JSON-encoded messages.
// Writes run inside MULTI/EXEC so RPUSH and LTRIM apply atomically.
type RedisStore struct {
	client *redis.Client
	prefix string
	opts   Options
}

// NewRedisClient builds a client from the session configuration.
func NewRedisClient(cfg config.SessionConfig) *redis.Client {
	opts := &redis.Options{
		Addr:     net.JoinHostPort(cfg.RedisHost, cfg.RedisPort),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
	if cfg.RedisTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12, ServerName: cfg.RedisHost}
	}
	return redis.NewClient(opts)
}

func NewRedisStore(client *redis.Client, prefix string, opts Options) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, opts: opts}
}

func (r *RedisStore) key(sessionID string) string {
	return r.prefix + sessionID
}

func (r *RedisStore) Get(ctx context.Context, sessionID string) ([]conversation.Message, error) {
	vals, err := r.client.LRange(ctx, r.key(sessionID), 0, -1).Result()
	if isWrongType(err) {
		// a key of another type (such as a JSON string written by an older
		// deployment) reads as no history; the next Save replaces it
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis lrange: %w", err)
	}
	if len(vals) == 0 {
		return nil, nil
	}
	msgs := make([]conversation.Message, 0, len(vals))
	for _, v := range vals {
		var m conversation.Message
		if err := json.Unmarshal([]byte(v), &m); err != nil {
			return nil, fmt.Errorf("decode session %s: %w", sessionID, err)
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

func (r *RedisStore) Save(ctx context.Context, sessionID string, history []conversation.Message) error {
	if sessionID == "" {
		return ErrEmptySessionID
	}
	vals, err := encodeMessages(trim(history, r.opts.MaxMessages))
	if err != nil {
		return err
	}
	key := r.key(sessionID)
	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, key)
		if len(vals) > 0 {
			p.RPush(ctx, key, vals...)
			r.bound(ctx, p, key)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis save: %w", err)
	}
	return nil
}

func (r *RedisStore) Append(ctx context.Context, sessionID string, msgs ...conversation.Message) error {
	if sessionID == "" {
		return ErrEmptySessionID
	}
	if len(msgs) == 0 {
		return nil
	}
	vals, err := encodeMessages(msgs)
	if err != nil {
		return err
	}
	key := r.key(sessionID)
	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.RPush(ctx, key, vals...)
		r.bound(ctx, p, key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis append: %w", err)
	}
	return nil
}

// bound queues the window trim and the expiry refresh.
func (r *RedisStore) bound(ctx context.Context, p redis.Pipeliner, key string) {
	if r.opts.MaxMessages > 0 {
		p.LTrim(ctx, key, int64(-r.opts.MaxMessages), -1)
	}
	if r.opts.TTL > 0 {
		p.Expire(ctx, key, r.opts.TTL)
	}
}

func (r *RedisStore) Delete(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, r.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

func isWrongType(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "WRONGTYPE")
}

func encodeMessages(msgs []conversation.Message) ([]any, error) {
	vals := make([]any, 0, len(msgs))
	for _, m := range msgs {
		b, err := json.Marshal(m)
		if err != nil {
			return nil, fmt.Errorf("encode message: %w", err)
		}
		vals = append(vals, string(b))
	}
	return vals, nil
}
