package preferences

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix = "store-service:preferences:"

	maxUpdateAttempts = 10
)

// RedisStore keeps each user's preferences as one JSON value.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a store on client. A ttl of zero keeps values forever;
// otherwise every save refreshes the expiry.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

// NewRedisClient opens a client from a redis:// URL.
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	return redis.NewClient(opts), nil
}

// Ping tests the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, userID string) (*Preferences, error) {
	if userID == "" {
		return nil, ErrEmptyUserID
	}

	prefs, err := decode(s.client.Get(ctx, key(userID)))
	if err != nil {
		return nil, fmt.Errorf("failed to load preferences for %s: %w", userID, err)
	}
	return prefs, nil
}

func (s *RedisStore) Save(ctx context.Context, userID string, prefs *Preferences) error {
	if userID == "" {
		return ErrEmptyUserID
	}
	if prefs == nil {
		prefs = empty()
	}

	data, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("failed to encode preferences for %s: %w", userID, err)
	}
	if err := s.client.Set(ctx, key(userID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save preferences for %s: %w", userID, err)
	}
	return nil
}

// Update reads, mutates and writes the user's value inside a WATCH
// transaction, starting over when another client changed the key first.
func (s *RedisStore) Update(ctx context.Context, userID string, mutate func(*Preferences)) (*Preferences, error) {
	if userID == "" {
		return nil, ErrEmptyUserID
	}

	k := key(userID)
	var updated *Preferences
	txf := func(tx *redis.Tx) error {
		prefs, err := decode(tx.Get(ctx, k))
		if err != nil {
			return err
		}
		mutate(prefs)

		data, err := json.Marshal(prefs)
		if err != nil {
			return fmt.Errorf("encode: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, k, data, s.ttl)
			return nil
		})
		if err == nil {
			updated = prefs
		}
		return err
	}

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		err := s.client.Watch(ctx, txf, k)
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return nil, fmt.Errorf("failed to update preferences for %s: %w", userID, err)
		}
	}
	return nil, fmt.Errorf("failed to update preferences for %s: %w", userID, ErrConflict)
}

func (s *RedisStore) Delete(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrEmptyUserID
	}
	if err := s.client.Del(ctx, key(userID)).Err(); err != nil {
		return fmt.Errorf("failed to delete preferences for %s: %w", userID, err)
	}
	return nil
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

func key(userID string) string {
	return keyPrefix + userID
}

// decode turns a GET reply into preferences; a missing key is empty.
func decode(cmd *redis.StringCmd) (*Preferences, error) {
	data, err := cmd.Bytes()
	if errors.Is(err, redis.Nil) {
		return empty(), nil
	}
	if err != nil {
		return nil, err
	}

	prefs := empty()
	if err := json.Unmarshal(data, prefs); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if prefs.RecentSearches == nil {
		prefs.RecentSearches = []RecentSearch{}
	}
	return prefs, nil
}
