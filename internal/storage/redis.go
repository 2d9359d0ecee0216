package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is the hash holding profiles when no key is configured.
const DefaultRedisKey = "palletplan:profiles"

// RedisStorage keeps profiles in a single Redis hash of name -> JSON profile.
type RedisStorage struct {
	client redis.UniversalClient
	key    string
}

// NewRedisStorage wraps an existing client. An empty key selects DefaultRedisKey.
func NewRedisStorage(client redis.UniversalClient, key string) *RedisStorage {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStorage{client: client, key: key}
}

// Dial connects to addr, verifies the connection, and seeds the default
// profiles when the hash does not exist yet.
func Dial(ctx context.Context, addr, key string) (*RedisStorage, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}

	s := NewRedisStorage(client, key)
	if err := s.seed(ctx, DefaultProfiles()); err != nil {
		_ = client.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying client.
func (s *RedisStorage) Close() error {
	return s.client.Close()
}

// List returns every profile sorted by name.
func (s *RedisStorage) List(ctx context.Context) ([]Profile, error) {
	raw, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}

	out := make([]Profile, 0, len(raw))
	for name, data := range raw {
		p, err := decodeProfile(data)
		if err != nil {
			return nil, fmt.Errorf("decode profile %s: %w", name, err)
		}
		out = append(out, p)
	}
	return sortProfiles(out), nil
}

// Get returns the profile stored under name.
func (s *RedisStorage) Get(ctx context.Context, name string) (Profile, error) {
	data, err := s.client.HGet(ctx, s.key, NormalizeName(name)).Result()
	if errors.Is(err, redis.Nil) {
		return Profile{}, ErrProfileNotFound
	}
	if err != nil {
		return Profile{}, fmt.Errorf("get profile: %w", err)
	}
	return decodeProfile(data)
}

// Put validates and stores the profile, replacing any profile with the same name.
func (s *RedisStorage) Put(ctx context.Context, profile Profile) error {
	normalized, err := normalizeProfile(profile)
	if err != nil {
		return err
	}

	exists, err := s.client.HExists(ctx, s.key, normalized.Name).Result()
	if err != nil {
		return fmt.Errorf("check profile: %w", err)
	}
	if !exists {
		count, err := s.client.HLen(ctx, s.key).Result()
		if err != nil {
			return fmt.Errorf("count profiles: %w", err)
		}
		if count >= maxProfiles {
			return ErrTooManyProfiles
		}
	}

	data, err := json.Marshal(normalized)
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}
	if err := s.client.HSet(ctx, s.key, normalized.Name, data).Err(); err != nil {
		return fmt.Errorf("store profile: %w", err)
	}
	return nil
}

// Delete removes the profile stored under name.
func (s *RedisStorage) Delete(ctx context.Context, name string) error {
	removed, err := s.client.HDel(ctx, s.key, NormalizeName(name)).Result()
	if err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	if removed == 0 {
		return ErrProfileNotFound
	}
	return nil
}

func (s *RedisStorage) seed(ctx context.Context, profiles []Profile) error {
	n, err := s.client.Exists(ctx, s.key).Result()
	if err != nil {
		return fmt.Errorf("check profiles key: %w", err)
	}
	if n > 0 {
		return nil
	}
	for _, p := range profiles {
		data, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("encode profile: %w", err)
		}
		if err := s.client.HSetNX(ctx, s.key, p.Name, data).Err(); err != nil {
			return fmt.Errorf("seed profile %s: %w", p.Name, err)
		}
	}
	return nil
}

func decodeProfile(data string) (Profile, error) {
	var p Profile
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return Profile{}, err
	}
	return p, nil
}
