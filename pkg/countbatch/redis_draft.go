package countbatch

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const draftKeyPrefix = "stockaudit:draft:"

// RedisDraftStore guarda los borradores en un hash de Redis por campaña
// (campo = id del ítem, valor = texto crudo). Sobrevive a reinicios del cliente.
type RedisDraftStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisDraftStore construye el store. ttl > 0 expira el hash tras ese tiempo sin ediciones.
func NewRedisDraftStore(client *redis.Client, ttl time.Duration) *RedisDraftStore {
	return &RedisDraftStore{client: client, ttl: ttl}
}

// NewRedisClient crea el cliente con la misma convención de dirección que el resto del stack
// ("host:port" o "redis://host:port").
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	opts := &redis.Options{Addr: addr, Password: password, DB: db}
	if parsed, err := redis.ParseURL(addr); err == nil {
		opts = parsed
		if password != "" {
			opts.Password = password
		}
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

func draftKey(campaignID string) string { return draftKeyPrefix + campaignID }

func (s *RedisDraftStore) Save(ctx context.Context, campaignID, itemID, raw string) error {
	key := draftKey(campaignID)
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, itemID, raw)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	return nil
}

func (s *RedisDraftStore) Delete(ctx context.Context, campaignID string, itemIDs ...string) error {
	if len(itemIDs) == 0 {
		return nil
	}
	if err := s.client.HDel(ctx, draftKey(campaignID), itemIDs...).Err(); err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	return nil
}

func (s *RedisDraftStore) Load(ctx context.Context, campaignID string) (map[string]string, error) {
	m, err := s.client.HGetAll(ctx, draftKey(campaignID)).Result()
	if err != nil {
		return nil, fmt.Errorf("load drafts: %w", err)
	}
	return m, nil
}
