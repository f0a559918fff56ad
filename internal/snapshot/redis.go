package snapshot

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/playperu/monikers/internal/monikers"
)

// Redis stores the snapshot as a single string key, letting several
// coordinator processes share one room map.
type Redis struct {
	client    *redis.Client
	namespace string
}

func NewRedis(client *redis.Client, namespace string) *Redis {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &Redis{client: client, namespace: namespace}
}

func (r *Redis) Load(ctx context.Context) (map[string]*monikers.Room, error) {
	data, err := r.client.Get(ctx, r.namespace).Bytes()
	if errors.Is(err, redis.Nil) {
		return map[string]*monikers.Room{}, nil
	}
	if err != nil {
		return nil, err
	}
	return decode(data)
}

func (r *Redis) Save(ctx context.Context, rooms map[string]*monikers.Room) error {
	data, err := encode(rooms)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.namespace, data, 0).Err()
}

func (r *Redis) Check(ctx context.Context) error { return r.client.Ping(ctx).Err() }
