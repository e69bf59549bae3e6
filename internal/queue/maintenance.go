package queue

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

const maintenanceKey = "clicksprout:maintenance"

// RedisMaintenanceFlag keeps the engine's maintenance switch in Redis so the
// API process and every asynq worker see the same value
type RedisMaintenanceFlag struct {
	rdb *redis.Client
}

func NewRedisMaintenanceFlag(rdb *redis.Client) *RedisMaintenanceFlag {
	return &RedisMaintenanceFlag{rdb: rdb}
}

func (f *RedisMaintenanceFlag) SetMaintenance(ctx context.Context, enabled bool) error {
	if !enabled {
		return f.rdb.Del(ctx, maintenanceKey).Err()
	}
	return f.rdb.Set(ctx, maintenanceKey, "1", 0).Err()
}

func (f *RedisMaintenanceFlag) Maintenance(ctx context.Context) (bool, error) {
	err := f.rdb.Get(ctx, maintenanceKey).Err()
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, redis.Nil):
		return false, nil
	default:
		return false, err
	}
}
