package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"petlink-go/internal/auth"
	"petlink-go/internal/config"
)

const blacklistKeyPrefix = "petlink:revoked-jti:"

// NewClient 根据配置创建 Redis 客户端并检查连通性。
func NewClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("连接 Redis 失败 (%s): %w", cfg.Addr, err)
	}
	return client, nil
}

type tokenBlacklist struct {
	client redis.Cmdable
}

// NewTokenBlacklist returns a Redis-backed auth.TokenBlacklist.
func NewTokenBlacklist(client redis.Cmdable) auth.TokenBlacklist {
	return &tokenBlacklist{client: client}
}

// Add stores jti until expiresAt. Already-expired tokens are ignored since
// signature validation rejects them anyway.
func (b *tokenBlacklist) Add(ctx context.Context, jti string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	if err := b.client.Set(ctx, blacklistKeyPrefix+jti, 1, ttl).Err(); err != nil {
		return fmt.Errorf("吊销 JTI %s 失败: %w", jti, err)
	}
	return nil
}

func (b *tokenBlacklist) IsBlacklisted(ctx context.Context, jti string) (bool, error) {
	err := b.client.Get(ctx, blacklistKeyPrefix+jti).Err()
	switch {
	case errors.Is(err, redis.Nil):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("查询 JTI %s 吊销状态失败: %w", jti, err)
	}
	return true, nil
}
