// internal/pkg/redis/client.go
package redis

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Client 封装 go-redis，统一超时与错误语义。
type Client struct {
	rdb *goredis.Client
}

// NewClient 创建 Redis 客户端并探活。
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &Client{rdb: rdb}, nil
}

// SetNX 写入带 TTL 的键，键已存在时返回 false。
func (c *Client) SetNX(ctx context.Context, key string, value string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, key, value, ttl).Result()
}

// Exists 判断键是否存在。
func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.rdb.Exists(ctx, key).Result()
	return n > 0, err
}

// Del 删除键。
func (c *Client) Del(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, key).Err()
}

// Close 关闭底层连接。
func (c *Client) Close() error {
	return c.rdb.Close()
}
