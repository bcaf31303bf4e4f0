package lock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// unlockScript 仅在值与持有者一致时删除键.
const unlockScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

// Client Redis 锁所需的客户端能力，*redis.Client 与 *redis.ClusterClient 均满足.
type Client interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd
}

// Redis 基于 Redis 的分布式锁.
//
// 使用 SET NX PX 获取锁，值为持有者 ID；释放时通过脚本校验持有者.
type Redis struct {
	client    Client
	keyPrefix string
	ownerID   string
}

var _ Locker = (*Redis)(nil)

// RedisOption Redis 锁配置选项.
type RedisOption func(*Redis)

// WithKeyPrefix 设置锁键前缀.
//
// 默认 "scheduler:lock:".
func WithKeyPrefix(prefix string) RedisOption {
	return func(r *Redis) { r.keyPrefix = prefix }
}

// WithOwnerID 设置持有者 ID，默认自动生成 UUID.
func WithOwnerID(id string) RedisOption {
	return func(r *Redis) {
		if id != "" {
			r.ownerID = id
		}
	}
}

// NewRedis 创建 Redis 分布式锁，client 为空时 panic.
func NewRedis(client Client, opts ...RedisOption) *Redis {
	if client == nil {
		panic(ErrNilClient)
	}

	r := &Redis{
		client:    client,
		keyPrefix: "scheduler:lock:",
		ownerID:   uuid.NewString(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// TryLock 实现 Locker.
func (r *Redis) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return r.client.SetNX(ctx, r.keyPrefix+key, r.ownerID, ttl).Result()
}

// Unlock 实现 Locker.
func (r *Redis) Unlock(ctx context.Context, key string) error {
	n, err := r.client.Eval(ctx, unlockScript, []string{r.keyPrefix + key}, r.ownerID).Int64()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotHeld
	}
	return nil
}

// OwnerID 返回持有者 ID.
func (r *Redis) OwnerID() string {
	return r.ownerID
}
