package presence

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const onlineKey = "presence:online"

// decrScript 在计数归零时删除字段，HKEYS 只会列出在线用户。
var decrScript = redis.NewScript(`
local n = redis.call("HINCRBY", KEYS[1], ARGV[1], -1)
if n <= 0 then
  redis.call("HDEL", KEYS[1], ARGV[1])
end
return n
`)

// Redis 通过一个 user id -> 连接数 的 hash 在多个中继进程间共享在线状态。
type Redis struct {
	client *redis.Client
	key    string
}

func NewRedis(redisURL string) (*Redis, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &Redis{client: client, key: onlineKey}, nil
}

func (r *Redis) Connect(ctx context.Context, userID string) error {
	return r.client.HIncrBy(ctx, r.key, userID, 1).Err()
}

func (r *Redis) Disconnect(ctx context.Context, userID string) error {
	return decrScript.Run(ctx, r.client, []string{r.key}, userID).Err()
}

func (r *Redis) IsOnline(ctx context.Context, userID string) (bool, error) {
	v, err := r.client.HGet(ctx, r.key, userID).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return false, fmt.Errorf("presence count for %s: %w", userID, err)
	}
	return n > 0, nil
}

func (r *Redis) Online(ctx context.Context) ([]string, error) {
	ids, err := r.client.HKeys(ctx, r.key).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}

// Reset 清空全部计数，单实例部署启动时使用。
func (r *Redis) Reset(ctx context.Context) error {
	return r.client.Del(ctx, r.key).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}
