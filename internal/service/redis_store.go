package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Redis key layout.
const (
	redisHashKey     = "eco:selection"
	redisRevisionKey = "eco:selection:rev"
	redisChannel     = "eco:selection:events"
)

// putScript writes one hash field, bumps the revision and announces the
// change in a single round trip. Writing the current value changes nothing.
var putScript = redis.NewScript(`
local prev = redis.call('HGET', KEYS[1], ARGV[1]) or ''
if prev == ARGV[2] then
	return {prev, tonumber(redis.call('GET', KEYS[2]) or '0'), 0}
end
if ARGV[2] == '' then
	redis.call('HDEL', KEYS[1], ARGV[1])
else
	redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
end
local rev = redis.call('INCR', KEYS[2])
redis.call('PUBLISH', KEYS[3], cjson.encode({key=ARGV[1], value=ARGV[2], previous=prev, revision=rev, origin=ARGV[3]}))
return {prev, rev, 1}
`)

// RedisStore shares the selection between server instances through a Redis
// hash and announces writes on a pub/sub channel.
type RedisStore struct {
	client *redis.Client
	origin string
	log    *slog.Logger
}

// NewRedisStore connects to redisURL and checks the connection.
func NewRedisStore(ctx context.Context, redisURL string, log *slog.Logger) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	if log == nil {
		log = slog.Default()
	}
	return &RedisStore{client: client, origin: uuid.NewString(), log: log}, nil
}

// Load reads the whole selection hash and its revision.
func (s *RedisStore) Load(ctx context.Context) (map[Key]string, uint64, error) {
	raw, err := s.client.HGetAll(ctx, redisHashKey).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("load selection: %w", err)
	}
	rev, err := s.client.Get(ctx, redisRevisionKey).Uint64()
	if err != nil && err != redis.Nil {
		return nil, 0, fmt.Errorf("load revision: %w", err)
	}

	values := make(map[Key]string, len(raw))
	for k, v := range raw {
		values[Key(k)] = v
	}
	return values, rev, nil
}

// Put writes one key atomically.
func (s *RedisStore) Put(ctx context.Context, key Key, value string) (Change, error) {
	res, err := putScript.Run(ctx, s.client,
		[]string{redisHashKey, redisRevisionKey, redisChannel},
		string(key), value, s.origin,
	).Slice()
	if err != nil {
		return Change{}, fmt.Errorf("put %s: %w", key, err)
	}
	if len(res) != 3 {
		return Change{}, fmt.Errorf("put %s: unexpected reply %v", key, res)
	}

	prev, _ := res[0].(string)
	rev, _ := res[1].(int64)
	changed, _ := res[2].(int64)
	return Change{Previous: prev, Revision: uint64(rev), Changed: changed == 1}, nil
}

// Watch delivers writes made by other instances until ctx is done.
func (s *RedisStore) Watch(ctx context.Context, fn func(Event)) error {
	sub := s.client.Subscribe(ctx, redisChannel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", redisChannel, err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				s.log.Warn("selection_event_decode_failed", "error", err)
				continue
			}
			if ev.Origin == s.origin {
				continue
			}
			fn(ev)
		}
	}
}

// Close closes the Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
