package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	logx "remindbot/pkg/logx"
)

const (
	defaultRedisKey    = "remindbot:audit"
	defaultRedisMaxLen = 10000
)

// redisStore keeps the newest MaxLen entries as JSON in one Redis list.
type redisStore struct {
	client *redis.Client
	key    string
	maxLen int64
	log    logx.Logger
}

func openRedis(ctx context.Context, cfg Config, log logx.Logger) (Store, error) {
	rc := cfg.Redis
	if strings.TrimSpace(rc.Addr) == "" {
		return nil, errors.New("storage.redis.addr is required for redis driver")
	}
	client := redis.NewClient(&redis.Options{
		Addr:         rc.Addr,
		Password:     rc.Password,
		DB:           rc.DB,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	return newRedisStore(ctx, client, rc, log)
}

func newRedisStore(ctx context.Context, client *redis.Client, rc RedisConfig, log logx.Logger) (*redisStore, error) {
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	st := &redisStore{client: client, key: strings.TrimSpace(rc.Key), maxLen: rc.MaxLen, log: log}
	if st.key == "" {
		st.key = defaultRedisKey
	}
	if st.maxLen <= 0 {
		st.maxLen = defaultRedisMaxLen
	}
	log.Debug("redis audit store ready", logx.String("addr", rc.Addr), logx.String("key", st.key))
	return st, nil
}

func (s *redisStore) AppendAudit(ctx context.Context, e AuditEntry) error {
	e.normalize()
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, s.key, b)
	pipe.LTrim(ctx, s.key, -s.maxLen, -1)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *redisStore) RecentAudit(ctx context.Context, n int) ([]AuditEntry, error) {
	if n <= 0 {
		return nil, nil
	}
	vals, err := s.client.LRange(ctx, s.key, -int64(n), -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]AuditEntry, 0, len(vals))
	for _, v := range vals {
		var e AuditEntry
		if err := json.Unmarshal([]byte(v), &e); err != nil {
			s.log.Debug("skipping malformed audit entry", logx.Err(err))
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *redisStore) Close() error { return s.client.Close() }
