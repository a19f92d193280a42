package redis

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"xcarry/internal/application/port"
	"xcarry/internal/domain/model"
)

var _ port.EventPublisher = (*Repo)(nil)

// Repo 生命周期事件发布：stream 留档 + pubsub 推送 + 每个合约最新事件
type Repo struct {
	rdb         *redis.Client
	prefix      string
	ttl         time.Duration
	keyLatest   string // prefix + ":latest"
	eventStream string
	eventChan   string
}

func New(rdb *redis.Client, prefix string, ttl time.Duration) *Repo {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "xcarry"
	}
	return &Repo{
		rdb:         rdb,
		prefix:      prefix,
		ttl:         ttl,
		keyLatest:   prefix + ":latest",
		eventStream: prefix + ":events",
		eventChan:   prefix + ":events:pub",
	}
}

func (r *Repo) Close() error { return r.rdb.Close() }

// Ping 启动时检查连通性
func (r *Repo) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

func (r *Repo) Publish(ctx context.Context, ev model.PositionEvent) error {
	// 1) Stream: XADD <stream> * type position_id symbol payload
	_, err := r.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: r.eventStream,
		Values: map[string]any{
			"ts_ms":       ev.Timestamp,
			"type":        string(ev.Type),
			"position_id": ev.PositionID,
			"symbol":      ev.Symbol,
			"payload":     ev.Payload,
		},
	}).Result()
	if err != nil {
		return err
	}

	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	// 2) PubSub + 最新事件 hash（field = symbol）
	pipe := r.rdb.Pipeline()
	pipe.Publish(ctx, r.eventChan, string(b))
	if ev.Symbol != "" {
		pipe.HSet(ctx, r.keyLatest, ev.Symbol, string(b))
		if r.ttl > 0 {
			pipe.Expire(ctx, r.keyLatest, r.ttl)
		}
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (r *Repo) StreamKey() string  { return r.eventStream }
func (r *Repo) ChannelKey() string { return r.eventChan }
func (r *Repo) LatestKey() string  { return r.keyLatest }
