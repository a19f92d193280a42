package service

import (
	"context"
	"encoding/json"

	"xcarry/internal/application/port"
	"xcarry/internal/domain/model"
)

// NopPublisher 未配置 redis 时使用
type NopPublisher struct{}

var _ port.EventPublisher = NopPublisher{}

func (NopPublisher) Publish(ctx context.Context, ev model.PositionEvent) error { return nil }

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
