package composite

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"xcarry/internal/application/port"
	"xcarry/internal/domain/model"
)

var (
	_ port.PositionStore  = (*PositionStore)(nil)
	_ port.EventPublisher = (*Publisher)(nil)
)

// PositionStore 主存储 + 镜像（如 S3 备份）
// 主存储失败即失败；镜像失败只告警
type PositionStore struct {
	primary port.PositionStore
	mirrors []port.PositionStore
}

func NewPositionStore(primary port.PositionStore, mirrors ...port.PositionStore) *PositionStore {
	// nil mirrors are allowed
	out := make([]port.PositionStore, 0, len(mirrors))
	for _, m := range mirrors {
		if m != nil {
			out = append(out, m)
		}
	}
	return &PositionStore{primary: primary, mirrors: out}
}

func (s *PositionStore) Load(ctx context.Context) ([]*model.Position, error) {
	return s.primary.Load(ctx)
}

func (s *PositionStore) Save(ctx context.Context, positions []*model.Position) error {
	if err := s.primary.Save(ctx, positions); err != nil {
		return err
	}
	for i, m := range s.mirrors {
		if err := m.Save(ctx, positions); err != nil {
			log.Warn().Err(err).Int("mirror", i).Int("positions", len(positions)).Msg("mirror save failed")
		}
	}
	return nil
}

// Publisher 事件扇出，全部尝试，返回合并错误
type Publisher struct {
	pubs []port.EventPublisher
}

func NewPublisher(pubs ...port.EventPublisher) *Publisher {
	out := make([]port.EventPublisher, 0, len(pubs))
	for _, p := range pubs {
		if p != nil {
			out = append(out, p)
		}
	}
	return &Publisher{pubs: out}
}

func (p *Publisher) Len() int { return len(p.pubs) }

func (p *Publisher) Publish(ctx context.Context, ev model.PositionEvent) error {
	var errs []error
	for _, pub := range p.pubs {
		if err := pub.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
