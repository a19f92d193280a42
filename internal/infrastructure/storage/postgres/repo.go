package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"xcarry/internal/application/port"
	"xcarry/internal/domain/model"
)

var (
	_ port.PositionStore  = (*PositionStore)(nil)
	_ port.BalanceStore   = (*BalanceStore)(nil)
	_ port.EventPublisher = (*EventLog)(nil)
)

type Repo struct {
	db *sql.DB
}

func New(dsn string) (*Repo, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	r := &Repo{db: db}
	if err := r.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Repo) Close() error { return r.db.Close() }

func (r *Repo) Positions() *PositionStore { return &PositionStore{db: r.db} }
func (r *Repo) Balances() *BalanceStore   { return &BalanceStore{db: r.db} }
func (r *Repo) Events() *EventLog         { return &EventLog{db: r.db} }

func (r *Repo) migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS carry_positions (
  id TEXT PRIMARY KEY,
  seq INTEGER NOT NULL,
  status TEXT NOT NULL,
  perp_symbol TEXT NOT NULL,
  future_symbol TEXT NOT NULL,
  payload JSONB NOT NULL,
  updated_at BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_carry_positions_status ON carry_positions(status);

CREATE TABLE IF NOT EXISTS balance_history (
  id BIGSERIAL PRIMARY KEY,
  ts_ms BIGINT NOT NULL,
  total DOUBLE PRECISION NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_balance_ts ON balance_history(ts_ms);

CREATE TABLE IF NOT EXISTS position_events (
  id BIGSERIAL PRIMARY KEY,
  ts_ms BIGINT NOT NULL,
  type TEXT NOT NULL,
  position_id TEXT NOT NULL,
  symbol TEXT NOT NULL,
  payload TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_ts ON position_events(ts_ms);
`)
	return err
}

type PositionStore struct {
	db *sql.DB
}

func (s *PositionStore) Load(ctx context.Context) ([]*model.Position, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM carry_positions ORDER BY seq ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	positions := make([]*model.Position, 0)
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var p model.Position
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, fmt.Errorf("decode position: %w", err)
		}
		positions = append(positions, &p)
	}
	return positions, rows.Err()
}

// Save 事务内整体替换
func (s *PositionStore) Save(ctx context.Context, positions []*model.Position) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM carry_positions`); err != nil {
		return err
	}

	now := time.Now().UnixMilli()
	for i, p := range positions {
		if p == nil {
			continue
		}
		payload, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("encode position %s: %w", p.ID, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO carry_positions(id, seq, status, perp_symbol, future_symbol, payload, updated_at)
			VALUES($1, $2, $3, $4, $5, $6, $7)
		`, p.ID, i, string(p.Status), p.PerpSymbol, p.FutureSymbol, string(payload), now)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

type BalanceStore struct {
	db *sql.DB
}

func (s *BalanceStore) Load(ctx context.Context) ([]model.BalanceRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT ts_ms, total FROM balance_history ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []model.BalanceRecord
	for rows.Next() {
		var ts int64
		var total float64
		if err := rows.Scan(&ts, &total); err != nil {
			return nil, err
		}
		records = append(records, model.BalanceRecord{Timestamp: time.UnixMilli(ts).UTC(), Total: total})
	}
	return records, rows.Err()
}

func (s *BalanceStore) Append(ctx context.Context, rec model.BalanceRecord) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO balance_history(ts_ms, total) VALUES($1, $2)`, rec.Timestamp.UnixMilli(), rec.Total)
	return err
}

type EventLog struct {
	db *sql.DB
}

func (l *EventLog) Publish(ctx context.Context, ev model.PositionEvent) error {
	_, err := l.db.ExecContext(ctx, `INSERT INTO position_events(ts_ms, type, position_id, symbol, payload) VALUES($1, $2, $3, $4, $5)`,
		ev.Timestamp, string(ev.Type), ev.PositionID, ev.Symbol, ev.Payload)
	return err
}
