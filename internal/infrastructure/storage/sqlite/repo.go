package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

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

func New(path string) (*Repo, error) {
	// ensure directory exists
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		_ = os.MkdirAll(dir, 0o755)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	r := &Repo{db: db}
	if err := r.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Repo) Close() error { return r.db.Close() }

func (r *Repo) GetDB() *sql.DB {
	return r.db
}

func (r *Repo) Positions() *PositionStore { return &PositionStore{db: r.db} }
func (r *Repo) Balances() *BalanceStore   { return &BalanceStore{db: r.db} }
func (r *Repo) Events() *EventLog         { return &EventLog{db: r.db} }

func (r *Repo) migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS positions (
  id TEXT PRIMARY KEY,
  seq INTEGER NOT NULL,
  status TEXT NOT NULL,
  perp_symbol TEXT NOT NULL,
  future_symbol TEXT NOT NULL,
  payload TEXT NOT NULL,
  updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_positions_status ON positions(status);
CREATE INDEX IF NOT EXISTS idx_positions_perp ON positions(perp_symbol);

CREATE TABLE IF NOT EXISTS balance_history (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  ts_ms INTEGER NOT NULL,
  total REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_balance_ts ON balance_history(ts_ms);

CREATE TABLE IF NOT EXISTS position_events (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  ts_ms INTEGER NOT NULL,
  type TEXT NOT NULL,
  position_id TEXT NOT NULL,
  symbol TEXT NOT NULL,
  payload TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_ts ON position_events(ts_ms);
CREATE INDEX IF NOT EXISTS idx_events_position ON position_events(position_id);
`)
	return err
}

// PositionStore 每个持仓一行，payload 为完整 JSON 记录
type PositionStore struct {
	db *sql.DB
}

func (s *PositionStore) Load(ctx context.Context) ([]*model.Position, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM positions ORDER BY seq ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	positions := make([]*model.Position, 0)
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var p model.Position
		if err := json.Unmarshal([]byte(payload), &p); err != nil {
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

	if _, err := tx.ExecContext(ctx, `DELETE FROM positions`); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO positions(id, seq, status, perp_symbol, future_symbol, payload, updated_at)
		VALUES(?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UnixMilli()
	for i, p := range positions {
		if p == nil {
			continue
		}
		payload, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("encode position %s: %w", p.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, p.ID, i, string(p.Status), p.PerpSymbol, p.FutureSymbol, string(payload), now); err != nil {
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
	_, err := s.db.ExecContext(ctx, `INSERT INTO balance_history(ts_ms, total) VALUES(?, ?)`, rec.Timestamp.UnixMilli(), rec.Total)
	return err
}

// EventLog 生命周期事件落库（本地审计）
type EventLog struct {
	db *sql.DB
}

func (l *EventLog) Publish(ctx context.Context, ev model.PositionEvent) error {
	_, err := l.db.ExecContext(ctx, `INSERT INTO position_events(ts_ms, type, position_id, symbol, payload) VALUES(?, ?, ?, ?, ?)`,
		ev.Timestamp, string(ev.Type), ev.PositionID, ev.Symbol, ev.Payload)
	return err
}

// Recent 最近 n 条事件，按时间倒序
func (l *EventLog) Recent(ctx context.Context, n int) ([]model.PositionEvent, error) {
	if n <= 0 {
		n = 50
	}
	rows, err := l.db.QueryContext(ctx, `SELECT ts_ms, type, position_id, symbol, payload FROM position_events ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.PositionEvent
	for rows.Next() {
		var ev model.PositionEvent
		var typ string
		if err := rows.Scan(&ev.Timestamp, &typ, &ev.PositionID, &ev.Symbol, &ev.Payload); err != nil {
			return nil, err
		}
		ev.Type = model.EventType(typ)
		out = append(out, ev)
	}
	return out, rows.Err()
}
