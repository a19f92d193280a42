package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"xcarry/internal/application/port"
	"xcarry/internal/domain/model"
)

var (
	_ port.PositionStore = (*PositionStore)(nil)
	_ port.BalanceStore  = (*BalanceStore)(nil)
)

// PositionStore 持仓数组存成一个 JSON 文件（字段名记录）
type PositionStore struct {
	path string
	mu   sync.Mutex
}

func NewPositionStore(path string) *PositionStore {
	return &PositionStore{path: path}
}

// Load 文件不存在时返回空集合
func (s *PositionStore) Load(ctx context.Context) ([]*model.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var positions []*model.Position
	if err := readJSON(s.path, &positions); err != nil {
		return nil, err
	}
	if positions == nil {
		positions = []*model.Position{}
	}
	return positions, nil
}

func (s *PositionStore) Save(ctx context.Context, positions []*model.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if positions == nil {
		positions = []*model.Position{}
	}
	return writeJSONAtomic(s.path, positions)
}

// BalanceStore 余额历史 JSON 数组
type BalanceStore struct {
	path string
	mu   sync.Mutex
}

func NewBalanceStore(path string) *BalanceStore {
	return &BalanceStore{path: path}
}

func (s *BalanceStore) Load(ctx context.Context) ([]model.BalanceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *BalanceStore) load() ([]model.BalanceRecord, error) {
	var records []model.BalanceRecord
	if err := readJSON(s.path, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// Append 读取-追加-整体写回
func (s *BalanceStore) Append(ctx context.Context, rec model.BalanceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return err
	}
	records = append(records, rec)
	return writeJSONAtomic(s.path, records)
}

func readJSON(path string, v any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}
	if len(b) == 0 {
		return nil
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// writeJSONAtomic 先写同目录临时文件再 rename，中途失败不会破坏原文件
func writeJSONAtomic(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
