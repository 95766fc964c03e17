// Package snapshots 保存每个 tick 的原始行情快照，并从快照推导 epoch 结果。
package snapshots

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"polyshadow/internal/logger"

	_ "modernc.org/sqlite"
)

var snapLog = logger.With("snapshots")

// Snapshot 是某个 asset@epoch 在 elapsed 秒时的一次行情。
type Snapshot struct {
	Asset          string         `json:"asset"`
	Epoch          int64          `json:"epoch"`
	ElapsedSeconds int64          `json:"elapsed_seconds"`
	Price          float64        `json:"price"`
	Raw            map[string]any `json:"raw,omitempty"`
	CreatedAt      int64          `json:"created_at"`
}

type Store struct {
	now func() time.Time

	mu sync.Mutex
	db *sql.DB
}

// Open 打开（或创建）快照库，单连接 WAL。
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("snapshot path 不能为空")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	snapLog.Debugf("snapshot store opened at %s", path)
	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func ensureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS snapshots (
			asset TEXT NOT NULL,
			epoch INTEGER NOT NULL,
			elapsed_seconds INTEGER NOT NULL,
			price REAL NOT NULL DEFAULT 0,
			raw TEXT NOT NULL DEFAULT '{}',
			created_at INTEGER NOT NULL,
			PRIMARY KEY (asset, epoch, elapsed_seconds)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_epoch ON snapshots(epoch)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("snapshot schema: %w", err)
		}
	}
	return nil
}

// Archive 写入一条快照，同一 (asset, epoch, elapsed) 后写覆盖前写。
func (s *Store) Archive(ctx context.Context, asset string, epoch, elapsed int64, price float64, raw map[string]any) error {
	asset = strings.TrimSpace(asset)
	if asset == "" {
		return fmt.Errorf("asset 不能为空")
	}
	payload := []byte("{}")
	if len(raw) > 0 {
		b, err := json.Marshal(raw)
		if err != nil {
			return fmt.Errorf("encode snapshot %s@%d: %w", asset, epoch, err)
		}
		payload = b
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return fmt.Errorf("snapshot store closed")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO snapshots (asset, epoch, elapsed_seconds, price, raw, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(asset, epoch, elapsed_seconds) DO UPDATE SET
		    price=excluded.price,
		    raw=excluded.raw,
		    created_at=excluded.created_at`,
		asset, epoch, elapsed, price, string(payload), s.now().Unix())
	return err
}

// List 返回 asset@epoch 的全部快照，按 elapsed 升序。
func (s *Store) List(ctx context.Context, asset string, epoch int64) ([]Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, fmt.Errorf("snapshot store closed")
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT asset, epoch, elapsed_seconds, price, raw, created_at
		FROM snapshots
		WHERE asset = ? AND epoch = ?
		ORDER BY elapsed_seconds ASC`, asset, epoch)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Snapshot
	for rows.Next() {
		var (
			snap Snapshot
			raw  string
		)
		if err := rows.Scan(&snap.Asset, &snap.Epoch, &snap.ElapsedSeconds, &snap.Price, &raw, &snap.CreatedAt); err != nil {
			return nil, err
		}
		if raw != "" && raw != "{}" {
			if err := json.Unmarshal([]byte(raw), &snap.Raw); err != nil {
				snapLog.Warnf("decode snapshot %s@%d+%d: %v", snap.Asset, snap.Epoch, snap.ElapsedSeconds, err)
			}
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// priceBounds 返回最早和最晚的有效价格以及有效价格条数。
func (s *Store) priceBounds(ctx context.Context, asset string, epoch int64) (start, end float64, n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return 0, 0, 0, fmt.Errorf("snapshot store closed")
	}
	const q = `
		SELECT
		    (SELECT price FROM snapshots WHERE asset = ? AND epoch = ? AND price > 0 ORDER BY elapsed_seconds ASC LIMIT 1),
		    (SELECT price FROM snapshots WHERE asset = ? AND epoch = ? AND price > 0 ORDER BY elapsed_seconds DESC LIMIT 1),
		    (SELECT COUNT(*) FROM snapshots WHERE asset = ? AND epoch = ? AND price > 0)`
	var first, last sql.NullFloat64
	if err := s.db.QueryRowContext(ctx, q, asset, epoch, asset, epoch, asset, epoch).Scan(&first, &last, &n); err != nil {
		return 0, 0, 0, err
	}
	return first.Float64, last.Float64, n, nil
}

// Prune 删除 epoch 早于 before 的快照。
func (s *Store) Prune(ctx context.Context, before int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return 0, fmt.Errorf("snapshot store closed")
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE epoch < ?`, before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
