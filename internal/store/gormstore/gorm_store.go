package gormstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"polyshadow/internal/logger"
	"polyshadow/internal/store"
	storemodel "polyshadow/internal/store/model"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var journalLog = logger.With("journal")

const (
	DefaultBusyRetries  = 5
	DefaultBusyBackoff  = 500 * time.Millisecond
	DefaultMaxOpenConns = 2
)

// Options tunes contention handling. Zero values take the defaults.
type Options struct {
	BusyRetries  int
	BusyBackoff  time.Duration
	MaxOpenConns int
	Now          func() time.Time
}

func (o Options) withDefaults() Options {
	if o.BusyRetries <= 0 {
		o.BusyRetries = DefaultBusyRetries
	}
	if o.BusyBackoff <= 0 {
		o.BusyBackoff = DefaultBusyBackoff
	}
	if o.MaxOpenConns <= 0 {
		o.MaxOpenConns = DefaultMaxOpenConns
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// GormStore 是基于 Gorm + SQLite(WAL) 的交易日志。主循环与结算进程可同时读写同一文件。
type GormStore struct {
	db   *gorm.DB
	opts Options
}

var _ store.Journal = (*GormStore)(nil)

// NewGormStore 打开（必要时创建）日志文件并迁移表结构。
func NewGormStore(path string, opts Options) (*GormStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("gorm store: 日志路径不能为空")
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_synchronous=NORMAL&_txlock=immediate", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	models := []interface{}{
		&storemodel.StrategyModel{},
		&storemodel.DecisionModel{},
		&storemodel.TradeModel{},
		&storemodel.OutcomeModel{},
		&storemodel.MarketOutcomeModel{},
		&storemodel.AgentVoteModel{},
		&storemodel.PerformanceModel{},
	}
	if err := db.AutoMigrate(models...); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite + WAL: a couple of connections keep HTTP reads off the writer
	// without raising lock contention.
	sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	sqlDB.SetMaxIdleConns(opts.MaxOpenConns)
	return &GormStore{db: db, opts: opts}, nil
}

// Close closes the underlying database connection.
func (s *GormStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *GormStore) now() time.Time {
	return s.opts.Now()
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
