package gormstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"polyshadow/internal/store"
	storemodel "polyshadow/internal/store/model"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RegisterStrategy upserts the catalog row. It is non-critical: exhausted
// contention is logged and swallowed.
func (s *GormStore) RegisterStrategy(ctx context.Context, rec store.StrategyRecord) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("gorm store 未初始化")
	}
	now := s.now().Unix()
	m := storemodel.StrategyModel{
		Name:          rec.Name,
		IsLive:        rec.IsLive,
		ConfigJSON:    toJSON(rec.Config, "{}"),
		CreatedAtUnix: now,
		UpdatedAtUnix: now,
	}
	err := s.withRetry(ctx, "register strategy", func() error {
		return s.db.WithContext(ctx).
			Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "name"}},
				DoUpdates: clause.Assignments(map[string]interface{}{
					"is_live":     gorm.Expr("excluded.is_live"),
					"config_json": gorm.Expr("excluded.config_json"),
					"updated_at":  gorm.Expr("excluded.updated_at"),
				}),
			}).
			Create(&m).Error
	})
	if errors.Is(err, ErrBusyExhausted) {
		journalLog.Warnf("strategy %s not registered: %v", rec.Name, err)
		return nil
	}
	return err
}

// LogDecision stores the decision and its votes in one transaction. A repeat
// for the same (strategy, asset, epoch) returns the stored id and leaves the
// original votes untouched.
func (s *GormStore) LogDecision(ctx context.Context, rec store.DecisionRecord) (int64, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("gorm store 未初始化")
	}
	created := s.stamp(rec.CreatedAt)
	var id int64
	err := s.withRetry(ctx, "log decision", func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			m := storemodel.DecisionModel{
				Strategy:      rec.Strategy,
				Asset:         rec.Asset,
				Epoch:         rec.Epoch,
				TraceID:       rec.TraceID,
				ShouldTrade:   rec.ShouldTrade,
				Direction:     rec.Direction,
				Reason:        rec.Reason,
				WeightedScore: rec.WeightedScore,
				Confidence:    rec.Confidence,
				Vetoed:        rec.Vetoed,
				VetoReasons:   toJSON(rec.VetoReasons, "[]"),
				ContextJSON:   toJSON(rec.Context, "{}"),
				CreatedAtUnix: created,
			}
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&m)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				var existing storemodel.DecisionModel
				if err := tx.Select("id").
					Where("strategy = ? AND asset = ? AND epoch = ?", rec.Strategy, rec.Asset, rec.Epoch).
					Take(&existing).Error; err != nil {
					return err
				}
				id = existing.ID
				return nil
			}
			id = m.ID
			if len(rec.Votes) == 0 {
				return nil
			}
			votes := make([]storemodel.AgentVoteModel, 0, len(rec.Votes))
			for _, v := range rec.Votes {
				votes = append(votes, storemodel.AgentVoteModel{
					DecisionID:    m.ID,
					Agent:         v.Agent,
					Strategy:      rec.Strategy,
					Asset:         rec.Asset,
					Epoch:         rec.Epoch,
					Direction:     v.Direction,
					Confidence:    v.Confidence,
					Quality:       v.Quality,
					Weight:        v.Weight,
					Inverted:      v.Inverted,
					Reasoning:     v.Reasoning,
					Details:       toJSON(v.Details, "{}"),
					CreatedAtUnix: created,
				})
			}
			return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&votes).Error
		})
	})
	return id, err
}

// LogTrade inserts an executed trade idempotently.
func (s *GormStore) LogTrade(ctx context.Context, rec store.TradeRecord) (int64, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("gorm store 未初始化")
	}
	m := storemodel.TradeModel{
		DecisionID:    rec.DecisionID,
		Strategy:      rec.Strategy,
		Asset:         rec.Asset,
		Epoch:         rec.Epoch,
		Direction:     rec.Direction,
		EntryPrice:    rec.EntryPrice,
		Size:          rec.Size,
		Shares:        rec.Shares,
		Confidence:    rec.Confidence,
		WeightedScore: rec.WeightedScore,
		CreatedAtUnix: s.stamp(rec.CreatedAt),
	}
	return s.insertOnce(ctx, "log trade", &m, func() (int64, error) {
		return s.idByKey(ctx, &storemodel.TradeModel{}, rec.Strategy, rec.Asset, rec.Epoch)
	}, func() int64 { return m.ID })
}

// LogOutcome inserts the outcome and back-fills the trade row exactly once.
func (s *GormStore) LogOutcome(ctx context.Context, rec store.OutcomeRecord) (int64, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("gorm store 未初始化")
	}
	created := s.stamp(rec.CreatedAt)
	var id int64
	err := s.withRetry(ctx, "log outcome", func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var trade storemodel.TradeModel
			err := tx.Select("id").
				Where("strategy = ? AND asset = ? AND epoch = ?", rec.Strategy, rec.Asset, rec.Epoch).
				Take(&trade).Error
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			tradeID := rec.TradeID
			if tradeID == 0 {
				tradeID = trade.ID
			}
			m := storemodel.OutcomeModel{
				TradeID:         tradeID,
				Strategy:        rec.Strategy,
				Asset:           rec.Asset,
				Epoch:           rec.Epoch,
				Direction:       rec.Direction,
				ActualDirection: rec.ActualDirection,
				Won:             rec.Won,
				Payout:          rec.Payout,
				PnL:             rec.PnL,
				CreatedAtUnix:   created,
			}
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&m)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				var existing storemodel.OutcomeModel
				if err := tx.Select("id").
					Where("strategy = ? AND asset = ? AND epoch = ?", rec.Strategy, rec.Asset, rec.Epoch).
					Take(&existing).Error; err != nil {
					return err
				}
				id = existing.ID
				return nil
			}
			id = m.ID
			if trade.ID == 0 {
				return nil
			}
			return tx.Model(&storemodel.TradeModel{}).
				Where("id = ? AND outcome = ''", trade.ID).
				Updates(map[string]interface{}{
					"outcome":     rec.ActualDirection,
					"payout":      rec.Payout,
					"pnl":         rec.PnL,
					"resolved_at": created,
				}).Error
		})
	})
	return id, err
}

// LogMarketOutcome records the actual direction of (asset, epoch) once.
func (s *GormStore) LogMarketOutcome(ctx context.Context, rec store.MarketOutcomeRecord) (int64, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("gorm store 未初始化")
	}
	m := storemodel.MarketOutcomeModel{
		Asset:         rec.Asset,
		Epoch:         rec.Epoch,
		Direction:     rec.Direction,
		StartPrice:    rec.StartPrice,
		EndPrice:      rec.EndPrice,
		CreatedAtUnix: s.stamp(rec.CreatedAt),
	}
	return s.insertOnce(ctx, "log market outcome", &m, func() (int64, error) {
		var existing storemodel.MarketOutcomeModel
		err := s.db.WithContext(ctx).Select("id").
			Where("asset = ? AND epoch = ?", rec.Asset, rec.Epoch).
			Take(&existing).Error
		return existing.ID, err
	}, func() int64 { return m.ID })
}

// LogPerformance appends a snapshot row.
func (s *GormStore) LogPerformance(ctx context.Context, rec store.PerformanceRecord) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("gorm store 未初始化")
	}
	m := storemodel.PerformanceModel{
		Strategy:      rec.Strategy,
		Balance:       rec.Balance,
		TotalPnL:      rec.TotalPnL,
		Trades:        rec.Trades,
		Wins:          rec.Wins,
		Losses:        rec.Losses,
		WinRate:       rec.WinRate,
		ROI:           rec.ROI,
		OpenPositions: rec.OpenPositions,
		CreatedAtUnix: s.stamp(rec.CreatedAt),
	}
	return s.withRetry(ctx, "log performance", func() error {
		return s.db.WithContext(ctx).Create(&m).Error
	})
}

// LatestPerformance returns the most recent snapshot per strategy.
func (s *GormStore) LatestPerformance(ctx context.Context) ([]store.PerformanceRecord, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("gorm store 未初始化")
	}
	var rows []storemodel.PerformanceModel
	err := s.db.WithContext(ctx).
		Where("id IN (?)", s.db.Model(&storemodel.PerformanceModel{}).Select("MAX(id)").Group("strategy")).
		Order("strategy").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]store.PerformanceRecord, 0, len(rows))
	for _, m := range rows {
		out = append(out, store.PerformanceRecord{
			Strategy:      m.Strategy,
			Balance:       m.Balance,
			TotalPnL:      m.TotalPnL,
			Trades:        m.Trades,
			Wins:          m.Wins,
			Losses:        m.Losses,
			WinRate:       m.WinRate,
			ROI:           m.ROI,
			OpenPositions: m.OpenPositions,
			CreatedAt:     time.Unix(m.CreatedAtUnix, 0).UTC(),
		})
	}
	return out, nil
}

// insertOnce does INSERT ... ON CONFLICT DO NOTHING; when the row already
// exists it reads back the stored id.
func (s *GormStore) insertOnce(ctx context.Context, op string, row interface{}, lookup func() (int64, error), insertedID func() int64) (int64, error) {
	var id int64
	err := s.withRetry(ctx, op, func() error {
		res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(row)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			id = insertedID()
			return nil
		}
		existing, err := lookup()
		if err != nil {
			return err
		}
		id = existing
		return nil
	})
	return id, err
}

func (s *GormStore) idByKey(ctx context.Context, model interface{}, strategy, asset string, epoch int64) (int64, error) {
	var id int64
	err := s.db.WithContext(ctx).Model(model).
		Select("id").
		Where("strategy = ? AND asset = ? AND epoch = ?", strategy, asset, epoch).
		Limit(1).
		Scan(&id).Error
	if err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, gorm.ErrRecordNotFound
	}
	return id, nil
}

func (s *GormStore) stamp(t time.Time) int64 {
	if t.IsZero() {
		return s.now().Unix()
	}
	return t.Unix()
}

// toJSON marshals v for a JSON column; values that cannot be encoded are
// stored as fallback and logged.
func toJSON(v any, fallback string) datatypes.JSON {
	if v == nil {
		return datatypes.JSON(fallback)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		journalLog.Warnf("json column encode failed, storing %s: %v", fallback, err)
		return datatypes.JSON(fallback)
	}
	if string(raw) == "null" {
		return datatypes.JSON(fallback)
	}
	return datatypes.JSON(raw)
}
