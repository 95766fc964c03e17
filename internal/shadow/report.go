package shadow

import (
	"sort"
	"time"

	"polyshadow/internal/pkg/money"
	"polyshadow/internal/strategy"
)

// StrategyReport is one row of the comparison report.
type StrategyReport struct {
	Name           string  `json:"name"`
	Balance        float64 `json:"balance"`
	InitialBalance float64 `json:"initial_balance"`
	PnL            float64 `json:"pnl"`
	Trades         int     `json:"trades"`
	Wins           int     `json:"wins"`
	Losses         int     `json:"losses"`
	WinRate        float64 `json:"win_rate"`
	ROI            float64 `json:"roi"`
	OpenPositions  int     `json:"open_positions"`
	Bias           bool    `json:"bias"`
}

// ComparisonReport ranks all shadow strategies.
type ComparisonReport struct {
	GeneratedAt   time.Time        `json:"generated_at"`
	Strategies    []StrategyReport `json:"strategies"`
	BestByROI     string           `json:"best_by_roi,omitempty"`
	BestByWinRate string           `json:"best_by_win_rate,omitempty"`
}

func reportRow(st Stats) StrategyReport {
	return StrategyReport{
		Name:           st.Name,
		Balance:        money.ToFloat(st.Balance.Round(2)),
		InitialBalance: money.ToFloat(st.InitialBalance),
		PnL:            money.ToFloat(st.PnL.Round(2)),
		Trades:         st.Trades,
		Wins:           st.Wins,
		Losses:         st.Losses,
		WinRate:        st.WinRate,
		ROI:            st.ROI,
		OpenPositions:  st.OpenPositions,
		Bias:           st.Bias,
	}
}

// ComparisonReport lists strategies by name and picks the best by ROI and by
// win rate. Ties go to the lexically smaller name; a strategy with no
// resolved trades cannot win on win rate.
func (o *Orchestrator) ComparisonReport() ComparisonReport {
	rows := make([]StrategyReport, 0, len(o.strategies))
	for _, s := range o.strategies {
		rows = append(rows, reportRow(s.Stats()))
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Name < rows[j].Name })

	rep := ComparisonReport{GeneratedAt: o.now().UTC(), Strategies: rows}
	var bestROI, bestWR *StrategyReport
	for i := range rows {
		r := &rows[i]
		if bestROI == nil || r.ROI > bestROI.ROI {
			bestROI = r
		}
		if r.Wins+r.Losses == 0 {
			continue
		}
		if bestWR == nil || r.WinRate > bestWR.WinRate {
			bestWR = r
		}
	}
	if bestROI != nil {
		rep.BestByROI = bestROI.Name
	}
	if bestWR != nil {
		rep.BestByWinRate = bestWR.Name
	}
	return rep
}

// StrategyDetail is the per-strategy view served over HTTP.
type StrategyDetail struct {
	StrategyReport
	Config       strategy.Config `json:"config"`
	Positions    []Position      `json:"positions"`
	RecentTrades []TradeRecord   `json:"recent_trades"`
}

// StrategyDetail returns the book of one strategy with up to recent trades
// (DefaultRecentTrades when recent <= 0).
func (o *Orchestrator) StrategyDetail(name string, recent int) (StrategyDetail, bool) {
	s, ok := o.byName[name]
	if !ok {
		return StrategyDetail{}, false
	}
	if recent <= 0 {
		recent = DefaultRecentTrades
	}
	return StrategyDetail{
		StrategyReport: reportRow(s.Stats()),
		Config:         s.Config(),
		Positions:      s.OpenPositions(),
		RecentTrades:   s.History(recent),
	}, true
}
