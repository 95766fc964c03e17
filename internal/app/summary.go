package app

import (
	"fmt"
	"strings"

	"polyshadow/internal/config"
	"polyshadow/internal/decision"
	"polyshadow/internal/shadow"
	"polyshadow/internal/strategy"
)

type StartupSummary struct {
	HTTPAddr   string
	Journal    string
	Snapshots  string
	Resolver   ResolverSummary
	Live       string
	Strategies []StrategyLine
	Agents     []string
	Vetoes     []string
	Restored   shadow.RestoreReport
}

type StrategyLine struct {
	Name               string
	ConsensusThreshold float64
	MinConfidence      float64
	Adaptive           bool
	Regime             bool
}

type ResolverSummary struct {
	Enabled  bool
	Epoch    string
	Offset   string
	Lookback int
}

func newStartupSummary(cfg *config.Config, catalog *strategy.Catalog, agents []decision.Agent, vetoes []decision.VetoAgent, restored shadow.RestoreReport) *StartupSummary {
	s := &StartupSummary{
		HTTPAddr: cfg.App.HTTPAddr,
		Journal:  cfg.Journal.Path,
		Resolver: ResolverSummary{
			Enabled:  cfg.Resolver.Enabled && cfg.Snapshots.Enabled,
			Epoch:    cfg.Resolver.EpochDuration().String(),
			Offset:   cfg.Resolver.Offset().String(),
			Lookback: cfg.Resolver.LookbackEpochs,
		},
		Restored: restored,
	}
	if cfg.Snapshots.Enabled {
		s.Snapshots = cfg.Snapshots.Path
	}
	if live, ok := catalog.Live(); ok {
		s.Live = live.Name
	}
	for _, sc := range catalog.Shadow() {
		s.Strategies = append(s.Strategies, StrategyLine{
			Name:               sc.Name,
			ConsensusThreshold: sc.ConsensusThreshold,
			MinConfidence:      sc.MinConfidence,
			Adaptive:           sc.AdaptiveWeights,
			Regime:             sc.RegimeAdjustment,
		})
	}
	for _, a := range agents {
		s.Agents = append(s.Agents, a.Name())
	}
	for _, v := range vetoes {
		s.Vetoes = append(s.Vetoes, v.Name())
	}
	return s
}

func (s *StartupSummary) Print() {
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("%*s\n", 40+len("启动配置摘要 (STARTUP SUMMARY)")/2, "启动配置摘要 (STARTUP SUMMARY)")
	fmt.Println(strings.Repeat("=", 80))

	fmt.Println("[存储 (STORAGE)]")
	fmt.Printf("  交易日志: %s\n", s.Journal)
	fmt.Printf("  行情快照: %s\n", orDash(s.Snapshots))
	fmt.Printf("  HTTP 地址: %s\n", s.HTTPAddr)
	fmt.Println()

	fmt.Println("[结算 (RESOLVER)]")
	if !s.Resolver.Enabled {
		fmt.Println("  (未启用)")
	} else {
		fmt.Printf("  周期: %s  偏移: %s  回看: %d\n", s.Resolver.Epoch, s.Resolver.Offset, s.Resolver.Lookback)
	}
	fmt.Println()

	fmt.Println("[Agent 配置 (AGENTS)]")
	fmt.Printf("  投票: %s\n", formatList(s.Agents))
	fmt.Printf("  否决: %s\n", formatList(s.Vetoes))
	fmt.Println()

	fmt.Println("[策略 (STRATEGIES)]")
	fmt.Printf("  实盘: %s (不参与影子交易)\n", orDash(s.Live))
	if len(s.Strategies) == 0 {
		fmt.Println("  (无影子策略)")
	}
	for _, st := range s.Strategies {
		fmt.Printf("  > %-14s threshold=%.2f min_conf=%.2f adaptive=%t regime=%t\n",
			st.Name, st.ConsensusThreshold, st.MinConfidence, st.Adaptive, st.Regime)
	}
	fmt.Println()

	fmt.Println("[持仓恢复 (RESTORE)]")
	fmt.Printf("  %s\n", s.Restored)
	fmt.Println(strings.Repeat("=", 80))
}

func formatList(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
