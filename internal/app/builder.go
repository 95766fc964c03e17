package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"polyshadow/internal/config"
	"polyshadow/internal/decision"
	"polyshadow/internal/logger"
	"polyshadow/internal/pkg/circuit"
	"polyshadow/internal/resolver"
	"polyshadow/internal/shadow"
	"polyshadow/internal/store"
	"polyshadow/internal/store/gormstore"
	"polyshadow/internal/store/snapshots"
	"polyshadow/internal/strategy"
	shadowhttp "polyshadow/internal/transport/http/shadow"
)

type AppBuilder struct {
	cfg        *config.Config
	configPath string
	agents     []decision.Agent
	vetoes     []decision.VetoAgent
	now        func() time.Time

	catalogFn   func(path string) (*strategy.Catalog, error)
	journalFn   func(config.JournalConfig, func() time.Time) (*gormstore.GormStore, error)
	snapshotsFn func(config.SnapshotsConfig) (*snapshots.Store, error)
}

type AppBuilderOption func(*AppBuilder)

// WithAgents registers programmatic agents ahead of the context-fed ones.
func WithAgents(agents ...decision.Agent) AppBuilderOption {
	return func(b *AppBuilder) { b.agents = append(b.agents, agents...) }
}

func WithVetoAgents(vetoes ...decision.VetoAgent) AppBuilderOption {
	return func(b *AppBuilder) { b.vetoes = append(b.vetoes, vetoes...) }
}

func WithClock(now func() time.Time) AppBuilderOption {
	return func(b *AppBuilder) { b.now = now }
}

// WithConfigPath enables log-level hot reload from the given file.
func WithConfigPath(path string) AppBuilderOption {
	return func(b *AppBuilder) { b.configPath = strings.TrimSpace(path) }
}

func NewAppBuilder(cfg *config.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:         cfg,
		now:         time.Now,
		catalogFn:   loadCatalog,
		journalFn:   openJournal,
		snapshotsFn: openSnapshots,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func loadCatalog(path string) (*strategy.Catalog, error) {
	if path == "" {
		logger.Infof("shadow.catalog_path not set, using built-in strategy presets")
		return strategy.DefaultCatalog(), nil
	}
	return strategy.LoadCatalog(path)
}

func openJournal(cfg config.JournalConfig, now func() time.Time) (*gormstore.GormStore, error) {
	return gormstore.NewGormStore(cfg.Path, gormstore.Options{
		BusyRetries:  cfg.BusyRetries,
		BusyBackoff:  cfg.BusyBackoff(),
		MaxOpenConns: cfg.MaxOpenConns,
		Now:          now,
	})
}

func openSnapshots(cfg config.SnapshotsConfig) (*snapshots.Store, error) {
	return snapshots.Open(cfg.Path)
}

func (b *AppBuilder) Build(ctx context.Context) (_ *App, err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg
	if b.now == nil {
		b.now = time.Now
	}
	logger.SetLevel(cfg.App.LogLevel)

	catalog, err := b.catalogFn(cfg.Shadow.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("load strategy catalog: %w", err)
	}

	agents, vetoes := b.collectAgents()
	if len(agents) == 0 {
		return nil, fmt.Errorf("no agents configured: set engine.context_agents or register agents programmatically")
	}

	var closers []func() error
	defer func() {
		if err != nil {
			for i := len(closers) - 1; i >= 0; i-- {
				_ = closers[i]()
			}
		}
	}()

	journal, err := b.journalFn(cfg.Journal, b.now)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	closers = append(closers, journal.Close)

	var (
		snaps   *snapshots.Store
		archive store.SnapshotArchive
	)
	if cfg.Snapshots.Enabled {
		snaps, err = b.snapshotsFn(cfg.Snapshots)
		if err != nil {
			return nil, fmt.Errorf("open snapshots: %w", err)
		}
		closers = append(closers, snaps.Close)
		archive = snaps
	}

	factory := newEngineFactory(cfg.Engine, agents, vetoes, journal, b.now)
	orch, err := shadow.NewOrchestrator(ctx, catalog, factory, journal, shadow.Options{
		Strategy: shadow.StrategyOptions{
			InitialBalance:    cfg.Shadow.InitialBalance,
			PositionSize:      cfg.Shadow.PositionSizeUSD,
			DefaultEntryPrice: cfg.Shadow.DefaultEntryPrice,
		},
		RestoreMaxAge: cfg.Shadow.RestoreMaxAge(),
		Archive:       archive,
		Now:           b.now,
	})
	if err != nil {
		return nil, err
	}
	restored := orch.RestoreOpenPositions(ctx)

	var res *resolver.Resolver
	if cfg.Resolver.Enabled && snaps != nil {
		res, err = resolver.New(orch, snapshots.NewOutcomeSource(snaps), resolver.Config{
			Epoch:          cfg.Resolver.EpochDuration(),
			Offset:         cfg.Resolver.Offset(),
			LookbackEpochs: cfg.Resolver.LookbackEpochs,
			Now:            b.now,
		})
		if err != nil {
			return nil, err
		}
	}

	serverCfg := shadowhttp.ServerConfig{
		Addr:        cfg.App.HTTPAddr,
		Service:     orch,
		EpochLength: cfg.Resolver.EpochDuration(),
		Now:         b.now,
		Performance: journal,
	}
	if snaps != nil {
		serverCfg.Snapshots = snaps
	}
	server, err := shadowhttp.NewServer(serverCfg)
	if err != nil {
		return nil, err
	}

	return &App{
		cfg:          cfg,
		configPath:   b.configPath,
		now:          b.now,
		journal:      journal,
		snapshots:    snaps,
		orchestrator: orch,
		resolver:     res,
		http:         server,
		Summary:      newStartupSummary(cfg, catalog, agents, vetoes, restored),
	}, nil
}

// collectAgents returns programmatic agents followed by context-fed ones; a
// context agent whose name is already taken is skipped.
func (b *AppBuilder) collectAgents() ([]decision.Agent, []decision.VetoAgent) {
	agents := make([]decision.Agent, 0, len(b.agents)+len(b.cfg.Engine.ContextAgents))
	seen := make(map[string]bool)
	for _, a := range b.agents {
		if a == nil || seen[a.Name()] {
			continue
		}
		seen[a.Name()] = true
		agents = append(agents, a)
	}
	for _, name := range b.cfg.Engine.ContextAgents {
		if seen[name] {
			logger.Warnf("context agent %s shadows a registered agent, skipped", name)
			continue
		}
		seen[name] = true
		agents = append(agents, decision.ContextAgent{AgentName: name})
	}

	vetoes := append([]decision.VetoAgent(nil), b.vetoes...)
	for _, name := range b.cfg.Engine.ContextVetoes {
		vetoes = append(vetoes, decision.ContextVeto{AgentName: name})
	}
	return agents, vetoes
}

// newEngineFactory builds one engine per strategy over the shared agents.
// Each engine gets its own breaker set so one strategy's probes do not trip
// another's.
func newEngineFactory(ec config.EngineConfig, agents []decision.Agent, vetoes []decision.VetoAgent, accuracy decision.AccuracySource, now func() time.Time) shadow.EngineFactory {
	base := decision.EngineConfig{
		MinIndividualConfidence: ec.MinIndividualConfidence,
		MinAgents:               ec.MinAgents,
		Adaptive: decision.AdaptiveConfig{
			MinSamples:       ec.AccuracyMinSamples,
			RegimeMinSamples: ec.RegimeMinSamples,
			Lookback:         ec.AccuracyLookback(),
		},
		AgentTimeout:  ec.AgentTimeout(),
		BalanceWindow: ec.BalanceWindow,
		BiasThreshold: ec.BiasThreshold,
	}
	return func(sc strategy.Config) *decision.DecisionEngine {
		var breakers *circuit.Set
		if ec.BreakerThreshold > 0 {
			breakers = circuit.NewSet(ec.BreakerThreshold, ec.BreakerCooldown())
			breakers.SetClock(now)
		}
		return decision.NewDecisionEngine(sc.EngineConfig(base), decision.EngineDeps{
			Agents:     agents,
			VetoAgents: vetoes,
			Accuracy:   accuracy,
			Breakers:   breakers,
			Now:        now,
		})
	}
}
