package shadowhttp

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"polyshadow/internal/decision"
	"polyshadow/internal/market"
	"polyshadow/internal/scheduler"
	"polyshadow/internal/shadow"
	"polyshadow/internal/store"
	"polyshadow/internal/store/snapshots"

	"github.com/gin-gonic/gin"
)

// Service 由 shadow.Orchestrator 实现。
type Service interface {
	OnMarketData(ctx context.Context, asset string, epoch int64, mctx market.Context) ([]shadow.StrategyDecision, error)
	OnEpochResolution(ctx context.Context, asset string, epoch int64, outcome shadow.Outcome) ([]shadow.Resolution, error)
	ComparisonReport() shadow.ComparisonReport
	StrategyDetail(name string, recent int) (shadow.StrategyDetail, bool)
}

// PerformanceSource 提供日志库中每个策略最新的绩效快照。
type PerformanceSource interface {
	LatestPerformance(ctx context.Context) ([]store.PerformanceRecord, error)
}

// SnapshotSource 提供已归档的 tick。
type SnapshotSource interface {
	List(ctx context.Context, asset string, epoch int64) ([]snapshots.Snapshot, error)
}

type Router struct {
	svc      Service
	perf     PerformanceSource
	snaps    SnapshotSource
	epochLen time.Duration
	now      func() time.Time
}

func NewRouter(cfg ServerConfig) *Router {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Router{
		svc:      cfg.Service,
		perf:     cfg.Performance,
		snaps:    cfg.Snapshots,
		epochLen: cfg.EpochLength,
		now:      cfg.Now,
	}
}

// Register 将 /api/shadow 路由挂载到给定分组下。
func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.POST("/ticks", r.handleTick)
	group.POST("/resolutions", r.handleResolution)
	group.GET("/report", r.handleReport)
	group.GET("/strategies/:name", r.handleStrategy)
	group.GET("/performance", r.handlePerformance)
	group.GET("/snapshots/:asset/:epoch", r.handleSnapshots)
}

type tickRequest struct {
	Asset   string         `json:"asset"`
	Epoch   int64          `json:"epoch"`
	Context map[string]any `json:"context"`
}

type resolutionRequest struct {
	Asset      string  `json:"asset"`
	Epoch      int64   `json:"epoch"`
	Direction  string  `json:"direction"`
	StartPrice float64 `json:"start_price"`
	EndPrice   float64 `json:"end_price"`
}

func (r *Router) handleTick(c *gin.Context) {
	var req tickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json: " + err.Error()})
		return
	}
	req.Asset = strings.ToUpper(strings.TrimSpace(req.Asset))
	if req.Asset == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "asset is required"})
		return
	}
	if req.Epoch <= 0 {
		if r.epochLen <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "epoch is required"})
			return
		}
		req.Epoch = scheduler.EpochStart(r.now(), r.epochLen)
	}
	decisions, err := r.svc.OnMarketData(c.Request.Context(), req.Asset, req.Epoch, market.Context(req.Context))
	resp := gin.H{"asset": req.Asset, "epoch": req.Epoch, "decisions": decisions}
	if err != nil {
		// decisions were still made; journal failures are reported alongside
		httpLog.Warnf("tick %s@%d: %v", req.Asset, req.Epoch, err)
		resp["error"] = err.Error()
	}
	c.JSON(http.StatusOK, resp)
}

func (r *Router) handleResolution(c *gin.Context) {
	var req resolutionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json: " + err.Error()})
		return
	}
	req.Asset = strings.ToUpper(strings.TrimSpace(req.Asset))
	if req.Asset == "" || req.Epoch <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "asset and epoch are required"})
		return
	}
	dir, ok := decision.ParseDirection(req.Direction)
	if !ok || !dir.Directional() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "direction must be Up or Down"})
		return
	}
	res, err := r.svc.OnEpochResolution(c.Request.Context(), req.Asset, req.Epoch, shadow.Outcome{
		Direction:  dir,
		StartPrice: req.StartPrice,
		EndPrice:   req.EndPrice,
	})
	if res == nil {
		res = []shadow.Resolution{}
	}
	resp := gin.H{"asset": req.Asset, "epoch": req.Epoch, "direction": dir, "resolutions": res}
	if err != nil {
		resp["error"] = err.Error()
		c.JSON(http.StatusInternalServerError, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (r *Router) handleReport(c *gin.Context) {
	c.JSON(http.StatusOK, r.svc.ComparisonReport())
}

func (r *Router) handleStrategy(c *gin.Context) {
	name := strings.TrimSpace(c.Param("name"))
	recent, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if recent > 500 {
		recent = 500
	}
	detail, ok := r.svc.StrategyDetail(name, recent)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown strategy " + name})
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (r *Router) handlePerformance(c *gin.Context) {
	if r.perf == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "performance history not available"})
		return
	}
	rows, err := r.perf.LatestPerformance(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if rows == nil {
		rows = []store.PerformanceRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"performance": rows})
}

func (r *Router) handleSnapshots(c *gin.Context) {
	if r.snaps == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "snapshot archive disabled"})
		return
	}
	asset := strings.ToUpper(strings.TrimSpace(c.Param("asset")))
	epoch, err := strconv.ParseInt(c.Param("epoch"), 10, 64)
	if asset == "" || err != nil || epoch <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "asset and numeric epoch are required"})
		return
	}
	rows, err := r.snaps.List(c.Request.Context(), asset, epoch)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if rows == nil {
		rows = []snapshots.Snapshot{}
	}
	c.JSON(http.StatusOK, gin.H{"asset": asset, "epoch": epoch, "snapshots": rows})
}
