package shadowhttp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"polyshadow/internal/decision"
	"polyshadow/internal/market"
	"polyshadow/internal/shadow"
	"polyshadow/internal/store"
	"polyshadow/internal/store/snapshots"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) OnMarketData(ctx context.Context, asset string, epoch int64, mctx market.Context) ([]shadow.StrategyDecision, error) {
	args := m.Called(ctx, asset, epoch, mctx)
	res, _ := args.Get(0).([]shadow.StrategyDecision)
	return res, args.Error(1)
}

func (m *MockService) OnEpochResolution(ctx context.Context, asset string, epoch int64, outcome shadow.Outcome) ([]shadow.Resolution, error) {
	args := m.Called(ctx, asset, epoch, outcome)
	res, _ := args.Get(0).([]shadow.Resolution)
	return res, args.Error(1)
}

func (m *MockService) ComparisonReport() shadow.ComparisonReport {
	return m.Called().Get(0).(shadow.ComparisonReport)
}

func (m *MockService) StrategyDetail(name string, recent int) (shadow.StrategyDetail, bool) {
	args := m.Called(name, recent)
	return args.Get(0).(shadow.StrategyDetail), args.Bool(1)
}

type MockHistory struct {
	mock.Mock
}

func (m *MockHistory) LatestPerformance(ctx context.Context) ([]store.PerformanceRecord, error) {
	args := m.Called(ctx)
	res, _ := args.Get(0).([]store.PerformanceRecord)
	return res, args.Error(1)
}

func (m *MockHistory) List(ctx context.Context, asset string, epoch int64) ([]snapshots.Snapshot, error) {
	args := m.Called(ctx, asset, epoch)
	res, _ := args.Get(0).([]snapshots.Snapshot)
	return res, args.Error(1)
}

var fixedNow = time.Date(2026, 3, 1, 12, 7, 0, 0, time.UTC)

func newTestServer(t *testing.T, svc Service) http.Handler {
	t.Helper()
	srv, err := NewServer(ServerConfig{
		Service:     svc,
		EpochLength: 15 * time.Minute,
		Now:         func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	return srv.Handler()
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHealthz(t *testing.T) {
	h := newTestServer(t, new(MockService))
	w := do(h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestNewServer_RequiresService(t *testing.T) {
	_, err := NewServer(ServerConfig{})
	assert.Error(t, err)
}

func TestTick(t *testing.T) {
	svc := new(MockService)
	h := newTestServer(t, svc)

	svc.On("OnMarketData", mock.Anything, "BTC", int64(1700000100), market.Context{"price": 101.5, "regime": "trending"}).
		Return([]shadow.StrategyDecision{{Strategy: "beta", Executed: true, Decision: decision.TradeDecision{ShouldTrade: true, Direction: decision.DirectionUp}}}, nil)

	w := do(h, http.MethodPost, "/api/shadow/ticks", `{"asset":" btc ","epoch":1700000100,"context":{"price":101.5,"regime":"trending"}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "BTC", body["asset"])
	decisions := body["decisions"].([]any)
	require.Len(t, decisions, 1)
	first := decisions[0].(map[string]any)
	assert.Equal(t, "beta", first["strategy"])
	assert.Equal(t, true, first["executed"])
	assert.NotContains(t, body, "error")
}

func TestTick_DerivesEpochAndReportsJournalErrors(t *testing.T) {
	svc := new(MockService)
	h := newTestServer(t, svc)
	epoch := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC).Unix()
	svc.On("OnMarketData", mock.Anything, "ETH", epoch, mock.Anything).
		Return([]shadow.StrategyDecision{{Strategy: "beta"}}, errors.New("beta: log decision: locked"))

	w := do(h, http.MethodPost, "/api/shadow/ticks", `{"asset":"eth"}`)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, float64(epoch), body["epoch"])
	assert.Contains(t, body["error"], "locked")
}

func TestTick_BadRequests(t *testing.T) {
	svc := new(MockService)
	h := newTestServer(t, svc)
	assert.Equal(t, http.StatusBadRequest, do(h, http.MethodPost, "/api/shadow/ticks", `{`).Code)
	assert.Equal(t, http.StatusBadRequest, do(h, http.MethodPost, "/api/shadow/ticks", `{"epoch":5}`).Code)
	svc.AssertNotCalled(t, "OnMarketData", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestResolution(t *testing.T) {
	svc := new(MockService)
	h := newTestServer(t, svc)
	out := shadow.Outcome{Direction: decision.DirectionDown, StartPrice: 100, EndPrice: 99}
	svc.On("OnEpochResolution", mock.Anything, "BTC", int64(1700000100), out).
		Return([]shadow.Resolution{{Strategy: "beta", Actual: decision.DirectionDown}}, nil)

	w := do(h, http.MethodPost, "/api/shadow/resolutions", `{"asset":"BTC","epoch":1700000100,"direction":"down","start_price":100,"end_price":99}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "Down", body["direction"])
	assert.Len(t, body["resolutions"], 1)
}

func TestResolution_Errors(t *testing.T) {
	svc := new(MockService)
	h := newTestServer(t, svc)

	w := do(h, http.MethodPost, "/api/shadow/resolutions", `{"asset":"BTC","epoch":1700000100,"direction":"Neutral"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(h, http.MethodPost, "/api/shadow/resolutions", `{"asset":"BTC","direction":"Up"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	svc.On("OnEpochResolution", mock.Anything, "BTC", int64(1700000100), mock.Anything).
		Return(nil, errors.New("log market outcome: busy"))
	w = do(h, http.MethodPost, "/api/shadow/resolutions", `{"asset":"BTC","epoch":1700000100,"direction":"Up"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decode(t, w)
	assert.Equal(t, []any{}, body["resolutions"])
	assert.Contains(t, body["error"], "busy")
}

func TestReport(t *testing.T) {
	svc := new(MockService)
	h := newTestServer(t, svc)
	svc.On("ComparisonReport").Return(shadow.ComparisonReport{
		GeneratedAt: fixedNow,
		Strategies:  []shadow.StrategyReport{{Name: "alpha", Balance: 1020, ROI: 0.02}},
		BestByROI:   "alpha",
	})

	w := do(h, http.MethodGet, "/api/shadow/report", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "alpha", body["best_by_roi"])
	assert.NotContains(t, body, "best_by_win_rate")
	rows := body["strategies"].([]any)
	assert.Equal(t, 1020.0, rows[0].(map[string]any)["balance"])
}

func TestStrategy(t *testing.T) {
	svc := new(MockService)
	h := newTestServer(t, svc)
	svc.On("StrategyDetail", "beta", 5).Return(shadow.StrategyDetail{
		StrategyReport: shadow.StrategyReport{Name: "beta", Balance: 990, OpenPositions: 1},
	}, true)
	svc.On("StrategyDetail", "nope", 0).Return(shadow.StrategyDetail{}, false)

	w := do(h, http.MethodGet, "/api/shadow/strategies/beta?limit=5", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "beta", body["name"])
	assert.Equal(t, 990.0, body["balance"])

	w = do(h, http.MethodGet, "/api/shadow/strategies/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPerformanceAndSnapshots(t *testing.T) {
	hist := new(MockHistory)
	srv, err := NewServer(ServerConfig{Service: new(MockService), Performance: hist, Snapshots: hist})
	require.NoError(t, err)
	h := srv.Handler()

	hist.On("LatestPerformance", mock.Anything).Return([]store.PerformanceRecord{{Strategy: "alpha", Balance: 1010, Wins: 1}}, nil).Once()
	w := do(h, http.MethodGet, "/api/shadow/performance", "")
	require.Equal(t, http.StatusOK, w.Code)
	rows := decode(t, w)["performance"].([]any)
	require.Len(t, rows, 1)
	assert.Equal(t, "alpha", rows[0].(map[string]any)["strategy"])

	hist.On("LatestPerformance", mock.Anything).Return(nil, errors.New("locked")).Once()
	w = do(h, http.MethodGet, "/api/shadow/performance", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	hist.On("List", mock.Anything, "BTC", int64(900)).Return([]snapshots.Snapshot{{Asset: "BTC", Epoch: 900, ElapsedSeconds: 60, Price: 100}}, nil)
	w = do(h, http.MethodGet, "/api/shadow/snapshots/btc/900", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "BTC", body["asset"])
	assert.Len(t, body["snapshots"], 1)

	w = do(h, http.MethodGet, "/api/shadow/snapshots/BTC/soon", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	hist.AssertExpectations(t)
}

func TestPerformanceAndSnapshots_Disabled(t *testing.T) {
	h := newTestServer(t, new(MockService))
	assert.Equal(t, http.StatusNotFound, do(h, http.MethodGet, "/api/shadow/performance", "").Code)
	assert.Equal(t, http.StatusNotFound, do(h, http.MethodGet, "/api/shadow/snapshots/BTC/900", "").Code)
}
