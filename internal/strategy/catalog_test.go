package strategy

import (
	"os"
	"path/filepath"
	"testing"

	"polyshadow/internal/decision"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCatalog(t *testing.T) {
	t.Run("keeps order and splits live", func(t *testing.T) {
		cat, err := NewCatalog(
			Config{Name: "b", ConsensusThreshold: 0.4, MinConfidence: 0.4},
			Config{Name: "live", ConsensusThreshold: 0.4, MinConfidence: 0.4, IsLive: true},
			Config{Name: "a", ConsensusThreshold: 0.4, MinConfidence: 0.4},
		)
		require.NoError(t, err)
		assert.Equal(t, []string{"b", "live", "a"}, cat.Names())
		shadow := cat.Shadow()
		require.Len(t, shadow, 2)
		assert.Equal(t, "b", shadow[0].Name)
		assert.Equal(t, "a", shadow[1].Name)
		live, ok := cat.Live()
		assert.True(t, ok)
		assert.Equal(t, "live", live.Name)
	})
	t.Run("duplicate", func(t *testing.T) {
		_, err := NewCatalog(Config{Name: "x"}, Config{Name: " x "})
		assert.ErrorIs(t, err, ErrDuplicateStrategy)
	})
	t.Run("two live", func(t *testing.T) {
		_, err := NewCatalog(Config{Name: "x", IsLive: true}, Config{Name: "y", IsLive: true})
		assert.ErrorIs(t, err, ErrMultipleLive)
	})
	t.Run("invalid", func(t *testing.T) {
		_, err := NewCatalog(Config{Name: "x", MinConfidence: 1.5})
		assert.Error(t, err)
		_, err = NewCatalog(Config{Name: ""})
		assert.Error(t, err)
	})
}

func TestCatalog_IsImmutable(t *testing.T) {
	weights := map[string]float64{"tech": 2}
	cat, err := NewCatalog(Config{Name: "x", AgentWeights: weights})
	require.NoError(t, err)
	weights["tech"] = 0

	got, err := cat.Get("x")
	require.NoError(t, err)
	assert.Equal(t, 2.0, got.Weight("tech"))
	got.AgentWeights["tech"] = -5

	again, _ := cat.Get("x")
	assert.Equal(t, 2.0, again.Weight("tech"))
	assert.Equal(t, 1.0, again.Weight("unknown"))

	_, err = cat.Get("missing")
	assert.ErrorIs(t, err, ErrUnknownStrategy)
}

func TestCatalog_Select(t *testing.T) {
	cat := DefaultCatalog()
	sub, err := cat.Select("contrarian", "default")
	require.NoError(t, err)
	assert.Equal(t, []string{"default", "contrarian"}, sub.Names())

	_, err = cat.Select("nope")
	assert.ErrorIs(t, err, ErrUnknownStrategy)
}

func TestDefaultCatalog(t *testing.T) {
	cat := DefaultCatalog()
	live, ok := cat.Live()
	require.True(t, ok)
	assert.Equal(t, "live", live.Name)
	assert.Len(t, cat.Shadow(), cat.Len()-1)

	contrarian, err := cat.Get("contrarian")
	require.NoError(t, err)
	assert.Less(t, contrarian.Weight("tech"), 0.0)
}

func TestConfig_EngineConfig(t *testing.T) {
	base := decision.EngineConfig{MinAgents: 3, MinIndividualConfidence: 0.3}
	cfg := Config{
		Name:               "s",
		ConsensusThreshold: 0.5,
		MinConfidence:      0.6,
		AgentWeights:       map[string]float64{"a": -1},
		AdaptiveWeights:    true,
	}
	ec := cfg.EngineConfig(base)
	assert.Equal(t, "s", ec.Name)
	assert.Equal(t, 3, ec.MinAgents)
	assert.Equal(t, 0.5, ec.ConsensusThreshold)
	assert.Equal(t, 0.6, ec.MinConfidence)
	assert.Equal(t, 0.3, ec.MinIndividualConfidence)
	assert.True(t, ec.AdaptiveWeights)
	assert.Equal(t, -1.0, ec.AgentWeights["a"])
}

func writeCatalog(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "strategies.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadCatalog(t *testing.T) {
	t.Run("shipped file", func(t *testing.T) {
		cat, err := LoadCatalog(filepath.Join("..", "..", "configs", "strategies.yaml"))
		require.NoError(t, err)
		assert.Equal(t, "live", cat.Names()[0])
		ns, err := cat.Get("no_sentiment")
		require.NoError(t, err)
		assert.Equal(t, 0.0, ns.Weight("sentiment"))
		assert.Equal(t, 5.0, ns.PositionSize)
	})
	t.Run("unknown field", func(t *testing.T) {
		path := writeCatalog(t, "strategies:\n  - name: x\n    consensus_threshold: 0.4\n    min_confidence: 0.4\n    threshold: 1\n")
		_, err := LoadCatalog(path)
		assert.Error(t, err)
	})
	t.Run("schema violation", func(t *testing.T) {
		path := writeCatalog(t, "strategies:\n  - name: x\n    consensus_threshold: 0.4\n    min_confidence: 4\n")
		_, err := LoadCatalog(path)
		assert.ErrorContains(t, err, "invalid")
	})
	t.Run("missing required", func(t *testing.T) {
		path := writeCatalog(t, "strategies:\n  - name: x\n")
		_, err := LoadCatalog(path)
		assert.Error(t, err)
	})
	t.Run("empty", func(t *testing.T) {
		path := writeCatalog(t, "strategies: []\n")
		_, err := LoadCatalog(path)
		assert.Error(t, err)
	})
	t.Run("duplicate", func(t *testing.T) {
		path := writeCatalog(t, "strategies:\n  - {name: x, consensus_threshold: 0.4, min_confidence: 0.4}\n  - {name: x, consensus_threshold: 0.5, min_confidence: 0.4}\n")
		_, err := LoadCatalog(path)
		assert.ErrorIs(t, err, ErrDuplicateStrategy)
	})
}
