package decision

import "sync"

const (
	DefaultBalanceWindow = 20
	DefaultBiasThreshold = 0.70
)

// DirectionalBalanceTracker keeps the last N Up/Down decisions and flags a
// directional bias. It is a monitoring signal and never blocks a trade.
type DirectionalBalanceTracker struct {
	mu        sync.Mutex
	window    []Direction
	next      int
	filled    int
	threshold float64
}

// BalanceStats is a point-in-time view of the tracker.
type BalanceStats struct {
	Window        int       `json:"window"`
	Recorded      int       `json:"recorded"`
	Up            int       `json:"up"`
	Down          int       `json:"down"`
	Majority      Direction `json:"majority,omitempty"`
	MajorityRatio float64   `json:"majority_ratio"`
	Biased        bool      `json:"biased"`
}

func NewDirectionalBalanceTracker(windowSize int, biasThreshold float64) *DirectionalBalanceTracker {
	if windowSize <= 0 {
		windowSize = DefaultBalanceWindow
	}
	if biasThreshold <= 0 || biasThreshold > 1 {
		biasThreshold = DefaultBiasThreshold
	}
	return &DirectionalBalanceTracker{
		window:    make([]Direction, windowSize),
		threshold: biasThreshold,
	}
}

// Record stores Up/Down; anything else is ignored and takes no slot.
func (t *DirectionalBalanceTracker) Record(dir Direction) {
	if t == nil || !dir.Directional() {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.window[t.next] = dir
	t.next = (t.next + 1) % len(t.window)
	if t.filled < len(t.window) {
		t.filled++
	}
}

// HasBias is true only once the window is full and the majority share
// strictly exceeds the threshold.
func (t *DirectionalBalanceTracker) HasBias() bool {
	return t.Stats().Biased
}

func (t *DirectionalBalanceTracker) Stats() BalanceStats {
	if t == nil {
		return BalanceStats{}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	st := BalanceStats{Window: len(t.window), Recorded: t.filled}
	for i := 0; i < t.filled; i++ {
		switch t.window[i] {
		case DirectionUp:
			st.Up++
		case DirectionDown:
			st.Down++
		}
	}
	if t.filled == 0 {
		return st
	}
	majority, count := DirectionUp, st.Up
	if st.Down > st.Up {
		majority, count = DirectionDown, st.Down
	}
	st.Majority = majority
	st.MajorityRatio = float64(count) / float64(t.filled)
	st.Biased = t.filled == len(t.window) && st.MajorityRatio > t.threshold
	return st
}
