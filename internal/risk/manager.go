package risk

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/yanun0323/logs"

	"hft/internal/schema"
	"hft/pkg/exception"
)

const (
	dayLength = 86400 * time.Second

	// var95Z is the one-sided 95% normal quantile; varDailyVol is the
	// volatility assumed for every open position in the VaR estimate.
	var95Z      = 1.645
	varDailyVol = 0.02
)

// Rejection is returned by CheckLimits. It unwraps to exception.ErrRiskCheck.
type Rejection struct {
	Reason string
}

func (r *Rejection) Error() string {
	return "risk check failed: " + r.Reason
}

func (r *Rejection) Unwrap() error {
	return exception.ErrRiskCheck
}

// State is the view of the manager used by the trade gate.
type State struct {
	CurrentNotional   float64
	MaxNotional       float64
	DailyPnL          float64
	DailyLossLimit    float64
	KillSwitchActive  bool
	DailyLossExceeded bool
}

// CanTrade reports whether adding notional keeps the book within the total limit.
func (s State) CanTrade(additionalNotional float64) bool {
	return !s.KillSwitchActive &&
		!s.DailyLossExceeded &&
		s.CurrentNotional+additionalNotional <= s.MaxNotional
}

// Manager holds positions, daily PnL and the kill switch.
type Manager struct {
	mu         sync.RWMutex
	limits     schema.RiskLimits
	positions  map[string]schema.Position
	realized   float64
	dailyPnL   float64
	dayStart   time.Time
	killSwitch bool
	now        func() time.Time
}

func NewManager(limits schema.RiskLimits) *Manager {
	return newManager(limits, time.Now)
}

func newManager(limits schema.RiskLimits, now func() time.Time) *Manager {
	return &Manager{
		limits:    limits,
		positions: make(map[string]schema.Position),
		dayStart:  now(),
		now:       now,
	}
}

func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state()
}

func (m *Manager) state() State {
	var current float64
	for _, p := range m.positions {
		current += p.Notional()
	}
	return State{
		CurrentNotional:   current,
		MaxNotional:       m.limits.MaxTotalNotional,
		DailyPnL:          m.dailyPnL,
		DailyLossLimit:    m.limits.MaxLossPerDay,
		KillSwitchActive:  m.killSwitch,
		DailyLossExceeded: m.dailyPnL < -m.limits.MaxLossPerDay,
	}
}

// CheckLimits tests an order adding additionalNotional to symbol. Checks run
// in order: kill switch, daily loss, total notional, per-symbol notional. The
// per-symbol limit only applies once a position in the symbol exists.
func (m *Manager) CheckLimits(symbol string, additionalNotional float64) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state := m.state()
	if state.KillSwitchActive {
		return &Rejection{Reason: "Kill switch active"}
	}
	if state.DailyLossExceeded {
		return &Rejection{Reason: "Daily loss limit exceeded"}
	}
	if state.CurrentNotional+additionalNotional > state.MaxNotional {
		return &Rejection{Reason: fmt.Sprintf("Would exceed max notional: %.0f + %.0f > %.0f",
			state.CurrentNotional, additionalNotional, state.MaxNotional)}
	}
	if pos, ok := m.positions[symbol]; ok {
		held := pos.Notional()
		if held+additionalNotional > m.limits.MaxNotionalPerSymbol {
			return &Rejection{Reason: fmt.Sprintf("Would exceed per-symbol limit for %s: %.0f + %.0f > %.0f",
				symbol, held, additionalNotional, m.limits.MaxNotionalPerSymbol)}
		}
	}
	return nil
}

// UpdatePosition replaces the tracked position for its symbol. Flat positions are dropped.
func (m *Manager) UpdatePosition(p schema.Position) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.Size == 0 {
		delete(m.positions, p.Symbol)
		return
	}
	m.positions[p.Symbol] = p
}

// UpdatePnL adds a realized PnL delta to the daily total. The daily total
// restarts once a full day has passed since the current day began.
func (m *Manager) UpdatePnL(delta float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.dailyPnL += delta
	m.realized += delta
	now := m.now()
	if now.Sub(m.dayStart) > dayLength {
		m.dailyPnL = 0
		m.dayStart = now
	}
}

func (m *Manager) ActivateKillSwitch() {
	m.mu.Lock()
	m.killSwitch = true
	m.mu.Unlock()
	logs.Warn("kill switch activated")
}

func (m *Manager) DeactivateKillSwitch() {
	m.mu.Lock()
	m.killSwitch = false
	m.mu.Unlock()
	logs.Info("kill switch deactivated")
}

// UpdateLimits swaps the limits used by subsequent checks.
func (m *Manager) UpdateLimits(limits schema.RiskLimits) {
	m.mu.Lock()
	m.limits = limits
	m.mu.Unlock()
}

func (m *Manager) Limits() schema.RiskLimits {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.limits
}

// Position returns the tracked position for symbol.
func (m *Manager) Position(symbol string) (schema.Position, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.positions[symbol]
	return p, ok
}

// Snapshot summarizes exposure for terminals.
func (m *Manager) Snapshot() schema.RiskSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := schema.RiskSnapshot{
		TimestampNs:      m.now().UnixNano(),
		NumPositions:     len(m.positions),
		DailyPnL:         m.dailyPnL,
		RealizedPnL:      m.realized,
		KillSwitchActive: m.killSwitch,
	}
	var maxLeverage float64
	for _, p := range m.positions {
		notional := p.Notional()
		snap.GrossNotional += notional
		snap.NetNotional += p.Size * p.MarkPrice
		snap.UnrealizedPnL += p.UnrealizedPnL
		margin := p.MarginUsed
		if margin == 0 && m.limits.MaxLeverage > 0 {
			margin = notional / m.limits.MaxLeverage
		}
		snap.TotalMarginUsed += margin
		if margin > 0 {
			maxLeverage = math.Max(maxLeverage, notional/margin)
		}
	}
	if m.limits.MaxLeverage > 0 {
		snap.AvailableMargin = math.Max(m.limits.MaxTotalNotional/m.limits.MaxLeverage-snap.TotalMarginUsed, 0)
	}
	snap.TotalPnL = snap.RealizedPnL + snap.UnrealizedPnL
	snap.VaR95 = var95Z * varDailyVol * snap.GrossNotional
	snap.MaxLeverage = maxLeverage
	return snap
}
