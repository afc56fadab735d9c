package budget

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ErrDailyBudgetExceeded is returned by Check once the tracked daily spend has
// reached the configured ceiling. It is raised before a paid call is made.
var ErrDailyBudgetExceeded = errors.New("daily budget exceeded")

// Guard is a soft daily spend ceiling backed by a JSON ledger keyed by date.
// Spend is tracked as a flat per-call estimate rather than a token-priced
// figure; the point is a circuit breaker, not accounting.
type Guard struct {
	mu         sync.Mutex
	ledgerPath string
	dailyLimit float64
	perCall    float64
	now        func() time.Time
	logger     *slog.Logger
}

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// WithClock overrides the time source.
func WithClock(now func() time.Time) GuardOption {
	return func(g *Guard) { g.now = now }
}

// WithGuardLogger sets the Guard's logger.
func WithGuardLogger(logger *slog.Logger) GuardOption {
	return func(g *Guard) { g.logger = logger }
}

// NewGuard creates a Guard writing its ledger to ledgerPath.
func NewGuard(ledgerPath string, dailyLimitUSD, perCallUSD float64, opts ...GuardOption) *Guard {
	g := &Guard{
		ledgerPath: ledgerPath,
		dailyLimit: dailyLimitUSD,
		perCall:    perCallUSD,
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	return g
}

// Check returns ErrDailyBudgetExceeded when today's tracked spend has reached
// the daily limit. Call it before the first paid call of a request.
func (g *Guard) Check() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	ledger := g.readLedger()
	spent := ledger[g.today()]
	if spent >= g.dailyLimit {
		return fmt.Errorf("%w: spent %.4f USD of %.4f USD today", ErrDailyBudgetExceeded, spent, g.dailyLimit)
	}
	return nil
}

// Record adds the flat per-call estimate to today's ledger entry.
func (g *Guard) Record() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	ledger := g.readLedger()
	day := g.today()
	ledger[day] += g.perCall

	if err := g.writeLedger(ledger); err != nil {
		return err
	}

	g.logger.Debug("spend recorded", "date", day, "totalUSD", ledger[day])
	return nil
}

// Spent returns today's tracked spend.
func (g *Guard) Spent() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.readLedger()[g.today()]
}

func (g *Guard) today() string {
	return g.now().UTC().Format("2006-01-02")
}

// readLedger treats a missing or corrupt ledger file as an empty ledger. A
// damaged file must not brick the assistant; the worst case is a reset spend
// counter.
func (g *Guard) readLedger() map[string]float64 {
	ledger := make(map[string]float64)

	data, err := os.ReadFile(g.ledgerPath)
	if err != nil {
		if !os.IsNotExist(err) {
			g.logger.Warn("failed to read spend ledger, treating as empty", "error", err)
		}
		return ledger
	}

	if err := json.Unmarshal(data, &ledger); err != nil {
		g.logger.Warn("corrupt spend ledger, treating as empty", "error", err)
		return make(map[string]float64)
	}
	return ledger
}

func (g *Guard) writeLedger(ledger map[string]float64) error {
	data, err := json.MarshalIndent(ledger, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode spend ledger: %w", err)
	}

	if dir := filepath.Dir(g.ledgerPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create ledger directory: %w", err)
		}
	}

	if err := os.WriteFile(g.ledgerPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write spend ledger: %w", err)
	}
	return nil
}
