package budget

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fixedClock(day string) func() time.Time {
	t, _ := time.Parse("2006-01-02", day)
	return func() time.Time { return t }
}

func newTestGuard(t *testing.T, dailyLimit, perCall float64, day string) *Guard {
	t.Helper()
	path := filepath.Join(t.TempDir(), "spend.json")
	return NewGuard(path, dailyLimit, perCall,
		WithClock(fixedClock(day)),
		WithGuardLogger(quietLogger()),
	)
}

func TestGuardAllowsUnderLimit(t *testing.T) {
	g := newTestGuard(t, 1.0, 0.01, "2026-08-30")
	assert.NoError(t, g.Check())
}

func TestGuardBlocksAtLimit(t *testing.T) {
	g := newTestGuard(t, 0.03, 0.01, "2026-08-30")

	for i := 0; i < 3; i++ {
		require.NoError(t, g.Check())
		require.NoError(t, g.Record())
	}

	err := g.Check()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDailyBudgetExceeded)
}

func TestGuardResetsNextDay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spend.json")

	day1 := NewGuard(path, 0.01, 0.01, WithClock(fixedClock("2026-08-30")), WithGuardLogger(quietLogger()))
	require.NoError(t, day1.Record())
	assert.ErrorIs(t, day1.Check(), ErrDailyBudgetExceeded)

	day2 := NewGuard(path, 0.01, 0.01, WithClock(fixedClock("2026-08-31")), WithGuardLogger(quietLogger()))
	assert.NoError(t, day2.Check())
}

func TestGuardPersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spend.json")

	first := NewGuard(path, 1.0, 0.25, WithClock(fixedClock("2026-08-30")), WithGuardLogger(quietLogger()))
	require.NoError(t, first.Record())

	second := NewGuard(path, 1.0, 0.25, WithClock(fixedClock("2026-08-30")), WithGuardLogger(quietLogger()))
	assert.InDelta(t, 0.25, second.Spent(), 1e-9)
}

func TestGuardToleratesCorruptLedger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spend.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	g := NewGuard(path, 1.0, 0.01, WithClock(fixedClock("2026-08-30")), WithGuardLogger(quietLogger()))
	assert.NoError(t, g.Check())
	assert.NoError(t, g.Record())
	assert.InDelta(t, 0.01, g.Spent(), 1e-9)
}
