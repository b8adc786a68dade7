package clock

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zen-systems/zenedge/internal/platform"
)

func TestNewCalibratesFromSim(t *testing.T) {
	plat := platform.NewSim(platform.WithCyclesPerUS(1234))
	c := New(plat)
	require.Equal(t, uint64(1234), c.CyclesPerUS())
}

func TestCyclesToUSRoundTrip(t *testing.T) {
	plat := platform.NewSim(platform.WithCyclesPerUS(1000))
	c := New(plat)
	require.Equal(t, uint64(5), c.CyclesToUS(5000))
	require.Equal(t, uint64(5000), c.USToCycles(5))
}

func TestNowUSAdvancesWithPlatform(t *testing.T) {
	plat := platform.NewSim(platform.WithCyclesPerUS(1000))
	c := New(plat)
	require.Equal(t, uint64(0), c.NowUS())
	plat.Advance(42)
	require.Equal(t, uint64(42), c.NowUS())
}

func TestCyclesToUSZeroCalibrationIsSafe(t *testing.T) {
	c := &Clock{cyclesPerUS: 0}
	require.Equal(t, uint64(0), c.CyclesToUS(100))
}
