package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultParams(t *testing.T) {
	p := DefaultParams()
	assert.Equal(t, 50.0, p.ViralThreshold)
	assert.Equal(t, 15.0, p.MinSeedTemp)
	assert.Equal(t, 1.2, p.Gravity)
	assert.Equal(t, 500.0, p.ScoreTier4)
	assert.Equal(t, 200.0, p.ScoreTier3)
	assert.Equal(t, 100.0, p.ScoreTier2)
}

func TestParamsFromMap_PerKeyFallback(t *testing.T) {
	// A partially-populated table takes stored values where present and seed
	// defaults everywhere else.
	p := ParamsFromMap(map[string]float64{
		KeyViralThreshold: 72.5,
		KeyGravity:        1.5,
	})

	assert.Equal(t, 72.5, p.ViralThreshold)
	assert.Equal(t, 1.5, p.Gravity)
	assert.Equal(t, 15.0, p.MinSeedTemp)
	assert.Equal(t, 200.0, p.ScoreTier3)
}

func TestParamsFromMap_IgnoresUnknownKeys(t *testing.T) {
	p := ParamsFromMap(map[string]float64{
		"velocity_p50":  1.23,
		"some_external": 9.9,
	})
	assert.Equal(t, DefaultParams(), p)
}

func TestSeedDefault(t *testing.T) {
	v, ok := SeedDefault(KeyMinSeedTemp)
	assert.True(t, ok)
	assert.Equal(t, 15.0, v)

	_, ok = SeedDefault("nonsense")
	assert.False(t, ok)
}
