package database

// Recognized system_config keys. Defaults live in seedDefaults; every read
// falls back to the default when the key is missing so a fresh database
// behaves identically to a seeded one.
const (
	KeyViralThreshold = "viral_threshold"
	KeyMinSeedTemp    = "min_seed_temp"
	KeyGravity        = "gravity"
	KeyScoreTier4     = "score_tier_4"
	KeyScoreTier3     = "score_tier_3"
	KeyScoreTier2     = "score_tier_2"

	// Legacy linear-velocity percentiles maintained by the AutoTuner for
	// external consumers; the scorer does not read them.
	KeyVelocityP50 = "velocity_p50"
	KeyVelocityP80 = "velocity_p80"
	KeyVelocityP95 = "velocity_p95"
)

var seedDefaults = map[string]float64{
	KeyViralThreshold: 50.0,
	KeyMinSeedTemp:    15.0,
	KeyGravity:        1.2,
	KeyScoreTier4:     500.0,
	KeyScoreTier3:     200.0,
	KeyScoreTier2:     100.0,
}

// SeedDefault returns the seed default for a recognized key, or (0, false)
// for unknown keys.
func SeedDefault(key string) (float64, bool) {
	v, ok := seedDefaults[key]
	return v, ok
}

// Params is the typed view of system_config the scoring pipeline works with.
// It is rebuilt from the table at the start of every cycle; there is no
// longer-lived cache.
type Params struct {
	ViralThreshold float64
	MinSeedTemp    float64
	Gravity        float64
	ScoreTier4     float64
	ScoreTier3     float64
	ScoreTier2     float64
}

// DefaultParams returns the seed configuration
func DefaultParams() Params {
	return ParamsFromMap(nil)
}

// ParamsFromMap builds Params from raw key/value rows, falling back to the
// seed default for each missing key. Unknown keys in the map are ignored
// here but preserved in the table.
func ParamsFromMap(values map[string]float64) Params {
	get := func(key string) float64 {
		if v, ok := values[key]; ok {
			return v
		}
		return seedDefaults[key]
	}

	return Params{
		ViralThreshold: get(KeyViralThreshold),
		MinSeedTemp:    get(KeyMinSeedTemp),
		Gravity:        get(KeyGravity),
		ScoreTier4:     get(KeyScoreTier4),
		ScoreTier3:     get(KeyScoreTier3),
		ScoreTier2:     get(KeyScoreTier2),
	}
}
