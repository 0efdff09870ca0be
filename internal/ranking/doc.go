// Package ranking computes trending scores for marketplace entities
// (markets, feeds, listings) and returns them ranked, truncated and
// projected to the shape the caller asked for.
//
// Basic Usage:
//
//	// Load calibration (typically at startup)
//	defaults, err := ranking.LoadCalibration("configs/ranking.calibration.json")
//	if err != nil {
//		slog.Warn("using default ranking config", "error", err)
//	}
//
//	// Rank records with a preset and a per-request override
//	override := ranking.NewBuilder().
//		FilterBy("belongs_to_market", true).
//		TopCount(20).
//		Build()
//	preset, _ := ranking.Preset(ranking.PresetEngagement)
//	items, err := ranking.RankFrom(defaults, records, preset, override)
//
// Scoring:
//
// The score is a fixed linear combination of engagement signals minus an
// age penalty, floored at zero:
//
//	score = max(0, w.last_24hrs*[last_24hrs] + w.updated_recently*[updated_recently]
//	               + Σ w.s*s  (s in impressions_per_user, impressions, user_count, recent_count)
//	               - min(age_hours/24*w.age_penalty_factor, w.max_age_penalty))
//
// Records are plain maps. Signals are read through a field mapping so that
// differently shaped records (markets, feeds) can expose the same signal under
// their own attribute names. Missing signals never fail: booleans default to
// false and numbers to zero.
//
// Configuration:
//
// The effective config is defaults ⊕ preset ⊕ override. Scalars are replaced
// wholesale while weights and fields merge key by key. Defaults and presets
// are shared read-only values; every merge allocates fresh maps, so Rank is
// safe to call from many goroutines.
package ranking
