package ranking

import (
	"fmt"
	"slices"
)

// Preset names.
const (
	PresetRecentActivity = "recent_activity"
	PresetEngagement     = "engagement"
	PresetBalanced       = "balanced"
	PresetTop10          = "top10"
)

// presets are shared by every caller and must never be modified.
// Preset hands out deep copies.
var presets = map[string]Overrides{
	// Favors entities with fresh activity and decays stale ones twice as fast.
	PresetRecentActivity: {
		Weights: Weights{
			"last_24hrs":           100,
			"updated_recently":     60,
			"recent_count":         8,
			WeightAgePenaltyFactor: 2,
		},
	},
	// Favors reach and repeat usage over freshness.
	PresetEngagement: {
		Weights: Weights{
			"last_24hrs":           25,
			"updated_recently":     15,
			"impressions_per_user": 20,
			"impressions":          4,
			"user_count":           10,
		},
	},
	PresetBalanced: {
		Weights: Weights{
			"last_24hrs":           40,
			"updated_recently":     40,
			"impressions_per_user": 10,
			"impressions":          3,
			"user_count":           5,
			"recent_count":         5,
		},
	},
	// Ten items, identity and score only.
	PresetTop10: {
		TopCount:     intPtr(10),
		IncludeScore: boolPtr(true),
		ReturnFields: []string{"id", "name", ScoreField},
	},
}

// Preset returns a copy of the named preset.
func Preset(name string) (Overrides, error) {
	p, ok := presets[name]
	if !ok {
		return Overrides{}, fmt.Errorf("%w %q", ErrUnknownPreset, name)
	}
	return p.Clone(), nil
}

// PresetNames returns the registered preset names in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func intPtr(v int) *int { return &v }

func boolPtr(v bool) *bool { return &v }

func strPtr(v string) *string { return &v }
