package ranking

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
)

// scored pairs a surviving record with its score. The record itself is
// copied only if it makes it into the output.
type scored struct {
	rec   Record
	score float64
}

// Rank ranks records under the package defaults with layers applied in order.
func Rank(records []Record, layers ...Overrides) ([]Record, error) {
	return RankFrom(defaultConfig, records, layers...)
}

// RankPreset ranks records under the package defaults, the named preset and
// then override.
func RankPreset(records []Record, preset string, override Overrides) ([]Record, error) {
	p, err := Preset(preset)
	if err != nil {
		return nil, err
	}
	return RankFrom(defaultConfig, records, p, override)
}

// RankFrom ranks records with base in place of the package defaults, which
// lets callers rank against calibrated defaults. base is not modified.
func RankFrom(base Config, records []Record, layers ...Overrides) ([]Record, error) {
	return RankConfig(records, Merge(base, layers...))
}

// RankConfig runs the ranking pipeline with a fully merged config:
// filter, score, stable sort by descending score, truncate to TopCount and
// project. Caller records are never modified; every returned record is a
// fresh map.
func RankConfig(records []Record, cfg Config) ([]Record, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	for i, rec := range records {
		if rec == nil {
			return nil, fmt.Errorf("%w: record %d is nil", ErrInvalidInput, i)
		}
	}

	table := compileFields(cfg.Fields, cfg.FilterField)
	candidates := filter(records, cfg.FilterValue, table)

	ranked := make([]scored, len(candidates))
	for i, rec := range candidates {
		ranked[i] = scored{rec: rec, score: score(rec, cfg.Weights, table)}
	}

	slices.SortStableFunc(ranked, func(a, b scored) int {
		return cmp.Compare(b.score, a.score)
	})

	if n := max(0, cfg.TopCount); n < len(ranked) {
		ranked = ranked[:n]
	}

	out := make([]Record, len(ranked))
	for i, s := range ranked {
		out[i] = project(s, cfg)
	}
	return out, nil
}

// project shapes one scored record for output.
func project(s scored, cfg Config) Record {
	item := maps.Clone(s.rec)
	item[ScoreField] = s.score

	if cfg.ReturnFields != nil {
		out := make(Record, len(cfg.ReturnFields)+1)
		for _, f := range cfg.ReturnFields {
			if v, ok := item[f]; ok {
				out[f] = v
			}
		}
		if cfg.IncludeScore {
			out[ScoreField] = s.score
		}
		return out
	}

	if !cfg.IncludeScore {
		delete(item, ScoreField)
	}
	return item
}
