package ranking

import (
	"math"
	"testing"
)

// workedWeights is the weight table used by the reference examples.
func workedWeights() Weights {
	return Weights{
		"last_24hrs":           50,
		"updated_recently":     30,
		"impressions_per_user": 10,
		"impressions":          2,
		"user_count":           5,
		"recent_count":         3,
		WeightAgePenaltyFactor: 1,
		WeightMaxAgePenalty:    24,
	}
}

func workedConfig() Config {
	cfg := DefaultConfig()
	cfg.Weights = workedWeights()
	return cfg
}

// TestScore_WorkedExample verifies the composite formula end to end.
func TestScore_WorkedExample(t *testing.T) {
	rec := Record{
		"last_24hrs":           true,
		"updated_recently":     false,
		"impressions_per_user": 2,
		"impressions":          10,
		"user_count":           4,
		"recent_count":         1,
		"age_hours":            10,
	}

	got := Score(rec, workedConfig())
	want := 50.0 + 0 + 20 + 20 + 20 + 3 - 10.0/24

	if math.Abs(got-want) > 1e-9 {
		t.Errorf("expected score %f, got %f", want, got)
	}
	if math.Abs(got-112.583) > 0.001 {
		t.Errorf("expected score ~112.583, got %f", got)
	}
}

// TestScore_DecayCap verifies the age penalty never exceeds max_age_penalty.
func TestScore_DecayCap(t *testing.T) {
	base := Record{
		"last_24hrs":           true,
		"impressions_per_user": 2,
		"impressions":          10,
		"user_count":           4,
		"recent_count":         1,
	}
	fresh := Score(base, workedConfig())

	old := Record{}
	for k, v := range base {
		old[k] = v
	}
	old["age_hours"] = 1000

	got := fresh - Score(old, workedConfig())
	if math.Abs(got-24) > 1e-9 {
		t.Errorf("expected capped penalty 24, got %f", got)
	}
}

// TestAgePenalty tests the decay policy in isolation.
func TestAgePenalty(t *testing.T) {
	tests := []struct {
		name     string
		ageHours float64
		factor   float64
		cap      float64
		expected float64
	}{
		{name: "brand new", ageHours: 0, factor: 1, cap: 24, expected: 0},
		{name: "one day", ageHours: 24, factor: 1, cap: 24, expected: 1},
		{name: "scaled by factor", ageHours: 48, factor: 3, cap: 24, expected: 6},
		{name: "exactly at cap", ageHours: 576, factor: 1, cap: 24, expected: 24},
		{name: "beyond cap", ageHours: 1000, factor: 1, cap: 24, expected: 24},
		{name: "zero factor", ageHours: 1000, factor: 0, cap: 24, expected: 0},
		{name: "zero cap", ageHours: 48, factor: 1, cap: 0, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AgePenalty(tt.ageHours, tt.factor, tt.cap)
			if math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("expected penalty %f, got %f", tt.expected, got)
			}
		})
	}
}

// TestScore_NonNegative verifies negative raw scores are floored at zero.
func TestScore_NonNegative(t *testing.T) {
	cfg := workedConfig()
	cfg.Weights["max_age_penalty"] = 1000

	tests := []struct {
		name string
		rec  Record
	}{
		{name: "empty record", rec: Record{}},
		{name: "only age", rec: Record{"age_hours": 10000}},
		{name: "negative counts", rec: Record{"impressions": -500, "user_count": -3}},
		{name: "activity outweighed by age", rec: Record{"last_24hrs": true, "age_hours": 100000}},
		{name: "opposing infinities", rec: Record{"impressions": math.Inf(1), "user_count": math.Inf(-1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(tt.rec, cfg)
			if got < 0 || math.IsNaN(got) {
				t.Errorf("expected non-negative score, got %f", got)
			}
		})
	}
}

// TestScore_MissingImpressions verifies missing signals contribute nothing.
func TestScore_MissingImpressions(t *testing.T) {
	with := Record{"user_count": 4, "impressions": 0}
	without := Record{"user_count": 4}

	if Score(with, workedConfig()) != Score(without, workedConfig()) {
		t.Errorf("missing impressions should score as impressions=0")
	}
	if got := Score(without, workedConfig()); got != 20 {
		t.Errorf("expected score 20, got %f", got)
	}
}

// TestScore_FieldMapping verifies signals are read through the field mapping.
func TestScore_FieldMapping(t *testing.T) {
	cfg := workedConfig()
	cfg.Fields = Fields{
		"last_24hrs":  "activeToday",
		"impressions": "views",
	}

	rec := Record{
		"activeToday": true,
		"views":       10,
		"impressions": 1000, // unmapped name is ignored
	}

	if got := Score(rec, cfg); got != 70 {
		t.Errorf("expected score 70, got %f", got)
	}
}

// TestScore_ValueKinds verifies numeric and boolean coercion of signal values.
func TestScore_ValueKinds(t *testing.T) {
	cfg := workedConfig()

	tests := []struct {
		name     string
		rec      Record
		expected float64
	}{
		{name: "int64 count", rec: Record{"user_count": int64(2)}, expected: 10},
		{name: "float32 count", rec: Record{"user_count": float32(2)}, expected: 10},
		{name: "uint count", rec: Record{"user_count": uint(2)}, expected: 10},
		{name: "string count ignored", rec: Record{"user_count": "2"}, expected: 0},
		{name: "nil count", rec: Record{"user_count": nil}, expected: 0},
		{name: "truthy number flag", rec: Record{"updated_recently": 1}, expected: 30},
		{name: "zero number flag", rec: Record{"updated_recently": 0}, expected: 0},
		{name: "non-empty string flag", rec: Record{"updated_recently": "yes"}, expected: 30},
		{name: "empty string flag", rec: Record{"updated_recently": ""}, expected: 0},
		{name: "false flag", rec: Record{"updated_recently": false}, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Score(tt.rec, cfg); got != tt.expected {
				t.Errorf("expected score %f, got %f", tt.expected, got)
			}
		})
	}
}

// TestScore_MissingWeights verifies absent weights count as zero.
func TestScore_MissingWeights(t *testing.T) {
	cfg := Config{Weights: Weights{"impressions": 2}}
	rec := Record{"impressions": 5, "last_24hrs": true, "age_hours": 48}

	if got := Score(rec, cfg); got != 10 {
		t.Errorf("expected score 10, got %f", got)
	}
}
