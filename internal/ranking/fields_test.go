package ranking

import (
	"encoding/json"
	"testing"
)

// TestParseSignal tests canonical name lookup.
func TestParseSignal(t *testing.T) {
	for s := Signal(0); s < numSignals; s++ {
		got, ok := ParseSignal(s.String())
		if !ok || got != s {
			t.Errorf("ParseSignal(%q) = %v, %t; want %v, true", s.String(), got, ok, s)
		}
	}

	if _, ok := ParseSignal("likes"); ok {
		t.Error("expected unknown signal name to be rejected")
	}
	if Signal(99).String() != "unknown" {
		t.Errorf("expected out-of-range signal to stringify as unknown, got %q", Signal(99).String())
	}
}

// TestResolve_Defaults verifies typed defaults for absent values.
func TestResolve_Defaults(t *testing.T) {
	table := compileFields(nil, "")

	tests := []struct {
		signal   Signal
		expected any
	}{
		{SignalLast24Hrs, false},
		{SignalUpdatedRecently, false},
		{SignalImpressionsPerUser, 0.0},
		{SignalImpressions, 0.0},
		{SignalUserCount, 0.0},
		{SignalRecentCount, 0.0},
		{SignalAgeHours, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.signal.String(), func(t *testing.T) {
			if got := table.Resolve(tt.signal, Record{}); got != tt.expected {
				t.Errorf("expected default %v (%T), got %v (%T)", tt.expected, tt.expected, got, got)
			}
			if got := table.Resolve(tt.signal, Record{tt.signal.String(): nil}); got != tt.expected {
				t.Errorf("expected default %v for explicit nil, got %v", tt.expected, got)
			}
		})
	}
}

// TestResolve_Mapping verifies mapped and identity lookups.
func TestResolve_Mapping(t *testing.T) {
	table := compileFields(Fields{"user_count": "members", "recent_count": ""}, "")
	rec := Record{"members": 12, "user_count": 99, "recent_count": 4}

	if got := table.Resolve(SignalUserCount, rec); got != 12 {
		t.Errorf("expected mapped value 12, got %v", got)
	}
	if got := table.Resolve(SignalRecentCount, rec); got != 4 {
		t.Errorf("expected identity lookup for empty mapping, got %v", got)
	}
}

// TestCompileFields_FilterOverride verifies the filter_field override.
func TestCompileFields_FilterOverride(t *testing.T) {
	if got := compileFields(nil, "status").filter; got != "status" {
		t.Errorf("expected filter field status, got %q", got)
	}
	if got := compileFields(Fields{FilterFieldKey: "state"}, "status").filter; got != "state" {
		t.Errorf("expected filter_field override state, got %q", got)
	}
}

// TestResolveName tests lenient resolution by name.
func TestResolveName(t *testing.T) {
	fields := Fields{"impressions": "views", "likes": "hearts"}
	rec := Record{"views": 7, "hearts": 3}

	tests := []struct {
		name     string
		signal   string
		expected any
	}{
		{name: "known mapped signal", signal: "impressions", expected: 7},
		{name: "known absent boolean", signal: "last_24hrs", expected: false},
		{name: "unknown mapped name", signal: "likes", expected: 3},
		{name: "unknown absent name", signal: "shares", expected: 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveName(tt.signal, rec, fields); got != tt.expected {
				t.Errorf("expected %v (%T), got %v (%T)", tt.expected, tt.expected, got, got)
			}
		})
	}
}

// TestToFloat_JSONNumber verifies json.Number values are read as numbers.
func TestToFloat_JSONNumber(t *testing.T) {
	f, ok := toFloat(json.Number("2.5"))
	if !ok || f != 2.5 {
		t.Errorf("expected 2.5, true; got %f, %t", f, ok)
	}
	if _, ok := toFloat(json.Number("abc")); ok {
		t.Error("expected malformed json.Number to be rejected")
	}
	if _, ok := toFloat("2.5"); ok {
		t.Error("expected plain string to be rejected")
	}
}
