package ranking

import "math"

// Record is a single caller-supplied entity. Values are numbers, booleans,
// strings or absent; any other attributes are carried through untouched.
type Record map[string]any

// ScoreField is the attribute added to every scored record.
const ScoreField = "trending_score"

// FilterFieldKey is the Fields key that overrides Config.FilterField.
const FilterFieldKey = "filter_field"

// Signal identifies one of the canonical scoring inputs.
type Signal int

// Canonical signals, in scoring order.
const (
	SignalLast24Hrs Signal = iota
	SignalUpdatedRecently
	SignalImpressionsPerUser
	SignalImpressions
	SignalUserCount
	SignalRecentCount
	SignalAgeHours

	numSignals
)

var signalNames = [numSignals]string{
	SignalLast24Hrs:          "last_24hrs",
	SignalUpdatedRecently:    "updated_recently",
	SignalImpressionsPerUser: "impressions_per_user",
	SignalImpressions:        "impressions",
	SignalUserCount:          "user_count",
	SignalRecentCount:        "recent_count",
	SignalAgeHours:           "age_hours",
}

// numericSignals contribute value*weight to the score.
var numericSignals = [...]Signal{
	SignalImpressionsPerUser,
	SignalImpressions,
	SignalUserCount,
	SignalRecentCount,
}

// String returns the canonical name of the signal.
func (s Signal) String() string {
	if s < 0 || s >= numSignals {
		return "unknown"
	}
	return signalNames[s]
}

// IsBool reports whether the signal is a boolean flag.
func (s Signal) IsBool() bool {
	return s == SignalLast24Hrs || s == SignalUpdatedRecently
}

// ParseSignal looks up a canonical signal by name.
func ParseSignal(name string) (Signal, bool) {
	for i, n := range signalNames {
		if n == name {
			return Signal(i), true
		}
	}
	return 0, false
}

// Fields maps canonical signal names to the attribute names used by a
// particular record shape. Unmapped signals are read under their own name.
// The FilterFieldKey entry, when present, names the attribute the filter
// stage compares against.
type Fields map[string]string

// fieldTable is Fields compiled to an enum-indexed accessor table.
type fieldTable struct {
	attrs  [numSignals]string
	filter string
}

func compileFields(f Fields, filterField string) fieldTable {
	var t fieldTable
	for i := range t.attrs {
		t.attrs[i] = signalNames[i]
		if attr, ok := f[signalNames[i]]; ok && attr != "" {
			t.attrs[i] = attr
		}
	}
	t.filter = filterField
	if attr, ok := f[FilterFieldKey]; ok && attr != "" {
		t.filter = attr
	}
	return t
}

// Resolve reads a signal from a record through the compiled field table.
// Absent values resolve to false for boolean signals and 0 otherwise.
func (t fieldTable) Resolve(s Signal, rec Record) any {
	if v, ok := rec[t.attrs[s]]; ok && v != nil {
		return v
	}
	if s.IsBool() {
		return false
	}
	return 0.0
}

// resolveFilter reads the filter attribute. Like any unrecognised signal, an
// absent or null value resolves to 0.
func (t fieldTable) resolveFilter(rec Record) any {
	if v, ok := rec[t.filter]; ok && v != nil {
		return v
	}
	return 0.0
}

// ResolveName reads a signal by name, going through the field mapping.
// Unknown names are read leniently: a missing value resolves to 0.
func ResolveName(name string, rec Record, fields Fields) any {
	if s, ok := ParseSignal(name); ok {
		return compileFields(fields, "").Resolve(s, rec)
	}
	attr := name
	if mapped, ok := fields[name]; ok && mapped != "" {
		attr = mapped
	}
	if v, ok := rec[attr]; ok && v != nil {
		return v
	}
	return 0.0
}

// number reads a numeric signal value. Non-numeric values count as 0.
func number(v any) float64 {
	f, ok := toFloat(v)
	if !ok || math.IsNaN(f) {
		return 0
	}
	return f
}

// truthy reads a boolean signal value.
func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	}
	if f, ok := toFloat(v); ok {
		return f != 0 && !math.IsNaN(f)
	}
	return true
}

// float64er matches json.Number without importing an encoder package.
type float64er interface {
	Float64() (float64, error)
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case float64er:
		f, err := x.Float64()
		return f, err == nil
	}
	return 0, false
}
