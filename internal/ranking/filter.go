package ranking

import "reflect"

// Filter returns the records whose resolved filter attribute strictly equals
// cfg.FilterValue. Absent attributes resolve to 0, as for any other signal.
// The attribute is Fields["filter_field"] when set and cfg.FilterField
// otherwise. Without both a field and a value every record passes. The input
// slice is never modified.
func Filter(records []Record, cfg Config) []Record {
	return filter(records, cfg.FilterValue, compileFields(cfg.Fields, cfg.FilterField))
}

func filter(records []Record, value any, t fieldTable) []Record {
	if t.filter == "" || value == nil {
		return records
	}

	kept := make([]Record, 0, len(records))
	for _, rec := range records {
		if strictEqual(t.resolveFilter(rec), value) {
			kept = append(kept, rec)
		}
	}
	return kept
}

// strictEqual compares without coercion across kinds: true never equals
// "true" and 1 never equals "1". Numbers of different Go types compare by
// value, since decoded JSON always yields float64.
func strictEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	af, aNum := toFloat(a)
	bf, bNum := toFloat(b)
	if aNum || bNum {
		return aNum && bNum && af == bf
	}
	if !reflect.TypeOf(a).Comparable() || !reflect.TypeOf(b).Comparable() {
		return false
	}
	return a == b
}
