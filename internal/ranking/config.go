package ranking

import (
	"fmt"
	"maps"
	"math"
	"reflect"
	"slices"
)

// Weight table keys that are not signals.
const (
	WeightAgePenaltyFactor = "age_penalty_factor"
	WeightMaxAgePenalty    = "max_age_penalty"
)

// Weights maps signal names to their multiplicative contribution, plus the
// two age decay parameters.
type Weights map[string]float64

// Config is the effective configuration for one ranking call.
type Config struct {
	FilterField  string   `json:"filter_field,omitempty"`
	FilterValue  any      `json:"filter_value,omitempty"`
	Weights      Weights  `json:"weights"`
	Fields       Fields   `json:"fields"`
	TopCount     int      `json:"top_count"`
	IncludeScore bool     `json:"include_score"`
	ReturnFields []string `json:"return_fields,omitempty"`
}

// Overrides is a partial Config. Nil pointers, nil maps and a nil slice mean
// "not specified"; everything else replaces or merges into the layer below.
type Overrides struct {
	FilterField  *string  `json:"filter_field,omitempty"`
	FilterValue  any      `json:"filter_value,omitempty"`
	Weights      Weights  `json:"weights,omitempty"`
	Fields       Fields   `json:"fields,omitempty"`
	TopCount     *int     `json:"top_count,omitempty"`
	IncludeScore *bool    `json:"include_score,omitempty"`
	ReturnFields []string `json:"return_fields,omitempty"`
}

// Default configuration values.
const (
	DefaultTopCount     = 10
	DefaultIncludeScore = true
)

// defaultConfig is shared by every caller and must never be modified.
// Use DefaultConfig for a private copy.
var defaultConfig = Config{
	Weights: Weights{
		"last_24hrs":           50,
		"updated_recently":     30,
		"impressions_per_user": 10,
		"impressions":          2,
		"user_count":           5,
		"recent_count":         3,
		WeightAgePenaltyFactor: 1,
		WeightMaxAgePenalty:    24,
	},
	Fields: Fields{
		"last_24hrs":           "last_24hrs",
		"updated_recently":     "updated_recently",
		"impressions_per_user": "impressions_per_user",
		"impressions":          "impressions",
		"user_count":           "user_count",
		"recent_count":         "recent_count",
		"age_hours":            "age_hours",
	},
	TopCount:     DefaultTopCount,
	IncludeScore: DefaultIncludeScore,
}

// DefaultConfig returns a copy of the baseline configuration.
func DefaultConfig() Config {
	return defaultConfig.Clone()
}

// Clone returns a deep copy of c.
func (c Config) Clone() Config {
	c.Weights = maps.Clone(c.Weights)
	c.Fields = maps.Clone(c.Fields)
	c.ReturnFields = slices.Clone(c.ReturnFields)
	return c
}

// Clone returns a deep copy of o.
func (o Overrides) Clone() Overrides {
	if o.FilterField != nil {
		v := *o.FilterField
		o.FilterField = &v
	}
	if o.TopCount != nil {
		v := *o.TopCount
		o.TopCount = &v
	}
	if o.IncludeScore != nil {
		v := *o.IncludeScore
		o.IncludeScore = &v
	}
	o.Weights = maps.Clone(o.Weights)
	o.Fields = maps.Clone(o.Fields)
	o.ReturnFields = slices.Clone(o.ReturnFields)
	return o
}

// IsZero reports whether o specifies nothing.
func (o Overrides) IsZero() bool {
	return o.FilterField == nil && o.FilterValue == nil && o.Weights == nil &&
		o.Fields == nil && o.TopCount == nil && o.IncludeScore == nil && o.ReturnFields == nil
}

// Merge applies layers over base in order and returns a new Config.
// Scalars are replaced wholesale; Weights and Fields merge key by key with
// later layers winning. Neither base nor any layer is modified.
func Merge(base Config, layers ...Overrides) Config {
	result := base.Clone()
	if result.Weights == nil {
		result.Weights = Weights{}
	}
	if result.Fields == nil {
		result.Fields = Fields{}
	}

	for _, layer := range layers {
		if layer.FilterField != nil {
			result.FilterField = *layer.FilterField
		}
		if layer.FilterValue != nil {
			result.FilterValue = layer.FilterValue
		}
		maps.Copy(result.Weights, layer.Weights)
		maps.Copy(result.Fields, layer.Fields)
		if layer.TopCount != nil {
			result.TopCount = *layer.TopCount
		}
		if layer.IncludeScore != nil {
			result.IncludeScore = *layer.IncludeScore
		}
		if layer.ReturnFields != nil {
			result.ReturnFields = slices.Clone(layer.ReturnFields)
		}
	}

	return result
}

// Validate checks the parts of c the pipeline cannot guard against itself.
// All failures wrap ErrInvalidInput.
func (c Config) Validate() error {
	for name, w := range c.Weights {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return fmt.Errorf("%w: weight %q is not finite", ErrInvalidInput, name)
		}
	}
	if c.FilterValue != nil && !reflect.TypeOf(c.FilterValue).Comparable() {
		return fmt.Errorf("%w: filter value of type %T is not comparable", ErrInvalidInput, c.FilterValue)
	}
	for i, f := range c.ReturnFields {
		if f == "" {
			return fmt.Errorf("%w: return field %d is empty", ErrInvalidInput, i)
		}
	}
	return nil
}
