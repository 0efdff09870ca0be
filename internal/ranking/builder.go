package ranking

// Builder accumulates Overrides one step at a time. It is an immutable value:
// every method returns a new Builder and leaves the receiver untouched, so a
// partially built Builder can be shared and extended independently.
//
// The builder neither validates nor applies defaults; Rank does both.
type Builder struct {
	o Overrides
}

// NewBuilder returns an empty Builder.
func NewBuilder() Builder {
	return Builder{}
}

// FilterBy keeps only records whose field equals value.
func (b Builder) FilterBy(field string, value any) Builder {
	o := b.o.Clone()
	o.FilterField = strPtr(field)
	o.FilterValue = value
	return Builder{o: o}
}

// TopCount limits the output length.
func (b Builder) TopCount(n int) Builder {
	o := b.o.Clone()
	o.TopCount = intPtr(n)
	return Builder{o: o}
}

// Weights merges w into the weights set so far.
func (b Builder) Weights(w Weights) Builder {
	o := b.o.Clone()
	if o.Weights == nil {
		o.Weights = make(Weights, len(w))
	}
	for k, v := range w {
		o.Weights[k] = v
	}
	return Builder{o: o}
}

// Fields merges f into the field mapping set so far.
func (b Builder) Fields(f Fields) Builder {
	o := b.o.Clone()
	if o.Fields == nil {
		o.Fields = make(Fields, len(f))
	}
	for k, v := range f {
		o.Fields[k] = v
	}
	return Builder{o: o}
}

// ReturnFields projects the output to the listed fields.
func (b Builder) ReturnFields(fields ...string) Builder {
	o := b.o.Clone()
	o.ReturnFields = append(make([]string, 0, len(fields)), fields...)
	return Builder{o: o}
}

// IncludeScore controls whether trending_score is present in the output.
func (b Builder) IncludeScore(include bool) Builder {
	o := b.o.Clone()
	o.IncludeScore = boolPtr(include)
	return Builder{o: o}
}

// Build returns the accumulated overrides.
func (b Builder) Build() Overrides {
	return b.o.Clone()
}
