package domain

import "fmt"

// FilterOp is a predicate in the closed filter grammar. Every backend
// adapter translates exactly these three operators into its native
// filter syntax; anything it cannot express fails with ErrInvalidFilter
// rather than being silently dropped.
type FilterOp string

// Supported filter operators.
const (
	// FilterEq matches records whose metadata field equals Value.
	FilterEq FilterOp = "eq"

	// FilterIn matches records whose metadata field equals any of Values.
	FilterIn FilterOp = "in"

	// FilterRange matches records whose numeric metadata field lies in
	// [Min, Max], inclusive on both ends.
	FilterRange FilterOp = "range"
)

// Filter is a single metadata predicate.
type Filter struct {
	// Field is the metadata key to match against.
	Field string

	// Op selects the predicate.
	Op FilterOp

	// Value is the operand for FilterEq.
	Value any

	// Values are the operands for FilterIn.
	Values []any

	// Min and Max bound FilterRange.
	Min float64
	Max float64
}

// Validate checks the predicate is well formed.
func (f Filter) Validate() error {
	if f.Field == "" {
		return fmt.Errorf("%w: filter field is empty", ErrInvalidFilter)
	}
	switch f.Op {
	case FilterEq:
		if f.Value == nil {
			return fmt.Errorf("%w: eq filter on %q has no value", ErrInvalidFilter, f.Field)
		}
	case FilterIn:
		if len(f.Values) == 0 {
			return fmt.Errorf("%w: in filter on %q has no values", ErrInvalidFilter, f.Field)
		}
	case FilterRange:
		if f.Min > f.Max {
			return fmt.Errorf("%w: range filter on %q has min > max", ErrInvalidFilter, f.Field)
		}
	default:
		return fmt.Errorf("%w: unknown operator %q", ErrInvalidFilter, f.Op)
	}
	return nil
}

// ValidateFilters validates every predicate in a filter set.
func ValidateFilters(filters []Filter) error {
	for _, f := range filters {
		if err := f.Validate(); err != nil {
			return err
		}
	}
	return nil
}
