package achievement

import (
	"errors"
)

// Aggregate is a one-pass summary of the event logs inside an achievement's
// condition window. All five scalars are computed together so the evaluator
// stays a pure function over a fixed snapshot.
type Aggregate struct {
	Count int64   `gorm:"column:count"`
	Sum   float64 `gorm:"column:sum"`
	Avg   float64 `gorm:"column:avg"`
	Min   float64 `gorm:"column:min"`
	Max   float64 `gorm:"column:max"`
}

// ErrUnsupportedAggregate marks condition configurations the built-in
// evaluator does not handle. CUSTOM aggregation is deferred to an external
// evaluator that does not exist yet; returning an explicit error keeps "not
// implemented" a first-class outcome instead of a silent default.
var ErrUnsupportedAggregate = errors.New("aggregate type is not supported by the built-in evaluator")

// Evaluate decides whether the achievement's condition holds for the given
// aggregate. An unrecognized comparison type evaluates to false: the
// evaluator fails closed, never open, on unknown conditions.
func Evaluate(a *Achievement, agg Aggregate) (bool, error) {
	var scalar float64

	switch a.ConditionAggregateType {
	case AggregateCount:
		scalar = float64(agg.Count)
	case AggregateSum:
		scalar = agg.Sum
	case AggregateAvg:
		scalar = agg.Avg
	case AggregateMin:
		scalar = agg.Min
	case AggregateMax:
		scalar = agg.Max
	case AggregateCustom:
		return false, ErrUnsupportedAggregate
	default:
		return false, ErrUnsupportedAggregate
	}

	switch a.ConditionComparisonType {
	case CompareEqual:
		return scalar == a.ConditionValue, nil
	case CompareGreaterThan:
		return scalar > a.ConditionValue, nil
	case CompareGreaterThanOrEqual:
		return scalar >= a.ConditionValue, nil
	case CompareLessThan:
		return scalar < a.ConditionValue, nil
	case CompareLessThanOrEqual:
		return scalar <= a.ConditionValue, nil
	default:
		return false, nil
	}
}
