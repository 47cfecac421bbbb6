package achievement

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func TestEvaluateAggregates(t *testing.T) {
	// Snapshot of three logs with values 10, 20, 30.
	agg := Aggregate{Count: 3, Sum: 60, Avg: 20, Min: 10, Max: 30}

	tests := []struct {
		name      string
		aggregate AggregateType
		compare   ComparisonType
		value     float64
		want      bool
	}{
		{"count equal", AggregateCount, CompareEqual, 3, true},
		{"count not equal", AggregateCount, CompareEqual, 4, false},
		{"sum gte met", AggregateSum, CompareGreaterThanOrEqual, 60, true},
		{"sum gte not met", AggregateSum, CompareGreaterThanOrEqual, 61, false},
		{"sum gt strict", AggregateSum, CompareGreaterThan, 60, false},
		{"avg lt", AggregateAvg, CompareLessThan, 25, true},
		{"min lte", AggregateMin, CompareLessThanOrEqual, 10, true},
		{"max gt", AggregateMax, CompareGreaterThan, 29, true},
		{"max gt not met", AggregateMax, CompareGreaterThan, 30, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a := &Achievement{
				ConditionAggregateType:  tc.aggregate,
				ConditionComparisonType: tc.compare,
				ConditionValue:          tc.value,
			}

			got, err := Evaluate(a, agg)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestEvaluateCustomAggregateUnsupported(t *testing.T) {
	a := &Achievement{
		ConditionAggregateType:  AggregateCustom,
		ConditionComparisonType: CompareEqual,
		ConditionValue:          1,
	}

	ok, err := Evaluate(a, Aggregate{Count: 1})
	require.ErrorIs(t, err, ErrUnsupportedAggregate)
	require.False(t, ok)
}

func TestEvaluateUnknownAggregateUnsupported(t *testing.T) {
	a := &Achievement{
		ConditionAggregateType:  AggregateType("PERCENTILE"),
		ConditionComparisonType: CompareEqual,
	}

	ok, err := Evaluate(a, Aggregate{})
	require.ErrorIs(t, err, ErrUnsupportedAggregate)
	require.False(t, ok)
}

func TestEvaluateUnknownComparisonFailsClosed(t *testing.T) {
	a := &Achievement{
		ConditionAggregateType:  AggregateCount,
		ConditionComparisonType: ComparisonType("NOT_EQUAL"),
		ConditionValue:          0,
	}

	ok, err := Evaluate(a, Aggregate{Count: 5})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestEvaluateEmptyWindow(t *testing.T) {
	// A zero-row window aggregates to zeros, so LESS_THAN conditions can
	// still fire while COUNT thresholds cannot.
	a := &Achievement{
		ConditionAggregateType:  AggregateCount,
		ConditionComparisonType: CompareGreaterThanOrEqual,
		ConditionValue:          1,
	}

	ok, err := Evaluate(a, Aggregate{})
	require.NoError(t, err)
	require.False(t, ok)
}
