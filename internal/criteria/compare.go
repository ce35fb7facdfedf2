package criteria

import (
	"strings"

	"achievehub/internal/models"

	"golang.org/x/exp/slices"
)

// Compare applies cond to actual and expected. It is total: unknown
// conditions, null actual values and mismatched kinds all yield false.
func Compare(actual models.CriterionValue, cond models.Condition, expected models.CriterionValue) bool {
	if actual.IsNull() {
		return false
	}

	switch cond {
	case models.ConditionEquals:
		return actual.Equal(expected)
	case models.ConditionGreaterThan:
		c, ok := order(actual, expected)
		return ok && c > 0
	case models.ConditionLessThan:
		c, ok := order(actual, expected)
		return ok && c < 0
	case models.ConditionGreaterEqual:
		c, ok := order(actual, expected)
		return ok && c >= 0
	case models.ConditionLessEqual:
		c, ok := order(actual, expected)
		return ok && c <= 0
	case models.ConditionContains:
		if items, ok := actual.List(); ok {
			return containsValue(items, expected)
		}
		return strings.Contains(actual.String(), expected.String())
	case models.ConditionAll:
		wanted, ok := expected.List()
		if !ok {
			return actual.Equal(expected)
		}
		have, isList := actual.List()
		for _, w := range wanted {
			if isList {
				if !containsValue(have, w) {
					return false
				}
			} else if !actual.Equal(w) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// CompareNumber is Compare for a numeric actual value
func CompareNumber(actual float64, cond models.Condition, expected models.CriterionValue) bool {
	return Compare(models.NumberValue(actual), cond, expected)
}

// order compares two numbers or two strings
func order(a, b models.CriterionValue) (int, bool) {
	if x, ok := a.Number(); ok {
		y, ok := b.Number()
		if !ok {
			return 0, false
		}
		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		default:
			return 0, true
		}
	}
	if x, ok := a.Text(); ok {
		y, ok := b.Text()
		if !ok {
			return 0, false
		}
		return strings.Compare(x, y), true
	}
	return 0, false
}

func containsValue(items []models.CriterionValue, v models.CriterionValue) bool {
	return slices.ContainsFunc(items, func(item models.CriterionValue) bool {
		return item.Equal(v)
	})
}
