package criteria

import (
	"testing"

	"achievehub/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestCompare(t *testing.T) {
	num := models.NumberValue
	str := models.StringValue
	list := models.ListValue

	tests := []struct {
		name     string
		actual   models.CriterionValue
		cond     models.Condition
		expected models.CriterionValue
		want     bool
	}{
		{"equals number", num(100), models.ConditionEquals, num(100), true},
		{"equals kind mismatch", num(1), models.ConditionEquals, str("1"), false},
		{"greater than", num(46), models.ConditionGreaterThan, num(45), true},
		{"greater than boundary", num(45), models.ConditionGreaterThan, num(45), false},
		{"greater equal boundary", num(45), models.ConditionGreaterEqual, num(45), true},
		{"less than", num(1), models.ConditionLessThan, num(2), true},
		{"less equal", num(2), models.ConditionLessEqual, num(2), true},
		{"ordered strings", str("b"), models.ConditionGreaterThan, str("a"), true},
		{"ordered mixed kinds", num(5), models.ConditionGreaterThan, str("a"), false},
		{"ordered against list", num(5), models.ConditionGreaterEqual, list(num(1)), false},
		{"contains in list", list(str("algebra"), str("geometry")), models.ConditionContains, str("geometry"), true},
		{"contains missing", list(str("algebra")), models.ConditionContains, str("calculus"), false},
		{"contains substring", str("algebra-basics"), models.ConditionContains, str("basics"), true},
		{"contains number as text", num(120), models.ConditionContains, num(12), true},
		{"all subset", list(str("a"), str("b"), str("c")), models.ConditionAll, list(str("a"), str("c")), true},
		{"all missing", list(str("a")), models.ConditionAll, list(str("a"), str("b")), false},
		{"all scalar actual", str("a"), models.ConditionAll, list(str("a"), str("a")), true},
		{"all scalar expected", num(3), models.ConditionAll, num(3), true},
		{"null actual", models.CriterionValue{}, models.ConditionEquals, models.CriterionValue{}, false},
		{"unknown condition", num(1), models.Condition("approximately"), num(1), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Compare(tt.actual, tt.cond, tt.expected))
		})
	}
}

func TestCompare_NullActualIsAlwaysFalse(t *testing.T) {
	conditions := append([]models.Condition{}, models.Conditions...)
	conditions = append(conditions, models.ConditionBestScore, "bogus")

	expectations := []models.CriterionValue{
		{},
		models.NumberValue(0),
		models.StringValue(""),
		models.StringList("x"),
	}

	for _, cond := range conditions {
		for _, expected := range expectations {
			assert.False(t, Compare(models.CriterionValue{}, cond, expected), "condition %s", cond)
		}
	}
}
