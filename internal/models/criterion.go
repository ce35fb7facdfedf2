package models

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// CriterionType is the discriminator of the Criterion tagged union
type CriterionType string

const (
	CriterionQuizCompletion     CriterionType = "quiz_completion"
	CriterionQuizScore          CriterionType = "quiz_score"
	CriterionTopicMastery       CriterionType = "topic_mastery"
	CriterionModelPaperScore    CriterionType = "model_paper_score"
	CriterionTimeSpent          CriterionType = "time_spent"
	CriterionForumParticipation CriterionType = "forum_participation"
	CriterionStreak             CriterionType = "streak"
	CriterionTotalQuizzes       CriterionType = "total_quizzes"
	CriterionGameAchievement    CriterionType = "game_achievement"
)

// CriterionTypes lists every criterion type the evaluator dispatches on
var CriterionTypes = []CriterionType{
	CriterionQuizCompletion,
	CriterionQuizScore,
	CriterionTopicMastery,
	CriterionModelPaperScore,
	CriterionTimeSpent,
	CriterionForumParticipation,
	CriterionStreak,
	CriterionTotalQuizzes,
	CriterionGameAchievement,
}

// Condition is the comparison operator of a criterion
type Condition string

const (
	ConditionEquals       Condition = "equals"
	ConditionGreaterThan  Condition = "greater_than"
	ConditionLessThan     Condition = "less_than"
	ConditionGreaterEqual Condition = "greater_equal"
	ConditionLessEqual    Condition = "less_equal"
	ConditionContains     Condition = "contains"
	ConditionAll          Condition = "all"

	// game_achievement selects the metric through the condition field
	ConditionBestScore  Condition = "best_score"
	ConditionTotalGames Condition = "total_games"
)

// Conditions lists the generic comparison operators
var Conditions = []Condition{
	ConditionEquals,
	ConditionGreaterThan,
	ConditionLessThan,
	ConditionGreaterEqual,
	ConditionLessEqual,
	ConditionContains,
	ConditionAll,
}

// Criterion is one testable condition inside a badge's conjunctive rule set
type Criterion struct {
	Type      CriterionType  `json:"type" yaml:"type"`
	Condition Condition      `json:"condition" yaml:"condition"`
	Value     CriterionValue `json:"value" yaml:"-"`
	Topic     string         `json:"topic,omitempty" yaml:"topic,omitempty"`
	QuizType  string         `json:"quizType,omitempty" yaml:"quizType,omitempty"`
}

// Validate checks that the type and condition are ones the evaluator understands
func (c Criterion) Validate() error {
	known := false
	for _, t := range CriterionTypes {
		if c.Type == t {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("unknown criterion type %q", c.Type)
	}

	if c.Type == CriterionGameAchievement {
		if c.Condition != ConditionBestScore && c.Condition != ConditionTotalGames {
			return fmt.Errorf("game_achievement condition must be best_score or total_games, got %q", c.Condition)
		}
		return nil
	}

	for _, cond := range Conditions {
		if c.Condition == cond {
			return nil
		}
	}
	return fmt.Errorf("unknown condition %q for criterion type %q", c.Condition, c.Type)
}

// ===============================
// CRITERION VALUES
// ===============================

// ValueKind tags the dynamic type held by a CriterionValue
type ValueKind int

const (
	ValueNull ValueKind = iota
	ValueNumber
	ValueString
	ValueList
)

// CriterionValue is a number, a string, a list of values, or null.
// The zero value is null.
type CriterionValue struct {
	kind ValueKind
	num  float64
	str  string
	list []CriterionValue
}

// NumberValue wraps a number
func NumberValue(f float64) CriterionValue {
	return CriterionValue{kind: ValueNumber, num: f}
}

// StringValue wraps a string
func StringValue(s string) CriterionValue {
	return CriterionValue{kind: ValueString, str: s}
}

// ListValue wraps a list
func ListValue(items ...CriterionValue) CriterionValue {
	return CriterionValue{kind: ValueList, list: items}
}

// StringList is a convenience for a list of strings
func StringList(items ...string) CriterionValue {
	values := make([]CriterionValue, len(items))
	for i, s := range items {
		values[i] = StringValue(s)
	}
	return ListValue(values...)
}

// ValueFrom converts a decoded JSON/YAML scalar or sequence
func ValueFrom(v interface{}) (CriterionValue, error) {
	switch t := v.(type) {
	case nil:
		return CriterionValue{}, nil
	case CriterionValue:
		return t, nil
	case float64:
		return NumberValue(t), nil
	case float32:
		return NumberValue(float64(t)), nil
	case int:
		return NumberValue(float64(t)), nil
	case int64:
		return NumberValue(float64(t)), nil
	case uint64:
		return NumberValue(float64(t)), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return CriterionValue{}, err
		}
		return NumberValue(f), nil
	case string:
		return StringValue(t), nil
	case []interface{}:
		items := make([]CriterionValue, 0, len(t))
		for _, item := range t {
			cv, err := ValueFrom(item)
			if err != nil {
				return CriterionValue{}, err
			}
			items = append(items, cv)
		}
		return ListValue(items...), nil
	case []string:
		return StringList(t...), nil
	default:
		return CriterionValue{}, fmt.Errorf("unsupported criterion value type %T", v)
	}
}

// Kind returns the dynamic type
func (v CriterionValue) Kind() ValueKind { return v.kind }

// IsNull reports whether the value is absent
func (v CriterionValue) IsNull() bool { return v.kind == ValueNull }

// Number returns the numeric value and whether v holds one
func (v CriterionValue) Number() (float64, bool) {
	return v.num, v.kind == ValueNumber
}

// Text returns the string value and whether v holds one
func (v CriterionValue) Text() (string, bool) {
	return v.str, v.kind == ValueString
}

// List returns the list items and whether v holds a list
func (v CriterionValue) List() ([]CriterionValue, bool) {
	return v.list, v.kind == ValueList
}

// Equal is strict equality: same kind and same contents
func (v CriterionValue) Equal(other CriterionValue) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case ValueNull:
		return true
	case ValueNumber:
		return v.num == other.num
	case ValueString:
		return v.str == other.str
	case ValueList:
		if len(v.list) != len(other.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(other.list[i]) {
				return false
			}
		}
		return true
	}
	return false
}

func (v CriterionValue) String() string {
	switch v.kind {
	case ValueNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case ValueString:
		return v.str
	case ValueList:
		data, _ := json.Marshal(v)
		return string(data)
	default:
		return "null"
	}
}

// MarshalJSON encodes the underlying JSON value
func (v CriterionValue) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case ValueNumber:
		return json.Marshal(v.num)
	case ValueString:
		return json.Marshal(v.str)
	case ValueList:
		if v.list == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.list)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON decodes any JSON number, string, array or null
func (v *CriterionValue) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ValueFrom(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
