package repository

import "github.com/doug-martin/goqu/v9"

// ConditionBuilder collects the optional equality filters of a list endpoint
// under their API names and renders them against one query's columns.
type ConditionBuilder struct {
	conditions map[string]interface{}
}

func NewQueryBuilder() *ConditionBuilder {
	return &ConditionBuilder{
		conditions: make(map[string]interface{}),
	}
}

func (q *ConditionBuilder) AddCondition(key string, value interface{}) *ConditionBuilder {
	q.conditions[key] = value
	return q
}

// Optional adds key = *value when the filter was supplied.
func Optional[T any](q *ConditionBuilder, key string, value *T) *ConditionBuilder {
	if value != nil {
		q.conditions[key] = *value
	}
	return q
}

// OptionalEnum is Optional for string enums, which the driver only accepts
// as plain strings.
func OptionalEnum[T ~string](q *ConditionBuilder, key string, value *T) *ConditionBuilder {
	if value != nil {
		q.conditions[key] = string(*value)
	}
	return q
}

// BuildConditions maps every key through columns. Keys without a column keep
// their own name.
func (q *ConditionBuilder) BuildConditions(columns map[string]string) goqu.Ex {
	conditions := goqu.Ex{}
	for key, value := range q.conditions {
		if column, ok := columns[key]; ok {
			conditions[column] = value
		} else {
			conditions[key] = value
		}
	}
	return conditions
}
