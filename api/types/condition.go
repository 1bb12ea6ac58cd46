/*
 * Copyright 2023 The RuleGo Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package types

import (
	"strings"
	"time"
)

// Operator 字段比较操作符
type Operator string

const (
	OpEquals      Operator = "equals"
	OpNotEquals   Operator = "not_equals"
	OpContains    Operator = "contains"
	OpNotContains Operator = "not_contains"
	OpGreater     Operator = "greater"
	OpLess        Operator = "less"
	OpExists      Operator = "exists"
	OpNotExists   Operator = "not_exists"
	OpStartsWith  Operator = "starts_with"
	OpEndsWith    Operator = "ends_with"
)

// IsValid 是否是支持的操作符
func (op Operator) IsValid() bool {
	switch op {
	case OpEquals, OpNotEquals, OpContains, OpNotContains, OpGreater, OpLess,
		OpExists, OpNotExists, OpStartsWith, OpEndsWith:
		return true
	}
	return false
}

// NeedsValue exists/not_exists 忽略比较值
func (op Operator) NeedsValue() bool {
	return op != OpExists && op != OpNotExists
}

// ConditionClause 一个字段比较条件
type ConditionClause struct {
	Field    string      `json:"field" mapstructure:"field"`
	Operator Operator    `json:"operator" mapstructure:"operator"`
	Value    interface{} `json:"value" mapstructure:"value"`
}

// IsComplete 条件是否完整
func (c ConditionClause) IsComplete() bool {
	if strings.TrimSpace(c.Field) == "" || !c.Operator.IsValid() {
		return false
	}
	if c.Operator.NeedsValue() {
		return c.Value != nil && c.Value != ""
	}
	return true
}

// UnitDuration 延迟时间单位换算，支持 seconds/minutes/hours/days/weeks 及单数形式
func UnitDuration(unit string) (time.Duration, bool) {
	switch strings.TrimSuffix(strings.ToLower(strings.TrimSpace(unit)), "s") {
	case "second":
		return time.Second, true
	case "minute":
		return time.Minute, true
	case "hour":
		return time.Hour, true
	case "day":
		return time.Hour * 24, true
	case "week":
		return time.Hour * 24 * 7, true
	}
	return 0, false
}
