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

package condition

import (
	"strings"

	"github.com/mailist-com/automation/api/types"
	"github.com/mailist-com/automation/components/base"
	"github.com/mailist-com/automation/utils/str"
)

// Evaluate 对执行上下文计算一个字段条件
// 不支持的操作符以及不存在的字段（not_exists除外）都返回false
func Evaluate(exec *types.ExecutionContext, clause types.ConditionClause) bool {
	if !clause.Operator.IsValid() {
		return false
	}
	actual, ok := base.NodeUtils.FieldValue(exec, strings.TrimSpace(clause.Field))
	switch clause.Operator {
	case types.OpExists:
		return ok
	case types.OpNotExists:
		return !ok
	}
	if !ok {
		return false
	}
	switch clause.Operator {
	case types.OpEquals:
		return equals(actual, clause.Value)
	case types.OpNotEquals:
		return !equals(actual, clause.Value)
	case types.OpContains:
		return contains(actual, clause.Value)
	case types.OpNotContains:
		return !contains(actual, clause.Value)
	case types.OpGreater, types.OpLess:
		a, okA := str.ToFloat(actual)
		b, okB := str.ToFloat(clause.Value)
		if !okA || !okB {
			return false
		}
		if clause.Operator == types.OpGreater {
			return a > b
		}
		return a < b
	case types.OpStartsWith:
		return strings.HasPrefix(str.ToString(actual), str.ToString(clause.Value))
	case types.OpEndsWith:
		return strings.HasSuffix(str.ToString(actual), str.ToString(clause.Value))
	}
	return false
}

func equals(actual, expected interface{}) bool {
	if a, ok := str.ToFloat(actual); ok {
		if b, ok := str.ToFloat(expected); ok {
			return a == b
		}
	}
	return str.ToString(actual) == str.ToString(expected)
}

func contains(actual, expected interface{}) bool {
	if list, ok := toList(actual); ok {
		return str.Contains(list, str.ToString(expected))
	}
	return strings.Contains(str.ToString(actual), str.ToString(expected))
}

func toList(v interface{}) ([]string, bool) {
	switch list := v.(type) {
	case []string:
		return list, true
	case []interface{}:
		result := make([]string, len(list))
		for i, item := range list {
			result[i] = str.ToString(item)
		}
		return result, true
	}
	return nil, false
}
