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

// Package condition provides the branching node components of an automation flow.
//
// A condition evaluates a predicate against the path's contact and variables
// and routes to output-if or output-else. An unknown operator or a missing
// field is treated as "not met", never as an error. ab_split routes to
// output-a or output-b instead.
//
// Example:
//
//	{
//	  "type": "condition",
//	  "data": {
//	    "subtype": "field_condition",
//	    "settings": {"field": "country", "operator": "equals", "value": "PL"}
//	  }
//	}
package condition

import (
	"github.com/mailist-com/automation/api/types"
)

// Registry 组件注册器
var Registry = &types.SafeComponentSlice{}

// branch 根据判断结果选择输出端口
func branch(met bool, data map[string]interface{}) types.Result {
	if data == nil {
		data = make(map[string]interface{})
	}
	data["met"] = met
	if met {
		return types.Route(types.OutputIf, data)
	}
	return types.Route(types.OutputElse, data)
}
