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
	"github.com/mailist-com/automation/utils/maps"
)

const (
	LogicAnd = "and"
	LogicOr  = "or"
)

func init() {
	Registry.Add(&FieldConditionNode{})
	Registry.Add(&IfElseNode{})
}

// FieldConditionNode 单字段比较，例如：country equals PL
// exists/not_exists 忽略配置的比较值
type FieldConditionNode struct {
	Config types.ConditionClause
}

func (x *FieldConditionNode) Type() string {
	return types.ComponentType(types.Condition, "field_condition")
}

func (x *FieldConditionNode) New() types.Node {
	return &FieldConditionNode{}
}

func (x *FieldConditionNode) Init(config types.Config, configuration types.Configuration) error {
	return maps.Map2Struct(configuration, &x.Config)
}

func (x *FieldConditionNode) OnExecute(ctx types.NodeContext, exec *types.ExecutionContext) types.Result {
	return branch(Evaluate(exec, x.Config), map[string]interface{}{"field": x.Config.Field})
}

func (x *FieldConditionNode) Destroy() {
}

// IfElseNodeConfiguration 节点配置
type IfElseNodeConfiguration struct {
	// Logic 多个条件的组合方式：and、or，默认and
	Logic string
	// Conditions 条件列表
	Conditions []types.ConditionClause
}

// IfElseNode 多条件组合判断，没有条件时视为不满足
type IfElseNode struct {
	Config IfElseNodeConfiguration
}

func (x *IfElseNode) Type() string {
	return types.ComponentType(types.Condition, "if_else")
}

func (x *IfElseNode) New() types.Node {
	return &IfElseNode{Config: IfElseNodeConfiguration{Logic: LogicAnd}}
}

func (x *IfElseNode) Init(config types.Config, configuration types.Configuration) error {
	err := maps.Map2Struct(configuration, &x.Config)
	x.Config.Logic = strings.ToLower(strings.TrimSpace(x.Config.Logic))
	if x.Config.Logic == "" {
		x.Config.Logic = LogicAnd
	}
	return err
}

func (x *IfElseNode) OnExecute(ctx types.NodeContext, exec *types.ExecutionContext) types.Result {
	return branch(x.evaluate(exec), map[string]interface{}{"logic": x.Config.Logic})
}

func (x *IfElseNode) evaluate(exec *types.ExecutionContext) bool {
	if len(x.Config.Conditions) == 0 {
		return false
	}
	switch x.Config.Logic {
	case LogicAnd:
		for _, c := range x.Config.Conditions {
			if !Evaluate(exec, c) {
				return false
			}
		}
		return true
	case LogicOr:
		for _, c := range x.Config.Conditions {
			if Evaluate(exec, c) {
				return true
			}
		}
	}
	return false
}

func (x *IfElseNode) Destroy() {
}
