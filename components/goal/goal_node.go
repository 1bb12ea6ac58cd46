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

// Package goal provides the terminal node components of an automation flow.
// Both nodes have no output sockets, so the path completes after them.
package goal

import (
	"github.com/mailist-com/automation/api/types"
	"github.com/mailist-com/automation/utils/maps"
)

// Registry 组件注册器
var Registry = &types.SafeComponentSlice{}

func init() {
	Registry.Add(&GoalNode{})
	Registry.Add(&EndNode{})
}

// GoalNodeConfiguration 节点配置
type GoalNodeConfiguration struct {
	// GoalName 目标名称，会记录在completed事件里
	GoalName string
}

// GoalNode 记录达成的目标并结束当前路径
type GoalNode struct {
	Config GoalNodeConfiguration
}

func (x *GoalNode) Type() string {
	return types.ComponentType(types.Goal, "goal")
}

func (x *GoalNode) New() types.Node {
	return &GoalNode{}
}

func (x *GoalNode) Init(config types.Config, configuration types.Configuration) error {
	return maps.Map2Struct(configuration, &x.Config)
}

func (x *GoalNode) OnExecute(ctx types.NodeContext, exec *types.ExecutionContext) types.Result {
	return types.Result{
		Goal: x.Config.GoalName,
		Data: map[string]interface{}{"goal": x.Config.GoalName},
	}
}

func (x *GoalNode) Destroy() {
}

// EndNode 结束当前路径
type EndNode struct {
}

func (x *EndNode) Type() string {
	return types.ComponentType(types.End, "end")
}

func (x *EndNode) New() types.Node {
	return &EndNode{}
}

func (x *EndNode) Init(config types.Config, configuration types.Configuration) error {
	return nil
}

func (x *EndNode) OnExecute(ctx types.NodeContext, exec *types.ExecutionContext) types.Result {
	return types.Success(nil)
}

func (x *EndNode) Destroy() {
}
