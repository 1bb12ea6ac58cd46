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
	"github.com/mailist-com/automation/api/types"
	"github.com/mailist-com/automation/utils/maps"
)

func init() {
	Registry.Add(&HasTagNode{})
	Registry.Add(&InListNode{})
}

// HasTagNodeConfiguration 节点配置
type HasTagNodeConfiguration struct {
	Tag string
}

// HasTagNode 判断联系人是否有某个标签
type HasTagNode struct {
	Config HasTagNodeConfiguration
}

func (x *HasTagNode) Type() string {
	return types.ComponentType(types.Condition, "has_tag")
}

func (x *HasTagNode) New() types.Node {
	return &HasTagNode{}
}

func (x *HasTagNode) Init(config types.Config, configuration types.Configuration) error {
	return maps.Map2Struct(configuration, &x.Config)
}

func (x *HasTagNode) OnExecute(ctx types.NodeContext, exec *types.ExecutionContext) types.Result {
	return branch(x.Config.Tag != "" && exec.Contact.HasTag(x.Config.Tag), map[string]interface{}{"tag": x.Config.Tag})
}

func (x *HasTagNode) Destroy() {
}

// InListNodeConfiguration 节点配置
type InListNodeConfiguration struct {
	ListId string
}

// InListNode 判断联系人是否在某个列表
type InListNode struct {
	Config InListNodeConfiguration
}

func (x *InListNode) Type() string {
	return types.ComponentType(types.Condition, "in_list")
}

func (x *InListNode) New() types.Node {
	return &InListNode{}
}

func (x *InListNode) Init(config types.Config, configuration types.Configuration) error {
	return maps.Map2Struct(configuration, &x.Config)
}

func (x *InListNode) OnExecute(ctx types.NodeContext, exec *types.ExecutionContext) types.Result {
	return branch(x.Config.ListId != "" && exec.Contact.InList(x.Config.ListId), map[string]interface{}{"listId": x.Config.ListId})
}

func (x *InListNode) Destroy() {
}
