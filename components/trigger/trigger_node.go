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

// Package trigger provides the trigger node components of an automation flow.
//
// A trigger starts a flow for one contact. It has no input socket and the
// triggering event already satisfies it, so execution just passes through.
// Routing decides which active flows an event starts through Matches.
package trigger

import (
	"strings"

	"github.com/mailist-com/automation/api/types"
	"github.com/mailist-com/automation/utils/maps"
	"github.com/mailist-com/automation/utils/str"
)

// Registry 组件注册器
var Registry = &types.SafeComponentSlice{}

// 事件数据key
const (
	EventKeyTag       = "tag"
	EventKeyListId    = "listId"
	EventKeyField     = "field"
	EventKeyFormId    = "formId"
	EventKeyEventName = "eventName"
)

func init() {
	Registry.Add(
		newTriggerNode("tag_added", "tagName", EventKeyTag),
		newTriggerNode("tag_removed", "tagName", EventKeyTag),
		newTriggerNode("list_joined", "listId", EventKeyListId),
		newTriggerNode("list_left", "listId", EventKeyListId),
		newTriggerNode("field_changed", "field", EventKeyField),
		newTriggerNode("form_submitted", "formId", EventKeyFormId),
		newTriggerNode("contact_created", "", ""),
		newTriggerNode("custom_event", "eventName", EventKeyEventName),
	)
}

// TriggerNode 触发器节点
// 同一个实现服务所有触发器子类型，区别只在于比较哪个配置项和事件数据的哪个key
type TriggerNode struct {
	subtype string
	// settingKey 节点配置中的过滤值，例如：tagName
	settingKey string
	// eventKey 事件数据中对应的key，例如：tag
	eventKey string
	// Filter 过滤值，为空匹配该子类型的所有事件
	Filter   string
	Settings types.Configuration
}

var _ types.TriggerMatcher = (*TriggerNode)(nil)

func newTriggerNode(subtype, settingKey, eventKey string) *TriggerNode {
	return &TriggerNode{subtype: subtype, settingKey: settingKey, eventKey: eventKey}
}

func (x *TriggerNode) Type() string {
	return types.ComponentType(types.Trigger, x.subtype)
}

func (x *TriggerNode) New() types.Node {
	return newTriggerNode(x.subtype, x.settingKey, x.eventKey)
}

func (x *TriggerNode) Init(config types.Config, configuration types.Configuration) error {
	x.Settings = configuration.Copy()
	if x.settingKey != "" && configuration != nil {
		x.Filter = strings.TrimSpace(str.ToString(configuration[x.settingKey]))
	}
	return nil
}

// Matches 事件是否触发该节点
func (x *TriggerNode) Matches(event types.TriggerEvent) bool {
	if event.Subtype != x.subtype {
		return false
	}
	if x.eventKey == "" || x.Filter == "" {
		return true
	}
	return str.ToString(maps.Get(event.Data, x.eventKey)) == x.Filter
}

// OnExecute 直接通过
func (x *TriggerNode) OnExecute(ctx types.NodeContext, exec *types.ExecutionContext) types.Result {
	data := map[string]interface{}{"trigger": x.subtype}
	if x.Filter != "" {
		data[x.settingKey] = x.Filter
	}
	return types.Success(data)
}

func (x *TriggerNode) Destroy() {
}
