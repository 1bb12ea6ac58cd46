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

package action

import (
	"errors"
	"strings"

	"github.com/mailist-com/automation/api/types"
	"github.com/mailist-com/automation/components/base"
	"github.com/mailist-com/automation/utils/el"
	"github.com/mailist-com/automation/utils/maps"
)

var ErrFieldRequired = errors.New("field is required")

func init() {
	Registry.Add(&AddTagNode{})
	Registry.Add(&RemoveTagNode{})
	Registry.Add(&AddToListNode{})
	Registry.Add(&RemoveFromListNode{})
	Registry.Add(&UpdateFieldNode{})
}

// TagNodeConfiguration 节点配置
type TagNodeConfiguration struct {
	Tag string
}

// AddTagNode 给联系人添加标签
type AddTagNode struct {
	Config TagNodeConfiguration
}

func (x *AddTagNode) Type() string {
	return types.ComponentType(types.Action, "add_tag")
}

func (x *AddTagNode) New() types.Node {
	return &AddTagNode{}
}

func (x *AddTagNode) Init(config types.Config, configuration types.Configuration) error {
	return maps.Map2Struct(configuration, &x.Config)
}

func (x *AddTagNode) OnExecute(ctx types.NodeContext, exec *types.ExecutionContext) types.Result {
	contacts, err := base.NodeUtils.Contacts(ctx)
	if err != nil {
		return types.Failure(err)
	}
	if err := contacts.AddTag(ctx.GetContext(), exec.ContactId, x.Config.Tag); err != nil {
		return types.Failure(err)
	}
	exec.Contact.AddTag(x.Config.Tag)
	return types.Success(map[string]interface{}{"tagAdded": x.Config.Tag})
}

func (x *AddTagNode) Destroy() {
}

// RemoveTagNode 删除联系人标签
type RemoveTagNode struct {
	Config TagNodeConfiguration
}

func (x *RemoveTagNode) Type() string {
	return types.ComponentType(types.Action, "remove_tag")
}

func (x *RemoveTagNode) New() types.Node {
	return &RemoveTagNode{}
}

func (x *RemoveTagNode) Init(config types.Config, configuration types.Configuration) error {
	return maps.Map2Struct(configuration, &x.Config)
}

func (x *RemoveTagNode) OnExecute(ctx types.NodeContext, exec *types.ExecutionContext) types.Result {
	contacts, err := base.NodeUtils.Contacts(ctx)
	if err != nil {
		return types.Failure(err)
	}
	if err := contacts.RemoveTag(ctx.GetContext(), exec.ContactId, x.Config.Tag); err != nil {
		return types.Failure(err)
	}
	exec.Contact.RemoveTag(x.Config.Tag)
	return types.Success(map[string]interface{}{"tagRemoved": x.Config.Tag})
}

func (x *RemoveTagNode) Destroy() {
}

// ListNodeConfiguration 节点配置
type ListNodeConfiguration struct {
	ListId string
}

// AddToListNode 把联系人加入列表，输出 data.addedToList
type AddToListNode struct {
	Config ListNodeConfiguration
}

func (x *AddToListNode) Type() string {
	return types.ComponentType(types.Action, "add_to_list")
}

func (x *AddToListNode) New() types.Node {
	return &AddToListNode{}
}

func (x *AddToListNode) Init(config types.Config, configuration types.Configuration) error {
	return maps.Map2Struct(configuration, &x.Config)
}

func (x *AddToListNode) OnExecute(ctx types.NodeContext, exec *types.ExecutionContext) types.Result {
	contacts, err := base.NodeUtils.Contacts(ctx)
	if err != nil {
		return types.Failure(err)
	}
	if err := contacts.AddToList(ctx.GetContext(), exec.ContactId, x.Config.ListId); err != nil {
		return types.Failure(err)
	}
	exec.Contact.AddToList(x.Config.ListId)
	return types.Success(map[string]interface{}{"addedToList": x.Config.ListId})
}

func (x *AddToListNode) Destroy() {
}

// RemoveFromListNode 把联系人移出列表
type RemoveFromListNode struct {
	Config ListNodeConfiguration
}

func (x *RemoveFromListNode) Type() string {
	return types.ComponentType(types.Action, "remove_from_list")
}

func (x *RemoveFromListNode) New() types.Node {
	return &RemoveFromListNode{}
}

func (x *RemoveFromListNode) Init(config types.Config, configuration types.Configuration) error {
	return maps.Map2Struct(configuration, &x.Config)
}

func (x *RemoveFromListNode) OnExecute(ctx types.NodeContext, exec *types.ExecutionContext) types.Result {
	contacts, err := base.NodeUtils.Contacts(ctx)
	if err != nil {
		return types.Failure(err)
	}
	if err := contacts.RemoveFromList(ctx.GetContext(), exec.ContactId, x.Config.ListId); err != nil {
		return types.Failure(err)
	}
	exec.Contact.RemoveFromList(x.Config.ListId)
	return types.Success(map[string]interface{}{"removedFromList": x.Config.ListId})
}

func (x *RemoveFromListNode) Destroy() {
}

// UpdateFieldNodeConfiguration 节点配置
type UpdateFieldNodeConfiguration struct {
	// Field 联系人字段名
	Field string
	// Value 字段值，字符串可以使用${}模板，整个值是一个表达式时保留表达式结果的类型
	// 例如：${contact.score + 10}
	Value interface{}
}

// UpdateFieldNode 更新联系人字段
type UpdateFieldNode struct {
	Config        UpdateFieldNodeConfiguration
	valueTemplate el.Template
}

func (x *UpdateFieldNode) Type() string {
	return types.ComponentType(types.Action, "update_field")
}

func (x *UpdateFieldNode) New() types.Node {
	return &UpdateFieldNode{}
}

func (x *UpdateFieldNode) Init(config types.Config, configuration types.Configuration) error {
	err := maps.Map2Struct(configuration, &x.Config)
	if err != nil {
		return err
	}
	x.Config.Field = strings.TrimSpace(x.Config.Field)
	if x.Config.Field == "" {
		return ErrFieldRequired
	}
	if s, ok := x.Config.Value.(string); ok {
		x.valueTemplate, err = base.NodeUtils.NewTemplate(s)
	}
	return err
}

func (x *UpdateFieldNode) OnExecute(ctx types.NodeContext, exec *types.ExecutionContext) types.Result {
	contacts, err := base.NodeUtils.Contacts(ctx)
	if err != nil {
		return types.Failure(err)
	}
	value := x.Config.Value
	if x.valueTemplate != nil {
		if value, err = x.valueTemplate.Execute(base.NodeUtils.GetEnv(ctx, exec)); err != nil {
			return types.Failure(err)
		}
	}
	fields := map[string]interface{}{x.Config.Field: value}
	if err := contacts.UpdateFields(ctx.GetContext(), exec.ContactId, fields); err != nil {
		return types.Failure(err)
	}
	exec.Contact.SetField(x.Config.Field, value)
	return types.Success(map[string]interface{}{
		"field": x.Config.Field,
		"value": value,
	})
}

func (x *UpdateFieldNode) Destroy() {
}
