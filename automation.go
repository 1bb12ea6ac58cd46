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

// Package automation 营销自动化流程构建器和运行时
//
// # Usage
//
// 流程图由编辑器(editor)构建，保存到流程图池，激活后响应联系人事件：
//
//	a := automation.New(types.NewConfig(
//		types.WithContacts(contacts),
//		types.WithMessenger(messenger),
//	))
//	_ = a.Start()
//	defer a.Stop()
//
// 保存并激活流程图
//
//	_ = a.Flows.Save(ctx, "welcome", graph)
//	_ = a.Flows.Activate(ctx, "welcome")
//
// 联系人被打上 vip 标签
//
//	ids, err := a.HandleEvent(ctx, types.TriggerEvent{
//		Subtype:   "tag_added",
//		ContactId: "c1",
//		Data:      map[string]interface{}{"tag": "vip"},
//	})
//
// 订阅执行事件
//
//	a.Engine.Subscribe(func(event types.ExecutionEvent) {
//		log.Println(event.Type, event.ExecutionId)
//	})
package automation

import (
	"context"
	"errors"
	"fmt"

	"github.com/mailist-com/automation/api/types"
	"github.com/mailist-com/automation/engine"
)

// TriggerVar 触发事件数据保存的变量名
const TriggerVar = "trigger"

// Automation 组合执行引擎、流程图池和触发器路由
type Automation struct {
	Engine *engine.Engine
	Flows  *FlowPool
}

// New 创建实例，没有配置的协作者使用默认实现
func New(config types.Config) *Automation {
	e := engine.New(config)
	config = e.Config()
	return &Automation{
		Engine: e,
		Flows:  NewFlowPool(config.Store, config.Catalog, config.Logger, WithFlowCheck(e.Check)),
	}
}

// Start 恢复激活的流程图，启动延迟路径的定时恢复
func (a *Automation) Start() error {
	if err := a.Flows.Restore(context.Background()); err != nil {
		a.Engine.Config().Logger.Printf("restore active flows error: %s", err.Error())
	}
	return a.Engine.Start()
}

// Stop 停止引擎，等待正在执行的路径结束
func (a *Automation) Stop() {
	a.Engine.Stop()
}

// Execute 为联系人执行一个保存的流程图，不要求流程图已激活
func (a *Automation) Execute(ctx context.Context, flowId string, contact types.Contact, vars map[string]interface{}, opts ...engine.StartOption) (string, error) {
	graph, err := a.Flows.Load(ctx, flowId)
	if err != nil {
		return "", err
	}
	return a.Engine.StartExecution(ctx, graph, contact, vars, opts...)
}

// HandleEvent 所有激活的流程图中匹配该事件的触发器，都会为事件的联系人启动一次执行
// 返回启动的执行ID
func (a *Automation) HandleEvent(ctx context.Context, event types.TriggerEvent) ([]string, error) {
	contact, err := a.contact(ctx, event.ContactId)
	if err != nil {
		return nil, err
	}
	var ids []string
	var errs []error
	for _, flowId := range a.Flows.ListActive() {
		graph, ok := a.Flows.Get(flowId)
		if !ok {
			continue
		}
		fc, err := a.Engine.Prepare(ctx, graph)
		if err != nil {
			errs = append(errs, fmt.Errorf("flow %s: %w", flowId, err))
			continue
		}
		for _, trigger := range fc.MatchTriggers(event) {
			vars := map[string]interface{}{TriggerVar: triggerData(event)}
			id, err := a.Engine.StartExecution(ctx, graph, contact, vars, engine.WithTriggerNode(trigger.Id))
			if err != nil {
				errs = append(errs, fmt.Errorf("flow %s: %w", flowId, err))
			}
			if id != "" {
				ids = append(ids, id)
			}
		}
	}
	return ids, errors.Join(errs...)
}

// contact 从联系人协作者读取最新数据，没有配置时只使用ID
func (a *Automation) contact(ctx context.Context, contactId string) (types.Contact, error) {
	contacts := a.Engine.Config().Contacts
	if contacts == nil {
		return types.Contact{Id: contactId}, nil
	}
	return contacts.GetContact(ctx, contactId)
}

func triggerData(event types.TriggerEvent) map[string]interface{} {
	data := make(map[string]interface{}, len(event.Data)+1)
	for k, v := range event.Data {
		data[k] = v
	}
	data["type"] = event.Subtype
	return data
}
