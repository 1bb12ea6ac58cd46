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
	"time"

	"github.com/mailist-com/automation/utils/maps"
)

// 执行上下文环境变量key
const (
	ContactKey     = "contact"
	VarsKey        = "vars"
	GlobalKey      = "global"
	ExecutionIdKey = "executionId"
	NodeIdKey      = "nodeId"
)

// ExecutionContext 一个联系人在一个流程实例中一条路径的可变工作状态
// ExecutionContext is the mutable working state of one contact's walk along one path
// of a graph. Fan-out produces independent copies, never shared across branches.
type ExecutionContext struct {
	ExecutionId string `json:"executionId"`
	// PathId 路径ID，分支后每条路径独立
	PathId string `json:"pathId"`
	// FlowKey 执行所用流程图的内容key，用于延迟恢复时加载同一版本的流程图
	FlowKey   string                 `json:"flowKey"`
	FlowName  string                 `json:"flowName"`
	ContactId string                 `json:"contactId"`
	Contact   Contact                `json:"contact"`
	Variables map[string]interface{} `json:"variables"`
	StartedAt time.Time              `json:"startedAt"`
	// CurrentNodeId 当前执行节点
	CurrentNodeId string `json:"currentNodeId"`
}

// Copy 深拷贝执行上下文，分支得到新的路径ID
func (c *ExecutionContext) Copy(pathId string) *ExecutionContext {
	nc := *c
	nc.PathId = pathId
	nc.Contact = c.Contact.Copy()
	nc.Variables = maps.DeepCopy(c.Variables)
	if nc.Variables == nil {
		nc.Variables = make(map[string]interface{})
	}
	return &nc
}

// SetVar 设置变量
func (c *ExecutionContext) SetVar(key string, value interface{}) {
	if c.Variables == nil {
		c.Variables = make(map[string]interface{})
	}
	c.Variables[key] = value
}

// Env 表达式和模板使用的环境变量
func (c *ExecutionContext) Env(properties map[string]string) map[string]interface{} {
	evn := map[string]interface{}{
		ContactKey:     c.Contact.ToMap(),
		VarsKey:        c.Variables,
		ExecutionIdKey: c.ExecutionId,
		NodeIdKey:      c.CurrentNodeId,
	}
	if properties != nil {
		evn[GlobalKey] = properties
	}
	return evn
}

// EventType 执行事件类型
type EventType string

const (
	EventStarted      EventType = "started"
	EventNodeExecuted EventType = "node_executed"
	EventCompleted    EventType = "completed"
	EventFailed       EventType = "failed"
	EventPaused       EventType = "paused"
	// EventSuspended 在延迟节点挂起
	EventSuspended EventType = "suspended"
	EventResumed   EventType = "resumed"
	EventCancelled EventType = "cancelled"
)

// ExecutionEvent 执行生命周期事件，本子系统不持久化
type ExecutionEvent struct {
	Type        EventType              `json:"type"`
	ExecutionId string                 `json:"executionId"`
	PathId      string                 `json:"pathId,omitempty"`
	NodeId      string                 `json:"nodeId,omitempty"`
	Data        map[string]interface{} `json:"data,omitempty"`
	Error       string                 `json:"error,omitempty"`
	Timestamp   time.Time              `json:"timestamp"`
}

// Suspension 延迟节点计算出的恢复条件
type Suspension struct {
	// Until 到期时间
	Until time.Time
	// WaitEvent 等待的外部事件名称，为空表示纯时间延迟
	WaitEvent string
	// DueOutput 到期后继续的输出端口
	DueOutput string
	// EventOutput 收到外部事件后继续的输出端口
	EventOutput string
}

// Result 节点执行结果，必须显式给出选择的输出端口
// Result is what a node handler returns. Outputs names the chosen output socket
// keys; nil means every declared output socket.
type Result struct {
	Outputs []string
	Data    map[string]interface{}
	Err     error
	Suspend *Suspension
	// Goal 达成的目标名称
	Goal string
}

// Success 成功，沿所有声明的输出端口继续
func Success(data map[string]interface{}) Result {
	return Result{Data: data}
}

// Route 成功，沿指定输出端口继续
func Route(output string, data map[string]interface{}) Result {
	return Result{Outputs: []string{output}, Data: data}
}

// Failure 失败，终止当前路径
func Failure(err error) Result {
	return Result{Err: err}
}

// Suspend 挂起当前路径直到满足恢复条件
func Suspend(s Suspension, data map[string]interface{}) Result {
	return Result{Suspend: &s, Data: data}
}

// TriggerEvent 外部CRUD层产生的触发事件，例如：联系人被打上标签
type TriggerEvent struct {
	// Subtype 触发器子类型，例如：tag_added
	Subtype   string                 `json:"subtype"`
	ContactId string                 `json:"contactId"`
	Data      map[string]interface{} `json:"data,omitempty"`
}
