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
	"context"
	"sync"
	"time"
)

// Node 节点组件接口
// 把一个(type, subtype)的执行逻辑封装成组件，然后注册到组件注册器：
// components.Registry.Register(&MyNode{})
// 新增节点类型只需要增加一个目录条目和一个组件，不需要继承层次。
type Node interface {
	//New 创建一个组件新实例
	//每个流程图里的节点都会创建一个新的实例，数据是独立的
	New() Node
	//Type 组件类型，格式：type/subtype，例如：action/add_tag
	Type() string
	//Init 组件初始化，configuration 是节点的settings
	//流程图加载时每个节点调用一次
	Init(config Config, configuration Configuration) error
	//OnExecute 执行节点逻辑，返回的结果决定下一个或者多个节点
	//exec 是当前路径私有的执行上下文，可以直接修改
	OnExecute(ctx NodeContext, exec *ExecutionContext) Result
	//Destroy 销毁，做一些资源释放操作
	Destroy()
}

// NodeContext 节点执行上下文
type NodeContext interface {
	//GetContext 用于超时取消
	GetContext() context.Context
	//Config 引擎配置，包含外部协作者
	Config() Config
	//Self 当前节点定义
	Self() *GraphNode
	//Now 当前时间，测试时可以替换时钟
	Now() time.Time
}

// TriggerMatcher 触发器组件可选接口，判断外部事件是否满足该触发器
type TriggerMatcher interface {
	Matches(event TriggerEvent) bool
}

// ComponentRegistry 节点组件注册器
type ComponentRegistry interface {
	//Register 注册组件，如果`node.Type()`已经存在则返回一个`已存在`错误
	Register(node Node) error
	//Unregister 删除组件
	Unregister(componentType string) error
	//NewNode 通过组件类型创建一个新的node实例
	NewNode(componentType string) (Node, error)
	//GetComponents 获取所有注册组件列表
	GetComponents() map[string]Node
}

// SafeComponentSlice 安全的组件列表切片
type SafeComponentSlice struct {
	//组件列表
	components []Node
	sync.Mutex
}

// Add 线程安全地添加元素
func (p *SafeComponentSlice) Add(nodes ...Node) {
	p.Lock()
	defer p.Unlock()
	p.components = append(p.components, nodes...)
}

// Components 获取组件列表
func (p *SafeComponentSlice) Components() []Node {
	p.Lock()
	defer p.Unlock()
	return p.components
}
