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

// Package test 组件测试工具
package test

import (
	"context"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/mailist-com/automation/api/types"
	"github.com/mailist-com/automation/components/base"
	"github.com/stretchr/testify/assert"
)

// CreateAndInitNode 创建并初始化一个节点实例
func CreateAndInitNode(targetNodeType string, initConfig types.Configuration, registry *types.SafeComponentSlice, config types.Config) (types.Node, error) {
	var nodeFactory types.Node
	for _, component := range registry.Components() {
		if component.Type() == targetNodeType {
			nodeFactory = component
		}
	}
	if nodeFactory == nil {
		return nil, fmt.Errorf("component not found.componentType=%s", targetNodeType)
	}
	node := nodeFactory.New()
	err := node.Init(config, initConfig)
	return node, err
}

// NodeNew 测试组件已注册并且New返回同类型的新实例
func NodeNew(t *testing.T, targetNodeType string, targetNode types.Node, registry *types.SafeComponentSlice) {
	var nodeFactory types.Node
	for _, component := range registry.Components() {
		if component.Type() == targetNode.Type() {
			nodeFactory = component
		}
	}
	assert.NotNil(t, nodeFactory)
	assert.Equal(t, targetNodeType, nodeFactory.Type())
	node := nodeFactory.New()
	assert.Equal(t, reflect.TypeOf(targetNode), reflect.TypeOf(node))
	assert.NotSame(t, nodeFactory, node)
}

// NewExecution 创建测试执行上下文
func NewExecution(contact types.Contact, vars map[string]interface{}) *types.ExecutionContext {
	if vars == nil {
		vars = make(map[string]interface{})
	}
	return &types.ExecutionContext{
		ExecutionId: "exec-1",
		PathId:      "path-1",
		ContactId:   contact.Id,
		Contact:     contact,
		Variables:   vars,
		StartedAt:   time.Now(),
	}
}

// Execute 在测试上下文中执行节点
func Execute(node types.Node, config types.Config, self *types.GraphNode, exec *types.ExecutionContext) types.Result {
	if self == nil {
		self = &types.GraphNode{Id: "node-1"}
	}
	exec.CurrentNodeId = self.Id
	return node.OnExecute(base.NewNodeCtx(context.Background(), config, self), exec)
}

// FixedClock 固定时钟
func FixedClock(now time.Time) func() time.Time {
	return func() time.Time {
		return now
	}
}
