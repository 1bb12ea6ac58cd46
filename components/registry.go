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

// Package components collects the node components of every node type into
// one registry keyed by "type/subtype".
package components

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/mailist-com/automation/api/types"
	"github.com/mailist-com/automation/components/action"
	"github.com/mailist-com/automation/components/condition"
	"github.com/mailist-com/automation/components/delay"
	"github.com/mailist-com/automation/components/goal"
	"github.com/mailist-com/automation/components/trigger"
)

var ErrComponentNotFound = errors.New("component not found")

// Registry 默认组件注册器
var Registry = new(NodeComponentRegistry)

func init() {
	var components []types.Node
	components = append(components, trigger.Registry.Components()...)
	components = append(components, action.Registry.Components()...)
	components = append(components, condition.Registry.Components()...)
	components = append(components, delay.Registry.Components()...)
	components = append(components, goal.Registry.Components()...)

	for _, node := range components {
		_ = Registry.Register(node)
	}
}

// NodeComponentRegistry 节点组件注册器
type NodeComponentRegistry struct {
	components map[string]types.Node
	sync.RWMutex
}

var _ types.ComponentRegistry = (*NodeComponentRegistry)(nil)

// Register 注册组件，如果`node.Type()`已经存在则返回错误
func (r *NodeComponentRegistry) Register(node types.Node) error {
	r.Lock()
	defer r.Unlock()
	if r.components == nil {
		r.components = make(map[string]types.Node)
	}
	if _, ok := r.components[node.Type()]; ok {
		return errors.New("the component already exists. componentType=" + node.Type())
	}
	r.components[node.Type()] = node
	return nil
}

func (r *NodeComponentRegistry) Unregister(componentType string) error {
	r.Lock()
	defer r.Unlock()
	if _, ok := r.components[componentType]; !ok {
		return fmt.Errorf("%w. componentType=%s", ErrComponentNotFound, componentType)
	}
	delete(r.components, componentType)
	return nil
}

// NewNode 创建组件的新实例
func (r *NodeComponentRegistry) NewNode(componentType string) (types.Node, error) {
	r.RLock()
	defer r.RUnlock()
	node, ok := r.components[componentType]
	if !ok {
		return nil, fmt.Errorf("%w. componentType=%s", ErrComponentNotFound, componentType)
	}
	return node.New(), nil
}

func (r *NodeComponentRegistry) GetComponents() map[string]types.Node {
	r.RLock()
	defer r.RUnlock()
	var components = map[string]types.Node{}
	for k, v := range r.components {
		components[k] = v
	}
	return components
}

// Missing 返回目录中没有对应组件的节点类型，用于启动检查
func (r *NodeComponentRegistry) Missing(definitions []types.NodeTypeDefinition) []string {
	r.RLock()
	defer r.RUnlock()
	var missing []string
	for _, def := range definitions {
		key := types.ComponentType(def.Type, def.Subtype)
		if _, ok := r.components[key]; !ok {
			missing = append(missing, key)
		}
	}
	sort.Strings(missing)
	return missing
}
