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

// Package catalog 节点目录：节点类型定义、默认配置、端口形状以及完整性断言。
//
// Package catalog is the static registry of node type definitions. Adding a node
// kind is a data change: one definition here plus one component registered in
// the components packages.
package catalog

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/mailist-com/automation/api/types"
	"github.com/mailist-com/automation/utils/json"
	"github.com/mailist-com/automation/utils/str"
	"gopkg.in/yaml.v3"
)

// ErrNotFound 目录中不存在该节点类型
var ErrNotFound = errors.New("node type not found")

// ErrInvalidDefinition 节点类型定义不合法
var ErrInvalidDefinition = errors.New("invalid node type definition")

// Default 默认节点目录，包含所有内置节点类型
var Default = New()

// Catalog 节点目录
type Catalog struct {
	definitions map[string]types.NodeTypeDefinition
	sync.RWMutex
}

var _ types.Catalog = (*Catalog)(nil)

// New 创建包含内置节点类型的目录
func New() *Catalog {
	c := &Catalog{definitions: make(map[string]types.NodeTypeDefinition)}
	for _, def := range builtinDefinitions() {
		_ = c.Register(def)
	}
	return c
}

// NewEmpty 创建空目录
func NewEmpty() *Catalog {
	return &Catalog{definitions: make(map[string]types.NodeTypeDefinition)}
}

// Register 注册节点类型定义，已存在则覆盖元数据。
// 覆盖时如果新定义没有完整性断言，保留原来的断言
func (c *Catalog) Register(def types.NodeTypeDefinition) error {
	if !def.Type.IsValid() || strings.TrimSpace(def.Subtype) == "" {
		return fmt.Errorf("%w: type=%s subtype=%s", ErrInvalidDefinition, def.Type, def.Subtype)
	}
	if def.Type == types.Trigger && len(def.Inputs) != 0 {
		return fmt.Errorf("%w: trigger %s cannot declare inputs", ErrInvalidDefinition, def.Subtype)
	}
	if def.Type != types.Trigger && len(def.Inputs) != 1 {
		return fmt.Errorf("%w: %s must declare exactly one input", ErrInvalidDefinition, def.Key())
	}
	if (def.Type == types.Goal || def.Type == types.End) && len(def.Outputs) != 0 {
		return fmt.Errorf("%w: %s cannot declare outputs", ErrInvalidDefinition, def.Key())
	}
	if def.Type == types.Condition && len(def.Outputs) < 2 {
		return fmt.Errorf("%w: condition %s must declare at least two outputs", ErrInvalidDefinition, def.Subtype)
	}
	c.Lock()
	defer c.Unlock()
	if old, ok := c.definitions[def.Key()]; ok && def.IsComplete == nil {
		def.IsComplete = old.IsComplete
	}
	c.definitions[def.Key()] = def
	return nil
}

// Unregister 删除节点类型定义
func (c *Catalog) Unregister(nodeType types.NodeType, subtype string) {
	c.Lock()
	defer c.Unlock()
	delete(c.definitions, types.ComponentType(nodeType, subtype))
}

// Resolve 获取节点类型定义
func (c *Catalog) Resolve(nodeType types.NodeType, subtype string) (types.NodeTypeDefinition, bool) {
	c.RLock()
	defer c.RUnlock()
	def, ok := c.definitions[types.ComponentType(nodeType, subtype)]
	return def, ok
}

// ResolveKey 通过 type/subtype 获取节点类型定义
func (c *Catalog) ResolveKey(key string) (types.NodeTypeDefinition, bool) {
	nodeType, subtype, ok := strings.Cut(key, types.ComponentTypeSeparator)
	if !ok {
		return types.NodeTypeDefinition{}, false
	}
	return c.Resolve(types.NodeType(nodeType), subtype)
}

// IsComplete 节点配置是否完整，未知节点类型返回false
func (c *Catalog) IsComplete(nodeType types.NodeType, subtype string, settings types.Configuration) bool {
	def, ok := c.Resolve(nodeType, subtype)
	if !ok {
		return false
	}
	if def.IsComplete != nil {
		return def.IsComplete(settings)
	}
	for _, key := range def.Required {
		if !hasText(settings, key) {
			return false
		}
	}
	return true
}

// Definitions 返回所有节点类型定义，按 type/subtype 排序
func (c *Catalog) Definitions() []types.NodeTypeDefinition {
	c.RLock()
	defer c.RUnlock()
	var defs = make([]types.NodeTypeDefinition, 0, len(c.definitions))
	for _, def := range c.definitions {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool {
		return defs[i].Key() < defs[j].Key()
	})
	return defs
}

// LoadJSON 从JSON数组加载节点类型定义
func (c *Catalog) LoadJSON(data []byte) error {
	var defs []types.NodeTypeDefinition
	if err := json.Unmarshal(data, &defs); err != nil {
		return err
	}
	return c.registerAll(defs)
}

// LoadYAML 从YAML列表加载节点类型定义
func (c *Catalog) LoadYAML(data []byte) error {
	var defs []types.NodeTypeDefinition
	if err := yaml.Unmarshal(data, &defs); err != nil {
		return err
	}
	return c.registerAll(defs)
}

// MarshalJSON 目录导出，供编辑器使用
func (c *Catalog) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Definitions())
}

func (c *Catalog) registerAll(defs []types.NodeTypeDefinition) error {
	for _, def := range defs {
		if err := c.Register(def); err != nil {
			return err
		}
	}
	return nil
}

func hasText(settings types.Configuration, key string) bool {
	return settingString(settings, key) != ""
}

func settingString(settings types.Configuration, key string) string {
	if settings == nil {
		return ""
	}
	return strings.TrimSpace(str.ToString(settings[key]))
}

func settingNumber(settings types.Configuration, key string) (float64, bool) {
	if settings == nil {
		return 0, false
	}
	return str.ToFloat(settings[key])
}
