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

// CompletenessFunc 判断节点配置是否完整
type CompletenessFunc func(settings Configuration) bool

// NodeTypeDefinition 节点目录条目，启动时加载，之后不可变
// NodeTypeDefinition is one catalog entry: the shape and defaults of a (type, subtype) pair.
type NodeTypeDefinition struct {
	Type        NodeType      `json:"type" yaml:"type"`
	Subtype     string        `json:"subtype" yaml:"subtype"`
	Name        string        `json:"name" yaml:"name"`
	Description string        `json:"description" yaml:"description"`
	Icon        string        `json:"icon" yaml:"icon"`
	Category    string        `json:"category" yaml:"category"`
	// DefaultSettings 节点默认配置
	DefaultSettings Configuration `json:"defaultSettings" yaml:"defaultSettings"`
	// Inputs 输入端口key列表，触发器为空
	Inputs []string `json:"inputs" yaml:"inputs"`
	// Outputs 有序输出端口key列表
	Outputs []string `json:"outputs" yaml:"outputs"`
	// Required 必填配置项，IsComplete 为空时使用
	Required []string `json:"required,omitempty" yaml:"required,omitempty"`
	// IsComplete 完整性断言，为空时检查 Required
	IsComplete CompletenessFunc `json:"-" yaml:"-"`
}

// Key 目录key，格式：type/subtype
func (d NodeTypeDefinition) Key() string {
	return ComponentType(d.Type, d.Subtype)
}

// HasOutput 是否声明了该输出端口
func (d NodeTypeDefinition) HasOutput(name string) bool {
	return contains(d.Outputs, name)
}
