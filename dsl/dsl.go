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

// Package dsl 流程图持久化格式，编辑器保存、引擎加载的都是这个格式。
//
//	{ "name": "...",
//	  "nodes": { "<id>": {"id", "type", "position", "input", "outputs": [{"id","name"}],
//	                      "data": {"subtype", "settings", "isComplete"}} },
//	  "connections": { "<id>": {"id", "source", "target"} } }
package dsl

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/mailist-com/automation/api/types"
	"github.com/mailist-com/automation/utils/json"
)

// ErrInvalidFlow 流程图格式不合法
var ErrInvalidFlow = errors.New("invalid flow definition")

// FlowDef 流程图持久化定义
type FlowDef struct {
	//Name 流程名称
	Name        string                   `json:"name"`
	Nodes       map[string]NodeDef       `json:"nodes"`
	Connections map[string]ConnectionDef `json:"connections"`
	//Transform 编辑器视口，执行时忽略
	Transform *types.Transform `json:"transform,omitempty"`
}

// NodeDef 节点定义
type NodeDef struct {
	Id       string         `json:"id"`
	Type     types.NodeType `json:"type"`
	Position types.Position `json:"position"`
	//Input 输入端口ID，触发器节点没有
	Input   string         `json:"input,omitempty"`
	Outputs []types.Socket `json:"outputs"`
	Data    NodeData       `json:"data"`
}

// NodeData 节点数据
type NodeData struct {
	Subtype    string              `json:"subtype"`
	Settings   types.Configuration `json:"settings"`
	IsComplete bool                `json:"isComplete"`
}

// ConnectionDef 连接定义
type ConnectionDef struct {
	Id     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
}

// ParseFlow 解析流程图
func ParseFlow(data []byte) (*types.FlowGraph, error) {
	var def FlowDef
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFlow, err)
	}
	return def.ToGraph()
}

// EncodeFlow 编码流程图，不包含选中状态
func EncodeFlow(graph *types.FlowGraph) ([]byte, error) {
	return json.Marshal(FromGraph(graph))
}

// EncodeFlowIndent 编码成缩进格式，用于导出到文件
func EncodeFlowIndent(graph *types.FlowGraph) ([]byte, error) {
	return json.MarshalIndent(FromGraph(graph))
}

// FlowKey 流程图内容key，内容相同的流程图key相同。
// 执行挂起时记录该key，恢复时加载同一版本的流程图
func FlowKey(graph *types.FlowGraph) (string, error) {
	def := FromGraph(graph)
	//视口不影响执行
	def.Transform = nil
	data, err := json.Marshal(def)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// ToGraph 转换成流程图
func (d FlowDef) ToGraph() (*types.FlowGraph, error) {
	graph := types.NewFlowGraph(d.Name)
	if d.Transform != nil {
		graph.Transform = *d.Transform
	}
	for id, n := range d.Nodes {
		if n.Id == "" {
			n.Id = id
		}
		if n.Id != id {
			return nil, fmt.Errorf("%w: node key %s does not match id %s", ErrInvalidFlow, id, n.Id)
		}
		if !n.Type.IsValid() {
			return nil, fmt.Errorf("%w: node %s has unknown type %q", ErrInvalidFlow, id, n.Type)
		}
		if n.Data.Subtype == "" {
			return nil, fmt.Errorf("%w: node %s has no subtype", ErrInvalidFlow, id)
		}
		settings := n.Data.Settings
		if settings == nil {
			settings = types.Configuration{}
		}
		graph.Nodes[id] = &types.GraphNode{
			Id:            id,
			Type:          n.Type,
			Subtype:       n.Data.Subtype,
			Position:      n.Position,
			InputSocketId: n.Input,
			OutputSockets: n.Outputs,
			Settings:      settings,
			IsComplete:    n.Data.IsComplete,
		}
	}
	for id, c := range d.Connections {
		if c.Id == "" {
			c.Id = id
		}
		if c.Id != id {
			return nil, fmt.Errorf("%w: connection key %s does not match id %s", ErrInvalidFlow, id, c.Id)
		}
		graph.Connections[id] = &types.GraphConnection{Id: id, SourceSocketId: c.Source, TargetSocketId: c.Target}
	}
	return graph, nil
}

// FromGraph 转换成持久化定义
func FromGraph(graph *types.FlowGraph) FlowDef {
	def := FlowDef{
		Name:        graph.Name,
		Nodes:       make(map[string]NodeDef, len(graph.Nodes)),
		Connections: make(map[string]ConnectionDef, len(graph.Connections)),
	}
	transform := graph.Transform
	def.Transform = &transform
	for id, n := range graph.Nodes {
		outputs := n.OutputSockets
		if outputs == nil {
			outputs = []types.Socket{}
		}
		def.Nodes[id] = NodeDef{
			Id:       n.Id,
			Type:     n.Type,
			Position: n.Position,
			Input:    n.InputSocketId,
			Outputs:  outputs,
			Data: NodeData{
				Subtype:    n.Subtype,
				Settings:   n.Settings,
				IsComplete: n.IsComplete,
			},
		}
	}
	for id, c := range graph.Connections {
		def.Connections[id] = ConnectionDef{Id: c.Id, Source: c.SourceSocketId, Target: c.TargetSocketId}
	}
	return def
}
