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

package editor

import (
	"errors"
	"fmt"

	"github.com/mailist-com/automation/api/types"
)

var (
	ErrNoTrigger          = errors.New("flow has no trigger node")
	ErrMultipleTriggers   = errors.New("flow has more than one trigger node")
	ErrUnknownNodeType    = errors.New("unknown node type")
	ErrIncompleteNode     = errors.New("node settings are incomplete")
	ErrSocketMismatch     = errors.New("node sockets do not match its definition")
	ErrDanglingConnection = errors.New("connection references a missing socket")
	ErrInvalidConnection  = errors.New("connection must go from an output socket to an input socket")
	ErrInputFanIn         = errors.New("input socket is the target of more than one connection")
)

// Validate 激活前检查：恰好一个触发器，所有节点完整且端口与定义一致，
// 所有连接引用存在的端口，输入端口最多一个连接。返回所有问题合并后的错误
func Validate(graph *types.FlowGraph, catalog types.Catalog) error {
	if graph == nil {
		return ErrNoTrigger
	}
	var errs []error
	switch n := len(graph.TriggerNodes()); {
	case n == 0:
		errs = append(errs, ErrNoTrigger)
	case n > 1:
		errs = append(errs, ErrMultipleTriggers)
	}
	for _, id := range sortedKeys(graph.Nodes) {
		node := graph.Nodes[id]
		def, ok := catalog.Resolve(node.Type, node.Subtype)
		if !ok {
			errs = append(errs, fmt.Errorf("%w: node %s is %s", ErrUnknownNodeType, id, node.ComponentType()))
			continue
		}
		if !socketsMatch(node, def) {
			errs = append(errs, fmt.Errorf("%w: node %s", ErrSocketMismatch, id))
		}
		if !catalog.IsComplete(node.Type, node.Subtype, node.Settings) {
			errs = append(errs, fmt.Errorf("%w: node %s (%s)", ErrIncompleteNode, id, node.ComponentType()))
		}
	}
	targets := make(map[string]string)
	for _, id := range sortedKeys(graph.Connections) {
		conn := graph.Connections[id]
		if _, ok := graph.SocketOwner(conn.SourceSocketId); !ok {
			errs = append(errs, fmt.Errorf("%w: connection %s source %s", ErrDanglingConnection, id, conn.SourceSocketId))
			continue
		}
		if _, ok := graph.SocketOwner(conn.TargetSocketId); !ok {
			errs = append(errs, fmt.Errorf("%w: connection %s target %s", ErrDanglingConnection, id, conn.TargetSocketId))
			continue
		}
		if !graph.IsOutputSocket(conn.SourceSocketId) || !graph.IsInputSocket(conn.TargetSocketId) {
			errs = append(errs, fmt.Errorf("%w: connection %s", ErrInvalidConnection, id))
			continue
		}
		if other, ok := targets[conn.TargetSocketId]; ok {
			errs = append(errs, fmt.Errorf("%w: connections %s and %s", ErrInputFanIn, other, id))
			continue
		}
		targets[conn.TargetSocketId] = id
	}
	return errors.Join(errs...)
}

func socketsMatch(node *types.GraphNode, def types.NodeTypeDefinition) bool {
	if (len(def.Inputs) > 0) != (node.InputSocketId != "") {
		return false
	}
	if len(node.OutputSockets) != len(def.Outputs) {
		return false
	}
	for _, s := range node.OutputSockets {
		if !def.HasOutput(s.Name) {
			return false
		}
	}
	return true
}
