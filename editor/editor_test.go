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
	"bytes"
	"errors"
	"fmt"
	"log"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/mailist-com/automation/api/types"
	"github.com/mailist-com/automation/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAPI() (*FlowAPI, *bytes.Buffer) {
	var buf bytes.Buffer
	api := NewFlowAPI(NewFlowState(types.NewFlowGraph("welcome")), catalog.New(), log.New(&buf, "", 0))
	var n int
	api.NewId = func() string {
		n++
		return fmt.Sprintf("id%d", n)
	}
	return api, &buf
}

// outputOf 返回节点指定输出端口ID
func outputOf(t *testing.T, api *FlowAPI, nodeId, name string) string {
	s, ok := api.State().Snapshot().Nodes[nodeId].OutputSocket(name)
	require.True(t, ok)
	return s.Id
}

func inputOf(api *FlowAPI, nodeId string) string {
	return api.State().Snapshot().Nodes[nodeId].InputSocketId
}

func TestCreateNode(t *testing.T) {
	api, _ := newTestAPI()
	id := api.CreateNode("condition/field_condition", types.Position{X: 10, Y: 20})
	require.NotEmpty(t, id)

	graph := api.State().Snapshot()
	node := graph.Nodes[id]
	assert.Equal(t, types.Condition, node.Type)
	assert.NotEmpty(t, node.InputSocketId)
	assert.Len(t, node.OutputSockets, 2)
	assert.Equal(t, types.OutputIf, node.OutputSockets[0].Name)
	assert.Equal(t, types.OutputElse, node.OutputSockets[1].Name)
	assert.False(t, node.IsComplete)
	assert.Equal(t, "equals", node.Settings["operator"])
	assert.Equal(t, []string{id}, graph.Selection.Nodes)

	trigger := api.CreateNode("trigger/tag_added", types.Position{})
	assert.Empty(t, api.State().Snapshot().Nodes[trigger].InputSocketId)
	end := api.CreateNode("end/end", types.Position{})
	assert.Empty(t, api.State().Snapshot().Nodes[end].OutputSockets)
	assert.Equal(t, 4, api.State().Len())
}

func TestCreateNodeUnknownSubtype(t *testing.T) {
	api, buf := newTestAPI()
	api.CreateNode("trigger/tag_added", types.Position{})
	before := api.State().Snapshot()
	version := api.State().Version()

	assert.Empty(t, api.CreateNode("action/send_fax", types.Position{}))
	assert.Empty(t, api.CreateNode("garbage", types.Position{}))
	assert.Same(t, before, api.State().Snapshot())
	assert.Equal(t, version, api.State().Version())
	assert.Contains(t, buf.String(), "unknown node type action/send_fax")
}

func TestUndoRedoRoundTrip(t *testing.T) {
	api, _ := newTestAPI()
	trigger := api.CreateNode("trigger/tag_added", types.Position{})
	action := api.CreateNode("action/add_to_list", types.Position{X: 200})
	api.CreateConnection(outputOf(t, api, trigger, types.Output), inputOf(api, action))
	api.UpdateNodeSettings(action, types.Configuration{"listId": "L1"})
	api.MoveNodes(map[string]types.Position{trigger: {X: 5, Y: 5}, action: {X: 300, Y: 5}})

	before := api.State().Snapshot().Copy()
	const n = 4
	for i := 0; i < n; i++ {
		assert.True(t, api.State().Undo())
	}
	assert.NotEmpty(t, cmp.Diff(before, api.State().Snapshot()))
	for i := 0; i < n; i++ {
		assert.True(t, api.State().Redo())
	}
	assert.Empty(t, cmp.Diff(before, api.State().Snapshot()))
	assert.False(t, api.State().Redo())
}

func TestUndoRedoBounds(t *testing.T) {
	state := NewFlowState(nil)
	assert.False(t, state.CanUndo())
	assert.False(t, state.Undo())
	assert.False(t, state.Redo())
	assert.Equal(t, 0, state.Index())
	assert.Equal(t, 1, state.Len())
}

func TestHistoryTruncation(t *testing.T) {
	api, _ := newTestAPI()
	api.CreateNode("trigger/tag_added", types.Position{})
	api.CreateNode("action/add_tag", types.Position{})
	api.CreateNode("end/end", types.Position{})
	assert.Equal(t, 4, api.State().Len())

	api.State().Undo()
	api.State().Undo()
	assert.True(t, api.State().CanRedo())

	api.Rename("renamed")
	assert.False(t, api.State().CanRedo())
	assert.False(t, api.State().Redo())
	assert.Equal(t, 3, api.State().Len())
	assert.Equal(t, "renamed", api.State().Snapshot().Name)
	assert.Len(t, api.State().Snapshot().Nodes, 1)
}

func TestMaxHistory(t *testing.T) {
	state := NewFlowState(nil)
	state.MaxHistory = 3
	for i := 0; i < 5; i++ {
		name := fmt.Sprintf("v%d", i)
		state.Apply(Patch{Name: &name}, PatchUpdate)
	}
	assert.Equal(t, 3, state.Len())
	assert.Equal(t, 2, state.Index())
	assert.Equal(t, "v4", state.Snapshot().Name)
}

func TestOrphanCleanup(t *testing.T) {
	api, _ := newTestAPI()
	trigger := api.CreateNode("trigger/tag_added", types.Position{})
	cond := api.CreateNode("condition/has_tag", types.Position{})
	yes := api.CreateNode("action/add_tag", types.Position{})
	no := api.CreateNode("action/remove_tag", types.Position{})
	in := api.CreateConnection(outputOf(t, api, trigger, types.Output), inputOf(api, cond))
	ifConn := api.CreateConnection(outputOf(t, api, cond, types.OutputIf), inputOf(api, yes))
	elseConn := api.CreateConnection(outputOf(t, api, cond, types.OutputElse), inputOf(api, no))
	require.Len(t, api.State().Snapshot().Connections, 3)

	api.ChangeSelection([]string{cond}, nil, nil)
	assert.True(t, api.RemoveSelected())

	graph := api.State().Snapshot()
	assert.NotContains(t, graph.Nodes, cond)
	for _, id := range []string{in, ifConn, elseConn} {
		assert.NotContains(t, graph.Connections, id)
	}
	assert.Len(t, graph.Nodes, 3)
	assert.True(t, graph.Selection.IsEmpty())

	//一次删除是一个撤销步骤
	api.State().Undo()
	assert.Len(t, api.State().Snapshot().Connections, 3)
}

func TestRemoveSelectedNothingSelected(t *testing.T) {
	api, _ := newTestAPI()
	api.CreateNode("trigger/tag_added", types.Position{})
	api.ChangeSelection(nil, nil, nil)
	length := api.State().Len()
	assert.False(t, api.RemoveSelected())
	assert.Equal(t, length, api.State().Len())
}

func TestCreateConnectionRules(t *testing.T) {
	api, buf := newTestAPI()
	trigger := api.CreateNode("trigger/tag_added", types.Position{})
	a := api.CreateNode("action/add_tag", types.Position{})
	b := api.CreateNode("action/remove_tag", types.Position{})
	out := outputOf(t, api, trigger, types.Output)

	length := api.State().Len()
	assert.Empty(t, api.CreateConnection(out, ""))
	assert.Empty(t, api.CreateConnection(out, "missing"))
	assert.Empty(t, api.CreateConnection(out, outputOf(t, api, a, types.Output)))
	assert.Empty(t, api.CreateConnection(inputOf(api, a), inputOf(api, b)))
	assert.Empty(t, api.CreateConnection(outputOf(t, api, a, types.Output), inputOf(api, a)))
	assert.Equal(t, length, api.State().Len())
	assert.Contains(t, buf.String(), "self loop")

	//扇出
	c1 := api.CreateConnection(out, inputOf(api, a))
	c2 := api.CreateConnection(out, inputOf(api, b))
	assert.NotEmpty(t, c1)
	assert.NotEmpty(t, c2)
	assert.Equal(t, []string{c2}, api.State().Snapshot().Selection.Connections)

	//输入端口不能有两个连接
	assert.Empty(t, api.CreateConnection(outputOf(t, api, a, types.Output), inputOf(api, b)))
	assert.Contains(t, buf.String(), "input socket already connected")
}

func TestReassignConnection(t *testing.T) {
	api, _ := newTestAPI()
	trigger := api.CreateNode("trigger/tag_added", types.Position{})
	a := api.CreateNode("action/add_tag", types.Position{})
	b := api.CreateNode("action/remove_tag", types.Position{})
	conn := api.CreateConnection(outputOf(t, api, trigger, types.Output), inputOf(api, a))

	assert.False(t, api.ReassignConnection(conn, ""))
	assert.False(t, api.ReassignConnection("missing", inputOf(api, b)))
	assert.False(t, api.ReassignConnection(conn, inputOf(api, a)))
	assert.True(t, api.ReassignConnection(conn, inputOf(api, b)))
	assert.Equal(t, inputOf(api, b), api.State().Snapshot().Connections[conn].TargetSocketId)
}

func TestMoveNodesSingleStep(t *testing.T) {
	api, _ := newTestAPI()
	a := api.CreateNode("trigger/tag_added", types.Position{})
	b := api.CreateNode("action/add_tag", types.Position{})
	length := api.State().Len()

	assert.True(t, api.MoveNodes(map[string]types.Position{a: {X: 1, Y: 2}, b: {X: 3, Y: 4}, "ghost": {}}))
	assert.Equal(t, length+1, api.State().Len())
	graph := api.State().Snapshot()
	assert.Equal(t, types.Position{X: 1, Y: 2}, graph.Nodes[a].Position)
	assert.Equal(t, types.Position{X: 3, Y: 4}, graph.Nodes[b].Position)

	assert.False(t, api.MoveNodes(map[string]types.Position{"ghost": {}}))
}

func TestRemoveConnection(t *testing.T) {
	api, _ := newTestAPI()
	trigger := api.CreateNode("trigger/tag_added", types.Position{})
	a := api.CreateNode("action/add_tag", types.Position{})
	b := api.CreateNode("action/remove_tag", types.Position{})
	out := outputOf(t, api, trigger, types.Output)
	api.CreateConnection(out, inputOf(api, a))
	api.CreateConnection(out, inputOf(api, b))

	length := api.State().Len()
	assert.True(t, api.RemoveConnection(out))
	assert.Empty(t, api.State().Snapshot().Connections)
	assert.Equal(t, length+1, api.State().Len())
	assert.False(t, api.RemoveConnection(out))
}

func TestUpdateNodeSettings(t *testing.T) {
	api, _ := newTestAPI()
	id := api.CreateNode("trigger/tag_added", types.Position{})
	assert.False(t, api.State().Snapshot().Nodes[id].IsComplete)

	assert.True(t, api.UpdateNodeSettings(id, types.Configuration{"tagName": "vip"}))
	node := api.State().Snapshot().Nodes[id]
	assert.True(t, node.IsComplete)
	assert.Equal(t, "vip", node.Settings["tagName"])

	api.State().Undo()
	assert.Equal(t, "", api.State().Snapshot().Nodes[id].Settings["tagName"])
	assert.False(t, api.UpdateNodeSettings("ghost", types.Configuration{}))
}

func TestSetTransformAndSubscribe(t *testing.T) {
	api, _ := newTestAPI()
	var versions []uint64
	unsubscribe := api.State().Subscribe(func(version uint64, graph *types.FlowGraph) {
		versions = append(versions, version)
	})
	start := api.State().Version()

	api.SetTransform(types.Transform{Scale: 2, Pos: types.Position{X: 10}})
	assert.Equal(t, 2.0, api.State().Snapshot().Transform.Scale)
	api.State().Undo()
	api.State().Redo()
	assert.Equal(t, []uint64{start + 1, start + 2, start + 3}, versions)

	unsubscribe()
	api.Rename("x")
	assert.Len(t, versions, 3)
	assert.Equal(t, start+4, api.State().Version())
}

func TestValidate(t *testing.T) {
	api, _ := newTestAPI()
	c := catalog.New()
	assert.ErrorIs(t, Validate(api.State().Snapshot(), c), ErrNoTrigger)

	trigger := api.CreateNode("trigger/tag_added", types.Position{})
	action := api.CreateNode("action/add_to_list", types.Position{})
	end := api.CreateNode("end/end", types.Position{})
	api.CreateConnection(outputOf(t, api, trigger, types.Output), inputOf(api, action))
	api.CreateConnection(outputOf(t, api, action, types.Output), inputOf(api, end))

	err := Validate(api.State().Snapshot(), c)
	assert.ErrorIs(t, err, ErrIncompleteNode)
	assert.False(t, errors.Is(err, ErrNoTrigger))

	api.UpdateNodeSettings(trigger, types.Configuration{"tagName": "vip"})
	api.UpdateNodeSettings(action, types.Configuration{"listId": "L1"})
	assert.Nil(t, Validate(api.State().Snapshot(), c))

	graph := api.State().Snapshot().Copy()
	graph.Connections["bad"] = &types.GraphConnection{Id: "bad", SourceSocketId: "nope", TargetSocketId: inputOf(api, end)}
	graph.Connections["dup"] = &types.GraphConnection{Id: "dup", SourceSocketId: outputOf(t, api, trigger, types.Output), TargetSocketId: inputOf(api, end)}
	graph.Nodes["x"] = &types.GraphNode{Id: "x", Type: types.Trigger, Subtype: "tag_added", Settings: types.Configuration{"tagName": "a"}}
	err = Validate(graph, c)
	assert.ErrorIs(t, err, ErrDanglingConnection)
	assert.ErrorIs(t, err, ErrInputFanIn)
	assert.ErrorIs(t, err, ErrMultipleTriggers)
	assert.ErrorIs(t, err, ErrSocketMismatch)
}
