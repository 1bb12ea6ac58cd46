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

package dsl

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/mailist-com/automation/api/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const welcomeFlow = `{
  "name": "VIP welcome",
  "nodes": {
    "t1": {"id": "t1", "type": "trigger", "position": {"x": 0, "y": 0},
           "outputs": [{"id": "t1-out", "name": "output"}],
           "data": {"subtype": "tag_added", "settings": {"tagName": "vip"}, "isComplete": true}},
    "a1": {"id": "a1", "type": "action", "position": {"x": 200, "y": 0}, "input": "a1-in",
           "outputs": [{"id": "a1-out", "name": "output"}],
           "data": {"subtype": "add_to_list", "settings": {"listId": "L1"}, "isComplete": true}},
    "e1": {"id": "e1", "type": "end", "position": {"x": 400, "y": 0}, "input": "e1-in", "outputs": [],
           "data": {"subtype": "end"}}
  },
  "connections": {
    "c1": {"id": "c1", "source": "t1-out", "target": "a1-in"},
    "c2": {"id": "c2", "source": "a1-out", "target": "e1-in"}
  }
}`

func TestParseFlow(t *testing.T) {
	graph, err := ParseFlow([]byte(welcomeFlow))
	require.Nil(t, err)
	assert.Equal(t, "VIP welcome", graph.Name)
	assert.Len(t, graph.Nodes, 3)
	assert.Equal(t, "add_to_list", graph.Nodes["a1"].Subtype)
	assert.Equal(t, "L1", graph.Nodes["a1"].Settings["listId"])
	assert.Equal(t, "a1-in", graph.Nodes["a1"].InputSocketId)
	assert.Equal(t, types.Configuration{}, graph.Nodes["e1"].Settings)
	assert.Equal(t, "a1-in", graph.Connections["c1"].TargetSocketId)
	assert.Equal(t, 1.0, graph.Transform.Scale)
	assert.Len(t, graph.TriggerNodes(), 1)
}

func TestParseFlowErrors(t *testing.T) {
	_, err := ParseFlow([]byte(`{`))
	assert.ErrorIs(t, err, ErrInvalidFlow)
	_, err = ParseFlow([]byte(`{"nodes":{"a":{"id":"b","type":"action","data":{"subtype":"log"}}}}`))
	assert.ErrorIs(t, err, ErrInvalidFlow)
	_, err = ParseFlow([]byte(`{"nodes":{"a":{"type":"widget","data":{"subtype":"log"}}}}`))
	assert.ErrorIs(t, err, ErrInvalidFlow)
	_, err = ParseFlow([]byte(`{"nodes":{"a":{"type":"action","data":{}}}}`))
	assert.ErrorIs(t, err, ErrInvalidFlow)
}

func TestEncodeFlowRoundTrip(t *testing.T) {
	graph, err := ParseFlow([]byte(welcomeFlow))
	require.Nil(t, err)
	graph.Selection = types.Selection{Nodes: []string{"a1"}}

	data, err := EncodeFlow(graph)
	require.Nil(t, err)
	decoded, err := ParseFlow(data)
	require.Nil(t, err)

	graph.Selection = types.Selection{}
	assert.Empty(t, cmp.Diff(graph, decoded))
}

func TestFlowKey(t *testing.T) {
	graph, _ := ParseFlow([]byte(welcomeFlow))
	k1, err := FlowKey(graph)
	require.Nil(t, err)
	assert.Len(t, k1, 64)

	moved := graph.Copy()
	moved.Transform = types.Transform{Scale: 3}
	k2, _ := FlowKey(moved)
	assert.Equal(t, k1, k2)

	changed := graph.Copy()
	changed.Nodes["a1"].Settings["listId"] = "L2"
	k3, _ := FlowKey(changed)
	assert.NotEqual(t, k1, k3)
}
