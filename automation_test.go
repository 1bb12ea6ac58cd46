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

package automation

import (
	"context"
	"errors"
	"io"
	"log"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mailist-com/automation/api/types"
	"github.com/mailist-com/automation/catalog"
	"github.com/mailist-com/automation/dsl"
	"github.com/mailist-com/automation/editor"
	"github.com/mailist-com/automation/engine"
	"github.com/mailist-com/automation/external"
	"github.com/mailist-com/automation/store"
	"github.com/mailist-com/automation/utils/fs"
)

var discard = log.New(io.Discard, "", 0)

// buildFlow trigger -> action -> end，通过编辑服务构建
func buildFlow(t *testing.T, name, trigger string, triggerSettings types.Configuration, action string, actionSettings types.Configuration) *types.FlowGraph {
	api := editor.NewFlowAPI(editor.NewFlowState(types.NewFlowGraph(name)), catalog.Default, discard)
	tId := api.CreateNode(trigger, types.Position{})
	require.NotEqual(t, "", tId)
	api.UpdateNodeSettings(tId, triggerSettings)
	aId := api.CreateNode(action, types.Position{X: 240})
	require.NotEqual(t, "", aId)
	api.UpdateNodeSettings(aId, actionSettings)
	eId := api.CreateNode("end/end", types.Position{X: 480})

	g := api.State().Snapshot()
	require.NotEqual(t, "", api.CreateConnection(g.Nodes[tId].OutputSockets[0].Id, g.Nodes[aId].InputSocketId))
	require.NotEqual(t, "", api.CreateConnection(g.Nodes[aId].OutputSockets[0].Id, g.Nodes[eId].InputSocketId))
	return api.State().Snapshot()
}

func vipFlow(t *testing.T) *types.FlowGraph {
	return buildFlow(t, "vip", "trigger/tag_added", types.Configuration{"tagName": "vip"},
		"action/add_to_list", types.Configuration{"listId": "L1"})
}

func TestFlowPool(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	pool := NewFlowPool(st, catalog.Default, discard)
	graph := vipFlow(t)

	assert.Equal(t, ErrEmptyFlowId, pool.Save(ctx, "", graph))
	require.Nil(t, pool.Save(ctx, "vip", graph))
	loaded, err := pool.Load(ctx, "vip")
	require.Nil(t, err)
	if diff := cmp.Diff(graph.Nodes, loaded.Nodes, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("loaded nodes mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, graph.Connections, loaded.Connections)

	_, err = pool.Load(ctx, "missing")
	assert.True(t, errors.Is(err, ErrFlowNotFound))

	require.Nil(t, pool.Activate(ctx, "vip"))
	assert.True(t, pool.IsActive("vip"))
	assert.Equal(t, []string{"vip"}, pool.ListActive())

	//激活的流程图不能保存成不完整的版本
	incomplete := graph.Copy()
	for _, n := range incomplete.Nodes {
		if n.Type == types.Action {
			n.Settings["listId"] = ""
		}
	}
	err = pool.Save(ctx, "vip", incomplete)
	assert.True(t, errors.Is(err, ErrInvalidFlow))
	assert.True(t, errors.Is(err, editor.ErrIncompleteNode))

	require.Nil(t, pool.Save(ctx, "draft", incomplete))
	err = pool.Activate(ctx, "draft")
	assert.True(t, errors.Is(err, ErrInvalidFlow))
	assert.False(t, pool.IsActive("draft"))

	ids, err := pool.List(ctx)
	require.Nil(t, err)
	assert.Equal(t, []string{"draft", "vip"}, ids)

	//重启后恢复激活列表
	restored := NewFlowPool(st, catalog.Default, discard)
	require.Nil(t, restored.Restore(ctx))
	assert.Equal(t, []string{"vip"}, restored.ListActive())

	require.Nil(t, pool.Deactivate(ctx, "vip"))
	assert.Empty(t, pool.ListActive())
	require.Nil(t, pool.Delete(ctx, "vip"))
	assert.True(t, errors.Is(pool.Delete(ctx, "vip"), ErrFlowNotFound))
}

func TestLoadFolder(t *testing.T) {
	dir := t.TempDir()
	data, err := dsl.EncodeFlow(vipFlow(t))
	require.Nil(t, err)
	require.Nil(t, fs.SaveFile(filepath.Join(dir, "welcome.json"), data))
	require.Nil(t, fs.SaveFile(filepath.Join(dir, "nested", "follow_up.json"), data))
	require.Nil(t, fs.SaveFile(filepath.Join(dir, "notes.txt"), []byte("not a flow")))

	pool := NewFlowPool(store.NewMemoryStore(), catalog.Default, discard)
	require.Nil(t, pool.LoadFolder(context.Background(), dir, true))
	assert.Equal(t, []string{"follow_up", "welcome"}, pool.ListActive())

	require.Nil(t, fs.SaveFile(filepath.Join(dir, "broken.json"), []byte("{")))
	assert.NotNil(t, pool.LoadFolder(context.Background(), dir, false))
}

func newAutomation(contacts types.ContactService) *Automation {
	return New(types.NewConfig(
		types.WithLogger(discard),
		types.WithStore(store.NewMemoryStore()),
		types.WithContacts(contacts),
	))
}

func TestHandleEvent(t *testing.T) {
	ctx := context.Background()
	contacts := external.NewMemoryContactBook(types.Contact{Id: "c1", Tags: []string{"vip"}})
	a := newAutomation(contacts)
	defer a.Stop()

	require.Nil(t, a.Flows.Save(ctx, "vip", vipFlow(t)))
	require.Nil(t, a.Flows.Activate(ctx, "vip"))
	require.Nil(t, a.Flows.Save(ctx, "joined", buildFlow(t, "joined", "trigger/list_joined", types.Configuration{"listId": "L1"},
		"action/add_tag", types.Configuration{"tag": "member"})))
	require.Nil(t, a.Flows.Activate(ctx, "joined"))

	var events []types.ExecutionEvent
	a.Engine.Subscribe(func(event types.ExecutionEvent) {
		if event.Type == types.EventStarted {
			events = append(events, event)
		}
	})

	ids, err := a.HandleEvent(ctx, types.TriggerEvent{Subtype: "tag_added", ContactId: "c1", Data: map[string]interface{}{"tag": "other"}})
	require.Nil(t, err)
	assert.Empty(t, ids)

	ids, err = a.HandleEvent(ctx, types.TriggerEvent{Subtype: "tag_added", ContactId: "c1", Data: map[string]interface{}{"tag": "vip"}})
	require.Nil(t, err)
	require.Len(t, ids, 1)
	a.Engine.Wait()

	contact, err := contacts.GetContact(ctx, "c1")
	require.Nil(t, err)
	assert.True(t, contact.InList("L1"))
	assert.False(t, contact.HasTag("member"))
	require.Len(t, events, 1)
	assert.Equal(t, ids[0], events[0].ExecutionId)

	_, err = a.HandleEvent(ctx, types.TriggerEvent{Subtype: "tag_added", ContactId: "nobody"})
	assert.True(t, errors.Is(err, types.ErrContactNotFound))
}

func TestExecuteSavedFlow(t *testing.T) {
	ctx := context.Background()
	contacts := external.NewMemoryContactBook(types.Contact{Id: "c1"})
	a := newAutomation(contacts)
	defer a.Stop()
	require.Nil(t, a.Flows.Save(ctx, "vip", vipFlow(t)))

	id, err := a.Execute(ctx, "vip", types.Contact{Id: "c1"}, map[string]interface{}{"source": "api"})
	require.Nil(t, err)
	assert.NotEqual(t, "", id)
	a.Engine.Wait()
	contact, _ := contacts.GetContact(ctx, "c1")
	assert.True(t, contact.InList("L1"))

	_, err = a.Execute(ctx, "missing", types.Contact{Id: "c1"}, nil)
	assert.True(t, errors.Is(err, ErrFlowNotFound))
}

func TestActivateRejectsNodeInitErrors(t *testing.T) {
	ctx := context.Background()
	a := newAutomation(external.NewMemoryContactBook())
	defer a.Stop()

	tests := []struct {
		name     string
		node     string
		settings types.Configuration
	}{
		{"unknown weekday", "delay/wait_until_weekday", types.Configuration{"days": []interface{}{"funday"}, "time": "09:00"}},
		{"broken expression", "condition/expression", types.Configuration{"expr": "contact.country =="}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			graph := buildFlow(t, tt.name, "trigger/contact_created", types.Configuration{}, tt.node, tt.settings)
			//编辑器校验只检查必填项
			require.Nil(t, editor.Validate(graph, catalog.Default))
			require.Nil(t, a.Flows.Save(ctx, "broken", graph))

			err := a.Flows.Activate(ctx, "broken")
			assert.True(t, errors.Is(err, ErrInvalidFlow))
			assert.True(t, errors.Is(err, engine.ErrNodeInitFailed))
			assert.False(t, a.Flows.IsActive("broken"))

			//激活的流程图也不能保存成无法初始化的版本
			require.Nil(t, a.Flows.Save(ctx, "vip", vipFlow(t)))
			require.Nil(t, a.Flows.Activate(ctx, "vip"))
			err = a.Flows.Save(ctx, "vip", graph)
			assert.True(t, errors.Is(err, engine.ErrNodeInitFailed))
			active, ok := a.Flows.Get("vip")
			require.True(t, ok)
			assert.Equal(t, "vip", active.Name)
		})
	}
}

func TestExportFolder(t *testing.T) {
	ctx := context.Background()
	pool := NewFlowPool(store.NewMemoryStore(), catalog.Default, discard)
	require.Nil(t, pool.Save(ctx, "vip", vipFlow(t)))
	require.Nil(t, pool.Save(ctx, "joined", buildFlow(t, "joined", "trigger/list_joined", types.Configuration{"listId": "L1"},
		"action/add_tag", types.Configuration{"tag": "member"})))

	dir := filepath.Join(t.TempDir(), "flows")
	require.Nil(t, pool.ExportFolder(ctx, dir))
	data := fs.LoadFile(filepath.Join(dir, "vip.json"))
	require.NotNil(t, data)
	assert.True(t, strings.Contains(string(data), "\n  \""))

	imported := NewFlowPool(store.NewMemoryStore(), catalog.Default, discard)
	require.Nil(t, imported.LoadFolder(ctx, dir, false))
	ids, err := imported.List(ctx)
	require.Nil(t, err)
	assert.Equal(t, []string{"joined", "vip"}, ids)
	for _, id := range ids {
		want, err := pool.Load(ctx, id)
		require.Nil(t, err)
		got, err := imported.Load(ctx, id)
		require.Nil(t, err)
		if diff := cmp.Diff(want, got, cmpopts.EquateEmpty()); diff != "" {
			t.Errorf("%s mismatch (-want +got):\n%s", id, diff)
		}
	}
}
