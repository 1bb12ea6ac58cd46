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


package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mailist-com/automation/api/types"
)

func TestPauseSuspendedAfterRestart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.run(t, delayFlow(1, "days"), types.Contact{Id: "c1"})
	f.engine.Stop()

	f.start(t)
	require.Nil(t, f.engine.Pause(ctx, id))
	exec, ok := f.engine.GetExecution(id)
	require.True(t, ok)
	assert.Equal(t, "c1", exec.ContactId)
	assert.True(t, f.engine.Registry().IsPaused(id))
	assert.Len(t, f.engine.ListActive(), 1)
	assert.Len(t, f.events.byType(types.EventPaused), 1)

	f.clock.Advance(48 * time.Hour)
	n, err := f.engine.Sweep(ctx)
	require.Nil(t, err)
	assert.Equal(t, 0, n)

	require.Nil(t, f.engine.Resume(ctx, id))
	n, err = f.engine.Sweep(ctx)
	require.Nil(t, err)
	assert.Equal(t, 1, n)
	f.engine.Wait()
	assert.Len(t, f.events.byType(types.EventCompleted), 1)
	assert.Equal(t, 0, f.engine.Registry().Len())

	//已完成或者从未存在的执行
	assert.True(t, errors.Is(f.engine.Pause(ctx, id), ErrExecutionNotFound))
	assert.True(t, errors.Is(f.engine.Pause(ctx, "unknown"), ErrExecutionNotFound))
}

func TestPauseCancelledAfterRestart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.run(t, delayFlow(1, "days"), types.Contact{Id: "c1"})
	parked := f.continuations(t)
	require.Len(t, parked, 1)
	require.Nil(t, f.engine.Cancel(ctx, id))
	require.Nil(t, saveContinuation(ctx, f.store, parked[0]))

	f.start(t)
	assert.True(t, errors.Is(f.engine.Pause(ctx, id), ErrExecutionNotFound))
	_, ok := f.engine.GetExecution(id)
	assert.False(t, ok)
}

func TestRecoverRegistry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	paused := f.run(t, delayFlow(1, "days"), types.Contact{Id: "c1"})
	running := f.run(t, delayFlow(1, "days"), types.Contact{Id: "c2"})
	require.Nil(t, f.engine.Pause(ctx, paused))
	f.engine.Stop()

	f.start(t)
	assert.Equal(t, 0, f.engine.Registry().Len())
	n, err := f.engine.Recover(ctx)
	require.Nil(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, f.engine.ListActive(), 2)
	assert.True(t, f.engine.Registry().IsPaused(paused))
	assert.False(t, f.engine.Registry().IsPaused(running))

	n, err = f.engine.Recover(ctx)
	require.Nil(t, err)
	assert.Equal(t, 0, n)

	f.clock.Advance(48 * time.Hour)
	n, err = f.engine.Sweep(ctx)
	require.Nil(t, err)
	assert.Equal(t, 1, n)
	f.engine.Wait()
	completed := f.events.byType(types.EventCompleted)
	require.Len(t, completed, 1)
	assert.Equal(t, running, completed[0].ExecutionId)
	assert.False(t, f.engine.Registry().Contains(running))
	assert.True(t, f.engine.Registry().Contains(paused))
}

func TestRecoverBackfillsDueIndex(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.run(t, delayFlow(1, "hours"), types.Contact{Id: "c1"})
	keys, err := dueKeys(ctx, f.store)
	require.Nil(t, err)
	require.Len(t, keys, 1)
	//没有到期索引的旧数据
	_, err = f.store.Delete(ctx, keys[0])
	require.Nil(t, err)

	f.start(t)
	n, err := f.engine.Recover(ctx)
	require.Nil(t, err)
	assert.Equal(t, 1, n)
	restored, err := dueKeys(ctx, f.store)
	require.Nil(t, err)
	assert.Equal(t, keys, restored)

	f.clock.Advance(time.Hour)
	n, err = f.engine.Sweep(ctx)
	require.Nil(t, err)
	assert.Equal(t, 1, n)
	f.engine.Wait()
	assert.Len(t, f.events.byType(types.EventCompleted), 1)
}

func TestStartRecoversRegistry(t *testing.T) {
	f := newFixture(t, types.WithSweepInterval(time.Hour))
	id := f.run(t, delayFlow(1, "days"), types.Contact{Id: "c1"})
	f.engine.Stop()

	f.start(t)
	require.Nil(t, f.engine.Start())
	_, ok := f.engine.GetExecution(id)
	assert.True(t, ok)
	require.Nil(t, f.engine.Cancel(context.Background(), id))
	assert.Empty(t, f.continuations(t))
}

func TestDueIndex(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	soon := f.run(t, delayFlow(1, "hours"), types.Contact{Id: "c1"})
	later := f.run(t, delayFlow(2, "days"), types.Contact{Id: "c2"})
	require.Len(t, f.continuations(t), 2)

	values, err := f.store.List(ctx, DueKeyPrefix)
	require.Nil(t, err)
	require.Len(t, values, 2)
	keys, err := dueKeys(ctx, f.store)
	require.Nil(t, err)
	until, key, ok := parseDueKey(keys[0])
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(key, ContinuationKeyPrefix+soon+"/"))
	assert.True(t, until.Equal(f.clock.Now().Add(time.Hour)))
	assert.Equal(t, key, string(values[keys[0]]))
	_, key, _ = parseDueKey(keys[1])
	assert.True(t, strings.HasPrefix(key, ContinuationKeyPrefix+later+"/"))

	f.clock.Advance(time.Hour)
	n, err := f.engine.Sweep(ctx)
	require.Nil(t, err)
	assert.Equal(t, 1, n)
	f.engine.Wait()
	keys, err = dueKeys(ctx, f.store)
	require.Nil(t, err)
	require.Len(t, keys, 1)
	_, key, _ = parseDueKey(keys[0])
	assert.True(t, strings.HasPrefix(key, ContinuationKeyPrefix+later+"/"))
}

func TestSweepRemovesStaleDueKeys(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	past := f.clock.Now().Add(-time.Minute).UnixNano()
	stale := fmt.Sprintf("%s%020d/%s/%s", DueKeyPrefix, past, "gone", "gone")
	require.Nil(t, f.store.Put(ctx, stale, []byte(continuationKey("gone", "gone"))))
	require.Nil(t, f.store.Put(ctx, DueKeyPrefix+"garbage", nil))

	n, err := f.engine.Sweep(ctx)
	require.Nil(t, err)
	assert.Equal(t, 0, n)
	keys, err := dueKeys(ctx, f.store)
	require.Nil(t, err)
	assert.Empty(t, keys)
	assert.Empty(t, f.events.all())
}

func TestSweepIgnoresMovedContinuation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.run(t, delayFlow(1, "hours"), types.Contact{Id: "c1"})
	parked := f.continuations(t)
	require.Len(t, parked, 1)
	old := parked[0].dueKey()

	//同一路径重新挂起到更晚的时间，旧索引保留
	moved := *parked[0]
	moved.Until = moved.Until.Add(24 * time.Hour)
	data, err := json.Marshal(&moved)
	require.Nil(t, err)
	require.Nil(t, f.store.Put(ctx, moved.Key(), data))
	require.Nil(t, f.store.Put(ctx, moved.dueKey(), []byte(moved.Key())))

	f.clock.Advance(time.Hour)
	n, err := f.engine.Sweep(ctx)
	require.Nil(t, err)
	assert.Equal(t, 0, n)
	_, err = f.store.Get(ctx, old)
	assert.True(t, errors.Is(err, types.ErrNotFound))
	assert.True(t, f.engine.Registry().Contains(id))

	f.clock.Advance(24 * time.Hour)
	n, err = f.engine.Sweep(ctx)
	require.Nil(t, err)
	assert.Equal(t, 1, n)
	f.engine.Wait()
	assert.Len(t, f.events.byType(types.EventCompleted), 1)
}

func TestCancelledTombstonePurged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.run(t, delayFlow(1, "days"), types.Contact{Id: "c1"})
	require.Nil(t, f.engine.Cancel(ctx, id))
	keys, err := dueKeys(ctx, f.store)
	require.Nil(t, err)
	assert.Empty(t, keys)

	f.clock.Advance(DefaultTombstoneTTL - time.Hour)
	_, err = f.engine.Sweep(ctx)
	require.Nil(t, err)
	_, err = f.store.Get(ctx, CancelledKeyPrefix+id)
	assert.Nil(t, err)

	f.clock.Advance(2 * time.Hour)
	_, err = f.engine.Sweep(ctx)
	require.Nil(t, err)
	_, err = f.store.Get(ctx, CancelledKeyPrefix+id)
	assert.True(t, errors.Is(err, types.ErrNotFound))
	assert.True(t, errors.Is(f.engine.Cancel(ctx, id), ErrExecutionNotFound))
}

func TestTombstoneKeptWhilePathsRemain(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.run(t, waitForEventFlow(), types.Contact{Id: "c1"})
	parked := f.continuations(t)
	require.Len(t, parked, 1)
	require.Nil(t, f.engine.Cancel(ctx, id))
	//取消后另一个实例写回的没有超时的挂起路径
	parked[0].Until = time.Time{}
	require.Nil(t, saveContinuation(ctx, f.store, parked[0]))

	f.clock.Advance(DefaultTombstoneTTL + time.Hour)
	_, err := f.engine.Sweep(ctx)
	require.Nil(t, err)
	_, err = f.store.Get(ctx, CancelledKeyPrefix+id)
	assert.Nil(t, err)

	n, err := f.engine.Signal(ctx, "c1", "purchase", nil)
	require.Nil(t, err)
	assert.Equal(t, 0, n)
	assert.Empty(t, f.continuations(t))
}

func TestFlowCtxRetireWaitsForPaths(t *testing.T) {
	f := newFixture(t)
	fc := NewFlowCtx(f.engine.Config(), "k", vipFlow())
	fc.acquire()
	fc.acquire()
	fc.retire()
	assert.False(t, fc.destroyed)
	fc.release()
	assert.False(t, fc.destroyed)
	fc.release()
	assert.True(t, fc.destroyed)

	idle := NewFlowCtx(f.engine.Config(), "k", vipFlow())
	idle.retire()
	assert.True(t, idle.destroyed)
}

func TestFlowCacheReplaceRetires(t *testing.T) {
	f := newFixture(t)
	first := NewFlowCtx(f.engine.Config(), "k", vipFlow())
	second := NewFlowCtx(f.engine.Config(), "k", vipFlow())
	first.acquire()
	f.engine.flows.Set("k", first, DefaultFlowTTL)
	f.engine.flows.Set("k", second, DefaultFlowTTL)
	assert.True(t, first.retired)
	assert.False(t, first.destroyed)
	first.release()
	assert.True(t, first.destroyed)
	assert.False(t, second.retired)
}

func TestFlowCtxErr(t *testing.T) {
	f := newFixture(t)
	assert.Nil(t, NewFlowCtx(f.engine.Config(), "ok", vipFlow()).Err())
	graph := newGraph("broken").
		node("t1", types.Trigger, "contact_created", types.Configuration{}, types.Output).
		node("b1", types.Action, "ghost", types.Configuration{}, types.Output).
		node("a1", types.Action, "unknown_action", types.Configuration{}, types.Output).
		connect("t1", types.Output, "a1").
		connect("a1", types.Output, "b1").
		build()
	err := NewFlowCtx(f.engine.Config(), "broken", graph).Err()
	require.NotNil(t, err)
	assert.True(t, errors.Is(err, ErrUnknownNodeType))
	assert.True(t, errors.Is(err, ErrComponentMissing))
	assert.Less(t, strings.Index(err.Error(), "unknown_action"), strings.Index(err.Error(), "ghost"))
}
