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
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mailist-com/automation/api/types"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	start := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	r.Register(&types.ExecutionContext{ExecutionId: "b", PathId: "p1", StartedAt: start})
	r.Register(&types.ExecutionContext{ExecutionId: "a", PathId: "p1", StartedAt: start})
	r.Register(&types.ExecutionContext{ExecutionId: "c", PathId: "p1", StartedAt: start.Add(-time.Minute)})

	var ids []string
	for _, exec := range r.ListActive() {
		ids = append(ids, exec.ExecutionId)
	}
	assert.Equal(t, []string{"c", "a", "b"}, ids)

	exec, ok := r.Get("a")
	require.True(t, ok)
	exec.SetVar("x", 1)
	again, _ := r.Get("a")
	assert.Empty(t, again.Variables)

	r.Track(&types.ExecutionContext{ExecutionId: "a", PathId: "p2", CurrentNodeId: "n5"})
	again, _ = r.Get("a")
	assert.Equal(t, "p2", again.PathId)
	assert.Equal(t, "n5", again.CurrentNodeId)

	assert.True(t, r.RequestPause("a"))
	assert.True(t, r.IsPaused("a"))
	assert.False(t, r.RequestPause("zzz"))
	assert.True(t, r.ClearPause("a"))
	assert.False(t, r.IsPaused("a"))

	r.AddPaths("a", 2)
	assert.False(t, r.DonePath("a"))
	assert.False(t, r.DonePath("a"))
	assert.True(t, r.DonePath("a"))
	assert.False(t, r.Contains("a"))
	assert.False(t, r.DonePath("a"))

	assert.True(t, r.Unregister("b"))
	assert.False(t, r.Unregister("b"))
	assert.Equal(t, 1, r.Len())

	assert.False(t, r.Restore(&types.ExecutionContext{ExecutionId: "c"}, 1, false))
	assert.True(t, r.Restore(&types.ExecutionContext{ExecutionId: "d"}, 2, true))
	assert.True(t, r.IsPaused("d"))
	assert.False(t, r.DonePath("d"))
	assert.True(t, r.DonePath("d"))
}

func TestRegistryConcurrentPaths(t *testing.T) {
	r := NewRegistry()
	r.Register(&types.ExecutionContext{ExecutionId: "e1"})
	r.AddPaths("e1", 99)
	var wg sync.WaitGroup
	var finished int32
	var mu sync.Mutex
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if r.DonePath("e1") {
				mu.Lock()
				finished++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), finished)
	assert.Equal(t, 0, r.Len())
}

func TestEventBus(t *testing.T) {
	bus := NewEventBus(log.New(io.Discard, "", 0))
	var got []string
	bus.Subscribe(func(event types.ExecutionEvent) {
		got = append(got, "first:"+string(event.Type))
	})
	bus.Subscribe(func(event types.ExecutionEvent) {
		panic("listener failed")
	})
	unsubscribe := bus.Subscribe(func(event types.ExecutionEvent) {
		got = append(got, "third:"+string(event.Type))
	})

	bus.Emit(types.ExecutionEvent{Type: types.EventStarted})
	unsubscribe()
	bus.Emit(types.ExecutionEvent{Type: types.EventCompleted})
	assert.Equal(t, []string{"first:started", "third:started", "first:completed"}, got)
}
