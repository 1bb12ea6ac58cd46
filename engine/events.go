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
	"sort"
	"sync"

	"github.com/mailist-com/automation/api/types"
	"github.com/mailist-com/automation/utils/runtime"
)

// Listener 执行事件订阅函数
type Listener func(event types.ExecutionEvent)

// EventBus 执行事件总线
// 事件在产生事件的协程中按订阅顺序同步分发，同一条路径的事件是有序的
type EventBus struct {
	listeners map[int]Listener
	nextId    int
	logger    types.Logger
	sync.RWMutex
}

// NewEventBus 创建事件总线
func NewEventBus(logger types.Logger) *EventBus {
	return &EventBus{listeners: make(map[int]Listener), logger: types.NewLogger(logger)}
}

// Subscribe 订阅事件，返回取消订阅函数
func (b *EventBus) Subscribe(listener Listener) func() {
	b.Lock()
	defer b.Unlock()
	id := b.nextId
	b.nextId++
	b.listeners[id] = listener
	return func() {
		b.Lock()
		defer b.Unlock()
		delete(b.listeners, id)
	}
}

// Emit 分发事件，订阅者panic不会影响其他订阅者
func (b *EventBus) Emit(event types.ExecutionEvent) {
	b.RLock()
	ids := make([]int, 0, len(b.listeners))
	for id := range b.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	listeners := make([]Listener, len(ids))
	for i, id := range ids {
		listeners[i] = b.listeners[id]
	}
	b.RUnlock()

	for _, l := range listeners {
		b.notify(l, event)
	}
}

func (b *EventBus) notify(l Listener, event types.ExecutionEvent) {
	defer func() {
		if caught := recover(); caught != nil {
			b.logger.Printf("execution event listener error: %s", runtime.PanicError(caught).Error())
		}
	}()
	l(event)
}
