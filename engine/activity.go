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
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/mailist-com/automation/api/types"
	"github.com/mailist-com/automation/utils/json"
)

// ActivityLog 把执行事件写入Store，用于查询执行历史
// 订阅方式：e.Subscribe(activityLog.OnEvent)
type ActivityLog struct {
	store  types.Store
	logger types.Logger
	seq    uint64
}

// NewActivityLog 创建执行历史记录器
func NewActivityLog(store types.Store, logger types.Logger) *ActivityLog {
	return &ActivityLog{store: store, logger: types.NewLogger(logger)}
}

// OnEvent 保存事件，key：activity/{executionId}/{timestamp}-{seq}
func (a *ActivityLog) OnEvent(event types.ExecutionEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		a.logger.Printf("encode activity error: %s", err.Error())
		return
	}
	seq := atomic.AddUint64(&a.seq, 1)
	key := fmt.Sprintf("%s%s/%020d-%010d", ActivityKeyPrefix, event.ExecutionId, event.Timestamp.UnixNano(), seq)
	if err := a.store.Put(context.Background(), key, data); err != nil {
		a.logger.Printf("save activity execution=%s error: %s", event.ExecutionId, err.Error())
	}
}

// History 按发生顺序返回执行的事件
func (a *ActivityLog) History(ctx context.Context, executionId string) ([]types.ExecutionEvent, error) {
	values, err := a.store.List(ctx, ActivityKeyPrefix+executionId+"/")
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	events := make([]types.ExecutionEvent, 0, len(keys))
	for _, k := range keys {
		var event types.ExecutionEvent
		if err := json.Unmarshal(values[k], &event); err != nil {
			return nil, fmt.Errorf("decode activity %s: %w", k, err)
		}
		events = append(events, event)
	}
	return events, nil
}

// Purge 删除执行的历史
func (a *ActivityLog) Purge(ctx context.Context, executionId string) (int, error) {
	values, err := a.store.List(ctx, ActivityKeyPrefix+executionId+"/")
	if err != nil {
		return 0, err
	}
	n := 0
	for k := range values {
		ok, err := a.store.Delete(ctx, k)
		if err != nil {
			return n, err
		}
		if ok {
			n++
		}
	}
	return n, nil
}
