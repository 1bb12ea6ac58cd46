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
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mailist-com/automation/api/types"
	"github.com/mailist-com/automation/utils/json"
)

// 存储key
const (
	FlowKeyPrefix         = "flows/"
	ContinuationKeyPrefix = "continuations/"
	CancelledKeyPrefix    = "cancelled/"
	PausedKeyPrefix       = "paused/"
	ActivityKeyPrefix     = "activity/"
	// DueKeyPrefix 到期时间索引：due/{unixNano 20位}/{executionId}/{pathId}，按key排序即按到期时间排序
	DueKeyPrefix = "due/"
)

// Continuation 挂起路径的恢复点，持久化到Store
// Output为空表示路径在执行NodeId之前暂停，恢复时重新执行该节点；
// 否则NodeId是已经执行过的延迟节点，恢复时沿Output继续
type Continuation struct {
	ExecutionId string `json:"executionId"`
	PathId      string `json:"pathId"`
	FlowKey     string `json:"flowKey"`
	NodeId      string `json:"nodeId"`
	Output      string `json:"output,omitempty"`
	// WaitEvent 等待的外部事件，收到后沿EventOutput继续
	WaitEvent   string                  `json:"waitEvent,omitempty"`
	EventOutput string                  `json:"eventOutput,omitempty"`
	Until       time.Time               `json:"until"`
	Paused      bool                    `json:"paused,omitempty"`
	Context     *types.ExecutionContext `json:"context"`
	CreatedAt   time.Time               `json:"createdAt"`
}

// Key 存储key：continuations/{executionId}/{pathId}
func (c *Continuation) Key() string {
	return continuationKey(c.ExecutionId, c.PathId)
}

// IsDue 纯延迟或者等待事件超时已到期
func (c *Continuation) IsDue(now time.Time) bool {
	return !c.Paused && !c.Until.After(now)
}

// indexed 有到期时间的挂起路径才写入到期索引，暂停和无超时的等待事件不写
func (c *Continuation) indexed() bool {
	return !c.Paused && !c.Until.IsZero()
}

// dueKey 到期索引key
func (c *Continuation) dueKey() string {
	nanos := c.Until.UnixNano()
	if nanos < 0 {
		nanos = 0
	}
	return fmt.Sprintf("%s%020d/%s/%s", DueKeyPrefix, nanos, c.ExecutionId, c.PathId)
}

func continuationKey(executionId, pathId string) string {
	return ContinuationKeyPrefix + executionId + "/" + pathId
}

// parseDueKey 解析到期索引key，返回到期时间和挂起路径key
func parseDueKey(key string) (time.Time, string, bool) {
	parts := strings.SplitN(strings.TrimPrefix(key, DueKeyPrefix), "/", 3)
	if len(parts) != 3 || parts[1] == "" || parts[2] == "" {
		return time.Time{}, "", false
	}
	nanos, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return time.Time{}, "", false
	}
	return time.Unix(0, nanos), continuationKey(parts[1], parts[2]), true
}

func saveContinuation(ctx context.Context, store types.Store, c *Continuation) error {
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	if err := store.Put(ctx, c.Key(), data); err != nil {
		return err
	}
	if c.indexed() {
		return store.Put(ctx, c.dueKey(), []byte(c.Key()))
	}
	return nil
}

func loadContinuation(ctx context.Context, store types.Store, key string) (*Continuation, error) {
	data, err := store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	var c Continuation
	if err := json.Unmarshal(data, &c); err != nil || c.Context == nil {
		return nil, errors.New("invalid continuation " + key)
	}
	return &c, nil
}

// dueKeys 按到期时间排序的索引key
func dueKeys(ctx context.Context, store types.Store) ([]string, error) {
	values, err := store.List(ctx, DueKeyPrefix)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// listContinuations 按到期时间排序，prefix为空列出所有
func listContinuations(ctx context.Context, store types.Store, executionId string) ([]*Continuation, error) {
	prefix := ContinuationKeyPrefix
	if executionId != "" {
		prefix += executionId + "/"
	}
	values, err := store.List(ctx, prefix)
	if err != nil {
		return nil, err
	}
	result := make([]*Continuation, 0, len(values))
	var errs []error
	for key, v := range values {
		var c Continuation
		if err := json.Unmarshal(v, &c); err != nil || c.Context == nil {
			errs = append(errs, errors.New("invalid continuation "+key))
			continue
		}
		result = append(result, &c)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Until.Equal(result[j].Until) {
			return result[i].Key() < result[j].Key()
		}
		return result[i].Until.Before(result[j].Until)
	})
	return result, errors.Join(errs...)
}

// claim 删除成功的调用者获得恢复该路径的权利，同时删除到期索引
func claim(ctx context.Context, store types.Store, c *Continuation) (bool, error) {
	ok, err := store.Delete(ctx, c.Key())
	if err != nil {
		return false, err
	}
	if c.indexed() {
		_, _ = store.Delete(ctx, c.dueKey())
	}
	return ok, nil
}

func isMarked(ctx context.Context, store types.Store, prefix, executionId string) bool {
	_, err := store.Get(ctx, prefix+executionId)
	return err == nil
}

func mark(ctx context.Context, store types.Store, prefix, executionId string, now time.Time) error {
	return store.Put(ctx, prefix+executionId, []byte(now.Format(time.RFC3339Nano)))
}

// markedAt 标记写入的时间
func markedAt(value []byte) (time.Time, bool) {
	t, err := time.Parse(time.RFC3339Nano, string(value))
	return t, err == nil
}
