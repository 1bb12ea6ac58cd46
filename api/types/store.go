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

package types

import (
	"context"
	"errors"
)

// ErrNotFound key不存在
var ErrNotFound = errors.New("key not found")

// Store 抽象键值存储，用于持久化延迟恢复点、流程图和执行日志
// Store is the abstract durable key-value store. Implementations live in package store.
type Store interface {
	//Get 获取值，不存在返回 ErrNotFound
	Get(ctx context.Context, key string) ([]byte, error)
	//Put 写入值
	Put(ctx context.Context, key string, value []byte) error
	//Delete 删除值，返回该key是否存在。多个进程并发删除同一个key时只有一个返回true
	Delete(ctx context.Context, key string) (bool, error)
	//List 获取指定前缀的所有键值
	List(ctx context.Context, prefix string) (map[string][]byte, error)
}
