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

package store

import (
	"context"
	"strings"
	"sync"

	"github.com/mailist-com/automation/api/types"
)

// MemoryStore 进程内存储
type MemoryStore struct {
	values map[string][]byte
	sync.RWMutex
}

var _ types.Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string][]byte)}
}

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.RLock()
	defer s.RUnlock()
	v, ok := s.values[key]
	if !ok {
		return nil, types.ErrNotFound
	}
	return clone(v), nil
}

func (s *MemoryStore) Put(ctx context.Context, key string, value []byte) error {
	s.Lock()
	defer s.Unlock()
	s.values[key] = clone(value)
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) (bool, error) {
	s.Lock()
	defer s.Unlock()
	_, ok := s.values[key]
	delete(s.values, key)
	return ok, nil
}

func (s *MemoryStore) List(ctx context.Context, prefix string) (map[string][]byte, error) {
	s.RLock()
	defer s.RUnlock()
	result := make(map[string][]byte)
	for k, v := range s.values {
		if strings.HasPrefix(k, prefix) {
			result[k] = clone(v)
		}
	}
	return result, nil
}

func clone(v []byte) []byte {
	if v == nil {
		return []byte{}
	}
	c := make([]byte, len(v))
	copy(c, v)
	return c
}
