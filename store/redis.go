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
	"errors"
	"fmt"

	"github.com/mailist-com/automation/api/types"
	"github.com/redis/go-redis/v9"
)

// scanCount SCAN每批数量
const scanCount = 200

// RedisStore redis存储
// 删除使用DEL的返回值判断，多个进程并发删除同一个key时只有一个返回true
type RedisStore struct {
	client *redis.Client
	// Namespace key前缀，用于多个环境共用一个redis
	Namespace string
}

var _ types.Store = (*RedisStore)(nil)

// NewRedisStore 通过redis://url创建存储并检查连接
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisStore{client: client, Namespace: "automation:"}, nil
}

// NewRedisStoreWithClient 使用已有的客户端
func NewRedisStoreWithClient(client *redis.Client, namespace string) *RedisStore {
	return &RedisStore{client: client, Namespace: namespace}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := s.client.Get(ctx, s.Namespace+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return v, nil
}

func (s *RedisStore) Put(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, s.Namespace+key, value, 0).Err(); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) (bool, error) {
	count, err := s.client.Del(ctx, s.Namespace+key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return count > 0, nil
}

func (s *RedisStore) List(ctx context.Context, prefix string) (map[string][]byte, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, s.Namespace+prefix+"*", scanCount).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", prefix, err)
	}
	result := make(map[string][]byte, len(keys))
	if len(keys) == 0 {
		return result, nil
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", prefix, err)
	}
	for i, v := range values {
		//扫描和读取之间被删除的key返回nil
		if str, ok := v.(string); ok {
			result[keys[i][len(s.Namespace):]] = []byte(str)
		}
	}
	return result, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
