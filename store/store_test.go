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
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/mailist-com/automation/api/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T, s types.Store) {
	ctx := context.Background()

	_, err := s.Get(ctx, "flows/missing")
	assert.True(t, errors.Is(err, types.ErrNotFound))

	require.Nil(t, s.Put(ctx, "flows/a", []byte(`{"name":"a"}`)))
	require.Nil(t, s.Put(ctx, "flows/b", []byte(`{"name":"b"}`)))
	require.Nil(t, s.Put(ctx, "continuations/e1/p1", []byte("c1")))
	require.Nil(t, s.Put(ctx, "flows/a", []byte(`{"name":"a2"}`)))

	v, err := s.Get(ctx, "flows/a")
	require.Nil(t, err)
	assert.Equal(t, `{"name":"a2"}`, string(v))

	list, err := s.List(ctx, "flows/")
	require.Nil(t, err)
	assert.Equal(t, map[string][]byte{
		"flows/a": []byte(`{"name":"a2"}`),
		"flows/b": []byte(`{"name":"b"}`),
	}, list)

	list, err = s.List(ctx, "continuations/e1/")
	require.Nil(t, err)
	assert.Len(t, list, 1)

	list, err = s.List(ctx, "nothing/")
	require.Nil(t, err)
	assert.Empty(t, list)

	ok, err := s.Delete(ctx, "flows/b")
	require.Nil(t, err)
	assert.True(t, ok)
	ok, err = s.Delete(ctx, "flows/b")
	require.Nil(t, err)
	assert.False(t, ok)

	//only one concurrent deleter claims the key
	require.Nil(t, s.Put(ctx, "claim", []byte("x")))
	var claimed int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, err := s.Delete(ctx, "claim"); err == nil && ok {
				atomic.AddInt32(&claimed, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), claimed)
}

func TestMemoryStore(t *testing.T) {
	testStore(t, NewMemoryStore())
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	s := NewMemoryStore()
	value := []byte("abc")
	require.Nil(t, s.Put(context.Background(), "k", value))
	value[0] = 'x'
	v, _ := s.Get(context.Background(), "k")
	assert.Equal(t, "abc", string(v))
}

func TestSqliteStore(t *testing.T) {
	s, err := Open(context.Background(), "sqlite3", filepath.Join(t.TempDir(), "automation.db"))
	require.Nil(t, err)
	defer Close(s)
	testStore(t, s)
}

func TestRedisStore(t *testing.T) {
	url := os.Getenv("AUTOMATION_TEST_REDIS")
	if url == "" {
		t.Skip("AUTOMATION_TEST_REDIS is not set")
	}
	s, err := NewRedisStore(context.Background(), url)
	require.Nil(t, err)
	s.Namespace = "automation-test:" + t.Name() + ":"
	defer Close(s)
	for _, key := range []string{"flows/a", "flows/b", "continuations/e1/p1", "claim"} {
		_, _ = s.Delete(context.Background(), key)
	}
	testStore(t, s)
}

func TestOpen(t *testing.T) {
	s, err := Open(context.Background(), "", "")
	require.Nil(t, err)
	assert.IsType(t, &MemoryStore{}, s)
	assert.Nil(t, Close(s))

	_, err = Open(context.Background(), "cassandra", "")
	assert.NotNil(t, err)
}
