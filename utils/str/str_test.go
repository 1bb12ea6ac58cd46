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

package str

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type user struct {
	Username string
	Age      int
}

func TestToString(t *testing.T) {
	assert.Equal(t, "123", ToString(123))
	assert.Equal(t, "this is test", ToString("this is test"))
	assert.Equal(t, "this is test", ToString([]byte("this is test")))
	assert.Equal(t, "1.5", ToString(1.5))
	assert.Equal(t, "true", ToString(true))
	assert.Equal(t, "boom", ToString(errors.New("boom")))
	assert.Equal(t, "", ToString(nil))
	assert.Equal(t, `{"Username":"lala","Age":25}`, ToString(user{Username: "lala", Age: 25}))
	assert.Equal(t, `{"name":"<b>"}`, ToString(map[string]string{"name": "<b>"}))
}

func TestToFloat(t *testing.T) {
	f, ok := ToFloat("100")
	assert.True(t, ok)
	assert.Equal(t, float64(100), f)

	f, ok = ToFloat(int64(7))
	assert.True(t, ok)
	assert.Equal(t, float64(7), f)

	_, ok = ToFloat("abc")
	assert.False(t, ok)
	_, ok = ToFloat([]string{"1"})
	assert.False(t, ok)
}

func TestContains(t *testing.T) {
	assert.True(t, Contains([]string{"a", "b"}, "b"))
	assert.False(t, Contains(nil, "a"))
	assert.Len(t, RandomStr(8), 8)
}

func TestConvertDollarPlaceholder(t *testing.T) {
	assert.Equal(t, "SELECT v FROM kv WHERE k = $1 AND n > $2", ConvertDollarPlaceholder("SELECT v FROM kv WHERE k = ? AND n > ?", "postgres"))
	assert.Equal(t, "SELECT v FROM kv WHERE k = ?", ConvertDollarPlaceholder("SELECT v FROM kv WHERE k = ?", "mysql"))
}
