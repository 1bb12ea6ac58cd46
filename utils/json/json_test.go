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

package json

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

type user struct {
	Username string `json:"username"`
	Bio      string `json:"bio"`
}

func TestMarshal(t *testing.T) {
	v, err := Marshal(user{Username: "test", Bio: "<b>hi</b> & bye"})
	assert.Nil(t, err)
	assert.Equal(t, `{"username":"test","bio":"<b>hi</b> & bye"}`, string(v))

	std, _ := json.Marshal(user{Username: "test"})
	v, _ = Marshal(user{Username: "test"})
	assert.Equal(t, string(std), string(v))
}

func TestMarshalIndent(t *testing.T) {
	v, err := MarshalIndent(map[string]string{"a": "b"})
	assert.Nil(t, err)
	assert.Equal(t, "{\n  \"a\": \"b\"\n}", string(v))
}

func TestUnmarshal(t *testing.T) {
	var u user
	err := Unmarshal([]byte(`{"username":"test"}`), &u)
	assert.Nil(t, err)
	assert.Equal(t, "test", u.Username)
	assert.NotNil(t, Unmarshal([]byte(`{`), &u))
}
