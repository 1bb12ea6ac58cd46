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

package fs

import (
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSaveAndLoadFile(t *testing.T) {
	tempDir := t.TempDir()
	testData := []byte(`{"name":"welcome"}`)
	deepPath := filepath.Join(tempDir, "subdir", "flow.json")

	err := SaveFile(deepPath, testData)
	assert.Nil(t, err)
	assert.True(t, IsExist(deepPath))
	assert.Equal(t, testData, LoadFile(deepPath))
	assert.Nil(t, LoadFile(filepath.Join(tempDir, "nonexistent.json")))
}

func TestGetFilePaths(t *testing.T) {
	tempDir := t.TempDir()
	assert.Nil(t, SaveFile(filepath.Join(tempDir, "a.json"), []byte("{}")))
	assert.Nil(t, SaveFile(filepath.Join(tempDir, "nested", "b.json"), []byte("{}")))
	assert.Nil(t, SaveFile(filepath.Join(tempDir, "skip", "c.json"), []byte("{}")))
	assert.Nil(t, SaveFile(filepath.Join(tempDir, "readme.md"), []byte("#")))

	paths, err := GetFilePaths(filepath.Join(tempDir, "*.json"), "skip")
	assert.Nil(t, err)
	sort.Strings(paths)
	assert.Equal(t, []string{
		filepath.Join(tempDir, "a.json"),
		filepath.Join(tempDir, "nested", "b.json"),
	}, paths)
}
