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

// Package json wraps encoding/json with the encoder settings used for flow documents and events.
package json

import (
	"bytes"
	"encoding/json"
)

// Marshal marshals v to json without escaping &, < and >.
// Email content and webhook bodies are stored verbatim.
func Marshal(v interface{}) ([]byte, error) {
	return marshal(v, "")
}

// MarshalIndent marshals v to indented json, used for persisted flow files.
func MarshalIndent(v interface{}) ([]byte, error) {
	return marshal(v, "  ")
}

func marshal(v interface{}, indent string) ([]byte, error) {
	var byteBuf bytes.Buffer
	encoder := json.NewEncoder(&byteBuf)
	encoder.SetEscapeHTML(false)
	if indent != "" {
		encoder.SetIndent("", indent)
	}
	err := encoder.Encode(v)
	if err == nil && byteBuf.Len() > 0 {
		//去掉 Encode 追加的换行符
		return byteBuf.Bytes()[:byteBuf.Len()-1], err
	} else {
		return byteBuf.Bytes(), err
	}
}

// Unmarshal json data to struct
func Unmarshal(b []byte, m interface{}) error {
	return json.Unmarshal(b, m)
}
