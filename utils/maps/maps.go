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

// Package maps 提供map与结构体转换以及嵌套取值工具
package maps

import (
	"strings"

	"github.com/mitchellh/mapstructure"
)

// Map2Struct Decode takes an input structure and uses reflection to translate it to
// the output structure. output must be a pointer to a map or struct.
// 字符串形式的时间间隔（例如：5s）会被转换成 time.Duration，数值类型之间会做弱类型转换。
func Map2Struct(input interface{}, output interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		Result:           output,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}

// Get 通过点号分隔的路径获取嵌套map的值，例如：address.city
func Get(input interface{}, fieldName string) interface{} {
	if fieldName == "" {
		return nil
	}
	var current = input
	for _, key := range strings.Split(fieldName, ".") {
		if key == "" {
			return nil
		}
		switch m := current.(type) {
		case map[string]interface{}:
			v, ok := m[key]
			if !ok {
				return nil
			}
			current = v
		case map[string]string:
			v, ok := m[key]
			if !ok {
				return nil
			}
			current = v
		default:
			return nil
		}
	}
	return current
}

// DeepCopy 深拷贝map，嵌套的map和切片也会被拷贝
func DeepCopy(input map[string]interface{}) map[string]interface{} {
	if input == nil {
		return nil
	}
	result := make(map[string]interface{}, len(input))
	for k, v := range input {
		result[k] = copyValue(v)
	}
	return result
}

func copyValue(v interface{}) interface{} {
	switch value := v.(type) {
	case map[string]interface{}:
		return DeepCopy(value)
	case map[string]string:
		m := make(map[string]string, len(value))
		for k, item := range value {
			m[k] = item
		}
		return m
	case []interface{}:
		s := make([]interface{}, len(value))
		for i, item := range value {
			s[i] = copyValue(item)
		}
		return s
	case []string:
		s := make([]string, len(value))
		copy(s, value)
		return s
	case []map[string]interface{}:
		s := make([]map[string]interface{}, len(value))
		for i, item := range value {
			s[i] = DeepCopy(item)
		}
		return s
	default:
		return v
	}
}
