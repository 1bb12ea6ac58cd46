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

// Package el compiles `${...}` templates and boolean expressions with expr-lang.
// Templates render email subjects, webhook bodies and log messages against the
// execution environment: contact, vars and global.
package el

import (
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/mailist-com/automation/utils/str"
)

// Template 模板接口
type Template interface {
	// Execute 渲染模板，只有一个变量的模板返回变量的原始类型
	Execute(env map[string]interface{}) (interface{}, error)
	// ExecuteAsString 渲染模板并转换成字符串，出错返回空字符串
	ExecuteAsString(env map[string]interface{}) string
	// HasVar 是否有变量
	HasVar() bool
}

// NewTemplate 根据模板内容创建模板：
//   - `${contact.email}` 整个字符串是一个变量，返回 ExprTemplate
//   - `Hi ${contact.name}!` 混合字符串和变量，返回 MixedTemplate
//   - 没有变量，原样输出
func NewTemplate(tmpl string) (Template, error) {
	trimV := strings.TrimSpace(tmpl)
	segments, err := parseSegments(tmpl)
	if err != nil {
		return nil, err
	}
	switch {
	case len(segments) == 0:
		return &NotTemplate{Tmpl: tmpl}, nil
	case len(segments) == 1 && strings.HasPrefix(trimV, str.VarPrefix) && strings.HasSuffix(trimV, str.VarSuffix) &&
		segments[0].start == strings.Index(tmpl, str.VarPrefix) && segments[0].end == strings.LastIndex(tmpl, str.VarSuffix)+1:
		return &ExprTemplate{Tmpl: segments[0].source, program: segments[0].program}, nil
	default:
		return &MixedTemplate{Tmpl: tmpl, segments: segments}, nil
	}
}

// MustTemplate 创建模板，失败panic，用于常量模板
func MustTemplate(tmpl string) Template {
	t, err := NewTemplate(tmpl)
	if err != nil {
		panic(err)
	}
	return t
}

type segment struct {
	start   int
	end     int
	source  string
	program *vm.Program
}

// parseSegments 找出所有 ${...}，大括号可以嵌套，例如 ${ {"a":1}.a }
func parseSegments(tmpl string) ([]segment, error) {
	var segments []segment
	for i := 0; i < len(tmpl)-1; i++ {
		if tmpl[i] != '$' || tmpl[i+1] != '{' {
			continue
		}
		depth := 0
		end := -1
		for j := i + 1; j < len(tmpl); j++ {
			if tmpl[j] == '{' {
				depth++
			} else if tmpl[j] == '}' {
				depth--
				if depth == 0 {
					end = j
					break
				}
			}
		}
		if end == -1 {
			break
		}
		source := strings.TrimSpace(tmpl[i+2 : end])
		program, err := expr.Compile(source, expr.AllowUndefinedVariables())
		if err != nil {
			return nil, err
		}
		segments = append(segments, segment{start: i, end: end + 1, source: source, program: program})
		i = end
	}
	return segments, nil
}

// ExprTemplate 整个模板是一个 ${xx} 表达式，使用expr计算并返回原始类型
type ExprTemplate struct {
	Tmpl    string
	program *vm.Program
}

func (t *ExprTemplate) Execute(env map[string]interface{}) (interface{}, error) {
	return expr.Run(t.program, env)
}

func (t *ExprTemplate) ExecuteAsString(env map[string]interface{}) string {
	v, err := t.Execute(env)
	if err != nil {
		return ""
	}
	return str.ToString(v)
}

func (t *ExprTemplate) HasVar() bool {
	return true
}

// MixedTemplate 支持混合字符串和变量的模板，格式如 Hi ${contact.firstName}
// 未定义的变量渲染为空字符串
type MixedTemplate struct {
	Tmpl     string
	segments []segment
}

func (t *MixedTemplate) Execute(env map[string]interface{}) (interface{}, error) {
	var sb strings.Builder
	lastPos := 0
	for _, s := range t.segments {
		sb.WriteString(t.Tmpl[lastPos:s.start])
		val, err := expr.Run(s.program, env)
		if err != nil {
			return nil, err
		}
		sb.WriteString(str.ToString(val))
		lastPos = s.end
	}
	sb.WriteString(t.Tmpl[lastPos:])
	return sb.String(), nil
}

func (t *MixedTemplate) ExecuteAsString(env map[string]interface{}) string {
	v, err := t.Execute(env)
	if err != nil {
		return ""
	}
	return str.ToString(v)
}

func (t *MixedTemplate) HasVar() bool {
	return true
}

// NotTemplate 原样输出
type NotTemplate struct {
	Tmpl string
}

func (t *NotTemplate) Execute(env map[string]interface{}) (interface{}, error) {
	return t.Tmpl, nil
}

func (t *NotTemplate) ExecuteAsString(env map[string]interface{}) string {
	return t.Tmpl
}

func (t *NotTemplate) HasVar() bool {
	return false
}

// Condition 布尔表达式，例如：contact.country == "PL" && vars.score > 10
type Condition struct {
	Source  string
	program *vm.Program
}

// NewCondition 编译布尔表达式，表达式可以省略 ${}
func NewCondition(source string) (*Condition, error) {
	source = strings.TrimSpace(source)
	if strings.HasPrefix(source, str.VarPrefix) && strings.HasSuffix(source, str.VarSuffix) {
		source = strings.TrimSpace(source[2 : len(source)-1])
	}
	program, err := expr.Compile(source, expr.AllowUndefinedVariables(), expr.AsBool())
	if err != nil {
		return nil, err
	}
	return &Condition{Source: source, program: program}, nil
}

// Evaluate 计算表达式
func (c *Condition) Evaluate(env map[string]interface{}) (bool, error) {
	out, err := expr.Run(c.program, env)
	if err != nil {
		return false, err
	}
	b, _ := out.(bool)
	return b, nil
}
