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

package condition

import (
	"fmt"

	"github.com/mailist-com/automation/api/types"
	"github.com/mailist-com/automation/components/base"
	"github.com/mailist-com/automation/utils/el"
	"github.com/mailist-com/automation/utils/js"
	"github.com/mailist-com/automation/utils/maps"
)

// JsConditionFuncName JS条件函数名
const JsConditionFuncName = "Condition"

// JsConditionFuncTemplate 脚本会被包装成该函数
// function Condition(contact, vars, executionId) { ${Script} }
const JsConditionFuncTemplate = "function Condition(contact, vars, executionId) { %s }"

func init() {
	Registry.Add(&ExpressionNode{})
	Registry.Add(&ScriptNode{})
}

// ExpressionNodeConfiguration 节点配置
type ExpressionNodeConfiguration struct {
	// Expr 布尔表达式，可以使用 contact、vars、global 变量
	// 例如：contact.country == "PL" && vars.orders > 2
	Expr string
}

// ExpressionNode 使用expr表达式判断
// 表达式运行出错时视为不满足
type ExpressionNode struct {
	Config    ExpressionNodeConfiguration
	condition *el.Condition
}

func (x *ExpressionNode) Type() string {
	return types.ComponentType(types.Condition, "expression")
}

func (x *ExpressionNode) New() types.Node {
	return &ExpressionNode{}
}

func (x *ExpressionNode) Init(config types.Config, configuration types.Configuration) error {
	err := maps.Map2Struct(configuration, &x.Config)
	if err != nil {
		return err
	}
	x.condition, err = el.NewCondition(x.Config.Expr)
	return err
}

func (x *ExpressionNode) OnExecute(ctx types.NodeContext, exec *types.ExecutionContext) types.Result {
	met, err := x.condition.Evaluate(base.NodeUtils.GetEnv(ctx, exec))
	if err != nil {
		if logger := ctx.Config().Logger; logger != nil {
			logger.Printf("expression %q error: %s", x.Config.Expr, err.Error())
		}
		return branch(false, map[string]interface{}{"error": err.Error()})
	}
	return branch(met, nil)
}

func (x *ExpressionNode) Destroy() {
}

// ScriptNodeConfiguration 节点配置
type ScriptNodeConfiguration struct {
	// Script JS脚本的函数体，必须返回bool
	// 例如：return contact.tags.indexOf('vip') >= 0 && vars.orders > 2;
	Script string
}

// ScriptNode 使用JavaScript判断
type ScriptNode struct {
	Config   ScriptNodeConfiguration
	jsEngine *js.GojaJsEngine
}

func (x *ScriptNode) Type() string {
	return types.ComponentType(types.Condition, "script")
}

func (x *ScriptNode) New() types.Node {
	return &ScriptNode{}
}

func (x *ScriptNode) Init(config types.Config, configuration types.Configuration) error {
	err := maps.Map2Struct(configuration, &x.Config)
	if err != nil {
		return err
	}
	x.jsEngine, err = js.NewGojaJsEngine(config, fmt.Sprintf(JsConditionFuncTemplate, x.Config.Script))
	return err
}

func (x *ScriptNode) OnExecute(ctx types.NodeContext, exec *types.ExecutionContext) types.Result {
	out, err := x.jsEngine.Execute(JsConditionFuncName, exec.Contact.ToMap(), exec.Variables, exec.ExecutionId)
	if err != nil {
		return types.Failure(err)
	}
	met, ok := out.(bool)
	if !ok {
		return types.Failure(fmt.Errorf("script must return a bool, got %T", out))
	}
	return branch(met, nil)
}

func (x *ScriptNode) Destroy() {
	if x.jsEngine != nil {
		x.jsEngine.Stop()
	}
}
