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
	"testing"
	"time"

	"github.com/mailist-com/automation/api/types"
	"github.com/mailist-com/automation/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newExecution() *types.ExecutionContext {
	return test.NewExecution(types.Contact{
		Id:    "c1",
		Email: "ann@example.com",
		Tags:  []string{"vip", "buyer"},
		Lists: []string{"L1"},
		Fields: map[string]interface{}{
			"status":  "active",
			"country": "DE",
			"score":   42,
			"age":     "30",
		},
	}, map[string]interface{}{"orders": 3})
}

func TestEvaluate(t *testing.T) {
	exec := newExecution()
	tests := []struct {
		clause types.ConditionClause
		want   bool
	}{
		{types.ConditionClause{Field: "status", Operator: types.OpEquals, Value: "active"}, true},
		{types.ConditionClause{Field: "status", Operator: types.OpEquals, Value: "inactive"}, false},
		{types.ConditionClause{Field: "status", Operator: types.OpNotEquals, Value: "inactive"}, true},
		{types.ConditionClause{Field: "score", Operator: types.OpEquals, Value: "42"}, true},
		{types.ConditionClause{Field: "score", Operator: types.OpGreater, Value: 40}, true},
		{types.ConditionClause{Field: "score", Operator: types.OpLess, Value: "40"}, false},
		{types.ConditionClause{Field: "age", Operator: types.OpGreater, Value: 18}, true},
		{types.ConditionClause{Field: "status", Operator: types.OpGreater, Value: 1}, false},
		{types.ConditionClause{Field: "email", Operator: types.OpContains, Value: "@example"}, true},
		{types.ConditionClause{Field: "email", Operator: types.OpEndsWith, Value: ".com"}, true},
		{types.ConditionClause{Field: "email", Operator: types.OpStartsWith, Value: "bob"}, false},
		{types.ConditionClause{Field: "tags", Operator: types.OpContains, Value: "vip"}, true},
		{types.ConditionClause{Field: "tags", Operator: types.OpNotContains, Value: "vi"}, true},
		{types.ConditionClause{Field: "status", Operator: types.OpExists, Value: "ignored"}, true},
		{types.ConditionClause{Field: "phone", Operator: types.OpExists}, false},
		{types.ConditionClause{Field: "phone", Operator: types.OpNotExists, Value: "ignored"}, true},
		{types.ConditionClause{Field: "vars.orders", Operator: types.OpGreater, Value: 2}, true},
		{types.ConditionClause{Field: "unknown", Operator: types.OpNotEquals, Value: "x"}, false},
		{types.ConditionClause{Field: "status", Operator: "like", Value: "active"}, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Evaluate(exec, tt.clause), "%+v", tt.clause)
	}
}

func TestFieldConditionNode(t *testing.T) {
	config := types.NewConfig()
	test.NodeNew(t, "condition/field_condition", &FieldConditionNode{}, Registry)

	node, err := test.CreateAndInitNode("condition/field_condition", types.Configuration{
		"field": "status", "operator": "equals", "value": "active",
	}, Registry, config)
	require.Nil(t, err)
	result := test.Execute(node, config, nil, newExecution())
	assert.Equal(t, []string{types.OutputIf}, result.Outputs)

	exec := newExecution()
	exec.Contact.Fields["status"] = "blocked"
	result = test.Execute(node, config, nil, exec)
	assert.Equal(t, []string{types.OutputElse}, result.Outputs)
	assert.Equal(t, false, result.Data["met"])

	node, _ = test.CreateAndInitNode("condition/field_condition", types.Configuration{
		"field": "status", "operator": "exists", "value": "anything",
	}, Registry, config)
	result = test.Execute(node, config, nil, exec)
	assert.Equal(t, []string{types.OutputIf}, result.Outputs)
}

func TestIfElseNode(t *testing.T) {
	config := types.NewConfig()
	test.NodeNew(t, "condition/if_else", &IfElseNode{}, Registry)
	conditions := []interface{}{
		map[string]interface{}{"field": "country", "operator": "equals", "value": "PL"},
		map[string]interface{}{"field": "tags", "operator": "contains", "value": "vip"},
	}

	node, err := test.CreateAndInitNode("condition/if_else", types.Configuration{"conditions": conditions}, Registry, config)
	require.Nil(t, err)
	assert.Equal(t, []string{types.OutputElse}, test.Execute(node, config, nil, newExecution()).Outputs)

	node, _ = test.CreateAndInitNode("condition/if_else", types.Configuration{"logic": "OR", "conditions": conditions}, Registry, config)
	assert.Equal(t, []string{types.OutputIf}, test.Execute(node, config, nil, newExecution()).Outputs)

	node, _ = test.CreateAndInitNode("condition/if_else", types.Configuration{"logic": "or"}, Registry, config)
	assert.Equal(t, []string{types.OutputElse}, test.Execute(node, config, nil, newExecution()).Outputs)
}

func TestMembershipNodes(t *testing.T) {
	config := types.NewConfig()
	test.NodeNew(t, "condition/has_tag", &HasTagNode{}, Registry)
	test.NodeNew(t, "condition/in_list", &InListNode{}, Registry)

	node, _ := test.CreateAndInitNode("condition/has_tag", types.Configuration{"tag": "vip"}, Registry, config)
	assert.Equal(t, []string{types.OutputIf}, test.Execute(node, config, nil, newExecution()).Outputs)
	node, _ = test.CreateAndInitNode("condition/has_tag", types.Configuration{"tag": "new"}, Registry, config)
	assert.Equal(t, []string{types.OutputElse}, test.Execute(node, config, nil, newExecution()).Outputs)

	node, _ = test.CreateAndInitNode("condition/in_list", types.Configuration{"listId": "L1"}, Registry, config)
	assert.Equal(t, []string{types.OutputIf}, test.Execute(node, config, nil, newExecution()).Outputs)
	node, _ = test.CreateAndInitNode("condition/in_list", types.Configuration{"listId": "L2"}, Registry, config)
	assert.Equal(t, []string{types.OutputElse}, test.Execute(node, config, nil, newExecution()).Outputs)
}

func TestTimeWindowNode(t *testing.T) {
	test.NodeNew(t, "condition/time_window", &TimeWindowNode{}, Registry)
	//2026-10-14 is a Wednesday
	at := func(hour, minute int) types.Config {
		return types.NewConfig(types.WithClock(test.FixedClock(time.Date(2026, 10, 14, hour, minute, 0, 0, time.UTC))))
	}

	node, err := test.CreateAndInitNode("condition/time_window", types.Configuration{
		"startTime": "09:00", "endTime": "17:00", "days": []interface{}{"mon", "wed"}, "timezone": "UTC",
	}, Registry, at(0, 0))
	require.Nil(t, err)
	assert.Equal(t, []string{types.OutputIf}, test.Execute(node, at(9, 0), nil, newExecution()).Outputs)
	assert.Equal(t, []string{types.OutputElse}, test.Execute(node, at(17, 0), nil, newExecution()).Outputs)
	assert.Equal(t, []string{types.OutputElse}, test.Execute(node, at(8, 59), nil, newExecution()).Outputs)

	overnight, err := test.CreateAndInitNode("condition/time_window", types.Configuration{
		"startTime": "22:00", "endTime": "06:00", "days": []interface{}{"tue"},
	}, Registry, at(0, 0))
	require.Nil(t, err)
	//Wednesday 02:00 belongs to Tuesday's window
	assert.Equal(t, []string{types.OutputIf}, test.Execute(overnight, at(2, 0), nil, newExecution()).Outputs)
	assert.Equal(t, []string{types.OutputElse}, test.Execute(overnight, at(23, 0), nil, newExecution()).Outputs)

	_, err = test.CreateAndInitNode("condition/time_window", types.Configuration{"startTime": "9am"}, Registry, at(0, 0))
	assert.NotNil(t, err)
	_, err = test.CreateAndInitNode("condition/time_window", types.Configuration{"timezone": "Mars/Base"}, Registry, at(0, 0))
	assert.NotNil(t, err)
}

func TestExpressionNode(t *testing.T) {
	config := types.NewConfig()
	test.NodeNew(t, "condition/expression", &ExpressionNode{}, Registry)

	node, err := test.CreateAndInitNode("condition/expression", types.Configuration{
		"expr": `contact.country == "DE" && vars.orders > 2`,
	}, Registry, config)
	require.Nil(t, err)
	assert.Equal(t, []string{types.OutputIf}, test.Execute(node, config, nil, newExecution()).Outputs)

	node, _ = test.CreateAndInitNode("condition/expression", types.Configuration{"expr": `${contact.status == "blocked"}`}, Registry, config)
	assert.Equal(t, []string{types.OutputElse}, test.Execute(node, config, nil, newExecution()).Outputs)

	_, err = test.CreateAndInitNode("condition/expression", types.Configuration{"expr": "1 +"}, Registry, config)
	assert.NotNil(t, err)
}

func TestScriptNode(t *testing.T) {
	config := types.NewConfig()
	test.NodeNew(t, "condition/script", &ScriptNode{}, Registry)

	node, err := test.CreateAndInitNode("condition/script", types.Configuration{
		"script": "return contact.country === 'DE' && vars.orders > 2;",
	}, Registry, config)
	require.Nil(t, err)
	assert.Equal(t, []string{types.OutputIf}, test.Execute(node, config, nil, newExecution()).Outputs)

	node, _ = test.CreateAndInitNode("condition/script", types.Configuration{"script": "return 'yes';"}, Registry, config)
	result := test.Execute(node, config, nil, newExecution())
	assert.NotNil(t, result.Err)

	_, err = test.CreateAndInitNode("condition/script", types.Configuration{"script": "return (;"}, Registry, config)
	assert.NotNil(t, err)
}

func TestAbSplitNode(t *testing.T) {
	config := types.NewConfig()
	test.NodeNew(t, "condition/ab_split", &AbSplitNode{}, Registry)

	node, _ := test.CreateAndInitNode("condition/ab_split", types.Configuration{"percentA": 100}, Registry, config)
	for i := 0; i < 20; i++ {
		assert.Equal(t, []string{types.OutputA}, test.Execute(node, config, nil, newExecution()).Outputs)
	}
	node, _ = test.CreateAndInitNode("condition/ab_split", types.Configuration{"percentA": 0}, Registry, config)
	for i := 0; i < 20; i++ {
		assert.Equal(t, []string{types.OutputB}, test.Execute(node, config, nil, newExecution()).Outputs)
	}
}
