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

package catalog

import (
	"strings"
	"time"

	"github.com/mailist-com/automation/api/types"
	"github.com/mailist-com/automation/utils/maps"
)

const (
	CategoryTriggers   = "triggers"
	CategoryActions    = "actions"
	CategoryConditions = "conditions"
	CategoryDelays     = "delays"
	CategoryGoals      = "goals"
)

var (
	inputs       = []string{types.Input}
	singleOutput = []string{types.Output}
	branch       = []string{types.OutputIf, types.OutputElse}
)

func trigger(subtype, name, icon string, defaults types.Configuration, required ...string) types.NodeTypeDefinition {
	return types.NodeTypeDefinition{
		Type: types.Trigger, Subtype: subtype, Name: name, Icon: icon, Category: CategoryTriggers,
		DefaultSettings: defaults, Outputs: singleOutput, Required: required,
	}
}

func action(subtype, name, icon string, defaults types.Configuration, required ...string) types.NodeTypeDefinition {
	return types.NodeTypeDefinition{
		Type: types.Action, Subtype: subtype, Name: name, Icon: icon, Category: CategoryActions,
		DefaultSettings: defaults, Inputs: inputs, Outputs: singleOutput, Required: required,
	}
}

func condition(subtype, name, icon string, defaults types.Configuration, isComplete types.CompletenessFunc) types.NodeTypeDefinition {
	return types.NodeTypeDefinition{
		Type: types.Condition, Subtype: subtype, Name: name, Icon: icon, Category: CategoryConditions,
		DefaultSettings: defaults, Inputs: inputs, Outputs: branch, IsComplete: isComplete,
	}
}

func delay(subtype, name string, defaults types.Configuration, isComplete types.CompletenessFunc) types.NodeTypeDefinition {
	return types.NodeTypeDefinition{
		Type: types.Delay, Subtype: subtype, Name: name, Icon: "clock", Category: CategoryDelays,
		DefaultSettings: defaults, Inputs: inputs, Outputs: singleOutput, IsComplete: isComplete,
	}
}

// builtinDefinitions 内置节点类型
func builtinDefinitions() []types.NodeTypeDefinition {
	webhook := action("webhook", "Webhook", "globe",
		types.Configuration{"method": "POST", "headers": map[string]interface{}{}, "body": "", "routeErrors": false}, "url")
	webhook.Description = "Send an HTTP request; failures can be routed to the error output"
	webhook.Outputs = []string{types.Output, types.OutputError}

	sendEmail := action("send_email", "Send email", "mail",
		types.Configuration{"subject": "", "content": "", "templateId": ""}, "subject")
	sendEmail.IsComplete = func(s types.Configuration) bool {
		return hasText(s, "subject") && (hasText(s, "content") || hasText(s, "templateId"))
	}

	updateField := action("update_field", "Update field", "edit", types.Configuration{"field": "", "value": ""}, "field")

	abSplit := condition("ab_split", "A/B split", "split", types.Configuration{"percentA": 50}, func(s types.Configuration) bool {
		p, ok := settingNumber(s, "percentA")
		return ok && p >= 0 && p <= 100
	})
	abSplit.Outputs = []string{types.OutputA, types.OutputB}

	waitForEvent := delay("wait_for_event", "Wait for event",
		types.Configuration{"eventName": "", "timeoutAmount": 1, "timeoutUnit": "days"}, func(s types.Configuration) bool {
			return hasText(s, "eventName") && positiveDuration(s, "timeoutAmount", "timeoutUnit")
		})
	waitForEvent.Outputs = []string{types.Output, types.OutputTimeout}

	return []types.NodeTypeDefinition{
		trigger("tag_added", "Tag added", "tag", types.Configuration{"tagName": ""}, "tagName"),
		trigger("tag_removed", "Tag removed", "tag", types.Configuration{"tagName": ""}, "tagName"),
		trigger("list_joined", "Joined list", "list", types.Configuration{"listId": ""}, "listId"),
		trigger("list_left", "Left list", "list", types.Configuration{"listId": ""}, "listId"),
		trigger("field_changed", "Field changed", "edit", types.Configuration{"field": ""}, "field"),
		trigger("form_submitted", "Form submitted", "form", types.Configuration{"formId": ""}, "formId"),
		trigger("contact_created", "Contact created", "user-plus", types.Configuration{}),
		trigger("custom_event", "Custom event", "zap", types.Configuration{"eventName": ""}, "eventName"),

		sendEmail,
		action("send_sms", "Send SMS", "message", types.Configuration{"content": ""}, "content"),
		action("add_tag", "Add tag", "tag", types.Configuration{"tag": ""}, "tag"),
		action("remove_tag", "Remove tag", "tag", types.Configuration{"tag": ""}, "tag"),
		action("add_to_list", "Add to list", "list", types.Configuration{"listId": ""}, "listId"),
		action("remove_from_list", "Remove from list", "list", types.Configuration{"listId": ""}, "listId"),
		updateField,
		action("log", "Log", "file-text", types.Configuration{"message": "", "level": "info"}, "message"),
		webhook,

		condition("if_else", "If / else", "git-branch", types.Configuration{"logic": "and", "conditions": []interface{}{}}, ifElseComplete),
		condition("field_condition", "Field condition", "filter",
			types.Configuration{"field": "", "operator": string(types.OpEquals), "value": ""}, fieldConditionComplete),
		condition("has_tag", "Has tag", "tag", types.Configuration{"tag": ""}, required("tag")),
		condition("in_list", "In list", "list", types.Configuration{"listId": ""}, required("listId")),
		condition("time_window", "Time window", "clock",
			types.Configuration{"startTime": "09:00", "endTime": "17:00", "days": []interface{}{}, "timezone": "UTC"}, timeWindowComplete),
		condition("expression", "Expression", "code", types.Configuration{"expr": ""}, required("expr")),
		condition("script", "Script", "code", types.Configuration{"script": ""}, required("script")),
		abSplit,

		delay("wait", "Wait", types.Configuration{"amount": 1, "unit": "days"}, func(s types.Configuration) bool {
			return positiveDuration(s, "amount", "unit")
		}),
		delay("wait_until", "Wait until", types.Configuration{"datetime": ""}, func(s types.Configuration) bool {
			_, err := time.Parse(time.RFC3339, settingString(s, "datetime"))
			return err == nil
		}),
		delay("wait_until_weekday", "Wait until weekday",
			types.Configuration{"days": []interface{}{}, "time": "09:00", "timezone": "UTC"}, func(s types.Configuration) bool {
				return len(stringList(s, "days")) > 0 && validClock(settingString(s, "time"))
			}),
		waitForEvent,

		{Type: types.Goal, Subtype: "goal", Name: "Goal", Icon: "flag", Category: CategoryGoals,
			DefaultSettings: types.Configuration{"goalName": ""}, Inputs: inputs, Required: []string{"goalName"}},
		{Type: types.End, Subtype: "end", Name: "End", Icon: "stop", Category: CategoryGoals,
			DefaultSettings: types.Configuration{}, Inputs: inputs},
	}
}

func required(keys ...string) types.CompletenessFunc {
	return func(s types.Configuration) bool {
		for _, key := range keys {
			if !hasText(s, key) {
				return false
			}
		}
		return true
	}
}

func ifElseComplete(s types.Configuration) bool {
	logic := strings.ToLower(settingString(s, "logic"))
	if logic != "" && logic != "and" && logic != "or" {
		return false
	}
	var clauses []types.ConditionClause
	if s == nil || maps.Map2Struct(s["conditions"], &clauses) != nil || len(clauses) == 0 {
		return false
	}
	for _, c := range clauses {
		if !c.IsComplete() {
			return false
		}
	}
	return true
}

func fieldConditionComplete(s types.Configuration) bool {
	var clause types.ConditionClause
	if maps.Map2Struct(map[string]interface{}(s), &clause) != nil {
		return false
	}
	return clause.IsComplete()
}

func timeWindowComplete(s types.Configuration) bool {
	if !validClock(settingString(s, "startTime")) || !validClock(settingString(s, "endTime")) {
		return false
	}
	if tz := settingString(s, "timezone"); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return false
		}
	}
	return true
}

func positiveDuration(s types.Configuration, amountKey, unitKey string) bool {
	amount, ok := settingNumber(s, amountKey)
	if !ok || amount <= 0 {
		return false
	}
	_, ok = types.UnitDuration(settingString(s, unitKey))
	return ok
}

func validClock(v string) bool {
	_, err := time.Parse("15:04", v)
	return err == nil
}

func stringList(s types.Configuration, key string) []string {
	var list []string
	if s == nil || s[key] == nil || maps.Map2Struct(s[key], &list) != nil {
		return nil
	}
	return list
}
