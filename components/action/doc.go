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

// Package action provides the action node components of an automation flow.
//
// Action nodes change the contact or talk to the outside world:
//
// - action/send_email, action/send_sms: send a message through the configured Messenger
// - action/add_tag, action/remove_tag: change contact tags
// - action/add_to_list, action/remove_from_list: change list membership
// - action/update_field: set a contact field, the value may be a ${} template
// - action/log: write a line to the engine logger
// - action/webhook: call an outbound HTTP endpoint through the configured Requester
//
// Every action mutates the path's working copy of the contact after the
// collaborator call succeeds, so later nodes on the same path see the change.
//
// Example node in a flow file:
//
//	{
//	  "id": "n2",
//	  "type": "action",
//	  "position": {"x": 300, "y": 100},
//	  "input": "n2-in",
//	  "outputs": [{"id": "n2-out", "name": "output"}],
//	  "data": {"subtype": "add_to_list", "settings": {"listId": "L1"}}
//	}
package action

import (
	"github.com/mailist-com/automation/api/types"
)

// Registry 组件注册器
var Registry = &types.SafeComponentSlice{}
