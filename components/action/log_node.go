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

package action

import (
	"strings"

	"github.com/mailist-com/automation/api/types"
	"github.com/mailist-com/automation/components/base"
	"github.com/mailist-com/automation/utils/el"
	"github.com/mailist-com/automation/utils/maps"
)

func init() {
	Registry.Add(&LogNode{})
}

// LogNodeConfiguration 节点配置
type LogNodeConfiguration struct {
	// Message 日志内容，支持${}模板
	Message string
	// Level 日志级别：debug、info、warn、error，默认info
	Level string
}

// LogNode 把一行日志写到 Config.Logger
type LogNode struct {
	Config          LogNodeConfiguration
	messageTemplate el.Template
}

func (x *LogNode) Type() string {
	return types.ComponentType(types.Action, "log")
}

func (x *LogNode) New() types.Node {
	return &LogNode{Config: LogNodeConfiguration{Level: "info"}}
}

func (x *LogNode) Init(config types.Config, configuration types.Configuration) error {
	err := maps.Map2Struct(configuration, &x.Config)
	if err != nil {
		return err
	}
	x.Config.Level = strings.ToLower(strings.TrimSpace(x.Config.Level))
	if x.Config.Level == "" {
		x.Config.Level = "info"
	}
	x.messageTemplate, err = base.NodeUtils.NewTemplate(x.Config.Message)
	return err
}

func (x *LogNode) OnExecute(ctx types.NodeContext, exec *types.ExecutionContext) types.Result {
	message := x.messageTemplate.ExecuteAsString(base.NodeUtils.GetEnv(ctx, exec))
	if logger := ctx.Config().Logger; logger != nil {
		logger.Printf("[%s] execution=%s contact=%s: %s", x.Config.Level, exec.ExecutionId, exec.ContactId, message)
	}
	return types.Success(map[string]interface{}{
		"logged": message,
		"level":  x.Config.Level,
	})
}

func (x *LogNode) Destroy() {
}
