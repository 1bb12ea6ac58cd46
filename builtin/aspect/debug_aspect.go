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

package aspect

import (
	"strings"

	"github.com/mailist-com/automation/api/types"
)

var (
	_ types.BeforeAspect = (*Debug)(nil)
	_ types.AfterAspect  = (*Debug)(nil)
)

// Debug 节点debug日志切面
type Debug struct {
}

func (aspect *Debug) Order() int {
	return 900
}

func (aspect *Debug) Before(ctx types.NodeContext, exec *types.ExecutionContext) {
	self := ctx.Self()
	aspect.logger(ctx).Printf("[debug] in execution=%s path=%s node=%s type=%s",
		exec.ExecutionId, exec.PathId, self.Id, self.ComponentType())
}

func (aspect *Debug) After(ctx types.NodeContext, exec *types.ExecutionContext, result types.Result) types.Result {
	self := ctx.Self()
	logger := aspect.logger(ctx)
	switch {
	case result.Err != nil:
		logger.Printf("[debug] out execution=%s path=%s node=%s err=%s",
			exec.ExecutionId, exec.PathId, self.Id, result.Err.Error())
	case result.Suspend != nil:
		logger.Printf("[debug] out execution=%s path=%s node=%s suspend until=%s event=%s",
			exec.ExecutionId, exec.PathId, self.Id, result.Suspend.Until.Format("2006-01-02T15:04:05Z07:00"), result.Suspend.WaitEvent)
	default:
		logger.Printf("[debug] out execution=%s path=%s node=%s outputs=%s",
			exec.ExecutionId, exec.PathId, self.Id, strings.Join(result.Outputs, ","))
	}
	return result
}

func (aspect *Debug) logger(ctx types.NodeContext) types.Logger {
	return types.NewLogger(ctx.Config().Logger)
}
