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
	"time"

	"github.com/mailist-com/automation/api/types"
	"github.com/mailist-com/automation/components/base"
	"github.com/mailist-com/automation/utils/maps"
)

func init() {
	Registry.Add(&TimeWindowNode{})
}

// TimeWindowNodeConfiguration 节点配置
type TimeWindowNodeConfiguration struct {
	// StartTime 开始时间，格式：15:04
	StartTime string
	// EndTime 结束时间（不包含），小于开始时间表示跨越午夜
	EndTime string
	// Days 允许的星期，为空表示每天
	Days []string
	// Timezone 时区，例如：Europe/Warsaw，默认UTC
	Timezone string
}

// TimeWindowNode 判断当前时间是否在时间窗口内
type TimeWindowNode struct {
	Config   TimeWindowNodeConfiguration
	start    int
	end      int
	days     []time.Weekday
	location *time.Location
}

func (x *TimeWindowNode) Type() string {
	return types.ComponentType(types.Condition, "time_window")
}

func (x *TimeWindowNode) New() types.Node {
	return &TimeWindowNode{Config: TimeWindowNodeConfiguration{StartTime: "09:00", EndTime: "17:00"}}
}

func (x *TimeWindowNode) Init(config types.Config, configuration types.Configuration) error {
	err := maps.Map2Struct(configuration, &x.Config)
	if err != nil {
		return err
	}
	if x.start, err = base.ParseClock(x.Config.StartTime); err != nil {
		return err
	}
	if x.end, err = base.ParseClock(x.Config.EndTime); err != nil {
		return err
	}
	if x.days, err = base.ParseWeekdays(x.Config.Days); err != nil {
		return err
	}
	x.location, err = base.LoadLocation(x.Config.Timezone)
	return err
}

func (x *TimeWindowNode) OnExecute(ctx types.NodeContext, exec *types.ExecutionContext) types.Result {
	return branch(x.inWindow(ctx.Now()), nil)
}

func (x *TimeWindowNode) inWindow(now time.Time) bool {
	now = now.In(x.location)
	minute := now.Hour()*60 + now.Minute()
	day := now.Weekday()
	var inTime bool
	if x.start <= x.end {
		inTime = minute >= x.start && minute < x.end
	} else {
		//跨午夜，午夜之后的部分属于前一天的窗口
		inTime = minute >= x.start || minute < x.end
		if minute < x.end {
			day = (day + 6) % 7
		}
	}
	if !inTime {
		return false
	}
	if len(x.days) == 0 {
		return true
	}
	for _, d := range x.days {
		if d == day {
			return true
		}
	}
	return false
}

func (x *TimeWindowNode) Destroy() {
}
