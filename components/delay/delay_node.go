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

// Package delay provides the delay node components of an automation flow.
//
// A delay node never blocks. It returns a suspension with a due time and the
// engine persists a continuation that the scheduler resumes later, so a wait
// of several days survives process restarts.
package delay

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mailist-com/automation/api/types"
	"github.com/mailist-com/automation/components/base"
	"github.com/mailist-com/automation/utils/maps"
	"github.com/robfig/cron/v3"
)

// Registry 组件注册器
var Registry = &types.SafeComponentSlice{}

var (
	ErrInvalidDuration = errors.New("amount must be positive with a known unit")
	ErrEventRequired   = errors.New("eventName is required")
)

func init() {
	Registry.Add(&WaitNode{})
	Registry.Add(&WaitUntilNode{})
	Registry.Add(&WaitUntilWeekdayNode{})
	Registry.Add(&WaitForEventNode{})
}

func toDuration(amount float64, unit string) (time.Duration, error) {
	d, ok := types.UnitDuration(unit)
	if !ok || amount <= 0 {
		return 0, ErrInvalidDuration
	}
	return time.Duration(amount * float64(d)), nil
}

// WaitNodeConfiguration 节点配置
type WaitNodeConfiguration struct {
	// Amount 等待数量
	Amount float64
	// Unit 单位：seconds、minutes、hours、days、weeks
	Unit string
}

// WaitNode 等待固定时长
type WaitNode struct {
	Config   WaitNodeConfiguration
	duration time.Duration
}

func (x *WaitNode) Type() string {
	return types.ComponentType(types.Delay, "wait")
}

func (x *WaitNode) New() types.Node {
	return &WaitNode{Config: WaitNodeConfiguration{Amount: 1, Unit: "days"}}
}

func (x *WaitNode) Init(config types.Config, configuration types.Configuration) error {
	err := maps.Map2Struct(configuration, &x.Config)
	if err != nil {
		return err
	}
	x.duration, err = toDuration(x.Config.Amount, x.Config.Unit)
	return err
}

func (x *WaitNode) OnExecute(ctx types.NodeContext, exec *types.ExecutionContext) types.Result {
	until := ctx.Now().Add(x.duration)
	return types.Suspend(types.Suspension{Until: until, DueOutput: types.Output}, map[string]interface{}{
		"until": until,
	})
}

func (x *WaitNode) Destroy() {
}

// WaitUntilNodeConfiguration 节点配置
type WaitUntilNodeConfiguration struct {
	// Datetime RFC3339格式的时间，例如：2026-12-24T09:00:00+01:00
	Datetime string
}

// WaitUntilNode 等待到指定时间，时间已过则直接通过
type WaitUntilNode struct {
	Config WaitUntilNodeConfiguration
	until  time.Time
}

func (x *WaitUntilNode) Type() string {
	return types.ComponentType(types.Delay, "wait_until")
}

func (x *WaitUntilNode) New() types.Node {
	return &WaitUntilNode{}
}

func (x *WaitUntilNode) Init(config types.Config, configuration types.Configuration) error {
	err := maps.Map2Struct(configuration, &x.Config)
	if err != nil {
		return err
	}
	x.until, err = time.Parse(time.RFC3339, strings.TrimSpace(x.Config.Datetime))
	return err
}

func (x *WaitUntilNode) OnExecute(ctx types.NodeContext, exec *types.ExecutionContext) types.Result {
	if !x.until.After(ctx.Now()) {
		return types.Route(types.Output, map[string]interface{}{"until": x.until, "elapsed": true})
	}
	return types.Suspend(types.Suspension{Until: x.until, DueOutput: types.Output}, map[string]interface{}{
		"until": x.until,
	})
}

func (x *WaitUntilNode) Destroy() {
}

// WaitUntilWeekdayNodeConfiguration 节点配置
type WaitUntilWeekdayNodeConfiguration struct {
	// Days 星期列表，例如：["mon","wed"]
	Days []string
	// Time 时间，格式：15:04
	Time string
	// Timezone 时区，默认UTC
	Timezone string
}

// WaitUntilWeekdayNode 等待到下一个符合条件的星期和时间
// 下一次时间使用cron表达式计算，例如：CRON_TZ=Europe/Warsaw 0 9 * * 1,3
type WaitUntilWeekdayNode struct {
	Config   WaitUntilWeekdayNodeConfiguration
	schedule cron.Schedule
}

func (x *WaitUntilWeekdayNode) Type() string {
	return types.ComponentType(types.Delay, "wait_until_weekday")
}

func (x *WaitUntilWeekdayNode) New() types.Node {
	return &WaitUntilWeekdayNode{Config: WaitUntilWeekdayNodeConfiguration{Time: "09:00"}}
}

func (x *WaitUntilWeekdayNode) Init(config types.Config, configuration types.Configuration) error {
	err := maps.Map2Struct(configuration, &x.Config)
	if err != nil {
		return err
	}
	spec, err := x.cronSpec()
	if err != nil {
		return err
	}
	x.schedule, err = cron.ParseStandard(spec)
	return err
}

func (x *WaitUntilWeekdayNode) cronSpec() (string, error) {
	days, err := base.ParseWeekdays(x.Config.Days)
	if err != nil {
		return "", err
	}
	if len(days) == 0 {
		return "", errors.New("days is required")
	}
	minutes, err := base.ParseClock(x.Config.Time)
	if err != nil {
		return "", err
	}
	loc, err := base.LoadLocation(x.Config.Timezone)
	if err != nil {
		return "", err
	}
	dow := make([]string, len(days))
	for i, d := range days {
		dow[i] = fmt.Sprintf("%d", int(d))
	}
	return fmt.Sprintf("CRON_TZ=%s %d %d * * %s", loc.String(), minutes%60, minutes/60, strings.Join(dow, ",")), nil
}

func (x *WaitUntilWeekdayNode) OnExecute(ctx types.NodeContext, exec *types.ExecutionContext) types.Result {
	until := x.schedule.Next(ctx.Now())
	return types.Suspend(types.Suspension{Until: until, DueOutput: types.Output}, map[string]interface{}{
		"until": until,
	})
}

func (x *WaitUntilWeekdayNode) Destroy() {
}

// WaitForEventNodeConfiguration 节点配置
type WaitForEventNodeConfiguration struct {
	// EventName 等待的外部事件名称
	EventName string
	// TimeoutAmount 超时数量
	TimeoutAmount float64
	// TimeoutUnit 超时单位
	TimeoutUnit string
}

// WaitForEventNode 等待联系人的外部事件，收到事件走output，超时走timeout
type WaitForEventNode struct {
	Config  WaitForEventNodeConfiguration
	timeout time.Duration
}

func (x *WaitForEventNode) Type() string {
	return types.ComponentType(types.Delay, "wait_for_event")
}

func (x *WaitForEventNode) New() types.Node {
	return &WaitForEventNode{Config: WaitForEventNodeConfiguration{TimeoutAmount: 1, TimeoutUnit: "days"}}
}

func (x *WaitForEventNode) Init(config types.Config, configuration types.Configuration) error {
	err := maps.Map2Struct(configuration, &x.Config)
	if err != nil {
		return err
	}
	x.Config.EventName = strings.TrimSpace(x.Config.EventName)
	if x.Config.EventName == "" {
		return ErrEventRequired
	}
	x.timeout, err = toDuration(x.Config.TimeoutAmount, x.Config.TimeoutUnit)
	return err
}

func (x *WaitForEventNode) OnExecute(ctx types.NodeContext, exec *types.ExecutionContext) types.Result {
	until := ctx.Now().Add(x.timeout)
	return types.Suspend(types.Suspension{
		Until:       until,
		WaitEvent:   x.Config.EventName,
		DueOutput:   types.OutputTimeout,
		EventOutput: types.Output,
	}, map[string]interface{}{
		"until":     until,
		"eventName": x.Config.EventName,
	})
}

func (x *WaitForEventNode) Destroy() {
}
