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

// Package base provides foundational helpers shared by the node components.
package base

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mailist-com/automation/api/types"
	"github.com/mailist-com/automation/utils/el"
)

var (
	ErrContactsNotConfigured  = errors.New("contact service is not configured")
	ErrMessengerNotConfigured = errors.New("messenger is not configured")
	ErrRequesterNotConfigured = errors.New("requester is not configured")
)

// VarsPrefix 字段名以该前缀开头时读取执行变量，例如：vars.coupon
const VarsPrefix = types.VarsKey + "."

var NodeUtils = &nodeUtils{}

type nodeUtils struct {
}

// GetEnv 模板和表达式的执行环境：contact、vars、global
func (n *nodeUtils) GetEnv(ctx types.NodeContext, exec *types.ExecutionContext) map[string]interface{} {
	return exec.Env(ctx.Config().Properties)
}

// Contacts 获取联系人协作者
func (n *nodeUtils) Contacts(ctx types.NodeContext) (types.ContactService, error) {
	if c := ctx.Config().Contacts; c != nil {
		return c, nil
	}
	return nil, ErrContactsNotConfigured
}

// Messenger 获取消息协作者
func (n *nodeUtils) Messenger(ctx types.NodeContext) (types.Messenger, error) {
	if m := ctx.Config().Messenger; m != nil {
		return m, nil
	}
	return nil, ErrMessengerNotConfigured
}

// Requester 获取外部请求协作者
func (n *nodeUtils) Requester(ctx types.NodeContext) (types.Requester, error) {
	if r := ctx.Config().Requester; r != nil {
		return r, nil
	}
	return nil, ErrRequesterNotConfigured
}

// FieldValue 读取联系人字段或者执行变量，第二个返回值表示字段是否存在
func (n *nodeUtils) FieldValue(exec *types.ExecutionContext, field string) (interface{}, bool) {
	if len(field) > len(VarsPrefix) && field[:len(VarsPrefix)] == VarsPrefix {
		v, ok := exec.Variables[field[len(VarsPrefix):]]
		return v, ok && v != nil
	}
	return exec.Contact.Field(field)
}

// NewTemplate 编译配置中的模板字段
func (n *nodeUtils) NewTemplate(tmpl string) (el.Template, error) {
	return el.NewTemplate(tmpl)
}

// NodeCtx 节点执行上下文的默认实现
type NodeCtx struct {
	ctx    context.Context
	config types.Config
	self   *types.GraphNode
}

var _ types.NodeContext = (*NodeCtx)(nil)

// NewNodeCtx 创建节点执行上下文
func NewNodeCtx(ctx context.Context, config types.Config, self *types.GraphNode) *NodeCtx {
	if ctx == nil {
		ctx = context.Background()
	}
	return &NodeCtx{ctx: ctx, config: config, self: self}
}

func (c *NodeCtx) GetContext() context.Context {
	return c.ctx
}

func (c *NodeCtx) Config() types.Config {
	return c.config
}

func (c *NodeCtx) Self() *types.GraphNode {
	return c.self
}

func (c *NodeCtx) Now() time.Time {
	return c.config.Now()
}

var weekdays = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

// ParseWeekdays 解析星期列表，支持 mon、monday 以及 0-6（0表示星期日）
func ParseWeekdays(days []string) ([]time.Weekday, error) {
	var result []time.Weekday
	for _, day := range days {
		day = strings.ToLower(strings.TrimSpace(day))
		if d, ok := weekdays[day]; ok {
			result = append(result, d)
			continue
		}
		if n, err := strconv.Atoi(day); err == nil && n >= 0 && n <= 6 {
			result = append(result, time.Weekday(n))
			continue
		}
		return nil, fmt.Errorf("invalid weekday: %q", day)
	}
	return result, nil
}

// LoadLocation 加载时区，为空使用UTC
func LoadLocation(timezone string) (*time.Location, error) {
	if strings.TrimSpace(timezone) == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(timezone)
}

// ParseClock 解析 15:04 格式的时间，返回当天的分钟数
func ParseClock(v string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(v))
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}
