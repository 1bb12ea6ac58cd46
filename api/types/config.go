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

package types

import (
	"time"
)

// Pool 协程池
type Pool interface {
	//Submit 往协程池提交一个任务
	//如果协程池满返回错误
	Submit(task func()) error
	//Release 释放
	Release()
}

// Catalog 节点目录，引擎通过该接口解析节点类型定义
type Catalog interface {
	//Resolve 获取节点类型定义
	Resolve(nodeType NodeType, subtype string) (NodeTypeDefinition, bool)
	//IsComplete 节点配置是否完整
	IsComplete(nodeType NodeType, subtype string, settings Configuration) bool
}

// Config defines the configuration for the automation engine.
type Config struct {
	// Logger is the logging interface, defaulting to `DefaultLogger()`.
	Logger Logger
	// Catalog resolves node definitions. Required by the engine and the editor.
	Catalog Catalog
	// ComponentsRegistry creates node handlers by `type/subtype`.
	ComponentsRegistry ComponentRegistry
	// Store is the durable key-value store used for pending continuations, flows and activity logs.
	Store Store
	// Contacts is the external contact collaborator.
	Contacts ContactService
	// Messenger is the external email/sms capability.
	Messenger Messenger
	// Requester performs outbound requests for webhook actions.
	Requester Requester
	// Pool runs execution walks. If not configured, the go func method is used.
	Pool Pool
	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time
	// SweepInterval is how often the scheduler looks for due continuations.
	SweepInterval time.Duration
	// Debug logs every node dispatch through the debug aspect.
	Debug bool
	// ScriptMaxExecutionTime is the maximum execution time for scripts, defaulting to 2000 milliseconds.
	ScriptMaxExecutionTime time.Duration
	// Properties are global properties, available to templates and expressions as ${global.key}.
	Properties map[string]string
	// Aspects run around every node dispatch.
	Aspects []Aspect
}

// Now 当前时间
func (c Config) Now() time.Time {
	if c.Clock != nil {
		return c.Clock()
	}
	return time.Now()
}

// NewConfig creates a new Config with default values and applies the provided options.
func NewConfig(opts ...Option) Config {
	c := &Config{
		Logger:                 DefaultLogger(),
		Clock:                  time.Now,
		SweepInterval:          time.Second * 10,
		ScriptMaxExecutionTime: time.Millisecond * 2000,
		Properties:             make(map[string]string),
	}
	for _, opt := range opts {
		_ = opt(c)
	}
	return *c
}
