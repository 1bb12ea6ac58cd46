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

// The interface provides AOP (Aspect Oriented Programming) mechanism around node dispatch.
// It allows separating common behaviors (logging, tracking, metrics) from node logic.
//
// 该接口提供节点执行的 AOP 机制，把日志、跟踪、统计等公共行为从节点逻辑中分离出来。

// Aspect is the base interface for advice
// Aspect 增强点接口的基类
type Aspect interface {
	//Order returns the execution order, the smaller the value, the higher the priority
	//Order 返回执行顺序，值越小，优先级越高
	Order() int
}

// BeforeAspect is the interface for node pre-execution advice
// BeforeAspect 节点 OnExecute 方法执行之前的增强点接口
type BeforeAspect interface {
	Aspect
	Before(ctx NodeContext, exec *ExecutionContext)
}

// AfterAspect is the interface for node post-execution advice
// AfterAspect 节点 OnExecute 方法执行之后的增强点接口，返回的结果将作为下一个增强点的入参
type AfterAspect interface {
	Aspect
	After(ctx NodeContext, exec *ExecutionContext, result Result) Result
}
