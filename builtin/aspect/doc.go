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

// Package aspect 提供内置的节点执行切面
//
//   - Debug: 节点执行前后记录调试日志
//   - Metrics: 按节点类型统计执行次数、失败次数、挂起次数
//
// 切面根据 Order() 升序执行：
//  1. Metrics (order: 20)
//  2. Debug (order: 900)
//
// 使用：
//
//	config := types.NewConfig(types.WithAspects(&aspect.Debug{}, aspect.NewMetrics()))
//	e := engine.New(config)
package aspect
