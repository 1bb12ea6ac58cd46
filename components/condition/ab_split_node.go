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
	"math/rand"
	"sync"
	"time"

	"github.com/mailist-com/automation/api/types"
	"github.com/mailist-com/automation/utils/maps"
)

func init() {
	Registry.Add(&AbSplitNode{})
}

// AbSplitNodeConfiguration 节点配置
type AbSplitNodeConfiguration struct {
	// PercentA 走A分支的百分比，0-100
	PercentA float64
}

// AbSplitNode 按比例随机分流到 output-a 或者 output-b
type AbSplitNode struct {
	Config AbSplitNodeConfiguration
	rnd    *rand.Rand
	lock   sync.Mutex
}

func (x *AbSplitNode) Type() string {
	return types.ComponentType(types.Condition, "ab_split")
}

func (x *AbSplitNode) New() types.Node {
	return &AbSplitNode{Config: AbSplitNodeConfiguration{PercentA: 50}}
}

func (x *AbSplitNode) Init(config types.Config, configuration types.Configuration) error {
	x.rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	return maps.Map2Struct(configuration, &x.Config)
}

func (x *AbSplitNode) OnExecute(ctx types.NodeContext, exec *types.ExecutionContext) types.Result {
	x.lock.Lock()
	roll := x.rnd.Float64() * 100
	x.lock.Unlock()
	if roll < x.Config.PercentA {
		return types.Route(types.OutputA, map[string]interface{}{"variant": "a"})
	}
	return types.Route(types.OutputB, map[string]interface{}{"variant": "b"})
}

func (x *AbSplitNode) Destroy() {
}
