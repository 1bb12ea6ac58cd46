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

package automation

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/mailist-com/automation/api/types"
	"github.com/mailist-com/automation/dsl"
	"github.com/mailist-com/automation/editor"
	"github.com/mailist-com/automation/utils/fs"
)

// 存储key
const (
	FlowDefKeyPrefix    = "flowdefs/"
	ActiveFlowKeyPrefix = "active/"
)

var (
	ErrFlowNotFound = errors.New("flow not found")
	ErrInvalidFlow  = errors.New("flow cannot be activated")
	ErrEmptyFlowId  = errors.New("flow id is empty")
)

// FlowCheck 激活前检查流程图所有节点能否初始化
type FlowCheck func(graph *types.FlowGraph) error

// FlowPoolOption 流程图池选项
type FlowPoolOption func(*FlowPool)

// WithFlowCheck 设置激活前的节点初始化检查
func WithFlowCheck(check FlowCheck) FlowPoolOption {
	return func(p *FlowPool) {
		p.check = check
	}
}

// FlowPool 流程图池，保存编辑器提交的流程图，维护激活的流程图列表
// 只有激活的流程图会响应触发事件
type FlowPool struct {
	store   types.Store
	catalog types.Catalog
	logger  types.Logger
	check   FlowCheck
	// active 激活的流程图 id -> graph
	active map[string]*types.FlowGraph
	sync.RWMutex
}

// NewFlowPool 创建流程图池
func NewFlowPool(store types.Store, catalog types.Catalog, logger types.Logger, opts ...FlowPoolOption) *FlowPool {
	p := &FlowPool{
		store:   store,
		catalog: catalog,
		logger:  types.NewLogger(logger),
		active:  make(map[string]*types.FlowGraph),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// validate 激活检查：编辑器校验以及节点初始化
func (p *FlowPool) validate(graph *types.FlowGraph) error {
	if err := editor.Validate(graph, p.catalog); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidFlow, err)
	}
	if p.check != nil {
		if err := p.check(graph); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidFlow, err)
		}
	}
	return nil
}

// Save 保存流程图，如果流程图已激活，新版本必须通过激活检查
// 已经在执行中的路径继续使用旧版本
func (p *FlowPool) Save(ctx context.Context, id string, graph *types.FlowGraph) error {
	if id == "" {
		return ErrEmptyFlowId
	}
	p.Lock()
	defer p.Unlock()
	_, isActive := p.active[id]
	if isActive {
		if err := p.validate(graph); err != nil {
			return err
		}
	}
	data, err := dsl.EncodeFlow(graph)
	if err != nil {
		return err
	}
	if err := p.store.Put(ctx, FlowDefKeyPrefix+id, data); err != nil {
		return err
	}
	if isActive {
		p.active[id] = graph.Copy()
	}
	return nil
}

// Load 加载流程图
func (p *FlowPool) Load(ctx context.Context, id string) (*types.FlowGraph, error) {
	data, err := p.store.Get(ctx, FlowDefKeyPrefix+id)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrFlowNotFound, id)
		}
		return nil, err
	}
	return dsl.ParseFlow(data)
}

// Delete 删除流程图，激活的流程图会先停用
func (p *FlowPool) Delete(ctx context.Context, id string) error {
	p.Lock()
	defer p.Unlock()
	delete(p.active, id)
	if _, err := p.store.Delete(ctx, ActiveFlowKeyPrefix+id); err != nil {
		return err
	}
	ok, err := p.store.Delete(ctx, FlowDefKeyPrefix+id)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrFlowNotFound, id)
	}
	return nil
}

// Activate 激活流程图，包含不完整节点、没有触发器或者节点配置无法初始化的流程图不能激活
func (p *FlowPool) Activate(ctx context.Context, id string) error {
	graph, err := p.Load(ctx, id)
	if err != nil {
		return err
	}
	if err := p.validate(graph); err != nil {
		return err
	}
	p.Lock()
	defer p.Unlock()
	if err := p.store.Put(ctx, ActiveFlowKeyPrefix+id, []byte(id)); err != nil {
		return err
	}
	p.active[id] = graph
	return nil
}

// Deactivate 停用流程图，已经开始的执行不受影响
func (p *FlowPool) Deactivate(ctx context.Context, id string) error {
	p.Lock()
	defer p.Unlock()
	delete(p.active, id)
	_, err := p.store.Delete(ctx, ActiveFlowKeyPrefix+id)
	return err
}

// IsActive 是否已激活
func (p *FlowPool) IsActive(id string) bool {
	p.RLock()
	defer p.RUnlock()
	_, ok := p.active[id]
	return ok
}

// ListActive 激活的流程图ID，按ID排序
func (p *FlowPool) ListActive() []string {
	p.RLock()
	defer p.RUnlock()
	ids := make([]string, 0, len(p.active))
	for id := range p.active {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// List 所有保存的流程图ID，按ID排序
func (p *FlowPool) List(ctx context.Context) ([]string, error) {
	values, err := p.store.List(ctx, FlowDefKeyPrefix)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(values))
	for k := range values {
		ids = append(ids, strings.TrimPrefix(k, FlowDefKeyPrefix))
	}
	sort.Strings(ids)
	return ids, nil
}

// Get 获取激活的流程图
func (p *FlowPool) Get(id string) (*types.FlowGraph, bool) {
	p.RLock()
	defer p.RUnlock()
	graph, ok := p.active[id]
	return graph, ok
}

// Restore 进程启动时恢复激活列表
func (p *FlowPool) Restore(ctx context.Context) error {
	values, err := p.store.List(ctx, ActiveFlowKeyPrefix)
	if err != nil {
		return err
	}
	var errs []error
	for k := range values {
		id := strings.TrimPrefix(k, ActiveFlowKeyPrefix)
		graph, err := p.Load(ctx, id)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		p.Lock()
		p.active[id] = graph
		p.Unlock()
	}
	return errors.Join(errs...)
}

// LoadFolder 加载文件夹及其子文件夹中所有流程图文件(.json)，流程图ID使用文件名
// activate=true 时加载后激活
func (p *FlowPool) LoadFolder(ctx context.Context, folderPath string, activate bool) error {
	if !strings.HasSuffix(folderPath, "*.json") && !strings.HasSuffix(folderPath, "*.JSON") {
		if strings.HasSuffix(folderPath, "/") || strings.HasSuffix(folderPath, "\\") {
			folderPath = folderPath + "*.json"
		} else if folderPath == "" {
			folderPath = "./*.json"
		} else {
			folderPath = folderPath + "/*.json"
		}
	}
	paths, err := fs.GetFilePaths(folderPath)
	if err != nil {
		return err
	}
	for _, path := range paths {
		b := fs.LoadFile(path)
		if b == nil {
			continue
		}
		graph, err := dsl.ParseFlow(b)
		if err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		id := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		if err := p.Save(ctx, id, graph); err != nil {
			return err
		}
		if activate {
			if err := p.Activate(ctx, id); err != nil {
				return fmt.Errorf("activate %s: %w", path, err)
			}
		}
		p.logger.Printf("loaded flow %s from %s", id, path)
	}
	return nil
}

// ExportFolder 把所有保存的流程图写入文件夹，文件名 {id}.json，可以用 LoadFolder 重新加载
func (p *FlowPool) ExportFolder(ctx context.Context, folderPath string) error {
	ids, err := p.List(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		graph, err := p.Load(ctx, id)
		if err != nil {
			return err
		}
		data, err := dsl.EncodeFlowIndent(graph)
		if err != nil {
			return err
		}
		path := filepath.Join(folderPath, id+".json")
		if err := fs.SaveFile(path, data); err != nil {
			return fmt.Errorf("export %s: %w", path, err)
		}
	}
	return nil
}
