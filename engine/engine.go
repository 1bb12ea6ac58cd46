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

// Package engine 自动化流程执行引擎
//
// 引擎从触发器节点开始沿连线执行流程图。一个输出端口连接多个节点时执行分支，
// 每个分支得到独立的执行上下文副本，并发执行，互不影响。
// 延迟节点把路径挂起并持久化到Store，到期后由 Sweep 恢复，进程重启后仍然可以继续。
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/robfig/cron/v3"

	"github.com/mailist-com/automation/api/types"
	"github.com/mailist-com/automation/api/types/metrics"
	"github.com/mailist-com/automation/builtin/aspect"
	"github.com/mailist-com/automation/catalog"
	"github.com/mailist-com/automation/components"
	"github.com/mailist-com/automation/components/base"
	"github.com/mailist-com/automation/dsl"
	"github.com/mailist-com/automation/store"
	"github.com/mailist-com/automation/utils/cache"
	"github.com/mailist-com/automation/utils/runtime"
)

var (
	ErrExecutionNotFound  = errors.New("execution not found")
	ErrExecutionNotPaused = errors.New("execution is not paused")
	ErrEngineStopped      = errors.New("engine stopped")
)

// EventVar 外部事件数据保存的变量名
const EventVar = "event"

// DefaultFlowTTL 已加载流程图的缓存时间，每次使用后重新计时
var DefaultFlowTTL = time.Hour

// DefaultTombstoneTTL 取消标记的保留时间，超过后并且没有挂起路径时由 Sweep 删除
var DefaultTombstoneTTL = 24 * time.Hour

// StartOption 启动执行选项
type StartOption func(*startOptions)

type startOptions struct {
	triggerNodeId string
	executionId   string
}

// WithTriggerNode 指定从哪个触发器节点开始，默认ID最小的触发器
func WithTriggerNode(nodeId string) StartOption {
	return func(o *startOptions) {
		o.triggerNodeId = nodeId
	}
}

// WithExecutionId 指定执行ID，默认生成UUID
func WithExecutionId(executionId string) StartOption {
	return func(o *startOptions) {
		o.executionId = executionId
	}
}

// Engine 流程执行引擎
type Engine struct {
	config   types.Config
	registry *Registry
	bus      *EventBus
	metrics  *metrics.ExecutionMetrics
	flows    *cache.MemoryCache
	flowLock sync.Mutex
	before   []types.BeforeAspect
	after    []types.AfterAspect

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	sweepLock sync.Mutex
	cron      *cron.Cron
	cronLock  sync.Mutex
}

// New 创建引擎，没有配置的协作者使用默认实现
func New(config types.Config) *Engine {
	config.Logger = types.NewLogger(config.Logger)
	if config.Catalog == nil {
		config.Catalog = catalog.Default
	}
	if config.ComponentsRegistry == nil {
		config.ComponentsRegistry = components.Registry
	}
	if config.Store == nil {
		config.Store = store.NewMemoryStore()
	}
	if config.SweepInterval <= 0 {
		config.SweepInterval = time.Second * 10
	}
	e := &Engine{
		config:   config,
		registry: NewRegistry(),
		bus:      NewEventBus(config.Logger),
		metrics:  metrics.NewExecutionMetrics(),
		flows:    cache.NewMemoryCache(DefaultFlowTTL),
	}
	e.flows.OnEvict = func(key string, value interface{}) {
		if fc, ok := value.(*FlowCtx); ok {
			fc.retire()
		}
	}
	e.ctx, e.cancel = context.WithCancel(context.Background())
	e.initAspects()
	return e
}

func (e *Engine) initAspects() {
	aspects := append([]types.Aspect{}, e.config.Aspects...)
	if e.config.Debug {
		aspects = append(aspects, &aspect.Debug{})
	}
	sort.SliceStable(aspects, func(i, j int) bool {
		return aspects[i].Order() < aspects[j].Order()
	})
	for _, a := range aspects {
		if b, ok := a.(types.BeforeAspect); ok {
			e.before = append(e.before, b)
		}
		if af, ok := a.(types.AfterAspect); ok {
			e.after = append(e.after, af)
		}
	}
}

// Config 引擎配置
func (e *Engine) Config() types.Config {
	return e.config
}

// Registry 执行注册表
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Subscribe 订阅执行事件，返回取消订阅函数
func (e *Engine) Subscribe(listener Listener) func() {
	return e.bus.Subscribe(listener)
}

// Metrics 执行统计快照
func (e *Engine) Metrics() metrics.ExecutionMetrics {
	return e.metrics.Get()
}

// GetExecution 获取活跃执行的快照
func (e *Engine) GetExecution(executionId string) (*types.ExecutionContext, bool) {
	return e.registry.Get(executionId)
}

// ListActive 活跃执行列表，包含挂起和暂停的执行
func (e *Engine) ListActive() []*types.ExecutionContext {
	return e.registry.ListActive()
}

// StartExecution 为联系人启动一次执行，返回执行ID
// started 事件在返回之前同步发出，后续节点在协程池中执行
func (e *Engine) StartExecution(ctx context.Context, graph *types.FlowGraph, contact types.Contact, vars map[string]interface{}, opts ...StartOption) (string, error) {
	if e.ctx.Err() != nil {
		return "", ErrEngineStopped
	}
	o := startOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.executionId == "" {
		o.executionId = newId()
	}
	fc, err := e.storeFlow(ctx, graph)
	if err != nil {
		return "", err
	}
	exec := &types.ExecutionContext{
		ExecutionId: o.executionId,
		PathId:      newId(),
		FlowKey:     fc.Key,
		FlowName:    graph.Name,
		ContactId:   contact.Id,
		Contact:     contact.Copy(),
		StartedAt:   e.config.Now(),
	}
	exec.Variables = make(map[string]interface{}, len(vars))
	for k, v := range vars {
		exec.Variables[k] = v
	}
	e.registry.Register(exec)
	e.metrics.IncrementStarted()

	trigger, err := fc.Trigger(o.triggerNodeId)
	if err != nil {
		e.emit(types.EventStarted, exec, "", map[string]interface{}{"flowName": graph.Name}, nil)
		e.fail(exec, "", err)
		return exec.ExecutionId, err
	}
	e.emit(types.EventStarted, exec, trigger.Id, map[string]interface{}{"flowName": graph.Name, "trigger": trigger.ComponentType()}, nil)
	e.submitWalk(fc, exec, trigger, nil)
	return exec.ExecutionId, nil
}

// Wait 等待所有正在执行的路径结束，挂起的路径不等待
func (e *Engine) Wait() {
	e.wg.Wait()
}

// Start 从Store重建注册表，然后启动定时恢复到期的延迟路径
func (e *Engine) Start() error {
	e.cronLock.Lock()
	defer e.cronLock.Unlock()
	if e.cron != nil {
		return nil
	}
	if n, err := e.Recover(e.ctx); err != nil {
		e.config.Logger.Printf("recover executions error: %s", err.Error())
	} else if n > 0 {
		e.config.Logger.Printf("recovered %d suspended executions", n)
	}
	c := cron.New(cron.WithLogger(cron.PrintfLogger(e.config.Logger)))
	if _, err := c.AddFunc("@every "+e.config.SweepInterval.String(), func() {
		if _, err := e.Sweep(e.ctx); err != nil {
			e.config.Logger.Printf("sweep continuations error: %s", err.Error())
		}
	}); err != nil {
		return err
	}
	c.Start()
	e.cron = c
	return nil
}

// Stop 停止定时任务并等待正在执行的路径结束
// 挂起的路径保留在Store中，重启后继续
func (e *Engine) Stop() {
	e.cronLock.Lock()
	if e.cron != nil {
		<-e.cron.Stop().Done()
		e.cron = nil
	}
	e.cronLock.Unlock()
	e.Wait()
	e.cancel()
	e.flows.DeleteByPrefix("")
	e.flows.StopGC()
}

// Recover 根据Store中的挂起路径重建注册表，进程重启后挂起的执行可以查询、暂停和取消
// 返回重新注册的执行数
func (e *Engine) Recover(ctx context.Context) (int, error) {
	list, err := listContinuations(ctx, e.config.Store, "")
	if err != nil && list == nil {
		return 0, err
	}
	groups := make(map[string][]*Continuation)
	var order []string
	for _, c := range list {
		//补写到期索引
		if c.indexed() {
			if putErr := e.config.Store.Put(ctx, c.dueKey(), []byte(c.Key())); putErr != nil {
				return 0, putErr
			}
		}
		if _, ok := groups[c.ExecutionId]; !ok {
			order = append(order, c.ExecutionId)
		}
		groups[c.ExecutionId] = append(groups[c.ExecutionId], c)
	}
	count := 0
	for _, id := range order {
		if e.registry.Contains(id) || isMarked(ctx, e.config.Store, CancelledKeyPrefix, id) {
			continue
		}
		parked := groups[id]
		paused := isMarked(ctx, e.config.Store, PausedKeyPrefix, id)
		if e.registry.Restore(parked[0].Context, len(parked), paused) {
			count++
		}
	}
	return count, err
}

// restore 注册表中没有时从挂起路径重新注册，没有挂起路径或者已取消返回false
func (e *Engine) restore(ctx context.Context, executionId string) (bool, error) {
	if e.registry.Contains(executionId) {
		return true, nil
	}
	if isMarked(ctx, e.config.Store, CancelledKeyPrefix, executionId) {
		return false, nil
	}
	parked, err := listContinuations(ctx, e.config.Store, executionId)
	if err != nil && parked == nil {
		return false, err
	}
	if len(parked) == 0 {
		return false, nil
	}
	paused := isMarked(ctx, e.config.Store, PausedKeyPrefix, executionId)
	e.registry.Restore(parked[0].Context, len(parked), paused)
	return true, nil
}

// Sweep 恢复所有到期的延迟路径，返回恢复的路径数
// 按到期索引顺序处理，遇到第一条未到期的路径即停止
func (e *Engine) Sweep(ctx context.Context) (int, error) {
	e.sweepLock.Lock()
	defer e.sweepLock.Unlock()
	keys, err := dueKeys(ctx, e.config.Store)
	if err != nil {
		return 0, err
	}
	now := e.config.Now()
	count := 0
	var errs []error
	for _, key := range keys {
		until, continuation, ok := parseDueKey(key)
		if !ok {
			_, _ = e.config.Store.Delete(ctx, key)
			continue
		}
		if until.After(now) {
			break
		}
		c, err := loadContinuation(ctx, e.config.Store, continuation)
		if err != nil {
			if errors.Is(err, types.ErrNotFound) {
				//路径已经被恢复或者删除
				_, _ = e.config.Store.Delete(ctx, key)
			} else {
				errs = append(errs, err)
			}
			continue
		}
		if !c.indexed() || c.dueKey() != key {
			//同一路径已经挂起在新的延迟节点上
			_, _ = e.config.Store.Delete(ctx, key)
			continue
		}
		if e.skip(ctx, c) {
			continue
		}
		if ok, claimErr := claim(ctx, e.config.Store, c); claimErr != nil || !ok {
			continue
		}
		if e.resumeContinuation(ctx, c, c.Output, map[string]interface{}{"reason": "due"}) {
			count++
		}
	}
	if err := e.purgeTombstones(ctx, now); err != nil {
		errs = append(errs, err)
	}
	return count, errors.Join(errs...)
}

// purgeTombstones 删除过期并且没有挂起路径的取消标记
func (e *Engine) purgeTombstones(ctx context.Context, now time.Time) error {
	values, err := e.config.Store.List(ctx, CancelledKeyPrefix)
	if err != nil {
		return err
	}
	for key, v := range values {
		at, ok := markedAt(v)
		if ok && now.Sub(at) < DefaultTombstoneTTL {
			continue
		}
		executionId := key[len(CancelledKeyPrefix):]
		if parked, _ := listContinuations(ctx, e.config.Store, executionId); len(parked) > 0 {
			continue
		}
		if _, err := e.config.Store.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

// Signal 联系人发生外部事件，恢复等待该事件的路径，返回恢复的路径数
// 事件数据保存在变量 event 中
func (e *Engine) Signal(ctx context.Context, contactId, eventName string, data map[string]interface{}) (int, error) {
	list, err := listContinuations(ctx, e.config.Store, "")
	if err != nil && list == nil {
		return 0, err
	}
	count := 0
	for _, c := range list {
		if c.Paused || c.WaitEvent != eventName || c.Context.ContactId != contactId {
			continue
		}
		if e.skip(ctx, c) {
			continue
		}
		if ok, claimErr := claim(ctx, e.config.Store, c); claimErr != nil || !ok {
			continue
		}
		c.Context.SetVar(EventVar, data)
		output := c.EventOutput
		if output == "" {
			output = types.Output
		}
		if e.resumeContinuation(ctx, c, output, map[string]interface{}{"reason": "event", "event": eventName}) {
			count++
		}
	}
	return count, err
}

// Pause 暂停执行，正在执行的路径在下一个节点之前停下，延迟路径到期后不恢复
func (e *Engine) Pause(ctx context.Context, executionId string) error {
	//进程重启后还没有恢复过的挂起执行
	if _, err := e.restore(ctx, executionId); err != nil {
		return err
	}
	if !e.registry.RequestPause(executionId) {
		return fmt.Errorf("%w: %s", ErrExecutionNotFound, executionId)
	}
	if err := mark(ctx, e.config.Store, PausedKeyPrefix, executionId, e.config.Now()); err != nil {
		return err
	}
	if exec, ok := e.registry.Get(executionId); ok {
		e.emit(types.EventPaused, exec, "", nil, nil)
	}
	return nil
}

// Resume 恢复暂停的执行
func (e *Engine) Resume(ctx context.Context, executionId string) error {
	parked, err := listContinuations(ctx, e.config.Store, executionId)
	if err != nil && parked == nil {
		return err
	}
	if !e.registry.Contains(executionId) {
		if !isMarked(ctx, e.config.Store, PausedKeyPrefix, executionId) || len(parked) == 0 {
			return fmt.Errorf("%w: %s", ErrExecutionNotFound, executionId)
		}
		e.registry.Restore(parked[0].Context, len(parked), true)
	}
	if !e.registry.IsPaused(executionId) {
		return fmt.Errorf("%w: %s", ErrExecutionNotPaused, executionId)
	}
	e.registry.ClearPause(executionId)
	if _, err := e.config.Store.Delete(ctx, PausedKeyPrefix+executionId); err != nil {
		return err
	}
	if exec, ok := e.registry.Get(executionId); ok {
		e.emit(types.EventResumed, exec, "", nil, nil)
	}
	for _, c := range parked {
		if !c.Paused {
			continue
		}
		if ok, claimErr := claim(ctx, e.config.Store, c); claimErr != nil || !ok {
			continue
		}
		e.metrics.IncrementResumed()
		e.continuePath(ctx, c, "")
	}
	return nil
}

// Cancel 取消执行，正在执行的路径在当前节点结束后停止，挂起的路径被删除
func (e *Engine) Cancel(ctx context.Context, executionId string) error {
	exec, existed := e.registry.Get(executionId)
	parked, err := listContinuations(ctx, e.config.Store, executionId)
	if err != nil && parked == nil {
		return err
	}
	if !existed {
		if len(parked) == 0 {
			return fmt.Errorf("%w: %s", ErrExecutionNotFound, executionId)
		}
		exec = parked[0].Context
	}
	e.registry.Unregister(executionId)
	if err := mark(ctx, e.config.Store, CancelledKeyPrefix, executionId, e.config.Now()); err != nil {
		return err
	}
	var errs []error
	for _, c := range parked {
		if _, err := claim(ctx, e.config.Store, c); err != nil {
			errs = append(errs, err)
		}
	}
	if _, err := e.config.Store.Delete(ctx, PausedKeyPrefix+executionId); err != nil {
		errs = append(errs, err)
	}
	e.metrics.IncrementCancelled()
	e.emit(types.EventCancelled, exec, "", nil, nil)
	return errors.Join(errs...)
}

// skip 已取消或者暂停的执行不恢复，已取消的挂起路径直接删除
func (e *Engine) skip(ctx context.Context, c *Continuation) bool {
	if e.registry.IsPaused(c.ExecutionId) {
		return true
	}
	if e.registry.Contains(c.ExecutionId) {
		return false
	}
	if isMarked(ctx, e.config.Store, CancelledKeyPrefix, c.ExecutionId) {
		_, _ = claim(ctx, e.config.Store, c)
		return true
	}
	return isMarked(ctx, e.config.Store, PausedKeyPrefix, c.ExecutionId)
}

// resumeContinuation 恢复一条已经认领的挂起路径
func (e *Engine) resumeContinuation(ctx context.Context, c *Continuation, output string, data map[string]interface{}) bool {
	if !e.registry.Contains(c.ExecutionId) {
		if isMarked(ctx, e.config.Store, CancelledKeyPrefix, c.ExecutionId) {
			return false
		}
		//进程重启后第一次恢复该执行，剩余挂起路径也计入
		remaining, _ := listContinuations(ctx, e.config.Store, c.ExecutionId)
		e.registry.Restore(c.Context, len(remaining)+1, false)
	}
	e.metrics.IncrementResumed()
	e.emit(types.EventResumed, c.Context, c.NodeId, data, nil)
	e.continuePath(ctx, c, output)
	return true
}

// continuePath output为空时重新执行挂起的节点，否则沿output继续
func (e *Engine) continuePath(ctx context.Context, c *Continuation, output string) {
	exec := c.Context
	fc, err := e.loadFlow(ctx, c.FlowKey)
	if err != nil {
		e.fail(exec, c.NodeId, err)
		return
	}
	node, ok := fc.Graph.Nodes[c.NodeId]
	if !ok {
		e.fail(exec, c.NodeId, fmt.Errorf("%w: %s", ErrNodeNotFound, c.NodeId))
		return
	}
	if output == "" {
		e.submitWalk(fc, exec, node, nil)
		return
	}
	after := types.Route(output, nil)
	e.submitWalk(fc, exec, node, &after)
}

// walk 执行一条路径直到结束、挂起或者分支
// after 不为空时node已经执行过，直接根据after计算下一个节点
func (e *Engine) walk(fc *FlowCtx, exec *types.ExecutionContext, node *types.GraphNode, after *types.Result) {
	e.metrics.IncrementCurrent()
	defer e.metrics.DecrementCurrent()
	defer func() {
		if caught := recover(); caught != nil {
			e.fail(exec, exec.CurrentNodeId, runtime.PanicError(caught))
		}
	}()
	if after != nil {
		node = e.advance(fc, exec, node, *after)
	}
	for node != nil {
		//已取消
		if !e.registry.Contains(exec.ExecutionId) {
			return
		}
		if e.registry.IsPaused(exec.ExecutionId) && e.park(fc, exec, node) {
			return
		}
		exec.CurrentNodeId = node.Id
		e.registry.Track(exec)
		def, instance, err := fc.Node(node.Id)
		if err != nil {
			e.fail(exec, node.Id, err)
			return
		}
		result := e.dispatch(def, instance, exec)
		if result.Err != nil {
			e.fail(exec, node.Id, result.Err)
			return
		}
		//终止节点(goal/end)只报告completed
		if len(def.OutputSockets) > 0 || result.Suspend != nil {
			e.emit(types.EventNodeExecuted, exec, node.Id, result.Data, nil)
		}
		if s := result.Suspend; s != nil {
			if s.WaitEvent != "" || s.Until.After(e.config.Now()) {
				e.suspend(fc, exec, node, *s, result.Data)
				return
			}
			result.Outputs = []string{s.DueOutput}
			if s.DueOutput == "" {
				result.Outputs = []string{types.Output}
			}
		}
		node = e.advance(fc, exec, node, result)
	}
}

// advance 计算下一个节点，路径结束或者分支时返回nil
func (e *Engine) advance(fc *FlowCtx, exec *types.ExecutionContext, node *types.GraphNode, result types.Result) *types.GraphNode {
	next, err := fc.Next(node, result)
	if err != nil {
		e.fail(exec, node.Id, err)
		return nil
	}
	switch len(next) {
	case 0:
		e.complete(exec, node.Id, result.Goal)
		return nil
	case 1:
		return next[0]
	}
	//分支，每个分支都是新路径，当前路径结束
	e.registry.AddPaths(exec.ExecutionId, len(next)-1)
	for _, n := range next {
		e.submitWalk(fc, exec.Copy(newId()), n, nil)
	}
	return nil
}

func (e *Engine) dispatch(def *types.GraphNode, instance types.Node, exec *types.ExecutionContext) types.Result {
	nodeCtx := base.NewNodeCtx(e.ctx, e.config, def)
	for _, a := range e.before {
		a.Before(nodeCtx, exec)
	}
	result := instance.OnExecute(nodeCtx, exec)
	for _, a := range e.after {
		result = a.After(nodeCtx, exec, result)
	}
	return result
}

func (e *Engine) suspend(fc *FlowCtx, exec *types.ExecutionContext, node *types.GraphNode, s types.Suspension, data map[string]interface{}) {
	output := s.DueOutput
	if output == "" {
		output = types.Output
	}
	c := &Continuation{
		ExecutionId: exec.ExecutionId,
		PathId:      exec.PathId,
		FlowKey:     fc.Key,
		NodeId:      node.Id,
		Output:      output,
		WaitEvent:   s.WaitEvent,
		EventOutput: s.EventOutput,
		Until:       s.Until,
		Context:     exec,
		CreatedAt:   e.config.Now(),
	}
	if err := saveContinuation(e.ctx, e.config.Store, c); err != nil {
		e.fail(exec, node.Id, err)
		return
	}
	e.metrics.IncrementSuspended()
	eventData := make(map[string]interface{}, len(data)+2)
	for k, v := range data {
		eventData[k] = v
	}
	if !s.Until.IsZero() {
		eventData["until"] = s.Until
	}
	if s.WaitEvent != "" {
		eventData["waitEvent"] = s.WaitEvent
	}
	e.emit(types.EventSuspended, exec, node.Id, eventData, nil)
}

// park 暂停的路径在node执行前停下，恢复时重新执行node
// 保存期间暂停已经被清除时重新认领，返回false表示路径继续执行
func (e *Engine) park(fc *FlowCtx, exec *types.ExecutionContext, node *types.GraphNode) bool {
	c := &Continuation{
		ExecutionId: exec.ExecutionId,
		PathId:      exec.PathId,
		FlowKey:     fc.Key,
		NodeId:      node.Id,
		Paused:      true,
		Context:     exec,
		CreatedAt:   e.config.Now(),
	}
	if err := saveContinuation(e.ctx, e.config.Store, c); err != nil {
		e.fail(exec, node.Id, err)
		return true
	}
	if e.registry.IsPaused(exec.ExecutionId) || !e.registry.Contains(exec.ExecutionId) {
		return true
	}
	ok, _ := claim(e.ctx, e.config.Store, c)
	return !ok
}

func (e *Engine) complete(exec *types.ExecutionContext, nodeId, goal string) {
	//已取消的执行不再报告完成
	if !e.registry.Contains(exec.ExecutionId) {
		return
	}
	var data map[string]interface{}
	if goal != "" {
		data = map[string]interface{}{"goal": goal}
	}
	e.metrics.IncrementCompleted()
	e.emit(types.EventCompleted, exec, nodeId, data, nil)
	e.registry.DonePath(exec.ExecutionId)
}

func (e *Engine) fail(exec *types.ExecutionContext, nodeId string, err error) {
	e.metrics.IncrementFailed()
	e.emit(types.EventFailed, exec, nodeId, nil, err)
	e.registry.DonePath(exec.ExecutionId)
}

func (e *Engine) emit(eventType types.EventType, exec *types.ExecutionContext, nodeId string, data map[string]interface{}, err error) {
	event := types.ExecutionEvent{
		Type:        eventType,
		ExecutionId: exec.ExecutionId,
		PathId:      exec.PathId,
		NodeId:      nodeId,
		Data:        data,
		Timestamp:   e.config.Now(),
	}
	if err != nil {
		event.Error = err.Error()
	}
	e.bus.Emit(event)
}

// submit 提交到协程池，协程池满或者没有配置时使用新协程
func (e *Engine) submit(task func()) {
	e.wg.Add(1)
	wrapped := func() {
		defer e.wg.Done()
		task()
	}
	if e.config.Pool != nil {
		if err := e.config.Pool.Submit(wrapped); err == nil {
			return
		}
	}
	go wrapped()
}

// submitWalk 提交一条路径，路径结束前流程图实例不会被销毁
func (e *Engine) submitWalk(fc *FlowCtx, exec *types.ExecutionContext, node *types.GraphNode, after *types.Result) {
	fc.acquire()
	e.submit(func() {
		defer fc.release()
		e.walk(fc, exec, node, after)
	})
}

// Prepare 保存并加载流程图，返回可以匹配触发器的 FlowCtx
func (e *Engine) Prepare(ctx context.Context, graph *types.FlowGraph) (*FlowCtx, error) {
	return e.storeFlow(ctx, graph)
}

// Check 初始化流程图的所有节点，返回节点配置错误，不保存也不缓存
func (e *Engine) Check(graph *types.FlowGraph) error {
	fc := NewFlowCtx(e.config, "", graph)
	defer fc.Destroy()
	return fc.Err()
}

// storeFlow 保存流程图，内容相同的流程图只保存一次
func (e *Engine) storeFlow(ctx context.Context, graph *types.FlowGraph) (*FlowCtx, error) {
	key, err := dsl.FlowKey(graph)
	if err != nil {
		return nil, err
	}
	e.flowLock.Lock()
	defer e.flowLock.Unlock()
	if v, ok := e.flows.GetAndTouch(key, DefaultFlowTTL); ok {
		return v.(*FlowCtx), nil
	}
	data, err := dsl.EncodeFlow(graph)
	if err != nil {
		return nil, err
	}
	if err := e.config.Store.Put(ctx, FlowKeyPrefix+key, data); err != nil {
		return nil, err
	}
	fc := NewFlowCtx(e.config, key, graph.Copy())
	e.flows.Set(key, fc, DefaultFlowTTL)
	return fc, nil
}

// loadFlow 加载挂起时记录的流程图版本
func (e *Engine) loadFlow(ctx context.Context, key string) (*FlowCtx, error) {
	e.flowLock.Lock()
	defer e.flowLock.Unlock()
	if v, ok := e.flows.GetAndTouch(key, DefaultFlowTTL); ok {
		return v.(*FlowCtx), nil
	}
	data, err := e.config.Store.Get(ctx, FlowKeyPrefix+key)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrFlowNotFound, key)
		}
		return nil, err
	}
	graph, err := dsl.ParseFlow(data)
	if err != nil {
		return nil, err
	}
	fc := NewFlowCtx(e.config, key, graph)
	e.flows.Set(key, fc, DefaultFlowTTL)
	return fc, nil
}

func newId() string {
	return uuid.Must(uuid.NewV4()).String()
}
