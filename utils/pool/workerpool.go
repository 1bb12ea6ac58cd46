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

// Package pool 提供执行路径使用的协程池
// Package pool provides the goroutine pool that runs execution walks.
//
// 工作协程以先进后出顺序复用，最近空闲的工作协程优先处理下一个任务，保持CPU缓存热度。
// The scheduling scheme follows valyala/fasthttp's workerpool.go: idle workers are
// kept on a FILO stack and reaped after MaxIdleWorkerDuration.
package pool

import (
	"errors"
	"runtime"
	"sync"
	"time"
)

// ErrPoolExhausted 没有空闲的工作协程并且已经达到最大数量
var ErrPoolExhausted = errors.New("no idle workers")

// WorkerPool 协程池
type WorkerPool struct {
	// MaxWorkersCount 最大工作协程数量
	MaxWorkersCount int
	// MaxIdleWorkerDuration 工作协程最大空闲时间，默认10秒
	MaxIdleWorkerDuration time.Duration
	// PanicHandler 任务panic处理函数，为空时panic被吞掉
	PanicHandler func(v interface{})

	lock         sync.Mutex
	workersCount int
	mustStop     bool
	// idle 空闲工作协程，按最近使用时间升序
	idle      []*worker
	stopCh    chan struct{}
	workerBuf sync.Pool
	startOnce sync.Once
}

type worker struct {
	lastUseTime time.Time
	tasks       chan func()
}

// 单核时使用无缓冲通道，避免任务在通道中等待
var workerTaskCap = func() int {
	if runtime.GOMAXPROCS(0) == 1 {
		return 0
	}
	return 1
}()

// Start 启动协程池和空闲回收协程
func (wp *WorkerPool) Start() {
	wp.startOnce.Do(func() {
		wp.stopCh = make(chan struct{})
		stopCh := wp.stopCh
		wp.workerBuf.New = func() interface{} {
			return &worker{tasks: make(chan func(), workerTaskCap)}
		}
		go func() {
			var scratch []*worker
			for {
				wp.reapIdle(&scratch)
				select {
				case <-stopCh:
					return
				case <-time.After(wp.maxIdle()):
				}
			}
		}()
	})
}

// Stop 停止协程池，正在执行的任务会执行完毕
func (wp *WorkerPool) Stop() {
	wp.lock.Lock()
	defer wp.lock.Unlock()
	if wp.stopCh == nil || wp.mustStop {
		return
	}
	close(wp.stopCh)
	for i := range wp.idle {
		wp.idle[i].tasks <- nil
		wp.idle[i] = nil
	}
	wp.idle = wp.idle[:0]
	wp.mustStop = true
}

// Release 释放
func (wp *WorkerPool) Release() {
	wp.Stop()
}

// Submit 提交一个任务，没有可用工作协程时返回 ErrPoolExhausted
func (wp *WorkerPool) Submit(task func()) error {
	w := wp.acquire()
	if w == nil {
		return ErrPoolExhausted
	}
	w.tasks <- task
	return nil
}

func (wp *WorkerPool) maxIdle() time.Duration {
	if wp.MaxIdleWorkerDuration <= 0 {
		return 10 * time.Second
	}
	return wp.MaxIdleWorkerDuration
}

// reapIdle 回收空闲时间超过 MaxIdleWorkerDuration 的工作协程
func (wp *WorkerPool) reapIdle(scratch *[]*worker) {
	deadline := time.Now().Add(-wp.maxIdle())

	wp.lock.Lock()
	idle := wp.idle
	n := len(idle)
	// idle 按最近使用时间升序，二分查找最后一个过期的工作协程
	l, r := 0, n-1
	for l <= r {
		mid := (l + r) / 2
		if deadline.After(idle[mid].lastUseTime) {
			l = mid + 1
		} else {
			r = mid - 1
		}
	}
	if r < 0 {
		wp.lock.Unlock()
		return
	}
	*scratch = append((*scratch)[:0], idle[:r+1]...)
	m := copy(idle, idle[r+1:])
	for i := m; i < n; i++ {
		idle[i] = nil
	}
	wp.idle = idle[:m]
	wp.lock.Unlock()

	expired := *scratch
	for i := range expired {
		expired[i].tasks <- nil
		expired[i] = nil
	}
}

func (wp *WorkerPool) acquire() *worker {
	var w *worker
	spawn := false

	wp.lock.Lock()
	if wp.mustStop {
		wp.lock.Unlock()
		return nil
	}
	if n := len(wp.idle) - 1; n >= 0 {
		w = wp.idle[n]
		wp.idle[n] = nil
		wp.idle = wp.idle[:n]
	} else if wp.MaxWorkersCount <= 0 || wp.workersCount < wp.MaxWorkersCount {
		spawn = true
		wp.workersCount++
	}
	wp.lock.Unlock()

	if w == nil {
		if !spawn {
			return nil
		}
		v := wp.workerBuf.Get()
		if v == nil {
			v = &worker{tasks: make(chan func(), workerTaskCap)}
		}
		w = v.(*worker)
		go func() {
			wp.run(w)
			wp.workerBuf.Put(v)
		}()
	}
	return w
}

func (wp *WorkerPool) park(w *worker) bool {
	w.lastUseTime = time.Now()
	wp.lock.Lock()
	defer wp.lock.Unlock()
	if wp.mustStop {
		return false
	}
	wp.idle = append(wp.idle, w)
	return true
}

func (wp *WorkerPool) run(w *worker) {
	for task := range w.tasks {
		if task == nil {
			break
		}
		wp.execute(task)
		if !wp.park(w) {
			break
		}
	}
	wp.lock.Lock()
	wp.workersCount--
	wp.lock.Unlock()
}

func (wp *WorkerPool) execute(task func()) {
	defer func() {
		if v := recover(); v != nil && wp.PanicHandler != nil {
			wp.PanicHandler(v)
		}
	}()
	task()
}
