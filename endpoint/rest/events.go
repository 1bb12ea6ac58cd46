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

package rest

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/mailist-com/automation/api/types"
	"github.com/mailist-com/automation/engine"
	"github.com/mailist-com/automation/utils/json"
)

const (
	// clientBufferSize 每个连接待发送事件的缓冲数，满了丢弃
	clientBufferSize = 256
	writeWait        = 10 * time.Second
)

// hub 把引擎执行事件广播给所有websocket连接
type hub struct {
	logger      types.Logger
	lock        sync.RWMutex
	clients     map[*client]struct{}
	unsubscribe func()
	once        sync.Once
}

type client struct {
	conn *websocket.Conn
	// executionId 不为空时只推送该执行的事件
	executionId string
	send        chan types.ExecutionEvent
	done        chan struct{}
	closeOnce   sync.Once
}

func newHub(logger types.Logger) *hub {
	return &hub{logger: logger, clients: make(map[*client]struct{})}
}

func (h *hub) attach(e *engine.Engine) {
	h.once.Do(func() {
		h.unsubscribe = e.Subscribe(h.broadcast)
	})
}

func (h *hub) broadcast(event types.ExecutionEvent) {
	h.lock.RLock()
	defer h.lock.RUnlock()
	for c := range h.clients {
		if c.executionId != "" && c.executionId != event.ExecutionId {
			continue
		}
		select {
		case c.send <- event:
		default:
			h.logger.Printf("event stream client %s is slow, event dropped", c.conn.RemoteAddr())
		}
	}
}

func (h *hub) add(c *client) {
	h.lock.Lock()
	defer h.lock.Unlock()
	h.clients[c] = struct{}{}
}

func (h *hub) remove(c *client) {
	h.lock.Lock()
	delete(h.clients, c)
	h.lock.Unlock()
	c.close()
}

func (h *hub) len() int {
	h.lock.RLock()
	defer h.lock.RUnlock()
	return len(h.clients)
}

func (h *hub) close() {
	if h.unsubscribe != nil {
		h.unsubscribe()
	}
	h.lock.Lock()
	clients := h.clients
	h.clients = make(map[*client]struct{})
	h.lock.Unlock()
	for c := range clients {
		c.close()
	}
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// writeLoop 串行写连接，gorilla websocket 不支持并发写
func (c *client) writeLoop(logger types.Logger) {
	for {
		select {
		case <-c.done:
			return
		case event := <-c.send:
			msg, err := json.Marshal(event)
			if err != nil {
				logger.Printf("event stream marshal err :%v", err)
				continue
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.close()
				return
			}
		}
	}
}

// streamEvents 升级为websocket连接并推送执行事件
func (rest *Rest) streamEvents(w http.ResponseWriter, r *http.Request, _ httprouter.Params) error {
	conn, err := rest.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade 已经写入了错误响应
		rest.Logger.Printf("event stream upgrade err :%v", err)
		return nil
	}
	c := &client{
		conn:        conn,
		executionId: r.URL.Query().Get("executionId"),
		send:        make(chan types.ExecutionEvent, clientBufferSize),
		done:        make(chan struct{}),
	}
	rest.events.add(c)
	go c.writeLoop(rest.Logger)
	go func() {
		defer rest.events.remove(c)
		for {
			// 客户端消息忽略，读取失败说明连接已关闭
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	return nil
}
