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

// Package rest 通过HTTP暴露流程图管理和执行控制接口
//
// 路由列表：
//
//	GET    /api/v1/catalog
//	GET    /api/v1/flows
//	PUT    /api/v1/flows/:id
//	GET    /api/v1/flows/:id
//	DELETE /api/v1/flows/:id
//	POST   /api/v1/flows/:id/activate
//	POST   /api/v1/flows/:id/deactivate
//	POST   /api/v1/flows/:id/executions
//	POST   /api/v1/events
//	POST   /api/v1/signals
//	GET    /api/v1/executions
//	GET    /api/v1/executions/:id
//	GET    /api/v1/executions/:id/history
//	POST   /api/v1/executions/:id/pause
//	POST   /api/v1/executions/:id/resume
//	DELETE /api/v1/executions/:id
//	GET    /api/v1/metrics
//	GET    /api/v1/ws/events
package rest

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/mailist-com/automation"
	"github.com/mailist-com/automation/api/types"
	"github.com/mailist-com/automation/engine"
	"github.com/mailist-com/automation/utils/json"
	"github.com/mailist-com/automation/utils/runtime"
)

const (
	ContentTypeKey  = "Content-Type"
	JsonContentType = "application/json"
	// ApiPrefix 接口路径前缀
	ApiPrefix = "/api/v1"
	// DefaultAddr 默认监听地址
	DefaultAddr = ":9090"
)

// Config Rest 服务配置
type Config struct {
	// Server 服务器地址
	Server string
	// CertFile 证书文件
	CertFile string
	// CertKeyFile 证书密钥文件
	CertKeyFile string
	// ReadTimeout 读取请求超时
	ReadTimeout time.Duration
}

// Rest 接收端
type Rest struct {
	Config     Config
	Automation *automation.Automation
	// Activity 执行历史，为空则不提供 history 接口
	Activity *engine.ActivityLog
	Logger   types.Logger
	Upgrader websocket.Upgrader
	router   *httprouter.Router
	server   *http.Server
	events   *hub
}

// New 创建Rest接收端并注册路由
func New(config Config, a *automation.Automation, activity *engine.ActivityLog) *Rest {
	if config.Server == "" {
		config.Server = DefaultAddr
	}
	logger := a.Engine.Config().Logger
	rest := &Rest{
		Config:     config,
		Automation: a,
		Activity:   activity,
		Logger:     types.NewLogger(logger),
		router:     httprouter.New(),
	}
	rest.Upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
	rest.events = newHub(rest.Logger)
	rest.events.attach(a.Engine)
	rest.routes()
	return rest
}

// Type 组件类型
func (rest *Rest) Type() string {
	return "http"
}

// Id 返回监听地址
func (rest *Rest) Id() string {
	return rest.Config.Server
}

// Router 返回路由，可以直接挂载到其他 http.Server
func (rest *Rest) Router() http.Handler {
	return rest.router
}

func (rest *Rest) routes() {
	r := rest.router
	r.GET(ApiPrefix+"/catalog", rest.handler(rest.catalog))
	r.GET(ApiPrefix+"/flows", rest.handler(rest.listFlows))
	r.PUT(ApiPrefix+"/flows/:id", rest.handler(rest.saveFlow))
	r.GET(ApiPrefix+"/flows/:id", rest.handler(rest.getFlow))
	r.DELETE(ApiPrefix+"/flows/:id", rest.handler(rest.deleteFlow))
	r.POST(ApiPrefix+"/flows/:id/activate", rest.handler(rest.activateFlow))
	r.POST(ApiPrefix+"/flows/:id/deactivate", rest.handler(rest.deactivateFlow))
	r.POST(ApiPrefix+"/flows/:id/executions", rest.handler(rest.execute))
	r.POST(ApiPrefix+"/events", rest.handler(rest.handleEvent))
	r.POST(ApiPrefix+"/signals", rest.handler(rest.signal))
	r.GET(ApiPrefix+"/executions", rest.handler(rest.listExecutions))
	r.GET(ApiPrefix+"/executions/:id", rest.handler(rest.getExecution))
	r.GET(ApiPrefix+"/executions/:id/history", rest.handler(rest.history))
	r.POST(ApiPrefix+"/executions/:id/pause", rest.handler(rest.pause))
	r.POST(ApiPrefix+"/executions/:id/resume", rest.handler(rest.resume))
	r.DELETE(ApiPrefix+"/executions/:id", rest.handler(rest.cancel))
	r.GET(ApiPrefix+"/metrics", rest.handler(rest.metrics))
	r.GET(ApiPrefix+"/ws/events", rest.handler(rest.streamEvents))
}

// Start 启动服务，阻塞直到服务停止
func (rest *Rest) Start() error {
	rest.server = &http.Server{
		Addr:              rest.Config.Server,
		Handler:           rest.router,
		ReadHeaderTimeout: rest.Config.ReadTimeout,
	}
	rest.Logger.Printf("started rest server on %s", rest.Config.Server)
	var err error
	if rest.Config.CertKeyFile != "" && rest.Config.CertFile != "" {
		err = rest.server.ListenAndServeTLS(rest.Config.CertFile, rest.Config.CertKeyFile)
	} else {
		err = rest.server.ListenAndServe()
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop 关闭服务和所有事件流连接
func (rest *Rest) Stop(ctx context.Context) error {
	rest.events.close()
	if rest.server == nil {
		return nil
	}
	return rest.server.Shutdown(ctx)
}

type handlerFunc func(w http.ResponseWriter, r *http.Request, params httprouter.Params) error

// handler 统一处理错误和 panic
func (rest *Rest) handler(fn handlerFunc) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
		defer func() {
			if e := recover(); e != nil {
				rest.Logger.Printf("rest handler err :%v", runtime.PanicError(e))
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}
		}()
		if err := fn(w, r, params); err != nil {
			rest.writeError(w, err)
		}
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (rest *Rest) writeError(w http.ResponseWriter, err error) {
	code := statusCode(err)
	if code == http.StatusInternalServerError {
		rest.Logger.Printf("rest request failed: %v", err)
	}
	writeJSON(w, code, errorResponse{Error: err.Error()})
}

// statusCode 把领域错误映射为HTTP状态码
func statusCode(err error) int {
	var bad badRequest
	switch {
	case errors.As(err, &bad):
		return http.StatusBadRequest
	case errors.Is(err, automation.ErrFlowNotFound),
		errors.Is(err, engine.ErrFlowNotFound),
		errors.Is(err, engine.ErrExecutionNotFound),
		errors.Is(err, types.ErrContactNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrExecutionNotPaused):
		return http.StatusConflict
	case errors.Is(err, automation.ErrInvalidFlow),
		errors.Is(err, automation.ErrEmptyFlowId),
		errors.Is(err, engine.ErrTriggerNotFound):
		return http.StatusUnprocessableEntity
	case errors.Is(err, engine.ErrEngineStopped):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// badRequest 请求体无法解析
type badRequest struct {
	err error
}

func (e badRequest) Error() string {
	return e.err.Error()
}

func (e badRequest) Unwrap() error {
	return e.err
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set(ContentTypeKey, JsonContentType)
	w.WriteHeader(code)
	_, _ = w.Write(body)
}
