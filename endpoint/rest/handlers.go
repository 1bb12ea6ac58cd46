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
	"fmt"
	"io"
	"net/http"
	"sort"

	"github.com/julienschmidt/httprouter"
	"github.com/mailist-com/automation/api/types"
	"github.com/mailist-com/automation/dsl"
	"github.com/mailist-com/automation/engine"
	"github.com/mailist-com/automation/utils/json"
)

// maxBodySize 请求体最大字节数
const maxBodySize = 4 << 20

// definitionLister 可以列出全部节点类型的目录
type definitionLister interface {
	Definitions() []types.NodeTypeDefinition
}

// ExecuteRequest 手动启动执行的请求体
type ExecuteRequest struct {
	// ContactId 只提供联系人ID时从联系人服务查询
	ContactId string                 `json:"contactId,omitempty"`
	Contact   *types.Contact         `json:"contact,omitempty"`
	Variables map[string]interface{} `json:"variables,omitempty"`
	// TriggerNodeId 指定起始触发器，为空时使用ID最小的触发器
	TriggerNodeId string `json:"triggerNodeId,omitempty"`
}

// SignalRequest 外部事件，唤醒等待该事件的路径
type SignalRequest struct {
	ContactId string                 `json:"contactId"`
	EventName string                 `json:"eventName"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

type executionResponse struct {
	ExecutionId string `json:"executionId"`
	Error       string `json:"error,omitempty"`
}

type executionsResponse struct {
	ExecutionIds []string `json:"executionIds"`
}

type signalResponse struct {
	Resumed int `json:"resumed"`
}

type flowResponse struct {
	Id     string `json:"id"`
	Active bool   `json:"active"`
}

func readBody(r *http.Request, v interface{}) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return badRequest{err: err}
	}
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return badRequest{err: fmt.Errorf("invalid request body: %w", err)}
	}
	return nil
}

func (rest *Rest) catalog(w http.ResponseWriter, r *http.Request, _ httprouter.Params) error {
	lister, ok := rest.Automation.Engine.Config().Catalog.(definitionLister)
	if !ok {
		writeJSON(w, http.StatusOK, []types.NodeTypeDefinition{})
		return nil
	}
	writeJSON(w, http.StatusOK, lister.Definitions())
	return nil
}

func (rest *Rest) listFlows(w http.ResponseWriter, r *http.Request, _ httprouter.Params) error {
	ids, err := rest.Automation.Flows.List(r.Context())
	if err != nil {
		return err
	}
	flows := make([]flowResponse, 0, len(ids))
	for _, id := range ids {
		flows = append(flows, flowResponse{Id: id, Active: rest.Automation.Flows.IsActive(id)})
	}
	writeJSON(w, http.StatusOK, flows)
	return nil
}

func (rest *Rest) saveFlow(w http.ResponseWriter, r *http.Request, params httprouter.Params) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return badRequest{err: err}
	}
	graph, err := dsl.ParseFlow(body)
	if err != nil {
		return badRequest{err: err}
	}
	id := params.ByName("id")
	if err := rest.Automation.Flows.Save(r.Context(), id, graph); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, flowResponse{Id: id, Active: rest.Automation.Flows.IsActive(id)})
	return nil
}

func (rest *Rest) getFlow(w http.ResponseWriter, r *http.Request, params httprouter.Params) error {
	graph, err := rest.Automation.Flows.Load(r.Context(), params.ByName("id"))
	if err != nil {
		return err
	}
	body, err := dsl.EncodeFlow(graph)
	if err != nil {
		return err
	}
	w.Header().Set(ContentTypeKey, JsonContentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
	return nil
}

func (rest *Rest) deleteFlow(w http.ResponseWriter, r *http.Request, params httprouter.Params) error {
	if err := rest.Automation.Flows.Delete(r.Context(), params.ByName("id")); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (rest *Rest) activateFlow(w http.ResponseWriter, r *http.Request, params httprouter.Params) error {
	id := params.ByName("id")
	if err := rest.Automation.Flows.Activate(r.Context(), id); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, flowResponse{Id: id, Active: true})
	return nil
}

func (rest *Rest) deactivateFlow(w http.ResponseWriter, r *http.Request, params httprouter.Params) error {
	id := params.ByName("id")
	if err := rest.Automation.Flows.Deactivate(r.Context(), id); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, flowResponse{Id: id, Active: false})
	return nil
}

func (rest *Rest) execute(w http.ResponseWriter, r *http.Request, params httprouter.Params) error {
	var req ExecuteRequest
	if err := readBody(r, &req); err != nil {
		return err
	}
	var contact types.Contact
	switch {
	case req.Contact != nil:
		contact = *req.Contact
	case req.ContactId != "":
		contacts := rest.Automation.Engine.Config().Contacts
		if contacts == nil {
			contact = types.Contact{Id: req.ContactId}
		} else {
			c, err := contacts.GetContact(r.Context(), req.ContactId)
			if err != nil {
				return err
			}
			contact = c
		}
	default:
		return badRequest{err: fmt.Errorf("contact or contactId is required")}
	}
	var opts []engine.StartOption
	if req.TriggerNodeId != "" {
		opts = append(opts, engine.WithTriggerNode(req.TriggerNodeId))
	}
	id, err := rest.Automation.Execute(r.Context(), params.ByName("id"), contact, req.Variables, opts...)
	if err != nil && id == "" {
		return err
	}
	if err != nil {
		// 执行已创建并立即失败，仍返回执行ID
		writeJSON(w, statusCode(err), executionResponse{ExecutionId: id, Error: err.Error()})
		return nil
	}
	writeJSON(w, http.StatusAccepted, executionResponse{ExecutionId: id})
	return nil
}

func (rest *Rest) handleEvent(w http.ResponseWriter, r *http.Request, _ httprouter.Params) error {
	var event types.TriggerEvent
	if err := readBody(r, &event); err != nil {
		return err
	}
	if event.Subtype == "" || event.ContactId == "" {
		return badRequest{err: fmt.Errorf("subtype and contactId are required")}
	}
	ids, err := rest.Automation.HandleEvent(r.Context(), event)
	if err != nil && len(ids) == 0 {
		return err
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusAccepted, executionsResponse{ExecutionIds: ids})
	return nil
}

func (rest *Rest) signal(w http.ResponseWriter, r *http.Request, _ httprouter.Params) error {
	var req SignalRequest
	if err := readBody(r, &req); err != nil {
		return err
	}
	if req.ContactId == "" || req.EventName == "" {
		return badRequest{err: fmt.Errorf("contactId and eventName are required")}
	}
	n, err := rest.Automation.Engine.Signal(r.Context(), req.ContactId, req.EventName, req.Data)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, signalResponse{Resumed: n})
	return nil
}

func (rest *Rest) listExecutions(w http.ResponseWriter, r *http.Request, _ httprouter.Params) error {
	list := rest.Automation.Engine.ListActive()
	sort.Slice(list, func(i, j int) bool {
		if list[i].StartedAt.Equal(list[j].StartedAt) {
			return list[i].ExecutionId < list[j].ExecutionId
		}
		return list[i].StartedAt.Before(list[j].StartedAt)
	})
	writeJSON(w, http.StatusOK, list)
	return nil
}

func (rest *Rest) getExecution(w http.ResponseWriter, r *http.Request, params httprouter.Params) error {
	exec, ok := rest.Automation.Engine.GetExecution(params.ByName("id"))
	if !ok {
		return engine.ErrExecutionNotFound
	}
	writeJSON(w, http.StatusOK, exec)
	return nil
}

func (rest *Rest) history(w http.ResponseWriter, r *http.Request, params httprouter.Params) error {
	if rest.Activity == nil {
		http.NotFound(w, r)
		return nil
	}
	events, err := rest.Activity.History(r.Context(), params.ByName("id"))
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return engine.ErrExecutionNotFound
	}
	writeJSON(w, http.StatusOK, events)
	return nil
}

func (rest *Rest) pause(w http.ResponseWriter, r *http.Request, params httprouter.Params) error {
	if err := rest.Automation.Engine.Pause(r.Context(), params.ByName("id")); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (rest *Rest) resume(w http.ResponseWriter, r *http.Request, params httprouter.Params) error {
	if err := rest.Automation.Engine.Resume(r.Context(), params.ByName("id")); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (rest *Rest) cancel(w http.ResponseWriter, r *http.Request, params httprouter.Params) error {
	if err := rest.Automation.Engine.Cancel(r.Context(), params.ByName("id")); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (rest *Rest) metrics(w http.ResponseWriter, r *http.Request, _ httprouter.Params) error {
	writeJSON(w, http.StatusOK, rest.Automation.Engine.Metrics())
	return nil
}
