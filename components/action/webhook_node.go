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

package action

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/mailist-com/automation/api/types"
	"github.com/mailist-com/automation/components/base"
	"github.com/mailist-com/automation/utils/el"
	"github.com/mailist-com/automation/utils/json"
	"github.com/mailist-com/automation/utils/maps"
)

func init() {
	Registry.Add(&WebhookNode{})
}

// WebhookNodeConfiguration 节点配置
type WebhookNodeConfiguration struct {
	// Url 请求地址，支持${}模板，例如：https://api.example.com/contacts/${contact.id}
	Url string
	// Method 请求方法，默认POST
	Method string
	// Headers 请求头，value支持${}模板
	Headers map[string]string
	// Body 请求体，支持${}模板，为空时发送联系人和变量的JSON
	Body string
	// RouteErrors 请求失败或者响应码>=400时走error输出，否则终止当前路径
	RouteErrors bool
	// ResponseVar 把响应体保存到该执行变量，JSON响应会被解析
	ResponseVar string
}

// WebhookNode 调用外部HTTP接口
type WebhookNode struct {
	Config          WebhookNodeConfiguration
	urlTemplate     el.Template
	bodyTemplate    el.Template
	headerTemplates map[string]el.Template
}

func (x *WebhookNode) Type() string {
	return types.ComponentType(types.Action, "webhook")
}

func (x *WebhookNode) New() types.Node {
	return &WebhookNode{Config: WebhookNodeConfiguration{Method: http.MethodPost}}
}

func (x *WebhookNode) Init(config types.Config, configuration types.Configuration) error {
	err := maps.Map2Struct(configuration, &x.Config)
	if err != nil {
		return err
	}
	x.Config.Method = strings.ToUpper(strings.TrimSpace(x.Config.Method))
	if x.Config.Method == "" {
		x.Config.Method = http.MethodPost
	}
	if x.urlTemplate, err = base.NodeUtils.NewTemplate(x.Config.Url); err != nil {
		return err
	}
	if x.bodyTemplate, err = base.NodeUtils.NewTemplate(x.Config.Body); err != nil {
		return err
	}
	x.headerTemplates = make(map[string]el.Template, len(x.Config.Headers))
	for k, v := range x.Config.Headers {
		if x.headerTemplates[k], err = base.NodeUtils.NewTemplate(v); err != nil {
			return err
		}
	}
	return nil
}

func (x *WebhookNode) OnExecute(ctx types.NodeContext, exec *types.ExecutionContext) types.Result {
	requester, err := base.NodeUtils.Requester(ctx)
	if err != nil {
		return types.Failure(err)
	}
	req, err := x.buildRequest(ctx, exec)
	if err != nil {
		return x.fail(err, 0)
	}
	resp, err := requester.Do(ctx.GetContext(), req)
	if err != nil {
		return x.fail(err, 0)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return x.fail(fmt.Errorf("webhook %s %s: %s", req.Method, req.Url, resp.Status), resp.StatusCode)
	}
	if x.Config.ResponseVar != "" {
		var parsed interface{}
		if json.Unmarshal(resp.Body, &parsed) == nil {
			exec.SetVar(x.Config.ResponseVar, parsed)
		} else {
			exec.SetVar(x.Config.ResponseVar, string(resp.Body))
		}
	}
	return types.Route(types.Output, map[string]interface{}{
		"statusCode": resp.StatusCode,
		"url":        req.Url,
	})
}

func (x *WebhookNode) Destroy() {
}

func (x *WebhookNode) buildRequest(ctx types.NodeContext, exec *types.ExecutionContext) (types.Request, error) {
	env := base.NodeUtils.GetEnv(ctx, exec)
	req := types.Request{
		Url:     x.urlTemplate.ExecuteAsString(env),
		Method:  x.Config.Method,
		Headers: make(map[string]string, len(x.headerTemplates)),
	}
	for k, tmpl := range x.headerTemplates {
		req.Headers[k] = tmpl.ExecuteAsString(env)
	}
	if req.Method == http.MethodGet || req.Method == http.MethodHead {
		return req, nil
	}
	if x.Config.Body != "" {
		req.Body = []byte(x.bodyTemplate.ExecuteAsString(env))
		return req, nil
	}
	body, err := json.Marshal(map[string]interface{}{
		types.ContactKey:     exec.Contact,
		types.VarsKey:        exec.Variables,
		types.ExecutionIdKey: exec.ExecutionId,
	})
	if err != nil {
		return req, err
	}
	if _, ok := req.Headers["Content-Type"]; !ok {
		req.Headers["Content-Type"] = "application/json"
	}
	req.Body = body
	return req, nil
}

func (x *WebhookNode) fail(err error, statusCode int) types.Result {
	if !x.Config.RouteErrors {
		return types.Failure(err)
	}
	data := map[string]interface{}{"error": err.Error()}
	if statusCode > 0 {
		data["statusCode"] = statusCode
	}
	return types.Route(types.OutputError, data)
}
