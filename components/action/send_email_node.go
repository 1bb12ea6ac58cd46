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
	"errors"

	"github.com/mailist-com/automation/api/types"
	"github.com/mailist-com/automation/components/base"
	"github.com/mailist-com/automation/utils/el"
	"github.com/mailist-com/automation/utils/maps"
)

var (
	ErrNoEmailAddress = errors.New("contact has no email address")
	ErrNoPhoneNumber  = errors.New("contact has no phone number")
)

func init() {
	Registry.Add(&SendEmailNode{})
	Registry.Add(&SendSmsNode{})
}

// SendEmailNodeConfiguration 节点配置
type SendEmailNodeConfiguration struct {
	// Subject 邮件主题，支持${}模板，例如：Hi ${contact.firstName}
	Subject string
	// Content 邮件内容，支持${}模板
	Content string
	// TemplateId 消息模板ID，和Content二选一
	TemplateId string
}

// SendEmailNode 给联系人发送邮件
// 消息通过 Config.Messenger 发送，成功后输出 data.messageSent=email
type SendEmailNode struct {
	Config          SendEmailNodeConfiguration
	subjectTemplate el.Template
	contentTemplate el.Template
}

func (x *SendEmailNode) Type() string {
	return types.ComponentType(types.Action, "send_email")
}

func (x *SendEmailNode) New() types.Node {
	return &SendEmailNode{}
}

func (x *SendEmailNode) Init(config types.Config, configuration types.Configuration) error {
	err := maps.Map2Struct(configuration, &x.Config)
	if err != nil {
		return err
	}
	if x.subjectTemplate, err = base.NodeUtils.NewTemplate(x.Config.Subject); err != nil {
		return err
	}
	x.contentTemplate, err = base.NodeUtils.NewTemplate(x.Config.Content)
	return err
}

func (x *SendEmailNode) OnExecute(ctx types.NodeContext, exec *types.ExecutionContext) types.Result {
	messenger, err := base.NodeUtils.Messenger(ctx)
	if err != nil {
		return types.Failure(err)
	}
	if exec.Contact.Email == "" {
		return types.Failure(ErrNoEmailAddress)
	}
	env := base.NodeUtils.GetEnv(ctx, exec)
	msg := types.Message{
		Channel:    types.ChannelEmail,
		To:         exec.Contact.Email,
		Subject:    x.subjectTemplate.ExecuteAsString(env),
		Content:    x.contentTemplate.ExecuteAsString(env),
		TemplateId: x.Config.TemplateId,
	}
	if err := messenger.SendMessage(ctx.GetContext(), exec.ContactId, msg); err != nil {
		return types.Failure(err)
	}
	return types.Success(map[string]interface{}{
		"messageSent": types.ChannelEmail,
		"to":          msg.To,
	})
}

func (x *SendEmailNode) Destroy() {
}

// SendSmsNodeConfiguration 节点配置
type SendSmsNodeConfiguration struct {
	// Content 短信内容，支持${}模板
	Content string
}

// SendSmsNode 给联系人发送短信
type SendSmsNode struct {
	Config          SendSmsNodeConfiguration
	contentTemplate el.Template
}

func (x *SendSmsNode) Type() string {
	return types.ComponentType(types.Action, "send_sms")
}

func (x *SendSmsNode) New() types.Node {
	return &SendSmsNode{}
}

func (x *SendSmsNode) Init(config types.Config, configuration types.Configuration) error {
	err := maps.Map2Struct(configuration, &x.Config)
	if err != nil {
		return err
	}
	x.contentTemplate, err = base.NodeUtils.NewTemplate(x.Config.Content)
	return err
}

func (x *SendSmsNode) OnExecute(ctx types.NodeContext, exec *types.ExecutionContext) types.Result {
	messenger, err := base.NodeUtils.Messenger(ctx)
	if err != nil {
		return types.Failure(err)
	}
	if exec.Contact.Phone == "" {
		return types.Failure(ErrNoPhoneNumber)
	}
	msg := types.Message{
		Channel: types.ChannelSms,
		To:      exec.Contact.Phone,
		Content: x.contentTemplate.ExecuteAsString(base.NodeUtils.GetEnv(ctx, exec)),
	}
	if err := messenger.SendMessage(ctx.GetContext(), exec.ContactId, msg); err != nil {
		return types.Failure(err)
	}
	return types.Success(map[string]interface{}{
		"messageSent": types.ChannelSms,
		"to":          msg.To,
	})
}

func (x *SendSmsNode) Destroy() {
}
