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

package types

import (
	"context"
	"errors"

	"github.com/mailist-com/automation/utils/maps"
)

// ErrContactNotFound 联系人不存在
var ErrContactNotFound = errors.New("contact not found")

// 联系人内置字段
const (
	ContactFieldId    = "id"
	ContactFieldEmail = "email"
	ContactFieldPhone = "phone"
	ContactFieldTags  = "tags"
	ContactFieldLists = "lists"
)

// Contact 联系人，执行上下文持有其可变的工作副本
type Contact struct {
	Id     string                 `json:"id"`
	Email  string                 `json:"email,omitempty"`
	Phone  string                 `json:"phone,omitempty"`
	Tags   []string               `json:"tags,omitempty"`
	Lists  []string               `json:"lists,omitempty"`
	Fields map[string]interface{} `json:"fields,omitempty"`
}

// Copy 深拷贝联系人
func (c Contact) Copy() Contact {
	c.Tags = copyStrings(c.Tags)
	c.Lists = copyStrings(c.Lists)
	c.Fields = maps.DeepCopy(c.Fields)
	return c
}

// HasTag 是否有该标签
func (c *Contact) HasTag(tag string) bool {
	return contains(c.Tags, tag)
}

// InList 是否属于该列表
func (c *Contact) InList(listId string) bool {
	return contains(c.Lists, listId)
}

// AddTag 添加标签，已存在则忽略
func (c *Contact) AddTag(tag string) {
	if !c.HasTag(tag) {
		c.Tags = append(c.Tags, tag)
	}
}

// RemoveTag 删除标签
func (c *Contact) RemoveTag(tag string) {
	c.Tags = remove(c.Tags, tag)
}

// AddToList 加入列表
func (c *Contact) AddToList(listId string) {
	if !c.InList(listId) {
		c.Lists = append(c.Lists, listId)
	}
}

// RemoveFromList 移出列表
func (c *Contact) RemoveFromList(listId string) {
	c.Lists = remove(c.Lists, listId)
}

// SetField 设置字段，内置字段会写入对应属性
func (c *Contact) SetField(name string, value interface{}) {
	switch name {
	case ContactFieldEmail:
		if s, ok := value.(string); ok {
			c.Email = s
			return
		}
	case ContactFieldPhone:
		if s, ok := value.(string); ok {
			c.Phone = s
			return
		}
	}
	if c.Fields == nil {
		c.Fields = make(map[string]interface{})
	}
	c.Fields[name] = value
}

// Field 获取字段值，第二个返回值表示字段是否存在
func (c *Contact) Field(name string) (interface{}, bool) {
	switch name {
	case ContactFieldId:
		return c.Id, c.Id != ""
	case ContactFieldEmail:
		return c.Email, c.Email != ""
	case ContactFieldPhone:
		return c.Phone, c.Phone != ""
	case ContactFieldTags:
		return c.Tags, len(c.Tags) > 0
	case ContactFieldLists:
		return c.Lists, len(c.Lists) > 0
	}
	if c.Fields == nil {
		return nil, false
	}
	if v, ok := c.Fields[name]; ok {
		return v, v != nil
	}
	if v := maps.Get(c.Fields, name); v != nil {
		return v, true
	}
	return nil, false
}

// ToMap 转换成模板/表达式可用的map，自定义字段被展开到顶层
func (c *Contact) ToMap() map[string]interface{} {
	m := make(map[string]interface{}, len(c.Fields)+5)
	for k, v := range c.Fields {
		m[k] = v
	}
	m[ContactFieldId] = c.Id
	m[ContactFieldEmail] = c.Email
	m[ContactFieldPhone] = c.Phone
	m[ContactFieldTags] = copyStrings(c.Tags)
	m[ContactFieldLists] = copyStrings(c.Lists)
	return m
}

// ContactService 联系人协作者：由外部CRUD层提供
type ContactService interface {
	GetContact(ctx context.Context, contactId string) (Contact, error)
	AddTag(ctx context.Context, contactId string, tag string) error
	RemoveTag(ctx context.Context, contactId string, tag string) error
	AddToList(ctx context.Context, contactId string, listId string) error
	RemoveFromList(ctx context.Context, contactId string, listId string) error
	UpdateFields(ctx context.Context, contactId string, fields map[string]interface{}) error
}

// 消息渠道
const (
	ChannelEmail = "email"
	ChannelSms   = "sms"
)

// Message 发送给联系人的消息
type Message struct {
	Channel    string `json:"channel"`
	To         string `json:"to"`
	Subject    string `json:"subject,omitempty"`
	Content    string `json:"content,omitempty"`
	TemplateId string `json:"templateId,omitempty"`
}

// Messenger 消息发送能力
type Messenger interface {
	SendMessage(ctx context.Context, contactId string, msg Message) error
}

// Request 外部HTTP请求
type Request struct {
	Url     string            `json:"url"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    []byte            `json:"body,omitempty"`
}

// Response 外部HTTP响应
type Response struct {
	StatusCode int               `json:"statusCode"`
	Status     string            `json:"status"`
	Headers    map[string]string `json:"headers,omitempty"`
	Body       []byte            `json:"body,omitempty"`
}

// Requester 外部请求能力
type Requester interface {
	Do(ctx context.Context, req Request) (Response, error)
}

func remove(list []string, target string) []string {
	var result []string
	for _, item := range list {
		if item != target {
			result = append(result, item)
		}
	}
	return result
}
