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

// Package external 外部协作者适配器：联系人、消息发送、外部请求以及执行事件发布。
//
// Package external adapts the collaborator interfaces consumed by node handlers
// to concrete backends: an in-memory and an SQL contact book, an SMTP messenger,
// an HTTP requester and an MQTT event publisher.
package external

import (
	"context"
	"fmt"
	"sync"

	"github.com/mailist-com/automation/api/types"
)

// MemoryContactBook 内存联系人簿，用于测试和单机部署
type MemoryContactBook struct {
	contacts map[string]types.Contact
	sync.RWMutex
}

var _ types.ContactService = (*MemoryContactBook)(nil)

// NewMemoryContactBook 创建内存联系人簿
func NewMemoryContactBook(contacts ...types.Contact) *MemoryContactBook {
	b := &MemoryContactBook{contacts: make(map[string]types.Contact)}
	for _, c := range contacts {
		b.Put(c)
	}
	return b
}

// Put 新增或者替换联系人
func (b *MemoryContactBook) Put(contact types.Contact) {
	b.Lock()
	defer b.Unlock()
	b.contacts[contact.Id] = contact.Copy()
}

func (b *MemoryContactBook) GetContact(ctx context.Context, contactId string) (types.Contact, error) {
	b.RLock()
	defer b.RUnlock()
	c, ok := b.contacts[contactId]
	if !ok {
		return types.Contact{}, fmt.Errorf("%w: %s", types.ErrContactNotFound, contactId)
	}
	return c.Copy(), nil
}

func (b *MemoryContactBook) AddTag(ctx context.Context, contactId string, tag string) error {
	return b.update(contactId, func(c *types.Contact) { c.AddTag(tag) })
}

func (b *MemoryContactBook) RemoveTag(ctx context.Context, contactId string, tag string) error {
	return b.update(contactId, func(c *types.Contact) { c.RemoveTag(tag) })
}

func (b *MemoryContactBook) AddToList(ctx context.Context, contactId string, listId string) error {
	return b.update(contactId, func(c *types.Contact) { c.AddToList(listId) })
}

func (b *MemoryContactBook) RemoveFromList(ctx context.Context, contactId string, listId string) error {
	return b.update(contactId, func(c *types.Contact) { c.RemoveFromList(listId) })
}

func (b *MemoryContactBook) UpdateFields(ctx context.Context, contactId string, fields map[string]interface{}) error {
	return b.update(contactId, func(c *types.Contact) {
		for k, v := range fields {
			c.SetField(k, v)
		}
	})
}

func (b *MemoryContactBook) update(contactId string, fn func(c *types.Contact)) error {
	b.Lock()
	defer b.Unlock()
	c, ok := b.contacts[contactId]
	if !ok {
		return fmt.Errorf("%w: %s", types.ErrContactNotFound, contactId)
	}
	fn(&c)
	b.contacts[contactId] = c
	return nil
}

// SentMessage 已发送的消息
type SentMessage struct {
	ContactId string
	Message   types.Message
}

// RecordingMessenger 只记录不发送的消息协作者，用于测试和演练
type RecordingMessenger struct {
	sent []SentMessage
	// Err 不为空时每次发送都返回该错误
	Err error
	sync.Mutex
}

var _ types.Messenger = (*RecordingMessenger)(nil)

func (m *RecordingMessenger) SendMessage(ctx context.Context, contactId string, msg types.Message) error {
	m.Lock()
	defer m.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.sent = append(m.sent, SentMessage{ContactId: contactId, Message: msg})
	return nil
}

// Sent 返回已发送消息的副本
func (m *RecordingMessenger) Sent() []SentMessage {
	m.Lock()
	defer m.Unlock()
	result := make([]SentMessage, len(m.sent))
	copy(result, m.sent)
	return result
}
