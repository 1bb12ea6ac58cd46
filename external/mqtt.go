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

package external

import (
	"errors"
	"strings"

	"github.com/mailist-com/automation/api/types"
	"github.com/mailist-com/automation/utils/json"
	"github.com/mailist-com/automation/utils/mqtt"
)

// DefaultEventTopic 执行事件主题前缀，完整主题：automation/executions/{executionId}/{type}
const DefaultEventTopic = "automation/executions"

// Publisher 消息发布者，*mqtt.Client 实现了该接口
type Publisher interface {
	Publish(topic string, qos byte, data []byte) error
}

// MqttEventPublisher 把执行事件发布到MQTT
type MqttEventPublisher struct {
	publisher Publisher
	Topic     string
	Qos       byte
	Logger    types.Logger
}

// NewMqttEventPublisher 创建事件发布者
func NewMqttEventPublisher(publisher Publisher, topic string, qos byte, logger types.Logger) *MqttEventPublisher {
	if topic == "" {
		topic = DefaultEventTopic
	}
	return &MqttEventPublisher{
		publisher: publisher,
		Topic:     strings.TrimSuffix(topic, "/"),
		Qos:       qos,
		Logger:    types.NewLogger(logger),
	}
}

// OnEvent 事件订阅函数，失败只记录日志
func (p *MqttEventPublisher) OnEvent(event types.ExecutionEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		p.Logger.Printf("marshal execution event error: %s", err.Error())
		return
	}
	topic := p.Topic + "/" + event.ExecutionId + "/" + string(event.Type)
	if err := p.publisher.Publish(topic, p.Qos, data); err != nil {
		p.Logger.Printf("publish execution event to %s error: %s", topic, err.Error())
	}
}

// Subscriber 消息订阅者，*mqtt.Client 实现了该接口
type Subscriber interface {
	Subscribe(handler mqtt.Handler) error
}

// SubscribeTriggers 订阅触发事件主题，payload是TriggerEvent的JSON
func SubscribeTriggers(subscriber Subscriber, topic string, qos byte, logger types.Logger, handle func(event types.TriggerEvent)) error {
	if topic == "" {
		return errors.New("trigger topic is required")
	}
	logger = types.NewLogger(logger)
	return subscriber.Subscribe(mqtt.Handler{
		Topic: topic,
		Qos:   qos,
		Handle: func(topic string, payload []byte) {
			var event types.TriggerEvent
			if err := json.Unmarshal(payload, &event); err != nil {
				logger.Printf("invalid trigger event on %s: %s", topic, err.Error())
				return
			}
			if event.Subtype == "" || event.ContactId == "" {
				logger.Printf("trigger event on %s missing subtype or contactId", topic)
				return
			}
			handle(event)
		},
	})
}
