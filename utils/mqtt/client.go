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

// Package mqtt wraps the paho client for publishing execution events and
// receiving trigger events from a broker.
package mqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/mailist-com/automation/utils/str"
)

// ErrServerRequired broker地址为空
var ErrServerRequired = errors.New("mqtt server is required")

// Handler 订阅数据处理器
type Handler struct {
	//订阅主题
	Topic string
	//订阅Qos
	Qos byte
	//接收订阅数据 处理
	Handle func(topic string, payload []byte)
}

// Config 客户端配置
type Config struct {
	//mqtt broker 地址，例如：tcp://127.0.0.1:1883
	Server   string
	Username string
	Password string
	//重连重试间隔
	MaxReconnectInterval time.Duration
	QOS                  uint8
	CleanSession         bool
	//client Id，为空则随机生成
	ClientID    string
	CAFile      string
	CertFile    string
	CertKeyFile string
}

// Client mqtt客户端
type Client struct {
	sync.RWMutex
	client paho.Client
	//订阅主题和处理器映射，重连后重新订阅
	handlers map[string]Handler
}

// NewClient 创建一个MQTT客户端实例，连接失败会一直重试直到ctx结束
func NewClient(ctx context.Context, conf Config) (*Client, error) {
	if conf.Server == "" {
		return nil, ErrServerRequired
	}
	b := &Client{
		handlers: make(map[string]Handler),
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(conf.Server)
	opts.SetUsername(conf.Username)
	opts.SetPassword(conf.Password)
	opts.SetCleanSession(conf.CleanSession)
	if conf.ClientID == "" {
		opts.SetClientID("automation/" + str.RandomStr(8))
	} else {
		opts.SetClientID(conf.ClientID)
	}
	opts.SetOnConnectHandler(func(c paho.Client) {
		b.resubscribe()
	})
	if conf.MaxReconnectInterval <= 0 {
		conf.MaxReconnectInterval = time.Second * 60
	}
	opts.SetMaxReconnectInterval(conf.MaxReconnectInterval)

	tlsConfig, err := newTLSConfig(conf.CAFile, conf.CertFile, conf.CertKeyFile)
	if err != nil {
		return nil, fmt.Errorf("error loading mqtt certificate files,ca_cert=%s,tls_cert=%s,tls_key=%s: %w", conf.CAFile, conf.CertFile, conf.CertKeyFile, err)
	}
	if tlsConfig != nil {
		opts.SetTLSConfig(tlsConfig)
	}
	b.client = paho.NewClient(opts)

	for {
		token := b.client.Connect()
		if token.Wait() && token.Error() == nil {
			return b, nil
		}
		select {
		case <-ctx.Done():
			return nil, token.Error()
		case <-time.After(2 * time.Second):
		}
	}
}

// Publish 发布数据
func (b *Client) Publish(topic string, qos byte, data []byte) error {
	token := b.client.Publish(topic, qos, false, data)
	token.Wait()
	return token.Error()
}

// Subscribe 注册订阅数据处理器
func (b *Client) Subscribe(handler Handler) error {
	b.Lock()
	b.handlers[handler.Topic] = handler
	b.Unlock()
	return b.subscribe(handler)
}

// Unsubscribe 删除订阅数据处理器
func (b *Client) Unsubscribe(topic string) error {
	b.Lock()
	defer b.Unlock()
	if _, ok := b.handlers[topic]; !ok {
		return nil
	}
	token := b.client.Unsubscribe(topic)
	if token.Wait() && token.Error() != nil {
		return token.Error()
	}
	delete(b.handlers, topic)
	return nil
}

// Close 取消所有订阅并断开连接
func (b *Client) Close() error {
	b.RLock()
	topics := make([]string, 0, len(b.handlers))
	for topic := range b.handlers {
		topics = append(topics, topic)
	}
	b.RUnlock()
	if len(topics) > 0 {
		b.client.Unsubscribe(topics...).WaitTimeout(time.Second)
	}
	b.client.Disconnect(500)
	return nil
}

func (b *Client) resubscribe() {
	b.RLock()
	handlers := make([]Handler, 0, len(b.handlers))
	for _, handler := range b.handlers {
		handlers = append(handlers, handler)
	}
	b.RUnlock()
	for _, handler := range handlers {
		_ = b.subscribe(handler)
	}
}

func (b *Client) subscribe(handler Handler) error {
	token := b.client.Subscribe(handler.Topic, handler.Qos, func(c paho.Client, m paho.Message) {
		handler.Handle(m.Topic(), m.Payload())
	})
	token.Wait()
	if err := token.Error(); err != nil {
		return err
	}
	//128 ACK错误，没有订阅权限
	if st, ok := token.(*paho.SubscribeToken); ok {
		if result, ok := st.Result()[handler.Topic]; ok && result == 128 {
			return fmt.Errorf("subscribe %s rejected by broker", handler.Topic)
		}
	}
	return nil
}

func newTLSConfig(caFile, certFile, certKeyFile string) (*tls.Config, error) {
	if caFile == "" && certFile == "" && certKeyFile == "" {
		return nil, nil
	}
	tlsConfig := &tls.Config{}
	if caFile != "" {
		caCert, err := os.ReadFile(caFile)
		if err != nil {
			return nil, err
		}
		certPool := x509.NewCertPool()
		certPool.AppendCertsFromPEM(caCert)
		tlsConfig.RootCAs = certPool
	}
	if certFile != "" && certKeyFile != "" {
		kp, err := tls.LoadX509KeyPair(certFile, certKeyFile)
		if err != nil {
			return nil, err
		}
		tlsConfig.Certificates = []tls.Certificate{kp}
	}
	return tlsConfig, nil
}
