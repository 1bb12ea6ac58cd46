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
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strings"

	"github.com/mailist-com/automation/api/types"
)

var ErrUnsupportedChannel = errors.New("unsupported message channel")

// SmtpConfig 邮件服务器配置
type SmtpConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	// From 发件人
	From string
	// EnableTls 465端口这种一开始就需要TLS连接的服务器
	EnableTls bool
}

// SmtpMessenger 通过SMTP发送邮件，只支持email渠道
type SmtpMessenger struct {
	Config SmtpConfig
	addr   string
	auth   smtp.Auth
	// send 发送函数，测试时可以替换
	send func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error
}

var _ types.Messenger = (*SmtpMessenger)(nil)

// NewSmtpMessenger 创建邮件发送协作者
func NewSmtpMessenger(config SmtpConfig) *SmtpMessenger {
	m := &SmtpMessenger{
		Config: config,
		addr:   fmt.Sprintf("%s:%d", config.Host, config.Port),
	}
	if config.Username != "" {
		m.auth = smtp.PlainAuth("", config.Username, config.Password, config.Host)
	}
	if config.EnableTls {
		m.send = m.sendWithTls
	} else {
		m.send = smtp.SendMail
	}
	return m
}

func (m *SmtpMessenger) SendMessage(ctx context.Context, contactId string, msg types.Message) error {
	if msg.Channel != types.ChannelEmail {
		return fmt.Errorf("%w: %s", ErrUnsupportedChannel, msg.Channel)
	}
	if msg.To == "" {
		return fmt.Errorf("contact %s has no email address", contactId)
	}
	return m.send(m.addr, m.auth, m.Config.From, []string{msg.To}, m.buildMessage(msg))
}

// buildMessage RFC 822 邮件内容
func (m *SmtpMessenger) buildMessage(msg types.Message) []byte {
	var b strings.Builder
	b.WriteString("To: " + msg.To + "\r\n")
	b.WriteString("From: " + m.Config.From + "\r\n")
	b.WriteString("Subject: " + msg.Subject + "\r\n")
	if msg.TemplateId != "" {
		b.WriteString("X-Template-Id: " + msg.TemplateId + "\r\n")
	}
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n\r\n")
	b.WriteString(msg.Content)
	return []byte(b.String())
}

func (m *SmtpMessenger) sendWithTls(addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
	host, _, _ := net.SplitHostPort(addr)
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: host})
	if err != nil {
		return err
	}
	c, err := smtp.NewClient(conn, host)
	if err != nil {
		return err
	}
	defer c.Close()
	if auth != nil {
		if err = c.Auth(auth); err != nil {
			return err
		}
	}
	if err = c.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err = c.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err = w.Write(msg); err != nil {
		return err
	}
	if err = w.Close(); err != nil {
		return err
	}
	return c.Quit()
}
