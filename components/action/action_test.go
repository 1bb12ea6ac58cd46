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
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/mailist-com/automation/api/types"
	"github.com/mailist-com/automation/external"
	"github.com/mailist-com/automation/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type requesterFunc func(ctx context.Context, req types.Request) (types.Response, error)

func (f requesterFunc) Do(ctx context.Context, req types.Request) (types.Response, error) {
	return f(ctx, req)
}

type logBuffer struct {
	lines []string
}

func (l *logBuffer) Printf(format string, v ...interface{}) {
	l.lines = append(l.lines, fmt.Sprintf(format, v...))
}

func newContact() types.Contact {
	return types.Contact{
		Id:     "c1",
		Email:  "ann@example.com",
		Phone:  "+48100200300",
		Tags:   []string{"vip"},
		Fields: map[string]interface{}{"firstName": "Ann", "score": 10},
	}
}

func TestRegistry(t *testing.T) {
	test.NodeNew(t, "action/send_email", &SendEmailNode{}, Registry)
	test.NodeNew(t, "action/send_sms", &SendSmsNode{}, Registry)
	test.NodeNew(t, "action/add_tag", &AddTagNode{}, Registry)
	test.NodeNew(t, "action/remove_tag", &RemoveTagNode{}, Registry)
	test.NodeNew(t, "action/add_to_list", &AddToListNode{}, Registry)
	test.NodeNew(t, "action/remove_from_list", &RemoveFromListNode{}, Registry)
	test.NodeNew(t, "action/update_field", &UpdateFieldNode{}, Registry)
	test.NodeNew(t, "action/log", &LogNode{}, Registry)
	test.NodeNew(t, "action/webhook", &WebhookNode{}, Registry)
}

func TestSendEmailNode(t *testing.T) {
	messenger := &external.RecordingMessenger{}
	config := types.NewConfig(types.WithMessenger(messenger))

	node, err := test.CreateAndInitNode("action/send_email", types.Configuration{
		"subject": "Hi ${contact.firstName}",
		"content": "Your score is ${contact.score}",
	}, Registry, config)
	require.Nil(t, err)

	t.Run("Sent", func(t *testing.T) {
		result := test.Execute(node, config, nil, test.NewExecution(newContact(), nil))
		assert.Nil(t, result.Err)
		assert.Equal(t, types.ChannelEmail, result.Data["messageSent"])
		sent := messenger.Sent()
		require.Len(t, sent, 1)
		assert.Equal(t, "c1", sent[0].ContactId)
		assert.Equal(t, "ann@example.com", sent[0].Message.To)
		assert.Equal(t, "Hi Ann", sent[0].Message.Subject)
		assert.Equal(t, "Your score is 10", sent[0].Message.Content)
	})

	t.Run("NoEmail", func(t *testing.T) {
		contact := newContact()
		contact.Email = ""
		result := test.Execute(node, config, nil, test.NewExecution(contact, nil))
		assert.Equal(t, ErrNoEmailAddress, result.Err)
	})

	t.Run("MessengerError", func(t *testing.T) {
		failing := &external.RecordingMessenger{Err: errors.New("smtp down")}
		result := test.Execute(node, types.NewConfig(types.WithMessenger(failing)), nil, test.NewExecution(newContact(), nil))
		assert.EqualError(t, result.Err, "smtp down")
	})

	t.Run("NoMessenger", func(t *testing.T) {
		result := test.Execute(node, types.NewConfig(), nil, test.NewExecution(newContact(), nil))
		assert.NotNil(t, result.Err)
	})
}

func TestSendSmsNode(t *testing.T) {
	messenger := &external.RecordingMessenger{}
	config := types.NewConfig(types.WithMessenger(messenger))
	node, err := test.CreateAndInitNode("action/send_sms", types.Configuration{"content": "Code ${vars.coupon}"}, Registry, config)
	require.Nil(t, err)

	result := test.Execute(node, config, nil, test.NewExecution(newContact(), map[string]interface{}{"coupon": "X1"}))
	assert.Nil(t, result.Err)
	sent := messenger.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, types.ChannelSms, sent[0].Message.Channel)
	assert.Equal(t, "Code X1", sent[0].Message.Content)

	contact := newContact()
	contact.Phone = ""
	result = test.Execute(node, config, nil, test.NewExecution(contact, nil))
	assert.Equal(t, ErrNoPhoneNumber, result.Err)
}

func TestContactNodes(t *testing.T) {
	book := external.NewMemoryContactBook(newContact())
	config := types.NewConfig(types.WithContacts(book))
	exec := test.NewExecution(newContact(), nil)

	addTag, err := test.CreateAndInitNode("action/add_tag", types.Configuration{"tag": "buyer"}, Registry, config)
	require.Nil(t, err)
	result := test.Execute(addTag, config, nil, exec)
	assert.Nil(t, result.Err)
	assert.Equal(t, "buyer", result.Data["tagAdded"])
	assert.True(t, exec.Contact.HasTag("buyer"))

	removeTag, _ := test.CreateAndInitNode("action/remove_tag", types.Configuration{"tag": "vip"}, Registry, config)
	result = test.Execute(removeTag, config, nil, exec)
	assert.Nil(t, result.Err)
	assert.False(t, exec.Contact.HasTag("vip"))

	addToList, _ := test.CreateAndInitNode("action/add_to_list", types.Configuration{"listId": "L1"}, Registry, config)
	result = test.Execute(addToList, config, nil, exec)
	assert.Nil(t, result.Err)
	assert.Equal(t, "L1", result.Data["addedToList"])
	assert.True(t, exec.Contact.InList("L1"))

	removeFromList, _ := test.CreateAndInitNode("action/remove_from_list", types.Configuration{"listId": "L1"}, Registry, config)
	result = test.Execute(removeFromList, config, nil, exec)
	assert.Nil(t, result.Err)
	assert.False(t, exec.Contact.InList("L1"))

	stored, err := book.GetContact(context.Background(), "c1")
	require.Nil(t, err)
	assert.Equal(t, []string{"buyer"}, stored.Tags)
	assert.Empty(t, stored.Lists)

	t.Run("UnknownContact", func(t *testing.T) {
		contact := newContact()
		contact.Id = "missing"
		exec := test.NewExecution(contact, nil)
		result := test.Execute(addTag, config, nil, exec)
		assert.True(t, errors.Is(result.Err, types.ErrContactNotFound))
		assert.False(t, exec.Contact.HasTag("buyer"))
	})

	t.Run("NoContactService", func(t *testing.T) {
		result := test.Execute(addTag, types.NewConfig(), nil, test.NewExecution(newContact(), nil))
		assert.NotNil(t, result.Err)
	})
}

func TestUpdateFieldNode(t *testing.T) {
	book := external.NewMemoryContactBook(newContact())
	config := types.NewConfig(types.WithContacts(book))

	_, err := test.CreateAndInitNode("action/update_field", types.Configuration{"value": "x"}, Registry, config)
	assert.Equal(t, ErrFieldRequired, err)

	node, err := test.CreateAndInitNode("action/update_field", types.Configuration{
		"field": "score",
		"value": "${contact.score + 5}",
	}, Registry, config)
	require.Nil(t, err)
	exec := test.NewExecution(newContact(), nil)
	result := test.Execute(node, config, nil, exec)
	assert.Nil(t, result.Err)
	assert.Equal(t, 15, result.Data["value"])
	v, _ := exec.Contact.Field("score")
	assert.Equal(t, 15, v)

	node, _ = test.CreateAndInitNode("action/update_field", types.Configuration{"field": "status", "value": "active"}, Registry, config)
	result = test.Execute(node, config, nil, exec)
	assert.Nil(t, result.Err)
	stored, _ := book.GetContact(context.Background(), "c1")
	assert.Equal(t, "active", stored.Fields["status"])
	assert.Equal(t, 15, stored.Fields["score"])
}

func TestLogNode(t *testing.T) {
	logger := &logBuffer{}
	config := types.NewConfig(types.WithLogger(logger))
	node, err := test.CreateAndInitNode("action/log", types.Configuration{"message": "hello ${contact.firstName}"}, Registry, config)
	require.Nil(t, err)
	result := test.Execute(node, config, nil, test.NewExecution(newContact(), nil))
	assert.Nil(t, result.Err)
	assert.Equal(t, "hello Ann", result.Data["logged"])
	assert.Equal(t, "info", result.Data["level"])
	require.Len(t, logger.lines, 1)
	assert.Equal(t, "[info] execution=exec-1 contact=c1: hello Ann", logger.lines[0])
}

func TestWebhookNode(t *testing.T) {
	var captured types.Request
	requester := requesterFunc(func(ctx context.Context, req types.Request) (types.Response, error) {
		captured = req
		if strings.Contains(req.Url, "fail") {
			return types.Response{StatusCode: http.StatusBadGateway, Status: "502 Bad Gateway"}, nil
		}
		return types.Response{StatusCode: http.StatusOK, Status: "200 OK", Body: []byte(`{"ok":true}`)}, nil
	})
	config := types.NewConfig(types.WithRequester(requester))

	t.Run("Success", func(t *testing.T) {
		node, err := test.CreateAndInitNode("action/webhook", types.Configuration{
			"url":         "https://hooks.example.com/${contact.id}",
			"headers":     map[string]interface{}{"X-Contact": "${contact.email}"},
			"responseVar": "hook",
		}, Registry, config)
		require.Nil(t, err)
		exec := test.NewExecution(newContact(), nil)
		result := test.Execute(node, config, nil, exec)
		assert.Nil(t, result.Err)
		assert.Equal(t, []string{types.Output}, result.Outputs)
		assert.Equal(t, http.MethodPost, captured.Method)
		assert.Equal(t, "https://hooks.example.com/c1", captured.Url)
		assert.Equal(t, "ann@example.com", captured.Headers["X-Contact"])
		assert.Equal(t, "application/json", captured.Headers["Content-Type"])
		assert.Contains(t, string(captured.Body), `"executionId":"exec-1"`)
		assert.Equal(t, map[string]interface{}{"ok": true}, exec.Variables["hook"])
	})

	t.Run("FailureTerminates", func(t *testing.T) {
		node, _ := test.CreateAndInitNode("action/webhook", types.Configuration{"url": "https://hooks.example.com/fail"}, Registry, config)
		result := test.Execute(node, config, nil, test.NewExecution(newContact(), nil))
		assert.NotNil(t, result.Err)
		assert.Empty(t, result.Outputs)
	})

	t.Run("FailureRoutesToError", func(t *testing.T) {
		node, _ := test.CreateAndInitNode("action/webhook", types.Configuration{
			"url":         "https://hooks.example.com/fail",
			"method":      "get",
			"routeErrors": true,
		}, Registry, config)
		result := test.Execute(node, config, nil, test.NewExecution(newContact(), nil))
		assert.Nil(t, result.Err)
		assert.Equal(t, []string{types.OutputError}, result.Outputs)
		assert.Equal(t, http.StatusBadGateway, result.Data["statusCode"])
		assert.Equal(t, http.MethodGet, captured.Method)
		assert.Nil(t, captured.Body)
	})

	t.Run("TransportError", func(t *testing.T) {
		failing := requesterFunc(func(ctx context.Context, req types.Request) (types.Response, error) {
			return types.Response{}, errors.New("connection refused")
		})
		cfg := types.NewConfig(types.WithRequester(failing))
		node, _ := test.CreateAndInitNode("action/webhook", types.Configuration{"url": "http://x", "routeErrors": true}, Registry, cfg)
		result := test.Execute(node, cfg, nil, test.NewExecution(newContact(), nil))
		assert.Equal(t, []string{types.OutputError}, result.Outputs)
		assert.Equal(t, "connection refused", result.Data["error"])
	})
}
