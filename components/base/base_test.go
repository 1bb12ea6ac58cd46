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

package base

import (
	"context"
	"testing"
	"time"

	"github.com/mailist-com/automation/api/types"
	"github.com/stretchr/testify/assert"
)

func TestFieldValue(t *testing.T) {
	exec := &types.ExecutionContext{
		Contact:   types.Contact{Id: "c1", Email: "ann@example.com", Fields: map[string]interface{}{"status": "active"}},
		Variables: map[string]interface{}{"coupon": "X1", "empty": nil},
	}
	v, ok := NodeUtils.FieldValue(exec, "status")
	assert.True(t, ok)
	assert.Equal(t, "active", v)

	v, ok = NodeUtils.FieldValue(exec, "email")
	assert.True(t, ok)
	assert.Equal(t, "ann@example.com", v)

	v, ok = NodeUtils.FieldValue(exec, "vars.coupon")
	assert.True(t, ok)
	assert.Equal(t, "X1", v)

	_, ok = NodeUtils.FieldValue(exec, "vars.empty")
	assert.False(t, ok)
	_, ok = NodeUtils.FieldValue(exec, "country")
	assert.False(t, ok)
}

func TestNodeCtx(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	config := types.NewConfig(types.WithClock(func() time.Time { return now }))
	self := &types.GraphNode{Id: "n1"}
	ctx := NewNodeCtx(nil, config, self)
	assert.Equal(t, context.Background(), ctx.GetContext())
	assert.Equal(t, now, ctx.Now())
	assert.Same(t, self, ctx.Self())

	_, err := NodeUtils.Contacts(ctx)
	assert.Equal(t, ErrContactsNotConfigured, err)
	_, err = NodeUtils.Messenger(ctx)
	assert.Equal(t, ErrMessengerNotConfigured, err)
	_, err = NodeUtils.Requester(ctx)
	assert.Equal(t, ErrRequesterNotConfigured, err)
}

func TestParseWeekdays(t *testing.T) {
	days, err := ParseWeekdays([]string{"Mon", "friday", "0"})
	assert.Nil(t, err)
	assert.Equal(t, []time.Weekday{time.Monday, time.Friday, time.Sunday}, days)

	_, err = ParseWeekdays([]string{"someday"})
	assert.NotNil(t, err)
}

func TestParseClock(t *testing.T) {
	minutes, err := ParseClock("09:30")
	assert.Nil(t, err)
	assert.Equal(t, 570, minutes)
	_, err = ParseClock("25:00")
	assert.NotNil(t, err)

	loc, err := LoadLocation("")
	assert.Nil(t, err)
	assert.Equal(t, time.UTC, loc)
}
