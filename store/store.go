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

// Package store provides the durable key-value stores behind the engine:
// pending continuations, saved flows and the activity log.
//
// Drivers:
//   - memory: process local, for tests and demos
//   - redis: github.com/redis/go-redis/v9, dsn is a redis:// url
//   - sqlite3, mysql, postgres: database/sql with the matching driver
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/mailist-com/automation/api/types"
)

const (
	DriverMemory   = "memory"
	DriverRedis    = "redis"
	DriverSqlite   = "sqlite3"
	DriverMysql    = "mysql"
	DriverPostgres = "postgres"
)

// Closer 需要释放连接的存储
type Closer interface {
	Close() error
}

// Open 根据驱动名称创建存储
func Open(ctx context.Context, driver, dsn string) (types.Store, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", DriverMemory:
		return NewMemoryStore(), nil
	case DriverRedis:
		return NewRedisStore(ctx, dsn)
	case DriverSqlite, "sqlite":
		return OpenSqlStore(DriverSqlite, dsn)
	case DriverMysql:
		return OpenSqlStore(DriverMysql, dsn)
	case DriverPostgres, "postgresql":
		return OpenSqlStore(DriverPostgres, dsn)
	}
	return nil, fmt.Errorf("unsupported store driver: %s", driver)
}

// Close 关闭存储，不需要关闭的存储直接返回nil
func Close(s types.Store) error {
	if c, ok := s.(Closer); ok {
		return c.Close()
	}
	return nil
}
