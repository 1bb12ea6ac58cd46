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

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"github.com/mailist-com/automation/api/types"
	"github.com/mailist-com/automation/utils/str"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultTable 默认表名
const DefaultTable = "automation_kv"

// SqlStore 基于database/sql的存储，支持sqlite3、mysql、postgres
type SqlStore struct {
	db         *sql.DB
	driverName string
	table      string
}

var _ types.Store = (*SqlStore)(nil)

// OpenSqlStore 打开数据库并创建表
func OpenSqlStore(driverName, dsn string) (*SqlStore, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driverName, err)
	}
	s, err := NewSqlStore(db, driverName, DefaultTable)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewSqlStore 使用已有的连接，driverName决定建表语句和占位符风格
func NewSqlStore(db *sql.DB, driverName, table string) (*SqlStore, error) {
	s := &SqlStore{db: db, driverName: driverName, table: table}
	if driverName == DriverSqlite {
		//sqlite不支持并发写
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec(s.schema()); err != nil {
		return nil, fmt.Errorf("create table %s: %w", table, err)
	}
	return s, nil
}

func (s *SqlStore) schema() string {
	switch s.driverName {
	case DriverMysql:
		return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (k VARCHAR(255) NOT NULL PRIMARY KEY, v LONGBLOB NOT NULL)", s.table)
	case DriverPostgres:
		return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (k VARCHAR(255) NOT NULL PRIMARY KEY, v BYTEA NOT NULL)", s.table)
	default:
		return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (k TEXT NOT NULL PRIMARY KEY, v BLOB NOT NULL)", s.table)
	}
}

func (s *SqlStore) query(sqlStr string) string {
	return str.ConvertDollarPlaceholder(fmt.Sprintf(sqlStr, s.table), s.driverName)
}

func (s *SqlStore) Get(ctx context.Context, key string) ([]byte, error) {
	var v []byte
	err := s.db.QueryRowContext(ctx, s.query("SELECT v FROM %s WHERE k = ?"), key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return v, nil
}

func (s *SqlStore) Put(ctx context.Context, key string, value []byte) error {
	var upsert string
	if s.driverName == DriverMysql {
		upsert = "INSERT INTO %s (k, v) VALUES (?, ?) ON DUPLICATE KEY UPDATE v = VALUES(v)"
	} else {
		upsert = "INSERT INTO %s (k, v) VALUES (?, ?) ON CONFLICT(k) DO UPDATE SET v = excluded.v"
	}
	if value == nil {
		value = []byte{}
	}
	if _, err := s.db.ExecContext(ctx, s.query(upsert), key, value); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

func (s *SqlStore) Delete(ctx context.Context, key string) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.query("DELETE FROM %s WHERE k = ?"), key)
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SqlStore) List(ctx context.Context, prefix string) (map[string][]byte, error) {
	var rows *sql.Rows
	var err error
	if prefix == "" {
		rows, err = s.db.QueryContext(ctx, s.query("SELECT k, v FROM %s"))
	} else {
		rows, err = s.db.QueryContext(ctx, s.query("SELECT k, v FROM %s WHERE substr(k, 1, ?) = ?"), len(prefix), prefix)
	}
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}
	defer rows.Close()
	result := make(map[string][]byte)
	for rows.Next() {
		var k string
		var v []byte
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		result[k] = v
	}
	return result, rows.Err()
}

func (s *SqlStore) Close() error {
	return s.db.Close()
}
