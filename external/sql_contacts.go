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
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"github.com/mailist-com/automation/api/types"
	"github.com/mailist-com/automation/utils/json"
	"github.com/mailist-com/automation/utils/str"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultContactTable 默认联系人表
const DefaultContactTable = "automation_contacts"

// SqlContactBook 数据库联系人簿，联系人以JSON保存在data列
// 驱动支持 sqlite3、mysql、postgres
type SqlContactBook struct {
	db         *sql.DB
	driverName string
	table      string
}

var _ types.ContactService = (*SqlContactBook)(nil)

// OpenSqlContactBook 打开数据库并创建联系人表
func OpenSqlContactBook(driverName, dsn string) (*SqlContactBook, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driverName, err)
	}
	b, err := NewSqlContactBook(db, driverName, DefaultContactTable)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return b, nil
}

// NewSqlContactBook 使用已有的连接
func NewSqlContactBook(db *sql.DB, driverName, table string) (*SqlContactBook, error) {
	b := &SqlContactBook{db: db, driverName: driverName, table: table}
	if driverName == "sqlite3" {
		db.SetMaxOpenConns(1)
	}
	idType := "VARCHAR(255)"
	if driverName == "sqlite3" {
		idType = "TEXT"
	}
	schema := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (id %s NOT NULL PRIMARY KEY, data TEXT NOT NULL)", table, idType)
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("create table %s: %w", table, err)
	}
	return b, nil
}

func (b *SqlContactBook) query(sqlStr string) string {
	return str.ConvertDollarPlaceholder(fmt.Sprintf(sqlStr, b.table), b.driverName)
}

// Put 新增或者替换联系人
func (b *SqlContactBook) Put(ctx context.Context, contact types.Contact) error {
	data, err := json.Marshal(contact)
	if err != nil {
		return err
	}
	var upsert string
	if b.driverName == "mysql" {
		upsert = "INSERT INTO %s (id, data) VALUES (?, ?) ON DUPLICATE KEY UPDATE data = VALUES(data)"
	} else {
		upsert = "INSERT INTO %s (id, data) VALUES (?, ?) ON CONFLICT(id) DO UPDATE SET data = excluded.data"
	}
	_, err = b.db.ExecContext(ctx, b.query(upsert), contact.Id, string(data))
	return err
}

func (b *SqlContactBook) GetContact(ctx context.Context, contactId string) (types.Contact, error) {
	return b.get(ctx, b.db, contactId)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func (b *SqlContactBook) get(ctx context.Context, q queryer, contactId string) (types.Contact, error) {
	var data string
	err := q.QueryRowContext(ctx, b.query("SELECT data FROM %s WHERE id = ?"), contactId).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Contact{}, fmt.Errorf("%w: %s", types.ErrContactNotFound, contactId)
	}
	if err != nil {
		return types.Contact{}, err
	}
	var contact types.Contact
	if err := json.Unmarshal([]byte(data), &contact); err != nil {
		return types.Contact{}, err
	}
	return contact, nil
}

func (b *SqlContactBook) AddTag(ctx context.Context, contactId string, tag string) error {
	return b.update(ctx, contactId, func(c *types.Contact) { c.AddTag(tag) })
}

func (b *SqlContactBook) RemoveTag(ctx context.Context, contactId string, tag string) error {
	return b.update(ctx, contactId, func(c *types.Contact) { c.RemoveTag(tag) })
}

func (b *SqlContactBook) AddToList(ctx context.Context, contactId string, listId string) error {
	return b.update(ctx, contactId, func(c *types.Contact) { c.AddToList(listId) })
}

func (b *SqlContactBook) RemoveFromList(ctx context.Context, contactId string, listId string) error {
	return b.update(ctx, contactId, func(c *types.Contact) { c.RemoveFromList(listId) })
}

func (b *SqlContactBook) UpdateFields(ctx context.Context, contactId string, fields map[string]interface{}) error {
	return b.update(ctx, contactId, func(c *types.Contact) {
		for k, v := range fields {
			c.SetField(k, v)
		}
	})
}

// update 在事务中读取、修改并写回联系人
func (b *SqlContactBook) update(ctx context.Context, contactId string, fn func(c *types.Contact)) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()
	contact, err := b.get(ctx, tx, contactId)
	if err != nil {
		return err
	}
	fn(&contact)
	data, err := json.Marshal(contact)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, b.query("UPDATE %s SET data = ? WHERE id = ?"), string(data), contactId); err != nil {
		return err
	}
	return tx.Commit()
}

func (b *SqlContactBook) Close() error {
	return b.db.Close()
}
