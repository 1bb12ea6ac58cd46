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

// Package config 服务端配置，从ini文件加载，敏感配置可以通过 .env 或者环境变量覆盖
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/ini.v1"
)

// EnvPrefix 环境变量前缀
const EnvPrefix = "AUTOMATION_"

// Config 服务端配置
type Config struct {
	// DataDir 数据目录
	DataDir string `ini:"data_dir"`
	// LogFile 日志文件，为空输出到标准输出
	LogFile string `ini:"log_file"`
	// Server http服务器地址
	Server      string `ini:"server"`
	CertFile    string `ini:"cert_file"`
	CertKeyFile string `ini:"cert_key_file"`
	// Debug 是否把节点调试日志打印到日志文件
	Debug bool `ini:"debug"`
	// FlowsDir 启动时导入并激活该目录下的流程图json文件
	FlowsDir string `ini:"flows_dir"`
	// CatalogFile 扩展节点类型定义文件，支持 .json .yaml .yml
	CatalogFile string `ini:"catalog_file"`
	// WorkerPoolSize 协程池最大协程数，0 不使用协程池
	WorkerPoolSize int `ini:"worker_pool_size"`
	// SweepInterval 检查到期延迟路径的间隔
	SweepInterval time.Duration `ini:"sweep_interval"`
	// ScriptMaxExecutionTime js脚本的最大执行时间，单位毫秒
	ScriptMaxExecutionTime int `ini:"script_max_execution_time"`
	// SaveActivity 是否保存执行历史
	SaveActivity bool `ini:"save_activity"`
	// 全局自定义配置，模板可以通过${global.xxx}方式取值
	Global map[string]string `ini:"-"`

	Store    Store    `ini:"store"`
	Contacts Contacts `ini:"contacts"`
	Smtp     Smtp     `ini:"smtp"`
	Http     Http     `ini:"http"`
	Mqtt     Mqtt     `ini:"mqtt"`
}

// Store 流程图和延迟路径的存储
type Store struct {
	// Driver memory/redis/sqlite3/mysql/postgres
	Driver string `ini:"driver"`
	// Dsn redis为URL，例如 redis://:password@127.0.0.1:6379/0
	Dsn string `ini:"dsn"`
}

// Contacts 联系人服务，Driver 为空时使用内存联系人
type Contacts struct {
	Driver string `ini:"driver"`
	Dsn    string `ini:"dsn"`
	Table  string `ini:"table"`
}

// Smtp 邮件发送
type Smtp struct {
	Enabled   bool   `ini:"enabled"`
	Host      string `ini:"host"`
	Port      int    `ini:"port"`
	Username  string `ini:"username"`
	Password  string `ini:"password"`
	From      string `ini:"from"`
	EnableTls bool   `ini:"enable_tls"`
}

// Http webhook 出站请求
type Http struct {
	Timeout            time.Duration `ini:"timeout"`
	Proxy              string        `ini:"proxy"`
	UseSystemProxy     bool          `ini:"use_system_proxy"`
	InsecureSkipVerify bool          `ini:"insecure_skip_verify"`
	MaxConnsPerHost    int           `ini:"max_conns_per_host"`
}

// Mqtt 执行事件发布和触发事件订阅
type Mqtt struct {
	Enabled  bool   `ini:"enabled"`
	Server   string `ini:"server"`
	Username string `ini:"username"`
	Password string `ini:"password"`
	ClientId string `ini:"client_id"`
	Qos      int    `ini:"qos"`
	// EventTopic 执行事件发布主题前缀，为空不发布
	EventTopic string `ini:"event_topic"`
	// TriggerTopic 触发事件订阅主题，为空不订阅
	TriggerTopic string `ini:"trigger_topic"`
}

// DefaultConfig 默认配置
var DefaultConfig = Config{
	DataDir:                "./data",
	Server:                 ":9090",
	SweepInterval:          10 * time.Second,
	WorkerPoolSize:         1024,
	ScriptMaxExecutionTime: 2000,
	SaveActivity:           true,
	Store: Store{
		Driver: "sqlite3",
		Dsn:    "./data/automation.db",
	},
	Smtp: Smtp{Port: 25},
	Http: Http{Timeout: 30 * time.Second},
	Mqtt: Mqtt{
		Server:     "tcp://127.0.0.1:1883",
		EventTopic: "automation/executions",
	},
}

// Load 加载配置文件，file 为空使用默认配置；然后加载 envFile 并应用环境变量覆盖
func Load(file, envFile string) (Config, error) {
	c := DefaultConfig
	if file != "" {
		cfg, err := ini.Load(file)
		if err != nil {
			return c, err
		}
		if err := cfg.MapTo(&c); err != nil {
			return c, err
		}
		if section, err := cfg.GetSection("global"); err == nil {
			c.Global = section.KeysHash()
		}
	}
	if envFile != "" {
		//.env 文件不存在不是错误
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return c, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	}
	if err := c.ApplyEnv(os.LookupEnv); err != nil {
		return c, err
	}
	return c, nil
}

// ApplyEnv 使用 AUTOMATION_* 环境变量覆盖配置
func (c *Config) ApplyEnv(lookup func(key string) (string, bool)) error {
	strs := map[string]*string{
		"SERVER":           &c.Server,
		"LOG_FILE":         &c.LogFile,
		"DATA_DIR":         &c.DataDir,
		"FLOWS_DIR":        &c.FlowsDir,
		"STORE_DRIVER":     &c.Store.Driver,
		"STORE_DSN":        &c.Store.Dsn,
		"CONTACTS_DRIVER":  &c.Contacts.Driver,
		"CONTACTS_DSN":     &c.Contacts.Dsn,
		"SMTP_HOST":        &c.Smtp.Host,
		"SMTP_USERNAME":    &c.Smtp.Username,
		"SMTP_PASSWORD":    &c.Smtp.Password,
		"MQTT_SERVER":      &c.Mqtt.Server,
		"MQTT_USERNAME":    &c.Mqtt.Username,
		"MQTT_PASSWORD":    &c.Mqtt.Password,
		"HTTP_PROXY":       &c.Http.Proxy,
		"MQTT_EVENT_TOPIC": &c.Mqtt.EventTopic,
	}
	for key, field := range strs {
		if v, ok := lookup(EnvPrefix + key); ok {
			*field = v
		}
	}
	bools := map[string]*bool{
		"DEBUG":        &c.Debug,
		"SMTP_ENABLED": &c.Smtp.Enabled,
		"MQTT_ENABLED": &c.Mqtt.Enabled,
	}
	var errs []error
	for key, field := range bools {
		if v, ok := lookup(EnvPrefix + key); ok {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				continue
			}
			*field = b
		}
	}
	if v, ok := lookup(EnvPrefix + "SMTP_PORT"); ok {
		port, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("%sSMTP_PORT: %w", EnvPrefix, err))
		} else {
			c.Smtp.Port = port
		}
	}
	return errors.Join(errs...)
}

// ScriptTimeout 脚本最大执行时间
func (c *Config) ScriptTimeout() time.Duration {
	return time.Duration(c.ScriptMaxExecutionTime) * time.Millisecond
}
