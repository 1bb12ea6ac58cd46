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

package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/mailist-com/automation"
	"github.com/mailist-com/automation/api/types"
	"github.com/mailist-com/automation/builtin/aspect"
	"github.com/mailist-com/automation/catalog"
	"github.com/mailist-com/automation/config"
	"github.com/mailist-com/automation/endpoint/rest"
	"github.com/mailist-com/automation/engine"
	"github.com/mailist-com/automation/external"
	"github.com/mailist-com/automation/store"
	"github.com/mailist-com/automation/utils/fs"
	"github.com/mailist-com/automation/utils/mqtt"
	"github.com/mailist-com/automation/utils/pool"
)

const (
	version = "1.0.0"
)

var (
	//是否是查询版本
	ver bool
	//配置文件
	configFile string
	//环境变量文件
	envFile string
	//导出所有保存的流程图后退出
	exportDir string
)

func init() {
	flag.StringVar(&configFile, "c", "", "配置文件")
	flag.StringVar(&envFile, "e", ".env", "环境变量文件")
	flag.BoolVar(&ver, "v", false, "打印版本")
	flag.StringVar(&exportDir, "export", "", "导出所有流程图到该文件夹后退出")
}

func main() {
	flag.Parse()

	if ver {
		fmt.Printf("Automation Server v%s", version)
		os.Exit(0)
	}

	c, err := config.Load(configFile, envFile)
	if err != nil {
		log.Fatal("error:", err)
	}
	logger := initLogger(c)
	logger.Printf("use config file=%s \n", configFile)

	s, err := setup(c, logger)
	if err != nil {
		logger.Fatal("setup error:", err)
	}
	if exportDir != "" {
		err := s.automation.Flows.ExportFolder(context.Background(), exportDir)
		s.shutdown()
		if err != nil {
			logger.Fatal("export error:", err)
		}
		logger.Printf("exported flows to %s", exportDir)
		return
	}

	go func() {
		if err := s.rest.Start(); err != nil {
			logger.Fatal("error:", err)
		}
	}()

	sigs := make(chan os.Signal, 1)
	// 监听系统信号，包括中断信号和终止信号
	signal.Notify(sigs, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	s.shutdown()
	logger.Println("stopped server")
}

// server 运行中的组件，按创建的逆序关闭
type server struct {
	logger     *log.Logger
	automation *automation.Automation
	rest       *rest.Rest
	store      types.Store
	contacts   types.ContactService
	pool       *pool.WorkerPool
	mqtt       *mqtt.Client
	metrics    *aspect.Metrics
}

func setup(c config.Config, logger *log.Logger) (*server, error) {
	ctx := context.Background()
	if c.DataDir != "" {
		if err := os.MkdirAll(c.DataDir, os.ModePerm); err != nil {
			return nil, err
		}
	}
	s := &server{logger: logger, metrics: aspect.NewMetrics()}

	st, err := store.Open(ctx, c.Store.Driver, c.Store.Dsn)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	s.store = st

	contacts, err := openContacts(c.Contacts)
	if err != nil {
		return nil, fmt.Errorf("open contacts: %w", err)
	}
	s.contacts = contacts

	cat, err := loadCatalog(c.CatalogFile)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	requester, err := external.NewHttpRequester(external.HttpRequesterConfig{
		Timeout:            c.Http.Timeout,
		InsecureSkipVerify: c.Http.InsecureSkipVerify,
		MaxConnsPerHost:    c.Http.MaxConnsPerHost,
		Proxy:              c.Http.Proxy,
		UseSystemProxy:     c.Http.UseSystemProxy,
	})
	if err != nil {
		return nil, fmt.Errorf("create http requester: %w", err)
	}

	opts := []types.Option{
		types.WithLogger(logger),
		types.WithCatalog(cat),
		types.WithStore(st),
		types.WithContacts(contacts),
		types.WithRequester(requester),
		types.WithSweepInterval(c.SweepInterval),
		types.WithDebug(c.Debug),
		types.WithScriptMaxExecutionTime(c.ScriptTimeout()),
		types.WithAspects(s.metrics),
	}
	if c.Global != nil {
		opts = append(opts, types.WithProperties(c.Global))
	}
	if c.Smtp.Enabled {
		opts = append(opts, types.WithMessenger(external.NewSmtpMessenger(external.SmtpConfig{
			Host:      c.Smtp.Host,
			Port:      c.Smtp.Port,
			Username:  c.Smtp.Username,
			Password:  c.Smtp.Password,
			From:      c.Smtp.From,
			EnableTls: c.Smtp.EnableTls,
		})))
	}
	if c.WorkerPoolSize > 0 {
		s.pool = &pool.WorkerPool{MaxWorkersCount: c.WorkerPoolSize}
		s.pool.Start()
		opts = append(opts, types.WithPool(s.pool))
	}
	a := automation.New(types.NewConfig(opts...))
	s.automation = a

	var activity *engine.ActivityLog
	if c.SaveActivity {
		activity = engine.NewActivityLog(st, logger)
		a.Engine.Subscribe(activity.OnEvent)
	}

	if c.Mqtt.Enabled {
		if err := s.connectMqtt(c.Mqtt); err != nil {
			return nil, err
		}
	}

	if err := a.Start(); err != nil {
		return nil, err
	}
	if c.FlowsDir != "" {
		if err := a.Flows.LoadFolder(ctx, c.FlowsDir, true); err != nil {
			return nil, fmt.Errorf("load flows from %s: %w", c.FlowsDir, err)
		}
		logger.Printf("loaded flows from %s, active=%v", c.FlowsDir, a.Flows.ListActive())
	}

	s.rest = rest.New(rest.Config{
		Server:      c.Server,
		CertFile:    c.CertFile,
		CertKeyFile: c.CertKeyFile,
		ReadTimeout: 10 * time.Second,
	}, a, activity)
	return s, nil
}

// connectMqtt 发布执行事件，订阅触发事件
func (s *server) connectMqtt(c config.Mqtt) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	client, err := mqtt.NewClient(ctx, mqtt.Config{
		Server:       c.Server,
		Username:     c.Username,
		Password:     c.Password,
		ClientID:     c.ClientId,
		QOS:          uint8(c.Qos),
		CleanSession: true,
	})
	if err != nil {
		return fmt.Errorf("connect mqtt %s: %w", c.Server, err)
	}
	s.mqtt = client
	if c.EventTopic != "" {
		publisher := external.NewMqttEventPublisher(client, c.EventTopic, byte(c.Qos), s.logger)
		s.automation.Engine.Subscribe(publisher.OnEvent)
	}
	if c.TriggerTopic != "" {
		err = external.SubscribeTriggers(client, c.TriggerTopic, byte(c.Qos), s.logger, func(event types.TriggerEvent) {
			ids, err := s.automation.HandleEvent(context.Background(), event)
			if err != nil {
				s.logger.Printf("handle trigger event %s for contact %s error: %s", event.Subtype, event.ContactId, err.Error())
				return
			}
			if len(ids) > 0 {
				s.logger.Printf("trigger event %s for contact %s started executions %v", event.Subtype, event.ContactId, ids)
			}
		})
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", c.TriggerTopic, err)
		}
	}
	return nil
}

func (s *server) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if s.rest != nil {
		if err := s.rest.Stop(ctx); err != nil {
			s.logger.Printf("stop rest server error: %s", err.Error())
		}
	}
	if s.mqtt != nil {
		_ = s.mqtt.Close()
	}
	s.automation.Stop()
	if s.pool != nil {
		s.pool.Stop()
	}
	for _, t := range s.metrics.Types() {
		counters := s.metrics.Snapshot()[t]
		s.logger.Printf("node %s executed=%d failed=%d suspended=%d", t, counters.Executed, counters.Failed, counters.Suspended)
	}
	if closer, ok := s.contacts.(store.Closer); ok {
		_ = closer.Close()
	}
	if err := store.Close(s.store); err != nil {
		s.logger.Printf("close store error: %s", err.Error())
	}
}

func openContacts(c config.Contacts) (types.ContactService, error) {
	if c.Driver == "" {
		return external.NewMemoryContactBook(), nil
	}
	if c.Table == "" {
		return external.OpenSqlContactBook(c.Driver, c.Dsn)
	}
	db, err := sql.Open(c.Driver, c.Dsn)
	if err != nil {
		return nil, err
	}
	book, err := external.NewSqlContactBook(db, c.Driver, c.Table)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return book, nil
}

// loadCatalog 内置节点类型加上扩展定义文件
func loadCatalog(file string) (*catalog.Catalog, error) {
	cat := catalog.New()
	if file == "" {
		return cat, nil
	}
	data := fs.LoadFile(file)
	if data == nil {
		return nil, fmt.Errorf("read catalog file %s failed", file)
	}
	switch strings.ToLower(filepath.Ext(file)) {
	case ".yaml", ".yml":
		return cat, cat.LoadYAML(data)
	default:
		return cat, cat.LoadJSON(data)
	}
}

// 初始化日志记录器
func initLogger(c config.Config) *log.Logger {
	if c.LogFile == "" {
		return log.New(os.Stdout, "", log.LstdFlags)
	} else {
		f, err := os.OpenFile(c.LogFile, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644)
		if err != nil {
			log.Fatal(err)
		}
		return log.New(f, "", log.LstdFlags)
	}
}
