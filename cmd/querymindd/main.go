package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"QueryMind/internal/agent"
	"QueryMind/internal/api"
	"QueryMind/internal/auth"
	"QueryMind/internal/config"
	"QueryMind/internal/knowledge"
	"QueryMind/internal/llm/provider"
	"QueryMind/internal/sandbox"
	"QueryMind/internal/storage/mysql"
	"QueryMind/internal/task"
	"QueryMind/pkg/logger"
	"QueryMind/pkg/plugin"
)

// main 是 QueryMind 守护进程的入口。
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("querymindd 运行失败: %v", err)
	}
}

func run(ctx context.Context) error {
	configPath := os.Getenv("QUERYMIND_CONFIG")
	if configPath == "" {
		configPath = filepath.Join("configs", "querymind.json")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: cfg.Logging.OutputPaths,
		Audit: logger.AuditConfig{
			Enabled:    cfg.Logging.Audit.Enabled,
			Path:       cfg.Logging.Audit.FilePath,
			MaxSizeMB:  cfg.Logging.Audit.MaxSizeMB,
			MaxBackups: cfg.Logging.Audit.MaxBackups,
			MaxAgeDays: cfg.Logging.Audit.MaxAgeDays,
		},
	}); err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	// 初始化大模型注册表。
	llmRegistry, err := provider.NewRegistry(cfg.LLM)
	if err != nil {
		return err
	}
	model, err := llmRegistry.DefaultClient()
	if err != nil {
		return err
	}

	dataDir := cfg.Runtime.DataDir
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return err
	}

	var analysisRepo mysql.AnalysisRepository
	switch cfg.Storage.TaskStore.Driver {
	case "memory", "":
		repo, err := mysql.NewMemoryAnalysisRepository(dataDir)
		if err != nil {
			return err
		}
		analysisRepo = repo
	case "mysql":
		repo, err := mysql.NewSQLAnalysisRepository(ctx, mysql.Config{
			DSN:             cfg.Storage.TaskStore.DSN,
			MaxOpenConns:    cfg.Storage.TaskStore.MaxOpenConns,
			MaxIdleConns:    cfg.Storage.TaskStore.MaxIdleConns,
			ConnMaxLifetime: time.Duration(cfg.Storage.TaskStore.ConnMaxLifetimeSeconds) * time.Second,
			ConnMaxIdleTime: time.Duration(cfg.Storage.TaskStore.ConnMaxIdleTimeSeconds) * time.Second,
		})
		if err != nil {
			return err
		}
		analysisRepo = repo
	default:
		return mysql.ErrUnsupportedDriver
	}
	if closer, ok := analysisRepo.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	var taskStore task.Store
	switch cfg.Storage.TaskStore.Driver {
	case "memory", "":
		taskStore = task.NewMemoryStore()
	case "mysql":
		store, err := task.NewMySQLStore(cfg.Storage.TaskStore.DSN)
		if err != nil {
			return err
		}
		taskStore = store
	default:
		return mysql.ErrUnsupportedDriver
	}
	defer func() {
		_ = taskStore.Close()
	}()

	var taskQueue task.Queue
	switch cfg.TaskQueue.Driver {
	case "", "memory":
		taskQueue = task.NewMemoryQueue(1024)
	case "redis":
		queue, err := task.NewRedisQueue(task.RedisQueueConfig{
			Address:   cfg.TaskQueue.Redis.Address,
			Password:  cfg.TaskQueue.Redis.Password,
			DB:        cfg.TaskQueue.Redis.DB,
			Queue:     cfg.TaskQueue.Redis.Queue,
			BlockWait: time.Duration(cfg.TaskQueue.Redis.BlockWait) * time.Second,
		})
		if err != nil {
			return err
		}
		taskQueue = queue
	case "rabbitmq":
		queue, err := task.NewRabbitMQQueue(task.RabbitMQConfig{
			URL:        cfg.TaskQueue.RabbitMQ.URL,
			Queue:      cfg.TaskQueue.RabbitMQ.Queue,
			Prefetch:   cfg.TaskQueue.RabbitMQ.Prefetch,
			Durable:    cfg.TaskQueue.RabbitMQ.Durable,
			AutoDelete: cfg.TaskQueue.RabbitMQ.AutoDelete,
		})
		if err != nil {
			return err
		}
		taskQueue = queue
	default:
		return fmt.Errorf("未知的队列驱动: %s", cfg.TaskQueue.Driver)
	}
	defer func() {
		if err := taskQueue.Close(); err != nil {
			logger.L().Warn("关闭任务队列失败", "error", err)
		}
	}()

	runner := sandbox.NewRunner(sandbox.Config{
		PythonExec:     cfg.Sandbox.PythonExec,
		WorkingDir:     cfg.Sandbox.WorkingDir,
		Timeout:        time.Duration(cfg.Sandbox.TimeoutSeconds) * time.Second,
		MaxOutputBytes: cfg.Sandbox.MaxOutputBytes,
	})

	var knowledgeBase *knowledge.StaticProvider
	if cfg.Knowledge.Source != "" {
		knowledgeBase, err = knowledge.LoadStaticProvider(cfg.Knowledge.Source, cfg.Knowledge.MaxResults)
		if err != nil {
			return err
		}
	} else {
		knowledgeBase = knowledge.NewStaticProvider(nil, cfg.Knowledge.MaxResults)
	}

	// 数据集连接器插件可以在运行期向说明库注册条目。
	if cfg.Plugins.ConfigPath != "" {
		pluginCfg, err := plugin.LoadManagerConfig(cfg.Plugins.ConfigPath)
		if err != nil {
			return err
		}
		manager, err := plugin.NewManager(pluginCfg,
			plugin.WithResource("dataset:register", datasetSink(knowledgeBase)),
			plugin.WithResource("host:logger", logger.L()),
		)
		if err != nil {
			return err
		}
		if err := manager.StartAll(ctx); err != nil {
			return err
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := manager.StopAll(stopCtx); err != nil {
				logger.L().Warn("停止插件失败", "error", err)
			}
		}()
	}

	opts := []agent.Option{
		agent.WithMemoryDepth(cfg.Agent.MemoryDepth),
		agent.WithMaxRetries(cfg.Agent.MaxRetries),
		agent.WithKnowledgeProvider(knowledgeBase),
	}
	if cfg.Agent.Description != "" {
		opts = append(opts, agent.WithAgentDescription(cfg.Agent.Description))
	}
	if cfg.LLM.Provider == "openai" {
		opts = append(opts, agent.WithLLMTimeout(time.Duration(cfg.LLM.OpenAI.TimeoutSeconds)*time.Second))
	}

	ag := agent.New(model, runner, analysisRepo, opts...)

	taskService := task.NewService(taskStore, taskQueue, cfg.Storage.TaskStore.Retries)
	processor := task.NewProcessor(ag, taskStore, taskQueue, taskQueue,
		task.WithWorkerCount(cfg.TaskQueue.Worker),
		task.WithProcessorLogger(logger.L()),
	)

	processorCtx, processorCancel := context.WithCancel(ctx)
	defer processorCancel()

	go func() {
		if err := processor.Start(processorCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.L().Error("任务处理器异常退出", "error", err)
		}
	}()

	serverOpts, err := buildServerOptions(ctx, cfg)
	if err != nil {
		return err
	}
	server := api.NewServer(cfg.Server.Address, taskService, serverOpts...)

	if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// datasetSink 把插件上报的数据集说明写入静态说明库。
func datasetSink(base *knowledge.StaticProvider) func(context.Context, map[string]any) error {
	return func(_ context.Context, record map[string]any) error {
		snippet := knowledge.Snippet{
			Title:    stringField(record, "title"),
			Content:  stringField(record, "content"),
			Keywords: stringSlice(record, "keywords"),
			Datasets: stringSlice(record, "datasets"),
		}
		if snippet.Title == "" && snippet.Content == "" {
			return errors.New("数据集说明缺少 title 与 content")
		}
		base.Register(snippet)
		return nil
	}
}

func stringField(record map[string]any, key string) string {
	value, _ := record[key].(string)
	return value
}

func stringSlice(record map[string]any, key string) []string {
	raw, ok := record[key]
	if !ok {
		return nil
	}
	switch value := raw.(type) {
	case []string:
		return value
	case []any:
		items := make([]string, 0, len(value))
		for _, item := range value {
			if s, ok := item.(string); ok {
				items = append(items, s)
			}
		}
		return items
	default:
		return nil
	}
}

// buildServerOptions 根据配置装配认证服务。
func buildServerOptions(ctx context.Context, cfg *config.Config) ([]api.Option, error) {
	if cfg.Auth.Mode == "" || cfg.Auth.Mode == string(auth.ModeDisabled) {
		return nil, nil
	}

	seeds := make([]auth.Seed, 0, len(cfg.Auth.Seeds))
	for _, seed := range cfg.Auth.Seeds {
		seeds = append(seeds, auth.Seed{
			Username:    seed.Username,
			Password:    seed.Password,
			Roles:       seed.Roles,
			Permissions: seed.Permissions,
			Disabled:    seed.Disabled,
		})
	}

	var store auth.Store
	switch cfg.Storage.TaskStore.Driver {
	case "mysql":
		sqlStore, err := mysql.NewSQLAuthStore(ctx, mysql.Config{DSN: cfg.Storage.TaskStore.DSN})
		if err != nil {
			return nil, err
		}
		store = sqlStore
	default:
		memStore, err := auth.NewMemoryStore(nil)
		if err != nil {
			return nil, err
		}
		store = memStore
	}

	authService, err := auth.NewService(ctx, auth.Config{
		Mode: auth.Mode(cfg.Auth.Mode),
		JWT: auth.JWTOptions{
			Secret:     cfg.Auth.JWT.Secret,
			Issuer:     cfg.Auth.JWT.Issuer,
			Audience:   cfg.Auth.JWT.Audience,
			AccessTTL:  cfg.Auth.JWT.AccessTTL,
			RefreshTTL: cfg.Auth.JWT.RefreshTTL,
		},
		OAuth: auth.OAuthOptions{
			TokenURL:         cfg.Auth.OAuth.TokenURL,
			IntrospectionURL: cfg.Auth.OAuth.IntrospectionURL,
			ClientID:         cfg.Auth.OAuth.ClientID,
			ClientSecret:     cfg.Auth.OAuth.ClientSecret,
			Scopes:           cfg.Auth.OAuth.Scopes,
			TimeoutSeconds:   cfg.Auth.OAuth.TimeoutSeconds,
			UsernameClaim:    cfg.Auth.OAuth.UsernameClaim,
		},
		Seeds: seeds,
	}, store)
	if err != nil {
		return nil, err
	}
	return []api.Option{api.WithAuthService(authService)}, nil
}
