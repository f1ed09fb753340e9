package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/tools"

	"github.com/smallnest/threadgraph/agent"
	"github.com/smallnest/threadgraph/checkpoint"
	"github.com/smallnest/threadgraph/config"
	"github.com/smallnest/threadgraph/log"
	"github.com/smallnest/threadgraph/metrics"
	"github.com/smallnest/threadgraph/model"
	anthropicmodel "github.com/smallnest/threadgraph/model/anthropic"
	langchainmodel "github.com/smallnest/threadgraph/model/langchain"
	openaimodel "github.com/smallnest/threadgraph/model/openai"
	"github.com/smallnest/threadgraph/store"
	"github.com/smallnest/threadgraph/store/file"
	"github.com/smallnest/threadgraph/store/memory"
	"github.com/smallnest/threadgraph/store/postgres"
	redisstore "github.com/smallnest/threadgraph/store/redis"
	"github.com/smallnest/threadgraph/store/sqlite"
	"github.com/smallnest/threadgraph/tool"
)

func buildModel(mc config.ModelConfig) (model.ChatModel, error) {
	opts := model.Options{Model: mc.Name, Temperature: mc.Temperature, MaxTokens: mc.MaxTokens}

	switch mc.Provider {
	case config.ProviderOpenAI:
		o := []openaimodel.Option{
			openaimodel.WithAPIKey(mc.APIKey),
			openaimodel.WithTemperature(mc.Temperature),
			openaimodel.WithMaxTokens(mc.MaxTokens),
		}
		if mc.Name != "" {
			o = append(o, openaimodel.WithModel(mc.Name))
		}
		if mc.BaseURL != "" {
			o = append(o, openaimodel.WithBaseURL(mc.BaseURL))
		}
		return openaimodel.New(o...), nil

	case config.ProviderAnthropic:
		var reqOpts []option.RequestOption
		if mc.APIKey != "" {
			reqOpts = append(reqOpts, option.WithAPIKey(mc.APIKey))
		}
		if mc.BaseURL != "" {
			reqOpts = append(reqOpts, option.WithBaseURL(mc.BaseURL))
		}
		return anthropicmodel.New(opts, reqOpts...), nil

	case config.ProviderLangchain:
		var lcOpts []openai.Option
		if mc.APIKey != "" {
			lcOpts = append(lcOpts, openai.WithToken(mc.APIKey))
		}
		if mc.BaseURL != "" {
			lcOpts = append(lcOpts, openai.WithBaseURL(mc.BaseURL))
		}
		if mc.Name != "" {
			lcOpts = append(lcOpts, openai.WithModel(mc.Name))
		}
		llm, err := openai.New(lcOpts...)
		if err != nil {
			return nil, fmt.Errorf("langchain openai client: %w", err)
		}
		return langchainmodel.New(llm, opts), nil

	default:
		return nil, fmt.Errorf("unknown model provider %q", mc.Provider)
	}
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// buildStore opens the configured backend. The locker is nil unless the
// backend can coordinate several processes.
func buildStore(ctx context.Context, sc config.StoreConfig) (store.CheckpointStore, checkpoint.Locker, io.Closer, error) {
	noop := closerFunc(func() error { return nil })

	switch sc.Backend {
	case config.BackendMemory:
		return memory.NewCheckpointStore(), nil, noop, nil

	case config.BackendFile:
		s, err := file.NewCheckpointStore(sc.Path)
		if err != nil {
			return nil, nil, nil, err
		}
		return s, nil, noop, nil

	case config.BackendSQLite:
		s, err := sqlite.NewCheckpointStore(sqlite.Options{Path: sc.Path, TableName: sc.Table})
		if err != nil {
			return nil, nil, nil, err
		}
		return s, nil, s, nil

	case config.BackendPostgres:
		s, err := postgres.NewCheckpointStore(ctx, postgres.Options{ConnString: sc.DSN, TableName: sc.Table})
		if err != nil {
			return nil, nil, nil, err
		}
		return s, nil, closerFunc(func() error { s.Close(); return nil }), nil

	case config.BackendRedis:
		client := redisstore.NewClient(redisstore.Options{Addr: sc.Addr, Password: sc.Password, DB: sc.DB})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, nil, fmt.Errorf("connect to redis at %s: %w", sc.Addr, err)
		}
		s := redisstore.NewCheckpointStoreWithClient(client, sc.Prefix, sc.TTL)
		return s, redisstore.NewLocker(client, sc.Prefix, 0), s, nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown store backend %q", sc.Backend)
	}
}

func buildTools() (*tool.Registry, error) {
	clock := tool.NewTypedTool("current_time", "Returns the current time, optionally in an IANA time zone.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"timezone": map[string]any{"type": "string", "description": "IANA zone such as Europe/Paris"},
			},
		},
		func(_ context.Context, args struct {
			Timezone string `json:"timezone"`
		}) (string, error) {
			loc := time.Local
			if args.Timezone != "" {
				l, err := time.LoadLocation(args.Timezone)
				if err != nil {
					return "", err
				}
				loc = l
			}
			return time.Now().In(loc).Format(time.RFC1123), nil
		})

	return tool.NewRegistry(tool.FromLangchain(tools.Calculator{}), clock)
}

// app bundles everything a command needs.
type app struct {
	agent   *agent.Agent
	metrics *metrics.Metrics
	closer  io.Closer
}

func (a *app) Close() error {
	if a.closer == nil {
		return nil
	}
	return a.closer.Close()
}

func newApp(ctx context.Context, c config.Config) (*app, error) {
	logger := log.GetDefaultLogger()

	llm, err := buildModel(c.Model)
	if err != nil {
		return nil, err
	}
	registry, err := buildTools()
	if err != nil {
		return nil, err
	}
	st, locker, closer, err := buildStore(ctx, c.Store)
	if err != nil {
		return nil, err
	}

	mgrOpts := []checkpoint.Option{checkpoint.WithLogger(logger)}
	if locker != nil {
		mgrOpts = append(mgrOpts, checkpoint.WithLocker(locker))
	}
	mx := metrics.New(nil)

	a, err := agent.New(llm, registry, checkpoint.NewManager(st, mgrOpts...),
		agent.WithSystemPrompt(c.SystemPrompt),
		agent.WithMaxSteps(c.Engine.MaxSteps),
		agent.WithRunTimeout(c.Engine.RunTimeout),
		agent.WithToolTimeout(c.Engine.ToolTimeout),
		agent.WithLogger(logger),
		agent.WithListeners(mx.NodeListener()),
		agent.WithToolObserver(mx.ObserveTool),
		agent.WithRunObserver(mx.ObserveRun),
	)
	if err != nil {
		return nil, errors.Join(err, closer.Close())
	}
	return &app{agent: a, metrics: mx, closer: closer}, nil
}
