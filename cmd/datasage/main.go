// Command datasage is a conversational, read-only data-access agent for
// MongoDB.
//
// Usage:
//
//	datasage ask "how many orders were delivered last week?"
//	datasage describe orders
//	datasage serve --config config.yaml
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"go.uber.org/zap"

	"github.com/datasage-io/datasage/pkg/agent"
	"github.com/datasage-io/datasage/pkg/config"
	"github.com/datasage-io/datasage/pkg/llms"
	"github.com/datasage-io/datasage/pkg/logger"
	"github.com/datasage-io/datasage/pkg/memory"
	"github.com/datasage-io/datasage/pkg/observability"
	"github.com/datasage-io/datasage/pkg/schema"
	"github.com/datasage-io/datasage/pkg/server"
	"github.com/datasage-io/datasage/pkg/store"
	"github.com/datasage-io/datasage/pkg/tools"
)

var version = "dev"

// CLI defines the command-line interface.
type CLI struct {
	Ask      AskCmd      `cmd:"" help:"Ask the agent a single question."`
	Describe DescribeCmd `cmd:"" help:"Print the formatted schema of a collection."`
	Serve    ServeCmd    `cmd:"" help:"Start the HTTP chat server."`
	Version  VersionCmd  `cmd:"" help:"Show version information."`

	Config   string `short:"c" help:"Path to config file." type:"path"`
	LogLevel string `help:"Log level (debug, info, warn, error)." default:"info"`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Printf("datasage %s\n", version)
	return nil
}

// AskCmd runs one turn and prints the result envelope.
type AskCmd struct {
	Query   string `arg:"" help:"Question to ask."`
	Session string `help:"Session id to continue. A new one is generated when empty."`
	User    string `help:"User id attached to the turn." default:"cli"`
}

func (c *AskCmd) Run(cli *CLI) error {
	return withRuntime(cli, func(ctx context.Context, rt *runtime) error {
		result := rt.orchestrator.ProcessTurn(ctx, agent.TurnRequest{
			SessionID: c.Session,
			UserID:    c.User,
			Query:     c.Query,
		})
		return printJSON(result)
	})
}

// DescribeCmd reflects and formats one collection without involving the LLM.
type DescribeCmd struct {
	Collection string `arg:"" help:"Collection name."`
}

func (c *DescribeCmd) Run(cli *CLI) error {
	registry := buildRegistry()
	reflector := schema.NewReflector(registry)
	desc, err := reflector.Reflect(c.Collection)
	if err != nil {
		return err
	}
	return printJSON(schema.NewFormatter().Format(desc))
}

// ServeCmd runs the HTTP boundary until interrupted.
type ServeCmd struct{}

func (c *ServeCmd) Run(cli *CLI) error {
	return withRuntime(cli, func(ctx context.Context, rt *runtime) error {
		addr := fmt.Sprintf("%s:%d", rt.cfg.Server.Host, rt.cfg.Server.Port)
		srv, err := server.New(rt.orchestrator, addr, rt.log)
		if err != nil {
			return err
		}

		errCh := make(chan error, 1)
		go func() { errCh <- srv.ListenAndServe() }()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case err := <-errCh:
			return err
		case sig := <-sigCh:
			rt.log.Infow("shutting down", "signal", sig.String())
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		}
	})
}

// runtime bundles the wired collaborators of a running process.
type runtime struct {
	cfg          *config.Config
	log          *zap.SugaredLogger
	store        *store.MongoStore
	orchestrator *agent.Orchestrator
}

// withRuntime loads config, wires every collaborator, runs fn, and tears the
// store connection down afterwards.
func withRuntime(cli *CLI, fn func(ctx context.Context, rt *runtime) error) error {
	config.LoadDotEnv()

	var cfg *config.Config
	var err error
	if cli.Config != "" {
		cfg, err = config.Load(cli.Config)
	} else {
		cfg = config.Default()
		err = cfg.Validate()
	}
	if err != nil {
		return err
	}

	log, err := logger.Init(cli.LogLevel, cfg.Logging.Development)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx := context.Background()

	if cfg.Observability.Tracing {
		shutdown, err := observability.InitTracer(ctx, cfg.Observability.ServiceName)
		if err != nil {
			return err
		}
		defer func() { _ = shutdown(context.Background()) }()
	}
	if cfg.Observability.Metrics {
		metrics, err := observability.InitMetrics()
		if err != nil {
			return err
		}
		observability.SetGlobalMetrics(metrics)
	}

	mongoStore, err := store.NewMongoStore(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		return err
	}
	defer func() { _ = mongoStore.Close(ctx) }()

	sessions, err := buildSessionService(ctx, cfg, mongoStore)
	if err != nil {
		return err
	}

	provider, err := llmsProvider(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = provider.Close() }()

	executor, err := tools.NewExecutor(buildRegistry(), mongoStore, cfg.Rules, log)
	if err != nil {
		return err
	}

	orchestrator, err := agent.NewOrchestrator(provider, executor, sessions, cfg.Agent.MaxSteps, log)
	if err != nil {
		return err
	}

	return fn(ctx, &runtime{
		cfg:          cfg,
		log:          log,
		store:        mongoStore,
		orchestrator: orchestrator,
	})
}

func llmsProvider(cfg *config.Config) (llms.Provider, error) {
	return llms.NewProvider(&cfg.LLM)
}

func buildSessionService(ctx context.Context, cfg *config.Config, mongoStore *store.MongoStore) (memory.SessionService, error) {
	switch cfg.Memory.Backend {
	case "mongo":
		ttl := time.Duration(cfg.Memory.SessionTTLSeconds) * time.Second
		return memory.NewMongoSessionService(ctx, mongoStore.Database(), ttl)
	default:
		return memory.NewInMemorySessionService(), nil
	}
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func main() {
	cli := &CLI{}
	kctx := kong.Parse(cli,
		kong.Name("datasage"),
		kong.Description("Conversational read-only data-access agent for MongoDB."),
		kong.UsageOnError(),
	)
	if err := kctx.Run(cli); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
