// ABOUTME: Entry point for the switchboard CLI
// ABOUTME: Bridges chat-style callers to registered AI agent backends

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fatih/color"

	"github.com/candlewick/switchboard/internal/audit"
	"github.com/candlewick/switchboard/internal/bridge"
	"github.com/candlewick/switchboard/internal/chain"
	"github.com/candlewick/switchboard/internal/config"
	"github.com/candlewick/switchboard/internal/registry"
)

// Version is set by goreleaser at build time.
var version = "dev"

// getConfigPath returns the path to the switchboard config file.
// Priority: SWITCHBOARD_CONFIG env var > XDG_CONFIG_HOME/switchboard/config.yaml > ~/.config/switchboard/config.yaml
func getConfigPath() string {
	if envPath := os.Getenv("SWITCHBOARD_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "switchboard", "config.yaml")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: switchboard <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  chat                 Start an interactive chat session")
		fmt.Println("  ask <prompt>         Send one prompt and print the reply")
		fmt.Println("  servers              List registered backend servers")
		fmt.Println("  resolve              Print the chain selected for a new session")
		fmt.Println("  version              Print the version")
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "chat":
		err = runChat(os.Args[2:])
	case "ask":
		err = runAsk(os.Args[2:])
	case "servers":
		err = runServers(os.Args[2:])
	case "resolve":
		err = runResolve(os.Args[2:])
	case "version":
		fmt.Println(version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file, falling back to defaults when it is absent.
func loadConfig() (*config.Config, error) {
	path := getConfigPath()
	cfg, err := config.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return config.Default(), nil
	}
	return cfg, err
}

// buildLogger constructs the process logger from config. Logs go to stderr
// so stdout stays clean for rendered agent output.
func buildLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

// env holds the wired collaborators shared by the subcommands.
type env struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *registry.SQLiteStore
	resolver *chain.Resolver
	sink     audit.Sink
	closers  []func() error
}

// buildEnv wires the registry store, bootstrap, resolver, and audit sinks.
func buildEnv() (*env, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := buildLogger(cfg)

	store, err := registry.NewSQLiteStore(cfg.Registry.Path, logger)
	if err != nil {
		return nil, err
	}

	agentCommand := cfg.Registry.AgentCommand
	if agentCommand == "" {
		agentCommand = "fake-agent"
	}
	boot := registry.NewLocalBootstrap(store, agentCommand, cfg.Registry.AgentArgs, cfg.Registry.Model, logger)
	resolver := chain.NewResolver(store, boot, logger)

	e := &env{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		resolver: resolver,
		closers:  []func() error{store.Close},
	}

	var sinks audit.Fanout
	if cfg.Audit.Path != "" {
		s, err := audit.NewJSONLSink(cfg.Audit.Path, logger)
		if err != nil {
			e.close()
			return nil, err
		}
		sinks = append(sinks, s)
		e.closers = append(e.closers, s.Close)
	}
	if cfg.Audit.Database != "" {
		s, err := audit.NewSQLiteSink(cfg.Audit.Database, logger)
		if err != nil {
			e.close()
			return nil, err
		}
		sinks = append(sinks, s)
		e.closers = append(e.closers, s.Close)
	}
	if len(sinks) == 0 {
		e.sink = audit.NopSink{}
	} else {
		e.sink = sinks
	}

	return e, nil
}

func (e *env) close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		_ = e.closers[i]()
	}
}

// bridgeOptions translates config into bridge creation options.
func (e *env) bridgeOptions() bridge.OpenOptions {
	return bridge.OpenOptions{
		ForceDirect:      e.cfg.Bridge.ForceDirect,
		HandshakeTimeout: e.cfg.Protocol.HandshakeTimeout,
		AskTimeout:       e.cfg.Protocol.AskTimeout,
		Logger:           e.logger,
		Audit:            e.sink,
	}
}

func runServers(args []string) error {
	fs := flag.NewFlagSet("servers", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	e, err := buildEnv()
	if err != nil {
		return err
	}
	defer e.close()

	records, err := e.store.List(context.Background())
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("no servers registered")
		return nil
	}

	statusColor := map[registry.Status]*color.Color{
		registry.StatusOnline:   color.New(color.FgGreen),
		registry.StatusOffline:  color.New(color.FgRed),
		registry.StatusDegraded: color.New(color.FgYellow),
	}
	for _, rec := range records {
		c := statusColor[rec.Status]
		if c == nil {
			c = color.New(color.Faint)
		}
		fmt.Printf("%-10s %-38s %-22s %s\n",
			rec.Type, rec.ID, rec.Addr(), c.Sprint(rec.Status))
	}
	return nil
}

func runResolve(args []string) error {
	fs := flag.NewFlagSet("resolve", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	e, err := buildEnv()
	if err != nil {
		return err
	}
	defer e.close()

	sel, err := e.resolver.Resolve(context.Background())
	if err != nil {
		return err
	}

	printHop := func(label string, rec *registry.ServerRecord) {
		if rec == nil {
			fmt.Printf("%-8s %s\n", label, color.New(color.Faint).Sprint("none"))
			return
		}
		fmt.Printf("%-8s %s (%s, %s)\n", label, rec.ID, rec.Addr(), rec.Status)
	}
	printHop("manager", sel.Manager)
	printHop("worker", sel.Worker)
	printHop("ai", sel.AI)
	return nil
}
