// Package main is the omnicomplete harness binary.
//
// The plugin normally lives inside a host editor's Lua runtime; this binary
// exists to exercise the same wiring from a shell. In one-shot mode it reads
// a buffer from stdin and prints completion entries as JSON lines. With
// -plugin it loads a Lua script with the omni module registered, which is
// how an embedding is smoke-tested outside the editor.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tidwall/sjson"
	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/omnicomplete/internal/ai"
	"github.com/dshills/omnicomplete/internal/complete"
	"github.com/dshills/omnicomplete/internal/config"
	"github.com/dshills/omnicomplete/internal/engine"
	"github.com/dshills/omnicomplete/internal/host"
	"github.com/dshills/omnicomplete/internal/log"
	"github.com/dshills/omnicomplete/internal/text"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run())
}

type options struct {
	configPath string
	command    string
	pluginPath string
	row        int
	col        int
}

func run() int {
	opts, showVersion := parseFlags()
	if showVersion {
		fmt.Printf("omnicomplete %s (%s)\n", version, commit)
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if opts.command != "" {
		cfg.Provider.Command = opts.command
	}

	logger, closeLog, err := buildLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer closeLog()

	provider, closeProvider, err := buildProvider(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer closeProvider()

	adapter := complete.New(provider,
		complete.WithLogger(logger),
		complete.WithCaseInsensitive(cfg.Completion.CaseInsensitive),
		complete.WithDedupe(!cfg.Completion.AllowDuplicates),
		complete.WithMaxResults(cfg.Completion.MaxResults),
	)

	// A plugin session outlives any single completion request, so pick up
	// config edits live: completion flags land on the adapter, the log level
	// on the logger. Provider selection still needs a restart.
	if opts.pluginPath != "" && opts.configPath != "" {
		watcher, werr := config.Watch(opts.configPath,
			func(next config.Config) {
				logger.SetLevel(log.ParseLevel(next.Logging.Level))
				adapter.Reconfigure(
					complete.WithCaseInsensitive(next.Completion.CaseInsensitive),
					complete.WithDedupe(!next.Completion.AllowDuplicates),
					complete.WithMaxResults(next.Completion.MaxResults),
				)
				logger.Info("configuration reloaded")
			},
			func(err error) {
				logger.Warn("config reload failed: %v", err)
			})
		if werr != nil {
			logger.Warn("config watch unavailable: %v", werr)
		} else {
			defer watcher.Close()
		}
	}

	// Shut down cleanly when the shell says so.
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signals
		closeProvider()
		closeLog()
		os.Exit(1)
	}()

	source, err := io.ReadAll(os.Stdin)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: reading buffer: %v\n", err)
		return 1
	}

	state := &stdinState{
		text: string(source),
		row:  opts.row,
		col:  opts.col,
	}

	if opts.pluginPath != "" {
		return runPlugin(opts.pluginPath, adapter, state, logger)
	}
	return runOneShot(adapter, state)
}

// runOneShot prints one completion-entry JSON object per line. The -row and
// -col flags are clamped to the buffer read from stdin.
func runOneShot(adapter *complete.Adapter, state *stdinState) int {
	idx := text.NewLineIndex(state.text)
	state.row = idx.ClampRow(state.row)
	state.col = idx.ClampCol(state.row, state.col)

	req := complete.Request{
		Source: state.BufferText(),
		Row:    state.CursorRow(),
		Col:    state.CursorCol(),
	}

	entries := adapter.Completions(context.Background(), req)
	for _, e := range entries {
		line, err := encodeEntry(e)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Println(string(line))
	}
	return 0
}

// runPlugin executes a Lua script with the omni module registered, driving
// all Lua work through the executor the way an embedding host would.
func runPlugin(path string, adapter *complete.Adapter, state *stdinState, logger *log.Logger) int {
	L := lua.NewState()
	defer L.Close()

	module := host.NewModule(adapter, state)
	if err := module.Register(L); err != nil {
		fmt.Fprintf(os.Stderr, "Error: registering module: %v\n", err)
		return 1
	}

	exec := host.NewExecutor(L, 0)
	defer exec.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		exec.Run(ctx)
	}()

	err := exec.Execute(ctx, func(L *lua.LState) error {
		return L.DoFile(path)
	})
	cancel()
	<-done

	if err != nil {
		logger.Error("plugin script failed: %v", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// buildLogger constructs the diagnostic logger from config.
func buildLogger(cfg config.Config) (*log.Logger, func(), error) {
	logCfg := log.DefaultConfig()
	logCfg.Level = log.ParseLevel(cfg.Logging.Level)

	closer := func() {}
	if cfg.Logging.File != "" {
		f, err := os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file: %w", err)
		}
		logCfg.Output = f
		closer = func() { _ = f.Close() }
	}

	return log.New(logCfg), closer, nil
}

// buildProvider constructs the configured completion provider.
func buildProvider(cfg config.Config, logger *log.Logger) (complete.Provider, func(), error) {
	switch cfg.Provider.Mode {
	case config.ModeAI:
		provider := ai.New(cfg.AI.APIKey,
			ai.WithModel(cfg.AI.Model),
			ai.WithMaxTokens(cfg.AI.MaxTokens),
			ai.WithWindow(cfg.AI.WindowLines),
		)
		return provider, func() {}, nil

	case config.ModeEngine:
		if cfg.Provider.Command == "" {
			return nil, nil, fmt.Errorf("no engine command configured (set provider.command or -engine)")
		}

		dirs := append(engine.DefaultSearchPaths(), cfg.Provider.SearchPath...)
		paths, err := engine.NewPathList(dirs...)
		if err != nil {
			return nil, nil, fmt.Errorf("search paths: %w", err)
		}

		engOpts := []engine.Option{
			engine.WithArgs(cfg.Provider.Args...),
			engine.WithSearchPaths(paths),
			engine.WithLogger(logger),
		}
		if d := cfg.RequestTimeout(); d > 0 {
			engOpts = append(engOpts, engine.WithTimeout(d))
		}

		eng := engine.New(cfg.Provider.Command, engOpts...)

		startCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := eng.Start(startCtx); err != nil {
			_ = eng.Close()
			return nil, nil, err
		}

		return eng, func() { _ = eng.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown provider mode %q", cfg.Provider.Mode)
	}
}

func parseFlags() (options, bool) {
	var opts options
	var showVersion bool

	flag.StringVar(&opts.configPath, "config", "", "Path to configuration file")
	flag.StringVar(&opts.configPath, "c", "", "Path to configuration file (shorthand)")
	flag.StringVar(&opts.command, "engine", "", "Engine command (overrides config)")
	flag.StringVar(&opts.pluginPath, "plugin", "", "Lua script to run with the omni module registered")
	flag.IntVar(&opts.row, "row", 1, "Cursor line (1-based)")
	flag.IntVar(&opts.col, "col", 0, "Cursor byte column (0-based)")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.Parse()

	return opts, showVersion
}

// encodeEntry renders one completion entry as a JSON object.
func encodeEntry(e complete.Entry) ([]byte, error) {
	fields := []struct {
		key   string
		value any
	}{
		{"word", e.Word},
		{"abbr", e.Abbr},
		{"menu", e.Menu},
		{"info", e.Info},
		{"kind", e.Kind},
		{"icase", e.ICase},
		{"dup", e.Dup},
	}

	b := []byte(`{}`)
	var err error
	for _, f := range fields {
		if b, err = sjson.SetBytes(b, f.key, f.value); err != nil {
			return nil, fmt.Errorf("encoding entry: %w", err)
		}
	}
	return b, nil
}

// stdinState adapts the one-shot inputs to the host state contract.
type stdinState struct {
	text string
	row  int
	col  int
}

func (s *stdinState) BufferText() string { return s.text }
func (s *stdinState) CursorRow() int     { return s.row }
func (s *stdinState) CursorCol() int     { return s.col }
