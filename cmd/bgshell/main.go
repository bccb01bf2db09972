// Package main is the entry point for the bgshell command runner.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dshills/bgshell/internal/config"
	"github.com/dshills/bgshell/internal/engine"
	"github.com/dshills/bgshell/internal/logging"
	"github.com/dshills/bgshell/internal/session"
	"github.com/dshills/bgshell/internal/tool"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
)

// pollInterval is how often a foregrounded session is re-polled.
const pollInterval = 200 * time.Millisecond

func main() {
	os.Exit(run())
}

func run() int {
	opts := parseFlags()

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	cfg = config.FromEnv(cfg)
	if opts.scope != "" {
		cfg.ScopeKey = opts.scope
	}
	if opts.timeoutSec > 0 {
		cfg.TimeoutSec = opts.timeoutSec
	}

	log := logging.New(logging.Config{
		Level:  logging.ParseLevel(opts.logLevel),
		Output: os.Stderr,
		Prefix: "bgshell",
	})

	eng := engine.New(session.NewRegistry(), engine.WithLogger(log))
	execTool := tool.NewExecTool(cfg, eng, tool.WithExecLogger(log))
	procTool := tool.NewProcTool(cfg, eng, tool.WithProcLogger(log))

	command := strings.Join(flag.Args(), " ")
	if strings.TrimSpace(command) == "" {
		flag.Usage()
		return 2
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals for graceful shutdown
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signals
		cancel()
	}()

	callArgs := map[string]any{
		"command":    command,
		"background": opts.background,
	}
	if opts.elevatedSet {
		callArgs["elevated"] = opts.elevated
	}
	args, err := json.Marshal(callArgs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	res, err := execTool.Call(ctx, "cli", args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if res.Details.Status == session.StatusRunning {
		if opts.background {
			fmt.Println(res.Content[0].Text)
			return 0
		}
		res = await(ctx, procTool, res.Details.SessionID)
	}

	for _, c := range res.Content {
		if c.Text != "" {
			fmt.Println(c.Text)
		}
	}

	if res.Details.Status == session.StatusFailed {
		if res.Details.ExitCode != nil {
			return *res.Details.ExitCode
		}
		return 1
	}
	return 0
}

// await polls a backgrounded session until it reaches a terminal status,
// then returns its full log. Cancellation kills the session first so a
// Ctrl-C does not leave the command running.
func await(ctx context.Context, procTool *tool.ProcTool, id string) tool.Result {
	for {
		select {
		case <-ctx.Done():
			_, _ = procTool.Call(context.Background(), "cli",
				[]byte(fmt.Sprintf(`{"action":"kill","sessionId":%q}`, id)))
			time.Sleep(pollInterval)
		case <-time.After(pollInterval):
		}

		res, err := procTool.Call(context.Background(), "cli",
			[]byte(fmt.Sprintf(`{"action":"poll","sessionId":%q}`, id)))
		if err != nil || res.Details.Status != session.StatusRunning {
			logRes, logErr := procTool.Call(context.Background(), "cli",
				[]byte(fmt.Sprintf(`{"action":"log","sessionId":%q,"offset":0}`, id)))
			if logErr == nil {
				logRes.Details.Status = res.Details.Status
				logRes.Details.ExitCode = res.Details.ExitCode
				return logRes
			}
			return res
		}
	}
}

type cliOptions struct {
	configPath  string
	scope       string
	logLevel    string
	timeoutSec  int
	background  bool
	elevated    bool
	elevatedSet bool
}

func parseFlags() cliOptions {
	var opts cliOptions
	var showVersion bool

	flag.StringVar(&opts.configPath, "config", "", "Path to configuration file")
	flag.StringVar(&opts.configPath, "c", "", "Path to configuration file (shorthand)")
	flag.StringVar(&opts.scope, "scope", "", "Session scope key")
	flag.IntVar(&opts.timeoutSec, "timeout", 0, "Hard timeout in seconds (0 uses configured value)")
	flag.BoolVar(&opts.background, "background", false, "Start in the background and print the session id")
	flag.BoolVar(&opts.background, "b", false, "Start in the background (shorthand)")
	flag.BoolVar(&opts.elevated, "elevated", false, "Run with elevated permissions")
	flag.StringVar(&opts.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showVersion, "v", false, "Show version information (shorthand)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "bgshell - background command runner\n\n")
		fmt.Fprintf(os.Stderr, "Usage: bgshell [options] command...\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  bgshell ls -la              Run and wait for output\n")
		fmt.Fprintf(os.Stderr, "  bgshell -b make build       Start in the background\n")
		fmt.Fprintf(os.Stderr, "  bgshell -timeout 60 ./ci.sh Bound the run to a minute\n")
	}

	flag.Parse()

	if showVersion {
		fmt.Printf("bgshell %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		os.Exit(0)
	}

	flag.Visit(func(f *flag.Flag) {
		if f.Name == "elevated" {
			opts.elevatedSet = true
		}
	})

	return opts
}
