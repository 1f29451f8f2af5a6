package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/IT-HUSET/openclaw-guard/internal/api"
	"github.com/IT-HUSET/openclaw-guard/internal/cmdguard"
	"github.com/IT-HUSET/openclaw-guard/internal/config"
	"github.com/IT-HUSET/openclaw-guard/internal/contentguard"
	"github.com/IT-HUSET/openclaw-guard/internal/guard"
	"github.com/IT-HUSET/openclaw-guard/internal/logger"
	"github.com/IT-HUSET/openclaw-guard/internal/netguard"
)

// Version is set at build time via ldflags: -X main.Version=x.y.z
var Version = "1.0.0"

var log = logger.New("main")

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "serve":
			runServe(os.Args[2:])
			return
		case "check-command":
			runCheckCommand(os.Args[2:])
			return
		case "check-url":
			runCheckURL(os.Args[2:])
			return
		case "scan":
			runScan(os.Args[2:])
			return
		case "help", "-h", "--help":
			printUsage()
			return
		case "version", "-v", "--version":
			fmt.Printf("openclaw-guard version %s\n", Version)
			return
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
			printUsage()
			os.Exit(2)
		}
	}

	printUsage()
}

// buildGuards constructs the three guards from the configuration and
// registers them on a fresh registry. The command guard is also
// returned directly for rule reporting.
func buildGuards(cfg *config.Config) (*guard.Registry, *cmdguard.Guard, error) {
	commands := cmdguard.New(cmdguard.Config{
		PatternsFile:    cfg.Command.PatternsFile,
		SafePipeTargets: cfg.Command.SafePipeTargets,
		FailOpen:        cfg.FailOpen,
		LogBlocks:       cfg.Command.LogBlocks,
	})

	network, err := netguard.New(netguard.Config{
		AllowedDomains:  cfg.Network.AllowedDomains,
		BlockedPatterns: cfg.Network.BlockedPatterns,
		BlockDirectIP:   cfg.Network.BlockDirectIP,
		ResolveDNS:      cfg.Network.ResolveDNS,
		DNSTimeout:      cfg.Network.DNSTimeout(),
		AgentOverrides:  cfg.Network.AgentOverrides,
		FailOpen:        cfg.FailOpen,
		LogBlocks:       cfg.Network.LogBlocks,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("network guard: %w", err)
	}

	content := contentguard.New(contentguard.Config{
		OracleURL:      cfg.Content.OracleURL,
		OracleTimeout:  cfg.Content.OracleTimeout(),
		ChunkSize:      cfg.Content.ChunkSize,
		Sensitivity:    cfg.Content.Sensitivity,
		WarnThreshold:  cfg.Content.WarnThreshold,
		BlockThreshold: cfg.Content.BlockThreshold,
		FailOpen:       cfg.FailOpen,
		LogDetections:  cfg.Content.LogDetections,
	})

	registry := guard.NewRegistry()
	registry.Use(commands, network, content)
	return registry, commands, nil
}

// loadConfig loads and validates configuration for a subcommand,
// applying the shared logger flags.
func loadConfig(path, logLevel string, noColor bool) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Server.LogLevel = logLevel
	}
	if noColor {
		cfg.Server.NoColor = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger.SetGlobalLevelFromString(cfg.Server.LogLevel)
	if cfg.Server.NoColor {
		logger.SetColored(false)
	}
	return cfg, nil
}

// runServe handles the serve subcommand
func runServe(args []string) {
	serveFlags := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := serveFlags.String("config", config.DefaultConfigPath(), "Path to configuration file")
	port := serveFlags.Int("port", 0, "API server port (overrides config)")
	logLevel := serveFlags.String("log-level", "", "Log level: trace, debug, info, warn, error")
	noColor := serveFlags.Bool("no-color", false, "Disable colored log output")
	_ = serveFlags.Parse(args)

	cfg, err := loadConfig(*configPath, *logLevel, *noColor)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}

	registry, commands, err := buildGuards(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Startup error: %v\n", err)
		os.Exit(1)
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           api.NewServer(registry, commands).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("Guard API listening on :%d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server error: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("Shutdown did not complete cleanly: %v", err)
	}
}

// runCheckCommand handles the check-command subcommand
func runCheckCommand(args []string) {
	checkFlags := flag.NewFlagSet("check-command", flag.ExitOnError)
	configPath := checkFlags.String("config", config.DefaultConfigPath(), "Path to configuration file")
	agentID := checkFlags.String("agent", "", "Agent identity for allowlist overrides")
	asJSON := checkFlags.Bool("json", false, "Print the verdict as JSON")
	_ = checkFlags.Parse(args)

	if checkFlags.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: openclaw-guard check-command [flags] \"<command>\"")
		os.Exit(2)
	}

	v := evaluateOne(*configPath, guard.ToolCallEvent{
		ToolName: "bash",
		Params:   guard.ToolCallParams{Command: checkFlags.Arg(0)},
		AgentID:  *agentID,
	})
	reportVerdict(v, *asJSON)
}

// runCheckURL handles the check-url subcommand
func runCheckURL(args []string) {
	checkFlags := flag.NewFlagSet("check-url", flag.ExitOnError)
	configPath := checkFlags.String("config", config.DefaultConfigPath(), "Path to configuration file")
	agentID := checkFlags.String("agent", "", "Agent identity for allowlist overrides")
	asJSON := checkFlags.Bool("json", false, "Print the verdict as JSON")
	_ = checkFlags.Parse(args)

	if checkFlags.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: openclaw-guard check-url [flags] <url>")
		os.Exit(2)
	}

	v := evaluateOne(*configPath, guard.ToolCallEvent{
		ToolName: "web_fetch",
		Params:   guard.ToolCallParams{URL: checkFlags.Arg(0)},
		AgentID:  *agentID,
	})
	reportVerdict(v, *asJSON)
}

// runScan handles the scan subcommand
func runScan(args []string) {
	scanFlags := flag.NewFlagSet("scan", flag.ExitOnError)
	configPath := scanFlags.String("config", config.DefaultConfigPath(), "Path to configuration file")
	file := scanFlags.String("file", "", "File whose content to scan")
	text := scanFlags.String("text", "", "Literal text to scan")
	asJSON := scanFlags.Bool("json", false, "Print the verdict as JSON")
	_ = scanFlags.Parse(args)

	if (*file == "") == (*text == "") {
		fmt.Fprintln(os.Stderr, "Usage: openclaw-guard scan (-file <path> | -text <text>)")
		os.Exit(2)
	}

	content := *text
	if *file != "" {
		data, err := os.ReadFile(*file)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Cannot read %s: %v\n", *file, err)
			os.Exit(1)
		}
		content = string(data)
	}

	cfg, err := loadConfig(*configPath, "", false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}
	registry, _, err := buildGuards(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Startup error: %v\n", err)
		os.Exit(1)
	}

	v := registry.EvaluateMessage(context.Background(), guard.MessageEvent{
		Message: guard.MessageBody{Text: content},
		Channel: "scan",
	})
	reportVerdict(v, *asJSON)
}

// evaluateOne builds the guards from config and evaluates a single
// tool-call event.
func evaluateOne(configPath string, ev guard.ToolCallEvent) *guard.Verdict {
	cfg, err := loadConfig(configPath, "", false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}
	registry, _, err := buildGuards(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Startup error: %v\n", err)
		os.Exit(1)
	}
	return registry.EvaluateToolCall(context.Background(), ev)
}

// reportVerdict prints a verdict and exits 1 when the action is blocked.
func reportVerdict(v *guard.Verdict, asJSON bool) {
	if asJSON {
		out := v
		if out == nil {
			out = &guard.Verdict{Action: guard.ActionPass}
		}
		data, _ := json.MarshalIndent(out, "", "  ")
		fmt.Println(string(data))
	} else {
		fmt.Println(formatVerdict(v))
	}
	if v.Blocked() {
		os.Exit(1)
	}
}

// formatVerdict renders a verdict for terminal output.
func formatVerdict(v *guard.Verdict) string {
	switch {
	case v.Blocked():
		return fmt.Sprintf("BLOCK [%s] %s", v.Label, v.Reason)
	case v.Warned():
		return fmt.Sprintf("WARN  [%s] %s", v.Label, v.Reason)
	default:
		return "PASS"
	}
}

func printUsage() {
	fmt.Println(`OpenClaw Guard - request interception for agent runtimes

Usage:
  openclaw-guard serve [flags]               Run the evaluation API server
  openclaw-guard check-command "<command>"   Evaluate a shell command
  openclaw-guard check-url <url>             Evaluate a fetch URL
  openclaw-guard scan -file <f> | -text <t>  Classify text for prompt injection
  openclaw-guard help                        Show this help message
  openclaw-guard version                     Show version

Serve Flags:
  --config string      Path to configuration file (default ~/.openclaw-guard/config.yaml)
  --port int           API server port (overrides config)
  --log-level string   Log level: trace, debug, info, warn, error
  --no-color           Disable colored log output

Check Flags:
  --config string      Path to configuration file
  --agent string       Agent identity for allowlist overrides
  --json               Print the verdict as JSON

Exit codes: 0 pass/warn, 1 block, 2 usage error.

Examples:
  openclaw-guard check-command "rm -rf /"
  openclaw-guard check-url https://api.example.com/data
  openclaw-guard scan -file inbox.txt
  openclaw-guard serve --port 9811`)
}
