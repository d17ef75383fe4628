package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	pdfcli "github.com/sammcj/mcp-pdftools/internal/cli"
	"github.com/sammcj/mcp-pdftools/internal/config"
	"github.com/sammcj/mcp-pdftools/internal/emit"
	"github.com/sammcj/mcp-pdftools/internal/registry"
	"github.com/sammcj/mcp-pdftools/internal/telemetry"
	"github.com/sammcj/mcp-pdftools/internal/tools"
	"github.com/sammcj/mcp-pdftools/internal/tools/pdf"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"

	// Import all tool packages to register them
	_ "github.com/sammcj/mcp-pdftools/internal/imports"
)

// Version information (set during build)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// Global resources that need cleanup
var (
	debugLogFile atomic.Pointer[os.File]
	isStdioMode  atomic.Bool
)

const (
	// DefaultMemoryLimit is the default memory limit for the Go application (5GB)
	DefaultMemoryLimit = 5 * 1024 * 1024 * 1024

	// EnvMemoryLimit overrides DefaultMemoryLimit, in bytes
	EnvMemoryLimit = "MCP_PDFTOOLS_MEMORY_LIMIT"
)

// parseLogLevel maps a LOG_LEVEL value to a logrus level, defaulting to warn
func parseLogLevel(value string) logrus.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.WarnLevel
	}
}

// parseMemoryLimit returns the limit from value, or the default when value
// is empty or not a positive integer
func parseMemoryLimit(value string) int64 {
	if parsed, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil && parsed > 0 {
		return parsed
	}
	return DefaultMemoryLimit
}

func main() {
	// Soft limit, the GC works harder as usage approaches it
	debug.SetMemoryLimit(parseMemoryLimit(os.Getenv(EnvMemoryLimit)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Output is discarded until the transport is known
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logger.SetLevel(parseLogLevel(os.Getenv("LOG_LEVEL")))
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	// .env files must be loaded before the registry reads DISABLED_TOOLS
	config.LoadEnvFiles(logger)
	registry.Init(logger)

	defer performCleanup(logger)

	if err := newApp(logger).Run(ctx, os.Args); err != nil {
		// stdout and stderr belong to the protocol in stdio mode
		if !isStdioMode.Load() {
			_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		performCleanup(logger)
		os.Exit(1)
	}
}

func newApp(logger *logrus.Logger) *cli.Command {
	return &cli.Command{
		Name:    "mcp-pdftools",
		Usage:   "MCP server for splitting, merging and rearranging PDF documents",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "transport",
				Aliases: []string{"t"},
				Value:   "stdio",
				Usage:   "Transport type (stdio, sse, or http)",
			},
			&cli.StringFlag{
				Name:  "port",
				Value: "18080",
				Usage: "Port to use for HTTP transports (SSE and Streamable HTTP)",
			},
			&cli.StringFlag{
				Name:  "base-url",
				Value: "http://localhost",
				Usage: "Base URL for HTTP transports",
			},
			&cli.StringFlag{
				Name:    "auth-token",
				Usage:   "Bearer token required by the Streamable HTTP transport (optional)",
				Sources: cli.EnvVars("PDFTOOLS_AUTH_TOKEN"),
			},
			&cli.StringFlag{
				Name:  "endpoint-path",
				Value: "/http",
				Usage: "Endpoint path for Streamable HTTP transport",
			},
			&cli.DurationFlag{
				Name:  "session-timeout",
				Value: 30 * time.Minute,
				Usage: "Idle timeout for Streamable HTTP sessions",
			},
			&cli.StringFlag{
				Name:    "theme",
				Usage:   "Console status theme for CLI runs (dark or light); remembered between runs",
				Sources: cli.EnvVars("PDFTOOLS_THEME"),
			},
		},
		Commands: []*cli.Command{
			versionCommand(),
			cliCommand(logger),
			stateCommand(),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return serve(ctx, cmd, logger)
		},
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print version information",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			w := cmd.Root().Writer
			_, _ = fmt.Fprintf(w, "mcp-pdftools version %s\n", Version)
			_, _ = fmt.Fprintf(w, "Commit: %s\n", Commit)
			_, _ = fmt.Fprintf(w, "Built: %s\n", BuildDate)
			return nil
		},
	}
}

// serve runs the MCP server on the selected transport
func serve(ctx context.Context, cmd *cli.Command, logger *logrus.Logger) error {
	transport := cmd.String("transport")
	port := cmd.String("port")
	baseURL := cmd.String("base-url")
	authToken := cmd.String("auth-token")

	isStdioMode.Store(transport == "stdio")
	configureLogging(logger, transport == "stdio")

	if _, err := config.Load(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	shutdownTracer, err := telemetry.InitTracer(logger)
	if err != nil {
		logger.WithError(err).Warn("Failed to initialise tracing")
	} else {
		defer func() { _ = shutdownTracer() }()
	}

	if err := tools.InitGlobalErrorLogger(logger); err != nil {
		logger.WithError(err).Debug("Failed to initialise tool error logger")
	}

	if transport != "stdio" {
		logger.Infof("Starting mcp-pdftools version %s (commit: %s, built: %s)", Version, Commit, BuildDate)
	}
	if authToken != "" && transport != "http" {
		logger.Warnf("--auth-token only applies to the http transport, ignoring it for %s", transport)
		authToken = ""
	}

	mcpSrv := newMCPServer(logger, transport, authToken)

	logger.WithField("transport", transport).Debug("Starting server")
	switch transport {
	case "stdio":
		return mcpserver.ServeStdio(mcpSrv)
	case "sse":
		sseServer := mcpserver.NewSSEServer(mcpSrv, mcpserver.WithBaseURL(baseURL+"/sse"))
		return sseServer.Start(":" + port)
	case "http":
		return startStreamableHTTPServer(ctx, mcpSrv, logger, port, cmd.String("endpoint-path"), authToken, cmd.Duration("session-timeout"))
	default:
		return fmt.Errorf("unsupported transport: %s", transport)
	}
}

// configureLogging sends logs to a file under the config directory. Stdio
// mode never falls back to stderr and always records warnings.
func configureLogging(logger *logrus.Logger, stdio bool) {
	level := parseLogLevel(os.Getenv("LOG_LEVEL"))
	if stdio && level < logrus.WarnLevel {
		level = logrus.WarnLevel
	}
	logger.SetLevel(level)
	logrus.SetLevel(level)

	fallback := io.Writer(os.Stderr)
	if stdio {
		fallback = io.Discard
	}

	logDir := filepath.Join(config.Dir(), "logs")
	if err := os.MkdirAll(logDir, 0700); err != nil {
		logger.SetOutput(fallback)
		logrus.SetOutput(fallback)
		return
	}

	file, err := os.OpenFile(filepath.Join(logDir, "mcp-pdftools.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		logger.SetOutput(fallback)
		logrus.SetOutput(fallback)
		return
	}

	if old := debugLogFile.Swap(file); old != nil {
		_ = old.Close()
	}
	logger.SetOutput(file)
	logrus.SetOutput(file)
	logger.WithField("level", level.String()).Debug("Logging configured")
}

// cliCommand runs tools directly, printing status to stderr
func cliCommand(logger *logrus.Logger) *cli.Command {
	runner := func(cmd *cli.Command) (*pdfcli.Runner, error) {
		output := pdfcli.OutputFormat(cmd.String("output"))
		if output != pdfcli.OutputText && output != pdfcli.OutputJSON {
			return nil, fmt.Errorf("output must be text or json, got %q", output)
		}

		logger.SetOutput(os.Stderr)
		logger.SetLevel(parseLogLevel(os.Getenv("LOG_LEVEL")))

		state := config.GetGlobalState()
		theme := resolveTheme(cmd.Root().String("theme"), state, logger)
		pdf.SetStatusSink(emit.NewConsoleSink(cmd.Root().ErrWriter, theme))

		return pdfcli.NewRunner(logger, registry.GetCache(), output, cmd.Root().Writer, state), nil
	}

	return &cli.Command{
		Name:  "cli",
		Usage: "Run tools from the command line",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Value:   string(pdfcli.OutputText),
				Usage:   "Output format (text or json)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List the available tools",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					r, err := runner(cmd)
					if err != nil {
						return err
					}
					if err := config.GetGlobalState().RecordTool(config.HomeTool); err != nil {
						logger.WithError(err).Warn("Failed to persist last tool")
					}
					return r.ListTools()
				},
			},
			{
				Name:      "help",
				Usage:     "Show parameters and examples for a tool",
				ArgsUsage: "<tool>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if cmd.Args().Len() != 1 {
						return fmt.Errorf("usage: mcp-pdftools cli help <tool>")
					}
					r, err := runner(cmd)
					if err != nil {
						return err
					}
					return r.HelpTool(cmd.Args().First())
				},
			},
			{
				Name:            "run",
				Usage:           "Run a tool with JSON or --flag=value arguments",
				ArgsUsage:       "<tool> [arguments...]",
				SkipFlagParsing: true,
				Action: func(ctx context.Context, cmd *cli.Command) error {
					args := cmd.Args().Slice()
					if len(args) == 0 {
						return fmt.Errorf("usage: mcp-pdftools cli run <tool> [arguments...]")
					}

					r, err := runner(cmd)
					if err != nil {
						return err
					}

					shutdownTracer, err := telemetry.InitTracer(logger)
					if err != nil {
						logger.WithError(err).Warn("Failed to initialise tracing")
					} else {
						defer func() { _ = shutdownTracer() }()
					}
					return r.RunTool(ctx, args[0], args[1:])
				},
			},
		},
	}
}

// resolveTheme prefers the flag, then the remembered theme. A theme given
// on the command line is remembered for the next run.
func resolveTheme(flag string, state *config.StateFile, logger *logrus.Logger) emit.Theme {
	if flag != "" {
		theme := emit.ParseTheme(strings.ToLower(flag))
		if err := state.Set(config.KeyTheme, string(theme)); err != nil {
			logger.WithError(err).Warn("Failed to persist theme")
		}
		return theme
	}

	saved, ok, err := state.Get(config.KeyTheme)
	if err != nil {
		logger.WithError(err).Debug("Failed to read saved theme")
	}
	if ok {
		return emit.ParseTheme(saved)
	}
	return emit.ThemeDark
}

func stateCommand() *cli.Command {
	return &cli.Command{
		Name:  "state",
		Usage: "Show remembered CLI state",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			state := config.GetGlobalState()
			values, err := state.All()
			if err != nil {
				return err
			}

			keys := make([]string, 0, len(values))
			for k := range values {
				keys = append(keys, k)
			}
			sort.Strings(keys)

			w := cmd.Root().Writer
			_, _ = fmt.Fprintf(w, "# %s\n", state.Path())
			for _, k := range keys {
				_, _ = fmt.Fprintf(w, "%s=%s\n", k, values[k])
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "set",
				Usage:     "Set a remembered value",
				ArgsUsage: "<key> <value>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if cmd.Args().Len() != 2 {
						return fmt.Errorf("usage: mcp-pdftools state set <key> <value>")
					}
					return config.GetGlobalState().Set(cmd.Args().Get(0), cmd.Args().Get(1))
				},
			},
		},
	}
}

// performCleanup releases the log files. Safe to call more than once.
func performCleanup(logger *logrus.Logger) {
	if file := debugLogFile.Swap(nil); file != nil {
		_ = file.Close()
	}

	if errorLogger := tools.GetGlobalErrorLogger(); errorLogger != nil {
		if err := errorLogger.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close tool error logger")
		}
	}
}
