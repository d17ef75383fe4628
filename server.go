package main

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/sammcj/mcp-pdftools/internal/registry"
	"github.com/sammcj/mcp-pdftools/internal/tools"
	"github.com/sirupsen/logrus"
)

type authKey struct{}

// newMCPServer registers every enabled tool. When authToken is set, calls
// whose request did not carry it are refused.
func newMCPServer(logger *logrus.Logger, transport, authToken string) *mcpserver.MCPServer {
	mcpSrv := mcpserver.NewMCPServer("mcp-pdftools", Version)

	enabledTools := registry.GetTools()
	logger.WithField("tool_count", len(enabledTools)).Debug("MCP server created, registering tools")

	for toolName, toolImpl := range enabledTools {
		name := toolName
		if transport != "stdio" {
			logger.Infof("Registering tool: %s", name)
		}

		mcpSrv.AddTool(toolImpl.Definition(), func(toolCtx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			if authToken != "" && toolCtx.Value(authKey{}) != true {
				return nil, fmt.Errorf("unauthorised: a valid bearer token is required")
			}

			currentTool, ok := registry.GetTool(name)
			if !ok {
				return nil, fmt.Errorf("tool not found: %s", name)
			}

			args, ok := request.Params.Arguments.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("invalid arguments type: expected map[string]any, got %T", request.Params.Arguments)
			}

			result, err := currentTool.Execute(toolCtx, registry.GetLogger(), registry.GetCache(), args)
			if err != nil {
				if transport != "stdio" {
					logger.WithError(err).Errorf("Tool execution failed: %s", name)
				}
				tools.GetGlobalErrorLogger().LogToolError(name, args, err, transport)
				return nil, fmt.Errorf("tool execution failed: %w", err)
			}
			return result, nil
		})
	}
	return mcpSrv
}

// startStreamableHTTPServer serves MCP over streamable HTTP until ctx ends
func startStreamableHTTPServer(ctx context.Context, mcpServer *mcpserver.MCPServer, logger *logrus.Logger, port, endpointPath, authToken string, sessionTimeout time.Duration) error {
	logger.Infof("Starting Streamable HTTP server on port %s with endpoint %s", port, endpointPath)

	opts := []mcpserver.StreamableHTTPOption{
		mcpserver.WithEndpointPath(endpointPath),
		mcpserver.WithHTTPContextFunc(createAuthMiddleware(authToken, logger)),
		mcpserver.WithLogger(&logrusAdapter{logger: logger}),
		mcpserver.WithHeartbeatInterval(30 * time.Second),
	}
	if sessionTimeout > 0 {
		opts = append(opts, mcpserver.WithSessionIdManager(newTimeoutSessionManager(sessionTimeout, logger)))
	}

	mux := http.NewServeMux()
	mux.Handle(endpointPath, mcpserver.NewStreamableHTTPServer(mcpServer, opts...))

	// No write timeout, responses are streamed
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			select {
			case serverErr <- err:
			case <-ctx.Done():
			}
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("HTTP server failed: %w", err)
	case <-ctx.Done():
		logger.Info("Shutdown signal received, stopping HTTP server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("HTTP server shutdown failed")
		return err
	}
	logger.Info("HTTP server stopped gracefully")
	return nil
}

// createAuthMiddleware checks protocol and origin headers and, when a token
// is configured, marks requests carrying it as authorised
func createAuthMiddleware(expectedToken string, logger *logrus.Logger) mcpserver.HTTPContextFunc {
	return func(ctx context.Context, req *http.Request) context.Context {
		if protocolVersion := req.Header.Get("MCP-Protocol-Version"); protocolVersion != "" {
			if !isValidProtocolVersion(protocolVersion) {
				logger.Warnf("Unsupported MCP Protocol Version: %s", protocolVersion)
			} else {
				logger.Debugf("MCP Protocol Version: %s", protocolVersion)
			}
		}

		// DNS rebinding protection
		if origin := req.Header.Get("Origin"); origin != "" && !isValidOrigin(origin) {
			logger.Warnf("Invalid Origin header: %s", origin)
			return ctx
		}

		if expectedToken == "" {
			return ctx
		}

		token, found := strings.CutPrefix(req.Header.Get("Authorization"), "Bearer ")
		if !found {
			logger.Warn("Request missing bearer token")
			return ctx
		}
		if token != expectedToken {
			logger.Warn("Invalid authentication token")
			return ctx
		}

		logger.Debug("Request authenticated successfully")
		return context.WithValue(ctx, authKey{}, true)
	}
}

// isValidProtocolVersion checks if the MCP protocol version is supported
func isValidProtocolVersion(version string) bool {
	return slices.Contains([]string{"2025-06-18", "2025-03-26", "2024-11-05"}, version)
}

// isValidOrigin allows only loopback origins
func isValidOrigin(origin string) bool {
	for _, allowed := range []string{"http://localhost", "https://localhost", "http://127.0.0.1", "https://127.0.0.1"} {
		if origin == allowed || strings.HasPrefix(origin, allowed+":") || strings.HasPrefix(origin, allowed+"/") {
			return true
		}
	}
	return false
}

// TimeoutSessionManager issues session IDs that expire after a period of
// inactivity
type TimeoutSessionManager struct {
	timeout time.Duration
	logger  *logrus.Logger
	now     func() time.Time

	mu       sync.Mutex
	lastSeen map[string]time.Time
}

func newTimeoutSessionManager(timeout time.Duration, logger *logrus.Logger) *TimeoutSessionManager {
	return &TimeoutSessionManager{
		timeout:  timeout,
		logger:   logger,
		now:      time.Now,
		lastSeen: make(map[string]time.Time),
	}
}

func (t *TimeoutSessionManager) Generate() string {
	id := uuid.NewString()
	t.mu.Lock()
	t.lastSeen[id] = t.now()
	t.mu.Unlock()
	return id
}

// Validate reports whether the session has ended. Unknown and expired
// sessions count as terminated.
func (t *TimeoutSessionManager) Validate(sessionID string) (bool, error) {
	if sessionID == "" {
		return false, fmt.Errorf("empty session ID")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	seen, ok := t.lastSeen[sessionID]
	if !ok {
		return true, nil
	}
	if t.now().Sub(seen) > t.timeout {
		delete(t.lastSeen, sessionID)
		t.logger.Debugf("Session expired: %s", sessionID)
		return true, nil
	}
	t.lastSeen[sessionID] = t.now()
	return false, nil
}

func (t *TimeoutSessionManager) Terminate(sessionID string) (bool, error) {
	t.mu.Lock()
	delete(t.lastSeen, sessionID)
	t.mu.Unlock()
	t.logger.Debugf("Session terminated: %s", sessionID)
	return false, nil
}

// logrusAdapter satisfies the mcp-go server logger
type logrusAdapter struct {
	logger *logrus.Logger
}

func (l *logrusAdapter) Debugf(format string, args ...any) {
	l.logger.Debugf(format, args...)
}

func (l *logrusAdapter) Infof(format string, args ...any) {
	l.logger.Infof(format, args...)
}

func (l *logrusAdapter) Warnf(format string, args ...any) {
	l.logger.Warnf(format, args...)
}

func (l *logrusAdapter) Errorf(format string, args ...any) {
	l.logger.Errorf(format, args...)
}
