package registry

import (
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/sammcj/mcp-pdftools/internal/tools"
	"github.com/sirupsen/logrus"
)

var (
	// toolRegistry maps tool names to implementations
	toolRegistry = make(map[string]tools.Tool)

	// disabledTools is the set of tool names named in DISABLED_TOOLS
	disabledTools = make(map[string]bool)

	logger *logrus.Logger

	cache *sync.Map
)

// Init initialises the registry and shared resources
func Init(l *logrus.Logger) {
	logger = l
	cache = &sync.Map{}

	parseDisabledTools()
}

// normaliseName folds case and treats hyphens and underscores alike, so
// pdf-merge and PDF_MERGE name the same tool
func normaliseName(name string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), "-", "_"))
}

// parseDisabledTools reads the comma separated DISABLED_TOOLS variable
func parseDisabledTools() {
	disabledTools = make(map[string]bool)

	for tool := range strings.SplitSeq(os.Getenv("DISABLED_TOOLS"), ",") {
		tool = normaliseName(tool)
		if tool == "" {
			continue
		}
		disabledTools[tool] = true
		if logger != nil {
			logger.WithField("tool", tool).Debug("Tool disabled")
		}
	}

	if logger != nil && len(disabledTools) > 0 {
		logger.WithField("count", len(disabledTools)).Debug("Parsed disabled tools from environment")
	}
}

// IsDisabled reports whether DISABLED_TOOLS names the tool
func IsDisabled(toolName string) bool {
	return disabledTools[normaliseName(toolName)]
}

// Register adds a tool implementation to the registry. Tools register from
// init, before Init has parsed DISABLED_TOOLS, so filtering happens on lookup.
func Register(tool tools.Tool) {
	if toolRegistry == nil {
		toolRegistry = make(map[string]tools.Tool)
	}

	toolName := tool.Definition().Name
	toolRegistry[toolName] = tool
	if logger != nil {
		logger.WithField("tool", toolName).Debug("Tool registered")
	}
}

// GetTool retrieves a tool by name, returns false if unknown or disabled
func GetTool(name string) (tools.Tool, bool) {
	if IsDisabled(name) {
		return nil, false
	}
	tool, ok := toolRegistry[name]
	return tool, ok
}

// GetTools returns all registered tools, excluding disabled ones
func GetTools() map[string]tools.Tool {
	filteredTools := make(map[string]tools.Tool)
	for name, tool := range toolRegistry {
		if IsDisabled(name) {
			continue
		}
		filteredTools[name] = tool
	}
	return filteredTools
}

// GetLogger returns the shared logger instance
func GetLogger() *logrus.Logger {
	return logger
}

// GetCache returns the shared cache instance
func GetCache() *sync.Map {
	return cache
}

// GetEnabledToolNames returns a sorted list of enabled tool names
func GetEnabledToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range GetTools() {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetToolNamesWithExtendedHelp returns a sorted list of enabled tool names that provide extended help
func GetToolNamesWithExtendedHelp() []string {
	var names []string
	for name, tool := range GetTools() {
		if _, ok := tool.(tools.ExtendedHelpProvider); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
