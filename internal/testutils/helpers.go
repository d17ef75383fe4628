package testutils

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sirupsen/logrus"
)

// CreateTestLogger creates a logger suitable for testing
func CreateTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel) // Reduce noise in tests
	return logger
}

// CreateTestCache creates a cache suitable for testing
func CreateTestCache() *sync.Map {
	return &sync.Map{}
}

// CreateTestContext creates a context suitable for testing
func CreateTestContext() context.Context {
	return context.Background()
}

// ResultText returns the first text content of a tool result
func ResultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()

	if result == nil {
		t.Fatal("Expected a tool result, got nil")
	}
	if len(result.Content) == 0 {
		t.Fatal("Expected content in tool result")
	}
	textContent, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("Expected TextContent, got %T", result.Content[0])
	}
	return textContent.Text
}

// DecodeResult unmarshals the JSON text of a tool result into a map
func DecodeResult(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()

	var body map[string]any
	if err := json.Unmarshal([]byte(ResultText(t, result)), &body); err != nil {
		t.Fatalf("Failed to parse tool result JSON: %v", err)
	}
	return body
}
