// Package toolhelp serves parameter summaries, examples and troubleshooting
// notes for the other registered tools.
package toolhelp

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sahilm/fuzzy"
	"github.com/sammcj/mcp-pdftools/internal/registry"
	"github.com/sammcj/mcp-pdftools/internal/tools"
	"github.com/sirupsen/logrus"
)

// Name is the registered name of the help tool
const Name = "pdf_tool_help"

// ToolHelpTool describes the other tools in more depth than their MCP
// definitions allow
type ToolHelpTool struct{}

func init() {
	registry.Register(&ToolHelpTool{})
}

// Parameter is one input of a described tool
type Parameter struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Required    bool     `json:"required"`
	Description string   `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
	Default     any      `json:"default,omitempty"`
}

// Help is the response for a single tool
type Help struct {
	ToolName    string              `json:"tool_name"`
	Description string              `json:"description"`
	Parameters  []Parameter         `json:"parameters"`
	Extended    *tools.ExtendedHelp `json:"extended_help,omitempty"`
}

// Summary is one line of the index returned when no tool is named
type Summary struct {
	ToolName        string `json:"tool_name"`
	Description     string `json:"description"`
	HasExtendedHelp bool   `json:"has_extended_help"`
}

func (t *ToolHelpTool) Definition() mcp.Tool {
	var names []string
	for name := range registry.GetTools() {
		if name != Name {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	nameOpts := []mcp.PropertyOption{
		mcp.Description("Tool to describe. Omit to list every tool."),
	}
	if len(names) > 0 {
		nameOpts = append(nameOpts, mcp.Enum(names...))
	}

	return mcp.NewTool(
		Name,
		mcp.WithDescription("Explains how to call the PDF tools, with worked examples and fixes for common errors. Use it after a tool returns an unexpected error_kind."),
		mcp.WithString("tool_name", nameOpts...),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)
}

func (t *ToolHelpTool) Execute(ctx context.Context, logger *logrus.Logger, cache *sync.Map, args map[string]any) (*mcp.CallToolResult, error) {
	raw, present := args["tool_name"]
	name, ok := raw.(string)
	if present && !ok {
		return nil, fmt.Errorf("invalid parameter: tool_name must be a string")
	}
	name = strings.TrimSpace(name)

	if name == "" {
		return newToolResult(index())
	}

	tool, found := registry.GetTool(name)
	if !found || name == Name {
		return nil, unknownTool(name)
	}

	logger.WithField("tool", name).Debug("Describing tool")
	return newToolResult(describe(tool))
}

func index() []Summary {
	var out []Summary
	for name, tool := range registry.GetTools() {
		if name == Name {
			continue
		}
		_, extended := tool.(tools.ExtendedHelpProvider)
		out = append(out, Summary{
			ToolName:        name,
			Description:     tool.Definition().Description,
			HasExtendedHelp: extended,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ToolName < out[j].ToolName })
	return out
}

func describe(tool tools.Tool) Help {
	def := tool.Definition()
	help := Help{
		ToolName:    def.Name,
		Description: def.Description,
		Parameters:  parameters(def),
	}
	if provider, ok := tool.(tools.ExtendedHelpProvider); ok {
		help.Extended = provider.ProvideExtendedInfo()
	}
	return help
}

// parameters flattens the input schema, required parameters first
func parameters(def mcp.Tool) []Parameter {
	required := make(map[string]bool, len(def.InputSchema.Required))
	for _, r := range def.InputSchema.Required {
		required[r] = true
	}

	params := make([]Parameter, 0, len(def.InputSchema.Properties))
	for name, prop := range def.InputSchema.Properties {
		p := Parameter{Name: name, Required: required[name]}
		if m, ok := prop.(map[string]any); ok {
			p.Type, _ = m["type"].(string)
			p.Description, _ = m["description"].(string)
			p.Default = m["default"]
			p.Enum = enumValues(m["enum"])
		}
		params = append(params, p)
	}

	sort.Slice(params, func(i, j int) bool {
		if params[i].Required != params[j].Required {
			return params[i].Required
		}
		return params[i].Name < params[j].Name
	})
	return params
}

func enumValues(v any) []string {
	switch vals := v.(type) {
	case []string:
		return vals
	case []any:
		out := make([]string, 0, len(vals))
		for _, e := range vals {
			out = append(out, fmt.Sprint(e))
		}
		return out
	}
	return nil
}

func unknownTool(name string) error {
	var known []string
	for n := range registry.GetTools() {
		if n != Name {
			known = append(known, n)
		}
	}
	sort.Strings(known)

	if matches := fuzzy.Find(name, known); len(matches) > 0 {
		return fmt.Errorf("unknown tool %q, did you mean %q?", name, matches[0].Str)
	}
	return fmt.Errorf("unknown tool %q, available tools: %s", name, strings.Join(known, ", "))
}

func newToolResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
