// Package cli runs the PDF tools from the command line without an MCP
// server. Tools are invoked in-process through the registry.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"
	"text/tabwriter"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sahilm/fuzzy"
	"github.com/sammcj/mcp-pdftools/internal/registry"
	"github.com/sammcj/mcp-pdftools/internal/tools"
	"github.com/sirupsen/logrus"
)

// OutputFormat controls how tool results are rendered.
type OutputFormat string

const (
	OutputText OutputFormat = "text"
	OutputJSON OutputFormat = "json"
)

// ToolRecorder is told the name of every tool that is run
type ToolRecorder interface {
	RecordTool(name string) error
}

// Runner executes CLI commands against the tool registry.
type Runner struct {
	logger   *logrus.Logger
	cache    *sync.Map
	output   OutputFormat
	out      io.Writer
	recorder ToolRecorder
}

// NewRunner creates a Runner writing to out. recorder may be nil.
func NewRunner(logger *logrus.Logger, cache *sync.Map, output OutputFormat, out io.Writer, recorder ToolRecorder) *Runner {
	return &Runner{logger: logger, cache: cache, output: output, out: out, recorder: recorder}
}

// ListTools prints all enabled tools with their descriptions.
func (r *Runner) ListTools() error {
	type entry struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}

	var entries []entry
	for _, t := range registry.GetTools() {
		def := t.Definition()
		entries = append(entries, entry{Name: def.Name, Description: firstSentence(def.Description)})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	if r.output == OutputJSON {
		return writeJSON(r.out, entries)
	}

	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	for _, e := range entries {
		_, _ = fmt.Fprintf(w, "%s\t%s\n", e.Name, e.Description)
	}
	return w.Flush()
}

// HelpTool prints the parameters and, where available, examples for one tool.
func (r *Runner) HelpTool(name string) error {
	tool, err := lookup(name)
	if err != nil {
		return err
	}
	def := tool.Definition()

	var extended *tools.ExtendedHelp
	if provider, ok := tool.(tools.ExtendedHelpProvider); ok {
		extended = provider.ProvideExtendedInfo()
	}

	if r.output == OutputJSON {
		return writeJSON(r.out, struct {
			Tool     mcp.Tool            `json:"tool"`
			Extended *tools.ExtendedHelp `json:"extended,omitempty"`
		}{def, extended})
	}

	_, _ = fmt.Fprintf(r.out, "Tool: %s\n\n", def.Name)
	if def.Description != "" {
		_, _ = fmt.Fprintf(r.out, "%s\n\n", def.Description)
	}

	props := def.InputSchema.Properties
	if len(props) == 0 {
		_, _ = fmt.Fprintln(r.out, "No parameters.")
	} else {
		_, _ = fmt.Fprintln(r.out, "Parameters:")
		required := def.InputSchema.Required

		names := make([]string, 0, len(props))
		for k := range props {
			names = append(names, k)
		}
		slices.Sort(names)

		w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
		for _, pName := range names {
			pMap, ok := props[pName].(map[string]any)
			if !ok {
				continue
			}
			pType, _ := pMap["type"].(string)
			pDesc, _ := pMap["description"].(string)

			reqMark := ""
			if slices.Contains(required, pName) {
				reqMark = " (required)"
			}
			_, _ = fmt.Fprintf(w, "  --%s\t%s\t%s%s%s\n", toFlagName(pName), pType, pDesc, reqMark, formatEnum(pMap))
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	if extended != nil && len(extended.Examples) > 0 {
		_, _ = fmt.Fprintln(r.out, "\nExamples:")
		for _, ex := range extended.Examples {
			args, _ := json.Marshal(ex.Arguments)
			_, _ = fmt.Fprintf(r.out, "  %s\n    %s\n", ex.Description, args)
		}
	}
	return nil
}

// RunTool executes a tool by name with the given arguments.
// args can be:
//   - A single JSON string: '{"key": "value"}'
//   - Flag-style arguments: --key=value --flag
//   - Mixed: --key=value '{"other": "json"}'  (flags take precedence)
func (r *Runner) RunTool(ctx context.Context, name string, args []string) error {
	tool, err := lookup(name)
	if err != nil {
		return err
	}
	def := tool.Definition()

	params, err := parseArgs(args, def)
	if err != nil {
		return fmt.Errorf("argument error: %w", err)
	}

	if r.recorder != nil {
		if err := r.recorder.RecordTool(def.Name); err != nil {
			r.logger.WithError(err).Warn("Failed to persist last tool")
		}
	}

	result, err := tool.Execute(ctx, r.logger, r.cache, params)
	if err != nil {
		return fmt.Errorf("tool error: %w", err)
	}

	return r.renderResult(result)
}

// lookup resolves a tool name, suggesting close matches when it is unknown
func lookup(name string) (tools.Tool, error) {
	if tool, ok := registry.GetTool(name); ok {
		return tool, nil
	}
	// CLI users type kebab-case, tools register with snake_case
	if tool, ok := registry.GetTool(strings.ReplaceAll(name, "-", "_")); ok {
		return tool, nil
	}

	msg := fmt.Sprintf("unknown tool: %s", name)
	if suggestions := suggest(name, registry.GetEnabledToolNames()); len(suggestions) > 0 {
		msg += fmt.Sprintf(" (did you mean %s?)", strings.Join(suggestions, ", "))
	}
	return nil, fmt.Errorf("%s (run 'mcp-pdftools cli list' to see available tools)", msg)
}

// suggest returns up to three known names that fuzzily match name
func suggest(name string, known []string) []string {
	pattern := strings.ReplaceAll(strings.ToLower(name), "-", "_")
	matches := fuzzy.Find(pattern, known)
	if len(matches) == 0 {
		// retry without the common prefix, so "split" finds both split tools
		matches = fuzzy.Find(strings.TrimPrefix(pattern, "pdf_"), known)
	}

	var out []string
	for i, m := range matches {
		if i == 3 {
			break
		}
		out = append(out, m.Str)
	}
	return out
}

// parseArgs converts CLI arguments into a map[string]any suitable for tool.Execute().
// Supports JSON input, --key=value flags, and --flag (boolean true).
func parseArgs(args []string, def mcp.Tool) (map[string]any, error) {
	params := make(map[string]any)
	schema := buildSchemaInfo(def)

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if strings.HasPrefix(arg, "{") {
			var obj map[string]any
			if err := json.Unmarshal([]byte(arg), &obj); err != nil {
				return nil, fmt.Errorf("invalid JSON argument: %w", err)
			}
			// earlier flags take precedence
			for k, v := range obj {
				if _, exists := params[k]; !exists {
					params[k] = v
				}
			}
			continue
		}

		if strings.HasPrefix(arg, "--") {
			key, val, err := parseFlag(arg, args, &i, schema)
			if err != nil {
				return nil, err
			}
			params[key] = val
			continue
		}

		return nil, fmt.Errorf("unexpected argument: %s (use --key=value flags or pass a JSON object)", arg)
	}

	return params, nil
}

// schemaInfo holds resolved schema information for argument parsing.
type schemaInfo struct {
	// typeMap maps parameter names to their JSON Schema types
	typeMap map[string]string
	// flagToParam maps kebab-case flag names to parameter names
	flagToParam map[string]string
}

// parseFlag parses a single --key=value or --key value or --flag (bool true).
func parseFlag(arg string, args []string, idx *int, schema schemaInfo) (string, any, error) {
	stripped := strings.TrimPrefix(arg, "--")

	if flagName, rawVal, found := strings.Cut(stripped, "="); found {
		paramName := schema.resolveParam(flagName)
		return paramName, coerceValue(rawVal, schema.typeMap[paramName]), nil
	}

	flagName := stripped
	paramName := schema.resolveParam(flagName)

	if schema.typeMap[paramName] == "boolean" {
		return paramName, true, nil
	}

	*idx++
	if *idx >= len(args) {
		return "", nil, fmt.Errorf("flag --%s requires a value", flagName)
	}
	return paramName, coerceValue(args[*idx], schema.typeMap[paramName]), nil
}

func (s schemaInfo) resolveParam(flagName string) string {
	if actual, ok := s.flagToParam[flagName]; ok {
		return actual
	}
	return strings.ReplaceAll(flagName, "-", "_")
}

func buildSchemaInfo(def mcp.Tool) schemaInfo {
	info := schemaInfo{
		typeMap:     make(map[string]string, len(def.InputSchema.Properties)),
		flagToParam: make(map[string]string, len(def.InputSchema.Properties)),
	}
	for name, prop := range def.InputSchema.Properties {
		if pm, ok := prop.(map[string]any); ok {
			if t, ok := pm["type"].(string); ok {
				info.typeMap[name] = t
			}
		}
		info.flagToParam[toFlagName(name)] = name
	}
	return info
}

// coerceValue converts a flag value to the Go type tools receive from JSON.
// Numbers become float64 and arrays []any, as encoding/json produces.
func coerceValue(raw, schemaType string) any {
	switch schemaType {
	case "number", "integer":
		if f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
			return f
		}
		return raw
	case "boolean":
		switch strings.ToLower(raw) {
		case "true", "1", "yes":
			return true
		case "false", "0", "no":
			return false
		}
		return raw
	case "array":
		var arr []any
		if err := json.Unmarshal([]byte(raw), &arr); err == nil {
			return arr
		}
		var out []any
		for part := range strings.SplitSeq(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	default:
		return raw
	}
}

// renderResult prints a tool result. A JSON body carrying an error field
// fails the command after printing.
func (r *Runner) renderResult(result *mcp.CallToolResult) error {
	if result == nil {
		return nil
	}

	if r.output == OutputJSON {
		if err := writeJSON(r.out, result); err != nil {
			return err
		}
	}

	var failure string
	for _, content := range result.Content {
		c, ok := content.(mcp.TextContent)
		if !ok {
			continue
		}
		if r.output != OutputJSON {
			_, _ = fmt.Fprintln(r.out, c.Text)
		}
		var body struct {
			Error string `json:"error"`
		}
		if json.Unmarshal([]byte(c.Text), &body) == nil && body.Error != "" {
			failure = body.Error
		}
	}

	switch {
	case result.IsError:
		return fmt.Errorf("tool returned an error")
	case failure != "":
		return fmt.Errorf("tool failed: %s", failure)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// firstSentence trims a description to its first sentence for listings
func firstSentence(s string) string {
	if before, _, found := strings.Cut(s, ". "); found {
		return before + "."
	}
	return s
}

// toFlagName converts snake_case to kebab-case for CLI flags.
func toFlagName(s string) string {
	return strings.ReplaceAll(s, "_", "-")
}

func formatEnum(pMap map[string]any) string {
	var vals []string
	switch enum := pMap["enum"].(type) {
	case []string:
		vals = enum
	case []any:
		for _, v := range enum {
			vals = append(vals, fmt.Sprint(v))
		}
	}
	if len(vals) == 0 {
		return ""
	}
	return " [" + strings.Join(vals, "|") + "]"
}
