package registry

import (
	"testing"

	"github.com/sammcj/mcp-pdftools/internal/testutils"
	"github.com/sammcj/mcp-pdftools/internal/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withRegistry(t *testing.T, disabled string, names ...string) {
	t.Helper()
	saved := toolRegistry
	t.Cleanup(func() {
		toolRegistry = saved
		t.Setenv("DISABLED_TOOLS", "")
		parseDisabledTools()
	})

	toolRegistry = make(map[string]tools.Tool)
	t.Setenv("DISABLED_TOOLS", disabled)
	Init(testutils.CreateTestLogger())
	for _, name := range names {
		Register(testutils.NewMockTool(name))
	}
}

func TestRegistry_GetTool(t *testing.T) {
	withRegistry(t, "", "pdf_merge", "pdf_rotate")

	tool, ok := GetTool("pdf_merge")
	require.True(t, ok)
	assert.Equal(t, "pdf_merge", tool.Definition().Name)

	_, ok = GetTool("pdf_missing")
	assert.False(t, ok)
	assert.NotNil(t, GetCache())
	assert.NotNil(t, GetLogger())
}

func TestRegistry_DisabledTools(t *testing.T) {
	withRegistry(t, " PDF-Merge , , pdf_info", "pdf_merge", "pdf_rotate", "pdf_info")

	assert.True(t, IsDisabled("pdf_merge"))
	assert.True(t, IsDisabled("pdf-info"))
	assert.False(t, IsDisabled("pdf_rotate"))

	_, ok := GetTool("pdf_merge")
	assert.False(t, ok)
	assert.Equal(t, []string{"pdf_rotate"}, GetEnabledToolNames())
	assert.Len(t, GetTools(), 1)
}

func TestRegistry_ExtendedHelpFilter(t *testing.T) {
	withRegistry(t, "", "pdf_merge")
	// MockTool does not provide extended help
	assert.Empty(t, GetToolNamesWithExtendedHelp())
}
