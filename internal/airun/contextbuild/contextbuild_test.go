package contextbuild

import (
	"strings"
	"testing"

	projectdomain "github.com/appdraft/appdraft/internal/project/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func files(pairs ...string) []projectdomain.ProjectFile {
	var out []projectdomain.ProjectFile
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, projectdomain.ProjectFile{Path: pairs[i], Content: pairs[i+1]})
	}
	return out
}

func TestBuildSelectedFileFirst(t *testing.T) {
	ctx := Build(files(
		"app/layout.tsx", "layout",
		"components/button.tsx", "button",
		"app/page.tsx", "page",
	), "components/button.tsx", 10)

	require.NotEmpty(t, ctx.Files)
	assert.Equal(t, "components/button.tsx", ctx.Files[0].Path)
	assert.Equal(t, "app/layout.tsx", ctx.Files[1].Path)
	assert.Equal(t, "app/page.tsx", ctx.Files[2].Path)
}

func TestBuildEssentialOrder(t *testing.T) {
	ctx := Build(files(
		"zz.ts", "z",
		"tailwind.config.ts", "tw",
		"app/globals.css", "css",
		"app/page.tsx", "page",
		"app/layout.tsx", "layout",
	), "", 10)

	var paths []string
	for _, f := range ctx.Files {
		paths = append(paths, f.Path)
	}
	assert.Equal(t, []string{"app/layout.tsx", "app/page.tsx", "app/globals.css", "tailwind.config.ts", "zz.ts"}, paths)
}

func TestBuildRespectsMaxFiles(t *testing.T) {
	ctx := Build(files(
		"a.ts", "a",
		"b.ts", "b",
		"c.ts", "c",
	), "", 2)
	assert.Len(t, ctx.Files, 2)
}

func TestBuildTruncatesLargeFile(t *testing.T) {
	big := strings.Repeat("x", maxFileChars+500)
	ctx := Build(files("big.ts", big), "", 10)

	require.Len(t, ctx.Files, 1)
	assert.True(t, ctx.Files[0].Truncated)
	assert.Len(t, ctx.Files[0].Content, maxFileChars)
}

func TestBuildTotalBudgetSkipsLaterFiles(t *testing.T) {
	almost := strings.Repeat("a", 9000)
	ctx := Build(files(
		"a.ts", almost,
		"b.ts", almost,
		"c.ts", almost,
		"d.ts", almost,
		"e.ts", "tiny",
	), "", 10)

	// Three 9000-char files fit inside 30000; the fourth does not, but the
	// tiny file after it still does.
	var paths []string
	for _, f := range ctx.Files {
		paths = append(paths, f.Path)
	}
	assert.Equal(t, []string{"a.ts", "b.ts", "c.ts", "e.ts"}, paths)
	assert.LessOrEqual(t, ctx.TotalChars, maxTotalChars)
}

func TestBuildSelectedFileSurvivesTightBudget(t *testing.T) {
	big := strings.Repeat("x", maxTotalChars+1000)
	ctx := Build(files("selected.ts", big), "selected.ts", 10)

	require.Len(t, ctx.Files, 1)
	assert.Equal(t, "selected.ts", ctx.Files[0].Path)
	assert.True(t, ctx.Files[0].Truncated)
	assert.LessOrEqual(t, ctx.TotalChars, maxTotalChars)
}

func TestRenderEmptyProject(t *testing.T) {
	assert.Equal(t, "The project has no files yet.", Context{}.Render())
}

func TestSystemPromptIncludesContext(t *testing.T) {
	ctx := Build(files("app/page.tsx", "page content"), "", 10)
	prompt := SystemPrompt("demo", ctx)
	assert.Contains(t, prompt, `"demo"`)
	assert.Contains(t, prompt, "=== app/page.tsx ===")
	assert.Contains(t, prompt, "page content")
}
