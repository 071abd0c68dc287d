// Package contextbuild assembles the project file context fed to the model,
// bounded by per-file and total character budgets and the plan's context file
// limit.
package contextbuild

import (
	"fmt"
	"strings"

	projectdomain "github.com/appdraft/appdraft/internal/project/domain"
)

const (
	maxFileChars  = 10000
	maxTotalChars = 30000
)

// essentialPaths are included ahead of everything else, in this order. They
// anchor the model in the app shell of a typical project.
var essentialPaths = []string{
	"app/layout.tsx",
	"app/page.tsx",
	"app/globals.css",
	"tailwind.config.js",
	"tailwind.config.ts",
}

type ContextFile struct {
	Path      string
	Content   string
	Truncated bool
}

type Context struct {
	Files      []ContextFile
	TotalChars int
}

// Build selects and trims files for the prompt. The selected file is always
// first and always present, even when budgets are tight. maxFiles comes from
// the plan limits.
func Build(files []projectdomain.ProjectFile, selectedPath string, maxFiles int) Context {
	if maxFiles < 1 {
		maxFiles = 1
	}

	byPath := make(map[string]projectdomain.ProjectFile, len(files))
	for _, f := range files {
		byPath[f.Path] = f
	}

	var ordered []projectdomain.ProjectFile
	seen := map[string]bool{}

	if selectedPath != "" {
		if f, ok := byPath[selectedPath]; ok {
			ordered = append(ordered, f)
			seen[selectedPath] = true
		}
	}
	for _, p := range essentialPaths {
		if f, ok := byPath[p]; ok && !seen[p] {
			ordered = append(ordered, f)
			seen[p] = true
		}
	}
	for _, f := range files {
		if !seen[f.Path] {
			ordered = append(ordered, f)
			seen[f.Path] = true
		}
	}

	ctx := Context{}
	for _, f := range ordered {
		if len(ctx.Files) >= maxFiles {
			break
		}

		content := f.Content
		truncated := false
		if len(content) > maxFileChars {
			content = content[:maxFileChars]
			truncated = true
		}

		// Recompute against the running total after each trim so a large early
		// file shrinks the room left for later ones.
		remaining := maxTotalChars - ctx.TotalChars
		if remaining <= 0 {
			break
		}
		if len(content) > remaining {
			if len(ctx.Files) == 0 {
				content = content[:remaining]
				truncated = true
			} else {
				continue
			}
		}

		ctx.Files = append(ctx.Files, ContextFile{Path: f.Path, Content: content, Truncated: truncated})
		ctx.TotalChars += len(content)
	}
	return ctx
}

// Render formats the context as a prompt section.
func (c Context) Render() string {
	if len(c.Files) == 0 {
		return "The project has no files yet."
	}

	var b strings.Builder
	b.WriteString("Project files:\n")
	for _, f := range c.Files {
		b.WriteString(fmt.Sprintf("\n=== %s ===\n", f.Path))
		b.WriteString(f.Content)
		if f.Truncated {
			b.WriteString("\n[truncated]")
		}
		b.WriteString("\n")
	}
	return b.String()
}

// SystemPrompt composes the run's system prompt from the rendered context.
func SystemPrompt(projectName string, ctx Context) string {
	var b strings.Builder
	b.WriteString("You are an expert app builder working on the project ")
	b.WriteString(fmt.Sprintf("%q. ", projectName))
	b.WriteString("Make the requested changes using the provided tools. ")
	b.WriteString("Prefer minimal, focused edits. Always use tools to change files; ")
	b.WriteString("never print file contents in your reply.\n\n")
	b.WriteString(ctx.Render())
	return b.String()
}
