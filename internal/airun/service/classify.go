package service

import (
	"strings"

	"github.com/appdraft/appdraft/internal/pricing"
)

var backendKeywords = []string{
	"schema", "database", "migration", "table", "sql", "postgres", "backend",
}

var reviewKeywords = []string{
	"review", "feedback", "critique", "what do you think", "how does it look",
}

var summarizeKeywords = []string{
	"summarize", "summary", "explain what", "describe what", "walk me through",
}

var fileSelectKeywords = []string{
	"which file", "what file", "where is", "find the file", "locate the",
}

var multiFileKeywords = []string{
	"across", "all pages", "all files", "every page", "throughout", "everywhere",
	"refactor", "restructure",
}

// imperativeVerbs signal the user expects edits, not commentary.
var imperativeVerbs = []string{
	"add", "change", "update", "fix", "create", "remove", "delete", "make",
	"implement", "build", "rename", "replace", "set", "adjust", "move",
	"redesign", "restyle", "convert",
}

// classifyTask buckets a message into the routing task types. Cheap keyword
// matching; misclassification costs at most a stronger model on a simple
// request.
func classifyTask(message string) pricing.TaskType {
	lower := strings.ToLower(message)

	if containsAny(lower, backendKeywords) {
		return pricing.TaskBackendSchema
	}
	if containsAny(lower, reviewKeywords) {
		return pricing.TaskUXReview
	}
	if containsAny(lower, summarizeKeywords) {
		return pricing.TaskSummarize
	}
	if containsAny(lower, fileSelectKeywords) {
		return pricing.TaskFileSelect
	}
	if containsAny(lower, multiFileKeywords) {
		return pricing.TaskMultiFileChange
	}
	return pricing.TaskCodeEdit
}

// requiresEdits decides whether the run must produce tool calls. Edit-class
// tasks with either a selected file or an imperative request qualify.
func requiresEdits(task pricing.TaskType, message, selectedPath string) bool {
	switch task {
	case pricing.TaskCodeEdit, pricing.TaskMultiFileChange, pricing.TaskBackendSchema:
	default:
		return false
	}
	if selectedPath != "" {
		return true
	}

	lower := strings.ToLower(message)
	for _, verb := range imperativeVerbs {
		if strings.HasPrefix(lower, verb+" ") || strings.Contains(lower, " "+verb+" ") {
			return true
		}
	}
	return false
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
